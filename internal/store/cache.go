// Package store defines local persistence interfaces implemented by concrete backends.
package store

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tkarema/campuscache/internal/model"
)

// CacheStore is the queryable local record store the UI reads from and the
// sync coordinator reconciles into.
type CacheStore interface {
	// ReplaceFaculties atomically swaps the faculties table for the given set.
	ReplaceFaculties(ctx context.Context, fs []model.Faculty) error
	// ReplacePrograms atomically swaps the programs table for the given set.
	ReplacePrograms(ctx context.Context, ps []model.Program) error
	// ReplaceCourseUnits atomically swaps the course_units table for the given set.
	ReplaceCourseUnits(ctx context.Context, cus []model.CourseUnit) error

	// UpsertResources inserts or updates resources by id. Remote fields are
	// replaced; the client-local bookmark flag is never touched.
	UpsertResources(ctx context.Context, rs []model.Resource) error

	// SetBookmark flips the client-local bookmark flag for a resource.
	SetBookmark(ctx context.Context, id uuid.UUID, bookmarked bool) error

	// ListFaculties returns all cached faculties ordered by name.
	ListFaculties(ctx context.Context) ([]model.Faculty, error)
	// ListPrograms returns cached programs, optionally narrowed to one faculty.
	ListPrograms(ctx context.Context, facultyID uuid.UUID) ([]model.Program, error)
	// ListCourseUnits returns cached course units matching the filter.
	ListCourseUnits(ctx context.Context, f model.CourseUnitFilter) ([]model.CourseUnit, error)
	// ListResources returns all cached resources, most recently cached first.
	ListResources(ctx context.Context) ([]model.Resource, error)
	// GetResource returns a single cached resource by id.
	GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error)

	// Reset drops all cached rows (explicit cache clear).
	Reset(ctx context.Context) error
}
