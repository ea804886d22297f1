// Package model defines domain entities used by the syncer, stores and catalog client.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Domain is one logical category of cached catalog data with its own staleness interval.
type Domain int

const (
	Faculties Domain = iota
	Programs
	CourseUnits
	Resources
)

// AllDomains lists domains in full-sync order: reference data first so a
// resource sync can resolve course-unit ids against a populated cache.
var AllDomains = []Domain{Faculties, Programs, CourseUnits, Resources}

// String returns the stable name used as the staleness-ledger key.
func (d Domain) String() string {
	switch d {
	case Faculties:
		return "faculties"
	case Programs:
		return "programs"
	case CourseUnits:
		return "course_units"
	case Resources:
		return "resources"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// ParseDomain maps a ledger key / CLI argument back to a Domain.
func ParseDomain(s string) (Domain, error) {
	switch s {
	case "faculties":
		return Faculties, nil
	case "programs":
		return Programs, nil
	case "course_units":
		return CourseUnits, nil
	case "resources":
		return Resources, nil
	default:
		return 0, fmt.Errorf("unknown sync domain %q", s)
	}
}

// Default staleness intervals. Shorter for data that changes more often.
// These are configurable defaults, not hard invariants.
const (
	DefaultFacultiesInterval   = 24 * time.Hour
	DefaultProgramsInterval    = 24 * time.Hour
	DefaultCourseUnitsInterval = 12 * time.Hour
	DefaultResourcesInterval   = time.Hour
)

// Intervals maps each domain to its staleness interval.
type Intervals map[Domain]time.Duration

// DefaultIntervals returns a fresh copy of the default staleness intervals.
func DefaultIntervals() Intervals {
	return Intervals{
		Faculties:   DefaultFacultiesInterval,
		Programs:    DefaultProgramsInterval,
		CourseUnits: DefaultCourseUnitsInterval,
		Resources:   DefaultResourcesInterval,
	}
}

// For returns the interval for a domain, falling back to the default when unset.
func (iv Intervals) For(d Domain) time.Duration {
	if v, ok := iv[d]; ok && v > 0 {
		return v
	}
	return DefaultIntervals()[d]
}

// Outcome reports what a coordinator run did for one domain.
type Outcome int

const (
	// Synced means data was fetched and reconciled into the local cache.
	Synced Outcome = iota
	// Skipped means the cached data was still fresh and no network call was made.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "synced"
}

// Faculty is a cached faculty record.
type Faculty struct {
	ID       uuid.UUID
	Name     string
	Code     string
	CachedAt time.Time
}

// Program is a cached program record, owned by a faculty.
type Program struct {
	ID        uuid.UUID
	FacultyID uuid.UUID
	Name      string
	Level     string
	CachedAt  time.Time
}

// CourseUnit is a cached course-unit record.
type CourseUnit struct {
	ID        uuid.UUID
	ProgramID uuid.UUID
	Name      string
	Code      string
	Year      int
	Semester  int
	CachedAt  time.Time
}

// Resource is a cached resource record. IsBookmarked is client-local state:
// the remote catalog knows nothing about it and a resync must never clear it.
type Resource struct {
	ID           uuid.UUID
	CourseUnitID uuid.UUID
	Title        string
	Kind         string
	FileURL      string
	UploadedBy   string
	IsBookmarked bool
	CachedAt     time.Time
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T
	Number     int
	Size       int
	TotalItems int
}

// CourseUnitFilter narrows a course-unit listing; zero values mean "no filter".
type CourseUnitFilter struct {
	ProgramID uuid.UUID
	Year      int
	Semester  int
}

// Tokens is a bearer credential pair. Replaced atomically on successful
// refresh, cleared entirely on unrecoverable refresh failure.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// Empty reports whether no credentials are stored.
func (t Tokens) Empty() bool { return t.AccessToken == "" && t.RefreshToken == "" }
