package catalog

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

// Wire shapes of the remote catalog, converted into model entities with a
// cachedAt stamp at the boundary.

type facultyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type programDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

type courseUnitDTO struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Year      int    `json:"year"`
	Semester  int    `json:"semester"`
}

type resourceDTO struct {
	ID           string `json:"id"`
	CourseUnitID string `json:"course_unit_id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	FileURL      string `json:"file_url"`
	UploadedBy   string `json:"uploaded_by"`
}

type resourcePageDTO struct {
	Items      []resourceDTO `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalItems int           `json:"total_items"`
}

type refreshRequestDTO struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponseDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// parseID normalizes malformed ids into the transient-fault bucket: a bad
// payload is the server's problem and the sync attempt may be retried.
func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s id %q: %v", errs.ErrUnavailable, kind, raw, err)
	}
	return id, nil
}

func facultiesFromDTO(dtos []facultyDTO, cachedAt time.Time) ([]model.Faculty, error) {
	out := make([]model.Faculty, 0, len(dtos))
	for _, d := range dtos {
		id, err := parseID("faculty", d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Faculty{ID: id, Name: d.Name, Code: d.Code, CachedAt: cachedAt})
	}
	return out, nil
}

func programsFromDTO(dtos []programDTO, facultyID uuid.UUID, cachedAt time.Time) ([]model.Program, error) {
	out := make([]model.Program, 0, len(dtos))
	for _, d := range dtos {
		id, err := parseID("program", d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Program{ID: id, FacultyID: facultyID, Name: d.Name, Level: d.Level, CachedAt: cachedAt})
	}
	return out, nil
}

func courseUnitsFromDTO(dtos []courseUnitDTO, cachedAt time.Time) ([]model.CourseUnit, error) {
	out := make([]model.CourseUnit, 0, len(dtos))
	for _, d := range dtos {
		id, err := parseID("course unit", d.ID)
		if err != nil {
			return nil, err
		}
		pid := uuid.Nil
		if d.ProgramID != "" {
			if pid, err = parseID("program", d.ProgramID); err != nil {
				return nil, err
			}
		}
		out = append(out, model.CourseUnit{
			ID: id, ProgramID: pid, Name: d.Name, Code: d.Code,
			Year: d.Year, Semester: d.Semester, CachedAt: cachedAt,
		})
	}
	return out, nil
}

func resourcePageFromDTO(dto resourcePageDTO, cachedAt time.Time) (model.Page[model.Resource], error) {
	items := make([]model.Resource, 0, len(dto.Items))
	for _, d := range dto.Items {
		id, err := parseID("resource", d.ID)
		if err != nil {
			return model.Page[model.Resource]{}, err
		}
		cuID := uuid.Nil
		if d.CourseUnitID != "" {
			if cuID, err = parseID("course unit", d.CourseUnitID); err != nil {
				return model.Page[model.Resource]{}, err
			}
		}
		items = append(items, model.Resource{
			ID: id, CourseUnitID: cuID, Title: d.Title, Kind: d.Kind,
			FileURL: d.FileURL, UploadedBy: d.UploadedBy, CachedAt: cachedAt,
		})
	}
	return model.Page[model.Resource]{
		Items: items, Number: dto.Page, Size: dto.PageSize, TotalItems: dto.TotalItems,
	}, nil
}
