// Package catalog implements the HTTP client for the remote academic-resource catalog.
//
// All transport, status and decode failures are normalized into the errs
// taxonomy here; callers never see raw *url.Error or status codes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

// API is the remote catalog surface consumed by the sync coordinator.
type API interface {
	ListFaculties(ctx context.Context) ([]model.Faculty, error)
	ListPrograms(ctx context.Context, facultyID uuid.UUID) ([]model.Program, error)
	ListCourseUnits(ctx context.Context, f model.CourseUnitFilter) ([]model.CourseUnit, error)
	ListRecentResources(ctx context.Context, page, pageSize int) (model.Page[model.Resource], error)
	ListTrendingResources(ctx context.Context, page, pageSize int) (model.Page[model.Resource], error)
}

// Refresher exchanges a refresh token for a new credential pair.
// Implemented by a Client whose transport bypasses the auth gate.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (model.Tokens, error)
}

// Client talks to the remote catalog over HTTP+JSON.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
}

var _ API = (*Client)(nil)
var _ Refresher = (*Client)(nil)

// New constructs a catalog client. hc carries the transport chain (auth gate,
// request logging); pass a plain client for the refresh-only instance.
func New(baseURL string, hc *http.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u, http: hc, log: log, now: time.Now}, nil
}

// get performs a GET and decodes the JSON body into dest.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	u := *c.baseURL
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// connect/DNS/timeout failures surface as unreachable
		return fmt.Errorf("%w: GET %s: %v", errs.ErrUnreachable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		// a malformed body is a server fault, treated as transient
		return fmt.Errorf("%w: GET %s: decode: %v", errs.ErrUnavailable, path, err)
	}
	return nil
}

// statusError maps a non-2xx status into the error taxonomy.
func statusError(code int, path string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", errs.ErrUnauthorized, path)
	case code >= 500:
		return fmt.Errorf("%w: %s: status %d", errs.ErrUnavailable, path, code)
	default:
		return fmt.Errorf("%w: %s: status %d", errs.ErrRejected, path, code)
	}
}

// ListFaculties fetches the full faculty set.
func (c *Client) ListFaculties(ctx context.Context) ([]model.Faculty, error) {
	var dtos []facultyDTO
	if err := c.get(ctx, "/faculties", nil, &dtos); err != nil {
		return nil, err
	}
	return facultiesFromDTO(dtos, c.now())
}

// ListPrograms fetches all programs of one faculty.
func (c *Client) ListPrograms(ctx context.Context, facultyID uuid.UUID) ([]model.Program, error) {
	var dtos []programDTO
	path := "/faculties/" + facultyID.String() + "/programs"
	if err := c.get(ctx, path, nil, &dtos); err != nil {
		return nil, err
	}
	return programsFromDTO(dtos, facultyID, c.now())
}

// ListCourseUnits fetches course units; all filters are optional.
func (c *Client) ListCourseUnits(ctx context.Context, f model.CourseUnitFilter) ([]model.CourseUnit, error) {
	q := url.Values{}
	if f.ProgramID != uuid.Nil {
		q.Set("program_id", f.ProgramID.String())
	}
	if f.Year != 0 {
		q.Set("year", strconv.Itoa(f.Year))
	}
	if f.Semester != 0 {
		q.Set("semester", strconv.Itoa(f.Semester))
	}
	var dtos []courseUnitDTO
	if err := c.get(ctx, "/course-units", q, &dtos); err != nil {
		return nil, err
	}
	return courseUnitsFromDTO(dtos, c.now())
}

// ListRecentResources fetches one page of the recent-resources feed.
func (c *Client) ListRecentResources(ctx context.Context, page, pageSize int) (model.Page[model.Resource], error) {
	return c.resourcePage(ctx, "/resources/recent", page, pageSize)
}

// ListTrendingResources fetches one page of the trending-resources feed.
func (c *Client) ListTrendingResources(ctx context.Context, page, pageSize int) (model.Page[model.Resource], error) {
	return c.resourcePage(ctx, "/resources/trending", page, pageSize)
}

func (c *Client) resourcePage(ctx context.Context, path string, page, pageSize int) (model.Page[model.Resource], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	var dto resourcePageDTO
	if err := c.get(ctx, path, q, &dto); err != nil {
		return model.Page[model.Resource]{}, err
	}
	return resourcePageFromDTO(dto, c.now())
}

// RefreshToken exchanges a refresh token for a new credential pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	body, err := json.Marshal(refreshRequestDTO{RefreshToken: refreshToken})
	if err != nil {
		return model.Tokens{}, err
	}

	u := *c.baseURL
	u.Path += "/auth/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(string(body)))
	if err != nil {
		return model.Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("%w: POST /auth/refresh: %v", errs.ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode, "/auth/refresh"); err != nil {
		return model.Tokens{}, err
	}
	var dto refreshResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return model.Tokens{}, fmt.Errorf("%w: POST /auth/refresh: decode: %v", errs.ErrUnavailable, err)
	}
	return model.Tokens{
		AccessToken:  dto.AccessToken,
		RefreshToken: dto.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(dto.ExpiresIn) * time.Second),
	}, nil
}
