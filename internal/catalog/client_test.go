package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

func newClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestListFaculties_DecodesAndStampsCachedAt(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/faculties" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"` + id.String() + `","name":"Engineering","code":"ENG"}]`))
	}))
	before := time.Now()

	got, err := c.ListFaculties(context.Background())
	if err != nil {
		t.Fatalf("ListFaculties: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Name != "Engineering" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got[0].CachedAt.Before(before) {
		t.Fatalf("CachedAt not stamped: %v", got[0].CachedAt)
	}
}

func TestListPrograms_UsesFacultyPathAndFillsFacultyID(t *testing.T) {
	fid := uuid.Must(uuid.NewV4())
	pid := uuid.Must(uuid.NewV4())
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/faculties/" + fid.String() + "/programs"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		_, _ = w.Write([]byte(`[{"id":"` + pid.String() + `","name":"BSc CS","level":"undergraduate"}]`))
	}))

	got, err := c.ListPrograms(context.Background(), fid)
	if err != nil {
		t.Fatalf("ListPrograms: %v", err)
	}
	if len(got) != 1 || got[0].FacultyID != fid {
		t.Fatalf("faculty id not filled in: %+v", got)
	}
}

func TestListCourseUnits_EncodesOnlySetFilters(t *testing.T) {
	pid := uuid.Must(uuid.NewV4())
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("program_id") != pid.String() {
			t.Errorf("program_id = %q", q.Get("program_id"))
		}
		if q.Get("year") != "2" {
			t.Errorf("year = %q", q.Get("year"))
		}
		if q.Has("semester") {
			t.Error("unset semester filter must be omitted")
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	_, err := c.ListCourseUnits(context.Background(), model.CourseUnitFilter{ProgramID: pid, Year: 2})
	if err != nil {
		t.Fatalf("ListCourseUnits: %v", err)
	}
}

func TestResourcePages_EncodePagination(t *testing.T) {
	rid := uuid.Must(uuid.NewV4())
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "50" {
			t.Errorf("pagination = %v", q)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"` + rid.String() + `","title":"Notes","kind":"pdf"}],"page":2,"page_size":50,"total_items":120}`))
	}))

	page, err := c.ListRecentResources(context.Background(), 2, 50)
	if err != nil {
		t.Fatalf("ListRecentResources: %v", err)
	}
	if page.TotalItems != 120 || len(page.Items) != 1 || page.Items[0].ID != rid {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, errs.ErrUnauthorized},
		{"server fault", http.StatusInternalServerError, errs.ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, errs.ErrUnavailable},
		{"not found", http.StatusNotFound, errs.ErrRejected},
		{"bad request", http.StatusBadRequest, errs.ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			_, err := c.ListFaculties(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: got %v, want %v", tc.status, err, tc.want)
			}
		})
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c, err := New(srv.URL, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.ListFaculties(context.Background())
	if !errors.Is(err, errs.ErrUnreachable) {
		t.Fatalf("got %v, want ErrUnreachable", err)
	}
}

func TestMalformedBodyIsUnavailable(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))

	_, err := c.ListFaculties(context.Background())
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestMalformedIDIsUnavailable(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"not-a-uuid","name":"x","code":"X"}]`))
	}))

	_, err := c.ListFaculties(context.Background())
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestRefreshToken_ExchangesAndComputesExpiry(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/refresh" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body refreshRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken != "r1" {
			t.Errorf("bad request body: %+v err=%v", body, err)
		}
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","expires_in":900}`))
	}))
	before := time.Now()

	tok, err := c.RefreshToken(context.Background(), "r1")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if tok.AccessToken != "a2" || tok.RefreshToken != "r2" {
		t.Fatalf("unexpected tokens %+v", tok)
	}
	if got := tok.ExpiresAt.Sub(before); got < 14*time.Minute || got > 16*time.Minute {
		t.Fatalf("ExpiresAt not ~15m out: %v", got)
	}
}

func TestRefreshToken_RejectionSurfacesUnauthorized(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.RefreshToken(context.Background(), "stale")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}
