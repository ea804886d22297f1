package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
	"github.com/tkarema/campuscache/internal/store"
)

// CacheRepo implements store.CacheStore using SQLite.
type CacheRepo struct{ db *DB }

var _ store.CacheStore = (*CacheRepo)(nil)

// NewCacheRepo constructs a cache repository.
func NewCacheRepo(db *DB) *CacheRepo { return &CacheRepo{db: db} }

// replaceAll swaps a whole table inside one transaction so a failed fetch
// never leaves a domain half-deleted.
func (r *CacheRepo) replaceAll(ctx context.Context, table string, n int, insert func(tx *sql.Tx, i int) error) (err error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if err = insert(tx, i); err != nil {
			return fmt.Errorf("insert %s[%d]: %w", table, i, err)
		}
	}
	return nil
}

// ReplaceFaculties atomically swaps the faculties table for the given set.
func (r *CacheRepo) ReplaceFaculties(ctx context.Context, fs []model.Faculty) error {
	const ins = `INSERT INTO faculties (id, name, code, cached_at) VALUES (?,?,?,?)`
	return r.replaceAll(ctx, "faculties", len(fs), func(tx *sql.Tx, i int) error {
		f := fs[i]
		_, err := tx.ExecContext(ctx, ins, f.ID.String(), f.Name, f.Code, toMillis(f.CachedAt))
		return err
	})
}

// ReplacePrograms atomically swaps the programs table for the given set.
func (r *CacheRepo) ReplacePrograms(ctx context.Context, ps []model.Program) error {
	const ins = `INSERT INTO programs (id, faculty_id, name, level, cached_at) VALUES (?,?,?,?,?)`
	return r.replaceAll(ctx, "programs", len(ps), func(tx *sql.Tx, i int) error {
		p := ps[i]
		_, err := tx.ExecContext(ctx, ins, p.ID.String(), p.FacultyID.String(), p.Name, p.Level, toMillis(p.CachedAt))
		return err
	})
}

// ReplaceCourseUnits atomically swaps the course_units table for the given set.
func (r *CacheRepo) ReplaceCourseUnits(ctx context.Context, cus []model.CourseUnit) error {
	const ins = `INSERT INTO course_units (id, program_id, name, code, year, semester, cached_at) VALUES (?,?,?,?,?,?,?)`
	return r.replaceAll(ctx, "course_units", len(cus), func(tx *sql.Tx, i int) error {
		cu := cus[i]
		_, err := tx.ExecContext(ctx, ins, cu.ID.String(), cu.ProgramID.String(), cu.Name, cu.Code, cu.Year, cu.Semester, toMillis(cu.CachedAt))
		return err
	})
}

// UpsertResources inserts or updates resources by id. The ON CONFLICT set
// deliberately excludes is_bookmarked: the flag is client-owned and survives resyncs.
func (r *CacheRepo) UpsertResources(ctx context.Context, rs []model.Resource) (err error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	const ins = `
INSERT INTO resources (id, course_unit_id, title, kind, file_url, uploaded_by, is_bookmarked, cached_at)
VALUES (?,?,?,?,?,?,0,?)
ON CONFLICT(id) DO UPDATE SET
  course_unit_id = excluded.course_unit_id,
  title          = excluded.title,
  kind           = excluded.kind,
  file_url       = excluded.file_url,
  uploaded_by    = excluded.uploaded_by,
  cached_at      = excluded.cached_at`

	for i := range rs {
		rec := rs[i]
		if _, err = tx.ExecContext(ctx, ins,
			rec.ID.String(), rec.CourseUnitID.String(), rec.Title, rec.Kind,
			rec.FileURL, rec.UploadedBy, toMillis(rec.CachedAt),
		); err != nil {
			return fmt.Errorf("upsert resource[%d]: %w", i, err)
		}
	}
	return nil
}

// SetBookmark flips the client-local bookmark flag for a resource.
func (r *CacheRepo) SetBookmark(ctx context.Context, id uuid.UUID, bookmarked bool) error {
	const q = `UPDATE resources SET is_bookmarked=? WHERE id=?`
	res, err := r.db.sql.ExecContext(ctx, q, boolToInt(bookmarked), id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListFaculties returns all cached faculties ordered by name.
func (r *CacheRepo) ListFaculties(ctx context.Context) ([]model.Faculty, error) {
	const q = `SELECT id, name, code, cached_at FROM faculties ORDER BY name`
	rows, err := r.db.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Faculty
	for rows.Next() {
		var (
			f  model.Faculty
			id string
			ms int64
		)
		if err := rows.Scan(&id, &f.Name, &f.Code, &ms); err != nil {
			return nil, err
		}
		if f.ID, err = uuid.FromString(id); err != nil {
			return nil, err
		}
		f.CachedAt = fromMillis(ms)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListPrograms returns cached programs, optionally narrowed to one faculty.
func (r *CacheRepo) ListPrograms(ctx context.Context, facultyID uuid.UUID) ([]model.Program, error) {
	q := `SELECT id, faculty_id, name, level, cached_at FROM programs`
	args := []any{}
	if facultyID != uuid.Nil {
		q += ` WHERE faculty_id=?`
		args = append(args, facultyID.String())
	}
	q += ` ORDER BY name`

	rows, err := r.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Program
	for rows.Next() {
		var (
			p        model.Program
			id, fid  string
			cachedMs int64
		)
		if err := rows.Scan(&id, &fid, &p.Name, &p.Level, &cachedMs); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.FromString(id); err != nil {
			return nil, err
		}
		if p.FacultyID, err = uuid.FromString(fid); err != nil {
			return nil, err
		}
		p.CachedAt = fromMillis(cachedMs)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCourseUnits returns cached course units matching the filter.
func (r *CacheRepo) ListCourseUnits(ctx context.Context, f model.CourseUnitFilter) ([]model.CourseUnit, error) {
	q := `SELECT id, program_id, name, code, year, semester, cached_at FROM course_units WHERE 1=1`
	args := []any{}
	if f.ProgramID != uuid.Nil {
		q += ` AND program_id=?`
		args = append(args, f.ProgramID.String())
	}
	if f.Year != 0 {
		q += ` AND year=?`
		args = append(args, f.Year)
	}
	if f.Semester != 0 {
		q += ` AND semester=?`
		args = append(args, f.Semester)
	}
	q += ` ORDER BY code, name`

	rows, err := r.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CourseUnit
	for rows.Next() {
		var (
			cu       model.CourseUnit
			id, pid  string
			cachedMs int64
		)
		if err := rows.Scan(&id, &pid, &cu.Name, &cu.Code, &cu.Year, &cu.Semester, &cachedMs); err != nil {
			return nil, err
		}
		if cu.ID, err = uuid.FromString(id); err != nil {
			return nil, err
		}
		if cu.ProgramID, err = uuid.FromString(pid); err != nil {
			return nil, err
		}
		cu.CachedAt = fromMillis(cachedMs)
		out = append(out, cu)
	}
	return out, rows.Err()
}

// ListResources returns all cached resources, most recently cached first.
func (r *CacheRepo) ListResources(ctx context.Context) ([]model.Resource, error) {
	const q = `
SELECT id, course_unit_id, title, kind, file_url, uploaded_by, is_bookmarked, cached_at
FROM resources ORDER BY cached_at DESC, id`
	rows, err := r.db.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		res, err := scanResource(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// GetResource returns a single cached resource by id.
func (r *CacheRepo) GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	const q = `
SELECT id, course_unit_id, title, kind, file_url, uploaded_by, is_bookmarked, cached_at
FROM resources WHERE id=?`
	row := r.db.sql.QueryRowContext(ctx, q, id.String())
	res, err := scanResource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return res, err
}

// Reset drops all cached rows.
func (r *CacheRepo) Reset(ctx context.Context) (err error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	for _, table := range []string{"faculties", "programs", "course_units", "resources"} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

func scanResource(scan func(dest ...any) error) (*model.Resource, error) {
	var (
		res        model.Resource
		id, cuID   string
		bookmarked int
		cachedMs   int64
	)
	if err := scan(&id, &cuID, &res.Title, &res.Kind, &res.FileURL, &res.UploadedBy, &bookmarked, &cachedMs); err != nil {
		return nil, err
	}
	var err error
	if res.ID, err = uuid.FromString(id); err != nil {
		return nil, err
	}
	// course_unit_id may be empty for catalog-wide resources
	if cuID != "" {
		if res.CourseUnitID, err = uuid.FromString(cuID); err != nil {
			return nil, err
		}
	}
	res.IsBookmarked = bookmarked != 0
	res.CachedAt = fromMillis(cachedMs)
	return &res, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
