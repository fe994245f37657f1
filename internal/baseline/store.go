// Package baseline persists named schedule snapshots in SQLite and
// compares a later schedule against them.
package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/joshharrison/critpath/internal/cpm"
)

// ErrNotFound is returned when no baseline matches.
var ErrNotFound = errors.New("baseline not found")

// Baseline is a saved schedule. Result is nil in List output.
type Baseline struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProjectFile string      `json:"project_file,omitempty"`
	FinishDays  int         `json:"finish_days"`
	TaskCount   int         `json:"task_count"`
	CreatedAt   time.Time   `json:"created_at"`
	Result      *cpm.Result `json:"result,omitempty"`
}

type baselineRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	ProjectFile string    `db:"project_file"`
	FinishDays  int       `db:"finish_days"`
	TaskCount   int       `db:"task_count"`
	Result      string    `db:"result"`
	CreatedAt   time.Time `db:"created_at"`
}

// Store is a SQLite-backed baseline repository.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the baseline database at path. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open baseline db: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init baseline schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baseline (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_file TEXT NOT NULL DEFAULT '',
		finish_days INTEGER NOT NULL,
		task_count INTEGER NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_baseline_name ON baseline(name);
	CREATE INDEX IF NOT EXISTS idx_baseline_created_at ON baseline(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores result under name and returns the new baseline.
func (s *Store) Save(ctx context.Context, name, projectFile string, result *cpm.Result) (*Baseline, error) {
	if result == nil {
		return nil, errors.New("save baseline: nil result")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal baseline: %w", err)
	}

	row := baselineRow{
		ID:          uuid.NewString(),
		Name:        name,
		ProjectFile: projectFile,
		FinishDays:  result.FinishDays,
		TaskCount:   len(result.Tasks),
		Result:      string(data),
		CreatedAt:   s.now().UTC(),
	}
	query := `
	INSERT INTO baseline (id, name, project_file, finish_days, task_count, result, created_at)
	VALUES (:id, :name, :project_file, :finish_days, :task_count, :result, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, fmt.Errorf("save baseline: %w", err)
	}
	return row.toBaseline(result), nil
}

// List returns every baseline, newest first, without results.
func (s *Store) List(ctx context.Context) ([]Baseline, error) {
	var rows []baselineRow
	query := `
	SELECT id, name, project_file, finish_days, task_count, '' AS result, created_at
	FROM baseline ORDER BY created_at DESC, rowid DESC
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	out := make([]Baseline, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toBaseline(nil))
	}
	return out, nil
}

// Get loads a baseline by id.
func (s *Store) Get(ctx context.Context, id string) (*Baseline, error) {
	return s.getOne(ctx, `SELECT * FROM baseline WHERE id = ?`, id)
}

// Resolve finds a baseline by exact id, by unique id prefix, or by name
// (the newest with that name wins).
func (s *Store) Resolve(ctx context.Context, ref string) (*Baseline, error) {
	b, err := s.Get(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return b, err
	}

	if ref == "" {
		return nil, ErrNotFound
	}
	// substr rather than LIKE so '%' and '_' in ref match literally.
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM baseline WHERE substr(id, 1, ?) = ? LIMIT 2`, len(ref), ref); err != nil {
		return nil, fmt.Errorf("resolve baseline: %w", err)
	}
	if len(ids) == 1 {
		return s.Get(ctx, ids[0])
	}

	return s.getOne(ctx, `SELECT * FROM baseline WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, ref)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (*Baseline, error) {
	var row baselineRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	var result cpm.Result
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		return nil, fmt.Errorf("decode baseline %s: %w", row.ID, err)
	}
	return row.toBaseline(&result), nil
}

// Delete removes a baseline by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM baseline WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete baseline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete baseline: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *baselineRow) toBaseline(result *cpm.Result) *Baseline {
	return &Baseline{
		ID:          r.ID,
		Name:        r.Name,
		ProjectFile: r.ProjectFile,
		FinishDays:  r.FinishDays,
		TaskCount:   r.TaskCount,
		CreatedAt:   r.CreatedAt,
		Result:      result,
	}
}
