// Package history records build runs and their rejections in SQL so that
// the rejection set of two builds can be compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/report"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS build_runs (
		run_id      TEXT PRIMARY KEY,
		api_version TEXT NOT NULL,
		built_at    BIGINT NOT NULL,
		classes     INTEGER NOT NULL,
		functions   INTEGER NOT NULL,
		enums       INTEGER NOT NULL,
		rejections  INTEGER NOT NULL,
		warnings    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS build_rejections (
		run_id TEXT NOT NULL REFERENCES build_runs (run_id),
		item   TEXT NOT NULL,
		kind   TEXT NOT NULL,
		reason TEXT NOT NULL,
		code   TEXT NOT NULL,
		detail TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS build_rejections_run_id ON build_rejections (run_id)`,
}

// Run is one recorded build.
type Run struct {
	ID         string    `json:"run_id"`
	APIVersion string    `json:"api_version,omitempty"`
	BuiltAt    time.Time `json:"built_at"`
	Classes    int       `json:"classes"`
	Functions  int       `json:"functions"`
	Enums      int       `json:"enums"`
	Rejections int       `json:"rejections"`
	Warnings   int       `json:"warnings"`
}

// Store reads and writes build history.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to dsn and creates the tables. postgres:// and
// postgresql:// URLs use pgx; sqlite:// URLs and plain paths use SQLite.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source, dialect, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite && source != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows one writer; a single connection also keeps
		// :memory: databases alive between statements.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func parseDSN(dsn string) (driver, source string, dialect Dialect, err error) {
	switch {
	case dsn == "":
		return "", "", SQLite, fmt.Errorf("history dsn cannot be empty")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, Postgres, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), SQLite, nil
	case strings.Contains(dsn, "://"):
		return "", "", SQLite, fmt.Errorf("unsupported history dsn scheme: %s", dsn)
	}
	return "sqlite3", dsn, SQLite, nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create history tables: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record stores the counts and rejections of m.
func (s *Store) Record(ctx context.Context, m *report.Metamodel) (Run, error) {
	if m == nil {
		return Run{}, fmt.Errorf("metamodel cannot be nil")
	}
	if m.RunID == "" {
		return Run{}, fmt.Errorf("metamodel has no run id")
	}
	run := summarize(m, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO build_runs
		(run_id, api_version, built_at, classes, functions, enums, rejections, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.APIVersion, run.BuiltAt.UnixMilli(), run.Classes, run.Functions, run.Enums, run.Rejections, run.Warnings)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	if len(m.Rejections) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO build_rejections
			(run_id, item, kind, reason, code, detail) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return Run{}, fmt.Errorf("failed to prepare rejection insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range m.Rejections {
			if _, err := stmt.ExecContext(ctx, run.ID, r.Item, r.Kind, r.Reason, r.Code, r.Detail); err != nil {
				return Run{}, fmt.Errorf("failed to record rejection %s: %w", r.Item, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return run, nil
}

func summarize(m *report.Metamodel, at time.Time) Run {
	run := Run{
		ID:         m.RunID,
		APIVersion: m.APIVersion,
		BuiltAt:    time.UnixMilli(at.UnixMilli()),
		Classes:    len(m.Classes),
		Functions:  len(m.GlobalFunctions),
		Enums:      len(m.GlobalEnums),
		Rejections: len(m.Rejections),
	}
	for _, c := range m.Classes {
		run.Functions += len(c.Functions)
		run.Enums += len(c.Enums)
	}
	for _, d := range m.Diagnostics {
		if d.Severity == errors.SeverityWarning {
			run.Warnings++
		}
	}
	return run
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, api_version, built_at, classes, functions, enums, rejections, warnings
		FROM build_runs ORDER BY built_at DESC, run_id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			builtAt int64
		)
		if err := rows.Scan(&r.ID, &r.APIVersion, &builtAt, &r.Classes, &r.Functions, &r.Enums, &r.Rejections, &r.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.BuiltAt = time.UnixMilli(builtAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Run returns one run, or an error when it was never recorded.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	var (
		r       Run
		builtAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT run_id, api_version, built_at, classes, functions, enums, rejections, warnings
		FROM build_runs WHERE run_id = ?`), runID).
		Scan(&r.ID, &r.APIVersion, &builtAt, &r.Classes, &r.Functions, &r.Enums, &r.Rejections, &r.Warnings)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("no recorded run %s", runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	r.BuiltAt = time.UnixMilli(builtAt)
	return r, nil
}

// Rejections returns the rejections recorded for a run, ordered by item.
func (s *Store) Rejections(ctx context.Context, runID string) ([]report.RejectionReport, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT item, kind, reason, code, detail
		FROM build_rejections WHERE run_id = ? ORDER BY item, kind`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	var out []report.RejectionReport
	for rows.Next() {
		var r report.RejectionReport
		if err := rows.Scan(&r.Item, &r.Kind, &r.Reason, &r.Code, &r.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	return out, nil
}

// ReasonChange is an item rejected in both runs for different reasons.
type ReasonChange struct {
	Item string `json:"item"`
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Diff compares the rejections of two runs.
type Diff struct {
	From string `json:"from"`
	To   string `json:"to"`
	// Added lists items rejected in To but not in From.
	Added []report.RejectionReport `json:"added"`
	// Removed lists items rejected in From but not in To.
	Removed []report.RejectionReport `json:"removed"`
	Changed []ReasonChange           `json:"changed"`
}

// Empty reports whether the runs rejected the same items for the same
// reasons.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares the rejections recorded for two runs.
func (s *Store) Diff(ctx context.Context, from, to string) (*Diff, error) {
	for _, id := range []string{from, to} {
		if _, err := s.Run(ctx, id); err != nil {
			return nil, err
		}
	}
	before, err := s.Rejections(ctx, from)
	if err != nil {
		return nil, err
	}
	after, err := s.Rejections(ctx, to)
	if err != nil {
		return nil, err
	}
	return diffRejections(from, to, before, after), nil
}

func diffRejections(from, to string, before, after []report.RejectionReport) *Diff {
	key := func(r report.RejectionReport) string { return r.Kind + "\x00" + r.Item }
	old := make(map[string]report.RejectionReport, len(before))
	for _, r := range before {
		old[key(r)] = r
	}
	seen := make(map[string]bool, len(after))

	d := &Diff{From: from, To: to}
	for _, r := range after {
		k := key(r)
		seen[k] = true
		prev, ok := old[k]
		switch {
		case !ok:
			d.Added = append(d.Added, r)
		case prev.Reason != r.Reason:
			d.Changed = append(d.Changed, ReasonChange{Item: r.Item, Kind: r.Kind, From: prev.Reason, To: r.Reason})
		}
	}
	for _, r := range before {
		if !seen[key(r)] {
			d.Removed = append(d.Removed, r)
		}
	}
	sort.SliceStable(d.Changed, func(i, j int) bool { return d.Changed[i].Item < d.Changed[j].Item })
	return d
}
