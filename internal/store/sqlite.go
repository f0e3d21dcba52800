package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as fixed-width UTC text so that string comparison
// matches time order.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(sqliteTimeFormat) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeFormat, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	listing_id   TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	rooms        TEXT NOT NULL DEFAULT '',
	price        REAL NOT NULL,
	area_name    TEXT NOT NULL DEFAULT '',
	station_name TEXT NOT NULL DEFAULT '',
	walk_minutes INTEGER NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	scraped_at   TEXT NOT NULL,
	route_name   TEXT NOT NULL DEFAULT '',
	route_tier   TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL,
	rank         INTEGER NOT NULL,
	components   TEXT,
	reasons      TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	result      TEXT,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_listings_rank ON listings(rank);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadResultSet(ctx context.Context) (*resultset.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(listingColumns, ", ")+` FROM listings ORDER BY rank`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load listings")
	}
	defer rows.Close()

	var items []model.ScoredListing
	for rows.Next() {
		var r listingRow
		var scrapedAt string
		var components, reasons sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &r.Rooms, &r.Price, &r.AreaName, &r.StationName,
			&r.WalkMinutes, &r.URL, &scrapedAt, &r.RouteName, &r.RouteTier,
			&r.Score, &r.Rank, &components, &reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		if r.ScrapedAt, err = parseTime(scrapedAt); err != nil {
			return nil, err
		}
		r.Components = []byte(components.String)
		r.Reasons = []byte(reasons.String)

		sl, err := r.toScored()
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load listings iterate")
	}
	return resultset.New(items), nil
}

func (s *SQLiteStore) SaveResultSet(ctx context.Context, rs *resultset.ResultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return eris.Wrap(err, "sqlite: clear listings")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(listingColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO listings (`+strings.Join(listingColumns, ", ")+`) VALUES (`+placeholders+`)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert listing")
	}
	defer stmt.Close()

	for _, sl := range rs.Items() {
		r, err := toRow(sl)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Title, r.Rooms, r.Price, r.AreaName, r.StationName,
			r.WalkMinutes, r.URL, formatTime(r.ScrapedAt), r.RouteName, r.RouteTier,
			r.Score, r.Rank, string(r.Components), string(r.Reasons),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert listing %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, trigger, string(model.RunStatusRunning), formatTime(now),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return err
	}
	var resultArg any
	if resultJSON != nil {
		resultArg = string(resultJSON)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = ?, finished_at = ? WHERE id = ?`,
		string(status), resultArg, formatTime(time.Now()), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, result, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON, finishedAt sql.NullString
	var startedAt string

	err := row.Scan(&r.ID, &r.Trigger, &r.Status, &resultJSON, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = &t
	}
	if resultJSON.Valid {
		if r.Result, err = unmarshalResult([]byte(resultJSON.String)); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
