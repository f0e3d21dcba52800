package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-finder/internal/db"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
	"finish_run": `UPDATE runs SET status = $1, result = $2, finished_at = $3 WHERE id = $4`,
	"get_run":    `SELECT id, source, status, result, started_at, finished_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	listing_id   TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	rooms        TEXT NOT NULL DEFAULT '',
	price        DOUBLE PRECISION NOT NULL,
	area_name    TEXT NOT NULL DEFAULT '',
	station_name TEXT NOT NULL DEFAULT '',
	walk_minutes INTEGER NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	scraped_at   TIMESTAMPTZ NOT NULL,
	route_name   TEXT NOT NULL DEFAULT '',
	route_tier   TEXT NOT NULL DEFAULT '',
	score        DOUBLE PRECISION NOT NULL,
	rank         INTEGER NOT NULL,
	components   JSONB,
	reasons      JSONB
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	result      JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_rank ON listings(rank);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadResultSet(ctx context.Context) (*resultset.ResultSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(listingColumns, ", ")+` FROM listings ORDER BY rank`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load listings")
	}
	defer rows.Close()

	var items []model.ScoredListing
	for rows.Next() {
		var r listingRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Rooms, &r.Price, &r.AreaName, &r.StationName,
			&r.WalkMinutes, &r.URL, &r.ScrapedAt, &r.RouteName, &r.RouteTier,
			&r.Score, &r.Rank, &r.Components, &r.Reasons); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		sl, err := r.toScored()
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load listings iterate")
	}
	return resultset.New(items), nil
}

// SaveResultSet replaces the listings table inside one transaction, bulk
// loading the new rows with COPY.
func (s *PostgresStore) SaveResultSet(ctx context.Context, rs *resultset.ResultSet) error {
	items := rs.Items()
	rows := make([][]any, 0, len(items))
	for _, sl := range items {
		r, err := toRow(sl)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			r.ID, r.Title, r.Rooms, r.Price, r.AreaName, r.StationName,
			r.WalkMinutes, r.URL, r.ScrapedAt, r.RouteName, r.RouteTier,
			r.Score, r.Rank, r.Components, r.Reasons,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM listings`); err != nil {
		return eris.Wrap(err, "postgres: clear listings")
	}
	if _, err := db.CopyFrom(ctx, tx, "listings", listingColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy listings")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save")
}

func (s *PostgresStore) CreateRun(ctx context.Context, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, trigger, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, result = $2, finished_at = $3 WHERE id = $4`,
		string(status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, result, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, started_at, finished_at FROM runs WHERE 1=1`
	var args []any
	n := 0
	next := func() string {
		n++
		return "$" + strconv.Itoa(n)
	}

	if filter.Status != "" {
		query += ` AND status = ` + next()
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ` + next()
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += ` LIMIT ` + next()
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + next()
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var resultJSON []byte
	err := row.Scan(&r.ID, &r.Trigger, &status, &resultJSON, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if r.Result, err = unmarshalResult(resultJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
