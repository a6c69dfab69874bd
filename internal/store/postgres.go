package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/db"
	"github.com/hillwinds/benetl/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_watermark":      `SELECT position FROM watermarks WHERE source = $1`,
	"insert_run_metrics": `INSERT INTO run_metrics (run_id, status, full_refresh, rows_read, rows_cleaned, rows_valid, rows_flagged, rows_enriched, rows_written, duplicate_claims, eins_inferred, started_at, completed_at, elapsed_ms, error) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

// NewPostgresWithPool wraps an existing pool. Tests use it with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS employees (
	person_id    TEXT NOT NULL,
	start_date   TEXT NOT NULL,
	full_name    TEXT NOT NULL,
	title        TEXT,
	email        TEXT NOT NULL,
	company_ein  TEXT,
	inferred_ein TEXT,
	notes        TEXT,
	attributes   JSONB NOT NULL DEFAULT '{}',
	enriched_at  TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (person_id, start_date)
);

CREATE TABLE IF NOT EXISTS plans (
	plan_id     TEXT PRIMARY KEY,
	company_ein TEXT NOT NULL,
	plan_type   TEXT NOT NULL,
	carrier     TEXT,
	start_date  TEXT NOT NULL,
	end_date    TEXT
);

CREATE TABLE IF NOT EXISTS claims (
	claim_id     TEXT PRIMARY KEY,
	person_id    TEXT,
	company_ein  TEXT,
	service_date TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	claim_type   TEXT
);

CREATE TABLE IF NOT EXISTS watermarks (
	source     TEXT PRIMARY KEY,
	position   TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS validation_errors (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source      TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	rules       JSONB NOT NULL,
	reason      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	record      TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id           TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	full_refresh     BOOLEAN NOT NULL DEFAULT false,
	rows_read        INTEGER NOT NULL DEFAULT 0,
	rows_cleaned     INTEGER NOT NULL DEFAULT 0,
	rows_valid       INTEGER NOT NULL DEFAULT 0,
	rows_flagged     INTEGER NOT NULL DEFAULT 0,
	rows_enriched    INTEGER NOT NULL DEFAULT 0,
	rows_written     INTEGER NOT NULL DEFAULT 0,
	duplicate_claims INTEGER NOT NULL DEFAULT 0,
	eins_inferred    INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ NOT NULL,
	elapsed_ms       BIGINT NOT NULL DEFAULT 0,
	error            TEXT
);

CREATE TABLE IF NOT EXISTS analysis_gaps (
	company_ein  TEXT NOT NULL,
	plan_type    TEXT NOT NULL,
	gap_start    TEXT NOT NULL,
	gap_end      TEXT NOT NULL,
	gap_days     INTEGER NOT NULL,
	prev_carrier TEXT,
	next_carrier TEXT
);

CREATE TABLE IF NOT EXISTS analysis_spikes (
	company_ein   TEXT NOT NULL,
	bucket_start  TEXT NOT NULL,
	bucket_end    TEXT NOT NULL,
	prev_cost     DOUBLE PRECISION NOT NULL,
	curr_cost     DOUBLE PRECISION NOT NULL,
	pct_change    DOUBLE PRECISION NOT NULL,
	zero_baseline BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS analysis_roster (
	company_ein TEXT NOT NULL,
	expected    INTEGER NOT NULL,
	actual      INTEGER NOT NULL,
	delta       INTEGER NOT NULL,
	pct_diff    DOUBLE PRECISION NOT NULL,
	severity    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_employees_company ON employees(company_ein);
CREATE INDEX IF NOT EXISTS idx_plans_company ON plans(company_ein, plan_type);
CREATE INDEX IF NOT EXISTS idx_claims_company ON claims(company_ein, service_date);
CREATE INDEX IF NOT EXISTS idx_validation_errors_source ON validation_errors(source, detected_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) Watermark(ctx context.Context, src string) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT position FROM watermarks WHERE source = $1`, src,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: watermark for %s", src)
	}
	return &t, nil
}

var (
	employeeUpsert = db.UpsertConfig{
		Table:        "employees",
		Columns:      []string{"person_id", "start_date", "full_name", "title", "email", "company_ein", "inferred_ein", "notes", "attributes", "enriched_at", "updated_at"},
		ConflictKeys: []string{"person_id", "start_date"},
	}
	planUpsert = db.UpsertConfig{
		Table:        "plans",
		Columns:      []string{"plan_id", "company_ein", "plan_type", "carrier", "start_date", "end_date"},
		ConflictKeys: []string{"plan_id"},
	}
	claimUpsert = db.UpsertConfig{
		Table:        "claims",
		Columns:      []string{"claim_id", "person_id", "company_ein", "service_date", "amount", "claim_type"},
		ConflictKeys: []string{"claim_id"},
	}
)

func (s *PostgresStore) MergeBatch(ctx context.Context, batch *Batch) (*MergeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin merge tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	res := &MergeResult{}

	empRows := make([][]any, 0, len(batch.Employees))
	for _, e := range batch.Employees {
		attrsJSON, err := json.Marshal(e.Attributes)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal attributes")
		}
		var enrichedAt *time.Time
		if !e.EnrichedAt.IsZero() {
			enrichedAt = &e.EnrichedAt
		}
		empRows = append(empRows, []any{
			e.PersonID, e.StartDate.String(), e.FullName, e.Title, e.Email,
			e.CompanyEIN, e.InferredEIN, e.Notes, attrsJSON, enrichedAt, now,
		})
	}
	n, err := db.BulkUpsertTx(ctx, tx, employeeUpsert, empRows)
	if err != nil {
		return nil, err
	}
	res.EmployeesWritten = int(n)

	planRows := make([][]any, 0, len(batch.Plans))
	for _, p := range batch.Plans {
		var endDate *string
		if p.EndDate.Valid {
			v := p.EndDate.String()
			endDate = &v
		}
		planRows = append(planRows, []any{
			p.PlanID, p.CompanyEIN, string(p.PlanType), p.Carrier, p.StartDate.String(), endDate,
		})
	}
	n, err = db.BulkUpsertTx(ctx, tx, planUpsert, planRows)
	if err != nil {
		return nil, err
	}
	res.PlansWritten = int(n)

	claimRows := make([][]any, 0, len(batch.Claims))
	for _, c := range batch.Claims {
		claimRows = append(claimRows, []any{
			c.ClaimID, c.PersonID, c.CompanyEIN, c.ServiceDate.String(), c.Amount, c.ClaimType,
		})
	}
	n, err = db.BulkUpsertTx(ctx, tx, claimUpsert, claimRows)
	if err != nil {
		return nil, err
	}
	res.ClaimsWritten = int(n)

	for src, pos := range batch.Watermarks {
		_, err = tx.Exec(ctx,
			`INSERT INTO watermarks (source, position, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (source) DO UPDATE SET position = $2, updated_at = $3`,
			src, pos.UTC(), now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: advance watermark %s", src)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit merge")
	}
	return res, nil
}

func (s *PostgresStore) AppendValidationErrors(ctx context.Context, errs []model.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(errs))
	for _, ve := range errs {
		rulesJSON, err := json.Marshal(ve.Rules)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal rules")
		}
		rows = append(rows, []any{
			uuid.New().String(), ve.Source, ve.RecordKey, rulesJSON,
			ve.Reason, string(ve.Severity), ve.Record, ve.DetectedAt,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "validation_errors",
		[]string{"id", "source", "record_key", "rules", "reason", "severity", "record", "detected_at"},
		rows,
	)
	return err
}

func (s *PostgresStore) AppendRunMetrics(ctx context.Context, m *model.RunMetrics) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_metrics (run_id, status, full_refresh, rows_read, rows_cleaned, rows_valid,
			rows_flagged, rows_enriched, rows_written, duplicate_claims, eins_inferred,
			started_at, completed_at, elapsed_ms, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.RunID, string(m.Status), m.FullRefresh, m.RowsRead, m.RowsCleaned, m.RowsValid,
		m.RowsFlagged, m.RowsEnriched, m.RowsWritten, m.DuplicateClaims, m.EINsInferred,
		m.StartedAt, m.CompletedAt, m.ElapsedMS, m.Error,
	)
	return eris.Wrapf(err, "postgres: append run metrics %s", m.RunID)
}

func (s *PostgresStore) ListRunMetrics(ctx context.Context, limit int) ([]model.RunMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, status, full_refresh, rows_read, rows_cleaned, rows_valid,
			rows_flagged, rows_enriched, rows_written, duplicate_claims, eins_inferred,
			started_at, completed_at, elapsed_ms, COALESCE(error, '')
		 FROM run_metrics ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run metrics")
	}
	defer rows.Close()

	var out []model.RunMetrics
	for rows.Next() {
		var m model.RunMetrics
		var status string
		if err := rows.Scan(&m.RunID, &status, &m.FullRefresh, &m.RowsRead, &m.RowsCleaned,
			&m.RowsValid, &m.RowsFlagged, &m.RowsEnriched, &m.RowsWritten,
			&m.DuplicateClaims, &m.EINsInferred, &m.StartedAt, &m.CompletedAt,
			&m.ElapsedMS, &m.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run metrics")
		}
		m.Status = model.RunStatus(status)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list run metrics iterate")
}

func (s *PostgresStore) Employees(ctx context.Context) ([]model.EnrichedEmployee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT person_id, start_date, full_name, COALESCE(title, ''), email,
			COALESCE(company_ein, ''), COALESCE(inferred_ein, ''), COALESCE(notes, ''),
			attributes, enriched_at
		 FROM employees ORDER BY person_id, start_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list employees")
	}
	defer rows.Close()

	var out []model.EnrichedEmployee
	for rows.Next() {
		var e model.EnrichedEmployee
		var startDate string
		var attrsJSON []byte
		var enrichedAt *time.Time
		if err := rows.Scan(&e.PersonID, &startDate, &e.FullName, &e.Title, &e.Email,
			&e.CompanyEIN, &e.InferredEIN, &e.Notes, &attrsJSON, &enrichedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan employee")
		}
		e.StartDate = model.ParseDate(startDate)
		if enrichedAt != nil {
			e.EnrichedAt = *enrichedAt
		}
		if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attributes")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list employees iterate")
}

func (s *PostgresStore) Plans(ctx context.Context) ([]model.Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT plan_id, company_ein, plan_type, COALESCE(carrier, ''), start_date, COALESCE(end_date, '')
		 FROM plans ORDER BY company_ein, plan_type, start_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list plans")
	}
	defer rows.Close()

	var out []model.Plan
	for rows.Next() {
		var p model.Plan
		var planType, startDate, endDate string
		if err := rows.Scan(&p.PlanID, &p.CompanyEIN, &planType, &p.Carrier, &startDate, &endDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		p.PlanType = model.PlanType(planType)
		p.StartDate = model.ParseDate(startDate)
		p.EndDate = model.ParseDate(endDate)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list plans iterate")
}

func (s *PostgresStore) Claims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT claim_id, COALESCE(person_id, ''), COALESCE(company_ein, ''), service_date, amount, COALESCE(claim_type, '')
		 FROM claims ORDER BY company_ein, service_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list claims")
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		var c model.Claim
		var serviceDate string
		if err := rows.Scan(&c.ClaimID, &c.PersonID, &c.CompanyEIN, &serviceDate, &c.Amount, &c.ClaimType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim")
		}
		c.ServiceDate = model.ParseDate(serviceDate)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list claims iterate")
}

func (s *PostgresStore) EmployeeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(NULLIF(company_ein, ''), NULLIF(inferred_ein, ''), '') AS ein,
			COUNT(DISTINCT person_id)
		 FROM employees GROUP BY 1`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: employee counts")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ein string
		var n int
		if err := rows.Scan(&ein, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan employee count")
		}
		if ein == "" {
			continue
		}
		out[ein] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: employee counts iterate")
}

func (s *PostgresStore) ReplaceGaps(ctx context.Context, gaps []analytics.Gap) error {
	rows := make([][]any, 0, len(gaps))
	for _, g := range gaps {
		rows = append(rows, []any{
			g.CompanyEIN, g.PlanType, isoDate(g.GapStart), isoDate(g.GapEnd),
			g.GapDays, g.PrevCarrier, g.NextCarrier,
		})
	}
	return s.replaceRows(ctx, "analysis_gaps",
		[]string{"company_ein", "plan_type", "gap_start", "gap_end", "gap_days", "prev_carrier", "next_carrier"},
		rows)
}

func (s *PostgresStore) ReplaceSpikes(ctx context.Context, spikes []analytics.Spike) error {
	rows := make([][]any, 0, len(spikes))
	for _, sp := range spikes {
		rows = append(rows, []any{
			sp.CompanyEIN, isoDate(sp.BucketStart), isoDate(sp.BucketEnd),
			sp.PrevCost, sp.CurrCost, sp.PctChange, sp.ZeroBaseline,
		})
	}
	return s.replaceRows(ctx, "analysis_spikes",
		[]string{"company_ein", "bucket_start", "bucket_end", "prev_cost", "curr_cost", "pct_change", "zero_baseline"},
		rows)
}

func (s *PostgresStore) ReplaceRoster(ctx context.Context, mismatches []analytics.Mismatch) error {
	rows := make([][]any, 0, len(mismatches))
	for _, m := range mismatches {
		rows = append(rows, []any{
			m.CompanyEIN, m.Expected, m.Actual, m.Delta, m.PctDiff, m.Severity,
		})
	}
	return s.replaceRows(ctx, "analysis_roster",
		[]string{"company_ein", "expected", "actual", "delta", "pct_diff", "severity"},
		rows)
}

// replaceRows clears a result table and refills it with COPY inside one
// transaction.
func (s *PostgresStore) replaceRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin replace %s", table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM `+pgx.Identifier{table}.Sanitize()); err != nil {
		return eris.Wrapf(err, "postgres: clear %s", table)
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrapf(err, "postgres: COPY into %s", table)
		}
	}
	return eris.Wrapf(tx.Commit(ctx), "postgres: commit replace %s", table)
}

func (s *PostgresStore) Gaps(ctx context.Context) ([]analytics.Gap, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_ein, plan_type, gap_start, gap_end, gap_days,
			COALESCE(prev_carrier, ''), COALESCE(next_carrier, '')
		 FROM analysis_gaps ORDER BY company_ein, plan_type, gap_start`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list gaps")
	}
	defer rows.Close()

	var out []analytics.Gap
	for rows.Next() {
		var g analytics.Gap
		var start, end string
		if err := rows.Scan(&g.CompanyEIN, &g.PlanType, &start, &end, &g.GapDays,
			&g.PrevCarrier, &g.NextCarrier); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap")
		}
		g.GapStart = model.ParseDate(start).Time
		g.GapEnd = model.ParseDate(end).Time
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list gaps iterate")
}

func (s *PostgresStore) Spikes(ctx context.Context) ([]analytics.Spike, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_ein, bucket_start, bucket_end, prev_cost, curr_cost, pct_change, zero_baseline
		 FROM analysis_spikes ORDER BY company_ein, bucket_start`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list spikes")
	}
	defer rows.Close()

	var out []analytics.Spike
	for rows.Next() {
		var sp analytics.Spike
		var start, end string
		if err := rows.Scan(&sp.CompanyEIN, &start, &end, &sp.PrevCost, &sp.CurrCost,
			&sp.PctChange, &sp.ZeroBaseline); err != nil {
			return nil, eris.Wrap(err, "postgres: scan spike")
		}
		sp.BucketStart = model.ParseDate(start).Time
		sp.BucketEnd = model.ParseDate(end).Time
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list spikes iterate")
}

func (s *PostgresStore) Roster(ctx context.Context) ([]analytics.Mismatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_ein, expected, actual, delta, pct_diff, severity
		 FROM analysis_roster ORDER BY pct_diff DESC, company_ein`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list roster")
	}
	defer rows.Close()

	var out []analytics.Mismatch
	for rows.Next() {
		var m analytics.Mismatch
		if err := rows.Scan(&m.CompanyEIN, &m.Expected, &m.Actual, &m.Delta, &m.PctDiff, &m.Severity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan roster mismatch")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list roster iterate")
}

const postgresViews = `
DROP VIEW IF EXISTS v_plan_gaps;
CREATE VIEW v_plan_gaps AS
	SELECT company_ein, plan_type, gap_start, gap_end, gap_days, prev_carrier, next_carrier
	FROM analysis_gaps;

DROP VIEW IF EXISTS v_claims_cost_spike;
CREATE VIEW v_claims_cost_spike AS
	SELECT company_ein, bucket_start, bucket_end, prev_cost, curr_cost, pct_change, zero_baseline
	FROM analysis_spikes;

DROP VIEW IF EXISTS v_roster_mismatch;
CREATE VIEW v_roster_mismatch AS
	SELECT company_ein, expected, actual, delta, pct_diff, severity
	FROM analysis_roster;
`

func (s *PostgresStore) RebuildViews(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresViews)
	return eris.Wrap(err, "postgres: rebuild views")
}
