package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS employees (
	person_id    TEXT NOT NULL,
	start_date   TEXT NOT NULL,
	full_name    TEXT NOT NULL,
	title        TEXT,
	email        TEXT NOT NULL,
	company_ein  TEXT,
	inferred_ein TEXT,
	notes        TEXT,
	attributes   TEXT NOT NULL DEFAULT '{}',
	enriched_at  DATETIME,
	updated_at   DATETIME NOT NULL,
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
	amount       REAL NOT NULL,
	claim_type   TEXT
);

CREATE TABLE IF NOT EXISTS watermarks (
	source     TEXT PRIMARY KEY,
	position   DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS validation_errors (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	rules       TEXT NOT NULL,
	reason      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	record      TEXT NOT NULL,
	detected_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id           TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	full_refresh     INTEGER NOT NULL DEFAULT 0,
	rows_read        INTEGER NOT NULL DEFAULT 0,
	rows_cleaned     INTEGER NOT NULL DEFAULT 0,
	rows_valid       INTEGER NOT NULL DEFAULT 0,
	rows_flagged     INTEGER NOT NULL DEFAULT 0,
	rows_enriched    INTEGER NOT NULL DEFAULT 0,
	rows_written     INTEGER NOT NULL DEFAULT 0,
	duplicate_claims INTEGER NOT NULL DEFAULT 0,
	eins_inferred    INTEGER NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME NOT NULL,
	elapsed_ms       INTEGER NOT NULL DEFAULT 0,
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
	prev_cost     REAL NOT NULL,
	curr_cost     REAL NOT NULL,
	pct_change    REAL NOT NULL,
	zero_baseline INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS analysis_roster (
	company_ein TEXT NOT NULL,
	expected    INTEGER NOT NULL,
	actual      INTEGER NOT NULL,
	delta       INTEGER NOT NULL,
	pct_diff    REAL NOT NULL,
	severity    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_employees_company ON employees(company_ein);
CREATE INDEX IF NOT EXISTS idx_plans_company ON plans(company_ein, plan_type);
CREATE INDEX IF NOT EXISTS idx_claims_company ON claims(company_ein, service_date);
CREATE INDEX IF NOT EXISTS idx_validation_errors_source ON validation_errors(source, detected_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Watermark(ctx context.Context, src string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT position FROM watermarks WHERE source = ?`, src,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: watermark for %s", src)
	}
	return &t, nil
}

func (s *SQLiteStore) MergeBatch(ctx context.Context, batch *Batch) (*MergeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin merge tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res := &MergeResult{}

	for _, e := range batch.Employees {
		attrsJSON, err := json.Marshal(e.Attributes)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal attributes")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO employees (person_id, start_date, full_name, title, email, company_ein, inferred_ein, notes, attributes, enriched_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (person_id, start_date) DO UPDATE SET
				full_name = excluded.full_name,
				title = excluded.title,
				email = excluded.email,
				company_ein = excluded.company_ein,
				inferred_ein = excluded.inferred_ein,
				notes = excluded.notes,
				attributes = excluded.attributes,
				enriched_at = excluded.enriched_at,
				updated_at = excluded.updated_at`,
			e.PersonID, e.StartDate.String(), e.FullName, e.Title, e.Email,
			e.CompanyEIN, e.InferredEIN, e.Notes, string(attrsJSON), e.EnrichedAt, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert employee %s", e.Key())
		}
		res.EmployeesWritten++
	}

	for _, p := range batch.Plans {
		var endDate any
		if p.EndDate.Valid {
			endDate = p.EndDate.String()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plans (plan_id, company_ein, plan_type, carrier, start_date, end_date)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (plan_id) DO UPDATE SET
				company_ein = excluded.company_ein,
				plan_type = excluded.plan_type,
				carrier = excluded.carrier,
				start_date = excluded.start_date,
				end_date = excluded.end_date`,
			p.PlanID, p.CompanyEIN, string(p.PlanType), p.Carrier, p.StartDate.String(), endDate,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert plan %s", p.PlanID)
		}
		res.PlansWritten++
	}

	for _, c := range batch.Claims {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO claims (claim_id, person_id, company_ein, service_date, amount, claim_type)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (claim_id) DO UPDATE SET
				person_id = excluded.person_id,
				company_ein = excluded.company_ein,
				service_date = excluded.service_date,
				amount = excluded.amount,
				claim_type = excluded.claim_type`,
			c.ClaimID, c.PersonID, c.CompanyEIN, c.ServiceDate.String(), c.Amount, c.ClaimType,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert claim %s", c.ClaimID)
		}
		res.ClaimsWritten++
	}

	for src, pos := range batch.Watermarks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO watermarks (source, position, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (source) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
			src, pos.UTC(), now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: advance watermark %s", src)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit merge")
	}
	return res, nil
}

func (s *SQLiteStore) AppendValidationErrors(ctx context.Context, errs []model.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin audit tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, ve := range errs {
		rulesJSON, err := json.Marshal(ve.Rules)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal rules")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO validation_errors (id, source, record_key, rules, reason, severity, record, detected_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), ve.Source, ve.RecordKey, string(rulesJSON),
			ve.Reason, string(ve.Severity), ve.Record, ve.DetectedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: append validation error for %s", ve.RecordKey)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit audit")
}

func (s *SQLiteStore) AppendRunMetrics(ctx context.Context, m *model.RunMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_metrics (run_id, status, full_refresh, rows_read, rows_cleaned, rows_valid,
			rows_flagged, rows_enriched, rows_written, duplicate_claims, eins_inferred,
			started_at, completed_at, elapsed_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, string(m.Status), m.FullRefresh, m.RowsRead, m.RowsCleaned, m.RowsValid,
		m.RowsFlagged, m.RowsEnriched, m.RowsWritten, m.DuplicateClaims, m.EINsInferred,
		m.StartedAt, m.CompletedAt, m.ElapsedMS, m.Error,
	)
	return eris.Wrapf(err, "sqlite: append run metrics %s", m.RunID)
}

func (s *SQLiteStore) ListRunMetrics(ctx context.Context, limit int) ([]model.RunMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, status, full_refresh, rows_read, rows_cleaned, rows_valid,
			rows_flagged, rows_enriched, rows_written, duplicate_claims, eins_inferred,
			started_at, completed_at, elapsed_ms, COALESCE(error, '')
		 FROM run_metrics ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run metrics")
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
			return nil, eris.Wrap(err, "sqlite: scan run metrics")
		}
		m.Status = model.RunStatus(status)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list run metrics iterate")
}

func (s *SQLiteStore) Employees(ctx context.Context) ([]model.EnrichedEmployee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, start_date, full_name, COALESCE(title, ''), email,
			COALESCE(company_ein, ''), COALESCE(inferred_ein, ''), COALESCE(notes, ''),
			attributes, enriched_at
		 FROM employees ORDER BY person_id, start_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list employees")
	}
	defer rows.Close()

	var out []model.EnrichedEmployee
	for rows.Next() {
		var e model.EnrichedEmployee
		var startDate, attrsJSON string
		var enrichedAt sql.NullTime
		if err := rows.Scan(&e.PersonID, &startDate, &e.FullName, &e.Title, &e.Email,
			&e.CompanyEIN, &e.InferredEIN, &e.Notes, &attrsJSON, &enrichedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan employee")
		}
		e.StartDate = model.ParseDate(startDate)
		if enrichedAt.Valid {
			e.EnrichedAt = enrichedAt.Time
		}
		if err := json.Unmarshal([]byte(attrsJSON), &e.Attributes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attributes")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list employees iterate")
}

func (s *SQLiteStore) Plans(ctx context.Context) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT plan_id, company_ein, plan_type, COALESCE(carrier, ''), start_date, COALESCE(end_date, '')
		 FROM plans ORDER BY company_ein, plan_type, start_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list plans")
	}
	defer rows.Close()

	var out []model.Plan
	for rows.Next() {
		var p model.Plan
		var planType, startDate, endDate string
		if err := rows.Scan(&p.PlanID, &p.CompanyEIN, &planType, &p.Carrier, &startDate, &endDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan")
		}
		p.PlanType = model.PlanType(planType)
		p.StartDate = model.ParseDate(startDate)
		p.EndDate = model.ParseDate(endDate)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list plans iterate")
}

func (s *SQLiteStore) Claims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT claim_id, COALESCE(person_id, ''), COALESCE(company_ein, ''), service_date, amount, COALESCE(claim_type, '')
		 FROM claims ORDER BY company_ein, service_date`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list claims")
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		var c model.Claim
		var serviceDate string
		if err := rows.Scan(&c.ClaimID, &c.PersonID, &c.CompanyEIN, &serviceDate, &c.Amount, &c.ClaimType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		c.ServiceDate = model.ParseDate(serviceDate)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list claims iterate")
}

func (s *SQLiteStore) EmployeeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(NULLIF(company_ein, ''), NULLIF(inferred_ein, ''), '') AS ein,
			COUNT(DISTINCT person_id)
		 FROM employees GROUP BY ein`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: employee counts")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ein string
		var n int
		if err := rows.Scan(&ein, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan employee count")
		}
		if ein == "" {
			continue
		}
		out[ein] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: employee counts iterate")
}

func (s *SQLiteStore) ReplaceGaps(ctx context.Context, gaps []analytics.Gap) error {
	return s.replaceRows(ctx, "analysis_gaps", func(tx *sql.Tx) error {
		for _, g := range gaps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analysis_gaps (company_ein, plan_type, gap_start, gap_end, gap_days, prev_carrier, next_carrier)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				g.CompanyEIN, g.PlanType, isoDate(g.GapStart), isoDate(g.GapEnd),
				g.GapDays, g.PrevCarrier, g.NextCarrier,
			); err != nil {
				return eris.Wrap(err, "sqlite: insert gap")
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceSpikes(ctx context.Context, spikes []analytics.Spike) error {
	return s.replaceRows(ctx, "analysis_spikes", func(tx *sql.Tx) error {
		for _, sp := range spikes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analysis_spikes (company_ein, bucket_start, bucket_end, prev_cost, curr_cost, pct_change, zero_baseline)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sp.CompanyEIN, isoDate(sp.BucketStart), isoDate(sp.BucketEnd),
				sp.PrevCost, sp.CurrCost, sp.PctChange, sp.ZeroBaseline,
			); err != nil {
				return eris.Wrap(err, "sqlite: insert spike")
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceRoster(ctx context.Context, mismatches []analytics.Mismatch) error {
	return s.replaceRows(ctx, "analysis_roster", func(tx *sql.Tx) error {
		for _, m := range mismatches {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analysis_roster (company_ein, expected, actual, delta, pct_diff, severity)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				m.CompanyEIN, m.Expected, m.Actual, m.Delta, m.PctDiff, m.Severity,
			); err != nil {
				return eris.Wrap(err, "sqlite: insert roster mismatch")
			}
		}
		return nil
	})
}

// replaceRows clears a result table and refills it inside one transaction.
func (s *SQLiteStore) replaceRows(ctx context.Context, table string, fill func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin replace %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return eris.Wrapf(err, "sqlite: clear %s", table)
	}
	if err := fill(tx); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit replace %s", table)
}

func (s *SQLiteStore) Gaps(ctx context.Context) ([]analytics.Gap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_ein, plan_type, gap_start, gap_end, gap_days,
			COALESCE(prev_carrier, ''), COALESCE(next_carrier, '')
		 FROM analysis_gaps ORDER BY company_ein, plan_type, gap_start`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list gaps")
	}
	defer rows.Close()

	var out []analytics.Gap
	for rows.Next() {
		var g analytics.Gap
		var start, end string
		if err := rows.Scan(&g.CompanyEIN, &g.PlanType, &start, &end, &g.GapDays,
			&g.PrevCarrier, &g.NextCarrier); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap")
		}
		g.GapStart = model.ParseDate(start).Time
		g.GapEnd = model.ParseDate(end).Time
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list gaps iterate")
}

func (s *SQLiteStore) Spikes(ctx context.Context) ([]analytics.Spike, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_ein, bucket_start, bucket_end, prev_cost, curr_cost, pct_change, zero_baseline
		 FROM analysis_spikes ORDER BY company_ein, bucket_start`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list spikes")
	}
	defer rows.Close()

	var out []analytics.Spike
	for rows.Next() {
		var sp analytics.Spike
		var start, end string
		if err := rows.Scan(&sp.CompanyEIN, &start, &end, &sp.PrevCost, &sp.CurrCost,
			&sp.PctChange, &sp.ZeroBaseline); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spike")
		}
		sp.BucketStart = model.ParseDate(start).Time
		sp.BucketEnd = model.ParseDate(end).Time
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list spikes iterate")
}

func (s *SQLiteStore) Roster(ctx context.Context) ([]analytics.Mismatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_ein, expected, actual, delta, pct_diff, severity
		 FROM analysis_roster ORDER BY pct_diff DESC, company_ein`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list roster")
	}
	defer rows.Close()

	var out []analytics.Mismatch
	for rows.Next() {
		var m analytics.Mismatch
		if err := rows.Scan(&m.CompanyEIN, &m.Expected, &m.Actual, &m.Delta, &m.PctDiff, &m.Severity); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan roster mismatch")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list roster iterate")
}

const sqliteViews = `
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

func (s *SQLiteStore) RebuildViews(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteViews)
	return eris.Wrap(err, "sqlite: rebuild views")
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}
