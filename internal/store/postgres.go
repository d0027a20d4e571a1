package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	reads   readLimiter
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, readRPS int) (*PostgresStore, error) {
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, reads: newReadLimiter(readRPS), closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS employers (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	abn      TEXT,
	archived BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS compliance_assessments (
	id               TEXT PRIMARY KEY,
	employer_id      TEXT NOT NULL REFERENCES employers(id),
	project_id       TEXT NOT NULL,
	assessment_type  TEXT NOT NULL,
	score            DOUBLE PRECISION NOT NULL,
	confidence_level TEXT NOT NULL,
	severity_level   INTEGER NOT NULL DEFAULT 0,
	assessment_date  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS expertise_assessments (
	id               TEXT PRIMARY KEY,
	employer_id      TEXT NOT NULL REFERENCES employers(id),
	assessor_id      TEXT NOT NULL,
	overall_score    DOUBLE PRECISION NOT NULL,
	category_scores  JSONB,
	confidence_level TEXT NOT NULL,
	assessment_date  TIMESTAMPTZ NOT NULL,
	rationale        TEXT
);

CREATE TABLE IF NOT EXISTS weighting_profiles (
	name       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       JSONB NOT NULL,
	archived   BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (name, version)
);

CREATE TABLE IF NOT EXISTS final_ratings (
	id                   TEXT PRIMARY KEY,
	employer_id          TEXT NOT NULL REFERENCES employers(id),
	calculation_date     TIMESTAMPTZ NOT NULL,
	final_score          DOUBLE PRECISION,
	final_band           TEXT NOT NULL,
	project_band         TEXT NOT NULL,
	expertise_band       TEXT NOT NULL,
	overall_confidence   TEXT NOT NULL,
	data_completeness    DOUBLE PRECISION NOT NULL,
	discrepancy_detected BOOLEAN NOT NULL,
	discrepancy_severity TEXT NOT NULL,
	profile_name         TEXT NOT NULL,
	profile_version      INTEGER NOT NULL,
	inputs_snapshot      JSONB NOT NULL,
	stale_profile        BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id     TEXT PRIMARY KEY,
	kind   TEXT NOT NULL,
	actor  TEXT NOT NULL,
	ts     TIMESTAMPTZ NOT NULL,
	before JSONB,
	after  JSONB,
	reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_compliance_employer_date ON compliance_assessments(employer_id, assessment_date);
CREATE INDEX IF NOT EXISTS idx_expertise_employer_date ON expertise_assessments(employer_id, assessment_date);
CREATE INDEX IF NOT EXISTS idx_ratings_employer_date ON final_ratings(employer_id, calculation_date DESC);
CREATE INDEX IF NOT EXISTS idx_audit_kind_ts ON audit_log(kind, ts);
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

func (s *PostgresStore) GetEmployer(ctx context.Context, id string) (*model.Employer, error) {
	var e model.Employer
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(abn, ''), archived FROM employers WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.ABN, &e.Archived)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrEmployerNotFound, "postgres: employer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get employer %s", id)
	}
	return &e, nil
}

func (s *PostgresStore) ListEmployerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM employers WHERE archived = false ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list employers")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan employer id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate employers")
}

func (s *PostgresStore) ComplianceAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ComplianceAssessment, error) {
	if err := s.reads.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: read limiter")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, employer_id, project_id, assessment_type, score,
		       confidence_level, severity_level, assessment_date
		FROM compliance_assessments
		WHERE employer_id = $1 AND assessment_date <= $2
		ORDER BY assessment_date, id`,
		employerID, asOf.UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query compliance assessments for %s", employerID)
	}
	defer rows.Close()

	var out []model.ComplianceAssessment
	for rows.Next() {
		var a model.ComplianceAssessment
		if err := rows.Scan(&a.ID, &a.EmployerID, &a.ProjectID, &a.AssessmentType,
			&a.Score, &a.ConfidenceLevel, &a.SeverityLevel, &a.AssessmentDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan compliance assessment")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate compliance assessments")
}

func (s *PostgresStore) ExpertiseAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ExpertiseAssessment, error) {
	if err := s.reads.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: read limiter")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, employer_id, assessor_id, overall_score, category_scores,
		       confidence_level, assessment_date, COALESCE(rationale, '')
		FROM expertise_assessments
		WHERE employer_id = $1 AND assessment_date <= $2
		ORDER BY assessment_date, id`,
		employerID, asOf.UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query expertise assessments for %s", employerID)
	}
	defer rows.Close()

	var out []model.ExpertiseAssessment
	for rows.Next() {
		var a model.ExpertiseAssessment
		var categories []byte
		if err := rows.Scan(&a.ID, &a.EmployerID, &a.AssessorID, &a.OverallScore,
			&categories, &a.ConfidenceLevel, &a.AssessmentDate, &a.Rationale); err != nil {
			return nil, eris.Wrap(err, "postgres: scan expertise assessment")
		}
		if len(categories) > 0 {
			if err := json.Unmarshal(categories, &a.CategoryScores); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal category scores for %s", a.ID)
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate expertise assessments")
}

func (s *PostgresStore) GetProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error) {
	query := `SELECT data FROM weighting_profiles WHERE name = $1 AND version = $2`
	args := []any{name, version}
	if version == 0 {
		query = `SELECT data FROM weighting_profiles WHERE name = $1 ORDER BY version DESC LIMIT 1`
		args = []any{name}
	}

	var data []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&data)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrProfileNotFound, "postgres: profile %s v%d", name, version)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", name)
	}

	var p model.WeightingProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal profile %s", name)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p model.WeightingProfile) (*model.WeightingProfile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin save profile")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current *int
	if err := tx.QueryRow(ctx,
		`SELECT MAX(version) FROM weighting_profiles WHERE name = $1`, p.Name,
	).Scan(&current); err != nil {
		return nil, eris.Wrapf(err, "postgres: current version of %s", p.Name)
	}
	if current != nil {
		p.Version = *current + 1
	} else {
		p.Version = 1
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal profile %s", p.Name)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO weighting_profiles (name, version, data, archived) VALUES ($1, $2, $3, $4)`,
		p.Name, p.Version, data, p.Archived,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert profile %s v%d", p.Name, p.Version)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit save profile")
	}
	return &p, nil
}

func (s *PostgresStore) ArchiveProfile(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE weighting_profiles SET archived = true WHERE name = $1`, name)
	return eris.Wrapf(err, "postgres: archive profile %s", name)
}

func (s *PostgresStore) CurrentProfileVersion(ctx context.Context, name string) (int, error) {
	var v *int
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(version) FROM weighting_profiles WHERE name = $1`, name,
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: current version of %s", name)
	}
	if v == nil {
		return 0, eris.Wrapf(model.ErrProfileNotFound, "postgres: profile %s", name)
	}
	return *v, nil
}

func (s *PostgresStore) InsertRating(ctx context.Context, r *model.FinalRating) error {
	snapshot, err := json.Marshal(r.InputsSnapshot)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal inputs snapshot for %s", r.EmployerID)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO final_ratings
			(id, employer_id, calculation_date, final_score, final_band,
			 project_band, expertise_band, overall_confidence, data_completeness,
			 discrepancy_detected, discrepancy_severity, profile_name,
			 profile_version, inputs_snapshot, stale_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.EmployerID, r.CalculationDate.UTC(), r.FinalScore, string(r.FinalBand),
		string(r.ProjectBand), string(r.ExpertiseBand), string(r.OverallConfidence),
		r.DataCompleteness, r.DiscrepancyDetected, string(r.DiscrepancySeverity),
		r.ProfileName, r.ProfileVersion, snapshot, r.StaleProfile,
	)
	return eris.Wrapf(err, "postgres: insert rating for %s", r.EmployerID)
}

func (s *PostgresStore) LatestRating(ctx context.Context, employerID string) (*model.FinalRating, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, employer_id, calculation_date, final_score, final_band,
		       project_band, expertise_band, overall_confidence, data_completeness,
		       discrepancy_detected, discrepancy_severity, profile_name,
		       profile_version, inputs_snapshot, stale_profile
		FROM final_ratings
		WHERE employer_id = $1
		ORDER BY calculation_date DESC, created_at DESC
		LIMIT 1`, employerID)

	var r model.FinalRating
	var snapshot []byte
	err := row.Scan(&r.ID, &r.EmployerID, &r.CalculationDate, &r.FinalScore, &r.FinalBand,
		&r.ProjectBand, &r.ExpertiseBand, &r.OverallConfidence, &r.DataCompleteness,
		&r.DiscrepancyDetected, &r.DiscrepancySeverity, &r.ProfileName,
		&r.ProfileVersion, &snapshot, &r.StaleProfile)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest rating for %s", employerID)
	}
	if err := json.Unmarshal(snapshot, &r.InputsSnapshot); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal inputs snapshot for %s", employerID)
	}
	return &r, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, kind, actor, ts, before, after, reason) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, string(e.Kind), e.Actor, e.Timestamp.UTC(), jsonOrNil(e.Before), jsonOrNil(e.After), e.Reason,
	)
	return eris.Wrapf(err, "postgres: append audit %s", e.Kind)
}

func jsonOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
