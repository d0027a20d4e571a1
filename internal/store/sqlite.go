package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	reads readLimiter
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, readRPS int) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db, reads: newReadLimiter(readRPS)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS employers (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	abn      TEXT,
	archived INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS compliance_assessments (
	id               TEXT PRIMARY KEY,
	employer_id      TEXT NOT NULL REFERENCES employers(id),
	project_id       TEXT NOT NULL,
	assessment_type  TEXT NOT NULL,
	score            REAL NOT NULL,
	confidence_level TEXT NOT NULL,
	severity_level   INTEGER NOT NULL DEFAULT 0,
	assessment_date  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS expertise_assessments (
	id               TEXT PRIMARY KEY,
	employer_id      TEXT NOT NULL REFERENCES employers(id),
	assessor_id      TEXT NOT NULL,
	overall_score    REAL NOT NULL,
	category_scores  TEXT,
	confidence_level TEXT NOT NULL,
	assessment_date  DATETIME NOT NULL,
	rationale        TEXT
);

CREATE TABLE IF NOT EXISTS weighting_profiles (
	name       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	archived   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (name, version)
);

CREATE TABLE IF NOT EXISTS final_ratings (
	id                   TEXT PRIMARY KEY,
	employer_id          TEXT NOT NULL REFERENCES employers(id),
	calculation_date     DATETIME NOT NULL,
	final_score          REAL,
	final_band           TEXT NOT NULL,
	project_band         TEXT NOT NULL,
	expertise_band       TEXT NOT NULL,
	overall_confidence   TEXT NOT NULL,
	data_completeness    REAL NOT NULL,
	discrepancy_detected INTEGER NOT NULL,
	discrepancy_severity TEXT NOT NULL,
	profile_name         TEXT NOT NULL,
	profile_version      INTEGER NOT NULL,
	inputs_snapshot      TEXT NOT NULL,
	stale_profile        INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	actor     TEXT NOT NULL,
	ts        DATETIME NOT NULL,
	before    TEXT,
	after     TEXT,
	reason    TEXT
);

CREATE INDEX IF NOT EXISTS idx_compliance_employer_date ON compliance_assessments(employer_id, assessment_date);
CREATE INDEX IF NOT EXISTS idx_expertise_employer_date ON expertise_assessments(employer_id, assessment_date);
CREATE INDEX IF NOT EXISTS idx_ratings_employer_date ON final_ratings(employer_id, calculation_date);
CREATE INDEX IF NOT EXISTS idx_audit_kind_ts ON audit_log(kind, ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetEmployer(ctx context.Context, id string) (*model.Employer, error) {
	var e model.Employer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(abn, ''), archived FROM employers WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.ABN, &e.Archived)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrEmployerNotFound, "sqlite: employer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get employer %s", id)
	}
	return &e, nil
}

func (s *SQLiteStore) ListEmployerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM employers WHERE archived = 0 ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list employers")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan employer id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate employers")
}

func (s *SQLiteStore) ComplianceAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ComplianceAssessment, error) {
	if err := s.reads.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sqlite: read limiter")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employer_id, project_id, assessment_type, score,
		       confidence_level, severity_level, assessment_date
		FROM compliance_assessments
		WHERE employer_id = ? AND assessment_date <= ?
		ORDER BY assessment_date, id`,
		employerID, asOf.UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query compliance assessments for %s", employerID)
	}
	defer rows.Close()

	var out []model.ComplianceAssessment
	for rows.Next() {
		var a model.ComplianceAssessment
		if err := rows.Scan(&a.ID, &a.EmployerID, &a.ProjectID, &a.AssessmentType,
			&a.Score, &a.ConfidenceLevel, &a.SeverityLevel, &a.AssessmentDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan compliance assessment")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate compliance assessments")
}

func (s *SQLiteStore) ExpertiseAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ExpertiseAssessment, error) {
	if err := s.reads.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sqlite: read limiter")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employer_id, assessor_id, overall_score,
		       COALESCE(category_scores, ''), confidence_level,
		       assessment_date, COALESCE(rationale, '')
		FROM expertise_assessments
		WHERE employer_id = ? AND assessment_date <= ?
		ORDER BY assessment_date, id`,
		employerID, asOf.UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query expertise assessments for %s", employerID)
	}
	defer rows.Close()

	var out []model.ExpertiseAssessment
	for rows.Next() {
		var a model.ExpertiseAssessment
		var categories string
		if err := rows.Scan(&a.ID, &a.EmployerID, &a.AssessorID, &a.OverallScore,
			&categories, &a.ConfidenceLevel, &a.AssessmentDate, &a.Rationale); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expertise assessment")
		}
		if categories != "" {
			if err := json.Unmarshal([]byte(categories), &a.CategoryScores); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal category scores for %s", a.ID)
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate expertise assessments")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error) {
	query := `SELECT data FROM weighting_profiles WHERE name = ? AND version = ?`
	args := []any{name, version}
	if version == 0 {
		query = `SELECT data FROM weighting_profiles WHERE name = ? ORDER BY version DESC LIMIT 1`
		args = []any{name}
	}

	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrProfileNotFound, "sqlite: profile %s v%d", name, version)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", name)
	}

	var p model.WeightingProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal profile %s", name)
	}
	return &p, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.WeightingProfile) (*model.WeightingProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin save profile")
	}
	defer tx.Rollback() //nolint:errcheck

	var current sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM weighting_profiles WHERE name = ?`, p.Name,
	).Scan(&current); err != nil {
		return nil, eris.Wrapf(err, "sqlite: current version of %s", p.Name)
	}
	p.Version = int(current.Int64) + 1

	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: marshal profile %s", p.Name)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO weighting_profiles (name, version, data, archived) VALUES (?, ?, ?, ?)`,
		p.Name, p.Version, string(data), p.Archived,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert profile %s v%d", p.Name, p.Version)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit save profile")
	}
	return &p, nil
}

func (s *SQLiteStore) ArchiveProfile(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE weighting_profiles SET archived = 1 WHERE name = ?`, name)
	return eris.Wrapf(err, "sqlite: archive profile %s", name)
}

func (s *SQLiteStore) CurrentProfileVersion(ctx context.Context, name string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM weighting_profiles WHERE name = ?`, name,
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: current version of %s", name)
	}
	if !v.Valid {
		return 0, eris.Wrapf(model.ErrProfileNotFound, "sqlite: profile %s", name)
	}
	return int(v.Int64), nil
}

func (s *SQLiteStore) InsertRating(ctx context.Context, r *model.FinalRating) error {
	snapshot, err := json.Marshal(r.InputsSnapshot)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal inputs snapshot for %s", r.EmployerID)
	}

	var score any
	if r.FinalScore != nil {
		score = *r.FinalScore
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO final_ratings
			(id, employer_id, calculation_date, final_score, final_band,
			 project_band, expertise_band, overall_confidence, data_completeness,
			 discrepancy_detected, discrepancy_severity, profile_name,
			 profile_version, inputs_snapshot, stale_profile)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployerID, r.CalculationDate.UTC(), score, r.FinalBand,
		r.ProjectBand, r.ExpertiseBand, r.OverallConfidence, r.DataCompleteness,
		r.DiscrepancyDetected, r.DiscrepancySeverity, r.ProfileName,
		r.ProfileVersion, string(snapshot), r.StaleProfile,
	)
	return eris.Wrapf(err, "sqlite: insert rating for %s", r.EmployerID)
}

func (s *SQLiteStore) LatestRating(ctx context.Context, employerID string) (*model.FinalRating, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employer_id, calculation_date, final_score, final_band,
		       project_band, expertise_band, overall_confidence, data_completeness,
		       discrepancy_detected, discrepancy_severity, profile_name,
		       profile_version, inputs_snapshot, stale_profile
		FROM final_ratings
		WHERE employer_id = ?
		ORDER BY calculation_date DESC, created_at DESC
		LIMIT 1`, employerID)

	var r model.FinalRating
	var score sql.NullFloat64
	var snapshot string
	err := row.Scan(&r.ID, &r.EmployerID, &r.CalculationDate, &score, &r.FinalBand,
		&r.ProjectBand, &r.ExpertiseBand, &r.OverallConfidence, &r.DataCompleteness,
		&r.DiscrepancyDetected, &r.DiscrepancySeverity, &r.ProfileName,
		&r.ProfileVersion, &snapshot, &r.StaleProfile)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest rating for %s", employerID)
	}
	if score.Valid {
		r.FinalScore = &score.Float64
	}
	if err := json.Unmarshal([]byte(snapshot), &r.InputsSnapshot); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal inputs snapshot for %s", employerID)
	}
	return &r, nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, kind, actor, ts, before, after, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Actor, e.Timestamp.UTC(), nullable(e.Before), nullable(e.After), e.Reason,
	)
	return eris.Wrapf(err, "sqlite: append audit %s", e.Kind)
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Seed helpers used by migrations and tests; the engine itself never writes
// assessments.

func (s *SQLiteStore) InsertEmployer(ctx context.Context, e model.Employer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employers (id, name, abn, archived) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.ABN, e.Archived)
	return eris.Wrapf(err, "sqlite: insert employer %s", e.ID)
}

func (s *SQLiteStore) InsertComplianceAssessment(ctx context.Context, a model.ComplianceAssessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_assessments
			(id, employer_id, project_id, assessment_type, score, confidence_level, severity_level, assessment_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployerID, a.ProjectID, a.AssessmentType, a.Score,
		a.ConfidenceLevel, a.SeverityLevel, a.AssessmentDate.UTC())
	return eris.Wrapf(err, "sqlite: insert compliance assessment %s", a.ID)
}

func (s *SQLiteStore) InsertExpertiseAssessment(ctx context.Context, a model.ExpertiseAssessment) error {
	var categories any
	if len(a.CategoryScores) > 0 {
		data, err := json.Marshal(a.CategoryScores)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal category scores for %s", a.ID)
		}
		categories = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expertise_assessments
			(id, employer_id, assessor_id, overall_score, category_scores, confidence_level, assessment_date, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployerID, a.AssessorID, a.OverallScore, categories,
		a.ConfidenceLevel, a.AssessmentDate.UTC(), a.Rationale)
	return eris.Wrapf(err, "sqlite: insert expertise assessment %s", a.ID)
}
