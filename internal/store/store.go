// Package store persists profiles, assessments, ratings and audit entries.
// The engine reads assessments and profiles and only ever appends new
// rating and audit rows; assessment writes belong to the surrounding
// data-capture application.
package store

import (
	"context"
	"time"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// Store is the persistence interface consumed by the engine and batch
// calculator. Assessment reads are snapshot reads as-of a timestamp:
// rows dated after asOf are excluded so a long-running batch is not torn
// by late-arriving data.
type Store interface {
	// Employers
	GetEmployer(ctx context.Context, id string) (*model.Employer, error)
	ListEmployerIDs(ctx context.Context) ([]string, error)

	// Assessments (read-only for the engine)
	ComplianceAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ComplianceAssessment, error)
	ExpertiseAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ExpertiseAssessment, error)

	// Profiles are versioned: SaveProfile allocates the next version and
	// never mutates an existing row. version 0 in GetProfile means latest.
	GetProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error)
	SaveProfile(ctx context.Context, p model.WeightingProfile) (*model.WeightingProfile, error)
	ArchiveProfile(ctx context.Context, name string) error
	CurrentProfileVersion(ctx context.Context, name string) (int, error)

	// Ratings are append-only; recomputation inserts a new row.
	InsertRating(ctx context.Context, r *model.FinalRating) error
	LatestRating(ctx context.Context, employerID string) (*model.FinalRating, error)

	// Audit log, append-only.
	AppendAudit(ctx context.Context, e model.AuditEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
