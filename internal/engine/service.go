package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/audit"
	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/profile"
	"github.com/R3v3ill3/rating-engine/internal/store"
)

// Service is the operation surface consumed by the CLI, the HTTP layer and
// the batch calculator. It wraps the pure Engine with persistence and
// audit recording.
type Service struct {
	engine  *Engine
	store   store.Store
	auditor *audit.Recorder
}

// NewService wires the engine, store and audit recorder together.
func NewService(st store.Store) *Service {
	return &Service{
		engine:  New(st),
		store:   st,
		auditor: audit.NewRecorder(st),
	}
}

// ResolveProfile loads a profile by name, latest version when version is 0.
func (s *Service) ResolveProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error) {
	p, err := s.store.GetProfile(ctx, name, version)
	if err != nil {
		return nil, eris.Wrapf(err, "service: resolve profile %s", name)
	}
	return p, nil
}

// CalculateFinalRating computes and persists a rating for one employer.
// asOf zero means now. The persisted row is tagged StaleProfile when the
// profile version changed between computation start and write; the write
// itself never fails on that account.
func (s *Service) CalculateFinalRating(ctx context.Context, actor, employerID string, p *model.WeightingProfile, asOf time.Time) (*model.FinalRating, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rating, err := s.engine.Calculate(ctx, employerID, p, asOf)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, actor, p, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

// CalculateDry computes a rating without persisting anything. Used by
// dry-run batches and by CompareTracks.
func (s *Service) CalculateDry(ctx context.Context, employerID string, p *model.WeightingProfile, asOf time.Time) (*model.FinalRating, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return s.engine.Calculate(ctx, employerID, p, asOf)
}

// PersistRating writes a previously computed rating and its audit entry.
// The write is not idempotent: callers that retry the computation must call
// this exactly once per rating they intend to keep.
func (s *Service) PersistRating(ctx context.Context, actor string, p *model.WeightingProfile, rating *model.FinalRating) error {
	return s.persist(ctx, actor, p, rating)
}

// Recalculate forces a recompute from current assessment data even when a
// recent rating exists, typically after a profile change.
func (s *Service) Recalculate(ctx context.Context, actor, employerID string, p *model.WeightingProfile) (*model.FinalRating, error) {
	return s.CalculateFinalRating(ctx, actor, employerID, p, time.Now().UTC())
}

// CompareTracks inspects the two tracks' disagreement for an employer
// without persisting a rating.
func (s *Service) CompareTracks(ctx context.Context, employerID string, p *model.WeightingProfile) (*model.DiscrepancyResult, error) {
	if res := profile.Validate(*p); !res.Valid() {
		return nil, eris.Wrapf(model.ErrProfileInvalid, "service: profile %s v%d", p.Name, p.Version)
	}
	if _, err := s.store.GetEmployer(ctx, employerID); err != nil {
		return nil, eris.Wrapf(err, "service: employer %s", employerID)
	}

	asOf := time.Now().UTC()
	t1, t2, err := s.engine.aggregateTracks(ctx, employerID, p, asOf)
	if err != nil {
		return nil, err
	}
	disc := Detect(t1, t2, p)
	return &disc, nil
}

// ValidateProfile exposes the pure validator for profile-editing callers.
func (s *Service) ValidateProfile(p model.WeightingProfile) model.ValidationResult {
	return profile.Validate(p)
}

// LatestRating returns the most recent persisted rating for an employer.
func (s *Service) LatestRating(ctx context.Context, employerID string) (*model.FinalRating, error) {
	return s.store.LatestRating(ctx, employerID)
}

// SaveProfile validates and persists a new profile version, recording the
// change in the audit log. Hard validation failures are rejected unless
// overrideReason is set, in which case the override itself is audited;
// silent bypass is never permitted.
func (s *Service) SaveProfile(ctx context.Context, actor string, p model.WeightingProfile, overrideReason string) (*model.WeightingProfile, model.ValidationResult, error) {
	res := profile.Validate(p)
	if !res.Valid() {
		if overrideReason == "" {
			return nil, res, eris.Wrapf(model.ErrProfileInvalid, "service: profile %s", p.Name)
		}
		if err := s.auditor.ValidationOverride(ctx, actor, &p, res, overrideReason); err != nil {
			return nil, res, err
		}
	}

	before, _ := s.store.GetProfile(ctx, p.Name, 0)
	saved, err := s.store.SaveProfile(ctx, p)
	if err != nil {
		return nil, res, eris.Wrapf(err, "service: save profile %s", p.Name)
	}

	kind := model.AuditProfileCreate
	if before != nil {
		kind = model.AuditProfileUpdate
	}
	if err := s.auditor.ProfileChange(ctx, kind, actor, before, saved, ""); err != nil {
		return nil, res, err
	}
	return saved, res, nil
}

// persist writes the rating and its audit entry. The optimistic concurrency
// check tags the row when the profile moved on mid-computation: the rating
// is still valid against the version it actually used.
func (s *Service) persist(ctx context.Context, actor string, p *model.WeightingProfile, rating *model.FinalRating) error {
	current, err := s.store.CurrentProfileVersion(ctx, p.Name)
	if err == nil && current != p.Version {
		rating.StaleProfile = true
		zap.L().Warn("service: rating computed against superseded profile",
			zap.String("employer_id", rating.EmployerID),
			zap.String("profile", p.Name),
			zap.Int("used_version", p.Version),
			zap.Int("current_version", current),
		)
	}

	if err := s.store.InsertRating(ctx, rating); err != nil {
		return eris.Wrapf(err, "service: insert rating for %s", rating.EmployerID)
	}
	if err := s.auditor.Calculation(ctx, actor, rating, ""); err != nil {
		return err
	}
	return nil
}
