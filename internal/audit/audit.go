// Package audit appends immutable records of calculations and profile
// changes. Nothing here is ever updated or deleted; the log is the basis
// for explainability and rollback.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/store"
)

// Recorder writes audit entries through the store.
type Recorder struct {
	store store.Store
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Calculation records a completed rating computation with its full output
// snapshot.
func (r *Recorder) Calculation(ctx context.Context, actor string, rating *model.FinalRating, reason string) error {
	after, err := json.Marshal(rating)
	if err != nil {
		return eris.Wrap(err, "audit: marshal rating")
	}
	return r.append(ctx, model.AuditEntry{
		Kind:   model.AuditCalculation,
		Actor:  actor,
		After:  after,
		Reason: reason,
	})
}

// ProfileChange records a profile create, update or archive with before and
// after snapshots. before is nil on create.
func (r *Recorder) ProfileChange(ctx context.Context, kind model.AuditKind, actor string, before, after *model.WeightingProfile, reason string) error {
	var beforeJSON, afterJSON []byte
	var err error
	if before != nil {
		if beforeJSON, err = json.Marshal(before); err != nil {
			return eris.Wrap(err, "audit: marshal profile before")
		}
	}
	if after != nil {
		if afterJSON, err = json.Marshal(after); err != nil {
			return eris.Wrap(err, "audit: marshal profile after")
		}
	}
	return r.append(ctx, model.AuditEntry{
		Kind:   kind,
		Actor:  actor,
		Before: beforeJSON,
		After:  afterJSON,
		Reason: reason,
	})
}

// ValidationOverride records an administrative override of a failed profile
// validation. A validation failure forced through without this record is
// never permitted.
func (r *Recorder) ValidationOverride(ctx context.Context, actor string, p *model.WeightingProfile, res model.ValidationResult, reason string) error {
	after, err := json.Marshal(struct {
		Profile    *model.WeightingProfile `json:"profile"`
		Validation model.ValidationResult  `json:"validation"`
	}{p, res})
	if err != nil {
		return eris.Wrap(err, "audit: marshal override")
	}
	zap.L().Warn("audit: validation override recorded",
		zap.String("profile", p.Name),
		zap.Int("version", p.Version),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	return r.append(ctx, model.AuditEntry{
		Kind:   model.AuditValidationOverride,
		Actor:  actor,
		After:  after,
		Reason: reason,
	})
}

func (r *Recorder) append(ctx context.Context, e model.AuditEntry) error {
	e.ID = uuid.New().String()
	e.Timestamp = time.Now().UTC()
	if err := r.store.AppendAudit(ctx, e); err != nil {
		return eris.Wrapf(err, "audit: append %s", e.Kind)
	}
	return nil
}
