// Package engine combines the two assessment tracks into a final employer
// rating. One WeightingEngine is the single source of truth for the
// combination rules; there are deliberately no alternate scoring paths.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/profile"
	"github.com/R3v3ill3/rating-engine/internal/store"
	"github.com/R3v3ill3/rating-engine/internal/track"
)

// Engine computes final ratings. It is stateless; every computation is a
// pure function of the snapshot read and the profile version it was handed.
type Engine struct {
	store store.Store
}

// New creates an Engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// Calculate computes (without persisting) the final rating for one employer
// as of the given instant. It returns model.ErrProfileInvalid when the
// profile fails hard validation and model.ErrEmployerNotFound when the
// employer does not exist. Insufficient data is not an error: it yields a
// valid unknown-band rating.
func (e *Engine) Calculate(ctx context.Context, employerID string, p *model.WeightingProfile, asOf time.Time) (*model.FinalRating, error) {
	// A stored profile may predate current validation rules, so it is
	// re-checked here even when the caller already validated it.
	if res := profile.Validate(*p); !res.Valid() {
		return nil, eris.Wrapf(model.ErrProfileInvalid, "engine: profile %s v%d: %s",
			p.Name, p.Version, strings.Join(res.Errors, "; "))
	}

	if _, err := e.store.GetEmployer(ctx, employerID); err != nil {
		return nil, eris.Wrapf(err, "engine: employer %s", employerID)
	}

	t1, t2, err := e.aggregateTracks(ctx, employerID, p, asOf)
	if err != nil {
		return nil, err
	}

	rating := combine(employerID, p, asOf, t1, t2)

	disc := Detect(t1, t2, p)
	rating.DiscrepancyDetected = disc.Detected
	rating.DiscrepancySeverity = disc.Severity

	zap.L().Info("engine: rating calculated",
		zap.String("employer_id", employerID),
		zap.String("band", string(rating.FinalBand)),
		zap.String("confidence", string(rating.OverallConfidence)),
		zap.Bool("discrepancy", disc.Detected),
		zap.Int("inputs", len(rating.InputsSnapshot)),
	)
	return rating, nil
}

// aggregateTracks runs both aggregators over a snapshot read as-of asOf.
func (e *Engine) aggregateTracks(ctx context.Context, employerID string, p *model.WeightingProfile, asOf time.Time) (model.TrackResult, model.TrackResult, error) {
	var zero model.TrackResult

	compliance, err := e.store.ComplianceAssessments(ctx, employerID, asOf)
	if err != nil {
		return zero, zero, eris.Wrapf(err, "engine: load compliance assessments for %s", employerID)
	}
	expertise, err := e.store.ExpertiseAssessments(ctx, employerID, asOf)
	if err != nil {
		return zero, zero, eris.Wrapf(err, "engine: load expertise assessments for %s", employerID)
	}

	t1 := track.AggregateCompliance(compliance, p, asOf)
	t2 := track.AggregateExpertise(expertise, p, asOf)
	return t1, t2, nil
}

// combine applies the weighting profile to the two track results.
func combine(employerID string, p *model.WeightingProfile, asOf time.Time, t1, t2 model.TrackResult) *model.FinalRating {
	r := &model.FinalRating{
		ID:                  uuid.New().String(),
		EmployerID:          employerID,
		CalculationDate:     asOf,
		FinalBand:           model.BandUnknown,
		ProjectBand:         t1.Band,
		ExpertiseBand:       t2.Band,
		OverallConfidence:   model.ConfidenceVeryLow,
		ProfileName:         p.Name,
		ProfileVersion:      p.Version,
		InputsSnapshot:      mergeSnapshots(t1.AssessmentIDs, t2.AssessmentIDs),
		DiscrepancySeverity: model.DiscrepancyNone,
	}

	t1Sufficient := t1.HasData() && t1.DataCompleteness >= p.ConfidenceThresholds.LowMin
	t2Sufficient := t2.HasData() && t2.DataCompleteness >= p.ConfidenceThresholds.LowMin

	switch {
	case !t1Sufficient && !t2Sufficient:
		// Two unknowns never combine into a default numeric score.
		r.DataCompleteness = 0
		return r

	case t1Sufficient && !t2Sufficient:
		// Weight redistributes entirely to the present track, and
		// confidence is capped one tier below the single-track value:
		// half the intended evidence never claims full confidence.
		score := *t1.Score
		r.FinalScore = &score
		r.DataCompleteness = t1.DataCompleteness
		r.OverallConfidence = t1.Confidence.StepDown(1)

	case !t1Sufficient && t2Sufficient:
		score := *t2.Score
		r.FinalScore = &score
		r.DataCompleteness = t2.DataCompleteness
		r.OverallConfidence = t2.Confidence.StepDown(1)

	default:
		score := p.ProjectDataWeight**t1.Score + p.OrganiserExpertiseWeight**t2.Score
		r.FinalScore = &score
		r.DataCompleteness = (t1.DataCompleteness + t2.DataCompleteness) / 2
		// Combination starts from the weaker track and can only be
		// adjusted downward.
		r.OverallConfidence = model.MinConfidence(t1.Confidence, t2.Confidence)
	}

	r.OverallConfidence = r.OverallConfidence.StepDown(p.ConfidenceAdjustment)

	if r.FinalScore != nil {
		band := model.ClassifyBand(*r.FinalScore, p.Cutoffs())
		// A low-confidence number must never present as a trustworthy
		// colour.
		if r.OverallConfidence.Rank() < p.MinAcceptableConfidence.Rank() {
			band = model.BandUnknown
		}
		r.FinalBand = band
	}
	return r
}

// mergeSnapshots unions the two tracks' contributing assessment IDs into a
// single sorted list so recomputation with identical inputs is
// bit-identical.
func mergeSnapshots(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
