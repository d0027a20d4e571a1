package track

import (
	"sort"
	"time"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// categoryAccum accumulates recency-weighted contributions for one category.
type categoryAccum struct {
	weightedSum float64
	weightTotal float64
	ids         []string
}

func (a *categoryAccum) add(id string, normScore, weight float64) {
	if weight <= 0 {
		return
	}
	a.weightedSum += normScore * weight
	a.weightTotal += weight
	a.ids = append(a.ids, id)
}

func (a *categoryAccum) mean() (float64, bool) {
	if a.weightTotal <= 0 {
		return 0, false
	}
	return a.weightedSum / a.weightTotal, true
}

// AggregateCompliance reduces the employer's compliance assessments (Track 1)
// into per-category and overall scores as of the given instant. Only
// assessments dated at or before asOf are considered; contributions decay
// with age per the profile and negative findings are damped by severity.
func AggregateCompliance(assessments []model.ComplianceAssessment, p *model.WeightingProfile, asOf time.Time) model.TrackResult {
	accums := make(map[string]*categoryAccum)

	for _, a := range assessments {
		if a.AssessmentDate.After(asOf) {
			continue
		}
		w := decayWeight(asOf.Sub(a.AssessmentDate), p.Decay, p.MinData.RecencyWindowDays)
		w *= severityDamping(a.SeverityLevel, a.Score)
		if w <= 0 {
			continue
		}
		acc := accums[a.AssessmentType]
		if acc == nil {
			acc = &categoryAccum{}
			accums[a.AssessmentType] = acc
		}
		acc.add(a.ID, model.NormalizeScore(a.Score), w)
	}

	res := finalize(accums, p.ComplianceWeights, p.MinData.RequiredCategories, p)
	return applyAssessmentFloor(res, p.MinData.MinAssessments)
}

// applyAssessmentFloor clears the track score when fewer assessments
// contributed than the profile's minimum count. A thin sample reads as
// insufficient data, never as a confident number.
func applyAssessmentFloor(res model.TrackResult, min int) model.TrackResult {
	if min <= 0 || res.Score == nil || res.SampleCount >= min {
		return res
	}
	res.Score = nil
	res.Band = model.BandUnknown
	res.Confidence = model.ConfidenceVeryLow
	return res
}

// finalize turns per-category accumulators into a TrackResult: absent
// categories have their weight redistributed proportionally across the
// present ones, and zero usable assessments yield a nil score rather than
// a worst-case zero.
func finalize(accums map[string]*categoryAccum, categoryWeights map[string]float64, requiredCategories []string, p *model.WeightingProfile) model.TrackResult {
	res := model.TrackResult{
		CategoryScores: make(map[string]float64),
		Band:           model.BandUnknown,
		Confidence:     model.ConfidenceVeryLow,
	}

	var weightedSum, presentWeight float64
	for _, cat := range sortedKeys(accums) {
		score, ok := accums[cat].mean()
		if !ok {
			continue
		}
		res.CategoryScores[cat] = score
		res.SampleCount += len(accums[cat].ids)
		res.AssessmentIDs = append(res.AssessmentIDs, accums[cat].ids...)
		if w, weighted := categoryWeights[cat]; weighted {
			weightedSum += score * w
			presentWeight += w
		}
	}
	sort.Strings(res.AssessmentIDs)

	res.DataCompleteness = completeness(res.CategoryScores, requiredCategories, categoryWeights)
	res.Confidence = p.ConfidenceThresholds.Tier(res.DataCompleteness)

	if presentWeight > 0 {
		score := weightedSum / presentWeight
		res.Score = &score
		res.Band = model.ClassifyBand(score, p.Cutoffs())
	} else {
		res.DataCompleteness = 0
		res.Confidence = model.ConfidenceVeryLow
	}
	return res
}

// completeness is the fraction of required categories with at least one
// contributing assessment, capped at 1. Tracks without an explicit
// required list fall back to their weighted category set.
func completeness(present map[string]float64, required []string, categoryWeights map[string]float64) float64 {
	if len(required) == 0 {
		for cat := range categoryWeights {
			required = append(required, cat)
		}
	}
	if len(required) == 0 {
		return 0
	}
	have := 0
	for _, cat := range required {
		if _, ok := present[cat]; ok {
			have++
		}
	}
	frac := float64(have) / float64(len(required))
	if frac > 1 {
		frac = 1
	}
	return frac
}

func sortedKeys(m map[string]*categoryAccum) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
