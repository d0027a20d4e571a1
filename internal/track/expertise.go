package track

import (
	"sort"
	"time"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// AggregateExpertise reduces organiser assessments (Track 2) into
// per-category and overall scores as of the given instant. Each
// contribution is scaled by the assessor's reliability multiplier, ages at
// ExpertiseAgeScale times the compliance rate (subjective impressions stale
// faster), and only the most recent ExpertiseWindow assessments per
// category count, so one prolific assessor cannot dominate.
func AggregateExpertise(assessments []model.ExpertiseAssessment, p *model.WeightingProfile, asOf time.Time) model.TrackResult {
	eligible := make([]model.ExpertiseAssessment, 0, len(assessments))
	for _, a := range assessments {
		if !a.AssessmentDate.After(asOf) {
			eligible = append(eligible, a)
		}
	}
	// Most recent first; ID breaks date ties so ordering is reproducible.
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].AssessmentDate.Equal(eligible[j].AssessmentDate) {
			return eligible[i].AssessmentDate.After(eligible[j].AssessmentDate)
		}
		return eligible[i].ID < eligible[j].ID
	})

	ageScale := p.Decay.ExpertiseAgeScale
	if ageScale <= 0 {
		ageScale = 1
	}

	accums := make(map[string]*categoryAccum)
	perCategoryCount := make(map[string]int)

	for _, a := range eligible {
		age := time.Duration(float64(asOf.Sub(a.AssessmentDate)) * ageScale)
		w := decayWeight(age, p.Decay, p.MinData.RecencyWindowDays)
		w *= p.AssessorMultiplier(a.AssessorID)
		if w <= 0 {
			continue
		}

		for cat, raw := range categoryContributions(a, p.ExpertiseWeights) {
			if p.ExpertiseWindow > 0 && perCategoryCount[cat] >= p.ExpertiseWindow {
				continue
			}
			acc := accums[cat]
			if acc == nil {
				acc = &categoryAccum{}
				accums[cat] = acc
			}
			acc.add(a.ID, model.NormalizeScore(raw), w)
			perCategoryCount[cat]++
		}
	}

	// Track 2's required coverage is its own weighted category set; the
	// profile's required-category list names compliance categories.
	res := finalize(accums, p.ExpertiseWeights, nil, p)
	res.AssessmentIDs = dedupe(res.AssessmentIDs)
	res.SampleCount = len(res.AssessmentIDs)
	return applyAssessmentFloor(res, p.MinData.MinAssessments)
}

// categoryContributions maps one assessment onto category scores. An
// assessment without sub-scores applies its overall score to every
// weighted category.
func categoryContributions(a model.ExpertiseAssessment, weights map[string]float64) map[string]float64 {
	if len(a.CategoryScores) > 0 {
		return a.CategoryScores
	}
	out := make(map[string]float64, len(weights))
	for cat := range weights {
		out[cat] = a.OverallScore
	}
	return out
}

// dedupe collapses repeated IDs in a sorted-or-not slice, returning a
// sorted unique list. An expertise assessment contributes to several
// categories but counts once in the inputs snapshot.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	sort.Strings(ids)
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
