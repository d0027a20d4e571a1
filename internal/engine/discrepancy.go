package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// divergenceThreshold is the per-category score gap (on the 0..100 scale)
// above which a category is named in the discrepancy explanation.
const divergenceThreshold = 20.0

// Detect compares the two tracks' independent band classifications and
// flags disagreement. It is symmetric in its track arguments and never
// alters the rating itself: "what is the rating" stays separate from
// "should a human look closer".
func Detect(t1, t2 model.TrackResult, p *model.WeightingProfile) model.DiscrepancyResult {
	res := model.DiscrepancyResult{Severity: model.DiscrepancyNone}

	l1, ok1 := t1.Band.Level()
	l2, ok2 := t2.Band.Level()
	if !ok1 || !ok2 {
		// An unknown band on either side leaves nothing to compare.
		return res
	}

	gap := l1 - l2
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap == 0:
		return res
	case gap == 1:
		res.Severity = model.DiscrepancyMinor
	default:
		res.Severity = model.DiscrepancyMajor
	}
	res.Detected = true

	// Two confident, disagreeing measurements are a stronger signal than
	// two uncertain ones.
	if t1.Confidence == model.ConfidenceHigh && t2.Confidence == model.ConfidenceHigh {
		res.Severity = escalate(res.Severity)
	}

	res.DivergentCategories = divergentCategories(t1.CategoryScores, t2.CategoryScores)
	res.Explanation = explanation(t1.Band, t2.Band, res.Severity, res.DivergentCategories)
	return res
}

func escalate(s model.DiscrepancySeverity) model.DiscrepancySeverity {
	switch s {
	case model.DiscrepancyMinor:
		return model.DiscrepancyMajor
	case model.DiscrepancyMajor:
		return model.DiscrepancyCritical
	default:
		return s
	}
}

// divergentCategories lists categories scored by both tracks whose scores
// differ by more than the threshold, worst gap first.
func divergentCategories(a, b map[string]float64) []string {
	type gap struct {
		cat  string
		diff float64
	}
	var gaps []gap
	for cat, sa := range a {
		sb, ok := b[cat]
		if !ok {
			continue
		}
		if d := math.Abs(sa - sb); d > divergenceThreshold {
			gaps = append(gaps, gap{cat, d})
		}
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].diff != gaps[j].diff {
			return gaps[i].diff > gaps[j].diff
		}
		return gaps[i].cat < gaps[j].cat
	})
	out := make([]string, len(gaps))
	for i, g := range gaps {
		out[i] = g.cat
	}
	return out
}

func explanation(b1, b2 model.RatingBand, sev model.DiscrepancySeverity, categories []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compliance track classifies %s while organiser expertise classifies %s (%s discrepancy)",
		b1, b2, sev)
	if len(categories) > 0 {
		fmt.Fprintf(&sb, "; largest divergence in: %s", strings.Join(categories, ", "))
	}
	return sb.String()
}
