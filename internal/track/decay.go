// Package track reduces raw assessment streams into per-track scores.
// Both aggregators are pure functions over their input slices so a
// computation is reproducible from a snapshot read.
package track

import (
	"math"
	"time"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// decayWeight returns the recency weight (0..1] for an assessment of the
// given age. Assessments older than the recency window weigh zero;
// negative ages (future-dated rows in an as-of snapshot) weigh full.
func decayWeight(age time.Duration, d model.DecayConfig, windowDays int) float64 {
	ageDays := age.Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if windowDays > 0 && ageDays > float64(windowDays) {
		return 0
	}

	switch d.Curve {
	case model.DecayLinear:
		// Reaches 0.5 at the half-life and 0 at twice the half-life.
		w := 1 - ageDays/(2*d.HalfLifeDays)
		if w < 0 {
			return 0
		}
		return w
	case model.DecayExponential:
		return math.Exp2(-ageDays / d.HalfLifeDays)
	default:
		// No decay configured: every in-window assessment weighs equally.
		return 1
	}
}

// severityDamping reduces a negative finding's contribution weight by its
// severity level. Severity 0 or a non-negative score leaves the weight
// untouched.
func severityDamping(severity int, rawScore float64) float64 {
	if severity <= 0 || rawScore >= 0 {
		return 1
	}
	return 1 / (1 + float64(severity)/4)
}
