// Package profile validates and loads weighting profiles. Validation runs
// both before a profile is persisted and again inside the engine, since a
// stored profile may predate the current validation rules.
package profile

import (
	"fmt"
	"math"
	"sort"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// extremeWeight is the single-category weight above which a soft warning
// is raised.
const extremeWeight = 0.4

// Validate checks a weighting profile. Pure: no side effects, no I/O.
// Hard errors mean the profile must not be used for computation; warnings
// flag questionable but permitted configuration.
func Validate(p model.WeightingProfile) model.ValidationResult {
	var res model.ValidationResult

	res.Errors = append(res.Errors, validateTrackWeights(p)...)
	res.Errors = append(res.Errors, validateCategoryWeights("compliance_weights", p.ComplianceWeights)...)
	res.Errors = append(res.Errors, validateCategoryWeights("expertise_weights", p.ExpertiseWeights)...)
	res.Errors = append(res.Errors, validateThresholds(p.ConfidenceThresholds)...)
	res.Errors = append(res.Errors, validateMinData(p.MinData)...)
	res.Errors = append(res.Errors, validateDecay(p.Decay)...)
	res.Errors = append(res.Errors, validateMultipliers(p.AssessorMultipliers)...)

	res.Warnings = append(res.Warnings, warnExtremeWeights("compliance_weights", p.ComplianceWeights)...)
	res.Warnings = append(res.Warnings, warnExtremeWeights("expertise_weights", p.ExpertiseWeights)...)
	res.Warnings = append(res.Warnings, warnConfidenceFloor(p)...)

	return res
}

func validateTrackWeights(p model.WeightingProfile) []string {
	var errs []string
	for name, w := range map[string]float64{
		"project_data_weight":        p.ProjectDataWeight,
		"organiser_expertise_weight": p.OrganiserExpertiseWeight,
	} {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1], got %g", name, w))
		}
	}
	sum := p.ProjectDataWeight + p.OrganiserExpertiseWeight
	if math.Abs(sum-1.0) > model.WeightSumTolerance {
		errs = append(errs, fmt.Sprintf("track weights must sum to 1.0, got %g", sum))
	}
	sort.Strings(errs)
	return errs
}

func validateCategoryWeights(name string, weights map[string]float64) []string {
	if len(weights) == 0 {
		return []string{fmt.Sprintf("%s must define at least one category", name)}
	}
	var errs []string
	sum := 0.0
	for cat, w := range weights {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s[%s] must be in [0,1], got %g", name, cat, w))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > model.WeightSumTolerance {
		errs = append(errs, fmt.Sprintf("%s must sum to 1.0, got %g", name, sum))
	}
	sort.Strings(errs)
	return errs
}

func validateThresholds(t model.ConfidenceThresholds) []string {
	if t.HighMin > t.MediumMin && t.MediumMin > t.LowMin && t.LowMin > t.VeryLowMax {
		return nil
	}
	return []string{fmt.Sprintf(
		"confidence_thresholds must be strictly ordered high_min > medium_min > low_min > very_low_max, got %g > %g > %g > %g",
		t.HighMin, t.MediumMin, t.LowMin, t.VeryLowMax,
	)}
}

func validateMinData(m model.MinDataRequirements) []string {
	var errs []string
	if m.MinAssessments < 0 {
		errs = append(errs, fmt.Sprintf("min_data_requirements.min_assessments must be >= 0, got %d", m.MinAssessments))
	}
	if m.RecencyWindowDays < 0 {
		errs = append(errs, fmt.Sprintf("min_data_requirements.recency_window_days must be >= 0, got %d", m.RecencyWindowDays))
	}
	return errs
}

func validateDecay(d model.DecayConfig) []string {
	var errs []string
	switch d.Curve {
	case "", model.DecayLinear, model.DecayExponential:
	default:
		errs = append(errs, fmt.Sprintf("decay.curve must be linear or exponential, got %q", d.Curve))
	}
	if d.Curve != "" && d.HalfLifeDays <= 0 {
		errs = append(errs, fmt.Sprintf("decay.half_life_days must be > 0, got %g", d.HalfLifeDays))
	}
	if d.ExpertiseAgeScale < 0 {
		errs = append(errs, fmt.Sprintf("decay.expertise_age_scale must be >= 0, got %g", d.ExpertiseAgeScale))
	}
	return errs
}

func validateMultipliers(m map[string]float64) []string {
	var errs []string
	for assessor, mult := range m {
		if mult < 0.5 || mult > 2.0 {
			errs = append(errs, fmt.Sprintf("assessor_multipliers[%s] must be in [0.5,2.0], got %g", assessor, mult))
		}
	}
	sort.Strings(errs)
	return errs
}

func warnExtremeWeights(name string, weights map[string]float64) []string {
	var warns []string
	for cat, w := range weights {
		if w > extremeWeight {
			warns = append(warns, fmt.Sprintf("%s[%s] = %g is extreme weighting (> %g)", name, cat, w, extremeWeight))
		}
	}
	sort.Strings(warns)
	return warns
}

// warnConfidenceFloor flags thresholds that the configured minimum data can
// never satisfy: if full compliance with min_data_requirements still leaves
// completeness below medium_min, confidence is stuck at low or worse.
func warnConfidenceFloor(p model.WeightingProfile) []string {
	required := len(p.MinData.RequiredCategories)
	if required == 0 || p.MinData.MinAssessments <= 0 {
		return nil
	}
	ceiling := float64(p.MinData.MinAssessments)
	if ceiling > float64(required) {
		ceiling = float64(required)
	}
	ceiling /= float64(required)
	if ceiling < p.ConfidenceThresholds.MediumMin {
		return []string{fmt.Sprintf(
			"min_data_requirements allow at most %.2f completeness, below medium_min %g: confidence can never leave the low tier",
			ceiling, p.ConfidenceThresholds.MediumMin,
		)}
	}
	return nil
}
