package profile

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// Default returns a global-scope profile with an even track split and the
// standard category sets. Used as the seed profile and in tests.
func Default() model.WeightingProfile {
	return model.WeightingProfile{
		Name:                     "default",
		Version:                  1,
		Scope:                    model.ScopeGlobal,
		ProjectDataWeight:        0.6,
		OrganiserExpertiseWeight: 0.4,
		ComplianceWeights: map[string]float64{
			"wages_compliance":  0.30,
			"safety_compliance": 0.30,
			"eba_adherence":     0.25,
			"delegate_access":   0.15,
		},
		ExpertiseWeights: map[string]float64{
			"union_relationship":      0.40,
			"workforce_treatment":     0.35,
			"subcontractor_practices": 0.25,
		},
		MinData: model.MinDataRequirements{
			MinAssessments:    3,
			RecencyWindowDays: 365,
			RequiredCategories: []string{
				"wages_compliance", "safety_compliance", "eba_adherence", "delegate_access",
			},
		},
		ConfidenceThresholds: model.ConfidenceThresholds{
			HighMin:    0.9,
			MediumMin:  0.6,
			LowMin:     0.3,
			VeryLowMax: 0.1,
		},
		Decay: model.DecayConfig{
			Curve:             model.DecayExponential,
			HalfLifeDays:      90,
			ExpertiseAgeScale: 2.0,
		},
		ExpertiseWindow:         5,
		MinAcceptableConfidence: model.ConfidenceLow,
	}
}

// ParseFile reads a weighting profile from a YAML file without validating
// it. Callers that can override validation failures parse first and decide
// afterwards.
func ParseFile(path string) (*model.WeightingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}

	var p model.WeightingProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	return &p, nil
}

// LoadFile reads a weighting profile from a YAML file and validates it.
// The file is rejected on hard validation errors; warnings are returned
// alongside the profile for the caller to surface.
func LoadFile(path string) (*model.WeightingProfile, model.ValidationResult, error) {
	p, err := ParseFile(path)
	if err != nil {
		return nil, model.ValidationResult{}, err
	}

	res := Validate(*p)
	if !res.Valid() {
		return nil, res, eris.Wrapf(model.ErrProfileInvalid, "profile: %s", path)
	}
	return p, res, nil
}
