package model

// WeightSumTolerance is the epsilon allowed when checking that weights sum
// to 1.0.
const WeightSumTolerance = 1e-6

// ProfileScope controls who a weighting profile applies to.
type ProfileScope string

const (
	ScopePersonal     ProfileScope = "personal"
	ScopeRoleTemplate ProfileScope = "role_template"
	ScopeGlobal       ProfileScope = "global"
)

// DecayCurve selects the recency-weighting curve for aggregation.
type DecayCurve string

const (
	DecayLinear      DecayCurve = "linear"
	DecayExponential DecayCurve = "exponential"
)

// DecayConfig is the profile-level recency policy. Subjective expertise
// assessments stale faster than documented compliance observations, so
// their effective age is scaled up by ExpertiseAgeScale.
type DecayConfig struct {
	Curve             DecayCurve `json:"curve" yaml:"curve" mapstructure:"curve"`
	HalfLifeDays      float64    `json:"half_life_days" yaml:"half_life_days" mapstructure:"half_life_days"`
	ExpertiseAgeScale float64    `json:"expertise_age_scale" yaml:"expertise_age_scale" mapstructure:"expertise_age_scale"`
}

// MinDataRequirements sets the evidence floor for a computation.
type MinDataRequirements struct {
	MinAssessments     int      `json:"min_assessments" yaml:"min_assessments" mapstructure:"min_assessments"`
	RecencyWindowDays  int      `json:"recency_window_days" yaml:"recency_window_days" mapstructure:"recency_window_days"`
	RequiredCategories []string `json:"required_categories" yaml:"required_categories" mapstructure:"required_categories"`
}

// ConfidenceThresholds partitions data completeness (0..1) into tiers.
// Must be strictly descending: HighMin > MediumMin > LowMin > VeryLowMax.
type ConfidenceThresholds struct {
	HighMin    float64 `json:"high_min" yaml:"high_min" mapstructure:"high_min"`
	MediumMin  float64 `json:"medium_min" yaml:"medium_min" mapstructure:"medium_min"`
	LowMin     float64 `json:"low_min" yaml:"low_min" mapstructure:"low_min"`
	VeryLowMax float64 `json:"very_low_max" yaml:"very_low_max" mapstructure:"very_low_max"`
}

// Tier maps a data-completeness fraction to a confidence tier.
func (t ConfidenceThresholds) Tier(completeness float64) ConfidenceLevel {
	switch {
	case completeness >= t.HighMin:
		return ConfidenceHigh
	case completeness >= t.MediumMin:
		return ConfidenceMedium
	case completeness >= t.LowMin:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// BandCutoffs overrides the default score cut points for band
// classification. Scores >= GreenMin are green, >= AmberMin amber,
// below that red.
type BandCutoffs struct {
	GreenMin float64 `json:"green_min" yaml:"green_min" mapstructure:"green_min"`
	AmberMin float64 `json:"amber_min" yaml:"amber_min" mapstructure:"amber_min"`
}

// DefaultBandCutoffs are the profile-independent cut points.
var DefaultBandCutoffs = BandCutoffs{GreenMin: 70, AmberMin: 40}

// ClassifyBand maps a normalized 0..100 score onto a traffic-light band.
func ClassifyBand(score float64, c BandCutoffs) RatingBand {
	switch {
	case score >= c.GreenMin:
		return BandGreen
	case score >= c.AmberMin:
		return BandAmber
	default:
		return BandRed
	}
}

// WeightingProfile is the versioned configuration governing how the two
// tracks and their categories combine into a final rating. Profiles are
// never mutated in place: an edit produces a new version, and a version
// referenced by a persisted FinalRating is immutable.
type WeightingProfile struct {
	Name    string       `json:"name" yaml:"name" mapstructure:"name"`
	Version int          `json:"version" yaml:"version" mapstructure:"version"`
	Scope   ProfileScope `json:"scope" yaml:"scope" mapstructure:"scope"`
	Owner   string       `json:"owner" yaml:"owner" mapstructure:"owner"`

	ProjectDataWeight        float64 `json:"project_data_weight" yaml:"project_data_weight" mapstructure:"project_data_weight"`
	OrganiserExpertiseWeight float64 `json:"organiser_expertise_weight" yaml:"organiser_expertise_weight" mapstructure:"organiser_expertise_weight"`

	ComplianceWeights map[string]float64 `json:"compliance_weights" yaml:"compliance_weights" mapstructure:"compliance_weights"`
	ExpertiseWeights  map[string]float64 `json:"expertise_weights" yaml:"expertise_weights" mapstructure:"expertise_weights"`

	MinData              MinDataRequirements  `json:"min_data_requirements" yaml:"min_data_requirements" mapstructure:"min_data_requirements"`
	ConfidenceThresholds ConfidenceThresholds `json:"confidence_thresholds" yaml:"confidence_thresholds" mapstructure:"confidence_thresholds"`
	Decay                DecayConfig          `json:"decay" yaml:"decay" mapstructure:"decay"`

	// ExpertiseWindow bounds Track 2 to the most recent N assessments per
	// category so one prolific assessor cannot dominate.
	ExpertiseWindow int `json:"expertise_window" yaml:"expertise_window" mapstructure:"expertise_window"`

	// AssessorMultipliers scale Track 2 contributions by historical
	// assessor reliability (0.5..2.0). Unknown assessors default to 1.0.
	AssessorMultipliers map[string]float64 `json:"assessor_multipliers" yaml:"assessor_multipliers" mapstructure:"assessor_multipliers"`

	// MinAcceptableConfidence forces the final band to unknown when the
	// overall confidence falls below this tier.
	MinAcceptableConfidence ConfidenceLevel `json:"min_acceptable_confidence" yaml:"min_acceptable_confidence" mapstructure:"min_acceptable_confidence"`

	// ConfidenceAdjustment shifts the combined tier down by this many
	// steps (values <= 0 shift nothing). It can never raise confidence.
	ConfidenceAdjustment int `json:"confidence_adjustment" yaml:"confidence_adjustment" mapstructure:"confidence_adjustment"`

	Bands *BandCutoffs `json:"bands,omitempty" yaml:"bands,omitempty" mapstructure:"bands"`

	Archived bool `json:"archived" yaml:"archived" mapstructure:"archived"`
}

// Cutoffs returns the profile's band cut points or the defaults.
func (p *WeightingProfile) Cutoffs() BandCutoffs {
	if p.Bands != nil {
		return *p.Bands
	}
	return DefaultBandCutoffs
}

// AssessorMultiplier returns the reliability multiplier for an assessor,
// defaulting to 1.0 when unconfigured.
func (p *WeightingProfile) AssessorMultiplier(assessorID string) float64 {
	if m, ok := p.AssessorMultipliers[assessorID]; ok {
		return m
	}
	return 1.0
}

// ValidationResult reports hard errors and soft warnings for a profile.
type ValidationResult struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Valid reports whether the profile passed hard validation.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}
