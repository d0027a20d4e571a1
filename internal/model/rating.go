package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Sentinel errors surfaced by the engine. Callers distinguish them with eris.Is.
var (
	ErrProfileInvalid   = eris.New("weighting profile failed hard validation")
	ErrProfileNotFound  = eris.New("weighting profile not found")
	ErrEmployerNotFound = eris.New("employer not found")
)

// RatingBand is the traffic-light classification of an employer rating.
type RatingBand string

const (
	BandGreen   RatingBand = "green"
	BandAmber   RatingBand = "amber"
	BandRed     RatingBand = "red"
	BandUnknown RatingBand = "unknown"
)

// Level returns the band's ordinal position (red=0, amber=1, green=2)
// and false for unknown, which has no position on the scale.
func (b RatingBand) Level() (int, bool) {
	switch b {
	case BandRed:
		return 0, true
	case BandAmber:
		return 1, true
	case BandGreen:
		return 2, true
	default:
		return 0, false
	}
}

// ConfidenceLevel is the tiered measure of evidence behind a score.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceVeryLow ConfidenceLevel = "very_low"
)

// Rank returns the tier ordinal (very_low=0 .. high=3).
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// confidenceByRank is indexed by Rank().
var confidenceByRank = []ConfidenceLevel{
	ConfidenceVeryLow, ConfidenceLow, ConfidenceMedium, ConfidenceHigh,
}

// MinConfidence returns the lower of two confidence tiers.
func MinConfidence(a, b ConfidenceLevel) ConfidenceLevel {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// StepDown lowers a confidence tier by n steps, flooring at very_low.
// Negative n is treated as zero: combination never raises confidence.
func (c ConfidenceLevel) StepDown(n int) ConfidenceLevel {
	if n < 0 {
		n = 0
	}
	r := c.Rank() - n
	if r < 0 {
		r = 0
	}
	return confidenceByRank[r]
}

// DiscrepancySeverity classifies disagreement between the two tracks.
type DiscrepancySeverity string

const (
	DiscrepancyNone     DiscrepancySeverity = "none"
	DiscrepancyMinor    DiscrepancySeverity = "minor"
	DiscrepancyMajor    DiscrepancySeverity = "major"
	DiscrepancyCritical DiscrepancySeverity = "critical"
)

// TrackResult is the derived output of one aggregation track. Score is nil
// when the track has insufficient data; that state is never folded into a
// numeric zero.
type TrackResult struct {
	Score            *float64           `json:"score"`
	CategoryScores   map[string]float64 `json:"category_scores,omitempty"`
	DataCompleteness float64            `json:"data_completeness"`
	SampleCount      int                `json:"sample_count"`
	AssessmentIDs    []string           `json:"assessment_ids,omitempty"`
	Confidence       ConfidenceLevel    `json:"confidence"`
	Band             RatingBand         `json:"band"`
}

// HasData reports whether the track produced a usable score.
func (t TrackResult) HasData() bool {
	return t.Score != nil
}

// DiscrepancyResult annotates a FinalRating with cross-track disagreement.
// It never alters the rating itself.
type DiscrepancyResult struct {
	Detected            bool                `json:"detected"`
	Severity            DiscrepancySeverity `json:"severity"`
	Explanation         string              `json:"explanation,omitempty"`
	DivergentCategories []string            `json:"divergent_categories,omitempty"`
}

// FinalRating is the engine's output, persisted as a new row per
// computation. It is a pure function of the employer's assessments as of
// CalculationDate and the referenced profile version.
type FinalRating struct {
	ID                  string              `json:"id"`
	EmployerID          string              `json:"employer_id"`
	CalculationDate     time.Time           `json:"calculation_date"`
	FinalScore          *float64            `json:"final_score"`
	FinalBand           RatingBand          `json:"final_rating_band"`
	ProjectBand         RatingBand          `json:"project_based_rating"`
	ExpertiseBand       RatingBand          `json:"expertise_based_rating"`
	OverallConfidence   ConfidenceLevel     `json:"overall_confidence"`
	DataCompleteness    float64             `json:"data_completeness"`
	DiscrepancyDetected bool                `json:"discrepancy_detected"`
	DiscrepancySeverity DiscrepancySeverity `json:"discrepancy_severity"`
	ProfileName         string              `json:"weighting_profile_name"`
	ProfileVersion      int                 `json:"weighting_profile_version"`
	InputsSnapshot      []string            `json:"inputs_snapshot"`
	StaleProfile        bool                `json:"stale_profile"`
}

// AuditKind identifies what an audit entry records.
type AuditKind string

const (
	AuditCalculation        AuditKind = "calculation"
	AuditProfileCreate      AuditKind = "profile_create"
	AuditProfileUpdate      AuditKind = "profile_update"
	AuditProfileArchive     AuditKind = "profile_archive"
	AuditValidationOverride AuditKind = "validation_override"
)

// AuditEntry is one append-only record of a calculation or profile change.
type AuditEntry struct {
	ID        string    `json:"id"`
	Kind      AuditKind `json:"kind"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Before    []byte    `json:"before,omitempty"`
	After     []byte    `json:"after,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}
