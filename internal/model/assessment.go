package model

import "time"

// Employer is the rated entity. The engine only needs identity; the rest of
// the employer record belongs to the surrounding application.
type Employer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ABN      string `json:"abn,omitempty"`
	Archived bool   `json:"archived,omitempty"`
}

// ComplianceAssessment is one objective, project-level compliance
// observation (Track 1). Scores run -100..100. Rows are append-only;
// older assessments are superseded by recency weighting, never deleted.
type ComplianceAssessment struct {
	ID              string          `json:"id"`
	EmployerID      string          `json:"employer_id"`
	ProjectID       string          `json:"project_id"`
	AssessmentType  string          `json:"assessment_type"`
	Score           float64         `json:"score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	SeverityLevel   int             `json:"severity_level"`
	AssessmentDate  time.Time       `json:"assessment_date"`
}

// ExpertiseAssessment is one organiser's holistic judgment of an employer
// (Track 2): an overall score plus per-category sub-scores, all -100..100.
type ExpertiseAssessment struct {
	ID              string             `json:"id"`
	EmployerID      string             `json:"employer_id"`
	AssessorID      string             `json:"assessor_id"`
	OverallScore    float64            `json:"overall_score"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	ConfidenceLevel ConfidenceLevel    `json:"confidence_level"`
	AssessmentDate  time.Time          `json:"assessment_date"`
	Rationale       string             `json:"rationale,omitempty"`
}

// RawScoreMin and RawScoreMax bound assessment scores as captured.
// Track scores are normalized onto 0..100 for combination.
const (
	RawScoreMin = -100.0
	RawScoreMax = 100.0
)

// NormalizeScore maps a raw -100..100 assessment score onto 0..100,
// clamping out-of-range input.
func NormalizeScore(raw float64) float64 {
	if raw < RawScoreMin {
		raw = RawScoreMin
	}
	if raw > RawScoreMax {
		raw = RawScoreMax
	}
	return (raw - RawScoreMin) / (RawScoreMax - RawScoreMin) * 100
}
