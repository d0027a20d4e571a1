package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/profile"
)

var asOf = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// testProfile is the default profile with decay disabled and the assessment
// floor lowered so test arithmetic stays exact with small fixtures.
func testProfile() *model.WeightingProfile {
	p := profile.Default()
	p.Decay = model.DecayConfig{}
	p.MinData.MinAssessments = 1
	return &p
}

// seedCompliance writes one assessment per compliance category so Track 1
// reports the given normalized score with completeness 1.0.
func seedCompliance(st *fakeStore, employerID string, normScore float64) {
	raw := normScore*2 - 100
	for i, cat := range []string{"wages_compliance", "safety_compliance", "eba_adherence", "delegate_access"} {
		st.compliance[employerID] = append(st.compliance[employerID], model.ComplianceAssessment{
			ID:             employerID + "-c" + string(rune('a'+i)),
			EmployerID:     employerID,
			ProjectID:      "proj-1",
			AssessmentType: cat,
			Score:          raw,
			AssessmentDate: asOf.Add(-24 * time.Hour),
		})
	}
}

// seedExpertise writes one overall-only assessment so Track 2 reports the
// given normalized score with completeness 1.0.
func seedExpertise(st *fakeStore, employerID string, normScore float64) {
	st.expertise[employerID] = append(st.expertise[employerID], model.ExpertiseAssessment{
		ID:             employerID + "-e1",
		EmployerID:     employerID,
		AssessorID:     "org-1",
		OverallScore:   normScore*2 - 100,
		AssessmentDate: asOf.Add(-24 * time.Hour),
	})
}

func TestCalculate_WeightedCombination(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)
	seedExpertise(st, "emp-1", 60)

	rating, err := New(st).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	require.NotNil(t, rating.FinalScore)
	// 0.6*80 + 0.4*60 = 72
	assert.InDelta(t, 72.0, *rating.FinalScore, 1e-9)
	assert.Equal(t, model.BandGreen, rating.FinalBand)
	assert.Equal(t, model.ConfidenceHigh, rating.OverallConfidence)
	assert.Equal(t, 1.0, rating.DataCompleteness)
	assert.Len(t, rating.InputsSnapshot, 5)
}

func TestCalculate_SingleTrackCapsConfidence(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)

	rating, err := New(st).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	require.NotNil(t, rating.FinalScore)
	assert.InDelta(t, 80.0, *rating.FinalScore, 1e-9, "present track's score is used directly")
	assert.Equal(t, model.ConfidenceMedium, rating.OverallConfidence,
		"one tier below the single track's high confidence")
	assert.Equal(t, model.BandGreen, rating.FinalBand)
	assert.Equal(t, model.BandUnknown, rating.ExpertiseBand)
}

func TestCalculate_NoDataIsUnknownNotError(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")

	rating, err := New(st).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	assert.Nil(t, rating.FinalScore)
	assert.Equal(t, model.BandUnknown, rating.FinalBand)
	assert.Equal(t, model.ConfidenceVeryLow, rating.OverallConfidence)
	assert.Empty(t, rating.InputsSnapshot)
	assert.Equal(t, 0.0, rating.DataCompleteness)
}

func TestCalculate_InvalidProfileRejected(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)

	p := testProfile()
	p.ProjectDataWeight = 0.7
	p.OrganiserExpertiseWeight = 0.5

	_, err := New(st).Calculate(context.Background(), "emp-1", p, asOf)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrProfileInvalid))
}

func TestCalculate_UnknownEmployer(t *testing.T) {
	st := newFakeStore()

	_, err := New(st).Calculate(context.Background(), "ghost", testProfile(), asOf)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrEmployerNotFound))
}

func TestCalculate_Idempotent(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 73)
	seedExpertise(st, "emp-1", 41)

	e := New(st)
	first, err := e.Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)
	second, err := e.Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	assert.Equal(t, *first.FinalScore, *second.FinalScore)
	assert.Equal(t, first.FinalBand, second.FinalBand)
	assert.Equal(t, first.OverallConfidence, second.OverallConfidence)
	assert.Equal(t, first.InputsSnapshot, second.InputsSnapshot)
}

func TestCalculate_ScoreStaysInRange(t *testing.T) {
	for _, norm := range []float64{0, 13, 50, 87, 100} {
		st := newFakeStore()
		st.addEmployer("emp-1")
		seedCompliance(st, "emp-1", norm)
		seedExpertise(st, "emp-1", 100-norm)

		rating, err := New(st).Calculate(context.Background(), "emp-1", testProfile(), asOf)
		require.NoError(t, err)
		require.NotNil(t, rating.FinalScore)
		assert.GreaterOrEqual(t, *rating.FinalScore, 0.0)
		assert.LessOrEqual(t, *rating.FinalScore, 100.0)
	}
}

func TestCalculate_LowConfidenceForcesUnknownBand(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)

	p := testProfile()
	p.MinAcceptableConfidence = model.ConfidenceHigh

	rating, err := New(st).Calculate(context.Background(), "emp-1", p, asOf)
	require.NoError(t, err)

	require.NotNil(t, rating.FinalScore, "the number is still reported")
	assert.Equal(t, model.BandUnknown, rating.FinalBand,
		"medium confidence below the high floor must not present as a colour")
}

func TestCalculate_ConfidenceAdjustmentShiftsDown(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)
	seedExpertise(st, "emp-1", 60)

	p := testProfile()
	p.ConfidenceAdjustment = 1

	rating, err := New(st).Calculate(context.Background(), "emp-1", p, asOf)
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceMedium, rating.OverallConfidence)
}

func TestCalculate_ConfidenceAdjustmentNeverRaises(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 80)

	p := testProfile()
	p.ConfidenceAdjustment = -2

	rating, err := New(st).Calculate(context.Background(), "emp-1", p, asOf)
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceMedium, rating.OverallConfidence,
		"a negative adjustment must not lift the single-track cap")
}

func TestCalculate_DiscrepancyAnnotated(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedCompliance(st, "emp-1", 90)
	seedExpertise(st, "emp-1", 10)

	rating, err := New(st).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	assert.True(t, rating.DiscrepancyDetected)
	assert.Equal(t, model.BandGreen, rating.ProjectBand)
	assert.Equal(t, model.BandRed, rating.ExpertiseBand)
	assert.Equal(t, model.DiscrepancyCritical, rating.DiscrepancySeverity,
		"green-red gap with both tracks high-confidence escalates")
}

func TestCalculate_AssessmentFloorWithholdsRating(t *testing.T) {
	st := newFakeStore()
	st.addEmployer("emp-1")
	seedExpertise(st, "emp-1", 80)

	p := testProfile()
	p.MinData.MinAssessments = 3

	rating, err := New(st).Calculate(context.Background(), "emp-1", p, asOf)
	require.NoError(t, err)

	assert.Nil(t, rating.FinalScore, "one assessment against a floor of three must not produce a score")
	assert.Equal(t, model.BandUnknown, rating.FinalBand)
	assert.Equal(t, model.ConfidenceVeryLow, rating.OverallConfidence)
}

func TestCalculate_MonotonicConfidence(t *testing.T) {
	// Removing assessments (fewer categories covered) never increases
	// overall confidence.
	full := newFakeStore()
	full.addEmployer("emp-1")
	seedCompliance(full, "emp-1", 80)
	seedExpertise(full, "emp-1", 60)

	reduced := newFakeStore()
	reduced.addEmployer("emp-1")
	seedCompliance(reduced, "emp-1", 80)
	seedExpertise(reduced, "emp-1", 60)
	reduced.compliance["emp-1"] = reduced.compliance["emp-1"][:2]

	fullRating, err := New(full).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)
	reducedRating, err := New(reduced).Calculate(context.Background(), "emp-1", testProfile(), asOf)
	require.NoError(t, err)

	assert.LessOrEqual(t,
		reducedRating.OverallConfidence.Rank(),
		fullRating.OverallConfidence.Rank())
}
