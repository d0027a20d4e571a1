package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

func trackResult(band model.RatingBand, conf model.ConfidenceLevel, categories map[string]float64) model.TrackResult {
	score := 50.0
	return model.TrackResult{
		Score:          &score,
		Band:           band,
		Confidence:     conf,
		CategoryScores: categories,
	}
}

func TestDetect_Agreement(t *testing.T) {
	t1 := trackResult(model.BandGreen, model.ConfidenceHigh, nil)
	t2 := trackResult(model.BandGreen, model.ConfidenceHigh, nil)

	res := Detect(t1, t2, testProfile())
	assert.False(t, res.Detected)
	assert.Equal(t, model.DiscrepancyNone, res.Severity)
}

func TestDetect_AdjacentBandsMinor(t *testing.T) {
	t1 := trackResult(model.BandGreen, model.ConfidenceMedium, nil)
	t2 := trackResult(model.BandAmber, model.ConfidenceMedium, nil)

	res := Detect(t1, t2, testProfile())
	assert.True(t, res.Detected)
	assert.Equal(t, model.DiscrepancyMinor, res.Severity)
}

func TestDetect_OppositeBandsMajor(t *testing.T) {
	t1 := trackResult(model.BandGreen, model.ConfidenceMedium, nil)
	t2 := trackResult(model.BandRed, model.ConfidenceHigh, nil)

	res := Detect(t1, t2, testProfile())
	assert.True(t, res.Detected)
	assert.Equal(t, model.DiscrepancyMajor, res.Severity)
	assert.Contains(t, res.Explanation, "green")
	assert.Contains(t, res.Explanation, "red")
}

func TestDetect_HighConfidenceEscalates(t *testing.T) {
	minor := Detect(
		trackResult(model.BandGreen, model.ConfidenceHigh, nil),
		trackResult(model.BandAmber, model.ConfidenceHigh, nil),
		testProfile())
	assert.Equal(t, model.DiscrepancyMajor, minor.Severity)

	major := Detect(
		trackResult(model.BandGreen, model.ConfidenceHigh, nil),
		trackResult(model.BandRed, model.ConfidenceHigh, nil),
		testProfile())
	assert.Equal(t, model.DiscrepancyCritical, major.Severity)
}

func TestDetect_UnknownBandSuppresses(t *testing.T) {
	t1 := trackResult(model.BandGreen, model.ConfidenceHigh, nil)
	t2 := trackResult(model.BandUnknown, model.ConfidenceVeryLow, nil)

	res := Detect(t1, t2, testProfile())
	assert.False(t, res.Detected)
	assert.Equal(t, model.DiscrepancyNone, res.Severity)
}

func TestDetect_Symmetric(t *testing.T) {
	pairs := [][2]model.RatingBand{
		{model.BandGreen, model.BandRed},
		{model.BandGreen, model.BandAmber},
		{model.BandAmber, model.BandRed},
		{model.BandGreen, model.BandGreen},
		{model.BandUnknown, model.BandRed},
	}
	for _, pair := range pairs {
		t1 := trackResult(pair[0], model.ConfidenceMedium, nil)
		t2 := trackResult(pair[1], model.ConfidenceMedium, nil)

		ab := Detect(t1, t2, testProfile())
		ba := Detect(t2, t1, testProfile())
		assert.Equal(t, ab.Detected, ba.Detected, "%s vs %s", pair[0], pair[1])
		assert.Equal(t, ab.Severity, ba.Severity, "%s vs %s", pair[0], pair[1])
	}
}

func TestDetect_DivergentCategoriesWorstFirst(t *testing.T) {
	t1 := trackResult(model.BandGreen, model.ConfidenceMedium, map[string]float64{
		"wages_compliance":  90,
		"safety_compliance": 80,
		"eba_adherence":     55,
	})
	t2 := trackResult(model.BandRed, model.ConfidenceMedium, map[string]float64{
		"wages_compliance":  20, // gap 70
		"safety_compliance": 50, // gap 30
		"eba_adherence":     45, // gap 10, below threshold
		"delegate_access":   5,  // not scored by t1
	})

	res := Detect(t1, t2, testProfile())
	assert.Equal(t, []string{"wages_compliance", "safety_compliance"}, res.DivergentCategories)
	assert.Contains(t, res.Explanation, "wages_compliance")
}
