package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

const validProfileYAML = `
name: test-profile
scope: global
project_data_weight: 0.5
organiser_expertise_weight: 0.5
compliance_weights:
  wages_compliance: 0.6
  safety_compliance: 0.4
expertise_weights:
  union_relationship: 1.0
min_data_requirements:
  min_assessments: 2
  recency_window_days: 180
  required_categories: [wages_compliance, safety_compliance]
confidence_thresholds:
  high_min: 0.9
  medium_min: 0.6
  low_min: 0.3
  very_low_max: 0.1
decay:
  curve: linear
  half_life_days: 60
min_acceptable_confidence: low
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_Valid(t *testing.T) {
	p, res, err := LoadFile(writeProfile(t, validProfileYAML))
	require.NoError(t, err)
	assert.True(t, res.Valid())
	assert.Equal(t, "test-profile", p.Name)
	assert.Equal(t, model.DecayLinear, p.Decay.Curve)
	assert.Equal(t, 0.6, p.ComplianceWeights["wages_compliance"])
	assert.Equal(t, model.ConfidenceLow, p.MinAcceptableConfidence)
}

func TestLoadFile_InvalidProfile(t *testing.T) {
	bad := `
name: lopsided
project_data_weight: 0.7
organiser_expertise_weight: 0.5
compliance_weights:
  wages_compliance: 1.0
expertise_weights:
  union_relationship: 1.0
confidence_thresholds:
  high_min: 0.9
  medium_min: 0.6
  low_min: 0.3
  very_low_max: 0.1
`
	p, res, err := LoadFile(writeProfile(t, bad))
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrProfileInvalid))
	assert.Nil(t, p)
	assert.NotEmpty(t, res.Errors)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.False(t, eris.Is(err, model.ErrProfileInvalid))
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	_, _, err := LoadFile(writeProfile(t, "name: [unclosed"))
	require.Error(t, err)
}

func TestParseFile_SkipsValidation(t *testing.T) {
	bad := `
name: broken
project_data_weight: 0.7
organiser_expertise_weight: 0.5
`
	p, err := ParseFile(writeProfile(t, bad))
	require.NoError(t, err)
	assert.Equal(t, "broken", p.Name)
	assert.False(t, Validate(*p).Valid())
}

func TestDefault_IsValid(t *testing.T) {
	assert.True(t, Validate(Default()).Valid())
}
