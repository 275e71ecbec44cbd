package quality_test

import (
	"testing"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/quality"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_EmptyVector(t *testing.T) {
	_, err := quality.Analyze(nil)
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInvalidInput))
}

func TestAnalyze_ConstantVector(t *testing.T) {
	// std 0, mean 1 => diversity 0; magnitude = sqrt(4)/4 = 0.5
	report, err := quality.Analyze(vecmath.FeatureVector{1, 1, 1, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, report.DiversityScore, 1e-9)
	assert.InDelta(t, 0.2, report.Score, 1e-6)
	assert.Equal(t, 1.0, report.Mean)
	assert.Equal(t, 1.0, report.Max)
	assert.Equal(t, 1.0, report.Min)
}

func TestAnalyze_ScoreIsClamped(t *testing.T) {
	// mean 0 makes diversity huge; score must stay at 1
	report, err := quality.Analyze(vecmath.FeatureVector{1, -1, 1, -1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Score)
	assert.Greater(t, report.DiversityScore, 1.0)
}

func TestReport_Passes(t *testing.T) {
	r := quality.Report{Score: 0.7}
	assert.True(t, r.Passes(0.7))
	assert.False(t, r.Passes(0.71))
}

func TestSummarize(t *testing.T) {
	s := quality.Summarize([]quality.Report{{Score: 0.2}, {Score: 0.8}, {Score: 0.4}, {Score: 0.6}})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 0.5, s.Mean, 1e-9)
	assert.InDelta(t, 0.5, s.Median, 1e-9)
	assert.Equal(t, 0.2, s.Min)
	assert.Equal(t, 0.8, s.Max)

	assert.Equal(t, quality.Summary{}, quality.Summarize(nil))
}
