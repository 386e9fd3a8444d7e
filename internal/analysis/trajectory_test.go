package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerotrace/telemetry-backend/internal/models"
)

func sample(x, y, z, errDist, ts float64) models.PositionSample {
	return models.PositionSample{
		Position: models.Vector3{X: x, Y: y, Z: z},
		Error:    errDist,
		Time:     ts,
		Phase:    models.PhaseTransit,
	}
}

func TestAnalyze_TwoSampleFlight(t *testing.T) {
	samples := []models.PositionSample{
		sample(0, 0, 10, 0.01, 0),
		sample(1, 0, 10, 0.03, 1),
	}
	ideal := []models.Vector3{{X: 0, Y: 0, Z: 10}, {X: 1, Y: 0, Z: 10}}

	m := Analyze(samples, ideal)
	require.NotNil(t, m)

	assert.InDelta(t, 0.02, m.PathAccuracy.Overall.Average, 1e-9)
	assert.InDelta(t, 0.03, m.PathAccuracy.Overall.Median, 1e-9)
	assert.InDelta(t, 0.01, m.PathAccuracy.Overall.Min, 1e-9)
	assert.InDelta(t, 0.03, m.PathAccuracy.Overall.Max, 1e-9)

	assert.InDelta(t, 1.0, m.Efficiency.ActualDistance, 1e-9)
	assert.InDelta(t, 1.0, m.Efficiency.IdealDistance, 1e-9)
	assert.InDelta(t, 1.0, m.Efficiency.EfficiencyRatio, 1e-9)

	assert.Equal(t, 2, m.Summary.SampleCount)
	assert.InDelta(t, 1.0, m.Summary.Duration, 1e-9)
	assert.InDelta(t, 1.0, m.Summary.AvgSpeed, 1e-9)
	assert.InDelta(t, 1.5, m.Summary.MaxSpeed, 1e-9)
}

func TestAnalyze_EmptySamples(t *testing.T) {
	m := Analyze(nil, nil)
	require.NotNil(t, m)

	assert.Equal(t, models.ErrorStats{}, m.PathAccuracy.Overall)
	assert.Equal(t, models.Stability{}, m.Stability)
	assert.Equal(t, 0, m.Summary.SampleCount)
	assert.InDelta(t, EfficiencyFallback, m.Efficiency.EfficiencyRatio, 1e-9)
}

func TestPathAccuracy_ComponentsOnlyWithTarget(t *testing.T) {
	target := models.Vector3{X: 0, Y: 0, Z: 10}
	samples := []models.PositionSample{
		{
			Position: models.Vector3{X: 0.3, Y: 0.4, Z: 11},
			Target:   &target,
			Phase:    models.PhaseWaypoint,
		},
		// Без цели: компонентная статистика не учитывает это измерение
		sample(5, 5, 5, 0.2, 1),
	}

	m := Analyze(samples, nil)

	// Ошибка первого измерения выводится из целевой позиции: sqrt(0.09+0.16+1)
	assert.InDelta(t, 1.118, m.PathAccuracy.Overall.Max, 1e-3)

	assert.InDelta(t, 0.5, m.PathAccuracy.XY.Average, 1e-9)
	assert.InDelta(t, 1.0, m.PathAccuracy.Altitude.Average, 1e-9)
}

func TestPhaseBreakdown(t *testing.T) {
	samples := []models.PositionSample{
		{Phase: models.PhaseWaypoint, Error: 0.02, Stabilized: true},
		{Phase: models.PhaseWaypoint, Error: 0.04, Stabilized: false},
		{Phase: models.PhaseTransit, Error: 0.10, Stabilized: false},
	}

	m := Analyze(samples, nil)

	assert.Equal(t, 2, m.PhaseBreakdown.Waypoint.Count)
	assert.InDelta(t, 0.03, m.PhaseBreakdown.Waypoint.AverageError, 1e-9)
	assert.InDelta(t, 0.5, m.PhaseBreakdown.Waypoint.StabilizationRate, 1e-9)

	assert.Equal(t, 1, m.PhaseBreakdown.Transit.Count)
	assert.InDelta(t, 0.10, m.PhaseBreakdown.Transit.AverageError, 1e-9)
	assert.InDelta(t, 0.0, m.PhaseBreakdown.Transit.StabilizationRate, 1e-9)
}

func TestPhaseBreakdown_EmptyPhase(t *testing.T) {
	samples := []models.PositionSample{
		{Phase: models.PhaseTransit, Error: 0.1},
	}

	m := Analyze(samples, nil)
	assert.Equal(t, models.PhaseStats{}, m.PhaseBreakdown.Waypoint)
}

func TestStability(t *testing.T) {
	t.Run("ConstantErrorScores100", func(t *testing.T) {
		samples := []models.PositionSample{
			{Error: 0.05, Stabilized: true},
			{Error: 0.05, Stabilized: true},
			{Error: 0.05, Stabilized: false},
		}

		m := Analyze(samples, nil)
		assert.InDelta(t, 0.0, m.Stability.ErrorVariance, 1e-9)
		assert.InDelta(t, 100.0, m.Stability.Score, 1e-9)
		assert.InDelta(t, 2.0/3.0, m.Stability.StabilizationRatio, 1e-9)
	})

	t.Run("LinearScale", func(t *testing.T) {
		// stddev = 0.01 -> score = 100 - 0.01*1000 = 90
		samples := []models.PositionSample{
			{Error: 0.04},
			{Error: 0.06},
		}

		m := Analyze(samples, nil)
		assert.InDelta(t, 0.01, m.Stability.ErrorVariance, 1e-9)
		assert.InDelta(t, 90.0, m.Stability.Score, 1e-9)
	})

	t.Run("ClampedAtZero", func(t *testing.T) {
		samples := []models.PositionSample{
			{Error: 0.0},
			{Error: 1.0},
		}

		m := Analyze(samples, nil)
		assert.Equal(t, 0.0, m.Stability.Score)
	})
}

func TestEfficiency(t *testing.T) {
	t.Run("DetourCapsBelowOne", func(t *testing.T) {
		// Фактический путь вдвое длиннее идеального
		samples := []models.PositionSample{
			sample(0, 0, 0, 0, 0),
			sample(1, 0, 0, 0, 1),
			sample(0, 0, 0, 0, 2),
		}
		ideal := []models.Vector3{{}, {X: 1}}

		m := Analyze(samples, ideal)
		assert.InDelta(t, 2.0, m.Efficiency.ActualDistance, 1e-9)
		assert.InDelta(t, 1.0, m.Efficiency.IdealDistance, 1e-9)
		assert.InDelta(t, 0.5, m.Efficiency.EfficiencyRatio, 1e-9)
	})

	t.Run("ShorterThanIdealCappedAtOne", func(t *testing.T) {
		samples := []models.PositionSample{
			sample(0, 0, 0, 0, 0),
			sample(1, 0, 0, 0, 1),
		}
		ideal := []models.Vector3{{}, {X: 5}}

		m := Analyze(samples, ideal)
		assert.InDelta(t, 1.0, m.Efficiency.EfficiencyRatio, 1e-9)
	})

	t.Run("NoIdealPathUsesFallback", func(t *testing.T) {
		samples := []models.PositionSample{
			sample(0, 0, 0, 0, 0),
			sample(1, 0, 0, 0, 1),
		}

		m := Analyze(samples, nil)
		assert.InDelta(t, EfficiencyFallback, m.Efficiency.EfficiencyRatio, 1e-9)
	})

	t.Run("StationaryDroneWithIdealPath", func(t *testing.T) {
		samples := []models.PositionSample{
			sample(0, 0, 0, 0, 0),
			sample(0, 0, 0, 0, 1),
		}
		ideal := []models.Vector3{{}, {X: 3}}

		m := Analyze(samples, ideal)
		assert.InDelta(t, 0.0, m.Efficiency.ActualDistance, 1e-9)
		assert.InDelta(t, 1.0, m.Efficiency.EfficiencyRatio, 1e-9)
	})
}

func TestSummarize_SingleSample(t *testing.T) {
	m := Analyze([]models.PositionSample{sample(0, 0, 0, 0, 5)}, nil)

	assert.Equal(t, 1, m.Summary.SampleCount)
	assert.Equal(t, 0.0, m.Summary.Duration)
	assert.Equal(t, 0.0, m.Summary.AvgSpeed)
	assert.Equal(t, 0.0, m.Summary.MaxSpeed)
}

func TestSummarize_ZeroDuration(t *testing.T) {
	samples := []models.PositionSample{
		sample(0, 0, 0, 0, 1),
		sample(1, 0, 0, 0, 1),
	}

	m := Analyze(samples, nil)
	assert.Equal(t, 0.0, m.Summary.AvgSpeed)
	assert.Equal(t, 0.0, m.Summary.MaxSpeed)
}
