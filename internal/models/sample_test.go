package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector3_DistanceTo(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector3
		expected float64
	}{
		{"SamePoint", Vector3{X: 1, Y: 2, Z: 3}, Vector3{X: 1, Y: 2, Z: 3}, 0},
		{"UnitX", Vector3{}, Vector3{X: 1}, 1},
		{"Pythagorean", Vector3{}, Vector3{X: 3, Y: 4}, 5},
		{"WithAltitude", Vector3{}, Vector3{X: 2, Y: 3, Z: 6}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.DistanceTo(tt.b), 1e-9)
		})
	}
}

func TestVector3_DistanceXY(t *testing.T) {
	a := Vector3{Z: 100}
	b := Vector3{X: 3, Y: 4, Z: -50}
	assert.InDelta(t, 5.0, a.DistanceXY(b), 1e-9)
}

func TestFlightPhase_Valid(t *testing.T) {
	assert.True(t, PhaseWaypoint.Valid())
	assert.True(t, PhaseTransit.Valid())
	assert.False(t, FlightPhase("hover").Valid())
	assert.False(t, FlightPhase("").Valid())
}

func TestPositionSample_QualityOrDefault(t *testing.T) {
	s := PositionSample{}
	assert.Equal(t, DefaultNetworkQuality, s.QualityOrDefault())

	quality := 42.0
	s.NetworkQuality = &quality
	assert.Equal(t, 42.0, s.QualityOrDefault())
}

func TestPositionSample_PositionError(t *testing.T) {
	target := Vector3{X: 3, Y: 4}

	t.Run("PrecomputedError", func(t *testing.T) {
		s := PositionSample{Error: 0.07, Target: &target}
		assert.Equal(t, 0.07, s.PositionError())
	})

	t.Run("DerivedFromTarget", func(t *testing.T) {
		s := PositionSample{Target: &target}
		assert.InDelta(t, 5.0, s.PositionError(), 1e-9)
	})

	t.Run("NoTargetNoError", func(t *testing.T) {
		s := PositionSample{}
		assert.Equal(t, 0.0, s.PositionError())
	})
}

func TestPositionSample_Validate(t *testing.T) {
	quality := 80.0
	badQuality := 120.0

	tests := []struct {
		name    string
		sample  PositionSample
		wantErr bool
	}{
		{
			name:   "Valid",
			sample: PositionSample{Phase: PhaseWaypoint, Time: 1.5, NetworkQuality: &quality},
		},
		{
			name:   "EmptyPhaseAllowed",
			sample: PositionSample{Time: 1.5},
		},
		{
			name:    "NaNPosition",
			sample:  PositionSample{Position: Vector3{X: math.NaN()}},
			wantErr: true,
		},
		{
			name:    "InfiniteTime",
			sample:  PositionSample{Time: math.Inf(1)},
			wantErr: true,
		},
		{
			name:    "NegativeError",
			sample:  PositionSample{Error: -0.1},
			wantErr: true,
		},
		{
			name:    "UnknownPhase",
			sample:  PositionSample{Phase: FlightPhase("hover")},
			wantErr: true,
		},
		{
			name:    "QualityOutOfRange",
			sample:  PositionSample{NetworkQuality: &badQuality},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositionSample_JSONRoundTrip(t *testing.T) {
	quality := 65.5
	target := Vector3{X: 1, Y: 2, Z: 3}
	original := PositionSample{
		Position:       Vector3{X: 1.1, Y: 2.2, Z: 3.3},
		Target:         &target,
		Time:           12.5,
		Error:          0.04,
		Phase:          PhaseWaypoint,
		Stabilized:     true,
		NetworkQuality: &quality,
	}

	data, err := json.Marshal(&original)
	require.NoError(t, err)

	var decoded PositionSample
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestPositionSample_JSONOmitsOptionalFields(t *testing.T) {
	data, err := json.Marshal(&PositionSample{Time: 1})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "target")
	assert.NotContains(t, string(data), "network_quality")
}
