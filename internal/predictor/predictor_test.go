package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brewsignal/brewsignal/internal/model"
)

func readingsFrom(values []float64, start time.Time, step time.Duration) []model.Reading {
	out := make([]model.Reading, len(values))
	for i, v := range values {
		out[i] = model.Reading{Timestamp: start.Add(time.Duration(i) * step), GravityFiltered: v}
	}
	return out
}

func TestPredict_NotReadyBelowMinSamples(t *testing.T) {
	readings := readingsFrom([]float64{1.060, 1.055}, time.Now(), time.Hour)
	est := Predict(readings)
	assert.False(t, est.Ready)
}

func TestPredict_DecliningGravityProducesETA(t *testing.T) {
	start := time.Now()
	values := []float64{1.060, 1.050, 1.042, 1.036, 1.032, 1.029, 1.027, 1.0255}
	readings := readingsFrom(values, start, 12*time.Hour)

	est := Predict(readings)
	assert.True(t, est.Ready)
	assert.Less(t, est.TerminalGravity, values[len(values)-1])
	assert.True(t, est.ETA.After(readings[len(readings)-1].Timestamp))
}

func TestPredict_FlatGravityNeverPanicsOrDivides(t *testing.T) {
	values := []float64{1.050, 1.050, 1.050, 1.050, 1.050, 1.050}
	readings := readingsFrom(values, time.Now(), time.Hour)

	assert.NotPanics(t, func() { Predict(readings) })
}

func TestPredict_AlreadyAtTerminalReturnsImmediateETA(t *testing.T) {
	values := []float64{1.010, 1.0101, 1.0099, 1.0100, 1.0100, 1.0100}
	readings := readingsFrom(values, time.Now(), time.Hour)

	est := Predict(readings)
	if est.Ready {
		assert.WithinDuration(t, readings[len(readings)-1].Timestamp, est.ETA, 48*time.Hour)
	}
}
