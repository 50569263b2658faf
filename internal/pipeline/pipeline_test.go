package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstReading_NeverAnomalous(t *testing.T) {
	p := New()
	out := p.Process("dev-1", 1.050, 20.0, time.Now())
	assert.False(t, out.IsAnomaly)
	assert.Equal(t, 0.0, out.GravityRate)
	assert.Equal(t, 0.0, out.TemperatureRate)
	assert.InDelta(t, 1.0/(1.0+defaultP0), out.Confidence, 1e-9)
}

func TestNormalReadings_TrackSmoothDecline(t *testing.T) {
	p := New()
	base := time.Now()
	gravity := 1.050
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		out := p.Process("dev-1", gravity, 20.0, at)
		assert.False(t, out.IsAnomaly, "reading %d should not be anomalous", i)
		gravity -= 0.001
	}
}

func TestHardLimitGravitySpike_FlaggedAnomalous(t *testing.T) {
	p := New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		p.Process("dev-1", 1.050, 20.0, base.Add(time.Duration(i)*time.Hour))
	}
	out := p.Process("dev-1", 1.060, 20.0, base.Add(5*time.Hour)) // +0.01 spike
	assert.True(t, out.IsAnomaly)
	assert.Contains(t, out.AnomalyReasons, "gravity_residual_exceeds_hard_limit")
}

func TestHardLimitTemperatureSpike_FlaggedAnomalous(t *testing.T) {
	p := New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		p.Process("dev-1", 1.050, 20.0, base.Add(time.Duration(i)*time.Hour))
	}
	out := p.Process("dev-1", 1.050, 25.0, base.Add(5*time.Hour))
	assert.True(t, out.IsAnomaly)
	assert.Contains(t, out.AnomalyReasons, "temperature_residual_exceeds_hard_limit")
}

func TestAnomalousSample_SkipsKalmanUpdateButAdvancesTime(t *testing.T) {
	p := New()
	base := time.Now()
	p.Process("dev-1", 1.050, 20.0, base)
	before := p.Process("dev-1", 1.050, 20.0, base.Add(time.Hour))

	spike := p.Process("dev-1", 1.090, 20.0, base.Add(2*time.Hour))
	assert.True(t, spike.IsAnomaly)
	// Filtered value should not have jumped toward the spike.
	assert.InDelta(t, before.GravityFiltered, spike.GravityFiltered, 1e-6)

	after := p.Process("dev-1", 1.049, 20.0, base.Add(3*time.Hour))
	assert.False(t, after.IsAnomaly)
}

func TestReset_DiscardsState(t *testing.T) {
	p := New()
	p.Process("dev-1", 1.050, 20.0, time.Now())
	p.Reset("dev-1")
	out := p.Process("dev-1", 1.050, 20.0, time.Now())
	assert.InDelta(t, 1.0/(1.0+defaultP0), out.Confidence, 1e-9)
}

func TestWarmStart_SeedsFromPersistedReading(t *testing.T) {
	p := New()
	p.WarmStart("dev-1", 1.040, 18.0, time.Now().Add(-time.Minute))
	out := p.Process("dev-1", 1.0398, 18.05, time.Now())
	assert.False(t, out.IsAnomaly)
	assert.InDelta(t, 1.040, out.GravityFiltered, 0.01)
}
