// Package pipeline implements the per-device stateful signal-conditioning
// stage of the ingest funnel: two scalar Kalman filters, rate estimation,
// and residual-based anomaly detection (spec §4.4).
package pipeline

import (
	"sync"
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
)

const (
	gravityQPerHour     = 1e-8
	temperatureQPerHour = 1e-2
	gravityR            = 1e-6
	temperatureR        = 1e-1
	defaultP0           = 1.0

	hardLimitGravityResidual     = 0.003
	hardLimitTemperatureResidual = 2.0
	maxGravityRatePerHour        = 1e-3
	zScoreThreshold              = 3.5
)

// deviceState is the DeviceProcessingState named in spec §3: two Kalman
// tracks, their rolling anomaly windows, and a rate estimator per quantity.
type deviceState struct {
	gravity     *scalarKalman
	temperature *scalarKalman

	gravityWindow     *residualWindow
	temperatureWindow *residualWindow

	gravityRate     *rateEstimator
	temperatureRate *rateEstimator

	lastAt      time.Time
	initialized bool
}

// Pipeline owns one deviceState per device_id. It takes no cross-device
// lock beyond the map mutex; the ingest manager's per-device lock is what
// actually serializes calls for a single device (spec §4.3, §5).
type Pipeline struct {
	mu     sync.Mutex
	states map[string]*deviceState
}

func New() *Pipeline {
	return &Pipeline{states: make(map[string]*deviceState)}
}

func (p *Pipeline) stateFor(deviceID string) *deviceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[deviceID]
	if !ok {
		s = &deviceState{}
		p.states[deviceID] = s
	}
	return s
}

// Reset discards a device's in-memory state; the next Process call
// reinitializes it as if never seen (spec §4.4).
func (p *Pipeline) Reset(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, deviceID)
}

// WarmStart seeds a device's filters from the most recent persisted,
// non-anomalous reading on process start, per spec §4.4's warm-start
// protocol and the cycle-breaking note in §9.
func (p *Pipeline) WarmStart(deviceID string, filteredGravity, filteredTemperature float64, asOf time.Time) {
	s := p.stateFor(deviceID)
	s.gravity = newScalarKalman(filteredGravity, defaultP0, gravityQPerHour, gravityR)
	s.temperature = newScalarKalman(filteredTemperature, defaultP0, temperatureQPerHour, temperatureR)
	s.gravityWindow = newResidualWindow()
	s.temperatureWindow = newResidualWindow()
	s.gravityRate = newRateEstimator()
	s.temperatureRate = newRateEstimator()
	s.lastAt = asOf
	s.initialized = true
}

// Process runs one calibrated observation through the filter/rate/anomaly
// stages and returns the device's ProcessedReading (spec §4.4).
func (p *Pipeline) Process(deviceID string, gravityCal, temperatureCal float64, observedAt time.Time) model.ProcessedReading {
	s := p.stateFor(deviceID)

	if !s.initialized {
		s.gravity = newScalarKalman(gravityCal, defaultP0, gravityQPerHour, gravityR)
		s.temperature = newScalarKalman(temperatureCal, defaultP0, temperatureQPerHour, temperatureR)
		s.gravityWindow = newResidualWindow()
		s.temperatureWindow = newResidualWindow()
		s.gravityRate = newRateEstimator()
		s.temperatureRate = newRateEstimator()
		s.lastAt = observedAt
		s.initialized = true

		return model.ProcessedReading{
			GravityFiltered:     gravityCal,
			TemperatureFiltered: temperatureCal,
			GravityRate:         0,
			TemperatureRate:     0,
			Confidence:          1.0 / (1.0 + defaultP0),
			IsAnomaly:           false,
		}
	}

	deltaHours := observedAt.Sub(s.lastAt).Hours()
	s.gravity.predict(deltaHours)
	s.temperature.predict(deltaHours)
	s.lastAt = observedAt

	gResidual, gGain := s.gravity.trialResidual(gravityCal)
	tResidual, tGain := s.temperature.trialResidual(temperatureCal)

	gZ := s.gravityWindow.robustZScore(gResidual)
	tZ := s.temperatureWindow.robustZScore(tResidual)

	provisionalGravityRate := s.gravityRate.slopePerHour()

	var reasons []string
	if absf(gResidual) > hardLimitGravityResidual {
		reasons = append(reasons, "gravity_residual_exceeds_hard_limit")
	}
	if absf(tResidual) > hardLimitTemperatureResidual {
		reasons = append(reasons, "temperature_residual_exceeds_hard_limit")
	}
	if provisionalGravityRate > maxGravityRatePerHour {
		reasons = append(reasons, "gravity_rising")
	}
	if gZ > zScoreThreshold {
		reasons = append(reasons, "gravity_zscore_exceeds_threshold")
	}
	if tZ > zScoreThreshold {
		reasons = append(reasons, "temperature_zscore_exceeds_threshold")
	}

	isAnomaly := len(reasons) > 0
	score := maxf(gZ, tZ)

	var gravityFiltered, temperatureFiltered float64
	if isAnomaly {
		// Skip the Kalman update for this sample and leave the residual
		// windows untouched; the rate estimators below are still fed the
		// unchanged filtered estimate, so they advance in time without
		// absorbing the outlier (spec §4.4(d)).
		gravityFiltered = s.gravity.x
		temperatureFiltered = s.temperature.x
	} else {
		s.gravity.commit(gResidual, gGain)
		s.temperature.commit(tResidual, tGain)
		gravityFiltered = s.gravity.x
		temperatureFiltered = s.temperature.x
		s.gravityWindow.push(gResidual)
		s.temperatureWindow.push(tResidual)
	}

	gravityRate := s.gravityRate.push(observedAt, gravityFiltered)
	temperatureRate := s.temperatureRate.push(observedAt, temperatureFiltered)

	confidence := (s.gravity.confidence() + s.temperature.confidence()) / 2.0

	return model.ProcessedReading{
		GravityFiltered:     gravityFiltered,
		TemperatureFiltered: temperatureFiltered,
		GravityRate:         gravityRate,
		TemperatureRate:     temperatureRate,
		Confidence:          confidence,
		IsAnomaly:           isAnomaly,
		AnomalyReasons:      reasons,
		AnomalyScore:        score,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
