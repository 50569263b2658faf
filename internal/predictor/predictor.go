// Package predictor estimates a batch's likely completion day from its
// recent gravity trend. It is a pure, panic-recovered best-effort
// estimate, never on the ingest or control critical path.
package predictor

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/model"
)

const minSamples = 5

// Estimate is the predictor's output: a terminal gravity and an ETA, or
// Ready=false when there isn't enough history to fit a trend yet.
type Estimate struct {
	Ready           bool
	TerminalGravity float64
	ETA             time.Time
}

// Predict fits a simple exponential decay of gravity toward a terminal
// value from a window of non-anomalous readings, ordered oldest-first, and
// reports when the curve is expected to flatten to within 0.001 SG of its
// asymptote. A panic inside the fit (degenerate input, NaN arithmetic) is
// recovered and reported as a not-ready estimate, never propagated.
func Predict(readings []model.Reading) (result Estimate) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("completion predictor panicked, returning not-ready estimate")
			result = Estimate{}
		}
	}()

	if len(readings) < minSamples {
		return Estimate{}
	}

	t0 := readings[0].Timestamp
	xs := make([]float64, len(readings))
	ys := make([]float64, len(readings))
	for i, r := range readings {
		xs[i] = r.Timestamp.Sub(t0).Hours()
		ys[i] = r.GravityFiltered
	}

	terminal := estimateAsymptote(ys)
	rate := fitDecayRate(xs, ys, terminal)
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Estimate{}
	}

	// Hours until the remaining gap to terminal decays below 0.001 SG.
	current := ys[len(ys)-1]
	gap := current - terminal
	if gap <= 0.001 {
		return Estimate{Ready: true, TerminalGravity: terminal, ETA: readings[len(readings)-1].Timestamp}
	}
	hoursRemaining := math.Log(gap/0.001) / rate

	lastAt := readings[len(readings)-1].Timestamp
	return Estimate{
		Ready:           true,
		TerminalGravity: terminal,
		ETA:             lastAt.Add(time.Duration(hoursRemaining * float64(time.Hour))),
	}
}

// estimateAsymptote approximates the terminal gravity as the minimum
// observed value, a reasonable floor for a monotonically declining
// fermentation curve without fitting a third free parameter.
func estimateAsymptote(ys []float64) float64 {
	min := ys[0]
	for _, y := range ys {
		if y < min {
			min = y
		}
	}
	return min
}

// fitDecayRate performs a linear regression of ln(y - terminal) against x,
// the standard linearization of y = terminal + (y0-terminal)*e^(-rate*x).
// Returns the fitted rate (positive for decay toward terminal).
func fitDecayRate(xs, ys []float64, terminal float64) float64 {
	var sumX, sumZ, sumXZ, sumXX float64
	n := 0.0
	for i := range xs {
		gap := ys[i] - terminal
		if gap <= 0 {
			continue
		}
		z := math.Log(gap)
		sumX += xs[i]
		sumZ += z
		sumXZ += xs[i] * z
		sumXX += xs[i] * xs[i]
		n++
	}
	if n < 2 {
		return 0
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXZ - sumX*sumZ) / denom
	return -slope
}
