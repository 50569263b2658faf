// Package mpc defines the hook the temperature controller calls before
// falling back to hysteresis, reserved for a future model-predictive
// decision strategy (spec §9 open question: MPC is out of scope for this
// iteration, but the controller must not hardcode hysteresis as the only
// possible strategy).
package mpc

import "github.com/brewsignal/brewsignal/internal/model"

// Decision is what a Decider returns for one controller tick. Handled is
// false when the decider declines to act, telling the controller to fall
// through to its own hysteresis logic.
type Decision struct {
	Handled    bool
	HeaterOn   bool
	CoolerOn   bool
}

// Decider is consulted once per controller tick, ahead of hysteresis.
type Decider interface {
	Decide(batch model.Batch, gravityFiltered, temperatureFiltered float64) Decision
}

// NoopDecider never handles a tick, so the controller always falls back to
// its own hysteresis logic. It is the default Decider until an MPC
// strategy is implemented.
type NoopDecider struct{}

func (NoopDecider) Decide(batch model.Batch, gravityFiltered, temperatureFiltered float64) Decision {
	return Decision{Handled: false}
}
