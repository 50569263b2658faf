package tempcontroller

import (
	"math"
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/mpc"
)

// Plan is the output of decide: which actuators to command this tick, and
// to what state. An actuator with Send=false is left alone.
type Plan struct {
	SendHeater bool
	HeaterOn   bool
	SendCooler bool
	CoolerOn   bool
}

// desiredBand is spec §4.5 step 3: heater/cooler desired state from the
// hysteresis band, nil meaning "unchanged" inside the band.
type desiredBand struct {
	heater *bool
	cooler *bool
}

func computeDesired(tempC, target, hysteresis float64) desiredBand {
	on, off := true, false
	switch {
	case tempC <= target-hysteresis:
		return desiredBand{heater: &on, cooler: &off}
	case tempC >= target+hysteresis:
		return desiredBand{heater: &off, cooler: &on}
	default:
		return desiredBand{}
	}
}

// decide implements spec §4.5 steps 2-5 for one batch on one tick. The
// staleness gate (step 1) is the caller's responsibility, before the
// processed temperature even reaches here. Step 3 is delegated to decider
// when it opts to handle the tick; mutex and dwell (steps 4-5) apply
// regardless of whether hysteresis or the decider produced the desired
// states, per spec §4.5's MPC integration note. decide receives only the
// temperature, so the decider is always passed 0 for gravityFiltered.
func decide(batch model.Batch, tempC float64, state *model.ControllerState, now time.Time, decider mpc.Decider) Plan {
	if state.Override != nil && now.Before(state.Override.ExpiresAt) {
		return overridePlan(state.Override)
	}

	target := *batch.TempTarget
	hysteresis := *batch.TempHysteresis

	var desired desiredBand
	if mpcDecision := decider.Decide(batch, 0, tempC); mpcDecision.Handled {
		on, off := true, false
		if mpcDecision.HeaterOn {
			desired.heater = &on
		} else {
			desired.heater = &off
		}
		if mpcDecision.CoolerOn {
			desired.cooler = &on
		} else {
			desired.cooler = &off
		}
	} else {
		desired = computeDesired(tempC, target, hysteresis)
	}

	// Step 4: mutex. Defensive only — computeDesired can't produce both ON.
	if desired.heater != nil && desired.cooler != nil && *desired.heater && *desired.cooler {
		off := false
		desired.heater, desired.cooler = &off, &off
	}

	runaway := math.Abs(tempC-target) > 2*hysteresis

	plan := Plan{}
	if desired.heater != nil && actuatorWants(state.LastHeaterCommand, state.LastHeaterCommandAt, *desired.heater, runaway, now) {
		plan.SendHeater = true
		plan.HeaterOn = *desired.heater
	}
	if desired.cooler != nil && actuatorWants(state.LastCoolerCommand, state.LastCoolerCommandAt, *desired.cooler, runaway, now) {
		plan.SendCooler = true
		plan.CoolerOn = *desired.cooler
	}
	return plan
}

// actuatorWants applies step 5's dwell rule and reports whether a command is
// sent. Nothing is sent when the actuator is already in the wanted state;
// otherwise the command goes out when the actuator has never been commanded,
// the batch is running away, or the dwell window has elapsed.
func actuatorWants(current model.ActuatorState, setAt time.Time, wantOn, runaway bool, now time.Time) bool {
	wantState := model.ActuatorOff
	if wantOn {
		wantState = model.ActuatorOn
	}
	if current == wantState {
		return false
	}
	if current == model.ActuatorUnknown {
		return true
	}
	if runaway {
		return true
	}
	return now.Sub(setAt) >= dwell
}

func overridePlan(o *model.Override) Plan {
	plan := Plan{SendHeater: true, SendCooler: true}
	forceOn := o.Force == model.ActuatorOn
	if o.Target == model.OverrideHeater {
		plan.HeaterOn = forceOn
		plan.CoolerOn = false
	} else {
		plan.CoolerOn = forceOn
		plan.HeaterOn = false
	}
	return plan
}
