package tempcontroller

import (
	"fmt"
	"time"

	"github.com/brewsignal/brewsignal/internal/model"
)

// SetOverride installs a manual override for a batch: the target actuator
// is forced to the given state for duration, and the other actuator is
// forced off (spec §4.5's manual override contract).
func (c *Controller) SetOverride(batchID int64, target model.OverrideTarget, on bool, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("override duration must be positive, got %s", duration)
	}
	force := model.ActuatorOff
	if on {
		force = model.ActuatorOn
	}
	state := c.stateFor(batchID)
	c.mu.Lock()
	defer c.mu.Unlock()
	state.Override = &model.Override{
		Target:    target,
		Force:     force,
		ExpiresAt: time.Now().Add(duration),
	}
	return nil
}

// ClearOverride removes a batch's manual override, if any.
func (c *Controller) ClearOverride(batchID int64) {
	state := c.stateFor(batchID)
	c.mu.Lock()
	defer c.mu.Unlock()
	state.Override = nil
}
