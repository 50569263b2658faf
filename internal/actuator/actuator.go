// Package actuator drives heater/cooler entities through the switch
// service and tracks their last-known state for the controller (spec §4.5).
package actuator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/model"
)

// SwitchClient is the subset of switchclient.Client the actuator needs,
// named so tests can substitute a fake without spinning up an HTTP server.
type SwitchClient interface {
	GetState(ctx context.Context, entityID string) (model.ActuatorState, error)
	SetState(ctx context.Context, entityID string, on bool) error
}

// Actuator wraps a SwitchClient for a single heater or cooler entity.
// Activate and Deactivate are package-level function variables so tests can
// swap in a recording stub without a real switch service running.
type Actuator struct {
	EntityID string
	client   SwitchClient
}

func New(client SwitchClient, entityID string) *Actuator {
	return &Actuator{EntityID: entityID, client: client}
}

// Activate and Deactivate are assigned to the real implementations below;
// tests reassign them to capture calls instead of hitting the network.
var (
	Activate   = activate
	Deactivate = deactivate
)

func activate(ctx context.Context, client SwitchClient, entityID string) error {
	if err := client.SetState(ctx, entityID, true); err != nil {
		log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to activate actuator")
		return err
	}
	return nil
}

func deactivate(ctx context.Context, client SwitchClient, entityID string) error {
	if err := client.SetState(ctx, entityID, false); err != nil {
		log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to deactivate actuator")
		return err
	}
	return nil
}

// On commands this actuator's entity on.
func (a *Actuator) On(ctx context.Context) error {
	return Activate(ctx, a.client, a.EntityID)
}

// Off commands this actuator's entity off.
func (a *Actuator) Off(ctx context.Context) error {
	return Deactivate(ctx, a.client, a.EntityID)
}

// CurrentState reports the entity's last-reported state, model.ActuatorUnknown
// on any read failure (spec §4.5's unknown-until-first-successful-read rule).
func (a *Actuator) CurrentState(ctx context.Context) model.ActuatorState {
	state, err := a.client.GetState(ctx, a.EntityID)
	if err != nil {
		log.Debug().Err(err).Str("entity_id", a.EntityID).Msg("actuator state read failed")
		return model.ActuatorUnknown
	}
	return state
}
