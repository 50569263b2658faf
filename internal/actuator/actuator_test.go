package actuator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewsignal/brewsignal/internal/model"
)

type fakeSwitchClient struct {
	state   model.ActuatorState
	stateErr error
	setErr  error
	calls   []bool
}

func (f *fakeSwitchClient) GetState(ctx context.Context, entityID string) (model.ActuatorState, error) {
	return f.state, f.stateErr
}

func (f *fakeSwitchClient) SetState(ctx context.Context, entityID string, on bool) error {
	f.calls = append(f.calls, on)
	return f.setErr
}

func TestOn_CallsSetStateTrue(t *testing.T) {
	client := &fakeSwitchClient{}
	a := New(client, "heater.fermenter1")
	require.NoError(t, a.On(context.Background()))
	assert.Equal(t, []bool{true}, client.calls)
}

func TestOff_CallsSetStateFalse(t *testing.T) {
	client := &fakeSwitchClient{}
	a := New(client, "cooler.fermenter1")
	require.NoError(t, a.Off(context.Background()))
	assert.Equal(t, []bool{false}, client.calls)
}

func TestCurrentState_UnknownOnError(t *testing.T) {
	client := &fakeSwitchClient{stateErr: errors.New("unreachable")}
	a := New(client, "heater.fermenter1")
	assert.Equal(t, model.ActuatorUnknown, a.CurrentState(context.Background()))
}

func TestCurrentState_ReturnsReportedState(t *testing.T) {
	client := &fakeSwitchClient{state: model.ActuatorOn}
	a := New(client, "heater.fermenter1")
	assert.Equal(t, model.ActuatorOn, a.CurrentState(context.Background()))
}
