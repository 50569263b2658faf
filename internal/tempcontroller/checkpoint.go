package tempcontroller

import (
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/store"
)

// Checkpointer persists the controller's in-memory ControllerState map so
// a restart doesn't forget recent actuator commands and immediately
// re-trigger a dwell-eligible transition (spec §9 crash-recovery note).
type Checkpointer struct {
	backing *store.Store[map[int64]*model.ControllerState]
}

func NewCheckpointer(path string) *Checkpointer {
	return &Checkpointer{backing: store.New[map[int64]*model.ControllerState](path)}
}

func (c *Checkpointer) Load() (map[int64]*model.ControllerState, error) {
	states, err := c.backing.Load()
	if err != nil {
		return make(map[int64]*model.ControllerState), err
	}
	if states == nil {
		states = make(map[int64]*model.ControllerState)
	}
	return states, nil
}

func (c *Checkpointer) Save(states map[int64]*model.ControllerState) error {
	return c.backing.Save(states)
}
