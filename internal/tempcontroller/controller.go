// Package tempcontroller drives heater/cooler actuators toward each active
// batch's temperature target (spec §4.5).
package tempcontroller

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/actuator"
	"github.com/brewsignal/brewsignal/internal/datadog"
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/mpc"
	"github.com/brewsignal/brewsignal/internal/notifications"
)

const (
	defaultTickInterval       = 30 * time.Second
	staleness                 = 5 * time.Minute
	dwell                     = 5 * time.Minute
	staleNotificationCooldown = 30 * time.Minute
)

// ActuatorFactory builds an Actuator for a given switch-service entity id,
// so the controller doesn't need to know how actuators are constructed.
type ActuatorFactory func(entityID string) *actuator.Actuator

// Controller runs one tick loop that drives every controller-eligible
// batch. A single goroutine owns all ticks, so overlapping ticks for the
// same batch cannot occur (spec §5).
type Controller struct {
	conn       *sql.DB
	actuators  ActuatorFactory
	decider    mpc.Decider
	checkpoint *Checkpointer

	mu     sync.Mutex
	states map[int64]*model.ControllerState

	tickInterval time.Duration
}

func New(conn *sql.DB, actuators ActuatorFactory, decider mpc.Decider, checkpoint *Checkpointer) *Controller {
	if decider == nil {
		decider = mpc.NoopDecider{}
	}
	c := &Controller{
		conn:         conn,
		actuators:    actuators,
		decider:      decider,
		checkpoint:   checkpoint,
		states:       make(map[int64]*model.ControllerState),
		tickInterval: defaultTickInterval,
	}
	if checkpoint != nil {
		if restored, err := checkpoint.Load(); err != nil {
			log.Warn().Err(err).Msg("failed to load controller checkpoint, starting clean")
		} else {
			c.states = restored
		}
	}
	return c
}

// Run drives the tick loop until ctx is cancelled, then performs a
// best-effort safe-stop of every tracked actuator before returning.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.safeStopAll()
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	batches, err := db.ListControllerEligibleBatches(c.conn)
	if err != nil {
		log.Error().Err(err).Msg("failed to list controller-eligible batches")
		return
	}

	for _, batch := range batches {
		c.processBatch(ctx, batch)
	}

	if c.checkpoint != nil {
		c.mu.Lock()
		snapshot := make(map[int64]*model.ControllerState, len(c.states))
		for id, s := range c.states {
			cp := *s
			snapshot[id] = &cp
		}
		c.mu.Unlock()
		if err := c.checkpoint.Save(snapshot); err != nil {
			log.Warn().Err(err).Msg("failed to persist controller checkpoint")
		}
	}
}

func (c *Controller) processBatch(ctx context.Context, batch model.Batch) {
	now := time.Now()

	reading, err := db.LatestReading(c.conn, *batch.DeviceID)
	if err == sql.ErrNoRows {
		log.Debug().Int64("batch_id", batch.ID).Msg("no reading yet, skipping controller tick")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("batch_id", batch.ID).Msg("failed to load latest reading")
		return
	}

	state := c.stateFor(batch.ID)

	// Step 1: staleness gate.
	if now.Sub(reading.Timestamp) > staleness {
		log.Warn().Int64("batch_id", batch.ID).Time("reading_at", reading.Timestamp).Msg("latest reading too stale, skipping controller tick")
		c.notifyStale(batch.ID, state, now)
		return
	}

	c.mu.Lock()
	if state.Override != nil && !now.Before(state.Override.ExpiresAt) {
		state.Override = nil
	}
	c.mu.Unlock()

	plan := decide(batch, reading.TemperatureFiltered, state, now, c.decider)

	if plan.SendHeater && batch.HeaterEntity != nil {
		a := c.actuators(*batch.HeaterEntity)
		var applyErr error
		if plan.HeaterOn {
			applyErr = a.On(ctx)
		} else {
			applyErr = a.Off(ctx)
		}
		if applyErr != nil {
			log.Warn().Err(applyErr).Int64("batch_id", batch.ID).Str("entity_id", *batch.HeaterEntity).Msg("failed to apply heater command, will retry next tick")
		} else {
			c.mu.Lock()
			state.LastHeaterCommand = onOff(plan.HeaterOn)
			state.LastHeaterCommandAt = now
			c.mu.Unlock()
			datadog.Gauge("actuator.state", actuatorGaugeValue(plan.HeaterOn), "entity_id:"+*batch.HeaterEntity, "role:heater")
		}
	}

	if plan.SendCooler && batch.CoolerEntity != nil {
		a := c.actuators(*batch.CoolerEntity)
		var applyErr error
		if plan.CoolerOn {
			applyErr = a.On(ctx)
		} else {
			applyErr = a.Off(ctx)
		}
		if applyErr != nil {
			log.Warn().Err(applyErr).Int64("batch_id", batch.ID).Str("entity_id", *batch.CoolerEntity).Msg("failed to apply cooler command, will retry next tick")
		} else {
			c.mu.Lock()
			state.LastCoolerCommand = onOff(plan.CoolerOn)
			state.LastCoolerCommandAt = now
			c.mu.Unlock()
			datadog.Gauge("actuator.state", actuatorGaugeValue(plan.CoolerOn), "entity_id:"+*batch.CoolerEntity, "role:cooler")
		}
	}
}

// notifyStale sends an at-most-once-per-cooldown push notification for a
// batch whose reading has gone stale, so operators aren't paged every tick.
func (c *Controller) notifyStale(batchID int64, state *model.ControllerState, now time.Time) {
	c.mu.Lock()
	if now.Sub(state.LastStaleNotifiedAt) < staleNotificationCooldown {
		c.mu.Unlock()
		return
	}
	state.LastStaleNotifiedAt = now
	c.mu.Unlock()

	go func() {
		if err := notifications.Send("BrewSignal", fmt.Sprintf("batch %d has no recent readings", batchID)); err != nil {
			log.Debug().Err(err).Int64("batch_id", batchID).Msg("stale-batch notification failed")
		}
	}()
}

func actuatorGaugeValue(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func onOff(on bool) model.ActuatorState {
	if on {
		return model.ActuatorOn
	}
	return model.ActuatorOff
}

func (c *Controller) stateFor(batchID int64) *model.ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[batchID]
	if !ok {
		s = &model.ControllerState{
			BatchID:           batchID,
			LastHeaterCommand: model.ActuatorUnknown,
			LastCoolerCommand: model.ActuatorUnknown,
		}
		c.states[batchID] = s
	}
	return s
}

// safeStopAll sends OFF to the actuators of every batch the controller
// holds state for, best-effort, per spec §5's shutdown safe-stop rule.
func (c *Controller) safeStopAll() {
	c.mu.Lock()
	batchIDs := make([]int64, 0, len(c.states))
	for id := range c.states {
		batchIDs = append(batchIDs, id)
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range batchIDs {
		batch, err := db.GetBatch(c.conn, id)
		if err != nil {
			continue
		}
		if batch.HeaterEntity != nil {
			_ = c.actuators(*batch.HeaterEntity).Off(ctx)
		}
		if batch.CoolerEntity != nil {
			_ = c.actuators(*batch.CoolerEntity).Off(ctx)
		}
	}
}
