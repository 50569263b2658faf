package tempcontroller

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/actuator"
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/mpc"
)

type recordingSwitchClient struct {
	mu    sync.Mutex
	state map[string]model.ActuatorState
}

func newRecordingSwitchClient() *recordingSwitchClient {
	return &recordingSwitchClient{state: make(map[string]model.ActuatorState)}
}

func (r *recordingSwitchClient) GetState(ctx context.Context, entityID string) (model.ActuatorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state[entityID]
	if !ok {
		return model.ActuatorUnknown, nil
	}
	return s, nil
}

func (r *recordingSwitchClient) SetState(ctx context.Context, entityID string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.state[entityID] = model.ActuatorOn
	} else {
		r.state[entityID] = model.ActuatorOff
	}
	return nil
}

func (r *recordingSwitchClient) stateOf(entityID string) model.ActuatorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state[entityID]
	if !ok {
		return model.ActuatorUnknown
	}
	return s
}

func newTestController(t *testing.T) (*Controller, *recordingSwitchClient, *sql.DB) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitializeSchema(conn))
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { conn.Close() })

	client := newRecordingSwitchClient()
	factory := func(entityID string) *actuator.Actuator { return actuator.New(client, entityID) }
	c := New(conn, factory, mpc.NoopDecider{}, nil)
	return c, client, conn
}

func seedFermentingBatch(t *testing.T, conn *sql.DB, deviceID string, target, hysteresis float64) int64 {
	t.Helper()
	heater, cooler := "heater."+deviceID, "cooler."+deviceID
	require.NoError(t, db.UpsertDevice(conn, deviceID, model.KindTilt, model.GravitySG, model.TempCelsius, time.Now()))
	id, err := db.CreateBatch(conn, model.Batch{
		DeviceID: &deviceID, BatchNumber: 1, Status: model.BatchFermenting,
		HeaterEntity: &heater, CoolerEntity: &cooler, TempTarget: &target, TempHysteresis: &hysteresis,
	})
	require.NoError(t, err)
	return id
}

func insertReadingAt(t *testing.T, conn *sql.DB, deviceID string, tempFiltered float64, at time.Time) {
	t.Helper()
	_, err := db.InsertReading(conn, model.Reading{
		DeviceID: deviceID, Timestamp: at, TemperatureFiltered: tempFiltered, Status: model.StatusValid,
	})
	require.NoError(t, err)
}

func TestTick_ColdBatchTurnsHeaterOn(t *testing.T) {
	c, client, conn := newTestController(t)
	seedFermentingBatch(t, conn, "dev-1", 20.0, 0.5)
	insertReadingAt(t, conn, "dev-1", 19.0, time.Now())

	c.tick(context.Background())

	assert.Equal(t, model.ActuatorOn, client.stateOf("heater.dev-1"))
	assert.Equal(t, model.ActuatorOff, client.stateOf("cooler.dev-1"))
}

func TestTick_StaleReadingSkipsBatch(t *testing.T) {
	c, client, conn := newTestController(t)
	seedFermentingBatch(t, conn, "dev-1", 20.0, 0.5)
	insertReadingAt(t, conn, "dev-1", 19.0, time.Now().Add(-10*time.Minute))

	c.tick(context.Background())

	assert.Equal(t, model.ActuatorUnknown, client.stateOf("heater.dev-1"))
}

func TestSetOverride_ForcesActuatorRegardlessOfBand(t *testing.T) {
	c, client, conn := newTestController(t)
	batchID := seedFermentingBatch(t, conn, "dev-1", 20.0, 0.5)
	insertReadingAt(t, conn, "dev-1", 20.0, time.Now())

	require.NoError(t, c.SetOverride(batchID, model.OverrideHeater, true, time.Minute))
	c.tick(context.Background())

	assert.Equal(t, model.ActuatorOn, client.stateOf("heater.dev-1"))
	assert.Equal(t, model.ActuatorOff, client.stateOf("cooler.dev-1"))
}

func TestClearOverride_ReturnsToHysteresis(t *testing.T) {
	c, client, conn := newTestController(t)
	batchID := seedFermentingBatch(t, conn, "dev-1", 20.0, 0.5)
	insertReadingAt(t, conn, "dev-1", 20.0, time.Now())

	require.NoError(t, c.SetOverride(batchID, model.OverrideHeater, true, time.Minute))
	c.tick(context.Background())
	assert.Equal(t, model.ActuatorOn, client.stateOf("heater.dev-1"))

	c.ClearOverride(batchID)
	insertReadingAt(t, conn, "dev-1", 20.0, time.Now())
	c.tick(context.Background())
	// inside band, no forced command, so heater state is left as the override set it
	assert.Equal(t, model.ActuatorOn, client.stateOf("heater.dev-1"))
}
