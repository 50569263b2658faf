package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/model"
	"github.com/brewsignal/brewsignal/internal/notifications"
	"github.com/brewsignal/brewsignal/internal/predictor"
)

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	devices, err := db.ListDevices(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

type deviceAdminPatch struct {
	Paired                *bool   `json:"paired"`
	DisplayName           *string `json:"display_name"`
	NativeGravityUnit     *string `json:"native_gravity_unit"`
	NativeTemperatureUnit *string `json:"native_temperature_unit"`
}

// handleDeviceByID serves PATCH /api/devices/{id}, the pairing and
// display/unit admin surface (spec §4.2, §4.8).
func (s *Server) handleDeviceByID(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	if deviceID == "" {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		s.patchDevice(w, r, deviceID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) patchDevice(w http.ResponseWriter, r *http.Request, deviceID string) {
	existing, err := db.GetDevice(s.db, deviceID)
	if isNotFound(err) {
		notFound(w)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load device")
		return
	}

	var patch deviceAdminPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	paired := existing.Paired
	displayName := existing.DisplayName
	gravityUnit := existing.NativeGravityUnit
	tempUnit := existing.NativeTemperatureUnit
	if patch.Paired != nil {
		paired = *patch.Paired
	}
	if patch.DisplayName != nil {
		displayName = *patch.DisplayName
	}
	if patch.NativeGravityUnit != nil {
		gravityUnit = model.GravityUnit(*patch.NativeGravityUnit)
	}
	if patch.NativeTemperatureUnit != nil {
		tempUnit = model.TemperatureUnit(*patch.NativeTemperatureUnit)
	}

	if err := db.UpdateDeviceAdmin(s.db, deviceID, paired, displayName, gravityUnit, tempUnit); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update device")
		return
	}
	if existing.Paired && !paired {
		go func() {
			if err := notifications.Send("BrewSignal", fmt.Sprintf("device %s was unpaired", deviceID)); err != nil {
				log.Debug().Err(err).Str("device_id", deviceID).Msg("device-unpaired notification failed")
			}
		}()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type batchAdminPatch struct {
	Status         *string  `json:"status"`
	TempTarget     *float64 `json:"temp_target"`
	TempHysteresis *float64 `json:"temp_hysteresis"`
	HeaterEntity   *string  `json:"heater_entity"`
	CoolerEntity   *string  `json:"cooler_entity"`
}

type overrideRequest struct {
	Target          string `json:"target"`
	State           string `json:"state"`
	DurationMinutes int    `json:"duration_minutes"`
}

// handleBatchRoutes dispatches /api/batches/{id} and
// /api/batches/{id}/override by splitting the remaining path (spec §6).
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		notFound(w)
		return
	}
	batchID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	switch {
	case len(segments) == 1:
		s.patchBatch(w, r, batchID)
	case len(segments) == 2 && segments[1] == "override":
		s.handleOverride(w, r, batchID)
	case len(segments) == 2 && segments[1] == "prediction":
		s.handlePrediction(w, r, batchID)
	default:
		notFound(w)
	}
}

// handlePrediction serves the completion-day estimate for a batch's device,
// fit over its recent non-anomalous readings (spec §4.4 supplement).
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request, batchID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	batch, err := db.GetBatch(s.db, batchID)
	if isNotFound(err) {
		notFound(w)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}
	if batch.DeviceID == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": false})
		return
	}

	readings, err := db.ReadingsInRange(s.db, *batch.DeviceID, time.Now().Add(-predictionWindow), time.Now(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	nonAnomalous := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		if !r.IsAnomaly {
			nonAnomalous = append(nonAnomalous, r)
		}
	}

	estimate := predictor.Predict(nonAnomalous)
	if !estimate.Ready {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":            true,
		"terminal_gravity": estimate.TerminalGravity,
		"eta":              estimate.ETA.UTC().Format(time.RFC3339),
	})
}

const predictionWindow = 14 * 24 * time.Hour

func (s *Server) patchBatch(w http.ResponseWriter, r *http.Request, batchID int64) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	existing, err := db.GetBatch(s.db, batchID)
	if isNotFound(err) {
		notFound(w)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}

	var patch batchAdminPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated := *existing
	if patch.TempTarget != nil {
		updated.TempTarget = patch.TempTarget
	}
	if patch.TempHysteresis != nil {
		updated.TempHysteresis = patch.TempHysteresis
	}
	if patch.HeaterEntity != nil {
		updated.HeaterEntity = patch.HeaterEntity
	}
	if patch.CoolerEntity != nil {
		updated.CoolerEntity = patch.CoolerEntity
	}
	if patch.Status != nil {
		updated.Status = model.BatchStatus(*patch.Status)
	}

	tx, err := db.StartTransaction(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start transaction")
		return
	}

	if updated.Status == model.BatchFermenting && updated.DeviceID != nil {
		count, err := db.CountFermentingForDeviceWithTx(tx, *updated.DeviceID, batchID)
		if err != nil {
			db.RollbackTransaction(tx)
			writeError(w, http.StatusInternalServerError, "failed to check fermenting invariant")
			return
		}
		if count > 0 {
			db.RollbackTransaction(tx)
			writeError(w, http.StatusBadRequest, "device already has an active fermenting batch")
			return
		}
	}

	if err := db.UpdateBatchWithTx(tx, updated); err != nil {
		db.RollbackTransaction(tx)
		writeError(w, http.StatusInternalServerError, "failed to update batch")
		return
	}
	if err := db.CommitTransaction(tx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleOverride serves the manual override contract (spec §4.5):
// POST sets a time-boxed forced actuator state, DELETE clears it early.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request, batchID int64) {
	switch r.Method {
	case http.MethodPost:
		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		var target model.OverrideTarget
		switch req.Target {
		case "heater":
			target = model.OverrideHeater
		case "cooler":
			target = model.OverrideCooler
		default:
			writeError(w, http.StatusBadRequest, "target must be heater or cooler")
			return
		}
		var on bool
		switch req.State {
		case "on":
			on = true
		case "off":
			on = false
		default:
			writeError(w, http.StatusBadRequest, "state must be on or off")
			return
		}
		if req.DurationMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
			return
		}
		if err := s.controller.SetOverride(batchID, target, on, time.Duration(req.DurationMinutes)*time.Minute); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "override_set"})
	case http.MethodDelete:
		s.controller.ClearOverride(batchID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "override_cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}
