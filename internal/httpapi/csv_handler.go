package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/db"
)

var csvHeader = []string{
	"device_id", "timestamp", "gravity_raw", "gravity_calibrated", "gravity_filtered",
	"temperature_raw", "temperature_calibrated", "temperature_filtered",
	"confidence", "is_anomaly", "batch_id",
}

// handleCSVExport streams the union of readings across all devices, in
// chronological order (spec §6).
func (s *Server) handleCSVExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	readings, err := db.AllReadingsChronological(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to load readings for csv export")
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="log.csv"`)
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		log.Warn().Err(err).Msg("failed to write csv header")
		return
	}
	for _, reading := range readings {
		batchID := ""
		if reading.BatchID != nil {
			batchID = fmt.Sprintf("%d", *reading.BatchID)
		}
		row := []string{
			reading.DeviceID,
			reading.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			fmt.Sprintf("%g", reading.GravityRaw),
			fmt.Sprintf("%g", reading.GravityCalibrated),
			fmt.Sprintf("%g", reading.GravityFiltered),
			fmt.Sprintf("%g", reading.TemperatureRaw),
			fmt.Sprintf("%g", reading.TemperatureCalibrated),
			fmt.Sprintf("%g", reading.TemperatureFiltered),
			fmt.Sprintf("%g", reading.Confidence),
			fmt.Sprintf("%t", reading.IsAnomaly),
			batchID,
		}
		if err := writer.Write(row); err != nil {
			log.Warn().Err(err).Msg("failed to write csv row, truncating export")
			break
		}
	}
	writer.Flush()
}
