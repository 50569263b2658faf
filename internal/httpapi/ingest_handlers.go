package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/adapters"
	"github.com/brewsignal/brewsignal/internal/model"
)

// handleIngestGeneric accepts any supported hydrometer payload and resolves
// the adapter via the fixed-order sniff registry (spec §4.1, §6).
func (s *Server) handleIngestGeneric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	payload := adapters.Payload{
		SourceProtocol: "http",
		ObservedAt:     time.Now(),
		HTTPBody:       body,
		HTTPPath:       r.URL.Path,
	}
	reading, adapterErr, matched := s.registry.Route(payload)
	if !matched {
		writeError(w, http.StatusBadRequest, "no adapter recognized this payload")
		return
	}
	if adapterErr != nil {
		writeError(w, http.StatusBadRequest, adapterErr.Error())
		return
	}
	s.finishIngest(w, reading)
}

// handleIngestISpindel accepts the iSpindel-specific schema directly,
// bypassing the sniff-based registry (spec §6).
func (s *Server) handleIngestISpindel(w http.ResponseWriter, r *http.Request) {
	s.handleIngestFixedAdapter(w, r, adapters.ISpindelAdapter{})
}

// handleIngestGravityMon accepts the GravityMon-specific schema directly.
func (s *Server) handleIngestGravityMon(w http.ResponseWriter, r *http.Request) {
	s.handleIngestFixedAdapter(w, r, adapters.GravityMonAdapter{})
}

func (s *Server) handleIngestFixedAdapter(w http.ResponseWriter, r *http.Request, adapter adapters.Adapter) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	payload := adapters.Payload{
		SourceProtocol: "http",
		ObservedAt:     time.Now(),
		HTTPBody:       body,
		HTTPPath:       r.URL.Path,
	}
	reading, adapterErr := adapter.Parse(payload)
	if adapterErr != nil {
		writeError(w, http.StatusBadRequest, adapterErr.Error())
		return
	}
	s.finishIngest(w, reading)
}

func (s *Server) finishIngest(w http.ResponseWriter, reading model.NormalizedReading) {
	outcome := s.manager.Ingest(reading)
	switch outcome.Kind {
	case model.OutcomeAccepted:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "accepted", "reading_id": outcome.ReadingID})
	case model.OutcomeThrottled:
		writeJSON(w, http.StatusOK, map[string]string{"status": "throttled"})
	case model.OutcomeDeviceUnpaired:
		writeJSON(w, http.StatusOK, map[string]string{"status": "device_unpaired"})
	case model.OutcomeRejected:
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "malformed", "reason": string(outcome.Reason)})
	default:
		log.Error().Str("kind", string(outcome.Kind)).Msg("unrecognized ingest outcome kind")
		writeError(w, http.StatusInternalServerError, "unrecognized ingest outcome")
	}
}
