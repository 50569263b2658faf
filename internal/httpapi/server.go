// Package httpapi is the HTTP ingress and device-admin surface: ingest
// endpoints, the WebSocket broadcast feed, CSV export, and the minimal
// pairing/batch admin surface the rest of the system depends on (spec §6).
package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brewsignal/brewsignal/internal/adapters"
	"github.com/brewsignal/brewsignal/internal/broadcast"
	"github.com/brewsignal/brewsignal/internal/configstore"
	"github.com/brewsignal/brewsignal/internal/ingest"
	"github.com/brewsignal/brewsignal/internal/tempcontroller"
)

type Server struct {
	db         *sql.DB
	registry   *adapters.Registry
	manager    *ingest.Manager
	hub        *broadcast.Hub
	config     *configstore.Store
	controller *tempcontroller.Controller
	upgrader   websocket.Upgrader
}

func NewServer(database *sql.DB, manager *ingest.Manager, hub *broadcast.Hub, config *configstore.Store, controller *tempcontroller.Controller) *Server {
	return &Server{
		db:         database,
		registry:   adapters.NewRegistry(),
		manager:    manager,
		hub:        hub,
		config:     config,
		controller: controller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ingest/generic", s.handleIngestGeneric)
	mux.HandleFunc("/api/ingest/ispindel", s.handleIngestISpindel)
	mux.HandleFunc("/api/ingest/gravitymon", s.handleIngestGravityMon)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/log.csv", s.handleCSVExport)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/devices/", s.handleDeviceByID)
	mux.HandleFunc("/api/batches/", s.handleBatchRoutes)

	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	})

	log.Info().Str("address", addr).Msg("starting HTTP API server")
	return http.ListenAndServe(addr, corsHandler)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Warn().Err(err).Msg("failed to encode response body")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
