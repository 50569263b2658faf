package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// handleWebSocket upgrades the connection and streams the consolidated
// latest-per-device snapshot immediately, then one message per accepted
// reading or state change thereafter (spec §6). Client frames are not
// expected beyond pings, so reads only drain the connection to notice
// close/ping frames; no read deadline is set.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id, snapshots := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(snapshot); err != nil {
				log.Warn().Err(err).Str("subscriber_id", id).Msg("websocket write failed, dropping subscriber")
				return
			}
		}
	}
}
