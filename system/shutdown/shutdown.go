// Package shutdown propagates the root cancellation signal on process
// termination (spec §5). Actuator safe-stop lives with the component that
// owns the actuators (internal/tempcontroller), which reacts to ctx.Done()
// itself rather than being driven from here.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Listen installs a SIGINT/SIGTERM handler that cancels root on receipt.
// It returns immediately; the handler runs in its own goroutine.
func Listen(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received, cancelling root context")
		cancel()
	}()
}

// WithError logs a fatal condition and cancels root, so components can
// still drain (persistence flush, actuator safe-stop) instead of the
// process dying mid-write.
func WithError(cancel context.CancelFunc, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	cancel()
}
