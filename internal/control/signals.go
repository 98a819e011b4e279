// Package control exposes the runtime triggers that adjust the unfocused
// opacity of a running dimmer.
package control

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/dimsway/internal/logger"
)

// Adjuster steps the unfocused opacity and reports the new value.
type Adjuster interface {
	Increase() float64
	Decrease() float64
}

// Signals that adjust the unfocused opacity
const (
	IncreaseSignal = syscall.SIGUSR1
	DecreaseSignal = syscall.SIGUSR2
)

// HandleSignal applies sig to adj. It reports false for unrelated signals.
func HandleSignal(adj Adjuster, sig os.Signal) (float64, bool) {
	switch sig {
	case IncreaseSignal:
		return adj.Increase(), true
	case DecreaseSignal:
		return adj.Decrease(), true
	default:
		return 0, false
	}
}

// WatchSignals applies SIGUSR1/SIGUSR2 to adj until ctx is cancelled.
// The handlers are installed before it returns; the returned channel is
// closed once they have been removed.
func WatchSignals(ctx context.Context, adj Adjuster) <-chan struct{} {
	log := logger.WithComponent("control")
	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, IncreaseSignal, DecreaseSignal)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigChan)

		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if v, ok := HandleSignal(adj, sig); ok {
					log.Info().Str("signal", sig.String()).Float64("unfocused_opacity", v).Msg("Unfocused opacity adjusted")
				}
			}
		}
	}()
	return done
}
