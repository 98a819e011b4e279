package control

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/stretchr/testify/require"
)

func newLevels(unfocused float64) *config.Levels {
	return config.NewLevels(config.Snapshot{Focused: 1, Unfocused: unfocused, Step: 0.05})
}

func TestHandleSignal(t *testing.T) {
	levels := newLevels(0.98)

	v, ok := HandleSignal(levels, IncreaseSignal)
	require.True(t, ok)
	require.Equal(t, 1.0, v)

	v, ok = HandleSignal(levels, DecreaseSignal)
	require.True(t, ok)
	require.Equal(t, 0.95, v)

	_, ok = HandleSignal(levels, syscall.SIGHUP)
	require.False(t, ok)
	require.Equal(t, 0.95, levels.Snapshot().Unfocused)
}

func TestWatchSignalsAppliesDelivery(t *testing.T) {
	levels := newLevels(0.5)
	ctx, cancel := context.WithCancel(context.Background())
	done := WatchSignals(ctx, levels)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, syscall.Kill(os.Getpid(), DecreaseSignal))
	require.Eventually(t, func() bool {
		return levels.Snapshot().Unfocused < 0.5
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDBusObjectMethods(t *testing.T) {
	obj := &dbusObject{levels: newLevels(0.9)}

	v, dErr := obj.Increase()
	require.Nil(t, dErr)
	require.Equal(t, 0.95, v)

	v, dErr = obj.Decrease()
	require.Nil(t, dErr)
	require.Equal(t, 0.9, v)

	focused, unfocused, dErr := obj.Levels()
	require.Nil(t, dErr)
	require.Equal(t, 1.0, focused)
	require.Equal(t, 0.9, unfocused)
}
