package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melisma/internal/scanner"
)

func newIdleEngine() *scanner.Engine {
	// The engine is never invoked by these paths; wiring stays empty.
	return scanner.NewEngine(scanner.Config{})
}

func TestScheduler_EmptySpecDisablesRefreshes(t *testing.T) {
	s := NewScheduler(newIdleEngine(), nil)

	require.NoError(t, s.Start(context.Background(), ""))
	s.Stop()
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(newIdleEngine(), nil)

	err := s.Start(context.Background(), "every full moon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rescan schedule")
}

func TestScheduler_ValidSpecStartsAndStops(t *testing.T) {
	s := NewScheduler(newIdleEngine(), nil)

	require.NoError(t, s.Start(context.Background(), "@every 1h"))
	s.Stop()
}
