package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Linear(t *testing.T) {
	base := 10 * time.Millisecond

	assert.Equal(t, 10*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 20*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, 30*time.Millisecond, Backoff(base, 3))
}

func TestBackoff_ZeroBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0, 3))
}

func TestBackoff_ZeroFailures(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(time.Second, 0))
}

func TestWaitForBackoff_ZeroDelay(t *testing.T) {
	err := WaitForBackoff(context.Background(), 0)
	assert.NoError(t, err)
}

func TestWaitForBackoff_NegativeDelay(t *testing.T) {
	err := WaitForBackoff(context.Background(), -1)
	assert.NoError(t, err)
}

func TestWaitForBackoff_Waits(t *testing.T) {
	start := time.Now()
	err := WaitForBackoff(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond) // allow some tolerance
}

func TestWaitForBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WaitForBackoff(ctx, 5*time.Second)
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.Less(t, elapsed, time.Second) // should exit quickly, not wait 5s
}
