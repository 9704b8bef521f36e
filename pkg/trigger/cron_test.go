package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

type countingRunner struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *countingRunner) Execute(ctx context.Context) *schema.WorkflowResult {
	r.calls.Add(1)
	if r.block != nil {
		<-r.block
	}
	return &schema.WorkflowResult{RunID: "run", Status: schema.WorkflowStatusCompleted}
}

func TestTrigger_AddInvalidExpression(t *testing.T) {
	tr := New(nil)
	err := tr.Add("bad", "not a cron", &countingRunner{})
	require.Error(t, err)
}

func TestTrigger_AddNilRunner(t *testing.T) {
	tr := New(nil)
	err := tr.Add("job", "* * * * *", nil)
	require.Error(t, err)
}

func TestTrigger_NextRun(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Add("job", "* * * * *", &countingRunner{}))

	next, ok := tr.NextRun("job")
	require.True(t, ok)
	assert.True(t, next.After(time.Now().UTC().Add(-time.Minute)))

	_, ok = tr.NextRun("ghost")
	assert.False(t, ok)
}

func TestTrigger_TickRunsDueJob(t *testing.T) {
	tr := New(nil)
	runner := &countingRunner{}
	require.NoError(t, tr.Add("job", "* * * * *", runner))

	// Force the job due and tick manually.
	tr.mu.Lock()
	tr.jobs["job"].nextRun = time.Now().UTC().Add(-time.Minute)
	tr.mu.Unlock()

	tr.Tick(context.Background())
	assert.Equal(t, int32(1), runner.calls.Load())

	// The schedule advanced; an immediate second tick does nothing.
	tr.Tick(context.Background())
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestTrigger_RemovedJobNotRun(t *testing.T) {
	tr := New(nil)
	runner := &countingRunner{}
	require.NoError(t, tr.Add("job", "* * * * *", runner))
	tr.Remove("job")

	tr.Tick(context.Background())
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestTrigger_OverlapDeduped(t *testing.T) {
	tr := New(nil)
	runner := &countingRunner{block: make(chan struct{})}
	require.NoError(t, tr.Add("job", "* * * * *", runner))

	tr.mu.Lock()
	tr.jobs["job"].nextRun = time.Now().UTC().Add(-time.Minute)
	tr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tr.Tick(context.Background())
		close(done)
	}()

	// Wait until the first run is in flight, then force due again and tick.
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	tr.mu.Lock()
	tr.jobs["job"].nextRun = time.Now().UTC().Add(-time.Minute)
	tr.mu.Unlock()
	tr.Tick(context.Background())

	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.block)
	<-done
}

func TestTrigger_StopImmediatelyAfterStart(t *testing.T) {
	// Stop must not hold the jobs mutex while waiting for the loop: the
	// loop's first tick needs it, and Stop can win the race against it.
	for i := 0; i < 25; i++ {
		tr := New(nil)
		require.NoError(t, tr.Add("job", "* * * * *", &countingRunner{}))
		require.NoError(t, tr.Start(context.Background()))

		stopped := make(chan error, 1)
		go func() { stopped <- tr.Stop() }()

		select {
		case err := <-stopped:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Stop did not return", i)
		}
	}
}

func TestTrigger_StartStop(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Start(context.Background()))
	assert.Error(t, tr.Start(context.Background())) // already started
	require.NoError(t, tr.Stop())
	require.NoError(t, tr.Stop()) // idempotent
}
