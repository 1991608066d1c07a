package review

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sanix-darker/aireview/internal/core"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowReviewer records how many reviews run at once.
type slowReviewer struct {
	running int32
	peak    int32
}

func (s *slowReviewer) Review(_ context.Context, changes []core.CodeChange, _, _ string, cfg provider.ModelConfig) Result {
	n := atomic.AddInt32(&s.running, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&s.running, -1)

	r := newResult(changes[0].FilePath, "t", cfg.ModelName, changes, time.Now())
	r.Succeed("## Summary\nreviewed "+changes[0].FilePath, cfg.ModelName)
	return r
}

func TestBatch_KeepsInputOrderAndLimit(t *testing.T) {
	changes := []core.CodeChange{
		core.Added("a.go", "a"),
		core.Added("b.go", "b"),
		core.Added("c.go", "c"),
		core.Added("d.go", "d"),
		core.Added("e.go", "e"),
	}
	rev := &slowReviewer{}

	results := Batch(context.Background(), rev, changes, "{code}", "t", modelConfig(), 2)

	require.Len(t, results, len(changes))
	for i, r := range results {
		assert.Equal(t, changes[i].FilePath, r.ID)
		assert.Len(t, r.Changes, 1)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&rev.peak), int32(2))
	assert.Equal(t, map[Status]int{StatusSuccess: 5}, Tally(results))
}

func TestBatch_WithOrchestratorIsolatesFailures(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, cfg provider.ModelConfig) (*provider.Response, error) {
		return nil, provider.ErrHTTPStatus
	}}
	changes := []core.CodeChange{
		core.Added("ok.go", "x"),
		{FilePath: "bad.go", ChangeType: core.ChangeDeleted},
	}

	results := Batch(context.Background(), NewOrchestrator(exec), changes, "{code}", "t", modelConfig(), 0)

	require.Len(t, results, 2)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].ErrorMessage, "HTTP")
	assert.Equal(t, StatusError, results[1].Status)
	assert.Contains(t, results[1].ErrorMessage, "bad.go")
	assert.Equal(t, 1, exec.calls())
	assert.NotEqual(t, results[0].ID, results[1].ID)
}
