package review

import (
	"context"

	"github.com/sanix-darker/aireview/internal/core"
	"github.com/sanix-darker/aireview/internal/provider"
	"golang.org/x/sync/errgroup"
)

// Reviewer runs one review. *Orchestrator satisfies it.
type Reviewer interface {
	Review(ctx context.Context, changes []core.CodeChange, templateText, templateName string, cfg provider.ModelConfig) Result
}

// Batch reviews every change on its own, running at most concurrency
// reviews at a time. Results come back in the order of changes. Each review
// gets its own run id, retry state and failover state.
func Batch(
	ctx context.Context,
	r Reviewer,
	changes []core.CodeChange,
	templateText string,
	templateName string,
	cfg provider.ModelConfig,
	concurrency int,
) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(changes))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range changes {
		g.Go(func() error {
			results[i] = r.Review(ctx, []core.CodeChange{changes[i]}, templateText, templateName, cfg)
			return nil
		})
	}
	g.Wait()

	return results
}

// Tally counts results per status.
func Tally(results []Result) map[Status]int {
	counts := make(map[Status]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
