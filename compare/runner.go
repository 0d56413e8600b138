// runner.go drives the catalogue against both endpoints with bounded
// concurrency. Each test issues its two calls back to back from one
// goroutine; the permit pool bounds how many tests are in flight, not how
// many calls.
package compare

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/semaphore"
)

// RunMode selects which slice of the catalogue is eligible.
type RunMode int

const (
	// RunDefault skips tests carrying an Ignore reason.
	RunDefault RunMode = iota
	// RunIgnoredOnly runs only the tests carrying an Ignore reason.
	RunIgnoredOnly
	// RunAll runs everything.
	RunAll
)

func ParseRunMode(s string) (RunMode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return RunDefault, nil
	case "ignored":
		return RunIgnoredOnly, nil
	case "all":
		return RunAll, nil
	}
	return 0, fmt.Errorf("unknown run mode %q", s)
}

func (m RunMode) eligible(t RpcTest) bool {
	switch m {
	case RunIgnoredOnly:
		return t.Ignore != ""
	case RunAll:
		return true
	default:
		return t.Ignore == ""
	}
}

// Options configures one comparison run.
type Options struct {
	// Filter restricts which methods run. The zero value runs everything.
	Filter FilterList

	// FailFast stops scheduling new tests after the first divergence.
	// Tests already in flight still finish.
	FailFast bool

	// Drain, with FailFast, records the in-flight stragglers instead of
	// abandoning them.
	Drain bool

	RunMode RunMode

	// Concurrency bounds how many tests run at once. Zero means 1.
	Concurrency int
}

type testResult struct {
	test      RpcTest
	candidate EndpointStatus
	reference EndpointStatus
}

// Run executes every eligible test and returns the accumulated results.
// The returned error is non-nil only for run-level failures, not for test
// divergences; inspect ResultSet.Failed for those.
func Run(ctx context.Context, tests []RpcTest, candidate, reference Caller, opts Options) (*ResultSet, error) {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	// schedCtx gates scheduling only; an in-flight call keeps the outer ctx
	// so cancelling the schedule does not poison its result.
	schedCtx, stopScheduling := context.WithCancel(ctx)
	defer stopScheduling()

	results := make(chan testResult)
	consumerGone := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for _, t := range tests {
			if !opts.RunMode.eligible(t) {
				continue
			}
			if !opts.Filter.Authorize(t.Request.Method) {
				continue
			}
			if err := sem.Acquire(schedCtx, 1); err != nil {
				break
			}
			t := t
			wg.Add(1)
			go func() {
				defer wg.Done()
				cs, rs := t.Run(ctx, candidate, reference)
				sem.Release(1)
				select {
				case results <- testResult{test: t, candidate: cs, reference: rs}:
				case <-consumerGone:
				}
			}()
		}
		wg.Wait()
		close(results)
	}()

	set := NewResultSet()
	stopped := false
	for res := range results {
		set.record(res.test, res.candidate, res.reference)
		if !passing(res.candidate, res.reference) {
			log.Warn("Endpoint divergence",
				"method", res.test.Request.Method,
				"candidate", res.candidate, "reference", res.reference)
		}
		if opts.FailFast && !stopped && !passing(res.candidate, res.reference) {
			stopScheduling()
			stopped = true
			if !opts.Drain {
				break
			}
		}
	}
	if stopped && !opts.Drain {
		// Senders for abandoned in-flight tests exit via consumerGone.
		close(consumerGone)
	}
	if err := ctx.Err(); err != nil {
		return set, err
	}
	return set, nil
}
