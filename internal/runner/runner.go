package runner

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"

	"pageswarm/internal/stats"
)

// SessionFunc runs one user's session to completion and returns its result.
type SessionFunc func(ctx context.Context, userID int, rng *rand.Rand) Result

type Runner struct {
	Cfg     Config
	Session SessionFunc
	Stats   *stats.Stats

	// OnResult is called from the collecting goroutine once per result,
	// in arrival order.
	OnResult func(Result)

	// Event Channel
	Updates UpdateChan

	active int64
}

func NewRunner(cfg Config, session SessionFunc, updates UpdateChan) *Runner {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(UpdateChan, 10)
	}
	return &Runner{
		Cfg:     cfg,
		Session: session,
		Stats:   stats.NewStats(),
		Updates: updates,
	}
}

// Run spawns one goroutine per user and blocks until every session has
// reported. It always returns exactly Cfg.Users results, sorted by user id.
// Cancelling ctx does not stop collection; sessions observe ctx and report
// their own failure.
func (r *Runner) Run(ctx context.Context) []Result {
	n := r.Cfg.Users
	if n <= 0 {
		return nil
	}

	done := make(chan Result, n)
	for id := 1; id <= n; id++ {
		go r.spawn(ctx, id, done)
	}

	results := make([]Result, 0, n)
	for len(results) < n {
		res := <-done
		results = append(results, res)
		r.Stats.Add(res.Success, res.LoadTime)
		if r.OnResult != nil {
			r.OnResult(res)
		}
		r.sendUpdate(res)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].UserID < results[j].UserID
	})
	return results
}

// spawn reports exactly once on done, whether the session returns,
// panics or exits its goroutine.
func (r *Runner) spawn(ctx context.Context, userID int, done chan<- Result) {
	res := Crashed(userID, "exited without a result")
	defer func() {
		if p := recover(); p != nil {
			res = Crashed(userID, p)
		}
		res.UserID = userID
		done <- res
	}()

	atomic.AddInt64(&r.active, 1)
	defer atomic.AddInt64(&r.active, -1)

	rng := rand.New(rand.NewSource(r.Cfg.Seed + int64(userID)))
	res = r.Session(ctx, userID, rng)
}

func (r *Runner) sendUpdate(last Result) {
	s := Snapshot{
		Total:          r.Cfg.Users,
		Done:           int(atomic.LoadUint64(&r.Stats.Sessions)),
		Success:        int(atomic.LoadUint64(&r.Stats.Success)),
		Fail:           int(atomic.LoadUint64(&r.Stats.Fail)),
		Active:         atomic.LoadInt64(&r.active),
		MeanLoadTimeMs: r.Stats.MeanLoadTimeMs(),
		Last:           last,
	}

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
