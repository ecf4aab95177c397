package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gridworld/atomic_float"
	. "gridworld/grid_world"
	"gridworld/policy"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

/*
Batch sampling generates many independent exploring-start trajectories in parallel,
e.g. for Monte-Carlo return estimation. Each episode owns a source seeded from the
batch seed and its index, so the batch is reproducible regardless of how episodes
are spread over workers or in what order they finish. Workers share nothing except
the read-only grid and policy, and the lock-free return sums.
*/

var ErrInvalidBatch = errors.New("invalid batch configuration")

// BatchConfig parameterizes SampleBatch.
type BatchConfig struct {
	Episodes   int
	Steps      int
	StopAtGoal bool
	Seed       uint64
	Workers    int
	Gamma      float64
}

// Episode is one sampled trajectory and its discounted return.
type Episode struct {
	Index      int
	Start      State
	Trajectory Trajectory
	Return     float64
}

// BatchResult holds completed episodes, ordered by index.
type BatchResult struct {
	Episodes []Episode
	Stats    *ReturnStats
}

// Returns lists the episode returns in episode order.
func (res *BatchResult) Returns() []float64 {
	returns := make([]float64, len(res.Episodes))
	for i, ep := range res.Episodes {
		returns[i] = ep.Return
	}
	return returns
}

// ReturnStats accumulates episode returns from concurrent workers.
type ReturnStats struct {
	sum   *atomic_float.AtomicFloat64
	sumSq *atomic_float.AtomicFloat64
	count atomic.Int64
	goals atomic.Int64
}

func NewReturnStats() *ReturnStats {
	return &ReturnStats{
		sum:   atomic_float.NewAtomicFloat64(0),
		sumSq: atomic_float.NewAtomicFloat64(0),
	}
}

// Observe records one episode's return and whether it reached a goal.
func (st *ReturnStats) Observe(ret float64, reachedGoal bool) {
	st.sum.Add(ret)
	st.sumSq.Add(ret * ret)
	st.count.Add(1)
	if reachedGoal {
		st.goals.Add(1)
	}
}

func (st *ReturnStats) Count() int {
	return int(st.count.Load())
}

func (st *ReturnStats) Mean() float64 {
	n := st.count.Load()
	if n == 0 {
		return 0
	}
	return st.sum.AtomicRead() / float64(n)
}

// StdDev is the population standard deviation of the observed returns.
func (st *ReturnStats) StdDev() float64 {
	n := st.count.Load()
	if n == 0 {
		return 0
	}
	mean := st.Mean()
	variance := st.sumSq.AtomicRead()/float64(n) - mean*mean
	return math.Sqrt(math.Max(variance, 0))
}

// GoalRate is the fraction of episodes that entered a goal cell.
func (st *ReturnStats) GoalRate() float64 {
	n := st.count.Load()
	if n == 0 {
		return 0
	}
	return float64(st.goals.Load()) / float64(n)
}

// ProgressFunc is a callback by which batch sampling lends progress details,
// while exercising some level of control over its cancellation to prevent blocking.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, int)

// EpisodeSeed derives the seed of episode i from the batch seed.
func EpisodeSeed(seed uint64, i int) uint64 {
	return seed + uint64(i+1)*0x9e3779b97f4a7c15
}

// SampleBatch samples cfg.Episodes trajectories of pol on grid with cfg.Workers
// goroutines. The first worker error cancels the rest and is returned. On
// cancellation of ctx the episodes completed so far are returned with ctx's error.
func SampleBatch(
	ctx context.Context,
	grid *Grid,
	pol *policy.Policy,
	cfg BatchConfig,
	progressFn ProgressFunc,
) (*BatchResult, error) {
	if cfg.Episodes < 0 || cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: episodes=%d workers=%d", ErrInvalidBatch, cfg.Episodes, cfg.Workers)
	}
	if err := pol.Fits(grid); err != nil {
		return nil, err
	}
	if progressFn == nil {
		progressFn = func(context.Context, int) {}
	}

	stats := NewReturnStats()
	group, groupCtx := errgroup.WithContext(ctx)

	// Each worker takes every nworkers'th episode, so the assignment is fixed up front.
	agentWorker := func(id, nworkers int) <-chan Episode {
		episodes := make(chan Episode)
		group.Go(func() error {
			defer close(episodes)

			for i := id; i < cfg.Episodes; i += nworkers {
				smp := NewSeededSampler(grid, EpisodeSeed(cfg.Seed, i))
				start, action := smp.RandomStart()
				trajectory, err := smp.Sample(start, action, pol, cfg.Steps, cfg.StopAtGoal)
				if err != nil {
					return fmt.Errorf("episode %d: %w", i, err)
				}

				ep := Episode{
					Index:      i,
					Start:      start,
					Trajectory: trajectory,
					Return:     trajectory.Return(cfg.Gamma),
				}
				select {
				case episodes <- ep:
					stats.Observe(ep.Return, trajectory.ReachedGoal(grid))
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
			}
			return nil
		})
		return episodes
	}

	workers := []<-chan Episode{}
	for i := 0; i < cfg.Workers; i++ {
		workers = append(workers, agentWorker(i, cfg.Workers))
	}

	// Fan in the workers to a single channel; results are slotted by episode index.
	slots := make([]*Episode, cfg.Episodes)
	count := 0
	for ep := range channerics.Merge(groupCtx.Done(), workers...) {
		ep := ep
		slots[ep.Index] = &ep
		count++
		progressFn(groupCtx, count)
	}

	err := group.Wait()
	result := &BatchResult{
		Episodes: make([]Episode, 0, count),
		Stats:    stats,
	}
	for _, ep := range slots {
		if ep != nil {
			result.Episodes = append(result.Episodes, *ep)
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return result, err
		}
		return nil, err
	}
	return result, nil
}
