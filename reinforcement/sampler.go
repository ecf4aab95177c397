package reinforcement

import (
	"errors"
	"fmt"

	. "gridworld/grid_world"
	"gridworld/policy"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// StopAtGoalBound replaces the caller's step budget when sampling until the goal.
const StopAtGoalBound = 20000

var ErrInvalidSteps = errors.New("step budget must be non-negative")

// Sampler generates trajectories on a fixed grid. It owns its random source, so two
// samplers built from equal seeds produce equal trajectories and samplers never share
// hidden state. A Sampler is not safe for concurrent use; give each goroutine its own.
type Sampler struct {
	grid *Grid
	src  rand.Source
}

// NewSampler returns a sampler drawing actions from src.
func NewSampler(grid *Grid, src rand.Source) *Sampler {
	return &Sampler{
		grid: grid,
		src:  src,
	}
}

// NewSeededSampler is NewSampler with a fresh source seeded by seed.
func NewSeededSampler(grid *Grid, seed uint64) *Sampler {
	return NewSampler(grid, rand.NewSource(seed))
}

// Grid returns the sampler's grid.
func (smp *Sampler) Grid() *Grid {
	return smp.grid
}

// Sample rolls out pol from (start, action). Each step applies the current action,
// then draws the next action from pol's distribution at the state just entered.
// Exactly steps+1 transitions are produced, the first being step 0.
//
// With stopAtGoal the budget is StopAtGoalBound instead of steps, and sampling ends
// right after emitting a transition whose source state (not its successor) has the
// goal reward. Entering the goal therefore produces one more transition out of it
// before the rollout ends.
func (smp *Sampler) Sample(
	start State,
	action Action,
	pol *policy.Policy,
	steps int,
	stopAtGoal bool,
) (Trajectory, error) {
	if err := pol.Fits(smp.grid); err != nil {
		return nil, err
	}
	if stopAtGoal {
		steps = StopAtGoalBound
	}
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}

	trajectory := make(Trajectory, 0, initialCapacity(steps))
	state, act := start, action
	for i := 0; i <= steps; i++ {
		reward, next, err := smp.grid.Step(state, act)
		if err != nil {
			return trajectory, fmt.Errorf("step %d: %w", i, err)
		}

		nextAct, err := smp.draw(pol, next)
		if err != nil {
			return trajectory, fmt.Errorf("step %d: %w", i, err)
		}

		trajectory = append(trajectory, Transition{
			State:      state,
			Action:     act,
			Reward:     reward,
			NextState:  next,
			NextAction: nextAct,
		})

		if stopAtGoal && smp.grid.IsGoal(state) {
			break
		}
		state, act = next, nextAct
	}

	return trajectory, nil
}

// draw samples an action from the policy row of s.
func (smp *Sampler) draw(pol *policy.Policy, s State) (Action, error) {
	if err := pol.ValidateRow(s); err != nil {
		return 0, fmt.Errorf("state %d: %w", s, err)
	}
	categorical := distuv.NewCategorical(pol.Row(s), smp.src)
	return Action(categorical.Rand()), nil
}

// RandomStart picks a uniformly random state and action from the sampler's source,
// for exploring starts.
func (smp *Sampler) RandomStart() (State, Action) {
	rng := rand.New(smp.src)
	return State(rng.Intn(smp.grid.NumStates())), Action(rng.Intn(NumActions))
}

// Long rollouts to the goal rarely use the whole bound; don't preallocate it.
func initialCapacity(steps int) int {
	if steps > 1024 {
		return 1024
	}
	return steps + 1
}
