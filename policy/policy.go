// policy holds stochastic policies over the grid's action space: a states x actions
// matrix whose rows are probability distributions.
package policy

import (
	"errors"
	"fmt"
	"math"

	. "gridworld/grid_world"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tolerance is the allowed deviation of a row sum from 1.
const Tolerance = 1e-6

var (
	ErrShape               = errors.New("policy must have one row per state and one column per action")
	ErrInvalidDistribution = errors.New("policy row is not a probability distribution")
)

// Policy maps each state to a distribution over the NumActions actions.
// It is read-only once constructed.
type Policy struct {
	probs *mat.Dense
}

// New wraps a states x NumActions matrix. Rows are not validated here; use Validate
// for an eager check, otherwise malformed rows surface when they are sampled.
func New(probs *mat.Dense) (*Policy, error) {
	if probs == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrShape)
	}
	if _, c := probs.Dims(); c != NumActions {
		return nil, fmt.Errorf("%w: got %d columns", ErrShape, c)
	}
	return &Policy{probs: mat.DenseCopyOf(probs)}, nil
}

// FromRows builds a policy from one row per state and validates every row.
func FromRows(rows [][]float64) (*Policy, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrShape)
	}
	probs := mat.NewDense(len(rows), NumActions, nil)
	for s, row := range rows {
		if len(row) != NumActions {
			return nil, fmt.Errorf("%w: row %d has %d entries", ErrShape, s, len(row))
		}
		probs.SetRow(s, row)
	}
	pol := &Policy{probs: probs}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	return pol, nil
}

// Uniform assigns every action probability 1/NumActions in every state.
func Uniform(numStates int) (*Policy, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("%w: %d states", ErrShape, numStates)
	}
	data := make([]float64, numStates*NumActions)
	for i := range data {
		data[i] = 1.0 / NumActions
	}
	return &Policy{probs: mat.NewDense(numStates, NumActions, data)}, nil
}

// Deterministic builds a one-hot policy taking actions[s] in state s.
func Deterministic(actions []Action) (*Policy, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: no states", ErrShape)
	}
	probs := mat.NewDense(len(actions), NumActions, nil)
	for s, a := range actions {
		if !a.Valid() {
			return nil, fmt.Errorf("%w: %d in state %d", ErrInvalidAction, int(a), s)
		}
		probs.Set(s, int(a), 1)
	}
	return &Policy{probs: probs}, nil
}

// NumStates is the number of rows.
func (p *Policy) NumStates() int {
	r, _ := p.probs.Dims()
	return r
}

// Row returns a copy of the distribution for state s.
func (p *Policy) Row(s State) []float64 {
	return mat.Row(nil, int(s), p.probs)
}

// Prob returns the probability of taking a in s.
func (p *Policy) Prob(s State, a Action) float64 {
	return p.probs.At(int(s), int(a))
}

// Fits reports an error if the policy does not have exactly one row per grid state.
func (p *Policy) Fits(grid *Grid) error {
	if n := p.NumStates(); n != grid.NumStates() {
		return fmt.Errorf("%w: %d rows for %d states", ErrShape, n, grid.NumStates())
	}
	return nil
}

// ValidateRow checks that the row of state s is a probability distribution.
func (p *Policy) ValidateRow(s State) error {
	if int(s) < 0 || int(s) >= p.NumStates() {
		return fmt.Errorf("%w: no row for state %d", ErrShape, s)
	}
	return CheckDistribution(p.probs.RawRowView(int(s)))
}

// Validate checks every row.
func (p *Policy) Validate() error {
	for s := 0; s < p.NumStates(); s++ {
		if err := p.ValidateRow(State(s)); err != nil {
			return fmt.Errorf("state %d: %w", s, err)
		}
	}
	return nil
}

// CheckDistribution returns ErrInvalidDistribution unless every entry is a finite
// non-negative number and the entries sum to 1 within Tolerance.
func CheckDistribution(row []float64) error {
	for a, p := range row {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return fmt.Errorf("%w: p[%d]=%v", ErrInvalidDistribution, a, p)
		}
	}
	if sum := floats.Sum(row); math.Abs(sum-1) > Tolerance {
		return fmt.Errorf("%w: sums to %v", ErrInvalidDistribution, sum)
	}
	return nil
}

// BestAction reduces a distribution to its most likely action; ties go to the
// lowest action index. An empty row has no preference and yields Stay.
func BestAction(row []float64) Action {
	if len(row) == 0 {
		return Stay
	}
	return Action(floats.MaxIdx(row))
}

// BestAction is the most likely action in state s.
func (p *Policy) BestAction(s State) Action {
	return BestAction(p.probs.RawRowView(int(s)))
}

// BestActions reduces the whole policy to one action per state.
func (p *Policy) BestActions() []Action {
	actions := make([]Action, p.NumStates())
	for s := range actions {
		actions[s] = p.BestAction(State(s))
	}
	return actions
}
