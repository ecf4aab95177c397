package grid_world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// State is the linear index of a grid cell, row*cols + col.
type State int

// Action is one of the five moves available in every cell.
type Action int

const (
	Up Action = iota
	Right
	Down
	Left
	Stay
)

// NumActions is the size of the action space; policy rows have this many columns.
const NumActions = 5

// Actions lists the action space in index order.
var Actions = [NumActions]Action{Up, Right, Down, Left, Stay}

// Coordinate deltas per action, indexed by action: (row, col).
var deltas = [NumActions][2]int{
	{-1, 0},
	{0, 1},
	{1, 0},
	{0, -1},
	{0, 0},
}

// Valid reports whether the action is one of the five defined moves.
func (a Action) Valid() bool {
	return a >= Up && a <= Stay
}

// Delta returns the row and column displacement of the action.
func (a Action) Delta() (dRow, dCol int) {
	return deltas[a][0], deltas[a][1]
}

func (a Action) String() string {
	switch a {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Stay:
		return "stay"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction accepts an action's name, in any case, or its index.
func ParseAction(name string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(name, a.String()) {
			return a, nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil && Action(i).Valid() {
		return Action(i), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, name)
}

// CellKind tags a cell independently of its reward value, so views never have
// to guess a cell's category from a reward magnitude.
type CellKind int

const (
	Ordinary CellKind = iota
	Forbidden
	Goal
)

func (k CellKind) String() string {
	switch k {
	case Forbidden:
		return "forbidden"
	case Goal:
		return "goal"
	}
	return "ordinary"
}

// WallBumpReward is the reward for any move that would leave the grid.
const WallBumpReward = -1.0

var (
	ErrInvalidDimensions = errors.New("grid dimensions must be at least 1x1")
	ErrInvalidCount      = errors.New("forbidden and goal counts must be non-negative")
	ErrTooManyCells      = errors.New("forbidden plus goal cells exceed the number of cells")
	ErrMalformedLayout   = errors.New("malformed grid layout")
	ErrAmbiguousRewards  = errors.New("goal and forbidden rewards must be distinct and non-zero")
	ErrInvalidState      = errors.New("state out of range")
	ErrInvalidAction     = errors.New("action out of range")
)

// Grid is an immutable rows x cols world. Every cell carries a reward, which is
// exactly one of 0, the goal reward, or the forbidden reward, plus the matching
// CellKind tag. Cells are addressed by (row, col) or by their State index.
type Grid struct {
	rows, cols      int
	rewards         []float64
	kinds           []CellKind
	goalReward      float64
	forbiddenReward float64
}

// newGrid builds a grid from per-state cell kinds, assigning rewards by kind.
func newGrid(rows, cols int, kinds []CellKind, goalReward, forbiddenReward float64) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, rows, cols)
	}
	if goalReward == forbiddenReward || goalReward == 0 || forbiddenReward == 0 {
		return nil, fmt.Errorf("%w: goal=%v forbidden=%v", ErrAmbiguousRewards, goalReward, forbiddenReward)
	}

	grid := &Grid{
		rows:            rows,
		cols:            cols,
		rewards:         make([]float64, rows*cols),
		kinds:           kinds,
		goalReward:      goalReward,
		forbiddenReward: forbiddenReward,
	}
	for s, kind := range kinds {
		switch kind {
		case Goal:
			grid.rewards[s] = goalReward
		case Forbidden:
			grid.rewards[s] = forbiddenReward
		}
	}
	return grid, nil
}

func (g *Grid) Rows() int { return g.rows }

func (g *Grid) Cols() int { return g.cols }

// NumStates is rows*cols.
func (g *Grid) NumStates() int { return g.rows * g.cols }

func (g *Grid) GoalReward() float64 { return g.goalReward }

func (g *Grid) ForbiddenReward() float64 { return g.forbiddenReward }

// Contains reports whether (row, col) lies on the grid.
func (g *Grid) Contains(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// ValidState reports whether s indexes a cell of this grid.
func (g *Grid) ValidState(s State) bool {
	return s >= 0 && int(s) < g.rows*g.cols
}

// StateOf encodes (row, col) as row*cols + col.
func (g *Grid) StateOf(row, col int) (State, error) {
	if !g.Contains(row, col) {
		return 0, fmt.Errorf("%w: (%d,%d) not on %dx%d grid", ErrInvalidState, row, col, g.rows, g.cols)
	}
	return State(row*g.cols + col), nil
}

// Decode is the inverse of StateOf.
func (g *Grid) Decode(s State) (row, col int, err error) {
	if !g.ValidState(s) {
		return 0, 0, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidState, s, g.NumStates())
	}
	return int(s) / g.cols, int(s) % g.cols, nil
}

// RewardOf returns the reward for entering (row, col).
func (g *Grid) RewardOf(row, col int) (float64, error) {
	s, err := g.StateOf(row, col)
	if err != nil {
		return 0, err
	}
	return g.rewards[s], nil
}

// KindOf returns the category tag of (row, col).
func (g *Grid) KindOf(row, col int) (CellKind, error) {
	s, err := g.StateOf(row, col)
	if err != nil {
		return Ordinary, err
	}
	return g.kinds[s], nil
}

// Reward returns the reward of entering state s; invalid states yield 0.
func (g *Grid) Reward(s State) float64 {
	if !g.ValidState(s) {
		return 0
	}
	return g.rewards[s]
}

// Kind returns the category tag of state s; invalid states are Ordinary.
func (g *Grid) Kind(s State) CellKind {
	if !g.ValidState(s) {
		return Ordinary
	}
	return g.kinds[s]
}

// IsGoal reports whether the reward of s equals the goal reward.
func (g *Grid) IsGoal(s State) bool {
	return g.ValidState(s) && g.rewards[s] == g.goalReward
}

// Rewards returns a copy of the per-state rewards, indexed by State.
func (g *Grid) Rewards() []float64 {
	rewards := make([]float64, len(g.rewards))
	copy(rewards, g.rewards)
	return rewards
}

// Step is the one-step dynamics: the reward for attempting action in state and
// the resulting state. Moves that would leave the grid keep the agent in place
// and yield WallBumpReward. Step has no side effects.
func (g *Grid) Step(state State, action Action) (reward float64, next State, err error) {
	row, col, err := g.Decode(state)
	if err != nil {
		return 0, state, err
	}
	if !action.Valid() {
		return 0, state, fmt.Errorf("%w: %d", ErrInvalidAction, int(action))
	}

	dRow, dCol := action.Delta()
	row, col = row+dRow, col+dCol
	if !g.Contains(row, col) {
		return WallBumpReward, state, nil
	}

	next = State(row*g.cols + col)
	return g.rewards[next], next, nil
}

// StatesOf returns all states of the passed kind, in index order.
func (g *Grid) StatesOf(kind CellKind) (states []State) {
	g.Visit(func(s State, _, _ int) {
		if g.kinds[s] == kind {
			states = append(states, s)
		}
	})
	return
}

// Visit calls fn for every cell in row-major order.
func (g *Grid) Visit(fn func(s State, row, col int)) {
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			fn(State(row*g.cols+col), row, col)
		}
	}
}
