package grid_world

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Layout markers. Any of the blank markers denotes an ordinary cell.
const (
	ForbiddenMarker = "#"
	GoalMarker      = "T"
)

var blankMarkers = map[string]bool{"": true, " ": true, ".": true, "o": true}

// Default construction parameters.
const (
	DefaultRows            = 4
	DefaultCols            = 5
	DefaultNumForbidden    = 3
	DefaultNumGoal         = 1
	DefaultGoalReward      = 1.0
	DefaultForbiddenReward = -1.0
)

// ClassicTrack is the 5x5 textbook grid: a single target surrounded by forbidden cells.
var ClassicTrack []string = []string{
	".....",
	".##..",
	"..#..",
	".#T#.",
	".#...",
}

// DebugTrack is the 2x2 grid used in examples and tests.
var DebugTrack []string = []string{
	".T",
	"#.",
}

// FromLayout builds a grid from a row-major matrix of cell markers: "#" is a forbidden
// cell, "T" is a goal cell, and "", " ", "." or "o" are ordinary cells. All rows must
// have the same non-zero length.
func FromLayout(layout [][]string, goalReward, forbiddenReward float64) (*Grid, error) {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrMalformedLayout)
	}

	rows, cols := len(layout), len(layout[0])
	kinds := make([]CellKind, 0, rows*cols)
	for i, row := range layout {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrMalformedLayout, i, len(row), cols)
		}
		for j, marker := range row {
			switch {
			case marker == ForbiddenMarker:
				kinds = append(kinds, Forbidden)
			case marker == GoalMarker:
				kinds = append(kinds, Goal)
			case blankMarkers[marker]:
				kinds = append(kinds, Ordinary)
			default:
				return nil, fmt.Errorf("%w: unknown marker %q at (%d,%d)", ErrMalformedLayout, marker, i, j)
			}
		}
	}

	return newGrid(rows, cols, kinds, goalReward, forbiddenReward)
}

// ParseTrack builds a grid from one string per row, one rune per cell, using the
// same markers as FromLayout.
func ParseTrack(track []string, goalReward, forbiddenReward float64) (*Grid, error) {
	layout := make([][]string, 0, len(track))
	for _, line := range track {
		row := make([]string, 0, len(line))
		for _, r := range line {
			row = append(row, string(r))
		}
		layout = append(layout, row)
	}
	return FromLayout(layout, goalReward, forbiddenReward)
}

// RandomConfig parameterizes NewRandom.
type RandomConfig struct {
	Rows, Cols      int
	NumForbidden    int
	NumGoal         int
	Seed            uint64
	GoalReward      float64
	ForbiddenReward float64
}

// DefaultRandomConfig returns the 4x5 grid with three forbidden cells and one goal.
func DefaultRandomConfig(seed uint64) RandomConfig {
	return RandomConfig{
		Rows:            DefaultRows,
		Cols:            DefaultCols,
		NumForbidden:    DefaultNumForbidden,
		NumGoal:         DefaultNumGoal,
		Seed:            seed,
		GoalReward:      DefaultGoalReward,
		ForbiddenReward: DefaultForbiddenReward,
	}
}

// NewRandom places forbidden and goal cells by shuffling every cell index with a
// generator seeded by cfg.Seed: the first NumForbidden shuffled indices become
// forbidden, the next NumGoal become goals. Identical configs yield identical grids.
func NewRandom(cfg RandomConfig) (*Grid, error) {
	if cfg.Rows < 1 || cfg.Cols < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, cfg.Rows, cfg.Cols)
	}
	if cfg.NumForbidden < 0 || cfg.NumGoal < 0 {
		return nil, fmt.Errorf("%w: forbidden=%d goal=%d", ErrInvalidCount, cfg.NumForbidden, cfg.NumGoal)
	}
	n := cfg.Rows * cfg.Cols
	if cfg.NumForbidden+cfg.NumGoal > n {
		return nil, fmt.Errorf("%w: %d+%d > %d", ErrTooManyCells, cfg.NumForbidden, cfg.NumGoal, n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	kinds := make([]CellKind, n)
	for _, idx := range indices[:cfg.NumForbidden] {
		kinds[idx] = Forbidden
	}
	for _, idx := range indices[cfg.NumForbidden : cfg.NumForbidden+cfg.NumGoal] {
		kinds[idx] = Goal
	}

	return newGrid(cfg.Rows, cfg.Cols, kinds, cfg.GoalReward, cfg.ForbiddenReward)
}
