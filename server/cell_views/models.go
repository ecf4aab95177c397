// cell_views contains views derived from the Board view-model: a grid of
// Cells that translate grid, policy, and agent snapshots into svg updates.
package cell_views

import (
	"fmt"

	. "gridworld/grid_world"
	"gridworld/policy"
)

// NoAgent marks a snapshot without an agent on the grid.
const NoAgent State = -1

// Snapshot is the agent's progress at one step of a replayed trajectory.
type Snapshot struct {
	Episode int
	Step    int
	Agent   State
	// Reward is the undiscounted reward collected so far in the episode.
	Reward float64
	// Visits counts source-state visits so far, indexed by State.
	Visits []int
}

// Board is the view-model shared by all cell views.
type Board struct {
	Cells   [][]Cell
	Caption string
}

// Cell holds the per-cell fields the views need, already in view terms: X is
// the column and Y the row, which matches svg's coordinate system where 0 is
// the top. As a rule of thumb, Cell fields should be immediately usable as view
// parameters, and arbitrary calculated fields can be added as desired.
type Cell struct {
	X, Y          int
	State         State
	Kind          string
	Glyph         string
	Fill          string
	Reward        float64
	Arrow         string
	ArrowRotation int
	Visits        int
	// Heat is Visits relative to the most visited cell, in [0,1].
	Heat  float64
	Agent bool
}

// NewConverter returns the snapshot-to-board conversion for a fixed grid and policy.
// Static fields (kinds, rewards, arrows) are computed once and copied per snapshot.
func NewConverter(grid *Grid, pol *policy.Policy) func(Snapshot) Board {
	static := make([][]Cell, grid.Rows())
	for row := range static {
		static[row] = make([]Cell, grid.Cols())
	}

	grid.Visit(func(s State, row, col int) {
		kind := grid.Kind(s)
		best := pol.BestAction(s)
		static[row][col] = Cell{
			X:             col,
			Y:             row,
			State:         s,
			Kind:          kind.String(),
			Glyph:         kind.Glyph(),
			Fill:          getFill(kind),
			Reward:        grid.Reward(s),
			Arrow:         getArrow(kind, best),
			ArrowRotation: getDegrees(best),
		}
	})

	return func(snap Snapshot) Board {
		maxVisits := 0
		for _, n := range snap.Visits {
			if n > maxVisits {
				maxVisits = n
			}
		}

		cells := make([][]Cell, len(static))
		for row := range static {
			cells[row] = make([]Cell, len(static[row]))
			for col, cell := range static[row] {
				if int(cell.State) < len(snap.Visits) {
					cell.Visits = snap.Visits[cell.State]
				}
				if maxVisits > 0 {
					cell.Heat = float64(cell.Visits) / float64(maxVisits)
				}
				cell.Agent = cell.State == snap.Agent
				cells[row][col] = cell
			}
		}

		return Board{
			Cells:   cells,
			Caption: caption(snap),
		}
	}
}

// Initial returns the board before any agent has moved.
func Initial(grid *Grid, pol *policy.Policy) Board {
	return NewConverter(grid, pol)(Snapshot{Agent: NoAgent})
}

func caption(snap Snapshot) string {
	if snap.Agent == NoAgent {
		return "waiting for agent"
	}
	return fmt.Sprintf("episode %d, step %d, reward %.2f", snap.Episode, snap.Step, snap.Reward)
}

// Goal cells show the goal glyph; every other cell shows an up-arrow rotated
// toward the best action, or a dot for Stay.
func getArrow(kind CellKind, best Action) string {
	switch {
	case kind == Goal:
		return kind.Glyph()
	case best == Stay:
		return policy.Arrow(Stay)
	}
	return policy.Arrow(Up)
}

// getDegrees is the svg rotate() angle of an upward arrow pointing along a.
// Degrees are clockwise from vertical.
func getDegrees(a Action) int {
	if a == Stay {
		return 0
	}
	return 90 * int(a)
}

func getFill(kind CellKind) (fill string) {
	switch kind {
	case Forbidden:
		fill = "lightcoral"
	case Goal:
		fill = "lightyellow"
	default:
		fill = "lightgray"
	}
	return
}
