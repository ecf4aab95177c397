package policy

import (
	"fmt"
	"io"

	. "gridworld/grid_world"
)

var arrows = [NumActions]string{"↑", "→", "↓", "←", "○"}

// Arrow returns the console glyph of an action.
func Arrow(a Action) string {
	if !a.Valid() {
		return "?"
	}
	return arrows[a]
}

// ShowPolicy prints the most likely action of every state as an arrow. Goal cells
// print the goal glyph and arrows on forbidden cells are bold.
func ShowPolicy(w io.Writer, grid *Grid, pol *Policy) error {
	if err := pol.Fits(grid); err != nil {
		return err
	}

	grid.Visit(func(s State, _, col int) {
		kind := grid.Kind(s)
		switch kind {
		case Goal:
			fmt.Fprint(w, kind.Colorize(kind.Glyph()), " ")
		case Forbidden:
			fmt.Fprint(w, kind.Colorize(Arrow(pol.BestAction(s))).Bold(), " ")
		default:
			fmt.Fprint(w, kind.Colorize(Arrow(pol.BestAction(s))), " ")
		}
		if col == grid.Cols()-1 {
			fmt.Fprintln(w)
		}
	})
	return nil
}
