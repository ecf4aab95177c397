package grid_world

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// Glyph returns the layout marker for a cell kind, so a printed grid can be parsed back.
func (k CellKind) Glyph() string {
	switch k {
	case Forbidden:
		return ForbiddenMarker
	case Goal:
		return GoalMarker
	}
	return "."
}

// Colorize wraps a glyph in the console color used for the cell kind.
func (k CellKind) Colorize(glyph string) aurora.Value {
	switch k {
	case Forbidden:
		return aurora.Red(glyph)
	case Goal:
		return aurora.Green(glyph)
	}
	return aurora.White(glyph)
}

// ShowGrid prints the grid, one row per line, for visual reference.
func ShowGrid(w io.Writer, grid *Grid) {
	grid.Visit(func(s State, _, col int) {
		kind := grid.Kind(s)
		fmt.Fprint(w, kind.Colorize(kind.Glyph()), " ")
		if col == grid.Cols()-1 {
			fmt.Fprintln(w)
		}
	})
}

// ShowRewards prints the reward of every cell.
func ShowRewards(w io.Writer, grid *Grid) {
	grid.Visit(func(s State, _, col int) {
		fmt.Fprintf(w, "%5.1f ", grid.Reward(s))
		if col == grid.Cols()-1 {
			fmt.Fprintln(w)
		}
	})
}
