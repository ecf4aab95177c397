package grid_world

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLayout(t *testing.T) {
	Convey("When a grid is built from a layout", t, func() {
		grid, err := FromLayout([][]string{{"", "T"}, {"#", ""}}, 1, -1)
		So(err, ShouldBeNil)

		Convey("Dimensions and rewards follow the layout in row-major order", func() {
			So(grid.Rows(), ShouldEqual, 2)
			So(grid.Cols(), ShouldEqual, 2)
			So(grid.NumStates(), ShouldEqual, 4)
			So(grid.Rewards(), ShouldResemble, []float64{0, 1, -1, 0})
			So(grid.Kind(1), ShouldEqual, Goal)
			So(grid.Kind(2), ShouldEqual, Forbidden)
			So(grid.Kind(3), ShouldEqual, Ordinary)
		})

		Convey("The string track form yields the same grid", func() {
			track, err := ParseTrack(DebugTrack, 1, -1)
			So(err, ShouldBeNil)
			So(track.Rewards(), ShouldResemble, grid.Rewards())
		})

		Convey("The classic track has one goal and six forbidden cells", func() {
			classic, err := ParseTrack(ClassicTrack, 1, -1)
			So(err, ShouldBeNil)
			So(classic.StatesOf(Goal), ShouldResemble, []State{17})
			So(len(classic.StatesOf(Forbidden)), ShouldEqual, 6)
		})
	})

	Convey("When a layout is malformed", t, func() {
		cases := map[string][][]string{
			"empty":          {},
			"empty row":      {{}},
			"ragged":         {{"", ""}, {""}},
			"unknown marker": {{"", "X"}},
		}
		for name, layout := range cases {
			layout := layout
			Convey("Construction fails for the "+name+" layout", func() {
				_, err := FromLayout(layout, 1, -1)
				So(errors.Is(err, ErrMalformedLayout), ShouldBeTrue)
			})
		}
	})

	Convey("When goal and forbidden rewards collide or are zero", t, func() {
		for _, rewards := range [][2]float64{{1, 1}, {0, -1}, {1, 0}} {
			_, err := FromLayout([][]string{{"T", "#"}}, rewards[0], rewards[1])
			So(errors.Is(err, ErrAmbiguousRewards), ShouldBeTrue)
		}
	})
}

func TestRandomGrid(t *testing.T) {
	Convey("When a grid is built randomly", t, func() {
		Convey("Forbidden and goal sets are disjoint and have exactly the requested sizes", func() {
			for seed := uint64(0); seed < 50; seed++ {
				cfg := RandomConfig{
					Rows: 5, Cols: 6, NumForbidden: 7, NumGoal: 3, Seed: seed,
					GoalReward: 1, ForbiddenReward: -10,
				}
				grid, err := NewRandom(cfg)
				So(err, ShouldBeNil)

				forbidden := grid.StatesOf(Forbidden)
				goals := grid.StatesOf(Goal)
				So(len(forbidden), ShouldEqual, 7)
				So(len(goals), ShouldEqual, 3)

				seen := map[State]bool{}
				for _, s := range forbidden {
					seen[s] = true
					So(grid.Reward(s), ShouldEqual, -10)
				}
				for _, s := range goals {
					So(seen[s], ShouldBeFalse)
					So(grid.Reward(s), ShouldEqual, 1)
				}
			}
		})

		Convey("Identical configurations are reproducible", func() {
			cfg := DefaultRandomConfig(42)
			a, err := NewRandom(cfg)
			So(err, ShouldBeNil)
			b, err := NewRandom(cfg)
			So(err, ShouldBeNil)
			So(a.Rewards(), ShouldResemble, b.Rewards())
		})

		Convey("Different seeds produce different placements", func() {
			distinct := map[string]bool{}
			for seed := uint64(0); seed < 20; seed++ {
				grid, err := NewRandom(DefaultRandomConfig(seed))
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				ShowRewards(&buf, grid)
				distinct[buf.String()] = true
			}
			So(len(distinct), ShouldBeGreaterThan, 1)
		})

		Convey("Every cell may be assigned", func() {
			grid, err := NewRandom(RandomConfig{Rows: 2, Cols: 2, NumForbidden: 2, NumGoal: 2, GoalReward: 1, ForbiddenReward: -1})
			So(err, ShouldBeNil)
			So(grid.StatesOf(Ordinary), ShouldBeEmpty)
		})

		Convey("Invalid configurations fail", func() {
			_, err := NewRandom(RandomConfig{Rows: 0, Cols: 3, GoalReward: 1, ForbiddenReward: -1})
			So(errors.Is(err, ErrInvalidDimensions), ShouldBeTrue)

			_, err = NewRandom(RandomConfig{Rows: 2, Cols: 2, NumForbidden: -1, GoalReward: 1, ForbiddenReward: -1})
			So(errors.Is(err, ErrInvalidCount), ShouldBeTrue)

			_, err = NewRandom(RandomConfig{Rows: 2, Cols: 2, NumForbidden: 3, NumGoal: 2, GoalReward: 1, ForbiddenReward: -1})
			So(errors.Is(err, ErrTooManyCells), ShouldBeTrue)
		})
	})
}

func TestStateEncoding(t *testing.T) {
	Convey("When encoding and decoding states", t, func() {
		grid, err := NewRandom(RandomConfig{Rows: 3, Cols: 7, NumGoal: 1, GoalReward: 1, ForbiddenReward: -1})
		So(err, ShouldBeNil)

		Convey("(row,col) -> state -> (row,col) is the identity", func() {
			for row := 0; row < grid.Rows(); row++ {
				for col := 0; col < grid.Cols(); col++ {
					s, err := grid.StateOf(row, col)
					So(err, ShouldBeNil)
					So(int(s), ShouldEqual, row*grid.Cols()+col)
					r, c, err := grid.Decode(s)
					So(err, ShouldBeNil)
					So(r, ShouldEqual, row)
					So(c, ShouldEqual, col)
				}
			}
		})

		Convey("state -> (row,col) -> state is the identity", func() {
			for s := State(0); int(s) < grid.NumStates(); s++ {
				row, col, err := grid.Decode(s)
				So(err, ShouldBeNil)
				back, err := grid.StateOf(row, col)
				So(err, ShouldBeNil)
				So(back, ShouldEqual, s)
			}
		})

		Convey("Off-grid coordinates and states are rejected", func() {
			_, err := grid.StateOf(3, 0)
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
			_, err = grid.StateOf(0, -1)
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
			_, _, err = grid.Decode(State(grid.NumStates()))
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
			_, _, err = grid.Decode(-1)
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
		})
	})
}

func TestStep(t *testing.T) {
	Convey("Given the 2x2 debug grid", t, func() {
		grid, err := ParseTrack(DebugTrack, 1, -1)
		So(err, ShouldBeNil)

		step := func(s State, a Action) (float64, State) {
			reward, next, err := grid.Step(s, a)
			So(err, ShouldBeNil)
			return reward, next
		}

		Convey("Moving right from (0,0) enters the goal", func() {
			reward, next := step(0, Right)
			So(reward, ShouldEqual, 1)
			So(next, ShouldEqual, State(1))
		})

		Convey("Moving down from (0,0) enters the forbidden cell", func() {
			reward, next := step(0, Down)
			So(reward, ShouldEqual, -1)
			So(next, ShouldEqual, State(2))
		})

		Convey("Moving right off the right edge bumps the wall", func() {
			reward, next := step(1, Right)
			So(reward, ShouldEqual, WallBumpReward)
			So(next, ShouldEqual, State(1))
		})

		Convey("Staying re-collects the reward of the current cell", func() {
			reward, next := step(1, Stay)
			So(reward, ShouldEqual, 1)
			So(next, ShouldEqual, State(1))
		})

		Convey("Invalid input is rejected", func() {
			_, _, err := grid.Step(4, Up)
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
			_, _, err = grid.Step(-1, Up)
			So(errors.Is(err, ErrInvalidState), ShouldBeTrue)
			_, _, err = grid.Step(0, Action(5))
			So(errors.Is(err, ErrInvalidAction), ShouldBeTrue)
			_, _, err = grid.Step(0, Action(-1))
			So(errors.Is(err, ErrInvalidAction), ShouldBeTrue)
		})
	})

	Convey("Given a random grid", t, func() {
		grid, err := NewRandom(RandomConfig{Rows: 4, Cols: 6, NumForbidden: 5, NumGoal: 2, Seed: 9, GoalReward: 3, ForbiddenReward: -5})
		So(err, ShouldBeNil)

		Convey("Every move off an edge keeps the state and yields the wall-bump reward", func() {
			grid.Visit(func(s State, row, col int) {
				for _, a := range Actions {
					dRow, dCol := a.Delta()
					if grid.Contains(row+dRow, col+dCol) {
						continue
					}
					reward, next, err := grid.Step(s, a)
					So(err, ShouldBeNil)
					So(reward, ShouldEqual, WallBumpReward)
					So(next, ShouldEqual, s)
				}
			})
		})

		Convey("Every in-bounds move yields the reward of the entered cell", func() {
			grid.Visit(func(s State, row, col int) {
				for _, a := range Actions {
					dRow, dCol := a.Delta()
					if !grid.Contains(row+dRow, col+dCol) {
						continue
					}
					reward, next, err := grid.Step(s, a)
					So(err, ShouldBeNil)
					want, _ := grid.StateOf(row+dRow, col+dCol)
					So(next, ShouldEqual, want)
					expected, _ := grid.RewardOf(row+dRow, col+dCol)
					So(reward, ShouldEqual, expected)
					So(reward, ShouldEqual, grid.Reward(next))
				}
			})
		})
	})
}

func TestTrajectory(t *testing.T) {
	Convey("When computing a discounted return", t, func() {
		tr := Trajectory{
			{Reward: 1},
			{Reward: 0},
			{Reward: 2},
		}
		So(tr.Return(1), ShouldEqual, 3)
		So(tr.Return(0.5), ShouldEqual, 1+0.25*2)
		So(tr.Return(0), ShouldEqual, 1)
		So(Trajectory{}.Return(0.9), ShouldEqual, 0)
	})

	Convey("When checking whether a trajectory reaches the goal", t, func() {
		grid, err := ParseTrack(DebugTrack, 1, -1)
		So(err, ShouldBeNil)
		So(Trajectory{{State: 0, NextState: 1}}.ReachedGoal(grid), ShouldBeTrue)
		So(Trajectory{{State: 1, NextState: 0}}.ReachedGoal(grid), ShouldBeFalse)
	})
}

func TestShowGrid(t *testing.T) {
	Convey("When printing a grid", t, func() {
		grid, err := ParseTrack(DebugTrack, 1, -1)
		So(err, ShouldBeNil)
		var buf bytes.Buffer
		ShowGrid(&buf, grid)
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		So(len(lines), ShouldEqual, 2)
		So(lines[0], ShouldContainSubstring, GoalMarker)
		So(lines[1], ShouldContainSubstring, ForbiddenMarker)
	})
}

func TestParseAction(t *testing.T) {
	Convey("Actions parse from names and indices", t, func() {
		for _, a := range Actions {
			parsed, err := ParseAction(a.String())
			So(err, ShouldBeNil)
			So(parsed, ShouldEqual, a)
		}
		parsed, err := ParseAction("LEFT")
		So(err, ShouldBeNil)
		So(parsed, ShouldEqual, Left)

		parsed, err = ParseAction("4")
		So(err, ShouldBeNil)
		So(parsed, ShouldEqual, Stay)

		for _, bad := range []string{"", "north", "5", "-1"} {
			_, err = ParseAction(bad)
			So(errors.Is(err, ErrInvalidAction), ShouldBeTrue)
		}
	})
}
