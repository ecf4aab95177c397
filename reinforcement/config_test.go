package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "gridworld/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: gridworld
def:
  grid:
    layout: random
    rows: 6
    cols: 7
    forbidden: 5
    goals: 2
    seed: 13
    goalReward: 10
  sampling:
    episodes: 50
    steps: 100
    stopAtGoal: true
    seed: 3
    workers: 2
    policy: right
  hyperParams:
    - key: gamma
      val: 0.5
  deadline:
    duration: 2m
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When reading a config file", t, func() {
		cfg, err := FromYaml(writeConfig(t, testConfig))
		So(err, ShouldBeNil)

		Convey("Fields are decoded regardless of key case", func() {
			So(cfg.Grid.Rows, ShouldEqual, 6)
			So(cfg.Grid.Cols, ShouldEqual, 7)
			So(cfg.Grid.GoalReward, ShouldEqual, 10)
			So(cfg.Sampling.StopAtGoal, ShouldBeTrue)
			So(cfg.Sampling.Policy, ShouldEqual, "right")
			So(cfg.GetHyperParamOrDefault("GAMMA", 0.9), ShouldEqual, 0.5)
			So(cfg.GetHyperParamOrDefault("alpha", 0.1), ShouldEqual, 0.1)
		})

		Convey("Unset rewards get defaults", func() {
			So(cfg.Grid.ForbiddenReward, ShouldEqual, DefaultForbiddenReward)
		})

		Convey("The grid, policy, and batch can be built", func() {
			grid, err := cfg.BuildGrid()
			So(err, ShouldBeNil)
			So(grid.NumStates(), ShouldEqual, 42)
			So(len(grid.StatesOf(Forbidden)), ShouldEqual, 5)
			So(len(grid.StatesOf(Goal)), ShouldEqual, 2)

			pol, err := cfg.BuildPolicy(grid)
			So(err, ShouldBeNil)
			So(pol.BestActions()[0], ShouldEqual, Right)

			batch := cfg.BatchConfig()
			So(batch.Episodes, ShouldEqual, 50)
			So(batch.Workers, ShouldEqual, 2)
			So(batch.Gamma, ShouldEqual, 0.5)
		})

		Convey("The deadline bounds the context", func() {
			ctx, cancel, err := cfg.WithDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(deadline, ShouldHappenWithin, 2*time.Minute+time.Second, time.Now())
		})
	})

	Convey("When the config is minimal", t, func() {
		cfg, err := FromYaml(writeConfig(t, "kind: gridworld\ndef:\n  grid:\n    layout: classic\n"))
		So(err, ShouldBeNil)
		So(cfg.Sampling.Policy, ShouldEqual, "uniform")
		So(cfg.Sampling.Workers, ShouldBeGreaterThan, 0)
		So(cfg.BatchConfig().Gamma, ShouldEqual, 0.9)

		grid, err := cfg.BuildGrid()
		So(err, ShouldBeNil)
		So(grid.Rows(), ShouldEqual, 5)

		ctx, cancel, err := cfg.WithDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
	})

	Convey("When the config is wrong", t, func() {
		Convey("An unknown kind is rejected", func() {
			_, err := FromYaml(writeConfig(t, "kind: qlearning\ndef:\n  grid: {}\n"))
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("Unknown layouts and policies are rejected", func() {
			cfg := &ExperimentConfig{}
			cfg.applyDefaults()
			cfg.Grid.Layout = "maze"
			_, err := cfg.BuildGrid()
			So(errors.Is(err, ErrConfig), ShouldBeTrue)

			cfg.Grid.Layout = "debug"
			grid, err := cfg.BuildGrid()
			So(err, ShouldBeNil)
			cfg.Sampling.Policy = "sideways"
			_, err = cfg.BuildPolicy(grid)
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
		})

		Convey("A bad deadline is rejected", func() {
			cfg := &ExperimentConfig{Deadline: map[string]string{"duration": "soon"}}
			_, _, err := cfg.WithDeadline(context.Background())
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
		})

		Convey("Explicit track rows are parsed", func() {
			cfg := &ExperimentConfig{Grid: GridConfig{Layout: "track", Track: []string{"..T", "#.."}}}
			cfg.applyDefaults()
			grid, err := cfg.BuildGrid()
			So(err, ShouldBeNil)
			So(grid.Cols(), ShouldEqual, 3)
			So(grid.IsGoal(2), ShouldBeTrue)
		})
	})
}
