package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	. "gridworld/grid_world"
	"gridworld/policy"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigKind is the only kind of config envelope this package understands.
const ConfigKind = "gridworld"

var ErrConfig = errors.New("invalid experiment config")

// OuterConfig is the kind/def envelope of a config file; Def is decoded per Kind.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// ExperimentConfig encodes the grid, the sampling regime, and standard RL params
// outside of code. Viper lowercases every key it reads, so the yaml tags here are
// all lowercase regardless of how the file spells them.
type ExperimentConfig struct {
	Grid     GridConfig     `yaml:"grid"`
	Sampling SamplingConfig `yaml:"sampling"`
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Deadline is a duration describing when to stop sampling.
	Deadline map[string]string `yaml:"deadline"`
}

// GridConfig selects how the grid is built: a named layout ("classic", "debug"),
// explicit track rows, or a seeded random placement.
type GridConfig struct {
	Layout          string   `yaml:"layout"`
	Track           []string `yaml:"track"`
	Rows            int      `yaml:"rows"`
	Cols            int      `yaml:"cols"`
	Forbidden       int      `yaml:"forbidden"`
	Goals           int      `yaml:"goals"`
	Seed            uint64   `yaml:"seed"`
	GoalReward      float64  `yaml:"goalreward"`
	ForbiddenReward float64  `yaml:"forbiddenreward"`
}

// SamplingConfig describes the batch of trajectories to sample. Policy is "uniform"
// or the name of a single action taken everywhere.
type SamplingConfig struct {
	Episodes   int    `yaml:"episodes"`
	Steps      int    `yaml:"steps"`
	StopAtGoal bool   `yaml:"stopatgoal"`
	Seed       uint64 `yaml:"seed"`
	Workers    int    `yaml:"workers"`
	Policy     string `yaml:"policy"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *ExperimentConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if strings.EqualFold(kvp.Key, param) {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithDeadline returns a context extended by the sampling deadline, if one is specified.
func (cfg *ExperimentConfig) WithDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.Deadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: deadline: %v", ErrConfig, err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a kind/def envelope with viper and decodes its def into an ExperimentConfig.
func FromYaml(path string) (*ExperimentConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err := vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != ConfigKind {
		return nil, fmt.Errorf("%w: kind %q, expected %q", ErrConfig, outerConfig.Kind, ConfigKind)
	}

	spec, err := yaml.Marshal(outerConfig.Def)
	if err != nil {
		return nil, err
	}

	innerConfig := &ExperimentConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, err
	}
	innerConfig.applyDefaults()

	return innerConfig, nil
}

// applyDefaults fills unset fields. Zero rewards are invalid, so zero means unset.
func (cfg *ExperimentConfig) applyDefaults() {
	if cfg.Grid.GoalReward == 0 {
		cfg.Grid.GoalReward = DefaultGoalReward
	}
	if cfg.Grid.ForbiddenReward == 0 {
		cfg.Grid.ForbiddenReward = DefaultForbiddenReward
	}
	if cfg.Grid.Rows == 0 && cfg.Grid.Cols == 0 {
		cfg.Grid.Rows, cfg.Grid.Cols = DefaultRows, DefaultCols
	}
	if cfg.Sampling.Workers == 0 {
		cfg.Sampling.Workers = runtime.NumCPU()
	}
	if cfg.Sampling.Policy == "" {
		cfg.Sampling.Policy = "uniform"
	}
}

// BuildGrid constructs the configured grid.
func (cfg *ExperimentConfig) BuildGrid() (*Grid, error) {
	gc := cfg.Grid
	switch strings.ToLower(gc.Layout) {
	case "classic":
		return ParseTrack(ClassicTrack, gc.GoalReward, gc.ForbiddenReward)
	case "debug":
		return ParseTrack(DebugTrack, gc.GoalReward, gc.ForbiddenReward)
	case "track":
		return ParseTrack(gc.Track, gc.GoalReward, gc.ForbiddenReward)
	case "", "random":
		if len(gc.Track) > 0 {
			return ParseTrack(gc.Track, gc.GoalReward, gc.ForbiddenReward)
		}
		return NewRandom(RandomConfig{
			Rows:            gc.Rows,
			Cols:            gc.Cols,
			NumForbidden:    gc.Forbidden,
			NumGoal:         gc.Goals,
			Seed:            gc.Seed,
			GoalReward:      gc.GoalReward,
			ForbiddenReward: gc.ForbiddenReward,
		})
	}
	return nil, fmt.Errorf("%w: unknown layout %q", ErrConfig, gc.Layout)
}

// BuildPolicy constructs the configured policy for grid.
func (cfg *ExperimentConfig) BuildPolicy(grid *Grid) (*policy.Policy, error) {
	name := strings.ToLower(cfg.Sampling.Policy)
	if name == "uniform" {
		return policy.Uniform(grid.NumStates())
	}
	if a, err := ParseAction(name); err == nil {
		actions := make([]Action, grid.NumStates())
		for s := range actions {
			actions[s] = a
		}
		return policy.Deterministic(actions)
	}
	return nil, fmt.Errorf("%w: unknown policy %q", ErrConfig, cfg.Sampling.Policy)
}

// BatchConfig returns the sampling section as a BatchConfig.
func (cfg *ExperimentConfig) BatchConfig() BatchConfig {
	return BatchConfig{
		Episodes:   cfg.Sampling.Episodes,
		Steps:      cfg.Sampling.Steps,
		StopAtGoal: cfg.Sampling.StopAtGoal,
		Seed:       cfg.Sampling.Seed,
		Workers:    cfg.Sampling.Workers,
		Gamma:      cfg.GetHyperParamOrDefault("gamma", 0.9),
	}
}
