/*
Gridworld is a small reinforcement learning environment: a rectangular grid of ordinary,
forbidden, and goal cells with deterministic dynamics, a sampler that rolls out stochastic
policies over it, and a few ways to look at the result. A run loads a config, builds the grid
and policy, prints them, samples a batch of exploring-start episodes in parallel, and reports
their discounted returns. Optionally it plots the returns and serves live views of the agent.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"gridworld/grid_world"
	"gridworld/policy"
	"gridworld/reinforcement"
	"gridworld/server"
	"gridworld/server/plots"
)

var (
	configPath = flag.String("config", "./config.yaml", "path to the experiment config")
	serve      = flag.Bool("serve", false, "serve views of the grid and replayed episodes")
	host       = flag.String("host", "", "The host ip")
	port       = flag.String("port", "8080", "The host port")
	chartPath  = flag.String("chart", "", "write an html chart of episode returns to this path")
)

type appOptions struct {
	configPath string
	chartPath  string
	serve      bool
	addr       string
}

func runApp(ctx context.Context, opts appOptions) (err error) {
	var cfg *reinforcement.ExperimentConfig
	if cfg, err = reinforcement.FromYaml(opts.configPath); err != nil {
		return
	}

	var grid *grid_world.Grid
	if grid, err = cfg.BuildGrid(); err != nil {
		return
	}
	var pol *policy.Policy
	if pol, err = cfg.BuildPolicy(grid); err != nil {
		return
	}

	grid_world.ShowGrid(os.Stdout, grid)
	grid_world.ShowRewards(os.Stdout, grid)
	if err = policy.ShowPolicy(os.Stdout, grid, pol); err != nil {
		return
	}

	sampleCtx, cancel, err := cfg.WithDeadline(ctx)
	if err != nil {
		return
	}
	defer cancel()

	batchConfig := cfg.BatchConfig()
	result, err := reinforcement.SampleBatch(
		sampleCtx,
		grid,
		pol,
		batchConfig,
		logProgress(batchConfig.Episodes))
	if err != nil {
		if result == nil {
			return
		}
		// Deadline or interrupt: report what completed.
		log.Println("sampling stopped early:", err)
		err = nil
	}

	stats := result.Stats
	log.Printf("episodes=%d mean return=%.4f std=%.4f goal rate=%.2f",
		stats.Count(), stats.Mean(), stats.StdDev(), stats.GoalRate())

	if opts.chartPath != "" {
		if err = writeChart(opts.chartPath, result); err != nil {
			return
		}
		log.Println("wrote", opts.chartPath)
	}

	if !opts.serve {
		return
	}

	var srv *server.Server
	if srv, err = server.NewServer(ctx, opts.addr, grid, pol, result); err != nil {
		return
	}
	return srv.Serve(ctx)
}

func writeChart(path string, result *reinforcement.BatchResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	err = plots.RenderReturns(f, "episode returns", result)
	if errors.Is(err, plots.ErrNoEpisodes) {
		log.Println("no episodes completed, chart is empty")
		err = nil
	}
	return
}

// logProgress logs roughly every tenth of the batch.
func logProgress(episodes int) reinforcement.ProgressFunc {
	every := episodes / 10
	if every == 0 {
		every = 1
	}
	return func(_ context.Context, count int) {
		if count%every == 0 {
			log.Printf("sampled %d/%d episodes", count, episodes)
		}
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runApp(ctx, appOptions{
		configPath: *configPath,
		chartPath:  *chartPath,
		serve:      *serve,
		addr:       *host + ":" + *port,
	}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
