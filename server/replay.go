package server

import (
	"log"
	"time"

	. "gridworld/grid_world"
	"gridworld/policy"
	"gridworld/reinforcement"
	"gridworld/server/cell_views"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	// replayPeriod is the delay between replayed transitions.
	replayPeriod = 100 * time.Millisecond
	// replaySteps is the step budget of episodes sampled for replay when no batch is given.
	replaySteps = 50
	replaySeed  = 1
)

// replay emits one snapshot per transition of the batch's episodes, cycling through
// them until done is closed. Visit counts accumulate across episodes. Without a batch,
// episodes are sampled on the fly from exploring starts.
func replay(
	done <-chan struct{},
	grid *Grid,
	pol *policy.Policy,
	batch *reinforcement.BatchResult,
	period time.Duration,
) <-chan cell_views.Snapshot {
	snapshots := make(chan cell_views.Snapshot)

	var episodes []reinforcement.Episode
	if batch != nil {
		episodes = batch.Episodes
	}
	smp := reinforcement.NewSeededSampler(grid, replaySeed)
	nextTrajectory := func(i int) (Trajectory, error) {
		if len(episodes) > 0 {
			return episodes[i%len(episodes)].Trajectory, nil
		}
		start, action := smp.RandomStart()
		return smp.Sample(start, action, pol, replaySteps, false)
	}

	go func() {
		defer close(snapshots)

		ticker := channerics.NewTicker(done, period)
		visits := make([]int, grid.NumStates())
		for i := 0; ; i++ {
			trajectory, err := nextTrajectory(i)
			if err != nil {
				log.Println("replay:", err)
				return
			}

			reward := 0.0
			for step, tr := range trajectory {
				select {
				case <-done:
					return
				case <-ticker:
				}

				visits[tr.State]++
				reward += tr.Reward
				snap := cell_views.Snapshot{
					Episode: i,
					Step:    step,
					Agent:   tr.NextState,
					Reward:  reward,
					Visits:  append([]int(nil), visits...),
				}
				select {
				case snapshots <- snap:
				case <-done:
					return
				}
			}
		}
	}()

	return snapshots
}
