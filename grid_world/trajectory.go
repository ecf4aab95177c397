package grid_world

// Transition is a single SARSA time step of an agent: do Action in State, observe
// Reward and NextState, then pick NextAction in NextState.
type Transition struct {
	State      State
	Action     Action
	Reward     float64
	NextState  State
	NextAction Action
}

// Trajectory is an ordered sequence of Transitions.
type Trajectory []Transition

// Return is the discounted sum of rewards, r0 + gamma*r1 + gamma^2*r2 + ...
func (tr Trajectory) Return(gamma float64) float64 {
	// Accumulate backward from the last step, the same way episode rewards are propagated.
	ret := 0.0
	for _, t := range Rev(len(tr)) {
		ret = tr[t].Reward + gamma*ret
	}
	return ret
}

// ReachedGoal reports whether any transition in the trajectory enters a goal state.
func (tr Trajectory) ReachedGoal(grid *Grid) bool {
	for _, t := range tr {
		if grid.IsGoal(t.NextState) {
			return true
		}
	}
	return false
}

// Rev returns reversed indices of a slice, e.g. for ranging over.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
