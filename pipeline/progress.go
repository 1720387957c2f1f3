package pipeline

// Progress checkpoints follow the fixed sequence 0→10→25→50→75→100:
// 0 before the run starts, 10 once the drive enters planning, then one
// checkpoint per completed stage. The mapping is kept separate from the
// runner loop so the percent values callers observe survive refactors
// of the loop itself.

// checkpoints[n] is the percent after n stages have completed in a
// started run.
var checkpoints = [5]int{10, 25, 50, 75, 100}

// Checkpoint maps the number of successfully completed stages within a
// started run (0..4) to its percent-complete value. completed < 0
// means the run has not started and reports 0; completed beyond the
// last stage clamps to 100.
func Checkpoint(completed int) int {
	switch {
	case completed < 0:
		return 0
	case completed >= len(checkpoints):
		return 100
	default:
		return checkpoints[completed]
	}
}
