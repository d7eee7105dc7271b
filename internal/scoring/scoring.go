// Package scoring holds the pure delta calculations for the finish-line
// round. Nothing here touches state or persistence.
package scoring

import "math"

// Penalty is the deduction for a failed steal: half the question value,
// rounded to the nearest multiple of 5.
func Penalty(points int) int {
	return int(math.Round(float64(points)/2/5)) * 5
}

// MainScore computes the delta for the active player's own attempt.
// A star doubles the gain on a correct answer and turns an incorrect
// answer into a full-value loss.
func MainScore(points int, correct, starActive bool) int {
	switch {
	case correct && starActive:
		return 2 * points
	case correct:
		return points
	case starActive:
		return -points
	default:
		return 0
	}
}

// StealDelta carries the per-player outcome of a steal attempt.
type StealDelta struct {
	Stealer int
	Owner   int
}

// StealScore computes the deltas for a steal attempt. A correct steal moves
// the question's value from the owner to the stealer; a failed one costs the
// stealer the penalty and leaves the owner untouched. The star never applies
// here; it belongs to the original answering player only.
func StealScore(points int, stealCorrect bool) StealDelta {
	if stealCorrect {
		return StealDelta{Stealer: points, Owner: -points}
	}
	return StealDelta{Stealer: -Penalty(points), Owner: 0}
}
