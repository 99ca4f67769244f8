package scoring

import "github.com/robalyx/draftguard/internal/database/types"

// LocationScore rates a pair's proximity events. Each event adds between half
// and all of eventWeight depending on how close the two devices were; the sum
// is capped at 100 and a pair without events scores 0.
func LocationScore(events []types.ProximityEvent, thresholdFeet, eventWeight float64) float64 {
	if len(events) == 0 || thresholdFeet <= 0 {
		return 0
	}

	var score float64
	for _, event := range events {
		closeness := 1 - event.DistanceFeet/thresholdFeet
		closeness = min(max(closeness, 0), 1)
		score += eventWeight * (0.5 + 0.5*closeness)
	}

	return Clamp(score)
}
