// Package scoring holds the pure functions that turn draft evidence into risk scores.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/robalyx/draftguard/internal/database/types/enum"
	"github.com/robalyx/draftguard/internal/setup/config"
)

// WeightTolerance is how far the weight sum may drift from 1.
const WeightTolerance = 1e-6

var (
	ErrWeightOutOfRange = errors.New("score weight must be within [0,1]")
	ErrWeightSum        = errors.New("score weights must sum to 1")
)

// Weights are the component weights of the combined risk score.
type Weights struct {
	Location float64
	Behavior float64
	Benefit  float64
}

// WeightsFrom converts configured weights.
func WeightsFrom(cfg config.Weights) Weights {
	return Weights{Location: cfg.Location, Behavior: cfg.Behavior, Benefit: cfg.Benefit}
}

// Validate checks every weight is in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	components := []struct {
		name  string
		value float64
	}{
		{"location", w.Location},
		{"behavior", w.Behavior},
		{"benefit", w.Benefit},
	}
	for _, c := range components {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 1 {
			return fmt.Errorf("%w: %s=%v", ErrWeightOutOfRange, c.name, c.value)
		}
	}

	if sum := w.Location + w.Behavior + w.Benefit; math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: got %v", ErrWeightSum, sum)
	}
	return nil
}

// Combine returns the weighted sum of the three component scores.
// Each component is clamped to [0,100] first, so raising any one of them
// never lowers the result.
func Combine(w Weights, location, behavior, benefit float64) float64 {
	return w.Location*Clamp(location) + w.Behavior*Clamp(behavior) + w.Benefit*Clamp(benefit)
}

// Thresholds are the lower bounds of each risk level.
type Thresholds struct {
	Monitor float64
	Review  float64
	Urgent  float64
}

// ThresholdsFrom converts configured levels.
func ThresholdsFrom(cfg config.Levels) Thresholds {
	return Thresholds{Monitor: cfg.Monitor, Review: cfg.Review, Urgent: cfg.Urgent}
}

// LevelFor buckets a score.
func LevelFor(score float64, t Thresholds) enum.RiskLevel {
	switch {
	case score >= t.Urgent:
		return enum.RiskLevelUrgent
	case score >= t.Review:
		return enum.RiskLevelReview
	case score >= t.Monitor:
		return enum.RiskLevelMonitor
	default:
		return enum.RiskLevelNone
	}
}

// Clamp limits a score to [0,100]. NaN becomes 0.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// Round2 rounds a score to two decimals so stored values are stable across runs.
func Round2(score float64) float64 {
	return math.Round(score*100) / 100
}
