package counterfactual

import (
	"fmt"
	"math"

	"github.com/vitalhub/vitals/internal/api"
)

// DriftConfig controls out-of-domain detection for simulation inputs.
type DriftConfig struct {
	// ThresholdStd is the allowed distance, in training standard
	// deviations, between a requested delta and the typical day-to-day
	// change of that feature.
	ThresholdStd float64
}

// DefaultDriftConfig returns the standard drift threshold.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{ThresholdStd: 2.5}
}

// Assess classifies whether the requested deltas fall inside the model's
// training distribution. A feature whose training deltas barely vary
// (std ≈ 0) is always in-domain: no distance can be measured against it.
// When out of domain, the message names the most extreme feature so callers
// can surface which input is extrapolating.
func Assess(m *Model, deltas api.SimulationDeltas, cfg DriftConfig) api.DriftReport {
	in := map[Feature]float64{
		FeatureSleepHours: deltas.SleepHours,
		FeatureSteps:      deltas.Steps,
		FeatureCaloriesIn: deltas.CaloriesIn,
	}

	worst := Feature("")
	worstScore := 0.0
	for _, f := range Features() {
		std := m.FeatureStds[f]
		if std < 1e-9 {
			continue
		}
		score := math.Abs(in[f]-m.FeatureMeans[f]) / std
		if score > worstScore {
			worstScore = score
			worst = f
		}
	}

	if worstScore <= cfg.ThresholdStd {
		return api.DriftReport{InDomain: true}
	}
	return api.DriftReport{
		InDomain: false,
		Message: fmt.Sprintf(
			"Model operating outside training distribution: %s delta is %.1f standard deviations from typical day-to-day change.",
			worst, worstScore),
	}
}
