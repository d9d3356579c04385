package counterfactual

import (
	"errors"
	"math"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/stats"
)

// ErrInvalidQuery is returned for non-finite simulation inputs.
var ErrInvalidQuery = errors.New("simulation deltas must be finite numbers")

// contributionEpsilon hides attributions too small to display.
const contributionEpsilon = 0.01

// Simulate answers one what-if query against fitted models. baseline carries
// the observed energy and stress the prediction starts from. When either
// model is unusable the counterfactual equals the baseline and
// ModelInfo.Available is false; insufficient data degrades, it never errors.
//
// The prediction is exactly linear: counterfactual = baseline + Σ coef·delta,
// and each explanation entry is that feature's coef·delta term, so the
// reported contributions always sum to the reported delta (before the
// display cutoff).
func Simulate(energy, stress *Model, baseline api.TargetValues, deltas api.SimulationDeltas, driftCfg DriftConfig) (*api.CounterfactualResult, error) {
	for _, v := range []float64{deltas.SleepHours, deltas.Steps, deltas.CaloriesIn} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInvalidQuery
		}
	}

	res := &api.CounterfactualResult{
		Baseline:       baseline,
		Counterfactual: baseline,
		Explanation: api.Explanation{
			Energy: map[string]float64{},
			Stress: map[string]float64{},
		},
		Drift: api.DriftReport{InDomain: true},
		ModelInfo: api.ModelInfo{
			Available: false,
		},
	}

	if energy == nil || stress == nil || !energy.Usable || !stress.Usable {
		if energy != nil {
			res.ModelInfo.TrainingRows = energy.TrainingRows
		}
		return res, nil
	}

	in := map[Feature]float64{
		FeatureSleepHours: deltas.SleepHours,
		FeatureSteps:      deltas.Steps,
		FeatureCaloriesIn: deltas.CaloriesIn,
	}

	var dEnergy, dStress float64
	for _, f := range Features() {
		ce := energy.Coefficients[f] * in[f]
		cs := stress.Coefficients[f] * in[f]
		dEnergy += ce
		dStress += cs

		if c := stats.Round2(ce); math.Abs(c) >= contributionEpsilon {
			res.Explanation.Energy[string(f)] = c
		}
		if c := stats.Round2(cs); math.Abs(c) >= contributionEpsilon {
			res.Explanation.Stress[string(f)] = c
		}
	}

	res.Counterfactual = api.TargetValues{
		Energy: baseline.Energy + dEnergy,
		Stress: baseline.Stress + dStress,
	}
	res.Delta = api.TargetValues{Energy: dEnergy, Stress: dStress}
	res.Confidence = api.ResidualStds{
		EnergyStd: stats.Round2(energy.ResidualStd),
		StressStd: stats.Round2(stress.ResidualStd),
	}
	res.Drift = Assess(energy, deltas, driftCfg)
	res.ModelInfo = api.ModelInfo{
		EnergyR2:     energy.RSquared,
		StressR2:     stress.RSquared,
		TrainingRows: energy.TrainingRows,
		Available:    true,
	}
	return res, nil
}
