package baseline

import (
	"time"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/stats"
)

// Config controls baseline computation.
type Config struct {
	// WindowDays truncates history to the trailing N records when > 0.
	WindowDays int

	// MinSamples is the minimum number of non-missing values a metric
	// needs before a baseline is computed for it.
	MinSamples int

	// K is the normal-range half-width in standard deviations:
	// [mean - K*std, mean + K*std].
	K float64
}

// DefaultConfig returns the standard baseline parameters.
func DefaultConfig() Config {
	return Config{
		WindowDays: 0,
		MinSamples: 5,
		K:          1.5,
	}
}

// Compute derives one personal baseline per metric from the given history.
// History must be ordered by date ascending. Metrics with fewer than
// MinSamples measured values are omitted; callers treat a missing baseline
// as "no verdict", never as zero.
//
// A metric whose values never vary gets Std == 0 and a degenerate normal
// range [mean, mean]. Downstream detection must suppress z-scoring in that
// case rather than divide by zero.
func Compute(history []api.UnifiedRecord, cfg Config) map[api.Metric]api.Baseline {
	if cfg.WindowDays > 0 && len(history) > cfg.WindowDays {
		history = history[len(history)-cfg.WindowDays:]
	}

	computedAt := time.Now().UTC()
	baselines := make(map[api.Metric]api.Baseline)

	for _, m := range api.Metrics() {
		values := make([]float64, 0, len(history))
		for i := range history {
			if v, ok := history[i].Value(m); ok {
				values = append(values, v)
			}
		}
		if len(values) < cfg.MinSamples {
			continue
		}

		mean := stats.Mean(values)
		std := stats.SampleStd(values)

		baselines[m] = api.Baseline{
			Metric:     m,
			Mean:       mean,
			Std:        std,
			MinNormal:  mean - cfg.K*std,
			MaxNormal:  mean + cfg.K*std,
			SampleSize: len(values),
			ComputedAt: computedAt,
		}
	}

	return baselines
}
