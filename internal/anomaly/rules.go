package anomaly

import "github.com/vitalhub/vitals/internal/api"

// recommendation pairs the advice for a metric running low vs high. The
// table is closed: unknown metrics fall back to a generic watch notice.
type recommendation struct {
	low  string
	high string
}

var recommendations = map[api.Metric]recommendation{
	api.MetricSleepDuration: {
		low:  "Consider a consistent bedtime routine.",
		high: "Extended sleep may indicate fatigue.",
	},
	api.MetricSleepQuality: {
		low:  "Review evening screen time and caffeine intake.",
		high: "Sleep quality is trending well.",
	},
	api.MetricRestingHR: {
		low:  "Monitor for other symptoms.",
		high: "Elevated HR may indicate stress or illness.",
	},
	api.MetricHRV: {
		low:  "Prioritize rest and stress management.",
		high: "Great recovery indicator!",
	},
	api.MetricSteps: {
		low:  "Try adding short walks.",
		high: "Great activity! Ensure recovery.",
	},
	api.MetricStressScore: {
		low:  "Maintain current practices.",
		high: "Consider relaxation techniques.",
	},
	api.MetricEnergyLevel: {
		low:  "Check sleep and nutrition over recent days.",
		high: "Energy is running above your usual.",
	},
}

const defaultRecommendation = "Monitor this metric."

// recommend returns the action text for a metric deviating in the given
// direction. high is true when the value sits above baseline.
func recommend(m api.Metric, high bool) string {
	rec, ok := recommendations[m]
	if !ok {
		return defaultRecommendation
	}
	if high {
		return rec.high
	}
	return rec.low
}
