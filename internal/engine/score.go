package engine

import (
	"math"
	"time"

	"github.com/vitalhub/vitals/internal/api"
)

// ScoreComponent is one weighted category of the overall health score.
type ScoreComponent struct {
	Category            string   `json:"category"`
	Score               float64  `json:"score"`
	Weight              float64  `json:"weight"`
	ContributingFactors []string `json:"contributing_factors"`
}

// HealthScore is the 0–100 summary derived from the last week of anomalies.
type HealthScore struct {
	OverallScore int              `json:"overall_score"`
	Components   []ScoreComponent `json:"components"`
	CalculatedAt time.Time        `json:"calculated_at"`
}

// Trend is a 7-day versus previous-7-day direction for one metric.
type Trend struct {
	Metric        api.Metric `json:"metric"`
	Direction     string     `json:"direction"` // up, down, stable
	ChangePercent float64    `json:"change_percent"`
	PeriodDays    int        `json:"period_days"`
}

func scoreCategory(m api.Metric) string {
	switch m {
	case api.MetricSleepDuration, api.MetricSleepQuality:
		return "Sleep"
	case api.MetricRestingHR, api.MetricHRV:
		return "Cardiovascular"
	case api.MetricSteps, api.MetricActiveMinutes, api.MetricCaloriesBurned:
		return "Activity"
	default:
		return "Wellness"
	}
}

// HealthScore summarizes the last 7 days of anomalies into a single score.
// Each critical costs 15 points of deduction, each warning 8, each info 3;
// category components lose 10 points per anomaly in their group.
func (e *Engine) HealthScore() HealthScore {
	snap := e.Current()

	cutoff := ""
	if n := len(snap.History); n > 0 {
		if t, err := snap.History[n-1].Time(); err == nil {
			cutoff = t.AddDate(0, 0, -6).Format(api.DateLayout)
		}
	}

	var critical, warning, info int
	perCategory := map[string]int{}
	for _, a := range snap.Anomalies {
		if a.Date < cutoff {
			continue
		}
		switch a.Severity {
		case api.SeverityCritical:
			critical++
		case api.SeverityWarning:
			warning++
		case api.SeverityInfo:
			info++
		}
		perCategory[scoreCategory(a.Metric)]++
	}

	deduction := float64(critical*15 + warning*8 + info*3)

	components := []ScoreComponent{
		{Category: "Sleep", Weight: 0.25, ContributingFactors: []string{"Duration", "Quality"}},
		{Category: "Cardiovascular", Weight: 0.25, ContributingFactors: []string{"Resting HR", "HRV"}},
		{Category: "Activity", Weight: 0.25, ContributingFactors: []string{"Steps", "Active minutes"}},
		{Category: "Wellness", Weight: 0.25, ContributingFactors: []string{"Stress", "Energy"}},
	}
	weighted := 0.0
	for i := range components {
		components[i].Score = math.Max(0, 100-float64(perCategory[components[i].Category])*10)
		weighted += components[i].Score * components[i].Weight
	}

	final := int(weighted - deduction*0.3)
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return HealthScore{
		OverallScore: final,
		Components:   components,
		CalculatedAt: time.Now().UTC(),
	}
}

// trendSpec pairs a metric with its stability band: changes inside
// ±threshold percent read as "stable".
type trendSpec struct {
	metric    api.Metric
	threshold float64
}

var trendSpecs = []trendSpec{
	{api.MetricSleepDuration, 2},
	{api.MetricSteps, 5},
	{api.MetricRestingHR, 3},
}

// Trends compares the last 7 records against the 7 before them for the key
// metrics. Fewer than 14 records yields no trends.
func (e *Engine) Trends() []Trend {
	history := e.Current().History
	if len(history) < 14 {
		return nil
	}

	recent := history[len(history)-7:]
	previous := history[len(history)-14 : len(history)-7]

	avg := func(recs []api.UnifiedRecord, m api.Metric) float64 {
		sum := 0.0
		for i := range recs {
			if v, ok := recs[i].Value(m); ok {
				sum += v
			}
		}
		return sum / float64(len(recs))
	}

	var trends []Trend
	for _, spec := range trendSpecs {
		prev := avg(previous, spec.metric)
		if prev <= 0 {
			continue
		}
		change := (avg(recent, spec.metric) - prev) / prev * 100

		direction := "stable"
		if change > spec.threshold {
			direction = "up"
		} else if change < -spec.threshold {
			direction = "down"
		}

		trends = append(trends, Trend{
			Metric:        spec.metric,
			Direction:     direction,
			ChangePercent: math.Round(change*10) / 10,
			PeriodDays:    7,
		})
	}
	return trends
}
