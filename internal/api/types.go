package api

import (
	"fmt"
	"time"
)

// DateLayout is the canonical key format for daily records.
const DateLayout = "2006-01-02"

// Metric identifies one numeric daily series derivable from a UnifiedRecord.
type Metric string

const (
	MetricSleepDuration  Metric = "sleep_duration"
	MetricSleepQuality   Metric = "sleep_quality"
	MetricRestingHR      Metric = "resting_hr"
	MetricHRV            Metric = "hrv"
	MetricSteps          Metric = "steps"
	MetricActiveMinutes  Metric = "active_minutes"
	MetricCaloriesBurned Metric = "calories_burned"
	MetricCaloriesIn     Metric = "calories_in"
	MetricStressScore    Metric = "stress_score"
	MetricEnergyLevel    Metric = "energy_level"
)

// Metrics returns all known metrics in stable definition order.
func Metrics() []Metric {
	return []Metric{
		MetricSleepDuration,
		MetricSleepQuality,
		MetricRestingHR,
		MetricHRV,
		MetricSteps,
		MetricActiveMinutes,
		MetricCaloriesBurned,
		MetricCaloriesIn,
		MetricStressScore,
		MetricEnergyLevel,
	}
}

// DisplayName returns the human-readable name used in descriptions.
func (m Metric) DisplayName() string {
	switch m {
	case MetricSleepDuration:
		return "sleep duration"
	case MetricSleepQuality:
		return "sleep quality"
	case MetricRestingHR:
		return "resting heart rate"
	case MetricHRV:
		return "HRV"
	case MetricSteps:
		return "daily steps"
	case MetricActiveMinutes:
		return "active minutes"
	case MetricCaloriesBurned:
		return "calories burned"
	case MetricCaloriesIn:
		return "calorie intake"
	case MetricStressScore:
		return "stress level"
	case MetricEnergyLevel:
		return "energy level"
	}
	return string(m)
}

// Unit returns the display unit for a metric.
func (m Metric) Unit() string {
	switch m {
	case MetricSleepDuration:
		return "hours"
	case MetricRestingHR:
		return "bpm"
	case MetricHRV:
		return "ms"
	case MetricSteps:
		return "steps"
	case MetricActiveMinutes:
		return "min"
	case MetricCaloriesBurned, MetricCaloriesIn:
		return "kcal"
	default:
		return "score"
	}
}

// Severity mirrors SOC-style alert levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting (higher is more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}

// Sleep holds the sleep domain of a daily record. Nil pointers mean the
// value was never measured, which is distinct from a measured zero.
type Sleep struct {
	DurationHours *float64 `json:"duration_hours,omitempty"`
	QualityScore  *float64 `json:"quality_score,omitempty"`
}

// HeartRate holds the cardiovascular domain of a daily record.
type HeartRate struct {
	Resting *float64 `json:"resting,omitempty"`
	HRV     *float64 `json:"hrv,omitempty"`
}

// Activity holds the movement domain of a daily record.
type Activity struct {
	Steps          *float64 `json:"steps,omitempty"`
	ActiveMinutes  *float64 `json:"active_minutes,omitempty"`
	CaloriesBurned *float64 `json:"calories_burned,omitempty"`
}

// Nutrition holds the intake domain of a daily record.
type Nutrition struct {
	Calories *float64 `json:"calories,omitempty"`
}

// Wellness holds the self-reported domain of a daily record.
type Wellness struct {
	StressScore *float64 `json:"stress_score,omitempty"`
	EnergyLevel *float64 `json:"energy_level,omitempty"`
}

// UnifiedRecord is one day of normalized health data. Records are keyed by
// date, immutable once stored, and ordered by date ascending. Domains the
// ingestion collaborator did not supply are nil.
type UnifiedRecord struct {
	Date      string     `json:"date"`
	Sleep     *Sleep     `json:"sleep,omitempty"`
	HeartRate *HeartRate `json:"heart_rate,omitempty"`
	Activity  *Activity  `json:"activity,omitempty"`
	Nutrition *Nutrition `json:"nutrition,omitempty"`
	Wellness  *Wellness  `json:"wellness,omitempty"`
}

// Time parses the record date.
func (r *UnifiedRecord) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid record date %q: %w", r.Date, err)
	}
	return t, nil
}

// Value extracts one metric from the record. The second return is false when
// the metric was not measured that day.
func (r *UnifiedRecord) Value(m Metric) (float64, bool) {
	switch m {
	case MetricSleepDuration:
		if r.Sleep != nil && r.Sleep.DurationHours != nil {
			return *r.Sleep.DurationHours, true
		}
	case MetricSleepQuality:
		if r.Sleep != nil && r.Sleep.QualityScore != nil {
			return *r.Sleep.QualityScore, true
		}
	case MetricRestingHR:
		if r.HeartRate != nil && r.HeartRate.Resting != nil {
			return *r.HeartRate.Resting, true
		}
	case MetricHRV:
		if r.HeartRate != nil && r.HeartRate.HRV != nil {
			return *r.HeartRate.HRV, true
		}
	case MetricSteps:
		if r.Activity != nil && r.Activity.Steps != nil {
			return *r.Activity.Steps, true
		}
	case MetricActiveMinutes:
		if r.Activity != nil && r.Activity.ActiveMinutes != nil {
			return *r.Activity.ActiveMinutes, true
		}
	case MetricCaloriesBurned:
		if r.Activity != nil && r.Activity.CaloriesBurned != nil {
			return *r.Activity.CaloriesBurned, true
		}
	case MetricCaloriesIn:
		if r.Nutrition != nil && r.Nutrition.Calories != nil {
			return *r.Nutrition.Calories, true
		}
	case MetricStressScore:
		if r.Wellness != nil && r.Wellness.StressScore != nil {
			return *r.Wellness.StressScore, true
		}
	case MetricEnergyLevel:
		if r.Wellness != nil && r.Wellness.EnergyLevel != nil {
			return *r.Wellness.EnergyLevel, true
		}
	}
	return 0, false
}

// Baseline is a personal normal range for one metric. Each computation yields
// a new immutable snapshot; older baselines are superseded, never mutated.
type Baseline struct {
	Metric     Metric    `json:"metric"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
	MinNormal  float64   `json:"min_normal"`
	MaxNormal  float64   `json:"max_normal"`
	SampleSize int       `json:"sample_size"`
	ComputedAt time.Time `json:"computed_at"`
}

// Anomaly is a single per-day, per-metric deviation from baseline. Immutable
// after creation; re-running detection over identical inputs reproduces it
// exactly (IDs are derived from metric and date, not random).
type Anomaly struct {
	ID                string   `json:"id"`
	Metric            Metric   `json:"metric_type"`
	Date              string   `json:"timestamp"`
	Value             float64  `json:"value"`
	Severity          Severity `json:"severity"`
	DeviationPercent  float64  `json:"deviation_percent"`
	ZScore            float64  `json:"z_score"`
	ConsecutiveDays   int      `json:"consecutive_days"`
	Description       string   `json:"description"`
	RecommendedAction string   `json:"recommended_action"`
}

// TimelineDay is one zero-filled day of the anomaly timeline.
type TimelineDay struct {
	Date     string `json:"date"`
	Critical int    `json:"critical"`
	Warning  int    `json:"warning"`
	Info     int    `json:"info"`
	Total    int    `json:"total"`
}

// Correlation is a discovered pairwise relationship between two metrics.
// LagDays of 1 means metric A on day t was paired with metric B on day t+1.
type Correlation struct {
	ID          string  `json:"id"`
	MetricA     Metric  `json:"metric_a"`
	MetricB     Metric  `json:"metric_b"`
	Coefficient float64 `json:"correlation_coefficient"`
	Confidence  float64 `json:"confidence"`
	SampleSize  int     `json:"sample_size"`
	LagDays     int     `json:"lag_days"`
	Description string  `json:"description"`
	InsightText string  `json:"insight_text"`
}

// TargetValues carries the two derived wellness outputs of a simulation.
type TargetValues struct {
	Energy float64 `json:"energy"`
	Stress float64 `json:"stress"`
}

// SimulationDeltas are the user-adjustable what-if inputs. Signed, unbounded
// at this layer; range clamping belongs to the presentation layer.
type SimulationDeltas struct {
	SleepHours float64 `json:"sleep_hours_delta"`
	Steps      float64 `json:"steps_delta"`
	CaloriesIn float64 `json:"calories_in_delta"`
}

// ResidualStds reports per-target model uncertainty (in-sample residual std).
type ResidualStds struct {
	EnergyStd float64 `json:"energy_std"`
	StressStd float64 `json:"stress_std"`
}

// Explanation is the exact per-feature attribution of a simulated change:
// for a linear model, contribution = coefficient × input delta.
type Explanation struct {
	Energy map[string]float64 `json:"energy"`
	Stress map[string]float64 `json:"stress"`
}

// DriftReport classifies whether a query's inputs fall inside the training
// distribution of the counterfactual models.
type DriftReport struct {
	InDomain bool   `json:"in_domain"`
	Message  string `json:"message,omitempty"`
}

// ModelInfo summarizes the fitted models behind a simulation. Available is
// false when training data was insufficient or degenerate; such simulations
// return counterfactual == baseline rather than failing the caller.
type ModelInfo struct {
	EnergyR2     float64 `json:"energy_r2"`
	StressR2     float64 `json:"stress_r2"`
	TrainingRows int     `json:"training_rows"`
	Available    bool    `json:"available"`
}

// CounterfactualResult is the ephemeral answer to one what-if query.
type CounterfactualResult struct {
	Baseline       TargetValues `json:"baseline"`
	Counterfactual TargetValues `json:"counterfactual"`
	Delta          TargetValues `json:"delta"`
	Confidence     ResidualStds `json:"confidence"`
	Explanation    Explanation  `json:"explanation"`
	Drift          DriftReport  `json:"drift"`
	ModelInfo      ModelInfo    `json:"model_info"`
}

// Float returns a pointer to v; convenience for building records.
func Float(v float64) *float64 { return &v }
