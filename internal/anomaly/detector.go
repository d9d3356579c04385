package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vitalhub/vitals/internal/api"
)

// Config holds z-score thresholds and the evaluation window.
type Config struct {
	// InfoThreshold is the minimum |z| for any flag.
	InfoThreshold float64
	// WarnThreshold and CritThreshold bucket higher deviations. When |z|
	// crosses more than one, the highest wins.
	WarnThreshold float64
	CritThreshold float64

	// EvalDays limits detection to the trailing N records when > 0.
	EvalDays int
}

// DefaultConfig returns the standard detection thresholds.
func DefaultConfig() Config {
	return Config{
		InfoThreshold: 1.5,
		WarnThreshold: 2.0,
		CritThreshold: 3.0,
		EvalDays:      30,
	}
}

// anomalyNamespace seeds deterministic anomaly IDs. Re-running detection
// over identical inputs reproduces IDs byte-for-byte.
var anomalyNamespace = uuid.MustParse("9f2c4a1e-7b3d-4c8a-9e5f-1a6b2c3d4e5f")

func anomalyID(m api.Metric, date string) string {
	return uuid.NewSHA1(anomalyNamespace, []byte(string(m)+"|"+date)).String()
}

// Detect flags per-day, per-metric deviations from baseline. History must be
// ordered by date ascending. Metrics without a baseline, or whose baseline
// has zero variance, are never flagged. Results are ordered severity rank
// descending, then date descending, then metric ascending; ties never
// reorder across runs.
func Detect(history []api.UnifiedRecord, baselines map[api.Metric]api.Baseline, cfg Config) []api.Anomaly {
	if cfg.EvalDays > 0 && len(history) > cfg.EvalDays {
		history = history[len(history)-cfg.EvalDays:]
	}

	// Streak of immediately preceding flagged days per metric, same
	// direction. Resets as soon as a day falls back below InfoThreshold.
	type streak struct {
		days int
		high bool
	}
	streaks := make(map[api.Metric]streak)

	var anomalies []api.Anomaly
	for i := range history {
		rec := &history[i]
		for _, m := range api.Metrics() {
			value, ok := rec.Value(m)
			if !ok {
				continue
			}
			b, ok := baselines[m]
			if !ok || b.Std == 0 {
				continue // no verdict without a usable baseline
			}

			z := (value - b.Mean) / b.Std
			sev := severityFor(z, cfg)
			if sev == "" {
				delete(streaks, m)
				continue
			}

			high := z > 0
			s := streaks[m]
			if s.days > 0 && s.high == high {
				s.days++
			} else {
				s = streak{days: 1, high: high}
			}
			streaks[m] = s

			deviation := 0.0
			if b.Mean != 0 {
				deviation = (value - b.Mean) / b.Mean * 100
			}

			anomalies = append(anomalies, api.Anomaly{
				ID:                anomalyID(m, rec.Date),
				Metric:            m,
				Date:              rec.Date,
				Value:             value,
				Severity:          sev,
				DeviationPercent:  deviation,
				ZScore:            z,
				ConsecutiveDays:   s.days,
				Description:       describe(m, high, value, b, s.days),
				RecommendedAction: recommend(m, high),
			})
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := &anomalies[i], &anomalies[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.Metric < b.Metric
	})
	return anomalies
}

// severityFor buckets |z| into a severity, highest threshold wins. Returns
// "" when |z| is below the info threshold. Severity is monotonic in |z|:
// a larger deviation never yields a lower bucket.
func severityFor(z float64, cfg Config) api.Severity {
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= cfg.CritThreshold:
		return api.SeverityCritical
	case abs >= cfg.WarnThreshold:
		return api.SeverityWarning
	case abs >= cfg.InfoThreshold:
		return api.SeverityInfo
	}
	return ""
}

// FilterBySeverity keeps anomalies matching sev, preserving order.
func FilterBySeverity(anomalies []api.Anomaly, sev api.Severity) []api.Anomaly {
	out := make([]api.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

// Timeline buckets anomalies into per-day severity counts for the `days`
// days ending at end (inclusive). Days without anomalies appear with zero
// counts. Output is ordered by date ascending.
func Timeline(anomalies []api.Anomaly, days int, end time.Time) []api.TimelineDay {
	if days <= 0 {
		return nil
	}

	byDate := make(map[string]*api.TimelineDay, days)
	timeline := make([]api.TimelineDay, days)
	for i := 0; i < days; i++ {
		date := end.AddDate(0, 0, i-days+1).Format(api.DateLayout)
		timeline[i] = api.TimelineDay{Date: date}
		byDate[date] = &timeline[i]
	}

	for _, a := range anomalies {
		day, ok := byDate[a.Date]
		if !ok {
			continue
		}
		switch a.Severity {
		case api.SeverityCritical:
			day.Critical++
		case api.SeverityWarning:
			day.Warning++
		case api.SeverityInfo:
			day.Info++
		}
		day.Total++
	}
	return timeline
}

func describe(m api.Metric, high bool, value float64, b api.Baseline, consecutiveDays int) string {
	direction := "below"
	if high {
		direction = "above"
	}

	var desc string
	if b.Mean != 0 {
		deviation := math.Abs((value - b.Mean) / b.Mean * 100)
		desc = fmt.Sprintf("%s is %.1f%% %s your baseline of %.1f %s. Current: %.1f %s.",
			capitalize(m.DisplayName()), deviation, direction, b.Mean, m.Unit(), value, m.Unit())
	} else {
		// Percent deviation is undefined against a zero baseline.
		desc = fmt.Sprintf("%s is %s your baseline of %.1f %s. Current: %.1f %s.",
			capitalize(m.DisplayName()), direction, b.Mean, m.Unit(), value, m.Unit())
	}

	if consecutiveDays > 1 {
		desc += fmt.Sprintf(" Persisted for %d days.", consecutiveDays)
	}
	return desc
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
