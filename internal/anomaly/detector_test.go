package anomaly

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/baseline"
)

func sleepBaseline(mean, std float64) map[api.Metric]api.Baseline {
	return map[api.Metric]api.Baseline{
		api.MetricSleepDuration: {
			Metric:    api.MetricSleepDuration,
			Mean:      mean,
			Std:       std,
			MinNormal: mean - 1.5*std,
			MaxNormal: mean + 1.5*std,
		},
	}
}

func sleepHistory(values ...float64) []api.UnifiedRecord {
	recs := make([]api.UnifiedRecord, len(values))
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		recs[i] = api.UnifiedRecord{
			Date:  start.AddDate(0, 0, i).Format(api.DateLayout),
			Sleep: &api.Sleep{DurationHours: api.Float(v)},
		}
	}
	return recs
}

func TestDetectSeverityBuckets(t *testing.T) {
	bl := sleepBaseline(8, 1)
	cfg := DefaultConfig()

	tests := []struct {
		value float64
		want  api.Severity
	}{
		{8.0, ""},                      // z = 0
		{9.4, ""},                      // z = 1.4, below info
		{9.6, api.SeverityInfo},        // z = 1.6
		{5.8, api.SeverityWarning},     // z = -2.2
		{11.5, api.SeverityCritical},   // z = 3.5
		{4.5, api.SeverityCritical},    // z = -3.5
	}
	for _, tc := range tests {
		got := Detect(sleepHistory(tc.value), bl, cfg)
		if tc.want == "" {
			if len(got) != 0 {
				t.Errorf("value %v: expected no anomaly, got %+v", tc.value, got)
			}
			continue
		}
		if len(got) != 1 {
			t.Fatalf("value %v: expected 1 anomaly, got %d", tc.value, len(got))
		}
		if got[0].Severity != tc.want {
			t.Errorf("value %v: expected %s, got %s", tc.value, tc.want, got[0].Severity)
		}
	}
}

func TestDetectSeverityMonotonicInZ(t *testing.T) {
	bl := sleepBaseline(8, 1)
	cfg := DefaultConfig()

	prevRank := 0
	for z := 0.0; z <= 5.0; z += 0.1 {
		got := Detect(sleepHistory(8+z), bl, cfg)
		rank := 0
		if len(got) == 1 {
			rank = got[0].Severity.Rank()
		}
		if rank < prevRank {
			t.Fatalf("severity rank decreased from %d to %d at z=%.1f", prevRank, rank, z)
		}
		prevRank = rank
	}
}

func TestDetectZeroVarianceNeverFlags(t *testing.T) {
	// A constant series yields std 0; even a wild value must not be
	// z-scored against it.
	history := sleepHistory(10, 10, 10, 10, 20)
	bl := baseline.Compute(history[:4], baseline.Config{MinSamples: 4, K: 1.5})
	if bl[api.MetricSleepDuration].Std != 0 {
		t.Fatalf("expected zero std, got %v", bl[api.MetricSleepDuration].Std)
	}

	got := Detect(history, bl, DefaultConfig())
	if len(got) != 0 {
		t.Errorf("expected no anomalies against zero-variance baseline, got %d", len(got))
	}
}

func TestDetectConstantMetricNeverFlagged(t *testing.T) {
	history := sleepHistory(8, 8, 8, 8, 8, 8, 8)
	bl := baseline.Compute(history, baseline.DefaultConfig())
	if got := Detect(history, bl, DefaultConfig()); len(got) != 0 {
		t.Errorf("constant metric flagged: %+v", got)
	}
}

func TestDetectConsecutiveDays(t *testing.T) {
	bl := sleepBaseline(8, 1)
	// Three low days, one normal, then one low again: the streak must
	// reset on the normal day.
	history := sleepHistory(5.5, 5.5, 5.5, 8.0, 5.5)

	got := Detect(history, bl, DefaultConfig())
	if len(got) != 4 {
		t.Fatalf("expected 4 anomalies, got %d", len(got))
	}

	byDate := make(map[string]api.Anomaly)
	for _, a := range got {
		byDate[a.Date] = a
	}
	wantStreak := map[string]int{
		"2025-03-01": 1,
		"2025-03-02": 2,
		"2025-03-03": 3,
		"2025-03-05": 1, // reset by the in-range day
	}
	for date, want := range wantStreak {
		a, ok := byDate[date]
		if !ok {
			t.Fatalf("missing anomaly for %s", date)
		}
		if a.ConsecutiveDays != want {
			t.Errorf("%s: expected streak %d, got %d", date, want, a.ConsecutiveDays)
		}
	}
	if !strings.Contains(byDate["2025-03-03"].Description, "Persisted for 3 days") {
		t.Errorf("expected persistence note, got %q", byDate["2025-03-03"].Description)
	}
}

func TestDetectStreakResetsOnDirectionFlip(t *testing.T) {
	bl := sleepBaseline(8, 1)
	history := sleepHistory(5.5, 5.5, 10.5)

	got := Detect(history, bl, DefaultConfig())
	if len(got) != 3 {
		t.Fatalf("expected 3 anomalies, got %d", len(got))
	}
	for _, a := range got {
		if a.Date == "2025-03-03" && a.ConsecutiveDays != 1 {
			t.Errorf("direction flip should restart streak, got %d", a.ConsecutiveDays)
		}
	}
}

func TestDetectOrdering(t *testing.T) {
	bl := sleepBaseline(8, 1)
	// info on day 1, critical on day 2, warning on day 3
	history := sleepHistory(6.2, 12.0, 5.7)

	got := Detect(history, bl, DefaultConfig())
	if len(got) != 3 {
		t.Fatalf("expected 3 anomalies, got %d", len(got))
	}
	if got[0].Severity != api.SeverityCritical || got[1].Severity != api.SeverityWarning || got[2].Severity != api.SeverityInfo {
		t.Errorf("expected severity-desc ordering, got %s %s %s", got[0].Severity, got[1].Severity, got[2].Severity)
	}
}

func TestDetectDeviationPercent(t *testing.T) {
	bl := sleepBaseline(8, 1)
	got := Detect(sleepHistory(6.0), bl, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	if math.Abs(got[0].DeviationPercent-(-25.0)) > 1e-9 {
		t.Errorf("expected deviation -25%%, got %v", got[0].DeviationPercent)
	}

	// Zero-mean baseline: percent is undefined, reported as 0, and the
	// description degrades rather than dividing by zero.
	zeroMean := sleepBaseline(0, 1)
	got = Detect(sleepHistory(2.0), zeroMean, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	if got[0].DeviationPercent != 0 {
		t.Errorf("expected 0 deviation against zero mean, got %v", got[0].DeviationPercent)
	}
}

func TestDetectIdempotent(t *testing.T) {
	bl := sleepBaseline(8, 1)
	history := sleepHistory(5.5, 5.5, 12.0, 8.0, 6.2)

	first := Detect(history, bl, DefaultConfig())
	second := Detect(history, bl, DefaultConfig())
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated detection over identical inputs must be identical")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("anomaly ID not deterministic: %s vs %s", first[i].ID, second[i].ID)
		}
	}
	t.Logf("%d anomalies reproduced byte-identically", len(first))
}

func TestFilterBySeverity(t *testing.T) {
	bl := sleepBaseline(8, 1)
	history := sleepHistory(6.2, 12.0, 5.7)
	got := Detect(history, bl, DefaultConfig())

	crits := FilterBySeverity(got, api.SeverityCritical)
	if len(crits) != 1 || crits[0].Severity != api.SeverityCritical {
		t.Errorf("expected exactly the critical anomaly, got %+v", crits)
	}
	if n := len(FilterBySeverity(got, api.SeverityWarning)); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
}

func TestTimelineZeroFilled(t *testing.T) {
	end := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	anoms := []api.Anomaly{
		{Date: "2025-03-02", Severity: api.SeverityCritical},
		{Date: "2025-03-02", Severity: api.SeverityInfo},
		{Date: "2025-03-04", Severity: api.SeverityWarning},
		{Date: "2025-02-01", Severity: api.SeverityCritical}, // outside window
	}

	days := Timeline(anoms, 5, end)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	if days[0].Date != "2025-03-01" || days[4].Date != "2025-03-05" {
		t.Errorf("window bounds wrong: %s .. %s", days[0].Date, days[4].Date)
	}
	for _, d := range days {
		switch d.Date {
		case "2025-03-02":
			if d.Critical != 1 || d.Info != 1 || d.Total != 2 {
				t.Errorf("2025-03-02 counts wrong: %+v", d)
			}
		case "2025-03-04":
			if d.Warning != 1 || d.Total != 1 {
				t.Errorf("2025-03-04 counts wrong: %+v", d)
			}
		default:
			if d.Total != 0 {
				t.Errorf("%s should be zero-filled, got %+v", d.Date, d)
			}
		}
	}
}

func TestRecommendations(t *testing.T) {
	if got := recommend(api.MetricSleepDuration, false); got != "Consider a consistent bedtime routine." {
		t.Errorf("unexpected low-sleep recommendation: %q", got)
	}
	if got := recommend(api.MetricRestingHR, true); got != "Elevated HR may indicate stress or illness." {
		t.Errorf("unexpected high-HR recommendation: %q", got)
	}
	if got := recommend(api.Metric("unknown"), true); got != defaultRecommendation {
		t.Errorf("unknown metric should get default, got %q", got)
	}
}

func TestDetectEvalWindow(t *testing.T) {
	bl := sleepBaseline(8, 1)
	values := make([]float64, 40)
	for i := range values {
		values[i] = 8
	}
	values[0] = 4 // old anomaly, outside the 30-day window
	values[39] = 4

	got := Detect(sleepHistory(values...), bl, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected only the in-window anomaly, got %d", len(got))
	}
	wantDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 39).Format(api.DateLayout)
	if got[0].Date != wantDate {
		t.Errorf("expected date %s, got %s", wantDate, got[0].Date)
	}
}
