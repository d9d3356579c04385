package correlation

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/vitalhub/vitals/internal/api"
)

// buildHistory creates n days where sleep duration follows f(i) and energy
// level follows g(i).
func buildHistory(n int, f, g func(i int) float64) []api.UnifiedRecord {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]api.UnifiedRecord, n)
	for i := 0; i < n; i++ {
		recs[i] = api.UnifiedRecord{
			Date:     start.AddDate(0, 0, i).Format(api.DateLayout),
			Sleep:    &api.Sleep{DurationHours: api.Float(f(i))},
			Wellness: &api.Wellness{EnergyLevel: api.Float(g(i))},
		}
	}
	return recs
}

func findPair(cs []api.Correlation, a, b api.Metric, lag int) *api.Correlation {
	for i := range cs {
		if cs[i].MetricA == a && cs[i].MetricB == b && cs[i].LagDays == lag {
			return &cs[i]
		}
	}
	return nil
}

func TestDiscoverPerfectPositive(t *testing.T) {
	// energy = sleep: r must be exactly 1 at lag 0.
	history := buildHistory(30,
		func(i int) float64 { return 6 + float64(i%4) },
		func(i int) float64 { return 6 + float64(i%4) },
	)

	got := Discover(history, DefaultConfig())
	c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 0)
	if c == nil {
		t.Fatal("expected sleep→energy lag-0 correlation")
	}
	if c.Coefficient != 1.0 {
		t.Errorf("expected r=1.0, got %v", c.Coefficient)
	}
	if c.SampleSize != 30 {
		t.Errorf("expected 30 aligned samples, got %d", c.SampleSize)
	}
	if math.Abs(c.Confidence-0.5) > 1e-9 {
		t.Errorf("expected confidence 0.5 (30/60), got %v", c.Confidence)
	}
	if c.Description != "A strong positive correlation between sleep duration and energy level" {
		t.Errorf("unexpected description: %q", c.Description)
	}
	if c.InsightText != "When your sleep duration is higher, your energy level tends to be higher too." {
		t.Errorf("unexpected insight: %q", c.InsightText)
	}
}

func TestDiscoverNegativeAndBounds(t *testing.T) {
	history := buildHistory(30,
		func(i int) float64 { return 6 + float64(i%4) },
		func(i int) float64 { return 10 - float64(i%4) },
	)

	got := Discover(history, DefaultConfig())
	for _, c := range got {
		if c.Coefficient < -1 || c.Coefficient > 1 {
			t.Errorf("coefficient out of bounds: %v", c.Coefficient)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Errorf("confidence out of bounds: %v", c.Confidence)
		}
	}
	c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 0)
	if c == nil {
		t.Fatal("expected lag-0 correlation")
	}
	if c.Coefficient != -1.0 {
		t.Errorf("expected r=-1.0, got %v", c.Coefficient)
	}
	if c.InsightText != "When your sleep duration is higher, your energy level tends to be lower." {
		t.Errorf("unexpected insight: %q", c.InsightText)
	}
}

func TestDiscoverLagAlignment(t *testing.T) {
	// Energy on day i+1 equals sleep on day i; lag-1 must be perfect while
	// lag 0 is uncorrelated noise-free shifted data.
	vals := []float64{6, 9, 5, 8, 4, 7, 6, 9, 5, 8, 4, 7, 6, 9, 5, 8, 4, 7, 6, 9}
	history := buildHistory(len(vals),
		func(i int) float64 { return vals[i] },
		func(i int) float64 {
			if i == 0 {
				return 5
			}
			return vals[i-1]
		},
	)

	got := Discover(history, DefaultConfig())
	c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 1)
	if c == nil {
		t.Fatal("expected lag-1 correlation")
	}
	if c.Coefficient != 1.0 {
		t.Errorf("expected lag-1 r=1.0, got %v", c.Coefficient)
	}
	// 20 days → 19 aligned lag-1 observations.
	if c.SampleSize != 19 {
		t.Errorf("expected 19 aligned samples, got %d", c.SampleSize)
	}
	if c.Description != "A strong positive correlation between sleep duration and energy level (next-day effect)" {
		t.Errorf("unexpected description: %q", c.Description)
	}
	if c.InsightText != "Higher sleep duration today correlates with higher energy level tomorrow." {
		t.Errorf("unexpected insight: %q", c.InsightText)
	}
}

func TestDiscoverMinPairs(t *testing.T) {
	// 9 aligned observations with MinPairs 10 → nothing reported, even for
	// a perfect relationship.
	history := buildHistory(9,
		func(i int) float64 { return float64(i) },
		func(i int) float64 { return float64(i) },
	)
	if got := Discover(history, DefaultConfig()); len(got) != 0 {
		t.Errorf("expected no correlations below MinPairs, got %d", len(got))
	}
}

func TestDiscoverMinCoefficient(t *testing.T) {
	// Alternating energy independent of monotone sleep: |r| near zero.
	history := buildHistory(30,
		func(i int) float64 { return float64(i) },
		func(i int) float64 { return float64(i % 2) },
	)
	got := Discover(history, DefaultConfig())
	if c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 0); c != nil {
		t.Errorf("weak correlation should not be reported: r=%v", c.Coefficient)
	}
}

func TestDiscoverDropsMissingDays(t *testing.T) {
	history := buildHistory(20,
		func(i int) float64 { return 6 + float64(i%4) },
		func(i int) float64 { return 6 + float64(i%4) },
	)
	// Remove energy on five days; alignment must shrink, not zero-fill.
	for i := 0; i < 5; i++ {
		history[i*2].Wellness = nil
	}

	got := Discover(history, DefaultConfig())
	c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 0)
	if c == nil {
		t.Fatal("expected correlation over remaining days")
	}
	if c.SampleSize != 15 {
		t.Errorf("expected 15 aligned samples, got %d", c.SampleSize)
	}
	if c.Coefficient != 1.0 {
		t.Errorf("missing days must not distort r: got %v", c.Coefficient)
	}
}

func TestDiscoverZeroVarianceSeries(t *testing.T) {
	history := buildHistory(30,
		func(i int) float64 { return 7 }, // constant
		func(i int) float64 { return 6 + float64(i%4) },
	)
	got := Discover(history, DefaultConfig())
	if c := findPair(got, api.MetricSleepDuration, api.MetricEnergyLevel, 0); c != nil {
		t.Errorf("constant series must yield no correlation, got r=%v", c.Coefficient)
	}
}

func TestDiscoverDeterministicOrderAndIDs(t *testing.T) {
	history := buildHistory(40,
		func(i int) float64 { return 6 + float64(i%4) },
		func(i int) float64 { return 6 + float64(i%4) },
	)

	first := Discover(history, DefaultConfig())
	second := Discover(history, DefaultConfig())
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated discovery over identical inputs must be identical")
	}
	for i := 1; i < len(first); i++ {
		if math.Abs(first[i].Coefficient) > math.Abs(first[i-1].Coefficient) {
			t.Errorf("ranking not descending at %d: %v after %v",
				i, first[i].Coefficient, first[i-1].Coefficient)
		}
	}
	t.Logf("%d correlations, strongest |r|=%v", len(first), math.Abs(first[0].Coefficient))
}
