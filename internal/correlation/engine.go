package correlation

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/stats"
)

// Pair is one candidate relationship to test. Lag 1 pairs metric A on day t
// with metric B on day t+1.
type Pair struct {
	A   api.Metric
	B   api.Metric
	Lag int
}

// DefaultPairs returns the curated candidate set. The list is fixed: free
// pairwise search over all metrics produces spurious hits at these sample
// sizes.
func DefaultPairs() []Pair {
	return []Pair{
		{api.MetricSleepDuration, api.MetricEnergyLevel, 0},
		{api.MetricSleepQuality, api.MetricStressScore, 0},
		{api.MetricSteps, api.MetricSleepQuality, 0},
		{api.MetricStressScore, api.MetricRestingHR, 0},
		{api.MetricHRV, api.MetricEnergyLevel, 0},
		{api.MetricSleepDuration, api.MetricSteps, 1},
		{api.MetricSleepDuration, api.MetricEnergyLevel, 1},
		{api.MetricSleepQuality, api.MetricStressScore, 1},
		{api.MetricStressScore, api.MetricSleepQuality, 1},
	}
}

// Config controls correlation discovery.
type Config struct {
	// MinPairs is the minimum number of aligned observations required
	// before a pair is scored at all.
	MinPairs int

	// MinCoefficient is the reporting floor on |r|.
	MinCoefficient float64

	// Pairs is the candidate set; nil means DefaultPairs.
	Pairs []Pair
}

// DefaultConfig returns the standard discovery parameters.
func DefaultConfig() Config {
	return Config{
		MinPairs:       10,
		MinCoefficient: 0.3,
	}
}

var correlationNamespace = uuid.MustParse("4d8e6b2a-1c9f-4e3b-8a7d-5f2e1b0c9d8e")

func correlationID(p Pair) string {
	key := fmt.Sprintf("%s|%s|%d", p.A, p.B, p.Lag)
	return uuid.NewSHA1(correlationNamespace, []byte(key)).String()
}

// Discover scores every candidate pair over the history and returns the
// relationships worth reporting, strongest first. Days where either side is
// missing are dropped from that pair's alignment. Ties on |r| prefer the
// larger sample; remaining ties keep candidate order, so identical inputs
// always produce identical output.
func Discover(history []api.UnifiedRecord, cfg Config) []api.Correlation {
	pairs := cfg.Pairs
	if pairs == nil {
		pairs = DefaultPairs()
	}

	var out []api.Correlation
	for _, p := range pairs {
		x, y := alignSeries(history, p)
		if len(x) < cfg.MinPairs {
			continue
		}

		r := stats.Pearson(x, y)
		if math.Abs(r) < cfg.MinCoefficient {
			continue
		}

		confidence := math.Min(1.0, float64(len(x))/60.0)
		out = append(out, api.Correlation{
			ID:          correlationID(p),
			MetricA:     p.A,
			MetricB:     p.B,
			Coefficient: round3(r),
			Confidence:  stats.Round2(confidence),
			SampleSize:  len(x),
			LagDays:     p.Lag,
			Description: describePair(p, r),
			InsightText: insightText(p, r),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Coefficient), math.Abs(out[j].Coefficient)
		if ai != aj {
			return ai > aj
		}
		return out[i].SampleSize > out[j].SampleSize
	})
	return out
}

// alignSeries pairs metric A on day t with metric B on day t+lag, keeping
// only days where both sides were measured.
func alignSeries(history []api.UnifiedRecord, p Pair) (x, y []float64) {
	bByDate := make(map[string]float64, len(history))
	for i := range history {
		if v, ok := history[i].Value(p.B); ok {
			bByDate[history[i].Date] = v
		}
	}

	for i := range history {
		va, ok := history[i].Value(p.A)
		if !ok {
			continue
		}
		t, err := history[i].Time()
		if err != nil {
			continue
		}
		target := t.AddDate(0, 0, p.Lag).Format(api.DateLayout)
		if vb, ok := bByDate[target]; ok {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}

func describePair(p Pair, r float64) string {
	strength := "moderate"
	if math.Abs(r) >= 0.6 {
		strength = "strong"
	}
	direction := "negative"
	if r > 0 {
		direction = "positive"
	}
	desc := fmt.Sprintf("A %s %s correlation between %s and %s",
		strength, direction, p.A.DisplayName(), p.B.DisplayName())
	if p.Lag > 0 {
		desc += " (next-day effect)"
	}
	return desc
}

func insightText(p Pair, r float64) string {
	nameA, nameB := p.A.DisplayName(), p.B.DisplayName()
	if r > 0 {
		if p.Lag == 0 {
			return fmt.Sprintf("When your %s is higher, your %s tends to be higher too.", nameA, nameB)
		}
		return fmt.Sprintf("Higher %s today correlates with higher %s tomorrow.", nameA, nameB)
	}
	if p.Lag == 0 {
		return fmt.Sprintf("When your %s is higher, your %s tends to be lower.", nameA, nameB)
	}
	return fmt.Sprintf("Higher %s today correlates with lower %s tomorrow.", nameA, nameB)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
