package counterfactual

import (
	"math"
	"time"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/stats"
)

// Feature is one user-adjustable what-if input.
type Feature string

const (
	FeatureSleepHours Feature = "sleep_hours"
	FeatureSteps      Feature = "steps"
	FeatureCaloriesIn Feature = "calories_in"
)

// Features returns the adjustable inputs in stable order.
func Features() []Feature {
	return []Feature{FeatureSleepHours, FeatureSteps, FeatureCaloriesIn}
}

func featureMetric(f Feature) api.Metric {
	switch f {
	case FeatureSleepHours:
		return api.MetricSleepDuration
	case FeatureSteps:
		return api.MetricSteps
	case FeatureCaloriesIn:
		return api.MetricCaloriesIn
	}
	return ""
}

// Row is one training observation: day-over-day input changes and the
// matching changes in the two targets.
type Row struct {
	X           [3]float64 // feature deltas, Features() order
	EnergyDelta float64
	StressDelta float64
}

// BuildRows derives training rows from history. A row needs two consecutive
// calendar days that both measured every feature plus energy and stress;
// gaps and partial days contribute nothing. History must be ordered by date
// ascending.
func BuildRows(history []api.UnifiedRecord) []Row {
	needed := []api.Metric{
		api.MetricSleepDuration, api.MetricSteps, api.MetricCaloriesIn,
		api.MetricEnergyLevel, api.MetricStressScore,
	}

	var rows []Row
	for i := 1; i < len(history); i++ {
		prev, cur := &history[i-1], &history[i]

		tp, err1 := prev.Time()
		tc, err2 := cur.Time()
		if err1 != nil || err2 != nil || tc.Sub(tp) != 24*time.Hour {
			continue
		}

		vals := make(map[api.Metric][2]float64, len(needed))
		complete := true
		for _, m := range needed {
			vp, ok1 := prev.Value(m)
			vc, ok2 := cur.Value(m)
			if !ok1 || !ok2 {
				complete = false
				break
			}
			vals[m] = [2]float64{vp, vc}
		}
		if !complete {
			continue
		}

		var r Row
		for j, f := range Features() {
			v := vals[featureMetric(f)]
			r.X[j] = v[1] - v[0]
		}
		e := vals[api.MetricEnergyLevel]
		s := vals[api.MetricStressScore]
		r.EnergyDelta = e[1] - e[0]
		r.StressDelta = s[1] - s[0]
		rows = append(rows, r)
	}
	return rows
}

// Model is a linear response model over feature deltas. The fit runs through
// the origin, so an all-zero input predicts exactly zero change and the
// intercept is always 0. Coefficients of degenerate features are 0.
type Model struct {
	Target       string              `json:"target"`
	Coefficients map[Feature]float64 `json:"coefficients"`
	Intercept    float64             `json:"intercept"`
	ResidualStd  float64             `json:"residual_std"`
	RSquared     float64             `json:"r_squared"`
	TrainingRows int                 `json:"training_rows"`
	FeatureMeans map[Feature]float64 `json:"feature_means"`
	FeatureStds  map[Feature]float64 `json:"feature_stds"`
	Usable       bool                `json:"usable"`
}

// FitConfig controls model training.
type FitConfig struct {
	// MinRows is the minimum number of training rows for a usable model.
	MinRows int
}

// DefaultFitConfig returns the standard training parameters.
func DefaultFitConfig() FitConfig {
	return FitConfig{MinRows: 10}
}

// Target selectors for Fit.
const (
	TargetEnergy = "energy"
	TargetStress = "stress"
)

// Fit trains a through-origin least-squares model for the given target.
// With fewer than MinRows rows, or when every feature is degenerate, the
// returned model has Usable == false and callers must fall back to
// "no change" predictions rather than guessing.
func Fit(rows []Row, target string, cfg FitConfig) *Model {
	m := &Model{
		Target:       target,
		Coefficients: make(map[Feature]float64, 3),
		FeatureMeans: make(map[Feature]float64, 3),
		FeatureStds:  make(map[Feature]float64, 3),
		TrainingRows: len(rows),
	}
	for _, f := range Features() {
		m.Coefficients[f] = 0
	}

	feats := Features()
	for j, f := range feats {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = rows[i].X[j]
		}
		m.FeatureMeans[f] = stats.Mean(col)
		m.FeatureStds[f] = stats.SampleStd(col)
	}

	if len(rows) < cfg.MinRows {
		return m
	}

	y := make([]float64, len(rows))
	for i := range rows {
		switch target {
		case TargetStress:
			y[i] = rows[i].StressDelta
		default:
			y[i] = rows[i].EnergyDelta
		}
	}

	// A feature whose deltas carry no signal cannot be attributed a
	// coefficient; exclude it from the solve so the normal equations stay
	// non-singular.
	var active []int
	for j := range feats {
		ss := 0.0
		for i := range rows {
			ss += rows[i].X[j] * rows[i].X[j]
		}
		if ss > 1e-12 {
			active = append(active, j)
		}
	}
	if len(active) == 0 {
		return m
	}

	// Normal equations for the through-origin fit: (XᵀX) β = Xᵀy over the
	// active columns only.
	k := len(active)
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for a := 0; a < k; a++ {
		xtx[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			sum := 0.0
			for i := range rows {
				sum += rows[i].X[active[a]] * rows[i].X[active[b]]
			}
			xtx[a][b] = sum
		}
		sum := 0.0
		for i := range rows {
			sum += rows[i].X[active[a]] * y[i]
		}
		xty[a] = sum
	}

	beta, ok := solve(xtx, xty)
	if !ok {
		return m
	}
	for a, j := range active {
		m.Coefficients[feats[j]] = beta[a]
	}

	// In-sample fit quality and residual spread.
	residuals := make([]float64, len(rows))
	for i := range rows {
		pred := 0.0
		for j, f := range feats {
			pred += m.Coefficients[f] * rows[i].X[j]
		}
		residuals[i] = y[i] - pred
	}
	m.ResidualStd = stats.SampleStd(residuals)

	meanY := stats.Mean(y)
	ssTot, ssRes := 0.0, 0.0
	for i := range y {
		d := y[i] - meanY
		ssTot += d * d
		ssRes += residuals[i] * residuals[i]
	}
	if ssTot > 0 {
		m.RSquared = 1 - ssRes/ssTot
	}

	m.Usable = true
	return m
}

// solve performs Gaussian elimination with partial pivoting. Returns false
// on a singular system.
func solve(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	// Work on copies; callers keep their matrices.
	m := make([][]float64, n)
	for i := range a {
		m[i] = append([]float64(nil), a[i]...)
	}
	v := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c < n; c++ {
				m[r][c] -= factor * m[col][c]
			}
			v[r] -= factor * v[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := v[i]
		for c := i + 1; c < n; c++ {
			sum -= m[i][c] * x[c]
		}
		x[i] = sum / m[i][i]
	}
	return x, true
}
