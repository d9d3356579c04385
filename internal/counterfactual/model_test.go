package counterfactual

import (
	"math"
	"testing"
	"time"

	"github.com/vitalhub/vitals/internal/api"
)

// sleepRows builds n rows where only sleep varies and the energy response
// is exactly coef × sleep delta.
func sleepRows(n int, coef float64) []Row {
	rows := make([]Row, n)
	for i := range rows {
		d := float64(i%3) - 1 // -1, 0, 1 cycling
		rows[i] = Row{
			X:           [3]float64{d, 0, 0},
			EnergyDelta: coef * d,
			StressDelta: -coef * d,
		}
	}
	return rows
}

func TestFitRecoversExactCoefficient(t *testing.T) {
	m := Fit(sleepRows(12, 5.0), TargetEnergy, DefaultFitConfig())
	if !m.Usable {
		t.Fatal("expected usable model")
	}
	if math.Abs(m.Coefficients[FeatureSleepHours]-5.0) > 1e-9 {
		t.Errorf("expected sleep coefficient 5.0, got %v", m.Coefficients[FeatureSleepHours])
	}
	if m.Intercept != 0 {
		t.Errorf("intercept must be 0, got %v", m.Intercept)
	}
	// Features that never moved get zero coefficients, not arbitrary ones.
	if m.Coefficients[FeatureSteps] != 0 || m.Coefficients[FeatureCaloriesIn] != 0 {
		t.Errorf("degenerate features must have zero coefficients: %+v", m.Coefficients)
	}
	if math.Abs(m.RSquared-1.0) > 1e-9 {
		t.Errorf("noise-free fit should have R²=1, got %v", m.RSquared)
	}
	if m.ResidualStd > 1e-9 {
		t.Errorf("noise-free fit should have zero residual std, got %v", m.ResidualStd)
	}
}

func TestFitInsufficientRows(t *testing.T) {
	m := Fit(sleepRows(9, 5.0), TargetEnergy, DefaultFitConfig())
	if m.Usable {
		t.Error("9 rows with MinRows 10 must be unusable")
	}
	if m.TrainingRows != 9 {
		t.Errorf("expected TrainingRows 9, got %d", m.TrainingRows)
	}
}

func TestFitAllDegenerate(t *testing.T) {
	rows := make([]Row, 15)
	for i := range rows {
		rows[i] = Row{EnergyDelta: 1} // inputs never move
	}
	m := Fit(rows, TargetEnergy, DefaultFitConfig())
	if m.Usable {
		t.Error("all-degenerate features must yield an unusable model")
	}
}

func TestFitTwoFeatures(t *testing.T) {
	// energy delta = 2·sleep + 0.001·steps, both varying independently.
	var rows []Row
	for i := 0; i < 20; i++ {
		s := float64(i%3) - 1
		st := float64((i%5)-2) * 1000
		rows = append(rows, Row{
			X:           [3]float64{s, st, 0},
			EnergyDelta: 2*s + 0.001*st,
		})
	}
	m := Fit(rows, TargetEnergy, DefaultFitConfig())
	if !m.Usable {
		t.Fatal("expected usable model")
	}
	if math.Abs(m.Coefficients[FeatureSleepHours]-2.0) > 1e-6 {
		t.Errorf("expected sleep coefficient 2.0, got %v", m.Coefficients[FeatureSleepHours])
	}
	if math.Abs(m.Coefficients[FeatureSteps]-0.001) > 1e-9 {
		t.Errorf("expected steps coefficient 0.001, got %v", m.Coefficients[FeatureSteps])
	}
}

func TestBuildRowsConsecutiveDaysOnly(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	full := func(day int, sleep, steps, cal, energy, stress float64) api.UnifiedRecord {
		return api.UnifiedRecord{
			Date:      start.AddDate(0, 0, day).Format(api.DateLayout),
			Sleep:     &api.Sleep{DurationHours: api.Float(sleep)},
			Activity:  &api.Activity{Steps: api.Float(steps)},
			Nutrition: &api.Nutrition{Calories: api.Float(cal)},
			Wellness:  &api.Wellness{EnergyLevel: api.Float(energy), StressScore: api.Float(stress)},
		}
	}

	history := []api.UnifiedRecord{
		full(0, 7, 8000, 2000, 6, 4),
		full(1, 8, 9000, 2100, 7, 3), // row: +1 sleep, +1000 steps, +100 cal → +1 energy, -1 stress
		full(3, 7, 8000, 2000, 6, 4), // gap: day 2 missing, no row against day 1
		full(4, 7, 8000, 2000, 6, 4), // row with all-zero deltas
	}

	rows := BuildRows(history)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].X != [3]float64{1, 1000, 100} {
		t.Errorf("unexpected feature deltas: %v", rows[0].X)
	}
	if rows[0].EnergyDelta != 1 || rows[0].StressDelta != -1 {
		t.Errorf("unexpected target deltas: %v %v", rows[0].EnergyDelta, rows[0].StressDelta)
	}
	if rows[1].X != [3]float64{0, 0, 0} {
		t.Errorf("expected zero-delta row, got %v", rows[1].X)
	}
}

func TestBuildRowsSkipsPartialDays(t *testing.T) {
	history := []api.UnifiedRecord{
		{
			Date:      "2025-04-01",
			Sleep:     &api.Sleep{DurationHours: api.Float(7)},
			Activity:  &api.Activity{Steps: api.Float(8000)},
			Nutrition: &api.Nutrition{Calories: api.Float(2000)},
			Wellness:  &api.Wellness{EnergyLevel: api.Float(6), StressScore: api.Float(4)},
		},
		{
			Date:     "2025-04-02",
			Sleep:    &api.Sleep{DurationHours: api.Float(8)},
			Wellness: &api.Wellness{EnergyLevel: api.Float(7), StressScore: api.Float(3)},
			// steps and calories missing
		},
	}
	if rows := BuildRows(history); len(rows) != 0 {
		t.Errorf("partial day must not produce a row, got %d", len(rows))
	}
}
