package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/engine"
	"github.com/vitalhub/vitals/internal/store"
)

var (
	dataFile string
	asJSON   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vitalsctl",
		Short: "Offline analysis over a health records file",
		Long: `vitalsctl runs the analytical pipeline against a JSON records file
without a running server: baselines, anomalies, correlations, and what-if
simulations.`,
	}

	rootCmd.PersistentFlags().StringVarP(&dataFile, "file", "f", "data/records.json", "Records JSON file (a list, or an object with a 'records' key)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Emit raw JSON instead of tables")

	rootCmd.AddCommand(baselinesCmd())
	rootCmd.AddCommand(anomaliesCmd())
	rootCmd.AddCommand(correlationsCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(scoreCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEngine builds an in-memory engine from the records file.
func loadEngine(ctx context.Context) (*engine.Engine, error) {
	recs, err := loadRecords(dataFile)
	if err != nil {
		return nil, err
	}

	st := store.NewMemoryStore("")
	dupes := 0
	for _, r := range recs {
		if err := st.Append(ctx, r); err != nil {
			if err == store.ErrDuplicateDate {
				dupes++
				continue
			}
			return nil, fmt.Errorf("record %s: %w", r.Date, err)
		}
	}
	if dupes > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d duplicate dates\n", dupes)
	}

	return engine.New(ctx, st, nil, nil, engine.DefaultConfig())
}

// loadRecords accepts either a bare list of records or an object wrapping
// the list under "records".
func loadRecords(path string) ([]api.UnifiedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var list []api.UnifiedRecord
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Records []api.UnifiedRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid records file %s: %w", path, err)
	}
	if wrapped.Records == nil {
		return nil, fmt.Errorf("%s: expected a list of records or an object with a 'records' key", path)
	}
	return wrapped.Records, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func baselinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baselines",
		Short: "Show personal baselines per metric",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			baselines := eng.Baselines()
			if asJSON {
				return printJSON(baselines)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METRIC\tMEAN\tSTD\tNORMAL RANGE\tSAMPLES")
			for _, b := range baselines {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f – %.2f\t%d\n",
					b.Metric, b.Mean, b.Std, b.MinNormal, b.MaxNormal, b.SampleSize)
			}
			return w.Flush()
		},
	}
}

func anomaliesCmd() *cobra.Command {
	var severity string
	var limit int

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Show detected anomalies, most severe first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sev := api.Severity(severity)
			if severity != "" && !sev.Valid() {
				return fmt.Errorf("invalid severity %q", severity)
			}
			eng, err := loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			anoms := eng.Anomalies(sev, limit)
			if asJSON {
				return printJSON(anoms)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tMETRIC\tSEVERITY\tZ\tSTREAK\tDESCRIPTION")
			for _, a := range anoms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%+.2f\t%d\t%s\n",
					a.Date, a.Metric, a.Severity, a.ZScore, a.ConsecutiveDays, a.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (info, warning, critical)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum anomalies to show (0 = all)")
	return cmd
}

func correlationsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "correlations",
		Short: "Show discovered metric correlations, strongest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			corrs := eng.Correlations(limit)
			if asJSON {
				return printJSON(corrs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAIR\tLAG\tR\tCONF\tN\tINSIGHT")
			for _, c := range corrs {
				fmt.Fprintf(w, "%s → %s\t%d\t%+.3f\t%.2f\t%d\t%s\n",
					c.MetricA, c.MetricB, c.LagDays, c.Coefficient, c.Confidence, c.SampleSize, c.InsightText)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum correlations to show (0 = all)")
	return cmd
}

func simulateCmd() *cobra.Command {
	var sleepDelta, stepsDelta, caloriesDelta float64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a what-if simulation against the fitted models",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.Simulate(api.SimulationDeltas{
				SleepHours: sleepDelta,
				Steps:      stepsDelta,
				CaloriesIn: caloriesDelta,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(res)
			}

			if !res.ModelInfo.Available {
				fmt.Printf("Model unavailable (%d training rows); prediction is no-change.\n",
					res.ModelInfo.TrainingRows)
			}
			fmt.Printf("Energy: %.2f → %.2f (%+.2f)\n",
				res.Baseline.Energy, res.Counterfactual.Energy, res.Delta.Energy)
			fmt.Printf("Stress: %.2f → %.2f (%+.2f)\n",
				res.Baseline.Stress, res.Counterfactual.Stress, res.Delta.Stress)
			if len(res.Explanation.Energy) > 0 {
				fmt.Println("Energy contributions:")
				for f, c := range res.Explanation.Energy {
					fmt.Printf("  %s: %+.2f\n", f, c)
				}
			}
			if !res.Drift.InDomain {
				fmt.Printf("Warning: %s\n", res.Drift.Message)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&sleepDelta, "sleep-hours", 0, "Sleep hours delta")
	cmd.Flags().Float64Var(&stepsDelta, "steps", 0, "Steps delta")
	cmd.Flags().Float64Var(&caloriesDelta, "calories-in", 0, "Calorie intake delta")
	return cmd
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Show the overall health score and its components",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			score := eng.HealthScore()
			if asJSON {
				return printJSON(score)
			}

			fmt.Printf("Overall: %d/100\n", score.OverallScore)
			for _, c := range score.Components {
				fmt.Printf("  %-14s %3.0f (weight %.2f)\n", c.Category, c.Score, c.Weight)
			}
			return nil
		},
	}
}
