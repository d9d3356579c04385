package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitalhub/vitals/internal/anomaly"
	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/baseline"
	"github.com/vitalhub/vitals/internal/correlation"
	"github.com/vitalhub/vitals/internal/counterfactual"
	"github.com/vitalhub/vitals/internal/metrics"
	"github.com/vitalhub/vitals/internal/simcache"
	"github.com/vitalhub/vitals/internal/store"
	"github.com/vitalhub/vitals/internal/wal"
	"github.com/vitalhub/vitals/pkg/otel"
)

const tracerName = "vitals-engine"

// minHistory is the record count below which no analysis runs at all.
const minHistory = 14

// Snapshot is one immutable analytical state: every derived artifact built
// from the same record history. Readers take the whole snapshot atomically
// and never observe anomalies from one rebuild next to baselines from
// another.
type Snapshot struct {
	Version      uint64
	History      []api.UnifiedRecord
	Baselines    map[api.Metric]api.Baseline
	Anomalies    []api.Anomaly
	Correlations []api.Correlation
	EnergyModel  *counterfactual.Model
	StressModel  *counterfactual.Model

	// BaselineTargets are the most recent observed energy and stress,
	// the starting point for what-if predictions.
	BaselineTargets api.TargetValues
	BaselineDate    string

	BuiltAt time.Time
}

// Config bundles the analytical parameters of one engine.
type Config struct {
	Baseline baseline.Config
	Anomaly  anomaly.Config
	Corr     correlation.Config
	Fit      counterfactual.FitConfig
	Drift    counterfactual.DriftConfig

	// SimCacheSize bounds the per-snapshot simulation cache.
	SimCacheSize int
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		Baseline:     baseline.DefaultConfig(),
		Anomaly:      anomaly.DefaultConfig(),
		Corr:         correlation.DefaultConfig(),
		Fit:          counterfactual.DefaultFitConfig(),
		Drift:        counterfactual.DefaultDriftConfig(),
		SimCacheSize: 256,
	}
}

// Engine owns the record store and the current analytical snapshot. Reads
// are lock-free via an atomic pointer; only Ingest and Rebuild take the
// rebuild lock, so writers serialize while readers keep flowing.
type Engine struct {
	store   store.Store
	journal *wal.Journal // optional
	cfg     Config
	met     *metrics.Metrics // optional

	rebuildMu sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
	version   atomic.Uint64

	simCache *simcache.Cache
}

// New creates an engine over the given store and builds the initial
// snapshot. journal and met may be nil.
func New(ctx context.Context, st store.Store, journal *wal.Journal, met *metrics.Metrics, cfg Config) (*Engine, error) {
	cache, err := simcache.New(cfg.SimCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:    st,
		journal:  journal,
		cfg:      cfg,
		met:      met,
		simCache: cache,
	}
	if err := e.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("initial snapshot build failed: %w", err)
	}
	return e, nil
}

// Current returns the live snapshot. Never nil after New succeeds.
func (e *Engine) Current() *Snapshot {
	return e.snapshot.Load()
}

// Ingest journals, stores, and folds one record into a fresh snapshot.
// Duplicate dates surface store.ErrDuplicateDate without touching the
// snapshot. The journal write happens before the store write: on a crash in
// between, replay re-applies the record and the store's first-write-wins
// makes that harmless.
func (e *Engine) Ingest(ctx context.Context, rec api.UnifiedRecord) error {
	ctx, span := otel.StartSpan(ctx, tracerName, "engine.Ingest",
		otel.AttrRecordDate.String(rec.Date))
	defer span.End()

	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if e.journal != nil {
		if err := e.journal.Append(rec); err != nil {
			if e.met != nil {
				e.met.JournalErrors.Inc()
			}
			otel.RecordError(span, err, "journal append failed")
			return fmt.Errorf("journal append failed: %w", err)
		}
	}

	if err := e.store.Append(ctx, rec); err != nil {
		if e.met != nil {
			if err == store.ErrDuplicateDate {
				e.met.DuplicateRecords.Inc()
			} else {
				e.met.IngestErrors.Inc()
			}
		}
		otel.RecordError(span, err, "store append failed")
		return err
	}
	if e.met != nil {
		e.met.RecordsIngested.Inc()
	}

	return e.rebuildLocked(ctx)
}

// Rebuild recomputes the snapshot from the store and swaps it in.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, tracerName, "engine.Rebuild")
	defer span.End()

	start := time.Now()

	history, err := e.store.List(ctx)
	if err != nil {
		otel.RecordError(span, err, "store list failed")
		return fmt.Errorf("failed to list records: %w", err)
	}

	snap := e.buildSnapshot(history)
	e.snapshot.Store(snap)
	span.SetAttributes(otel.SnapshotAttributes(snap.Version, len(snap.History), len(snap.Anomalies))...)

	if e.met != nil {
		e.met.SnapshotRebuilds.Inc()
		e.met.RebuildDuration.Observe(time.Since(start).Seconds())
		counts := map[api.Severity]int{}
		for _, a := range snap.Anomalies {
			counts[a.Severity]++
		}
		for _, sev := range []api.Severity{api.SeverityInfo, api.SeverityWarning, api.SeverityCritical} {
			e.met.AnomaliesDetected.WithLabelValues(string(sev)).Set(float64(counts[sev]))
		}
		e.met.CorrelationsDiscovered.Set(float64(len(snap.Correlations)))
	}
	return nil
}

// buildSnapshot derives every analytical artifact from one history. With
// fewer than minHistory records everything stays empty: short histories get
// no verdicts, not noisy ones.
func (e *Engine) buildSnapshot(history []api.UnifiedRecord) *Snapshot {
	snap := &Snapshot{
		Version: e.version.Add(1),
		History: history,
		BuiltAt: time.Now().UTC(),
	}

	if len(history) >= minHistory {
		// Baselines come from the leading two-thirds (capped at 60
		// records) so the recent days they judge are out-of-sample.
		period := len(history) * 2 / 3
		if period > 60 {
			period = 60
		}
		snap.Baselines = baseline.Compute(history[:period], e.cfg.Baseline)
		snap.Anomalies = anomaly.Detect(history, snap.Baselines, e.cfg.Anomaly)
		snap.Correlations = correlation.Discover(history, e.cfg.Corr)
	} else {
		snap.Baselines = map[api.Metric]api.Baseline{}
	}

	rows := counterfactual.BuildRows(history)
	snap.EnergyModel = counterfactual.Fit(rows, counterfactual.TargetEnergy, e.cfg.Fit)
	snap.StressModel = counterfactual.Fit(rows, counterfactual.TargetStress, e.cfg.Fit)

	// The what-if baseline is the most recent day that reported both
	// wellness targets.
	for i := len(history) - 1; i >= 0; i-- {
		energy, ok1 := history[i].Value(api.MetricEnergyLevel)
		stress, ok2 := history[i].Value(api.MetricStressScore)
		if ok1 && ok2 {
			snap.BaselineTargets = api.TargetValues{Energy: energy, Stress: stress}
			snap.BaselineDate = history[i].Date
			break
		}
	}

	return snap
}

// Baselines returns the current baselines in stable metric order.
func (e *Engine) Baselines() []api.Baseline {
	snap := e.Current()
	out := make([]api.Baseline, 0, len(snap.Baselines))
	for _, m := range api.Metrics() {
		if b, ok := snap.Baselines[m]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Anomalies returns up to limit anomalies, optionally filtered by severity.
// limit <= 0 means no limit.
func (e *Engine) Anomalies(severity api.Severity, limit int) []api.Anomaly {
	anoms := e.Current().Anomalies
	if severity != "" {
		anoms = anomaly.FilterBySeverity(anoms, severity)
	}
	if limit > 0 && len(anoms) > limit {
		anoms = anoms[:limit]
	}
	return anoms
}

// AnomalyTimeline returns zero-filled per-day severity counts for the last
// `days` days ending at the newest record.
func (e *Engine) AnomalyTimeline(days int) []api.TimelineDay {
	snap := e.Current()
	end := time.Now().UTC()
	if n := len(snap.History); n > 0 {
		if t, err := snap.History[n-1].Time(); err == nil {
			end = t
		}
	}
	return anomaly.Timeline(snap.Anomalies, days, end)
}

// Correlations returns up to limit discovered correlations, strongest
// first. limit <= 0 means no limit.
func (e *Engine) Correlations(limit int) []api.Correlation {
	corrs := e.Current().Correlations
	if limit > 0 && len(corrs) > limit {
		corrs = corrs[:limit]
	}
	return corrs
}

// Simulate answers a what-if query against the current snapshot. Results
// are memoized per snapshot version, so a rebuild naturally invalidates.
func (e *Engine) Simulate(deltas api.SimulationDeltas) (*api.CounterfactualResult, error) {
	snap := e.Current()

	key := simcache.Key(snap.Version, deltas)
	if res := e.simCache.Get(key); res != nil {
		if e.met != nil {
			e.met.SimulateCacheHits.Inc()
		}
		return res, nil
	}
	if e.met != nil {
		e.met.SimulateCacheMiss.Inc()
	}

	res, err := counterfactual.Simulate(snap.EnergyModel, snap.StressModel,
		snap.BaselineTargets, deltas, e.cfg.Drift)
	if err != nil {
		return nil, err
	}

	if e.met != nil {
		e.met.SimulateTotal.Inc()
		if !res.Drift.InDomain {
			e.met.SimulateDrifted.Inc()
		}
	}
	e.simCache.Put(key, res)
	return res, nil
}

// LatestMetrics returns the newest record, or nil with an empty history.
func (e *Engine) LatestMetrics() *api.UnifiedRecord {
	history := e.Current().History
	if len(history) == 0 {
		return nil
	}
	rec := history[len(history)-1]
	return &rec
}

// ModelInfo summarizes the current counterfactual models.
func (e *Engine) ModelInfo() api.ModelInfo {
	snap := e.Current()
	info := api.ModelInfo{}
	if snap.EnergyModel != nil {
		info.TrainingRows = snap.EnergyModel.TrainingRows
		info.EnergyR2 = snap.EnergyModel.RSquared
		info.Available = snap.EnergyModel.Usable
	}
	if snap.StressModel != nil {
		info.StressR2 = snap.StressModel.RSquared
		info.Available = info.Available && snap.StressModel.Usable
	}
	return info
}

// Records returns the trailing `days` records; days <= 0 returns all.
func (e *Engine) Records(days int) []api.UnifiedRecord {
	history := e.Current().History
	if days > 0 && len(history) > days {
		history = history[len(history)-days:]
	}
	return history
}
