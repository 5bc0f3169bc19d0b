package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/export"
	"github.com/sells-group/property-cli/internal/fetcher"
	"github.com/sells-group/property-cli/internal/model"
	"github.com/sells-group/property-cli/internal/store"
)

// Options control one pipeline run. Zero values fall back to config.
type Options struct {
	APILimit      int
	ScrapeLimit   int
	Format        string
	OutputPath    string
	SkipAPI       bool
	SkipScrape    bool
	Strict        bool
	MergeStrategy string
	Checkpoints   bool
}

// Pipeline wires the reconciliation stages together. Per-record problems
// are isolated inside the stages; only configuration and export errors
// abort a run.
type Pipeline struct {
	cfg       *config.Config
	wake      fetcher.Source
	orange    fetcher.Source
	validator *Validator
	cleaner   *Cleaner
	merger    *Merger
	dedup     *Deduplicator
	enricher  *Enricher
	store     store.Store
}

// New builds a pipeline from config. The store may be nil; runs then skip
// persistence and checkpointing.
func New(cfg *config.Config, wake, orange fetcher.Source, st store.Store) (*Pipeline, error) {
	validator, err := NewValidator(cfg.Validation)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build validator")
	}
	return &Pipeline{
		cfg:       cfg,
		wake:      wake,
		orange:    orange,
		validator: validator,
		cleaner:   NewCleaner(cfg.Name, cfg.Address),
		merger:    NewMerger(cfg.Merge.Key, cfg.Merge.PreferSource),
		dedup:     NewDeduplicator(cfg.Dedupe),
		enricher:  NewEnricher(cfg.Quality),
		store:     st,
	}, nil
}

// Run executes fetch, validate, clean, merge, dedupe, enrich, and export,
// returning the run's statistics.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Statistics, error) {
	stats := &Statistics{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	if p.store != nil {
		if run, err := p.store.CreateRun(ctx); err != nil {
			zap.L().Warn("pipeline: run persistence unavailable", zap.Error(err))
		} else {
			stats.RunID = run.ID
		}
	}
	zap.L().Info("pipeline: run started", zap.String("run_id", stats.RunID))

	wakeRaw, orangeRaw := p.fetchSources(ctx, opts)
	stats.Wake.Fetched = len(wakeRaw)
	stats.Orange.Fetched = len(orangeRaw)

	strict := opts.Strict || p.cfg.Pipeline.StrictValidation
	wakeValid, wakeInvalid := p.validator.ValidateBatch(wakeRaw, strict, false)
	orangeValid, orangeInvalid := p.validator.ValidateBatch(orangeRaw, strict, false)
	stats.Wake.Valid, stats.Wake.Invalid = len(wakeValid), len(wakeInvalid)
	stats.Orange.Valid, stats.Orange.Invalid = len(orangeValid), len(orangeInvalid)

	wakeClean := p.cleaner.CleanBatch(wakeValid)
	orangeClean := p.cleaner.CleanBatch(orangeValid)
	stats.Wake.Cleaned = len(wakeClean)
	stats.Orange.Cleaned = len(orangeClean)
	p.checkpoint(ctx, opts, stats.RunID, "clean", CombineAll(wakeClean, orangeClean))

	merged, mergeStats := p.merger.MergeSources(wakeClean, orangeClean)
	stats.Merge = mergeStats

	strategy := opts.MergeStrategy
	if strategy == "" {
		strategy = p.cfg.Dedupe.MergeStrategy
	}
	unique, groups := p.dedup.FindDuplicates(merged, true, true)
	deduped := make([]model.Record, 0, len(unique)+len(groups))
	deduped = append(deduped, unique...)
	var duplicates []model.Record
	for _, group := range groups {
		deduped = append(deduped, MergeGroup(group, strategy))
		duplicates = append(duplicates, group...)
	}
	stats.Duplicates = SummarizeDuplicates(groups)
	p.checkpoint(ctx, opts, stats.RunID, "dedupe", deduped)

	enriched := p.enricher.EnrichBatch(deduped)
	stats.Quality = QualityDistribution(enriched)
	stats.FinalRecords = len(enriched)
	p.checkpoint(ctx, opts, stats.RunID, "enrich", enriched)

	outputPath, err := p.export(opts, enriched, duplicates, stats)
	if err != nil {
		p.failRun(ctx, stats.RunID, err)
		return stats, err
	}
	stats.OutputPath = outputPath

	stats.FinishedAt = time.Now().UTC()
	stats.DurationSecs = round2(stats.FinishedAt.Sub(stats.StartedAt).Seconds())
	p.completeRun(ctx, stats)

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", stats.RunID),
		zap.Int("final_records", stats.FinalRecords),
		zap.Float64("duration_secs", stats.DurationSecs),
		zap.String("output", stats.OutputPath),
	)
	return stats, nil
}

// fetchSources pulls both sources concurrently. A source failure degrades
// to an empty record set; reconciliation proceeds with what arrived.
func (p *Pipeline) fetchSources(ctx context.Context, opts Options) ([]model.Record, []model.Record) {
	var wakeRecs, orangeRecs []model.Record

	g, gctx := errgroup.WithContext(ctx)
	if !opts.SkipAPI && p.wake != nil {
		g.Go(func() error {
			recs, err := p.wake.Fetch(gctx, opts.APILimit)
			if err != nil {
				zap.L().Error("pipeline: wake fetch failed", zap.Error(err))
			}
			wakeRecs = recs
			return nil
		})
	}
	if !opts.SkipScrape && p.orange != nil {
		g.Go(func() error {
			recs, err := p.orange.Fetch(gctx, opts.ScrapeLimit)
			if err != nil {
				zap.L().Error("pipeline: orange fetch failed", zap.Error(err))
			}
			orangeRecs = recs
			return nil
		})
	}
	_ = g.Wait()

	return wakeRecs, orangeRecs
}

func (p *Pipeline) checkpoint(ctx context.Context, opts Options, runID, stage string, records []model.Record) {
	if p.store == nil || !(opts.Checkpoints || p.cfg.Pipeline.EnableCheckpoints) {
		return
	}
	if err := p.store.SaveCheckpoint(ctx, runID, stage, records); err != nil {
		zap.L().Warn("pipeline: checkpoint failed",
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) export(opts Options, records, duplicates []model.Record, stats *Statistics) (string, error) {
	format := opts.Format
	if format == "" {
		format = p.cfg.Export.Format
	}

	path := opts.OutputPath
	if path == "" {
		if err := os.MkdirAll(p.cfg.Export.OutputDir, 0o755); err != nil {
			return "", eris.Wrap(err, "pipeline: create output dir")
		}
		name := fmt.Sprintf("%s_%s.%s",
			p.cfg.Export.FilePrefix,
			time.Now().Format("20060102_150405"),
			strings.ToLower(format),
		)
		path = filepath.Join(p.cfg.Export.OutputDir, name)
	}

	payload := export.Payload{
		All:        records,
		Wake:       recordsFromSource(records, fetcher.SourceWake),
		Orange:     recordsFromSource(records, fetcher.SourceOrange),
		Duplicates: duplicates,
		Stats:      stats.Sections(),
	}
	if err := export.Export(format, path, payload); err != nil {
		return "", eris.Wrap(err, "pipeline: export")
	}
	return path, nil
}

// recordsFromSource keeps records whose provenance includes the source
// label. Cross-source merges appear under both counties.
func recordsFromSource(records []model.Record, source string) []model.Record {
	var out []model.Record
	for _, rec := range records {
		if strings.Contains(rec.Source, source) {
			out = append(out, rec)
		}
	}
	return out
}

func (p *Pipeline) completeRun(ctx context.Context, stats *Statistics) {
	if p.store == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		zap.L().Warn("pipeline: marshal stats failed", zap.Error(err))
		return
	}
	if err := p.store.CompleteRun(ctx, stats.RunID, payload); err != nil {
		zap.L().Warn("pipeline: complete run failed", zap.Error(err))
	}
}

func (p *Pipeline) failRun(ctx context.Context, runID string, runErr error) {
	if p.store == nil {
		return
	}
	if err := p.store.FailRun(ctx, runID, runErr.Error()); err != nil {
		zap.L().Warn("pipeline: fail run update failed", zap.Error(err))
	}
}
