package pipeline

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// Quality level labels, ordered Low < Medium < High.
const (
	QualityHigh   = "High"
	QualityMedium = "Medium"
	QualityLow    = "Low"
)

var levelOrder = map[string]int{QualityLow: 0, QualityMedium: 1, QualityHigh: 2}

// Enricher scores records by weighted field completeness.
type Enricher struct {
	weights         map[string]float64
	scoredFields    []string
	highThreshold   float64
	mediumThreshold float64
	now             func() time.Time
}

func NewEnricher(cfg config.QualityConfig) *Enricher {
	fields := make([]string, 0, len(cfg.Weights))
	for field := range cfg.Weights {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return &Enricher{
		weights:         cfg.Weights,
		scoredFields:    fields,
		highThreshold:   cfg.HighThreshold,
		mediumThreshold: cfg.MediumThreshold,
		now:             time.Now,
	}
}

// EnrichRecord computes the quality score, level, and completeness for one
// record. The input is not mutated.
func (e *Enricher) EnrichRecord(rec model.Record) model.Record {
	enriched := rec.Clone()

	var score float64
	populated := 0
	for _, field := range e.scoredFields {
		if e.isPopulated(enriched, field) {
			score += e.weights[field]
			populated++
		}
	}

	enriched.QualityScore = round2(math.Min(math.Max(score, 0), 100))
	enriched.QualityLevel = e.levelFor(enriched.QualityScore)
	enriched.CompletenessPercent = round2(float64(populated) / float64(len(e.scoredFields)) * 100)
	enriched.EnrichedAt = e.now().UTC().Format(time.RFC3339)
	return enriched
}

// isPopulated treats a zero price as absent: assessed values and sale
// prices of 0 come from placeholder rows, not real appraisals.
func (e *Enricher) isPopulated(rec model.Record, field string) bool {
	v := rec.Value(field)
	if model.IsEmptyValue(v) {
		return false
	}
	if field == model.FieldAssessedValue || field == model.FieldSalePrice {
		if f, ok := v.(float64); ok && f == 0 {
			return false
		}
	}
	return true
}

func (e *Enricher) levelFor(score float64) string {
	switch {
	case score >= e.highThreshold:
		return QualityHigh
	case score >= e.mediumThreshold:
		return QualityMedium
	default:
		return QualityLow
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// EnrichBatch enriches every record, isolating per-record failures the same
// way the cleaner does.
func (e *Enricher) EnrichBatch(records []model.Record) []model.Record {
	enriched := make([]model.Record, 0, len(records))
	for i, rec := range records {
		enriched = append(enriched, e.enrichSafely(i, rec))
	}
	zap.L().Info("enrich: batch complete", zap.Int("records", len(enriched)))
	return enriched
}

func (e *Enricher) enrichSafely(index int, rec model.Record) (out model.Record) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrich: record failed, keeping original",
				zap.Int("index", index),
				zap.Any("panic", r),
			)
			out = rec
		}
	}()
	return e.EnrichRecord(rec)
}

// QualityDistribution counts records per quality level.
func QualityDistribution(records []model.Record) map[string]int {
	dist := map[string]int{QualityHigh: 0, QualityMedium: 0, QualityLow: 0}
	for _, rec := range records {
		if _, known := dist[rec.QualityLevel]; known {
			dist[rec.QualityLevel]++
		}
	}
	return dist
}

// FieldCoverage reports, per scored field, the percentage of records that
// carry a populated value.
func (e *Enricher) FieldCoverage(records []model.Record) map[string]float64 {
	coverage := make(map[string]float64, len(e.scoredFields))
	if len(records) == 0 {
		return coverage
	}
	for _, field := range e.scoredFields {
		n := 0
		for _, rec := range records {
			if e.isPopulated(rec, field) {
				n++
			}
		}
		coverage[field] = round2(float64(n) / float64(len(records)) * 100)
	}
	return coverage
}

// FilterByQuality keeps records at or above the given level and score.
func FilterByQuality(records []model.Record, minLevel string, minScore float64) []model.Record {
	minRank, known := levelOrder[minLevel]
	if !known {
		minRank = 0
	}

	var out []model.Record
	for _, rec := range records {
		if levelOrder[rec.QualityLevel] < minRank {
			continue
		}
		if rec.QualityScore < minScore {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// SortByQuality returns the records ordered by descending quality score.
// The sort is stable, so equal scores keep their input order.
func SortByQuality(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualityScore > out[j].QualityScore
	})
	return out
}

// TopQuality returns the n highest-scoring records.
func TopQuality(records []model.Record, n int) []model.Record {
	sorted := SortByQuality(records)
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// AddRank assigns quality_rank 1..n over a quality-sorted copy.
func AddRank(records []model.Record) []model.Record {
	ranked := SortByQuality(records)
	for i := range ranked {
		ranked[i] = ranked[i].Clone()
		ranked[i].QualityRank = i + 1
	}
	return ranked
}
