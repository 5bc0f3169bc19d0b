package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// Deduplicator finds duplicate records with an exact composite-key pass
// followed by a fuzzy similarity pass.
type Deduplicator struct {
	exactFields      []string
	nameThreshold    float64
	addressThreshold float64
	similarity       func(a, b string) float64
}

func NewDeduplicator(cfg config.DedupeConfig) *Deduplicator {
	return &Deduplicator{
		exactFields:      cfg.ExactMatchFields,
		nameThreshold:    cfg.NameThreshold,
		addressThreshold: cfg.AddressThreshold,
		similarity:       similarityFunc(cfg.Algorithm),
	}
}

// FindDuplicates partitions records into uniques and duplicate groups.
//
// The exact pass groups records on the composite of the configured match
// fields; records missing any of those fields are skipped by it. The fuzzy
// pass walks the remaining records in input order and clusters each
// unclaimed record with every later record similar to it. Similarity is
// checked against that anchor record only, so clustering is intentionally
// not transitive: a mid-range record claimed by an earlier anchor will not
// pull its own near-matches into the group.
func (d *Deduplicator) FindDuplicates(records []model.Record, useExact, useFuzzy bool) ([]model.Record, [][]model.Record) {
	seen := make(map[int]bool, len(records))
	var groups [][]model.Record

	if useExact {
		groups = append(groups, d.exactPass(records, seen)...)
	}
	if useFuzzy {
		groups = append(groups, d.fuzzyPass(records, seen)...)
	}

	var unique []model.Record
	for i, rec := range records {
		if !seen[i] {
			unique = append(unique, rec)
		}
	}

	zap.L().Info("dedupe: scan complete",
		zap.Int("records", len(records)),
		zap.Int("unique", len(unique)),
		zap.Int("duplicate_groups", len(groups)),
	)
	return unique, groups
}

func (d *Deduplicator) exactPass(records []model.Record, seen map[int]bool) [][]model.Record {
	byKey := make(map[string][]int)
	var order []string

	for i, rec := range records {
		key, ok := d.exactKey(rec)
		if !ok {
			continue
		}
		if _, exists := byKey[key]; !exists {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], i)
	}

	var groups [][]model.Record
	for _, key := range order {
		indexes := byKey[key]
		if len(indexes) < 2 {
			continue
		}
		group := make([]model.Record, 0, len(indexes))
		for _, i := range indexes {
			group = append(group, records[i])
			seen[i] = true
		}
		groups = append(groups, group)
	}
	return groups
}

// exactKey builds the composite key, or reports false if any match field
// is empty.
func (d *Deduplicator) exactKey(rec model.Record) (string, bool) {
	parts := make([]string, 0, len(d.exactFields))
	for _, field := range d.exactFields {
		s, _ := rec.Value(field).(string)
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return "", false
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "|"), true
}

func (d *Deduplicator) fuzzyPass(records []model.Record, seen map[int]bool) [][]model.Record {
	var groups [][]model.Record
	for i := range records {
		if seen[i] {
			continue
		}
		group := []model.Record{records[i]}
		var claimed []int
		for j := i + 1; j < len(records); j++ {
			if seen[j] {
				continue
			}
			if d.IsDuplicatePair(records[i], records[j]) {
				group = append(group, records[j])
				claimed = append(claimed, j)
			}
		}
		if len(group) < 2 {
			continue
		}
		seen[i] = true
		for _, j := range claimed {
			seen[j] = true
		}
		groups = append(groups, group)
	}
	return groups
}

// IsDuplicatePair applies the pairwise predicate: owner names must both be
// present and similar at or above the name threshold; if both records also
// carry a property address, those must clear the address threshold too.
func (d *Deduplicator) IsDuplicatePair(r1, r2 model.Record) bool {
	name1 := strings.ToUpper(strings.TrimSpace(r1.OwnerName))
	name2 := strings.ToUpper(strings.TrimSpace(r2.OwnerName))
	if name1 == "" || name2 == "" {
		return false
	}
	if d.similarity(name1, name2) < d.nameThreshold {
		return false
	}

	addr1 := strings.ToUpper(strings.TrimSpace(r1.PropertyAddress))
	addr2 := strings.ToUpper(strings.TrimSpace(r2.PropertyAddress))
	if addr1 != "" && addr2 != "" {
		return d.similarity(addr1, addr2) >= d.addressThreshold
	}
	return true
}

// SimilarityScores reports per-field similarity between two records, for
// diagnostics and threshold tuning.
func (d *Deduplicator) SimilarityScores(r1, r2 model.Record) map[string]float64 {
	scores := make(map[string]float64, 3)
	for _, field := range []string{model.FieldOwnerName, model.FieldPropertyAddress, model.FieldMailingAddress} {
		s1, _ := r1.Value(field).(string)
		s2, _ := r2.Value(field).(string)
		if strings.TrimSpace(s1) == "" || strings.TrimSpace(s2) == "" {
			continue
		}
		scores[field] = d.similarity(strings.ToUpper(s1), strings.ToUpper(s2))
	}
	return scores
}

// MergeGroup collapses a duplicate group to one record using the given
// strategy: "first", "last", or "most_complete" (the default), which takes
// the longest string (or first non-empty value) per field across the whole
// group.
func MergeGroup(group []model.Record, strategy string) model.Record {
	if len(group) == 0 {
		return model.Record{}
	}

	var merged model.Record
	switch strategy {
	case "first":
		merged = group[0].Clone()
	case "last":
		merged = group[len(group)-1].Clone()
	default:
		merged = mostComplete(group)
	}

	merged.IsMerged = true
	merged.DuplicateCount = len(group)
	return merged
}

func mostComplete(group []model.Record) model.Record {
	var merged model.Record
	seen := make(map[string]bool)

	for _, rec := range group {
		if rec.IsCrossSourceMerged {
			merged.IsCrossSourceMerged = true
		}
		for _, key := range rec.FieldKeys() {
			if seen[key] {
				continue
			}
			seen[key] = true
			merged.SetValue(key, bestValue(group, key))
		}
	}
	return merged
}

// bestValue picks the longest non-empty string for key across the group.
// The first non-empty value fixes the comparison mode: when it is not a
// string it wins outright, and later non-strings never displace strings.
func bestValue(group []model.Record, key string) any {
	var best any
	bestLen := -1
	for _, rec := range group {
		v := rec.Value(key)
		if model.IsEmptyValue(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			if bestLen < 0 {
				return v
			}
			continue
		}
		if len(s) > bestLen {
			best = s
			bestLen = len(s)
		}
	}
	return best
}

// DeduplicateAndMerge returns the unique records plus one merged record per
// duplicate group, along with every record that was part of a group.
func (d *Deduplicator) DeduplicateAndMerge(records []model.Record, strategy string, useExact, useFuzzy bool) ([]model.Record, []model.Record) {
	unique, groups := d.FindDuplicates(records, useExact, useFuzzy)

	out := make([]model.Record, 0, len(unique)+len(groups))
	out = append(out, unique...)

	var duplicates []model.Record
	for _, group := range groups {
		out = append(out, MergeGroup(group, strategy))
		duplicates = append(duplicates, group...)
	}
	return out, duplicates
}

// DuplicateStats summarizes the duplicate groups found in one pass.
type DuplicateStats struct {
	Groups       int     `json:"groups"`
	TotalRecords int     `json:"total_records"`
	AvgGroupSize float64 `json:"avg_group_size"`
	MinGroupSize int     `json:"min_group_size"`
	MaxGroupSize int     `json:"max_group_size"`
}

func SummarizeDuplicates(groups [][]model.Record) DuplicateStats {
	stats := DuplicateStats{Groups: len(groups)}
	if len(groups) == 0 {
		return stats
	}

	stats.MinGroupSize = len(groups[0])
	for _, group := range groups {
		stats.TotalRecords += len(group)
		if len(group) < stats.MinGroupSize {
			stats.MinGroupSize = len(group)
		}
		if len(group) > stats.MaxGroupSize {
			stats.MaxGroupSize = len(group)
		}
	}
	stats.AvgGroupSize = float64(stats.TotalRecords) / float64(len(groups))
	return stats
}
