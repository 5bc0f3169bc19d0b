package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// Merger joins records from two sources on a shared key field.
type Merger struct {
	key          string
	preferSource string
}

// MergeStats summarizes one cross-source merge pass.
type MergeStats struct {
	AOnly  int `json:"a_only"`
	BOnly  int `json:"b_only"`
	Merged int `json:"merged"`
	Total  int `json:"total"`
}

func NewMerger(key, preferSource string) *Merger {
	if key == "" {
		key = model.FieldParcelID
	}
	return &Merger{key: key, preferSource: preferSource}
}

// MergeSources merges two record sets on the configured key.
//
// Records sharing a key across sources produce the full cross product of
// pairwise merges: m records in A and n in B with the same key yield m*n
// merged outputs. Records whose key is present on only one side pass
// through unchanged, as do records with no key at all.
func (m *Merger) MergeSources(a, b []model.Record) ([]model.Record, MergeStats) {
	aByKey, aKeyless, aOrder := m.groupByKey(a)
	bByKey, bKeyless, bOrder := m.groupByKey(b)

	var out []model.Record
	var stats MergeStats

	for _, key := range aOrder {
		bGroup, shared := bByKey[key]
		if !shared {
			out = append(out, aByKey[key]...)
			stats.AOnly += len(aByKey[key])
			continue
		}
		for _, ra := range aByKey[key] {
			for _, rb := range bGroup {
				out = append(out, m.MergeRecordPair(ra, rb))
				stats.Merged++
			}
		}
	}

	for _, key := range bOrder {
		if _, shared := aByKey[key]; !shared {
			out = append(out, bByKey[key]...)
			stats.BOnly += len(bByKey[key])
		}
	}

	out = append(out, aKeyless...)
	stats.AOnly += len(aKeyless)
	out = append(out, bKeyless...)
	stats.BOnly += len(bKeyless)

	stats.Total = len(out)
	zap.L().Info("merge: sources merged",
		zap.String("key", m.key),
		zap.Int("a_only", stats.AOnly),
		zap.Int("b_only", stats.BOnly),
		zap.Int("merged", stats.Merged),
		zap.Int("total", stats.Total),
	)
	return out, stats
}

// groupByKey buckets records by trimmed, uppercased key value. Records with
// no usable key come back separately and pass through the merge untouched.
func (m *Merger) groupByKey(records []model.Record) (map[string][]model.Record, []model.Record, []string) {
	byKey := make(map[string][]model.Record)
	var keyless []model.Record
	var order []string

	for _, rec := range records {
		s, _ := rec.Value(m.key).(string)
		key := strings.ToUpper(strings.TrimSpace(s))
		if key == "" {
			keyless = append(keyless, rec)
			continue
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], rec)
	}
	return byKey, keyless, order
}

// MergeRecordPair combines two records that matched on the merge key.
// Provenance fields concatenate; every other field keeps the single
// non-empty value, or resolves a both-present conflict by preferred
// source, then longer string, then first record.
func (m *Merger) MergeRecordPair(r1, r2 model.Record) model.Record {
	var merged model.Record

	for _, key := range unionKeys(r1, r2) {
		v1 := r1.Value(key)
		v2 := r2.Value(key)

		switch key {
		case model.FieldSource:
			merged.SetValue(key, joinProvenance(v1, v2, " + "))
		case model.FieldSourceURL:
			merged.SetValue(key, joinProvenance(v1, v2, " | "))
		case model.FieldExtractedAt:
			merged.SetValue(key, laterTimestamp(v1, v2))
		default:
			merged.SetValue(key, m.resolveConflict(v1, v2, r1.Source, r2.Source))
		}
	}

	merged.IsCrossSourceMerged = true
	return merged
}

// unionKeys lists every populated key of either record, first record's
// order first.
func unionKeys(r1, r2 model.Record) []string {
	keys := r1.FieldKeys()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range r2.FieldKeys() {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func joinProvenance(v1, v2 any, sep string) string {
	s1, _ := v1.(string)
	s2, _ := v2.(string)
	switch {
	case s1 != "" && s2 != "":
		return s1 + sep + s2
	case s1 != "":
		return s1
	default:
		return s2
	}
}

// laterTimestamp picks the later of two ISO-8601 strings; lexicographic
// order matches chronological order for that format.
func laterTimestamp(v1, v2 any) string {
	s1, _ := v1.(string)
	s2, _ := v2.(string)
	if s1 > s2 {
		return s1
	}
	return s2
}

func (m *Merger) resolveConflict(v1, v2 any, source1, source2 string) any {
	e1 := model.IsEmptyValue(v1)
	e2 := model.IsEmptyValue(v2)
	switch {
	case e1 && e2:
		return v1
	case e1:
		return v2
	case e2:
		return v1
	}

	if m.preferSource != "" {
		if source1 == m.preferSource {
			return v1
		}
		if source2 == m.preferSource {
			return v2
		}
	}

	s1, ok1 := v1.(string)
	s2, ok2 := v2.(string)
	if ok1 && ok2 && len(s2) > len(s1) {
		return v2
	}
	return v1
}

// CombineAll concatenates both sources without matching, for runs where
// merging is disabled.
func CombineAll(a, b []model.Record) []model.Record {
	out := make([]model.Record, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// SeparateBySource buckets records by their source label. Cross-source
// merged records land under their combined label ("wake_county + ...").
func SeparateBySource(records []model.Record) map[string][]model.Record {
	bySource := make(map[string][]model.Record)
	for _, rec := range records {
		source := rec.Source
		if source == "" {
			source = "unknown"
		}
		bySource[source] = append(bySource[source], rec)
	}
	return bySource
}

// CrossSourceRecords returns only the records produced by a cross-source
// merge.
func CrossSourceRecords(records []model.Record) []model.Record {
	var out []model.Record
	for _, rec := range records {
		if rec.IsCrossSourceMerged {
			out = append(out, rec)
		}
	}
	return out
}

// MergeStatistics summarizes a merged record set for reporting.
type MergeStatistics struct {
	Total       int            `json:"total"`
	CrossSource int            `json:"cross_source"`
	BySource    map[string]int `json:"by_source"`
}

func SummarizeMerge(records []model.Record) MergeStatistics {
	stats := MergeStatistics{Total: len(records), BySource: map[string]int{}}
	for source, recs := range SeparateBySource(records) {
		stats.BySource[source] = len(recs)
	}
	stats.CrossSource = len(CrossSourceRecords(records))
	return stats
}
