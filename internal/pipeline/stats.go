package pipeline

import (
	"time"

	"github.com/sells-group/property-cli/internal/export"
)

// SourceStats counts one source's records through fetch and validation.
type SourceStats struct {
	Fetched int `json:"fetched"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Cleaned int `json:"cleaned"`
}

// Statistics is the full accounting of one pipeline run. It is built
// locally by Run and returned; nothing in the pipeline mutates shared
// state.
type Statistics struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	DurationSecs float64        `json:"duration_secs"`
	Wake         SourceStats    `json:"wake"`
	Orange       SourceStats    `json:"orange"`
	Merge        MergeStats     `json:"merge"`
	Duplicates   DuplicateStats `json:"duplicates"`
	Quality      map[string]int `json:"quality"`
	FinalRecords int            `json:"final_records"`
	OutputPath   string         `json:"output_path,omitempty"`
}

// Sections renders the statistics for the workbook's Statistics sheet.
func (s *Statistics) Sections() []export.StatSection {
	return []export.StatSection{
		{Title: "Run", Entries: []export.StatEntry{
			{Label: "Run Id", Value: s.RunID},
			{Label: "Started At", Value: s.StartedAt.Format(time.RFC3339)},
			{Label: "Duration Secs", Value: s.DurationSecs},
			{Label: "Final Records", Value: s.FinalRecords},
		}},
		{Title: "Wake County", Entries: sourceEntries(s.Wake)},
		{Title: "Orange County", Entries: sourceEntries(s.Orange)},
		{Title: "Merge", Entries: []export.StatEntry{
			{Label: "Wake Only", Value: s.Merge.AOnly},
			{Label: "Orange Only", Value: s.Merge.BOnly},
			{Label: "Cross Source Merged", Value: s.Merge.Merged},
			{Label: "Total", Value: s.Merge.Total},
		}},
		{Title: "Duplicates", Entries: []export.StatEntry{
			{Label: "Groups", Value: s.Duplicates.Groups},
			{Label: "Total Records", Value: s.Duplicates.TotalRecords},
			{Label: "Avg Group Size", Value: s.Duplicates.AvgGroupSize},
			{Label: "Max Group Size", Value: s.Duplicates.MaxGroupSize},
		}},
		{Title: "Quality", Entries: []export.StatEntry{
			{Label: "High", Value: s.Quality[QualityHigh]},
			{Label: "Medium", Value: s.Quality[QualityMedium]},
			{Label: "Low", Value: s.Quality[QualityLow]},
		}},
	}
}

func sourceEntries(s SourceStats) []export.StatEntry {
	return []export.StatEntry{
		{Label: "Fetched", Value: s.Fetched},
		{Label: "Valid", Value: s.Valid},
		{Label: "Invalid", Value: s.Invalid},
		{Label: "Cleaned", Value: s.Cleaned},
	}
}
