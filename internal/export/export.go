// Package export writes pipeline results to XLSX workbooks, CSV, or JSON.
package export

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/internal/model"
)

// ErrUnsupportedFormat is returned for output formats the exporter does
// not implement. Unlike per-record problems this is fatal to the run.
var ErrUnsupportedFormat = eris.New("unsupported export format")

// StatEntry is one labelled value on the statistics sheet.
type StatEntry struct {
	Label string
	Value any
}

// StatSection groups related statistics under a heading.
type StatSection struct {
	Title   string
	Entries []StatEntry
}

// Payload carries everything one export writes. Wake and Orange hold the
// per-source views of the final records; Duplicates holds every record
// that was part of a duplicate group.
type Payload struct {
	All        []model.Record
	Wake       []model.Record
	Orange     []model.Record
	Duplicates []model.Record
	Stats      []StatSection
}

// Export dispatches on format. CSV and JSON write the merged record set
// only; the workbook format carries the per-source and duplicate views.
func Export(format, path string, payload Payload) error {
	switch strings.ToLower(format) {
	case "xlsx":
		return WriteXLSX(path, payload)
	case "csv":
		return WriteCSV(path, payload.All)
	case "json":
		return WriteJSON(path, payload.All)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}
}

// priorityColumns is the export column order; fields outside this list
// follow it alphabetically.
var priorityColumns = []string{
	model.FieldOwnerName,
	model.FieldParcelID,
	model.FieldPropertyAddress,
	model.FieldCity,
	model.FieldState,
	model.FieldZipCode,
	model.FieldCounty,
	model.FieldMailingAddress,
	model.FieldAssessedValue,
	model.FieldSaleDate,
	model.FieldSalePrice,
	"quality_score",
	"quality_level",
	"completeness_percent",
	model.FieldSource,
	model.FieldSourceURL,
	model.FieldExtractedAt,
}

// columnHeaders derives the header row from the first record, priority
// fields first, remaining fields alphabetical.
func columnHeaders(records []model.Record) []string {
	if len(records) == 0 {
		return nil
	}
	fields := records[0].ToMap()

	var headers []string
	used := make(map[string]bool, len(fields))
	for _, field := range priorityColumns {
		if _, ok := fields[field]; ok {
			headers = append(headers, field)
			used[field] = true
		}
	}

	var remaining []string
	for field := range fields {
		if !used[field] {
			remaining = append(remaining, field)
		}
	}
	sort.Strings(remaining)
	return append(headers, remaining...)
}
