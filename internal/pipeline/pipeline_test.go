package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/export"
	"github.com/sells-group/property-cli/internal/model"
)

type stubSource struct {
	name string
	recs []model.Record
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _ int) ([]model.Record, error) {
	return s.recs, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func wakeSource() *stubSource {
	return &stubSource{
		name: "wake_county",
		recs: []model.Record{
			model.FromMap(map[string]any{
				"owner_name":       "SMITH, JOHN",
				"parcel_id":        "1234",
				"property_address": "123 Main Street",
				"city":             "raleigh",
				"state":            "North Carolina",
				"zip_code":         "27601",
				"county":           "Wake",
				"assessed_value":   250000.0,
				"source":           "wake_county",
				"source_url":       "https://maps.example.gov/query",
				"extracted_at":     "2026-08-01T10:00:00Z",
			}),
			model.FromMap(map[string]any{
				"owner_name":       "DOE, JANE",
				"parcel_id":        "5555",
				"property_address": "9 Oak Avenue",
				"source":           "wake_county",
				"source_url":       "https://maps.example.gov/query",
				"extracted_at":     "2026-08-01T10:00:00Z",
			}),
			// Missing owner_name: fails validation.
			model.FromMap(map[string]any{
				"parcel_id":        "7777",
				"property_address": "1 Elm Court",
				"source":           "wake_county",
				"extracted_at":     "2026-08-01T10:00:00Z",
			}),
		},
	}
}

func orangeSource() *stubSource {
	return &stubSource{
		name: "orange_county",
		recs: []model.Record{
			model.FromMap(map[string]any{
				"owner_name":       "JOHN A SMITH",
				"parcel_id":        "1234",
				"property_address": "123 Main Street",
				"mailing_address":  "PO Box 99",
				"county":           "Orange",
				"sale_price":       300000.0,
				"source":           "orange_county",
				"source_url":       "https://tax.example.net/1234",
				"extracted_at":     "2026-08-02T10:00:00Z",
			}),
		},
	}
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, wakeSource(), orangeSource(), nil)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "owners.json")
	stats, err := p.Run(context.Background(), Options{
		Format:     "json",
		OutputPath: outPath,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Wake.Fetched)
	assert.Equal(t, 2, stats.Wake.Valid)
	assert.Equal(t, 1, stats.Wake.Invalid)
	assert.Equal(t, 1, stats.Orange.Fetched)
	assert.Equal(t, 1, stats.Orange.Valid)

	// Parcel 1234 merges across sources; 5555 carries through alone.
	assert.Equal(t, 1, stats.Merge.Merged)
	assert.Equal(t, 1, stats.Merge.AOnly)
	assert.Equal(t, 0, stats.Merge.BOnly)
	assert.Equal(t, 2, stats.FinalRecords)
	assert.Equal(t, outPath, stats.OutputPath)
	assert.NotEmpty(t, stats.RunID)
	assert.GreaterOrEqual(t, stats.DurationSecs, 0.0)

	total := 0
	for _, n := range stats.Quality {
		total += n
	}
	assert.Equal(t, stats.FinalRecords, total)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)

	var crossMerged map[string]any
	for _, row := range rows {
		if row["parcel_id"] == "1234" {
			crossMerged = row
		}
	}
	require.NotNil(t, crossMerged)
	assert.Equal(t, "wake_county + orange_county", crossMerged["source"])
	assert.Equal(t, true, crossMerged["is_cross_source_merged"])
	assert.Equal(t, "John A Smith", crossMerged["owner_name"])
	assert.Equal(t, "123 MAIN ST", crossMerged["property_address"])
	assert.NotEmpty(t, crossMerged["quality_level"])
}

func TestPipelineRun_SourceFailureDegrades(t *testing.T) {
	cfg := testConfig(t)
	failing := &stubSource{name: "wake_county", err: assert.AnError}
	p, err := New(cfg, failing, orangeSource(), nil)
	require.NoError(t, err)

	stats, err := p.Run(context.Background(), Options{
		Format:     "json",
		OutputPath: filepath.Join(t.TempDir(), "owners.json"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Wake.Fetched)
	assert.Equal(t, 1, stats.Orange.Fetched)
	assert.Equal(t, 1, stats.FinalRecords)
}

func TestPipelineRun_SkipFlags(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, wakeSource(), orangeSource(), nil)
	require.NoError(t, err)

	stats, err := p.Run(context.Background(), Options{
		Format:     "json",
		OutputPath: filepath.Join(t.TempDir(), "owners.json"),
		SkipAPI:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Wake.Fetched)
	assert.Equal(t, 1, stats.Orange.Fetched)
}

func TestPipelineRun_UnsupportedFormatFails(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, wakeSource(), orangeSource(), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Options{
		Format:     "parquet",
		OutputPath: filepath.Join(t.TempDir(), "owners.parquet"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}

func TestRecordsFromSource_CrossMergeOnBothSheets(t *testing.T) {
	records := []model.Record{
		{Source: "wake_county"},
		{Source: "orange_county"},
		{Source: "wake_county + orange_county", IsCrossSourceMerged: true},
	}

	assert.Len(t, recordsFromSource(records, "wake_county"), 2)
	assert.Len(t, recordsFromSource(records, "orange_county"), 2)
}
