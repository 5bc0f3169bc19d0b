package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/model"
)

func wakeRecord(parcel string) model.Record {
	return model.FromMap(map[string]any{
		"owner_name":       "John Smith",
		"parcel_id":        parcel,
		"property_address": "123 MAIN ST",
		"source":           "wake_county",
		"source_url":       "https://maps.wakegov.com/query",
		"extracted_at":     "2026-08-01T10:00:00Z",
	})
}

func orangeRecord(parcel string) model.Record {
	return model.FromMap(map[string]any{
		"owner_name":      "John A Smith",
		"parcel_id":       parcel,
		"mailing_address": "PO BOX 99",
		"source":          "orange_county",
		"source_url":      "https://tax.example.net/1",
		"extracted_at":    "2026-08-02T10:00:00Z",
	})
}

func TestMergeSources_SharedKey(t *testing.T) {
	m := NewMerger("parcel_id", "")
	out, stats := m.MergeSources(
		[]model.Record{wakeRecord("1234")},
		[]model.Record{orangeRecord("1234")},
	)

	require.Len(t, out, 1)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 0, stats.AOnly)
	assert.Equal(t, 0, stats.BOnly)

	merged := out[0]
	assert.True(t, merged.IsCrossSourceMerged)
	assert.Equal(t, "wake_county + orange_county", merged.Source)
	assert.Equal(t, "https://maps.wakegov.com/query | https://tax.example.net/1", merged.SourceURL)
	assert.Equal(t, "2026-08-02T10:00:00Z", merged.ExtractedAt)
	// Fields present on only one side carry over.
	assert.Equal(t, "123 MAIN ST", merged.PropertyAddress)
	assert.Equal(t, "PO BOX 99", merged.MailingAddress)
	// Both present: longer string wins.
	assert.Equal(t, "John A Smith", merged.OwnerName)
}

func TestMergeSources_CrossProduct(t *testing.T) {
	m := NewMerger("parcel_id", "")
	a := []model.Record{wakeRecord("1234"), wakeRecord("1234")}
	b := []model.Record{orangeRecord("1234"), orangeRecord("1234"), orangeRecord("1234")}

	out, stats := m.MergeSources(a, b)
	// 2 records x 3 records sharing the key produce 6 merged outputs.
	assert.Len(t, out, 6)
	assert.Equal(t, 6, stats.Merged)
}

func TestMergeSources_UnsharedAndKeyless(t *testing.T) {
	m := NewMerger("parcel_id", "")
	keyless := wakeRecord("")
	a := []model.Record{wakeRecord("1111"), keyless}
	b := []model.Record{orangeRecord("2222")}

	out, stats := m.MergeSources(a, b)
	assert.Len(t, out, 3)
	assert.Equal(t, 2, stats.AOnly)
	assert.Equal(t, 1, stats.BOnly)
	assert.Equal(t, 0, stats.Merged)
	for _, rec := range out {
		assert.False(t, rec.IsCrossSourceMerged)
	}
}

func TestMergeSources_KeyNormalized(t *testing.T) {
	m := NewMerger("parcel_id", "")
	out, stats := m.MergeSources(
		[]model.Record{wakeRecord(" 1234 ")},
		[]model.Record{orangeRecord("1234")},
	)
	require.Len(t, out, 1)
	assert.Equal(t, 1, stats.Merged)
}

func TestMergeRecordPair_PreferSource(t *testing.T) {
	m := NewMerger("parcel_id", "orange_county")
	merged := m.MergeRecordPair(wakeRecord("1234"), orangeRecord("1234"))
	// Both owner names present; the preferred source wins over length.
	assert.Equal(t, "John A Smith", merged.OwnerName)

	m = NewMerger("parcel_id", "wake_county")
	merged = m.MergeRecordPair(wakeRecord("1234"), orangeRecord("1234"))
	assert.Equal(t, "John Smith", merged.OwnerName)
}

func TestMergeRecordPair_ExtrasCarried(t *testing.T) {
	m := NewMerger("parcel_id", "")
	a := wakeRecord("1234")
	a.SetValue("deed_book", "DB-42")
	b := orangeRecord("1234")
	b.SetValue("tax_district", "Hillsborough")

	merged := m.MergeRecordPair(a, b)
	assert.Equal(t, "DB-42", merged.Value("deed_book"))
	assert.Equal(t, "Hillsborough", merged.Value("tax_district"))
}

func TestSeparateBySource(t *testing.T) {
	records := []model.Record{wakeRecord("1"), orangeRecord("2"), wakeRecord("3")}
	bySource := SeparateBySource(records)
	assert.Len(t, bySource["wake_county"], 2)
	assert.Len(t, bySource["orange_county"], 1)
}

func TestSummarizeMerge(t *testing.T) {
	m := NewMerger("parcel_id", "")
	out, _ := m.MergeSources(
		[]model.Record{wakeRecord("1234"), wakeRecord("5678")},
		[]model.Record{orangeRecord("1234")},
	)

	stats := SummarizeMerge(out)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.CrossSource)
	assert.Equal(t, 1, stats.BySource["wake_county"])
	assert.Equal(t, 1, stats.BySource["wake_county + orange_county"])
}

func TestCombineAll(t *testing.T) {
	out := CombineAll([]model.Record{wakeRecord("1")}, []model.Record{orangeRecord("2")})
	assert.Len(t, out, 2)
}
