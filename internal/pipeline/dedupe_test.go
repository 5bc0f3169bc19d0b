package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

func testDeduplicator(t *testing.T) *Deduplicator {
	t.Helper()
	return NewDeduplicator(config.DedupeConfig{
		ExactMatchFields: []string{"parcel_id"},
		NameThreshold:    90,
		AddressThreshold: 95,
		Algorithm:        "token_sort_ratio",
	})
}

func ownerRecord(name, parcel, address string) model.Record {
	return model.FromMap(map[string]any{
		"owner_name":       name,
		"parcel_id":        parcel,
		"property_address": address,
	})
}

func TestTokenSortRatio_WordOrder(t *testing.T) {
	// Token sorting makes word order irrelevant.
	assert.InDelta(t, 100, tokenSortRatio("JOHN SMITH", "SMITH JOHN"), 0.01)
}

func TestTokenSortRatio_CaseInsensitive(t *testing.T) {
	assert.InDelta(t, 100, tokenSortRatio("john smith", "JOHN SMITH"), 0.01)
}

func TestTokenSortRatio_Different(t *testing.T) {
	score := tokenSortRatio("JOHN SMITH", "JANE WILLIAMSON")
	assert.Less(t, score, 90.0)
}

func TestRatio_Empty(t *testing.T) {
	assert.InDelta(t, 100, ratio("", ""), 0.01)
}

func TestIsDuplicatePair_NameOnly(t *testing.T) {
	d := testDeduplicator(t)
	a := ownerRecord("John Smith", "", "")
	b := ownerRecord("Smith John", "", "")
	assert.True(t, d.IsDuplicatePair(a, b))
}

func TestIsDuplicatePair_MissingNameNeverMatches(t *testing.T) {
	d := testDeduplicator(t)
	a := ownerRecord("", "", "123 MAIN ST")
	b := ownerRecord("", "", "123 MAIN ST")
	assert.False(t, d.IsDuplicatePair(a, b))
}

func TestIsDuplicatePair_AddressGate(t *testing.T) {
	d := testDeduplicator(t)
	a := ownerRecord("John Smith", "", "123 MAIN ST")
	b := ownerRecord("John Smith", "", "999 ELM AVE")
	// Names identical but both addresses present and dissimilar.
	assert.False(t, d.IsDuplicatePair(a, b))
}

func TestIsDuplicatePair_OneAddressMissing(t *testing.T) {
	d := testDeduplicator(t)
	a := ownerRecord("John Smith", "", "123 MAIN ST")
	b := ownerRecord("John Smith", "", "")
	// With one address missing, the name decides alone.
	assert.True(t, d.IsDuplicatePair(a, b))
}

func TestFindDuplicates_ExactPass(t *testing.T) {
	d := testDeduplicator(t)
	records := []model.Record{
		ownerRecord("John Smith", "1234", "123 MAIN ST"),
		ownerRecord("J Smith", "1234", "123 MAIN STREET"),
		ownerRecord("Jane Doe", "9999", "1 OAK DR"),
	}

	unique, groups := d.FindDuplicates(records, true, false)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
	assert.Len(t, unique, 1)
	assert.Equal(t, "Jane Doe", unique[0].OwnerName)
}

func TestFindDuplicates_ExactSkipsMissingKey(t *testing.T) {
	d := testDeduplicator(t)
	records := []model.Record{
		ownerRecord("John Smith", "", "123 MAIN ST"),
		ownerRecord("Mary Jones", "", "5 PINE RD"),
	}

	unique, groups := d.FindDuplicates(records, true, false)
	assert.Empty(t, groups)
	assert.Len(t, unique, 2)
}

func TestFindDuplicates_FuzzyPass(t *testing.T) {
	d := testDeduplicator(t)
	records := []model.Record{
		ownerRecord("John Smith", "1111", "123 MAIN ST"),
		ownerRecord("Smith John", "2222", "123 MAIN ST"),
		ownerRecord("Totally Different Person", "3333", "99 OTHER LN"),
	}

	unique, groups := d.FindDuplicates(records, false, true)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
	assert.Len(t, unique, 1)
}

func TestFindDuplicates_AnchorNotTransitive(t *testing.T) {
	d := testDeduplicator(t)
	// B matches anchor A; C matches B but not A. The anchor pass claims
	// A and B, leaving C unique rather than chaining through B.
	a := ownerRecord("JOHN SMITH", "", "")
	b := ownerRecord("JOHN SMITHE", "", "")
	c := ownerRecord("JOHN SMITHEE", "", "")
	require.True(t, d.IsDuplicatePair(a, b))
	require.True(t, d.IsDuplicatePair(b, c))
	require.False(t, d.IsDuplicatePair(a, c))

	unique, groups := d.FindDuplicates([]model.Record{a, b, c}, false, true)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
	assert.Len(t, unique, 1)
}

func TestMergeGroup_MostComplete(t *testing.T) {
	group := []model.Record{
		ownerRecord("J Smith", "1234", ""),
		ownerRecord("John Smith", "1234", "123 MAIN ST"),
	}
	group[0].SetValue("deed_book", "DB-7")

	merged := MergeGroup(group, "most_complete")
	assert.Equal(t, "John Smith", merged.OwnerName)
	assert.Equal(t, "123 MAIN ST", merged.PropertyAddress)
	assert.Equal(t, "DB-7", merged.Value("deed_book"))
	assert.True(t, merged.IsMerged)
	assert.Equal(t, 2, merged.DuplicateCount)
}

func TestBestValue_FirstValueDecidesType(t *testing.T) {
	a := ownerRecord("A Owner", "1", "")
	a.SetValue("deed_book", "DB-7")
	b := ownerRecord("A Owner", "1", "")
	b.SetValue("deed_book", 42)

	// A leading string keeps the longest-string comparison even when a
	// later value is not a string; a leading non-string wins outright.
	assert.Equal(t, "DB-7", bestValue([]model.Record{a, b}, "deed_book"))
	assert.Equal(t, 42, bestValue([]model.Record{b, a}, "deed_book"))
}

func TestMergeGroup_FirstAndLast(t *testing.T) {
	group := []model.Record{
		ownerRecord("First Owner", "1", ""),
		ownerRecord("Last Owner", "2", ""),
	}

	first := MergeGroup(group, "first")
	assert.Equal(t, "First Owner", first.OwnerName)
	assert.True(t, first.IsMerged)

	last := MergeGroup(group, "last")
	assert.Equal(t, "Last Owner", last.OwnerName)
}

func TestMergeGroup_Empty(t *testing.T) {
	merged := MergeGroup(nil, "most_complete")
	assert.False(t, merged.IsMerged)
}

func TestDeduplicateAndMerge(t *testing.T) {
	d := testDeduplicator(t)
	records := []model.Record{
		ownerRecord("John Smith", "1234", "123 MAIN ST"),
		ownerRecord("J Smith", "1234", ""),
		ownerRecord("Jane Doe", "9999", "1 OAK DR"),
	}

	out, duplicates := d.DeduplicateAndMerge(records, "most_complete", true, true)
	// One unique plus one merged group record.
	assert.Len(t, out, 2)
	assert.Len(t, duplicates, 2)
}

func TestSimilarityScores(t *testing.T) {
	d := testDeduplicator(t)
	a := ownerRecord("John Smith", "", "123 MAIN ST")
	b := ownerRecord("Smith John", "", "123 MAIN ST")

	scores := d.SimilarityScores(a, b)
	assert.InDelta(t, 100, scores["owner_name"], 0.01)
	assert.InDelta(t, 100, scores["property_address"], 0.01)
	_, hasMailing := scores["mailing_address"]
	assert.False(t, hasMailing)
}

func TestSummarizeDuplicates(t *testing.T) {
	groups := [][]model.Record{
		{ownerRecord("A", "1", ""), ownerRecord("A", "1", "")},
		{ownerRecord("B", "2", ""), ownerRecord("B", "2", ""), ownerRecord("B", "2", "")},
	}

	stats := SummarizeDuplicates(groups)
	assert.Equal(t, 2, stats.Groups)
	assert.Equal(t, 5, stats.TotalRecords)
	assert.InDelta(t, 2.5, stats.AvgGroupSize, 0.01)
	assert.Equal(t, 2, stats.MinGroupSize)
	assert.Equal(t, 3, stats.MaxGroupSize)
}

func TestSummarizeDuplicates_Empty(t *testing.T) {
	stats := SummarizeDuplicates(nil)
	assert.Equal(t, 0, stats.Groups)
	assert.Equal(t, 0.0, stats.AvgGroupSize)
}
