package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_KnownFields(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name":     "John Smith",
		"parcel_id":      "1234",
		"assessed_value": 250000.0,
		"sale_price":     300000,
	})

	assert.Equal(t, "John Smith", rec.OwnerName)
	assert.Equal(t, "1234", rec.ParcelID)
	require.NotNil(t, rec.AssessedValue)
	assert.Equal(t, 250000.0, *rec.AssessedValue)
	require.NotNil(t, rec.SalePrice)
	assert.Equal(t, 300000.0, *rec.SalePrice)
}

func TestFromMap_CoercionFailureGoesToExtra(t *testing.T) {
	rec := FromMap(map[string]any{
		"assessed_value": "not a number",
		"owner_name":     42,
	})

	assert.Nil(t, rec.AssessedValue)
	assert.Equal(t, "", rec.OwnerName)
	assert.Equal(t, "not a number", rec.Extra["assessed_value"])
	assert.Equal(t, 42, rec.Extra["owner_name"])
}

func TestFromMap_UnknownKeysGoToExtra(t *testing.T) {
	rec := FromMap(map[string]any{"deed_book": "DB-42"})
	assert.Equal(t, "DB-42", rec.Extra["deed_book"])
}

func TestFromMap_NilValuesDropped(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name": nil,
		"sale_price": nil,
		"deed_book":  nil,
	})
	assert.Equal(t, "", rec.OwnerName)
	assert.Nil(t, rec.SalePrice)
	assert.Empty(t, rec.Extra)
}

func TestValue(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name":     "John Smith",
		"assessed_value": 250000.0,
		"deed_book":      "DB-42",
	})

	assert.Equal(t, "John Smith", rec.Value("owner_name"))
	assert.Equal(t, 250000.0, rec.Value("assessed_value"))
	assert.Equal(t, "DB-42", rec.Value("deed_book"))
	assert.Equal(t, "", rec.Value("city"))
	assert.Nil(t, rec.Value("sale_price"))
	assert.Nil(t, rec.Value("nonexistent"))
}

func TestValue_ExtraShadowsKnownField(t *testing.T) {
	rec := FromMap(map[string]any{"assessed_value": "bad"})
	assert.Equal(t, "bad", rec.Value("assessed_value"))
}

func TestSetValue_ClearsShadow(t *testing.T) {
	rec := FromMap(map[string]any{"assessed_value": "bad"})
	rec.SetValue("assessed_value", 100.0)

	assert.Equal(t, 100.0, rec.Value("assessed_value"))
	_, shadowed := rec.Extra["assessed_value"]
	assert.False(t, shadowed)
}

func TestHasField(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name": "John Smith",
		"city":       "   ",
	})
	assert.True(t, rec.HasField("owner_name"))
	assert.False(t, rec.HasField("city"))
	assert.False(t, rec.HasField("sale_price"))
}

func TestFieldKeys_Order(t *testing.T) {
	rec := FromMap(map[string]any{
		"parcel_id":  "1234",
		"owner_name": "John Smith",
		"zeta":       1,
		"alpha":      2,
	})

	keys := rec.FieldKeys()
	require.Len(t, keys, 4)
	// Standard fields first in priority order, then extras sorted.
	assert.Equal(t, []string{"owner_name", "parcel_id", "alpha", "zeta"}, keys)
}

func TestClone_DeepCopy(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name":     "John Smith",
		"assessed_value": 100.0,
		"deed_book":      "DB-42",
	})

	clone := rec.Clone()
	clone.OwnerName = "Changed"
	*clone.AssessedValue = 999
	clone.Extra["deed_book"] = "other"

	assert.Equal(t, "John Smith", rec.OwnerName)
	assert.Equal(t, 100.0, *rec.AssessedValue)
	assert.Equal(t, "DB-42", rec.Extra["deed_book"])
}

func TestToMap(t *testing.T) {
	rec := FromMap(map[string]any{
		"owner_name": "John Smith",
		"deed_book":  "DB-42",
	})

	m := rec.ToMap()
	assert.Equal(t, "John Smith", m["owner_name"])
	assert.Equal(t, "DB-42", m["deed_book"])
	// All standard keys present even when unset.
	assert.Contains(t, m, "parcel_id")
	// Derived fields gated on being set.
	assert.NotContains(t, m, "quality_score")
	assert.NotContains(t, m, "is_merged")

	rec.EnrichedAt = "2026-08-15T12:00:00Z"
	rec.QualityScore = 85
	rec.QualityLevel = "High"
	rec.IsMerged = true
	rec.DuplicateCount = 2

	m = rec.ToMap()
	assert.Equal(t, 85.0, m["quality_score"])
	assert.Equal(t, "High", m["quality_level"])
	assert.Equal(t, true, m["is_merged"])
	assert.Equal(t, 2, m["duplicate_count"])
}

func TestIsEmptyValue(t *testing.T) {
	assert.True(t, IsEmptyValue(nil))
	assert.True(t, IsEmptyValue(""))
	assert.True(t, IsEmptyValue("   "))
	assert.False(t, IsEmptyValue("x"))
	assert.False(t, IsEmptyValue(0.0))
	assert.False(t, IsEmptyValue(false))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "hello", FormatValue("hello"))
	assert.Equal(t, "250000", FormatValue(250000.0))
	assert.Equal(t, "1234.5", FormatValue(1234.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "false", FormatValue(false))
	assert.Equal(t, "7", FormatValue(7))
}
