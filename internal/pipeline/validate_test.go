package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(config.ValidationConfig{
		RequiredFields: []string{"owner_name", "property_address", "source", "extracted_at"},
		FieldTypes: map[string]string{
			"owner_name":     "string",
			"assessed_value": "number",
			"zip_code":       "string",
		},
		Patterns: map[string]string{
			"zip_code": `^\d{5}(-\d{4})?$`,
			"state":    `^[A-Z]{2}$`,
		},
	})
	require.NoError(t, err)
	return v
}

func validRecord() model.Record {
	return model.FromMap(map[string]any{
		"owner_name":       "John Smith",
		"property_address": "123 MAIN ST",
		"source":           "wake_county",
		"extracted_at":     "2026-08-01T00:00:00Z",
	})
}

func TestValidateRecord_Valid(t *testing.T) {
	v := testValidator(t)
	ok, errs := v.ValidateRecord(validRecord(), false)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateRecord_MissingRequired(t *testing.T) {
	v := testValidator(t)
	rec := validRecord()
	rec.OwnerName = ""

	ok, errs := v.ValidateRecord(rec, false)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "owner_name")
}

func TestValidateRecord_TypeErrorToleratedNonStrict(t *testing.T) {
	v := testValidator(t)
	rec := validRecord()
	// A non-numeric assessed value survives coercion only as an extra.
	rec.SetValue("assessed_value", "not a number")

	ok, errs := v.ValidateRecord(rec, false)
	assert.True(t, ok, "type errors should not reject in non-strict mode")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid type")
}

func TestValidateRecord_TypeErrorRejectsStrict(t *testing.T) {
	v := testValidator(t)
	rec := validRecord()
	rec.SetValue("assessed_value", "not a number")

	ok, _ := v.ValidateRecord(rec, true)
	assert.False(t, ok)
}

func TestValidateRecord_PatternErrors(t *testing.T) {
	v := testValidator(t)
	rec := validRecord()
	rec.ZipCode = "2761"

	ok, errs := v.ValidateRecord(rec, false)
	assert.True(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "zip_code")

	ok, _ = v.ValidateRecord(rec, true)
	assert.False(t, ok)
}

func TestValidateRecord_PatternSkipsEmpty(t *testing.T) {
	v := testValidator(t)
	rec := validRecord()
	rec.ZipCode = ""

	ok, errs := v.ValidateRecord(rec, true)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateBatch_SplitsValidAndInvalid(t *testing.T) {
	v := testValidator(t)
	bad := validRecord()
	bad.OwnerName = "  "

	valid, invalid := v.ValidateBatch([]model.Record{validRecord(), bad, validRecord()}, false, false)
	assert.Len(t, valid, 2)
	require.Len(t, invalid, 1)
	assert.Equal(t, 1, invalid[0].Index)
}

func TestValidateBatch_StopOnError(t *testing.T) {
	v := testValidator(t)
	bad := validRecord()
	bad.OwnerName = ""

	valid, invalid := v.ValidateBatch([]model.Record{bad, validRecord()}, false, true)
	assert.Empty(t, valid)
	assert.Len(t, invalid, 1)
}

func TestValidateField(t *testing.T) {
	v := testValidator(t)

	ok, _ := v.ValidateField("zip_code", "27601", true, true)
	assert.True(t, ok)

	ok, errs := v.ValidateField("zip_code", "abc", true, true)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestIsRequiredField(t *testing.T) {
	v := testValidator(t)
	assert.True(t, v.IsRequiredField("owner_name"))
	assert.False(t, v.IsRequiredField("sale_price"))
}

func TestSummarize(t *testing.T) {
	invalid := []InvalidRecord{
		{Errors: []string{"missing required field: owner_name", "missing required field: source"}},
		{Errors: []string{"missing required field: owner_name"}},
	}

	summary := Summarize(invalid)
	assert.Equal(t, 2, summary.TotalInvalid)
	assert.Equal(t, 3, summary.ErrorCounts["missing required field"])
	require.NotEmpty(t, summary.MostCommon)
	assert.Equal(t, "missing required field", summary.MostCommon[0])
}

func TestNewValidator_BadPattern(t *testing.T) {
	_, err := NewValidator(config.ValidationConfig{
		Patterns: map[string]string{"zip_code": "["},
	})
	assert.Error(t, err)
}
