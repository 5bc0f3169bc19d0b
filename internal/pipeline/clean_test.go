package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

func testCleaner(t *testing.T) *Cleaner {
	t.Helper()
	return NewCleaner(
		config.NameRules{
			CollapseSpaces:   true,
			ConvertLastFirst: true,
			EntitySuffixes:   []string{"LLC", "CORP", "INC", "TRUST", "LP", "LLP", "CO"},
			TitleCase:        true,
		},
		config.AddressRules{
			CollapseSpaces: true,
			Uppercase:      true,
			StreetAbbreviations: map[string]string{
				"STREET": "ST", "AVENUE": "AVE", "BOULEVARD": "BLVD",
				"DRIVE": "DR", "ROAD": "RD", "NORTH": "N",
			},
			StateNames: map[string]string{
				"NORTH CAROLINA": "NC", "SOUTH CAROLINA": "SC",
			},
		},
	)
}

func TestNormalizeOwnerName_LastFirst(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "John Smith", c.NormalizeOwnerName("SMITH, JOHN"))
}

func TestNormalizeOwnerName_EntitySuffixVariants(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "Acme LLC", c.NormalizeOwnerName("Acme L.L.C."))
	assert.Equal(t, "Acme LLC", c.NormalizeOwnerName("acme llc"))
	assert.Equal(t, "Acme LLC", c.NormalizeOwnerName("ACME L L C"))
}

func TestNormalizeOwnerName_CommaWithSuffixNotSwapped(t *testing.T) {
	c := testCleaner(t)
	// The comma belongs to the entity name, not a LAST, FIRST person.
	got := c.NormalizeOwnerName("SMITH HOLDINGS, LLC")
	assert.Equal(t, "Smith Holdings, LLC", got)
}

func TestNormalizeOwnerName_SuffixSubstringGuard(t *testing.T) {
	c := testCleaner(t)
	// "PRINCE" contains "INC", so the guard treats this as an entity and
	// skips the swap even though it reads like a person's name.
	got := c.NormalizeOwnerName("PRINCE, JOHN")
	assert.NotEqual(t, "John Prince", got)
}

func TestNormalizeOwnerName_AcronymPreserved(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "ABC Properties", c.NormalizeOwnerName("ABC properties"))
}

func TestNormalizeOwnerName_CollapsesWhitespace(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "John Smith", c.NormalizeOwnerName("  john    smith "))
}

func TestNormalizeOwnerName_Empty(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "", c.NormalizeOwnerName(""))
}

func TestNormalizeAddress_StreetTypes(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "123 MAIN ST", c.NormalizeAddress("123 Main Street"))
	assert.Equal(t, "45 OAK AVE", c.NormalizeAddress("45 oak avenue"))
	assert.Equal(t, "9 N ELM BLVD", c.NormalizeAddress("9 North Elm Boulevard"))
}

func TestNormalizeAddress_WholeWordOnly(t *testing.T) {
	c := testCleaner(t)
	// STREETER must not become STER.
	assert.Equal(t, "10 STREETER DR", c.NormalizeAddress("10 Streeter Drive"))
}

func TestNormalizeCity(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "Chapel Hill", c.NormalizeCity("CHAPEL   HILL"))
}

func TestNormalizeState(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "NC", c.NormalizeState("north carolina"))
	assert.Equal(t, "NC", c.NormalizeState(" nc "))
	assert.Equal(t, "NO", c.NormalizeState("NOWHERE"))
}

func TestNormalizeZip(t *testing.T) {
	c := testCleaner(t)
	assert.Equal(t, "00123", c.NormalizeZip("123"))
	assert.Equal(t, "27599-1234", c.NormalizeZip("275991234"))
	assert.Equal(t, "27599-1200", c.NormalizeZip("27599-12"))
	assert.Equal(t, "27610", c.NormalizeZip(" 27610 "))
	assert.Equal(t, "27610", c.NormalizeZip("27610-"))
	assert.Equal(t, "", c.NormalizeZip(""))
}

func TestNormalizeZip_Truncates(t *testing.T) {
	c := testCleaner(t)
	// More than 9 digits and no hyphen: keep the first five.
	assert.Equal(t, "12345", c.NormalizeZip("12345678901"))
}

func TestCleanRecord_Idempotent(t *testing.T) {
	c := testCleaner(t)
	rec := model.FromMap(map[string]any{
		"owner_name":       "SMITH, JOHN",
		"property_address": "123 Main Street",
		"city":             "raleigh",
		"state":            "North Carolina",
		"zip_code":         "276011234",
	})

	once := c.CleanRecord(rec)
	twice := c.CleanRecord(once)

	assert.Equal(t, "John Smith", once.OwnerName)
	assert.Equal(t, "123 MAIN ST", once.PropertyAddress)
	assert.Equal(t, "Raleigh", once.City)
	assert.Equal(t, "NC", once.State)
	assert.Equal(t, "27601-1234", once.ZipCode)
	assert.Equal(t, once, twice)
}

func TestCleanRecord_DoesNotMutateInput(t *testing.T) {
	c := testCleaner(t)
	rec := model.FromMap(map[string]any{"owner_name": "SMITH, JOHN"})

	_ = c.CleanRecord(rec)
	assert.Equal(t, "SMITH, JOHN", rec.OwnerName)
}

func TestCleanBatch_KeepsCount(t *testing.T) {
	c := testCleaner(t)
	records := []model.Record{
		model.FromMap(map[string]any{"owner_name": "SMITH, JOHN"}),
		model.FromMap(map[string]any{"owner_name": "DOE, JANE"}),
	}

	cleaned := c.CleanBatch(records)
	require.Len(t, cleaned, 2)
	assert.Equal(t, "John Smith", cleaned[0].OwnerName)
	// DOE stays uppercase: short all-caps words are kept as acronyms.
	assert.Equal(t, "Jane DOE", cleaned[1].OwnerName)
}
