package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// lastFirstSuffixes guards the "LAST, FIRST" rewrite: a name containing one
// of these tokens is treated as a business entity, not a person.
var lastFirstSuffixes = []string{"LLC", "CORP", "INC", "TRUST", "LP", "LLP"}

// suffixVariants holds the compiled patterns for one entity suffix: bare
// ("LLC"), dotted ("L.L.C."), and spaced ("L L C").
type suffixVariants struct {
	canonical string
	patterns  []*regexp.Regexp
}

type streetReplacement struct {
	pattern *regexp.Regexp
	abbrev  string
}

// Cleaner applies deterministic field-level normalization to records. Every
// transformation is independently toggleable via configuration.
type Cleaner struct {
	name     config.NameRules
	address  config.AddressRules
	suffixes []suffixVariants
	streets  []streetReplacement
}

// NewCleaner precompiles the suffix and street-abbreviation patterns.
func NewCleaner(name config.NameRules, address config.AddressRules) *Cleaner {
	c := &Cleaner{name: name, address: address}

	for _, suffix := range name.EntitySuffixes {
		letters := strings.Split(suffix, "")
		c.suffixes = append(c.suffixes, suffixVariants{
			canonical: suffix,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(suffix) + `\b`),
				regexp.MustCompile(`(?i)\b` + strings.Join(letters, `\.`) + `\.?`),
				regexp.MustCompile(`(?i)\b` + strings.Join(letters, ` `) + `\b`),
			},
		})
	}

	// Deterministic replacement order; the whole-word patterns are
	// mutually independent anyway.
	words := make([]string, 0, len(address.StreetAbbreviations))
	for word := range address.StreetAbbreviations {
		words = append(words, word)
	}
	sort.Strings(words)
	for _, word := range words {
		c.streets = append(c.streets, streetReplacement{
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			abbrev:  address.StreetAbbreviations[word],
		})
	}

	return c
}

// CleanRecord normalizes a record's name, address, city, state, and zip
// fields. The input is not mutated.
func (c *Cleaner) CleanRecord(rec model.Record) model.Record {
	cleaned := rec.Clone()

	cleaned.SetValue(model.FieldOwnerName, c.NormalizeOwnerName(stringField(rec, model.FieldOwnerName)))
	cleaned.SetValue(model.FieldPropertyAddress, c.NormalizeAddress(stringField(rec, model.FieldPropertyAddress)))
	cleaned.SetValue(model.FieldMailingAddress, c.NormalizeAddress(stringField(rec, model.FieldMailingAddress)))
	cleaned.SetValue(model.FieldCity, c.NormalizeCity(stringField(rec, model.FieldCity)))
	cleaned.SetValue(model.FieldState, c.NormalizeState(stringField(rec, model.FieldState)))
	cleaned.SetValue(model.FieldZipCode, c.NormalizeZip(stringField(rec, model.FieldZipCode)))

	return cleaned
}

// stringField returns the field as a string, or "" for missing or
// non-string values. Normalizers never raise on bad input.
func stringField(rec model.Record, key string) string {
	s, _ := rec.Value(key).(string)
	return s
}

// NormalizeOwnerName rewrites "LAST, FIRST" person names, canonicalizes
// entity suffix variants, and title-cases the result while preserving
// suffixes and short all-caps acronyms.
func (c *Cleaner) NormalizeOwnerName(name string) string {
	if name == "" {
		return ""
	}

	if c.name.CollapseSpaces {
		name = collapseSpaces(name)
	}
	if c.name.ConvertLastFirst {
		name = convertLastFirst(name)
	}
	if len(c.name.EntitySuffixes) > 0 {
		name = c.normalizeEntitySuffix(name)
	}
	if c.name.TitleCase {
		name = c.titleCase(name)
	}

	return strings.TrimSpace(collapseSpaces(name))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// convertLastFirst turns "SMITH, JOHN" into "JOHN SMITH". Names containing
// an entity suffix token are left alone; companies use commas differently.
func convertLastFirst(name string) string {
	if !strings.Contains(name, ",") {
		return name
	}
	upper := strings.ToUpper(name)
	for _, suffix := range lastFirstSuffixes {
		if strings.Contains(upper, suffix) {
			return name
		}
	}
	parts := strings.SplitN(name, ",", 2)
	last := strings.TrimSpace(parts[0])
	first := strings.TrimSpace(parts[1])
	return first + " " + last
}

// normalizeEntitySuffix replaces dotted, spaced, and bare suffix variants
// with the canonical uppercase token. A replacement uppercases the whole
// name; the title-case step re-cases the other words afterwards.
func (c *Cleaner) normalizeEntitySuffix(name string) string {
	upper := strings.ToUpper(name)
	for _, sv := range c.suffixes {
		for _, pattern := range sv.patterns {
			if pattern.MatchString(upper) {
				name = pattern.ReplaceAllString(upper, sv.canonical)
				upper = name
				break
			}
		}
	}
	return name
}

// titleCase title-cases each word, keeping entity suffixes fully uppercase
// and preserving words of three or fewer characters that are already all
// uppercase (acronyms).
func (c *Cleaner) titleCase(name string) string {
	keepUpper := make(map[string]bool, len(c.name.EntitySuffixes)+3)
	for _, suffix := range c.name.EntitySuffixes {
		keepUpper[suffix] = true
	}
	for _, suffix := range []string{"LLC", "LP", "LLP"} {
		keepUpper[suffix] = true
	}

	caser := cases.Title(language.AmericanEnglish)
	words := strings.Fields(name)
	for i, word := range words {
		upper := strings.ToUpper(word)
		switch {
		case keepUpper[upper]:
			words[i] = upper
		case len(word) <= 3 && isUpperWord(word):
			// short acronym, keep as-is
		default:
			words[i] = caser.String(strings.ToLower(word))
		}
	}
	return strings.Join(words, " ")
}

// isUpperWord reports whether the word contains at least one letter and no
// lowercase letters.
func isUpperWord(word string) bool {
	hasLetter := false
	for _, r := range word {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// NormalizeAddress uppercases the address and standardizes whole-word
// street-type tokens (STREET → ST, AVENUE → AVE, ...).
func (c *Cleaner) NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}

	if c.address.CollapseSpaces {
		address = collapseSpaces(address)
	}
	if c.address.Uppercase {
		address = strings.ToUpper(address)
	}
	for _, sr := range c.streets {
		address = sr.pattern.ReplaceAllString(address, sr.abbrev)
	}

	return strings.TrimSpace(collapseSpaces(address))
}

// NormalizeCity collapses whitespace and title-cases the city name.
func (c *Cleaner) NormalizeCity(city string) string {
	if city == "" {
		return ""
	}
	caser := cases.Title(language.AmericanEnglish)
	return strings.TrimSpace(caser.String(strings.ToLower(collapseSpaces(city))))
}

// NormalizeState uppercases the state, maps known full names to two-letter
// codes, and truncates anything longer than two characters.
func (c *Cleaner) NormalizeState(state string) string {
	if state == "" {
		return ""
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	if abbrev, ok := c.address.StateNames[state]; ok {
		state = abbrev
	}
	if len(state) > 2 {
		state = state[:2]
	}
	return state
}

// NormalizeZip reduces a zip code to the 5-digit or 5+4 form: strips
// non-digit/non-hyphen characters, pads short values with leading zeros,
// inserts the hyphen into 9 contiguous digits, and truncates malformed
// remainders to the first five digits.
func (c *Cleaner) NormalizeZip(zip string) string {
	if zip == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range zip {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	z := strings.Trim(b.String(), "-")

	if strings.Contains(z, "-") {
		parts := strings.SplitN(z, "-", 2)
		main := zfill(parts[0], 5)
		if len(main) > 5 {
			main = main[:5]
		}
		ext := strings.ReplaceAll(parts[1], "-", "")
		if len(ext) > 4 {
			ext = ext[:4]
		}
		ext += strings.Repeat("0", 4-len(ext))
		return main + "-" + ext
	}

	switch {
	case len(z) == 9:
		return z[:5] + "-" + z[5:]
	case len(z) <= 5:
		return zfill(z, 5)
	default:
		return z[:5]
	}
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// CleanBatch cleans every record, isolating failures: if cleaning one
// record panics, the original record is kept and the batch continues.
func (c *Cleaner) CleanBatch(records []model.Record) []model.Record {
	cleaned := make([]model.Record, 0, len(records))
	for i, rec := range records {
		cleaned = append(cleaned, c.cleanSafely(i, rec))
	}
	zap.L().Info("clean: batch complete", zap.Int("records", len(cleaned)))
	return cleaned
}

func (c *Cleaner) cleanSafely(index int, rec model.Record) (out model.Record) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("clean: record failed, keeping original",
				zap.Int("index", index),
				zap.Any("panic", r),
			)
			out = rec
		}
	}()
	return c.CleanRecord(rec)
}
