// Package pipeline implements the record reconciliation pipeline:
// validation, normalization, cross-source merging, deduplication, and
// quality enrichment over property-ownership records.
package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// Validator checks records against required fields, semantic field types,
// and regex patterns. Validation is pure computation and never fails
// fatally; problems come back as structured error lists.
type Validator struct {
	required   []string
	fieldTypes map[string]string
	patterns   map[string]*regexp.Regexp
}

// InvalidRecord pairs a rejected record with its position in the input
// batch and the errors that rejected it.
type InvalidRecord struct {
	Index  int
	Record model.Record
	Errors []string
}

// NewValidator compiles the configured patterns once up front.
func NewValidator(cfg config.ValidationConfig) (*Validator, error) {
	patterns := make(map[string]*regexp.Regexp, len(cfg.Patterns))
	for field, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: compile pattern for %s", field)
		}
		patterns[field] = re
	}
	return &Validator{
		required:   cfg.RequiredFields,
		fieldTypes: cfg.FieldTypes,
		patterns:   patterns,
	}, nil
}

// ValidateRecord validates a single record.
//
// In non-strict mode only missing/empty required fields reject a record;
// type and pattern violations are reported but tolerated, because fetched
// data is noisy and downstream cleaning prefers to keep
// partially-malformed-but-present records. In strict mode any error
// rejects.
func (v *Validator) ValidateRecord(rec model.Record, strict bool) (bool, []string) {
	var errs []string

	requiredErrs := v.checkRequired(rec)
	errs = append(errs, requiredErrs...)

	// Missing required fields reject unconditionally and, in non-strict
	// mode, short-circuit the remaining checks.
	if len(requiredErrs) > 0 && !strict {
		return false, errs
	}

	errs = append(errs, v.checkTypes(rec)...)
	errs = append(errs, v.checkPatterns(rec)...)

	if strict {
		return len(errs) == 0, errs
	}
	return len(requiredErrs) == 0, errs
}

func (v *Validator) checkRequired(rec model.Record) []string {
	var errs []string
	for _, field := range v.required {
		value := rec.Value(field)
		if value == nil {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field))
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("required field is empty: %s", field))
		}
	}
	return errs
}

func (v *Validator) checkTypes(rec model.Record) []string {
	fields := make([]string, 0, len(v.fieldTypes))
	for field := range v.fieldTypes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var errs []string
	for _, field := range fields {
		value := rec.Value(field)
		if value == nil {
			continue // absent or nullable; required check covers presence
		}
		if !typeMatches(v.fieldTypes[field], value) {
			errs = append(errs, fmt.Sprintf("field %q has invalid type: expected %s, got %T", field, v.fieldTypes[field], value))
		}
	}
	return errs
}

func typeMatches(kind string, value any) bool {
	switch kind {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	default:
		return true
	}
}

func (v *Validator) checkPatterns(rec model.Record) []string {
	fields := make([]string, 0, len(v.patterns))
	for field := range v.patterns {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var errs []string
	for _, field := range fields {
		value := rec.Value(field)
		if model.IsEmptyValue(value) {
			continue
		}
		s := strings.TrimSpace(model.FormatValue(value))
		if !v.patterns[field].MatchString(s) {
			errs = append(errs, fmt.Sprintf("field %q does not match required pattern: %s", field, s))
		}
	}
	return errs
}

// ValidateBatch splits records into valid and invalid. With stopOnError the
// batch stops after recording the first invalid record.
func (v *Validator) ValidateBatch(records []model.Record, strict, stopOnError bool) ([]model.Record, []InvalidRecord) {
	var valid []model.Record
	var invalid []InvalidRecord

	for idx, rec := range records {
		ok, errs := v.ValidateRecord(rec, strict)
		if ok {
			valid = append(valid, rec)
			continue
		}
		invalid = append(invalid, InvalidRecord{Index: idx, Record: rec, Errors: errs})
		if stopOnError {
			zap.L().Warn("validate: stopping batch at first invalid record", zap.Int("index", idx))
			break
		}
	}

	zap.L().Info("validate: batch complete",
		zap.Int("total", len(records)),
		zap.Int("valid", len(valid)),
		zap.Int("invalid", len(invalid)),
	)
	return valid, invalid
}

// FilterValid returns only the records that pass validation.
func (v *Validator) FilterValid(records []model.Record, strict bool) []model.Record {
	valid, invalid := v.ValidateBatch(records, strict, false)
	if len(invalid) > 0 {
		zap.L().Warn("validate: filtered out invalid records", zap.Int("count", len(invalid)))
		for _, inv := range invalid[:min(3, len(invalid))] {
			zap.L().Debug("validate: record errors",
				zap.Int("index", inv.Index),
				zap.Strings("errors", inv.Errors),
			)
		}
	}
	return valid
}

// ValidateField validates one field value in isolation.
func (v *Validator) ValidateField(field string, value any, checkType, checkPattern bool) (bool, []string) {
	var errs []string

	if checkType {
		if kind, ok := v.fieldTypes[field]; ok && value != nil {
			if !typeMatches(kind, value) {
				errs = append(errs, fmt.Sprintf("invalid type: expected %s, got %T", kind, value))
			}
		}
	}

	if checkPattern {
		if re, ok := v.patterns[field]; ok && !model.IsEmptyValue(value) {
			s := strings.TrimSpace(model.FormatValue(value))
			if !re.MatchString(s) {
				errs = append(errs, fmt.Sprintf("does not match required pattern: %s", s))
			}
		}
	}

	return len(errs) == 0, errs
}

// IsRequiredField reports whether the field is in the required set.
func (v *Validator) IsRequiredField(field string) bool {
	for _, f := range v.required {
		if f == field {
			return true
		}
	}
	return false
}

// ValidationSummary aggregates error types across a batch's invalid records.
type ValidationSummary struct {
	TotalInvalid int            `json:"total_invalid"`
	ErrorCounts  map[string]int `json:"error_counts"`
	MostCommon   []string       `json:"most_common_errors"`
}

// Summarize counts error categories (the part before the first colon) and
// reports the five most common.
func Summarize(invalid []InvalidRecord) ValidationSummary {
	summary := ValidationSummary{ErrorCounts: map[string]int{}}
	if len(invalid) == 0 {
		return summary
	}

	summary.TotalInvalid = len(invalid)
	for _, inv := range invalid {
		for _, e := range inv.Errors {
			kind := e
			if idx := strings.Index(e, ":"); idx >= 0 {
				kind = strings.TrimSpace(e[:idx])
			}
			summary.ErrorCounts[kind]++
		}
	}

	kinds := make([]string, 0, len(summary.ErrorCounts))
	for kind := range summary.ErrorCounts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if summary.ErrorCounts[kinds[i]] != summary.ErrorCounts[kinds[j]] {
			return summary.ErrorCounts[kinds[i]] > summary.ErrorCounts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	summary.MostCommon = kinds[:min(5, len(kinds))]

	return summary
}
