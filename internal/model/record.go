// Package model defines the standard property-record schema shared by the
// fetchers, the reconciliation pipeline, and the exporters.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Standard schema field keys. Fetchers map source-native attribute names to
// these keys before records enter the pipeline.
const (
	FieldOwnerName       = "owner_name"
	FieldParcelID        = "parcel_id"
	FieldPropertyAddress = "property_address"
	FieldMailingAddress  = "mailing_address"
	FieldCity            = "city"
	FieldState           = "state"
	FieldZipCode         = "zip_code"
	FieldCounty          = "county"
	FieldAssessedValue   = "assessed_value"
	FieldSaleDate        = "sale_date"
	FieldSalePrice       = "sale_price"
	FieldSource          = "source"
	FieldSourceURL       = "source_url"
	FieldExtractedAt     = "extracted_at"
)

// StandardFields lists the schema keys in export priority order.
var StandardFields = []string{
	FieldOwnerName,
	FieldParcelID,
	FieldPropertyAddress,
	FieldCity,
	FieldState,
	FieldZipCode,
	FieldCounty,
	FieldMailingAddress,
	FieldAssessedValue,
	FieldSaleDate,
	FieldSalePrice,
	FieldSource,
	FieldSourceURL,
	FieldExtractedAt,
}

// Record is a single property-ownership record. Known schema fields are
// typed; Extra carries unanticipated keys (and values that failed coercion
// for a known key) so that merges never drop data.
type Record struct {
	OwnerName       string   `json:"owner_name,omitempty"`
	ParcelID        string   `json:"parcel_id,omitempty"`
	PropertyAddress string   `json:"property_address,omitempty"`
	MailingAddress  string   `json:"mailing_address,omitempty"`
	City            string   `json:"city,omitempty"`
	State           string   `json:"state,omitempty"`
	ZipCode         string   `json:"zip_code,omitempty"`
	County          string   `json:"county,omitempty"`
	AssessedValue   *float64 `json:"assessed_value,omitempty"`
	SaleDate        string   `json:"sale_date,omitempty"`
	SalePrice       *float64 `json:"sale_price,omitempty"`

	Source      string `json:"source,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	ExtractedAt string `json:"extracted_at,omitempty"`

	// Derived fields, added by the merger, deduplicator, and enricher.
	QualityScore        float64 `json:"quality_score,omitempty"`
	QualityLevel        string  `json:"quality_level,omitempty"`
	CompletenessPercent float64 `json:"completeness_percent,omitempty"`
	EnrichedAt          string  `json:"enriched_at,omitempty"`
	QualityRank         int     `json:"quality_rank,omitempty"`
	IsMerged            bool    `json:"is_merged,omitempty"`
	DuplicateCount      int     `json:"duplicate_count,omitempty"`
	IsCrossSourceMerged bool    `json:"is_cross_source_merged,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// FromMap builds a Record from a loosely-typed field map. Values that cannot
// be coerced to the known field's type are preserved under the same key in
// Extra, where the validator's type check will report them.
func FromMap(fields map[string]any) Record {
	var r Record
	for key, value := range fields {
		r.setAny(key, value)
	}
	return r
}

func (r *Record) setAny(key string, value any) {
	switch key {
	case FieldOwnerName, FieldParcelID, FieldPropertyAddress, FieldMailingAddress,
		FieldCity, FieldState, FieldZipCode, FieldCounty, FieldSaleDate,
		FieldSource, FieldSourceURL, FieldExtractedAt:
		if s, ok := value.(string); ok {
			r.setString(key, s)
			return
		}
		if value == nil {
			return
		}
	case FieldAssessedValue:
		if f, ok := toFloat(value); ok {
			r.AssessedValue = f
			return
		}
	case FieldSalePrice:
		if f, ok := toFloat(value); ok {
			r.SalePrice = f
			return
		}
	default:
		if value == nil {
			return
		}
		r.putExtra(key, value)
		return
	}
	r.putExtra(key, value)
}

func (r *Record) setString(key, s string) {
	switch key {
	case FieldOwnerName:
		r.OwnerName = s
	case FieldParcelID:
		r.ParcelID = s
	case FieldPropertyAddress:
		r.PropertyAddress = s
	case FieldMailingAddress:
		r.MailingAddress = s
	case FieldCity:
		r.City = s
	case FieldState:
		r.State = s
	case FieldZipCode:
		r.ZipCode = s
	case FieldCounty:
		r.County = s
	case FieldSaleDate:
		r.SaleDate = s
	case FieldSource:
		r.Source = s
	case FieldSourceURL:
		r.SourceURL = s
	case FieldExtractedAt:
		r.ExtractedAt = s
	}
}

func (r *Record) putExtra(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// toFloat coerces numeric values to *float64. nil is accepted (numeric
// fields are nullable). Strings are not coerced; they surface as type errors.
func toFloat(v any) (*float64, bool) {
	switch n := v.(type) {
	case nil:
		return nil, true
	case float64:
		return &n, true
	case float32:
		f := float64(n)
		return &f, true
	case int:
		f := float64(n)
		return &f, true
	case int32:
		f := float64(n)
		return &f, true
	case int64:
		f := float64(n)
		return &f, true
	}
	return nil, false
}

// Value returns the record's value for a field key. Extra shadows known
// fields because it only ever holds coercion failures for them. Unset string
// fields return "", unset numeric fields return nil.
func (r Record) Value(key string) any {
	if v, ok := r.Extra[key]; ok {
		return v
	}
	switch key {
	case FieldOwnerName:
		return r.OwnerName
	case FieldParcelID:
		return r.ParcelID
	case FieldPropertyAddress:
		return r.PropertyAddress
	case FieldMailingAddress:
		return r.MailingAddress
	case FieldCity:
		return r.City
	case FieldState:
		return r.State
	case FieldZipCode:
		return r.ZipCode
	case FieldCounty:
		return r.County
	case FieldAssessedValue:
		if r.AssessedValue == nil {
			return nil
		}
		return *r.AssessedValue
	case FieldSaleDate:
		return r.SaleDate
	case FieldSalePrice:
		if r.SalePrice == nil {
			return nil
		}
		return *r.SalePrice
	case FieldSource:
		return r.Source
	case FieldSourceURL:
		return r.SourceURL
	case FieldExtractedAt:
		return r.ExtractedAt
	}
	return nil
}

// SetValue assigns a field by key, coercing like FromMap.
func (r *Record) SetValue(key string, value any) {
	if r.Extra != nil {
		delete(r.Extra, key)
	}
	r.setAny(key, value)
}

// HasField reports whether the record carries a non-empty value for key.
// Empty strings and nil numerics count as absent.
func (r Record) HasField(key string) bool {
	return !IsEmptyValue(r.Value(key))
}

// FieldKeys returns every key with a non-empty value, standard schema keys
// first in priority order, then Extra keys sorted.
func (r Record) FieldKeys() []string {
	var keys []string
	for _, key := range StandardFields {
		if _, shadowed := r.Extra[key]; shadowed {
			continue // listed with the extras below
		}
		if r.HasField(key) {
			keys = append(keys, key)
		}
	}
	extras := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		extras = append(extras, key)
	}
	sort.Strings(extras)
	return append(keys, extras...)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.AssessedValue != nil {
		v := *r.AssessedValue
		out.AssessedValue = &v
	}
	if r.SalePrice != nil {
		v := *r.SalePrice
		out.SalePrice = &v
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ToMap flattens the record to a field map: all standard schema keys, any
// derived fields that have been set, and all extras.
func (r Record) ToMap() map[string]any {
	m := make(map[string]any, len(StandardFields)+len(r.Extra)+8)
	for _, key := range StandardFields {
		m[key] = r.Value(key)
	}
	if r.EnrichedAt != "" {
		m["quality_score"] = r.QualityScore
		m["quality_level"] = r.QualityLevel
		m["completeness_percent"] = r.CompletenessPercent
		m["enriched_at"] = r.EnrichedAt
	}
	if r.QualityRank > 0 {
		m["quality_rank"] = r.QualityRank
	}
	if r.IsMerged {
		m["is_merged"] = true
		m["duplicate_count"] = r.DuplicateCount
	}
	if r.IsCrossSourceMerged {
		m["is_cross_source_merged"] = true
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return m
}

// IsEmptyValue reports whether a field value counts as empty: nil, or a
// blank string. Zero numerics are NOT empty here; the enricher applies its
// own zero-is-absent rule for the two price fields.
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// FormatValue renders a field value for tabular export.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
