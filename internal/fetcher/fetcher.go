// Package fetcher collects property-ownership records from external
// sources and maps them to the standard schema. Nothing downstream of this
// package ever sees a source-native field name.
package fetcher

import (
	"context"

	"github.com/sells-group/property-cli/internal/model"
)

// Source names used in record provenance.
const (
	SourceWake   = "wake_county"
	SourceOrange = "orange_county"
)

// Source is a record provider. Fetch returns at most limit records; a limit
// of 0 or less means the source's configured default.
type Source interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]model.Record, error)
}

// capRecords truncates a record slice to the limit, when one applies.
func capRecords(records []model.Record, limit int) []model.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
