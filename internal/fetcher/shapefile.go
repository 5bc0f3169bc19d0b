package fetcher

import (
	"context"
	"strings"
	"time"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// ShapefileSource reads owner attributes out of a county parcel
// shapefile's DBF table. Geometry is ignored; only the attribute columns
// feed the pipeline.
type ShapefileSource struct {
	Path   string
	County string
	Label  string // source label; defaults to "parcel_shapefile"
	now    func() time.Time
}

func NewShapefileSource(path, county, label string) *ShapefileSource {
	if label == "" {
		label = "parcel_shapefile"
	}
	return &ShapefileSource{Path: path, County: county, Label: label, now: time.Now}
}

func (s *ShapefileSource) Name() string { return s.Label }

// shapefileFieldCandidates mirrors the XLSX aliases for DBF column names,
// which are uppercase and capped at 10 characters.
var shapefileFieldCandidates = map[string][]string{
	model.FieldOwnerName:       {"OWNER", "OWNER_NAME", "OWNNAME"},
	model.FieldParcelID:        {"PIN", "PIN_NUM", "PARCEL_ID", "PARCELID"},
	model.FieldPropertyAddress: {"SITE_ADDR", "SITEADDR", "ADDRESS", "PROP_ADDR"},
	model.FieldMailingAddress:  {"MAIL_ADDR", "MAILADDR", "ADDR1"},
	model.FieldCity:            {"CITY", "SITE_CITY"},
	model.FieldState:           {"STATE", "ST"},
	model.FieldZipCode:         {"ZIP", "ZIPNUM", "ZIP_CODE"},
	model.FieldAssessedValue:   {"TOTAL_VAL", "ASSD_VAL", "LANDVAL"},
	model.FieldSaleDate:        {"SALE_DATE", "SALEDATE"},
	model.FieldSalePrice:       {"SALE_PRICE", "SALEPRICE", "TOTSALPRIC"},
}

func (s *ShapefileSource) Fetch(ctx context.Context, limit int) ([]model.Record, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: open")
	}
	defer func() { _ = reader.Close() }()

	columns := s.mapColumns(reader)
	if len(columns) == 0 {
		return nil, eris.Errorf("shapefile: no recognizable attribute columns in %s", s.Path)
	}

	extractedAt := s.now().UTC().Format(time.RFC3339)
	var records []model.Record
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return records, eris.Wrap(err, "shapefile: cancelled")
		}

		fields := map[string]any{
			model.FieldCounty:      s.County,
			model.FieldSource:      s.Label,
			model.FieldSourceURL:   s.Path,
			model.FieldExtractedAt: extractedAt,
		}
		empty := true
		for field, idx := range columns {
			value := strings.TrimSpace(reader.Attribute(idx))
			if value == "" {
				continue
			}
			empty = false
			if field == model.FieldAssessedValue || field == model.FieldSalePrice {
				if f, err := parseMoney(value); err == nil {
					fields[field] = f
				}
				continue
			}
			fields[field] = value
		}
		if empty {
			continue
		}
		records = append(records, model.FromMap(fields))
		if limit > 0 && len(records) >= limit {
			break
		}
	}

	zap.L().Info("shapefile: import complete",
		zap.String("path", s.Path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// mapColumns resolves standard field → DBF column index using the first
// matching candidate name.
func (s *ShapefileSource) mapColumns(reader *shp.Reader) map[string]int {
	index := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.ToUpper(strings.TrimRight(f.String(), "\x00"))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	columns := make(map[string]int)
	for field, candidates := range shapefileFieldCandidates {
		for _, name := range candidates {
			if i, ok := index[name]; ok {
				columns[field] = i
				break
			}
		}
	}
	return columns
}
