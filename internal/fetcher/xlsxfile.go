package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// xlsxHeaderAliases maps spreadsheet column headers (lowercased, trimmed)
// to standard schema fields. Assessor exports use several naming dialects.
var xlsxHeaderAliases = map[string]string{
	"owner":            model.FieldOwnerName,
	"owner name":       model.FieldOwnerName,
	"owner_name":       model.FieldOwnerName,
	"parcel":           model.FieldParcelID,
	"parcel id":        model.FieldParcelID,
	"parcel_id":        model.FieldParcelID,
	"pin":              model.FieldParcelID,
	"property address": model.FieldPropertyAddress,
	"property_address": model.FieldPropertyAddress,
	"site address":     model.FieldPropertyAddress,
	"mailing address":  model.FieldMailingAddress,
	"mailing_address":  model.FieldMailingAddress,
	"city":             model.FieldCity,
	"state":            model.FieldState,
	"zip":              model.FieldZipCode,
	"zip code":         model.FieldZipCode,
	"zip_code":         model.FieldZipCode,
	"county":           model.FieldCounty,
	"assessed value":   model.FieldAssessedValue,
	"assessed_value":   model.FieldAssessedValue,
	"total value":      model.FieldAssessedValue,
	"sale date":        model.FieldSaleDate,
	"sale_date":        model.FieldSaleDate,
	"sale price":       model.FieldSalePrice,
	"sale_price":       model.FieldSalePrice,
}

// XLSXSource reads property records from a local spreadsheet, typically a
// bulk export downloaded from a county open-data portal.
type XLSXSource struct {
	Path      string
	SheetName string
	Label     string // source label; defaults to "xlsx_import"
	now       func() time.Time
}

func NewXLSXSource(path, sheetName, label string) *XLSXSource {
	if label == "" {
		label = "xlsx_import"
	}
	return &XLSXSource{Path: path, SheetName: sheetName, Label: label, now: time.Now}
}

func (x *XLSXSource) Name() string { return x.Label }

func (x *XLSXSource) Fetch(ctx context.Context, limit int) ([]model.Record, error) {
	f, err := xlsx.OpenFile(x.Path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := x.sheet(f)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) < 2 {
		return nil, nil
	}

	columns := x.mapHeader(sheet.Rows[0])
	if len(columns) == 0 {
		return nil, eris.Errorf("xlsx: no recognizable columns in %s", x.Path)
	}

	extractedAt := x.now().UTC().Format(time.RFC3339)
	var records []model.Record
	for _, row := range sheet.Rows[1:] {
		if err := ctx.Err(); err != nil {
			return records, eris.Wrap(err, "xlsx: cancelled")
		}
		rec, ok := x.rowRecord(row, columns, extractedAt)
		if ok {
			records = append(records, rec)
		}
		if limit > 0 && len(records) >= limit {
			break
		}
	}

	zap.L().Info("xlsx: import complete",
		zap.String("path", x.Path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (x *XLSXSource) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if x.SheetName != "" {
		sheet, ok := f.Sheet[x.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", x.SheetName)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", x.Path)
	}
	return f.Sheets[0], nil
}

// mapHeader resolves column index → standard field for every recognized
// header cell.
func (x *XLSXSource) mapHeader(header *xlsx.Row) map[int]string {
	columns := make(map[int]string)
	for i, cell := range header.Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		if field, ok := xlsxHeaderAliases[key]; ok {
			columns[i] = field
		}
	}
	return columns
}

func (x *XLSXSource) rowRecord(row *xlsx.Row, columns map[int]string, extractedAt string) (model.Record, bool) {
	fields := map[string]any{
		model.FieldSource:      x.Label,
		model.FieldSourceURL:   x.Path,
		model.FieldExtractedAt: extractedAt,
	}

	empty := true
	for i, cell := range row.Cells {
		field, ok := columns[i]
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell.String())
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
		return model.Record{}, false
	}
	return model.FromMap(fields), true
}
