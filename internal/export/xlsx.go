package export

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// WriteXLSX writes the five-sheet workbook: All Properties, Wake County,
// Orange County, Duplicates, and Statistics.
func WriteXLSX(path string, payload Payload) error {
	file := xlsx.NewFile()

	sheets := []struct {
		name    string
		records []model.Record
	}{
		{"All Properties", payload.All},
		{"Wake County", payload.Wake},
		{"Orange County", payload.Orange},
		{"Duplicates", payload.Duplicates},
	}
	for _, s := range sheets {
		if err := addDataSheet(file, s.name, s.records); err != nil {
			return err
		}
	}
	if err := addStatsSheet(file, payload.Stats); err != nil {
		return err
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("records", len(payload.All)),
	)
	return nil
}

func addDataSheet(file *xlsx.File, name string, records []model.Record) error {
	sheet, err := file.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	if len(records) == 0 {
		sheet.AddRow().AddCell().Value = "No records"
		return nil
	}

	headers := columnHeaders(records)
	headerRow := sheet.AddRow()
	for _, h := range headers {
		cell := headerRow.AddCell()
		cell.Value = h
		style := xlsx.NewStyle()
		style.Font.Bold = true
		cell.SetStyle(style)
	}

	for _, rec := range records {
		fields := rec.ToMap()
		row := sheet.AddRow()
		for _, h := range headers {
			cell := row.AddCell()
			switch v := fields[h].(type) {
			case float64:
				cell.SetFloat(v)
			case bool:
				cell.SetBool(v)
			case int:
				cell.SetInt(v)
			default:
				cell.Value = model.FormatValue(fields[h])
			}
		}
	}
	return nil
}

func addStatsSheet(file *xlsx.File, stats []StatSection) error {
	sheet, err := file.AddSheet("Statistics")
	if err != nil {
		return eris.Wrap(err, "export: add statistics sheet")
	}

	title := sheet.AddRow().AddCell()
	title.Value = "Property Data Reconciliation Pipeline - Statistics"
	titleStyle := xlsx.NewStyle()
	titleStyle.Font.Bold = true
	titleStyle.Font.Size = 14
	title.SetStyle(titleStyle)
	sheet.AddRow()

	for _, section := range stats {
		heading := sheet.AddRow().AddCell()
		heading.Value = section.Title
		style := xlsx.NewStyle()
		style.Font.Bold = true
		heading.SetStyle(style)

		for _, entry := range section.Entries {
			row := sheet.AddRow()
			row.AddCell().Value = "  " + entry.Label
			cell := row.AddCell()
			switch v := entry.Value.(type) {
			case float64:
				cell.SetFloat(v)
			case int:
				cell.SetInt(v)
			default:
				cell.Value = model.FormatValue(entry.Value)
			}
		}
		sheet.AddRow()
	}

	generated := sheet.AddRow().AddCell()
	generated.Value = "Report Generated"
	genStyle := xlsx.NewStyle()
	genStyle.Font.Bold = true
	generated.SetStyle(genStyle)
	row := sheet.AddRow()
	row.AddCell().Value = "  Timestamp"
	row.AddCell().Value = time.Now().Format("2006-01-02 15:04:05")

	return nil
}
