package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// WriteCSV writes the records as a single CSV file with the standard
// column ordering.
func WriteCSV(path string, records []model.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	headers := columnHeaders(records)
	if len(headers) > 0 {
		if err := w.Write(headers); err != nil {
			return eris.Wrap(err, "export: write csv header")
		}
	}

	for _, rec := range records {
		fields := rec.ToMap()
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = model.FormatValue(fields[h])
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}

	zap.L().Info("export: csv written",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return nil
}
