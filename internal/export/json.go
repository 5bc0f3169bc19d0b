package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// WriteJSON writes the records as an indented JSON array of field maps.
func WriteJSON(path string, records []model.Record) error {
	maps := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		maps = append(maps, rec.ToMap())
	}

	data, err := json.MarshalIndent(maps, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write json")
	}

	zap.L().Info("export: json written",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return nil
}
