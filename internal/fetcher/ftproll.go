package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// FTPRollSource downloads a bulk assessment-roll CSV from a county FTP
// drop and maps its columns through the same header aliases as the XLSX
// importer.
type FTPRollSource struct {
	URL     string // ftp://host[:port]/path/to/roll.csv
	Label   string // source label; defaults to "ftp_roll"
	Timeout time.Duration
	now     func() time.Time
}

func NewFTPRollSource(rawURL, label string, timeout time.Duration) *FTPRollSource {
	if label == "" {
		label = "ftp_roll"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FTPRollSource{URL: rawURL, Label: label, Timeout: timeout, now: time.Now}
}

func (f *FTPRollSource) Name() string { return f.Label }

func (f *FTPRollSource) Fetch(ctx context.Context, limit int) ([]model.Record, error) {
	rc, err := f.download(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	records, err := f.readCSV(ctx, rc, limit)
	if err != nil {
		return records, err
	}

	zap.L().Info("ftp roll: fetch complete",
		zap.String("url", f.URL),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (f *FTPRollSource) readCSV(ctx context.Context, r io.Reader, limit int) ([]model.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ftp roll: read header")
	}
	columns := make(map[int]string, len(header))
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		if field, ok := xlsxHeaderAliases[key]; ok {
			columns[i] = field
		}
	}
	if len(columns) == 0 {
		return nil, eris.Errorf("ftp roll: no recognizable columns in %s", f.URL)
	}

	extractedAt := f.now().UTC().Format(time.RFC3339)
	var records []model.Record
	for {
		if err := ctx.Err(); err != nil {
			return records, eris.Wrap(err, "ftp roll: cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zap.L().Warn("ftp roll: bad row, skipping", zap.Error(err))
			continue
		}

		fields := map[string]any{
			model.FieldSource:      f.Label,
			model.FieldSourceURL:   f.URL,
			model.FieldExtractedAt: extractedAt,
		}
		empty := true
		for i, cell := range row {
			field, ok := columns[i]
			if !ok {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			empty = false
			if field == model.FieldAssessedValue || field == model.FieldSalePrice {
				if v, err := parseMoney(value); err == nil {
					fields[field] = v
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
	return records, nil
}

// ftpConnReader ties the response lifetime to the connection so closing
// the reader also disconnects.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

func (f *FTPRollSource) download(ctx context.Context) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(f.URL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp roll: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, path, nil
}
