package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// WakeFetcher pulls parcel records from the Wake County ArcGIS
// FeatureServer query endpoint, paging with resultOffset.
type WakeFetcher struct {
	client   *HTTPClient
	baseURL  string
	pageSize int
	maxRecs  int
	now      func() time.Time
}

// arcgisResponse is the subset of a FeatureServer query response we read.
type arcgisResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Error                 *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// wakeAttributeCandidates maps each standard field to the attribute names
// seen across layer versions, tried in order.
var wakeAttributeCandidates = map[string][]string{
	model.FieldOwnerName:       {"OWNER", "owner_name", "OWNER_NAME"},
	model.FieldParcelID:        {"PIN_NUM", "parcel_id", "pin", "PARCEL_PIN"},
	model.FieldPropertyAddress: {"SITE_ADDRESS", "property_address", "site_address"},
	model.FieldMailingAddress:  {"ADDR1", "mailing_address", "OWNER_ADDRESS"},
	model.FieldCity:            {"CITY_DECODE", "city", "property_city", "CITY"},
	model.FieldState:           {"state", "property_state", "STATE"},
	model.FieldZipCode:         {"ZIPNUM", "zip_code", "property_zip", "ZIP"},
	model.FieldAssessedValue:   {"TOTAL_VALUE_ASSD", "assessed_value", "total_value"},
	model.FieldSaleDate:        {"SALE_DATE", "sale_date", "last_sale_date"},
	model.FieldSalePrice:       {"TOTSALPRICE", "sale_price", "last_sale_price"},
}

func NewWakeFetcher(client *HTTPClient, cfg config.WakeConfig) *WakeFetcher {
	return &WakeFetcher{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		maxRecs:  cfg.MaxRecords,
		now:      time.Now,
	}
}

func (w *WakeFetcher) Name() string { return SourceWake }

// Fetch pages through the feature layer until limit records are collected,
// the layer is exhausted, or the context is cancelled.
func (w *WakeFetcher) Fetch(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 || limit > w.maxRecs {
		limit = w.maxRecs
	}

	var records []model.Record
	offset := 0
	for len(records) < limit {
		page, more, err := w.fetchPage(ctx, offset)
		if err != nil {
			return records, eris.Wrap(err, "wake: fetch page")
		}
		if len(page) == 0 {
			break
		}
		records = append(records, page...)
		offset += len(page)
		if !more {
			break
		}
	}

	records = capRecords(records, limit)
	zap.L().Info("wake: fetch complete", zap.Int("records", len(records)))
	return records, nil
}

func (w *WakeFetcher) fetchPage(ctx context.Context, offset int) ([]model.Record, bool, error) {
	q := url.Values{}
	q.Set("where", "1=1")
	q.Set("outFields", "*")
	q.Set("f", "json")
	q.Set("returnGeometry", "false")
	q.Set("resultOffset", fmt.Sprintf("%d", offset))
	q.Set("resultRecordCount", fmt.Sprintf("%d", w.pageSize))
	queryURL := w.baseURL + "/query?" + q.Encode()

	var resp arcgisResponse
	if err := w.client.GetJSON(ctx, queryURL, &resp); err != nil {
		return nil, false, err
	}
	if resp.Error != nil {
		return nil, false, eris.Errorf("arcgis error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	records := make([]model.Record, 0, len(resp.Features))
	for _, feature := range resp.Features {
		records = append(records, w.normalize(feature.Attributes))
	}
	return records, resp.ExceededTransferLimit, nil
}

// normalize maps layer attributes to the standard schema. Unknown layer
// versions degrade to empty fields rather than failing the fetch.
func (w *WakeFetcher) normalize(attrs map[string]any) model.Record {
	fields := map[string]any{
		model.FieldCounty:      "Wake",
		model.FieldState:       "NC",
		model.FieldSource:      SourceWake,
		model.FieldSourceURL:   w.baseURL + "/query",
		model.FieldExtractedAt: w.now().UTC().Format(time.RFC3339),
	}

	for field, candidates := range wakeAttributeCandidates {
		for _, name := range candidates {
			v, ok := attrs[name]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr {
				if strings.TrimSpace(s) == "" {
					continue
				}
				fields[field] = strings.TrimSpace(s)
			} else {
				fields[field] = v
			}
			break
		}
	}

	// Epoch-millisecond sale dates show up on some layer versions.
	if ms, ok := fields[model.FieldSaleDate].(float64); ok {
		fields[model.FieldSaleDate] = time.UnixMilli(int64(ms)).UTC().Format("2006-01-02")
	}
	if n, ok := fields[model.FieldZipCode].(float64); ok {
		fields[model.FieldZipCode] = fmt.Sprintf("%d", int64(n))
	}

	return model.FromMap(fields)
}
