package fetcher

import (
	"context"
	"html"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-cli/internal/config"
	"github.com/sells-group/property-cli/internal/model"
)

// SelectorTable drives the Orange County page extraction. Patterns live in
// a YAML file so selector breakage after a site redesign is a config fix,
// not a code change.
type SelectorTable struct {
	ResultLink string            `yaml:"result_link"`
	Fields     map[string]string `yaml:"fields"`
	Money      []string          `yaml:"money_fields"`
}

type compiledSelectors struct {
	resultLink *regexp.Regexp
	fields     map[string]*regexp.Regexp
	money      map[string]bool
}

// LoadSelectors reads and compiles a selector table.
func LoadSelectors(path string) (*SelectorTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "selectors: read file")
	}
	var table SelectorTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrap(err, "selectors: parse yaml")
	}
	return &table, nil
}

func (t *SelectorTable) compile() (*compiledSelectors, error) {
	cs := &compiledSelectors{
		fields: make(map[string]*regexp.Regexp, len(t.Fields)),
		money:  make(map[string]bool, len(t.Money)),
	}

	link, err := regexp.Compile(t.ResultLink)
	if err != nil {
		return nil, eris.Wrap(err, "selectors: compile result_link")
	}
	cs.resultLink = link

	for field, pattern := range t.Fields {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "selectors: compile field %s", field)
		}
		cs.fields[field] = re
	}
	for _, field := range t.Money {
		cs.money[field] = true
	}
	return cs, nil
}

// OrangeFetcher scrapes the Orange County tax-search site: one search
// results page for detail links, then one request per property page.
type OrangeFetcher struct {
	client    *HTTPClient
	baseURL   string
	maxRecs   int
	selectors *compiledSelectors
	now       func() time.Time
}

func NewOrangeFetcher(client *HTTPClient, cfg config.OrangeConfig, table *SelectorTable) (*OrangeFetcher, error) {
	cs, err := table.compile()
	if err != nil {
		return nil, err
	}
	return &OrangeFetcher{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxRecs:   cfg.MaxRecords,
		selectors: cs,
		now:       time.Now,
	}, nil
}

func (o *OrangeFetcher) Name() string { return SourceOrange }

func (o *OrangeFetcher) Fetch(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 || limit > o.maxRecs {
		limit = o.maxRecs
	}

	page, err := o.client.Get(ctx, o.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "orange: fetch search page")
	}

	links := o.resultLinks(string(page), limit)
	if len(links) == 0 {
		// Some queries render a single detail page directly.
		if rec, ok := o.extractRecord(string(page), o.baseURL); ok {
			return []model.Record{rec}, nil
		}
		zap.L().Warn("orange: no result links found")
		return nil, nil
	}

	var records []model.Record
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return records, eris.Wrap(err, "orange: fetch cancelled")
		}
		detail, err := o.client.Get(ctx, link)
		if err != nil {
			zap.L().Warn("orange: detail page failed, skipping",
				zap.String("url", link),
				zap.Error(err),
			)
			continue
		}
		if rec, ok := o.extractRecord(string(detail), link); ok {
			records = append(records, rec)
		}
		if len(records) >= limit {
			break
		}
	}

	zap.L().Info("orange: fetch complete",
		zap.Int("links", len(links)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// resultLinks extracts detail-page URLs from the first capture group of the
// result_link pattern, resolving relative paths against the base URL.
func (o *OrangeFetcher) resultLinks(page string, limit int) []string {
	var links []string
	seen := make(map[string]bool)
	for _, match := range o.selectors.resultLink.FindAllStringSubmatch(page, -1) {
		if len(match) < 2 {
			continue
		}
		link := html.UnescapeString(match[1])
		if !strings.HasPrefix(link, "http") {
			link = o.baseURL + "/" + strings.TrimLeft(link, "/")
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if len(links) >= limit {
			break
		}
	}
	return links
}

// extractRecord pulls every configured field out of a detail page. A page
// yielding neither an owner name nor a parcel id is discarded.
func (o *OrangeFetcher) extractRecord(page, pageURL string) (model.Record, bool) {
	fields := map[string]any{
		model.FieldCounty:      "Orange",
		model.FieldSource:      SourceOrange,
		model.FieldSourceURL:   pageURL,
		model.FieldExtractedAt: o.now().UTC().Format(time.RFC3339),
	}

	for field, re := range o.selectors.fields {
		match := re.FindStringSubmatch(page)
		if len(match) < 2 {
			continue
		}
		value := strings.TrimSpace(html.UnescapeString(match[1]))
		if value == "" {
			continue
		}
		if o.selectors.money[field] {
			if f, err := parseMoney(value); err == nil {
				fields[field] = f
			}
			continue
		}
		fields[field] = value
	}

	rec := model.FromMap(fields)
	if rec.OwnerName == "" && rec.ParcelID == "" {
		zap.L().Debug("orange: page had no owner name or parcel id", zap.String("url", pageURL))
		return model.Record{}, false
	}
	return rec, true
}

func parseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
