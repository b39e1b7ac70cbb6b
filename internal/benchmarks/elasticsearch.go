package benchmarks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

var (
	ErrSearchFailed = errors.New("BENCHMARK_SEARCH_FAILED")
	ErrIndexFailed  = errors.New("BENCHMARK_INDEX_FAILED")
)

// IndexMapping is the benchmark index mapping; aliases are searched alongside the name.
const IndexMapping = `{
	"mappings": {
		"properties": {
			"name":     {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"key":      {"type": "keyword"},
			"aliases":  {"type": "text"},
			"plans":    {"type": "keyword", "index": false},
			"per_seat": {"properties": {"min": {"type": "float"}, "max": {"type": "float"}}},
			"currency": {"type": "keyword"},
			"source":   {"type": "keyword"}
		}
	}
}`

type esDocument struct {
	Name     string             `json:"name"`
	Key      string             `json:"key"`
	Aliases  []string           `json:"aliases,omitempty"`
	Plans    []string           `json:"plans,omitempty"`
	PerSeat  *models.PriceRange `json:"per_seat,omitempty"`
	Currency string             `json:"currency,omitempty"`
	Source   string             `json:"source,omitempty"`
}

func (d esDocument) benchmark() models.Benchmark {
	return models.Benchmark{
		Name:     d.Name,
		Aliases:  d.Aliases,
		Plans:    d.Plans,
		PerSeat:  d.PerSeat,
		Currency: d.Currency,
		Source:   d.Source,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64    `json:"_score"`
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Index resolves tools against an Elasticsearch benchmark index and falls back to a catalog
// when the cluster errors or has no match.
type Index struct {
	client   *elasticsearch.Client
	index    string
	fallback *Catalog
	timeout  time.Duration
	logger   logger.Logger
}

// NewIndex creates an Elasticsearch-backed resolver. fallback may be nil.
func NewIndex(client *elasticsearch.Client, index string, fallback *Catalog, log logger.Logger) *Index {
	return &Index{
		client:   client,
		index:    index,
		fallback: fallback,
		timeout:  2 * time.Second,
		logger:   log.WithFields(map[string]interface{}{"component": "benchmark-index"}),
	}
}

// Lookup searches the index, then the fallback catalog.
func (x *Index) Lookup(ctx context.Context, tool string) (*models.Benchmark, error) {
	b, _, err := x.search(ctx, tool)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		x.logger.Warn("benchmark search failed, using catalog", map[string]interface{}{
			"tool":  tool,
			"error": err,
		})
	}
	if x.fallback != nil {
		return x.fallback.Lookup(ctx, tool)
	}
	return nil, ErrNotFound
}

// ResolveCanonical implements Resolver.
func (x *Index) ResolveCanonical(ctx context.Context, name string) (*models.CanonicalTool, bool) {
	b, how, err := x.search(ctx, name)
	if err == nil {
		conf := confidenceFuzzy
		switch how {
		case "exact":
			conf = confidenceExact
		case "alias":
			conf = confidenceAlias
		}
		return &models.CanonicalTool{Name: b.Name, MatchedBy: how, Confidence: conf}, true
	}
	if x.fallback != nil {
		return x.fallback.ResolveCanonical(ctx, name)
	}
	return nil, false
}

// PlanOptions implements Resolver.
func (x *Index) PlanOptions(ctx context.Context, tool string) []string {
	b, err := x.Lookup(ctx, tool)
	if err != nil || len(b.Plans) == 0 {
		return nil
	}
	return append([]string(nil), b.Plans...)
}

// PerSeatRange implements Resolver.
func (x *Index) PerSeatRange(ctx context.Context, tool string) (*models.PriceRange, bool) {
	b, err := x.Lookup(ctx, tool)
	if err != nil || b.PerSeat == nil {
		return nil, false
	}
	r := *b.PerSeat
	return &r, true
}

// Upsert indexes a record under its key so repeated discoveries overwrite each other.
func (x *Index) Upsert(ctx context.Context, b models.Benchmark) error {
	if err := Validate(b); err != nil {
		return err
	}
	doc := esDocument{
		Name:     strings.TrimSpace(b.Name),
		Key:      Key(b.Name),
		Aliases:  b.Aliases,
		Plans:    b.Plans,
		PerSeat:  b.PerSeat,
		Currency: b.Currency,
		Source:   b.Source,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := x.client.Index(x.index, bytes.NewReader(body),
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(doc.Key),
		x.client.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.Status())
	}

	if x.fallback != nil {
		if err := x.fallback.Upsert(ctx, b); err != nil {
			x.logger.Warn("benchmark indexed but catalog copy failed", map[string]interface{}{
				"tool":  b.Name,
				"error": err,
			})
		}
	}
	return nil
}

func buildResolveQuery(name string) map[string]interface{} {
	return map[string]interface{}{
		"size": 3,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"key": map[string]interface{}{"value": Key(name), "boost": 10}}},
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":     name,
							"fields":    []string{"name^3", "aliases^2"},
							"fuzziness": "AUTO",
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

// search returns the best hit that passes the same guard as the catalog's near-miss match.
func (x *Index) search(ctx context.Context, name string) (*models.Benchmark, string, error) {
	k := Key(name)
	if k == "" {
		return nil, "", ErrNotFound
	}

	body, err := json.Marshal(buildResolveQuery(name))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, "", ErrNotFound
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		if Key(doc.Name) == k {
			b := doc.benchmark()
			return &b, "exact", nil
		}
		for _, alias := range doc.Aliases {
			if Key(alias) == k {
				b := doc.benchmark()
				return &b, "alias", nil
			}
		}
	}
	for _, hit := range parsed.Hits.Hits {
		cand := Key(hit.Source.Name)
		gap := len(cand) - len(k)
		if gap < 0 {
			gap = -gap
		}
		if len(k) >= minFuzzyKeyLen && cand != "" && gap <= maxFuzzyLenGap && cand[0] == k[0] {
			b := hit.Source.benchmark()
			return &b, "fuzzy", nil
		}
	}
	return nil, "", ErrNotFound
}
