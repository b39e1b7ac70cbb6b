package discoverbenchmark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/config"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/models"
)

type fakeGenerator struct {
	doc     string
	err     error
	calls   int
	lastReq genai.Request
}

func (f *fakeGenerator) Generate(_ context.Context, schema *validation.Schema, req genai.Request) (json.RawMessage, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if err := schema.Validate([]byte(f.doc)); err != nil {
		return nil, &genai.Error{Op: req.Op, Category: genai.CategorySchemaViolation, Err: err}
	}
	return json.RawMessage(f.doc), nil
}

func (f *fakeGenerator) Complete(context.Context, genai.Request) (string, error) {
	return "", errors.New("not used")
}

const loomDoc = `{"name": "Loom", "aliases": ["loom video", "Loom"], "plans": ["Business", " Enterprise "],
	"perSeat": {"min": 150, "max": 240}, "currency": "usd"}`

func TestHandler_Execute_WithoutSearch(t *testing.T) {
	gen := &fakeGenerator{doc: loomDoc}
	h := NewHandler(LoadConfig(config.SearchConfig{}), gen, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Tool: "loom.com"})

	require.NoError(t, err)
	b := out.Benchmark
	assert.Equal(t, "Loom", b.Name)
	assert.Equal(t, []string{"loom.com", "loom video"}, b.Aliases)
	assert.Equal(t, []string{"Business", "Enterprise"}, b.Plans)
	assert.Equal(t, &models.PriceRange{Min: 150, Max: 240}, b.PerSeat)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "generated", b.Source)
	assert.Equal(t, "Product: loom.com\n", gen.lastReq.UserPrompt)
}

func TestHandler_Execute_GroundsOnSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"link": "https://blog.example.com/loom-review", "title": "Loom review", "snippet": "We tried it"},
				{"link": "https://www.loom.com/pricing", "title": "Loom Pricing", "snippet": "Business $15/creator/mo"},
				{"link": "https://www.loom.com/pricing", "title": "dup", "snippet": "dup"},
				{"link": "https://example.com/loom.pdf", "title": "PDF", "snippet": "pdf", "mime": "application/pdf"},
			},
		})
	}))
	defer srv.Close()

	gen := &fakeGenerator{doc: loomDoc}
	cfg := LoadConfig(config.SearchConfig{BaseURL: srv.URL, APIKey: "test-key"})
	h := NewHandler(cfg, gen, nil, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{Tool: "Loom"})

	require.NoError(t, err)
	assert.Equal(t, "Loom pricing plans per user", query)
	assert.Equal(t, "https://www.loom.com/pricing", out.Benchmark.Source)
	assert.Contains(t, gen.lastReq.UserPrompt, "Search results:\n- Loom Pricing: Business $15/creator/mo (https://www.loom.com/pricing)\n- Loom review")
	assert.NotContains(t, gen.lastReq.UserPrompt, "PDF")
}

func TestHandler_Execute_SearchFailureContinues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	gen := &fakeGenerator{doc: loomDoc}
	h := NewHandler(LoadConfig(config.SearchConfig{BaseURL: srv.URL, APIKey: "k"}), gen, nil, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{Tool: "Loom"})

	require.NoError(t, err)
	assert.Equal(t, "generated", out.Benchmark.Source)
	assert.Equal(t, 1, gen.calls)
}

func TestHandler_Execute_StoresThroughSink(t *testing.T) {
	catalog, err := benchmarks.NewCatalog(nil)
	require.NoError(t, err)

	gen := &fakeGenerator{doc: loomDoc}
	h := NewHandler(LoadConfig(config.SearchConfig{}), gen, catalog, logger.NewNoOpLogger())
	require.NotNil(t, h.Discoverer())

	_, err = h.Execute(context.Background(), &Input{Tool: "loom video"})
	require.NoError(t, err)

	got, ok := catalog.ResolveCanonical(context.Background(), "loom video")
	require.True(t, ok)
	assert.Equal(t, "Loom", got.Name)
	assert.Equal(t, []string{"Business", "Enterprise"}, catalog.PlanOptions(context.Background(), "Loom"))
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := NewHandler(LoadConfig(config.SearchConfig{}), &fakeGenerator{}, nil, logger.NewNoOpLogger())
	_, err := h.Execute(context.Background(), &Input{Tool: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	h = NewHandler(LoadConfig(config.SearchConfig{}), &fakeGenerator{doc: `{"name": "Loom", "plans": []}`}, nil, logger.NewNoOpLogger())
	_, err = h.Execute(context.Background(), &Input{Tool: "Loom"})
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Equal(t, genai.CategorySchemaViolation, genai.CategoryOf(err))
}

func TestHandler_DropsInvertedRange(t *testing.T) {
	gen := &fakeGenerator{doc: `{"name": "Loom", "plans": ["Business"], "perSeat": {"min": 300, "max": 100}, "currency": null}`}
	h := NewHandler(LoadConfig(config.SearchConfig{}), gen, nil, logger.NewNoOpLogger())

	b, err := h.FindBenchmark(context.Background(), "Loom")

	require.NoError(t, err)
	assert.Nil(t, b.PerSeat)
	assert.Empty(t, b.Currency)
	assert.Empty(t, b.Aliases)
}
