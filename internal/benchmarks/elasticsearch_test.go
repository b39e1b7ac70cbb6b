package benchmarks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

type fakeCluster struct {
	mu      sync.Mutex
	hits    string
	status  int
	indexed []esDocument
}

func (f *fakeCluster) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[`+f.hits+`]}}`)
	case strings.Contains(r.URL.Path, "/_doc/"):
		var doc esDocument
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.indexed = append(f.indexed, doc)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newTestIndex(t *testing.T, cluster *fakeCluster, fallback *Catalog) *Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(cluster.handler))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndex(client, "saas-benchmarks", fallback, logger.NewTestLogger(t))
}

const zoomHit = `{"_score": 4.2, "_source": {"name": "Zoom", "key": "zoom", "aliases": ["zoom workplace"], "plans": ["Pro", "Business"], "per_seat": {"min": 150, "max": 300}}}`

func TestIndex_ResolveCanonical(t *testing.T) {
	cluster := &fakeCluster{hits: zoomHit}
	x := newTestIndex(t, cluster, nil)
	ctx := context.Background()

	got, ok := x.ResolveCanonical(ctx, "zoom workplace")
	require.True(t, ok)
	assert.Equal(t, "Zoom", got.Name)
	assert.Equal(t, "alias", got.MatchedBy)

	got, ok = x.ResolveCanonical(ctx, "Zom")
	assert.False(t, ok, "three letter keys never fuzzy match")
	assert.Nil(t, got)

	assert.Equal(t, []string{"Pro", "Business"}, x.PlanOptions(ctx, "Zoom"))
	r, ok := x.PerSeatRange(ctx, "zoom")
	require.True(t, ok)
	assert.Equal(t, 150.0, r.Min)
}

func TestIndex_FallsBackToCatalog(t *testing.T) {
	cluster := &fakeCluster{status: http.StatusInternalServerError}
	x := newTestIndex(t, cluster, newTestCatalog(t))
	ctx := context.Background()

	got, ok := x.ResolveCanonical(ctx, "slack")
	require.True(t, ok)
	assert.Equal(t, "Slack", got.Name)

	assert.Equal(t, []string{"Plus", "Business"}, x.PlanOptions(ctx, "Notion"))
}

func TestIndex_NoHitsNoFallback(t *testing.T) {
	x := newTestIndex(t, &fakeCluster{}, nil)

	_, ok := x.ResolveCanonical(context.Background(), "Unknown Tool")
	assert.False(t, ok)

	_, err := x.Lookup(context.Background(), "Unknown Tool")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_Upsert(t *testing.T) {
	cluster := &fakeCluster{}
	fallback := newTestCatalog(t)
	x := newTestIndex(t, cluster, fallback)

	err := x.Upsert(context.Background(), models.Benchmark{Name: "Loom", Plans: []string{"Business"}})
	require.NoError(t, err)

	require.Len(t, cluster.indexed, 1)
	assert.Equal(t, "loom", cluster.indexed[0].Key)

	_, ok := fallback.ResolveCanonical(context.Background(), "Loom")
	assert.True(t, ok, "indexed records are mirrored into the fallback catalog")

	assert.ErrorIs(t, x.Upsert(context.Background(), models.Benchmark{}), ErrInvalidEntry)
}
