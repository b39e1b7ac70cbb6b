package benchmarks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"subscription-intake/internal/models"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

const (
	confidenceExact = 1.0
	confidenceAlias = 0.95
	confidenceFuzzy = 0.7

	minFuzzyKeyLen = 4
	maxFuzzyLenGap = 2
)

type catalogFile struct {
	Benchmarks []models.Benchmark `yaml:"benchmarks"`
}

// Catalog is an in-memory benchmark set loaded from YAML. Discovery may add entries at runtime.
type Catalog struct {
	mu      sync.RWMutex
	entries []models.Benchmark
	byKey   map[string]int // name and alias keys -> entry index
	names   map[string]bool
	keys    []string // fuzzy candidates, parallel to keyIdx
	keyIdx  []int
}

// NewCatalog builds a catalog from records. Invalid records are rejected.
func NewCatalog(entries []models.Benchmark) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int), names: make(map[string]bool)}
	for _, b := range entries {
		if err := c.add(b); err != nil {
			return nil, fmt.Errorf("benchmark %q: %w", b.Name, err)
		}
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse benchmark catalog: %w", err)
	}
	return NewCatalog(f.Benchmarks)
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark catalog: %w", err)
	}
	return ParseCatalog(data)
}

func (c *Catalog) add(b models.Benchmark) error {
	if err := Validate(b); err != nil {
		return err
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.Currency == "" {
		b.Currency = models.DefaultCurrency
	}

	idx, exists := c.byKey[Key(b.Name)]
	if exists && c.names[Key(b.Name)] {
		c.entries[idx] = b
	} else {
		idx = len(c.entries)
		c.entries = append(c.entries, b)
	}

	c.index(Key(b.Name), idx)
	c.names[Key(b.Name)] = true
	for _, alias := range b.Aliases {
		if k := Key(alias); k != "" {
			if _, taken := c.byKey[k]; !taken {
				c.index(k, idx)
			}
		}
	}
	return nil
}

func (c *Catalog) index(key string, idx int) {
	if _, ok := c.byKey[key]; !ok {
		c.keys = append(c.keys, key)
		c.keyIdx = append(c.keyIdx, idx)
	} else {
		for i, k := range c.keys {
			if k == key {
				c.keyIdx[i] = idx
				break
			}
		}
	}
	c.byKey[key] = idx
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Upsert adds or replaces a record by canonical name.
func (c *Catalog) Upsert(_ context.Context, b models.Benchmark) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(b)
}

// Lookup returns the record for a tool name or alias.
func (c *Catalog) Lookup(_ context.Context, tool string) (*models.Benchmark, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, _, ok := c.match(tool)
	if !ok {
		return nil, ErrNotFound
	}
	b := c.entries[idx]
	return &b, nil
}

// ResolveCanonical resolves exact names, then aliases, then guarded near misses.
func (c *Catalog) ResolveCanonical(_ context.Context, name string) (*models.CanonicalTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, how, ok := c.match(name)
	if !ok {
		return nil, false
	}
	out := &models.CanonicalTool{Name: c.entries[idx].Name, MatchedBy: how}
	switch how {
	case "exact":
		out.Confidence = confidenceExact
	case "alias":
		out.Confidence = confidenceAlias
	default:
		out.Confidence = confidenceFuzzy
	}
	return out, true
}

// PlanOptions returns the plan ladder for tool, lowest tier first.
func (c *Catalog) PlanOptions(ctx context.Context, tool string) []string {
	b, err := c.Lookup(ctx, tool)
	if err != nil || len(b.Plans) == 0 {
		return nil
	}
	return append([]string(nil), b.Plans...)
}

// PerSeatRange returns the annual per-seat band for tool.
func (c *Catalog) PerSeatRange(ctx context.Context, tool string) (*models.PriceRange, bool) {
	b, err := c.Lookup(ctx, tool)
	if err != nil || b.PerSeat == nil {
		return nil, false
	}
	r := *b.PerSeat
	return &r, true
}

func (c *Catalog) match(name string) (int, string, bool) {
	k := Key(name)
	if k == "" {
		return 0, "", false
	}
	if idx, ok := c.byKey[k]; ok {
		if c.names[k] {
			return idx, "exact", true
		}
		return idx, "alias", true
	}
	if idx, ok := c.nearMiss(k); ok {
		return idx, "fuzzy", true
	}
	return 0, "", false
}

// nearMiss accepts the best fuzzy candidate only when it starts with the same letter and
// differs in length by at most two runes, so "slak" finds Slack but "a" finds nothing.
func (c *Catalog) nearMiss(k string) (int, bool) {
	if len(k) < minFuzzyKeyLen {
		return 0, false
	}
	for _, m := range fuzzy.Find(k, c.keys) {
		cand := m.Str
		gap := len(cand) - len(k)
		if gap < 0 {
			gap = -gap
		}
		if gap <= maxFuzzyLenGap && cand[0] == k[0] {
			return c.keyIdx[m.Index], true
		}
	}
	return 0, false
}
