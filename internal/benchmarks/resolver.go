// Package benchmarks resolves tool mentions to canonical catalog entries and serves their plan
// ladders and per-seat price bands.
package benchmarks

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"subscription-intake/internal/models"
)

var (
	ErrNotFound     = errors.New("BENCHMARK_NOT_FOUND")
	ErrInvalidEntry = errors.New("INVALID_BENCHMARK_ENTRY")
)

// Resolver is what the intake flow needs from the benchmark backend.
type Resolver interface {
	// ResolveCanonical maps a user mention to its canonical tool name. ok is false when the
	// mention is unknown; callers then keep the trimmed mention as-is.
	ResolveCanonical(ctx context.Context, name string) (*models.CanonicalTool, bool)
	// PlanOptions returns the plan ladder ordered lowest tier first, or nil.
	PlanOptions(ctx context.Context, tool string) []string
	// PerSeatRange returns the annual per-seat price band, if known.
	PerSeatRange(ctx context.Context, tool string) (*models.PriceRange, bool)
}

// Lookup returns the full record for a tool.
type Lookup interface {
	Lookup(ctx context.Context, tool string) (*models.Benchmark, error)
}

// Sink stores a benchmark record.
type Sink interface {
	Upsert(ctx context.Context, b models.Benchmark) error
}

// Key folds a tool name to its matching key: lower-case letters and digits only.
func Key(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks a record before it enters a catalog or index.
func Validate(b models.Benchmark) error {
	if strings.TrimSpace(b.Name) == "" || Key(b.Name) == "" {
		return ErrInvalidEntry
	}
	if b.PerSeat != nil && (b.PerSeat.Min < 0 || b.PerSeat.Max < b.PerSeat.Min) {
		return ErrInvalidEntry
	}
	return nil
}

// Static is a Resolver that knows nothing. It keeps the intake flow usable without a catalog.
type Static struct{}

func (Static) ResolveCanonical(context.Context, string) (*models.CanonicalTool, bool) {
	return nil, false
}

func (Static) PlanOptions(context.Context, string) []string { return nil }

func (Static) PerSeatRange(context.Context, string) (*models.PriceRange, bool) { return nil, false }
