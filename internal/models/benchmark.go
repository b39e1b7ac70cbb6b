// internal/models/benchmark.go
package models

// PriceRange is a per-seat annual price band.
type PriceRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Benchmark is one catalog record for a SaaS tool.
type Benchmark struct {
	Name     string      `json:"name" yaml:"name"`
	Aliases  []string    `json:"aliases,omitempty" yaml:"aliases"`
	Plans    []string    `json:"plans" yaml:"plans"` // ordered lowest to highest tier
	PerSeat  *PriceRange `json:"perSeat,omitempty" yaml:"per_seat"`
	Currency string      `json:"currency,omitempty" yaml:"currency"`
	Source   string      `json:"source,omitempty" yaml:"source"`
}

// CanonicalTool is the resolved display identity of a tool mention.
type CanonicalTool struct {
	Name       string  `json:"name"`
	MatchedBy  string  `json:"matchedBy"` // "exact", "alias", "fuzzy"
	Confidence float64 `json:"confidence"`
}
