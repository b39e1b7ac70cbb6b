// internal/models/brief.go
package models

import "time"

// Brief is the pricing/negotiation analysis produced once intake is ready.
type Brief struct {
	Summary        string      `json:"summary"`
	Items          []BriefItem `json:"items"`
	NextSteps      []string    `json:"nextSteps,omitempty"`
	TotalAnnual    float64     `json:"totalAnnual,omitempty"`
	PotentialSaves float64     `json:"potentialSavings,omitempty"`
	Currency       string      `json:"currency,omitempty"`
	GeneratedAt    time.Time   `json:"generatedAt"`
}

// BriefItem is the per-tool section of a brief.
type BriefItem struct {
	Tool            string   `json:"tool"`
	Assessment      string   `json:"assessment"`
	TargetPrice     *float64 `json:"targetAnnualCost,omitempty"`
	Leverage        []string `json:"leverage,omitempty"`
	BenchmarkStatus string   `json:"benchmarkStatus,omitempty"` // "below", "within", "above", "unknown"
}
