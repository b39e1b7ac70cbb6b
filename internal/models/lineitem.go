// internal/models/lineitem.go
package models

import (
	"math"
	"strings"
)

// DefaultCurrency applies when neither the user nor a prior fact states one.
const DefaultCurrency = "USD"

// LineItem is one subscription fact record.
type LineItem struct {
	Tool              string   `json:"tool"`
	Plan              *string  `json:"plan,omitempty"`
	Seats             *float64 `json:"seats,omitempty"`
	AnnualCost        *float64 `json:"annualCost,omitempty"`
	AnnualCostPerSeat *float64 `json:"annualCostPerSeat,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	Term              *string  `json:"term,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
}

// HasPlan reports whether a non-blank plan is recorded.
func (l LineItem) HasPlan() bool {
	return l.Plan != nil && strings.TrimSpace(*l.Plan) != ""
}

// HasPrice reports whether either the total or the per-seat annual cost is usable.
func (l LineItem) HasPrice() bool {
	return ValidAmount(l.AnnualCost) || ValidAmount(l.AnnualCostPerSeat)
}

// PlanName returns the plan or an empty string.
func (l LineItem) PlanName() string {
	if l.Plan == nil {
		return ""
	}
	return strings.TrimSpace(*l.Plan)
}

// ValidAmount reports whether v is set, finite and non-negative.
func ValidAmount(v *float64) bool {
	if v == nil {
		return false
	}
	return !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
