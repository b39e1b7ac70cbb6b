package lineitems

import (
	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/models"
)

// MissingPlanTools lists tools without a non-blank plan, in item order.
func MissingPlanTools(items []models.LineItem) []string {
	var out []string
	for _, it := range items {
		if !it.HasPlan() {
			out = append(out, it.Tool)
		}
	}
	return out
}

// MissingPriceTools lists tools with neither a total nor a per-seat annual cost.
func MissingPriceTools(items []models.LineItem) []string {
	var out []string
	for _, it := range items {
		if !it.HasPrice() {
			out = append(out, it.Tool)
		}
	}
	return out
}

// Complete reports whether every item has a plan and a price.
func Complete(items []models.LineItem) bool {
	return len(items) > 0 && len(MissingPlanTools(items)) == 0 && len(MissingPriceTools(items)) == 0
}

// Find returns the index of tool by canonical key, or -1.
func Find(items []models.LineItem, tool string) int {
	k := benchmarks.Key(tool)
	for i, it := range items {
		if benchmarks.Key(it.Tool) == k {
			return i
		}
	}
	return -1
}
