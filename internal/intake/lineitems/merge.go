// Package lineitems merges extracted subscription facts into the session's line items and
// reports which facts are still missing.
package lineitems

import (
	"context"
	"strings"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/models"
)

var stoplist = map[string]bool{
	"unknown": true,
	"n/a":     true,
	"na":      true,
	"none":    true,
}

// Result describes what a merge did. Items is the merged list.
type Result struct {
	Items   []models.LineItem
	Added   []string
	Updated []string
	Dropped []string // new tools refused because the item cap was reached
}

// Discoverer looks up tools the resolver does not know yet. Trigger must not block.
type Discoverer interface {
	Trigger(tool string)
}

// Merger canonicalizes tool names through a Resolver and merges by canonical identity.
type Merger struct {
	resolver   benchmarks.Resolver
	discoverer Discoverer
	maxItems   int
}

// Option configures a Merger.
type Option func(*Merger)

// WithDiscoverer starts discovery for incoming tool names the resolver cannot place.
func WithDiscoverer(d Discoverer) Option {
	return func(m *Merger) { m.discoverer = d }
}

// NewMerger creates a Merger. A nil resolver keeps names as typed; maxItems <= 0 means no cap.
func NewMerger(resolver benchmarks.Resolver, maxItems int, opts ...Option) *Merger {
	if resolver == nil {
		resolver = benchmarks.Static{}
	}
	m := &Merger{resolver: resolver, maxItems: maxItems}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge returns existing with incoming folded in.
func (m *Merger) Merge(ctx context.Context, existing, incoming []models.LineItem) []models.LineItem {
	return m.MergeDetailed(ctx, existing, incoming).Items
}

// MergeDetailed merges and reports additions, updates and cap drops. Existing order is kept,
// new tools append in mention order, and incoming set fields win over stored ones.
func (m *Merger) MergeDetailed(ctx context.Context, existing, incoming []models.LineItem) Result {
	if len(incoming) == 0 {
		return Result{Items: existing}
	}

	items := make([]models.LineItem, len(existing))
	copy(items, existing)

	// stored names may have been typed before the catalog knew them, so each item is
	// reachable by its stored key and by its current canonical key
	index := make(map[string]int, len(items))
	for i, it := range items {
		for _, k := range m.keysOf(ctx, it.Tool) {
			if _, dup := index[k]; !dup {
				index[k] = i
			}
		}
	}

	var res Result
	for _, raw := range incoming {
		in, ok := m.canonicalize(ctx, raw)
		if !ok {
			continue
		}
		k := benchmarks.Key(in.Tool)

		if i, found := index[k]; found {
			items[i] = mergeItem(items[i], in)
			res.Updated = appendUnique(res.Updated, items[i].Tool)
			continue
		}

		if m.maxItems > 0 && len(items) >= m.maxItems {
			res.Dropped = appendUnique(res.Dropped, in.Tool)
			continue
		}
		if in.Currency == "" {
			in.Currency = models.DefaultCurrency
		}
		for _, key := range m.keysOf(ctx, in.Tool) {
			if _, dup := index[key]; !dup {
				index[key] = len(items)
			}
		}
		items = append(items, in)
		res.Added = append(res.Added, in.Tool)
	}

	res.Items = items
	return res
}

// canonicalize cleans one incoming record. ok is false when it has no usable tool name.
func (m *Merger) canonicalize(ctx context.Context, raw models.LineItem) (models.LineItem, bool) {
	item := sanitize(raw)
	name := strings.TrimSpace(item.Tool)

	if name == "" || stoplist[strings.ToLower(name)] {
		return item, false
	}

	canonical, ok := m.resolver.ResolveCanonical(ctx, name)
	if !ok {
		// "slack/Pro" style mentions carry the plan after the slash
		if tool, plan, split := strings.Cut(name, "/"); split && strings.TrimSpace(tool) != "" {
			if c, ok := m.resolver.ResolveCanonical(ctx, tool); ok {
				canonical = c
			} else {
				name = strings.TrimSpace(tool)
			}
			if item.Plan == nil && strings.TrimSpace(plan) != "" {
				item.Plan = models.StringPtr(strings.TrimSpace(plan))
			}
		}
	}
	if canonical != nil {
		name = canonical.Name
	}

	if benchmarks.Key(name) == "" || stoplist[strings.ToLower(name)] {
		return item, false
	}
	if canonical == nil && m.discoverer != nil {
		m.discoverer.Trigger(name)
	}
	item.Tool = name
	return item, true
}

// keysOf returns the match keys of a stored tool name: its own and its canonical one.
func (m *Merger) keysOf(ctx context.Context, tool string) []string {
	k := benchmarks.Key(tool)
	if k == "" {
		return nil
	}
	keys := []string{k}
	if c, ok := m.resolver.ResolveCanonical(ctx, tool); ok {
		if ck := benchmarks.Key(c.Name); ck != "" && ck != k {
			keys = append(keys, ck)
		}
	}
	return keys
}

// sanitize drops negative, NaN and infinite numbers and blank strings field by field.
func sanitize(in models.LineItem) models.LineItem {
	out := models.LineItem{Tool: strings.TrimSpace(in.Tool)}
	if in.Plan != nil && strings.TrimSpace(*in.Plan) != "" {
		out.Plan = models.StringPtr(strings.TrimSpace(*in.Plan))
	}
	if models.ValidAmount(in.Seats) {
		out.Seats = models.FloatPtr(*in.Seats)
	}
	if models.ValidAmount(in.AnnualCost) {
		out.AnnualCost = models.FloatPtr(*in.AnnualCost)
	}
	if models.ValidAmount(in.AnnualCostPerSeat) {
		out.AnnualCostPerSeat = models.FloatPtr(*in.AnnualCostPerSeat)
	}
	out.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Term != nil && strings.TrimSpace(*in.Term) != "" {
		out.Term = models.StringPtr(strings.TrimSpace(*in.Term))
	}
	if in.Notes != nil && strings.TrimSpace(*in.Notes) != "" {
		out.Notes = models.StringPtr(strings.TrimSpace(*in.Notes))
	}
	return out
}

// mergeItem overlays the set fields of in onto cur. The stored tool name wins so the first
// spelling the user saw keeps being shown.
func mergeItem(cur, in models.LineItem) models.LineItem {
	out := cur
	if strings.TrimSpace(out.Tool) == "" {
		out.Tool = in.Tool
	}
	if in.Plan != nil {
		out.Plan = in.Plan
	}
	if in.Seats != nil {
		out.Seats = in.Seats
	}
	if in.AnnualCost != nil {
		out.AnnualCost = in.AnnualCost
	}
	if in.AnnualCostPerSeat != nil {
		out.AnnualCostPerSeat = in.AnnualCostPerSeat
	}
	if in.Term != nil {
		out.Term = in.Term
	}
	if in.Notes != nil {
		out.Notes = in.Notes
	}
	switch {
	case in.Currency != "":
		out.Currency = in.Currency
	case out.Currency == "":
		out.Currency = models.DefaultCurrency
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
