// Package tiers maps "mid tier for Figma" style statements to concrete plan suggestions.
package tiers

import (
	"context"
	"math"
	"regexp"
	"strings"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/intake/textintent"
)

// Tier is a position on a plan ladder.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMid
	TierTop
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierTop:
		return "top"
	default:
		return "none"
	}
}

var tierWords = map[string]Tier{
	"low": TierLow, "entry": TierLow, "starter": TierLow, "bottom": TierLow, "lowest": TierLow,
	"mid": TierMid, "middle": TierMid,
	"top": TierTop, "highest": TierTop, "enterprise": TierTop,
}

const tierAlternation = `low|entry|starter|bottom|lowest|mid|middle|top|highest|enterprise`

var (
	statementPattern = regexp.MustCompile(`\b(` + tierAlternation + `)(?:[\s-]*(?:tier|level|plan)s?)?\s+(?:for|on)\s+`)
	bareTierPattern  = regexp.MustCompile(`\b(` + tierAlternation + `)\b`)
	targetSplit      = regexp.MustCompile(`\s*(?:,|&|/|\band\b)\s*`)
	collectiveTarget = regexp.MustCompile(`\b(?:others?|rest|remaining|everything else|all|both|them|each)\b`)
)

// Engine turns tier statements into plan suggestions using the resolver's plan ladders.
type Engine struct {
	resolver benchmarks.Resolver
}

// NewEngine creates an Engine.
func NewEngine(resolver benchmarks.Resolver) *Engine {
	if resolver == nil {
		resolver = benchmarks.Static{}
	}
	return &Engine{resolver: resolver}
}

// Suggest returns plan suggestions for the tools in missing that message assigns a tier to.
// A tool with one suggestion is an unambiguous guess; two or more need the user to choose.
// The result is nil when nothing could be suggested.
func (e *Engine) Suggest(ctx context.Context, message string, missing []string) map[string][]string {
	if len(missing) == 0 {
		return nil
	}
	tiersByTool := Assign(message, missing, e.matcher(ctx))

	out := make(map[string][]string)
	for _, tool := range missing {
		tier, ok := tiersByTool[tool]
		if !ok {
			continue
		}
		if opts := Pick(tier, e.resolver.PlanOptions(ctx, tool)); len(opts) > 0 {
			out[tool] = opts
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// matcher reports whether a target phrase names tool, directly or through the resolver.
func (e *Engine) matcher(ctx context.Context) func(target, tool string) bool {
	return func(target, tool string) bool {
		tk, k := benchmarks.Key(target), benchmarks.Key(tool)
		if tk == "" || k == "" {
			return false
		}
		if tk == k || strings.Contains(tk, k) {
			return true
		}
		if c, found := e.resolver.ResolveCanonical(ctx, target); found {
			return benchmarks.Key(c.Name) == k
		}
		return false
	}
}

// Assign decides a tier per tool. Explicit "<tier> for <targets>" statements win; then a tool
// named in the message takes the nearest bare tier word; then collective targets fill the rest.
func Assign(message string, tools []string, matches func(target, tool string) bool) map[string]Tier {
	text := textintent.Normalize(message)
	out := make(map[string]Tier)
	rest := TierNone

	locs := statementPattern.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		tier := tierWords[text[loc[2]:loc[3]]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		for _, target := range splitTargets(text[loc[1]:end]) {
			if collectiveTarget.MatchString(target) {
				rest = tier
				continue
			}
			for _, tool := range tools {
				if _, done := out[tool]; !done && matches(target, tool) {
					out[tool] = tier
				}
			}
		}
	}

	bare := bareTierPattern.FindAllStringSubmatchIndex(text, -1)
	for _, tool := range tools {
		if _, done := out[tool]; done || len(bare) == 0 {
			continue
		}
		name := strings.ToLower(tool)
		pos := strings.Index(text, name)
		if pos < 0 {
			continue
		}
		out[tool] = nearest(bare, text, pos, pos+len(name))
	}

	if rest != TierNone {
		for _, tool := range tools {
			if _, done := out[tool]; !done {
				out[tool] = rest
			}
		}
	}
	return out
}

// Pick chooses plans from a ladder ordered lowest first. Mid on a ladder of two or fewer is
// ambiguous and returns every option; otherwise the single middle plan at (n-1)/2.
func Pick(tier Tier, options []string) []string {
	n := len(options)
	if n == 0 {
		return nil
	}
	switch tier {
	case TierLow:
		return []string{options[0]}
	case TierTop:
		return []string{options[n-1]}
	case TierMid:
		if n <= 2 {
			return append([]string(nil), options...)
		}
		return []string{options[(n-1)/2]}
	default:
		return nil
	}
}

func splitTargets(s string) []string {
	s = strings.Trim(s, " .!?;:")
	var out []string
	for _, part := range targetSplit.Split(s, -1) {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "the "))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// nearest picks the tier word closest to the tool mention [start, end).
func nearest(bare [][]int, text string, start, end int) Tier {
	best, bestDist := TierNone, math.MaxInt
	for _, loc := range bare {
		d := 0
		switch {
		case loc[2] >= end:
			d = loc[2] - end
		case loc[3] <= start:
			d = start - loc[3]
		}
		if d < bestDist {
			best, bestDist = tierWords[text[loc[2]:loc[3]]], d
		}
	}
	return best
}
