package machine

import (
	"context"
	"strings"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/intake/lineitems"
	"subscription-intake/internal/intake/textintent"
	"subscription-intake/internal/models"
)

// collect handles a message while line items are being gathered. message may be the residual
// of a "yes, also ..." reply from confirm_more.
func (m *Machine) collect(ctx context.Context, t *turn, message string) {
	t.st.Stage = models.StageCollect
	table := m.collectTable(t.st.LineItems)

	for {
		intent := table.Classify(message)
		if intent == textintent.IntentNone {
			break
		}
		if m.collectShortcut(ctx, t, intent, message) {
			t.out.Intent = intent.String()
			return
		}
		table = table.Without(intent)
	}

	m.collectByExtraction(ctx, t, message)
}

// collectTable disables the shortcuts whose preconditions do not hold for items.
func (m *Machine) collectTable(items []models.LineItem) textintent.Table {
	table := textintent.CollectRules
	if len(items) == 0 {
		return table.Without(
			textintent.IntentNegative,
			textintent.IntentMidTierAll,
			textintent.IntentTierStatement,
			textintent.IntentSinglePlanForAll,
			textintent.IntentApproxCost,
			textintent.IntentPlanName,
		)
	}
	if len(lineitems.MissingPlanTools(items)) == 0 {
		table = table.Without(
			textintent.IntentMidTierAll,
			textintent.IntentTierStatement,
			textintent.IntentSinglePlanForAll,
			textintent.IntentPlanName,
		)
	}
	if len(lineitems.MissingPriceTools(items)) != 1 {
		table = table.Without(textintent.IntentApproxCost)
	}
	return table
}

// collectShortcut applies one heuristic. It returns false when the heuristic does not fit
// after all, so the next rule (or extraction) gets its chance.
func (m *Machine) collectShortcut(ctx context.Context, t *turn, intent textintent.Intent, message string) bool {
	items := t.st.LineItems

	switch intent {
	case textintent.IntentListRequest:
		m.advance(ctx, t, recap(items))
		return true

	case textintent.IntentNegative:
		m.toReady(t)
		return true

	case textintent.IntentMidTierAll, textintent.IntentTierStatement:
		suggestions := m.tiers.Suggest(ctx, message, lineitems.MissingPlanTools(items))
		if suggestions == nil {
			return false
		}
		m.offerSuggestions(t, suggestions)
		return true

	case textintent.IntentSinglePlanForAll:
		plan := textintent.StripCollective(message)
		if plan == "" || !textintent.LooksLikePlanName(plan) {
			return false
		}
		for _, tool := range lineitems.MissingPlanTools(items) {
			setPlan(t.st.LineItems, tool, m.matchOption(ctx, tool, plan))
		}
		m.advance(ctx, t, "")
		return true

	case textintent.IntentApproxCost:
		missing := lineitems.MissingPriceTools(items)
		if len(missing) != 1 || !m.aboutOnly(ctx, message, missing[0], items) {
			return false
		}
		v, ok := textintent.ParseApproxAnnualCost(message)
		if !ok {
			return false
		}
		i := lineitems.Find(t.st.LineItems, missing[0])
		t.st.LineItems[i].AnnualCost = models.FloatPtr(v)
		m.advance(ctx, t, "")
		return true

	case textintent.IntentPlanName:
		missing := lineitems.MissingPlanTools(items)
		if len(missing) != 1 || !m.plausiblePlan(ctx, message, missing[0], items) {
			return false
		}
		setPlan(t.st.LineItems, missing[0], m.matchOption(ctx, missing[0], message))
		m.advance(ctx, t, "")
		return true
	}
	return false
}

func (m *Machine) collectByExtraction(ctx context.Context, t *turn, message string) {
	res := m.extract(ctx, t, message)
	t.out.Intent = "extraction"

	if missing := lineitems.MissingPlanTools(res.Items); len(missing) > 0 && textintent.MentionsTier(message) {
		if suggestions := m.tiers.Suggest(ctx, message, missing); suggestions != nil {
			m.offerSuggestions(t, suggestions)
			return
		}
	}
	m.advance(ctx, t, "")
}

// offerSuggestions enters confirm_plans with the given guesses.
func (m *Machine) offerSuggestions(t *turn, suggestions map[string][]string) {
	t.st.PlanSuggestions = suggestions
	t.st.Stage = models.StageConfirmPlans
	t.say(noticeFor(t.out.Dropped, m.cfg.MaxLineItems), suggestionPrompt(t.st.LineItems, suggestions))
}

// plausiblePlan rejects seat counts, prices and mentions of another tool.
func (m *Machine) plausiblePlan(ctx context.Context, message, tool string, items []models.LineItem) bool {
	if textintent.MentionsSeats(message) {
		return false
	}
	if _, ok := textintent.ParseApproxAnnualCost(message); ok {
		return false
	}
	for _, opt := range m.resolver.PlanOptions(ctx, tool) {
		if benchmarks.Key(opt) == benchmarks.Key(message) {
			return true
		}
	}
	if mentionsOtherTool(message, tool, items) {
		return false
	}
	if c, ok := m.resolver.ResolveCanonical(ctx, message); ok && benchmarks.Key(c.Name) != benchmarks.Key(tool) {
		return false
	}
	return true
}

// aboutOnly reports whether a price reply can only be about tool: it is short or names the
// tool, and names no other known tool.
func (m *Machine) aboutOnly(_ context.Context, message, tool string, items []models.LineItem) bool {
	if mentionsOtherTool(message, tool, items) {
		return false
	}
	if len(strings.Fields(message)) <= 5 {
		return true
	}
	return strings.Contains(strings.ToLower(message), strings.ToLower(tool))
}

// matchOption returns the catalog spelling of plan when it names one of tool's plans. A leading
// tool name or alias ("Slack Pro") is dropped first.
func (m *Machine) matchOption(ctx context.Context, tool, plan string) string {
	plan = m.stripToolName(ctx, tool, strings.Trim(strings.TrimSpace(plan), ".!"))
	for _, opt := range m.resolver.PlanOptions(ctx, tool) {
		if benchmarks.Key(opt) == benchmarks.Key(plan) {
			return opt
		}
	}
	return strings.TrimSuffix(strings.TrimSuffix(plan, " plan"), " Plan")
}

// stripToolName removes the longest leading run of words that names tool.
func (m *Machine) stripToolName(ctx context.Context, tool, plan string) string {
	words := strings.Fields(plan)
	toolKey := benchmarks.Key(tool)
	for n := len(words) - 1; n >= 1; n-- {
		prefix := strings.Join(words[:n], " ")
		named := benchmarks.Key(prefix) == toolKey
		if !named {
			c, ok := m.resolver.ResolveCanonical(ctx, prefix)
			named = ok && benchmarks.Key(c.Name) == toolKey
		}
		if named {
			return strings.Join(words[n:], " ")
		}
	}
	return plan
}

func mentionsOtherTool(message, tool string, items []models.LineItem) bool {
	lower := strings.ToLower(message)
	for _, it := range items {
		if benchmarks.Key(it.Tool) == benchmarks.Key(tool) {
			continue
		}
		if name := strings.ToLower(it.Tool); name != "" && strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func setPlan(items []models.LineItem, tool, plan string) {
	if i := lineitems.Find(items, tool); i >= 0 && strings.TrimSpace(plan) != "" {
		items[i].Plan = models.StringPtr(plan)
	}
}
