package machine

import (
	"context"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/intake/lineitems"
	"subscription-intake/internal/intake/textintent"
	"subscription-intake/internal/models"
)

// confirmPlans handles the reply to a tier guess.
func (m *Machine) confirmPlans(ctx context.Context, t *turn) {
	intent := textintent.ConfirmPlansRules.Classify(t.Message)
	t.out.Intent = intent.String()

	switch intent {
	case textintent.IntentNegative:
		if len(t.st.LineItems) > 0 {
			m.toReady(t)
			return
		}

	case textintent.IntentCorrect, textintent.IntentAffirmative:
		for tool, opts := range t.st.PlanSuggestions {
			if len(opts) == 1 {
				setPlan(t.st.LineItems, tool, opts[0])
				delete(t.st.PlanSuggestions, tool)
			}
		}
		m.afterSuggestions(ctx, t)
		return

	case textintent.IntentListRequest:
		t.say(recap(t.st.LineItems), suggestionPrompt(t.st.LineItems, t.st.PlanSuggestions))
		return

	case textintent.IntentPlanName:
		if m.resolvePendingPlan(ctx, t) {
			m.afterSuggestions(ctx, t)
			return
		}
	}

	// Anything else may carry new facts ("Figma is actually on Enterprise").
	m.extract(ctx, t, t.Message)
	t.out.Intent = "extraction"
	for tool := range t.st.PlanSuggestions {
		if i := lineitems.Find(t.st.LineItems, tool); i < 0 || t.st.LineItems[i].HasPlan() {
			delete(t.st.PlanSuggestions, tool)
		}
	}
	m.afterSuggestions(ctx, t)
}

// resolvePendingPlan applies a plan-name reply to the pending tool it unambiguously names.
func (m *Machine) resolvePendingPlan(ctx context.Context, t *turn) bool {
	reply := benchmarks.Key(t.Message)
	var matchTool, matchPlan string
	matches := 0
	for tool, opts := range t.st.PlanSuggestions {
		for _, opt := range opts {
			if benchmarks.Key(opt) == reply {
				matchTool, matchPlan = tool, opt
				matches++
				break
			}
		}
	}

	if matches == 1 {
		setPlan(t.st.LineItems, matchTool, matchPlan)
		delete(t.st.PlanSuggestions, matchTool)
		return true
	}
	if matches > 1 || len(t.st.PlanSuggestions) != 1 {
		return false
	}

	// one pending tool: an off-ladder plan name is taken as the user's correction
	for tool := range t.st.PlanSuggestions {
		if !m.plausiblePlan(ctx, t.Message, tool, t.st.LineItems) {
			return false
		}
		setPlan(t.st.LineItems, tool, m.matchOption(ctx, tool, t.Message))
		delete(t.st.PlanSuggestions, tool)
	}
	return true
}

// afterSuggestions re-asks for what is still ambiguous or continues the collection.
func (m *Machine) afterSuggestions(ctx context.Context, t *turn) {
	if len(t.st.PlanSuggestions) > 0 {
		t.st.Stage = models.StageConfirmPlans
		t.say(noticeFor(t.out.Dropped, m.cfg.MaxLineItems), suggestionPrompt(t.st.LineItems, t.st.PlanSuggestions))
		return
	}
	t.st.PlanSuggestions = nil
	m.advance(ctx, t, "")
}

// confirmMore handles the answer to "anything else?".
func (m *Machine) confirmMore(ctx context.Context, t *turn) {
	intent := textintent.ConfirmMoreRules.Classify(t.Message)

	switch intent {
	case textintent.IntentNegative:
		t.out.Intent = intent.String()
		m.toReady(t)

	case textintent.IntentAffirmative:
		if rest := textintent.Residual(t.Message); rest != "" {
			m.collect(ctx, t, rest)
			return
		}
		t.out.Intent = intent.String()
		t.st.Stage = models.StageCollect
		t.say(addMorePrompt)

	case textintent.IntentListRequest:
		t.out.Intent = intent.String()
		t.say(recap(t.st.LineItems), confirmMorePrompt(t.st.LineItems))

	default:
		// a new subscription mentioned directly counts as "yes, add this"
		before := len(t.st.LineItems)
		m.extract(ctx, t, t.Message)
		if len(t.st.LineItems) > before || !lineitems.Complete(t.st.LineItems) {
			t.out.Intent = "extraction"
			m.advance(ctx, t, "")
			return
		}
		t.out.Intent = textintent.IntentNone.String()
		t.say(confirmMoreReask)
	}
}
