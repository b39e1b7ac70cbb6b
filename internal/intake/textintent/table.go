package textintent

// Intent is the heuristic reading of a reply. IntentNone means no rule matched and the reply
// goes to the extraction call.
type Intent int

const (
	IntentNone Intent = iota
	IntentCorrect
	IntentNegative
	IntentAffirmative
	IntentListRequest
	IntentRegenerate
	IntentMidTierAll
	IntentTierStatement
	IntentSinglePlanForAll
	IntentApproxCost
	IntentPlanName
)

var intentNames = map[Intent]string{
	IntentNone:             "none",
	IntentCorrect:          "correct",
	IntentNegative:         "negative",
	IntentAffirmative:      "affirmative",
	IntentListRequest:      "list_request",
	IntentRegenerate:       "regenerate",
	IntentMidTierAll:       "mid_tier_all",
	IntentTierStatement:    "tier_statement",
	IntentSinglePlanForAll: "single_plan_for_all",
	IntentApproxCost:       "approx_cost",
	IntentPlanName:         "plan_name",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "unknown"
}

// Rule binds one predicate to the intent it signals.
type Rule struct {
	Intent Intent
	Match  func(text string) bool
}

// Table is an ordered rule list. The first matching rule wins, so order is precedence.
type Table []Rule

// Classify returns the intent of the first matching rule, or IntentNone.
func (t Table) Classify(text string) Intent {
	for _, r := range t {
		if r.Match(text) {
			return r.Intent
		}
	}
	return IntentNone
}

// Without returns a copy of t minus the given intents. The machine uses it to disable
// rules whose preconditions do not hold for the current state.
func (t Table) Without(intents ...Intent) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		skip := false
		for _, i := range intents {
			if r.Intent == i {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, r)
		}
	}
	return out
}

func approxCost(text string) bool {
	if MentionsSeats(text) {
		return false
	}
	_, ok := ParseApproxAnnualCost(text)
	return ok
}

var (
	// CollectRules orders the shortcuts tried while line items are still being gathered.
	CollectRules = Table{
		{IntentListRequest, LooksLikeListRequest},
		{IntentNegative, IsNegative},
		{IntentMidTierAll, IsMidTierAllTools},
		{IntentTierStatement, MentionsTier},
		{IntentSinglePlanForAll, LooksLikeSinglePlanForAll},
		{IntentApproxCost, approxCost},
		{IntentPlanName, LooksLikePlanName},
	}

	// ConfirmPlansRules orders the readings of a reply to tier suggestions.
	ConfirmPlansRules = Table{
		{IntentCorrect, IsCorrect},
		{IntentNegative, IsNegative},
		{IntentAffirmative, IsAffirmative},
		{IntentListRequest, LooksLikeListRequest},
		{IntentPlanName, LooksLikePlanName},
	}

	// ConfirmMoreRules orders the readings of "anything else to add?".
	ConfirmMoreRules = Table{
		{IntentNegative, IsNegative},
		{IntentAffirmative, IsAffirmative},
		{IntentListRequest, LooksLikeListRequest},
	}

	// BriefedRules orders the readings of a reply once the brief exists.
	BriefedRules = Table{
		{IntentRegenerate, IsRegenerateRequest},
		{IntentListRequest, LooksLikeListRequest},
	}
)
