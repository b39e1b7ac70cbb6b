package machine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/lineitems"
	"subscription-intake/internal/models"
)

const (
	genericPrompt = "Tell me which SaaS subscriptions you pay for. For each one, include the plan, the number of seats and roughly what you pay per year, e.g. \"Slack Business+, 45 seats, $19k/yr\"."

	addMorePrompt    = "Great, which other subscriptions should I add? Plan, seats and annual cost for each helps."
	confirmMoreReask = "Do you want to add another subscription? Reply \"yes\" with the details, or \"no\" and I'll prepare your brief."

	signinPrompt = "Your data is ready. Please sign in so I can generate your negotiation brief and keep it with your account."
	signinLabel  = "Sign in"
	retryLabel   = "Try again"

	answerFallback = "I couldn't answer that just now. Please ask again in a moment, or say \"regenerate\" to rebuild the brief."
)

var printer = message.NewPrinter(language.English)

// formatMoney renders a whole-unit amount with thousands separators.
func formatMoney(v float64, currency string) string {
	n := printer.Sprintf("%d", int64(math.Round(v)))
	switch strings.ToUpper(currency) {
	case "", models.DefaultCurrency:
		return "$" + n
	default:
		return strings.ToUpper(currency) + " " + n
	}
}

func noticeFor(dropped []string, max int) string {
	if len(dropped) == 0 {
		return ""
	}
	return fmt.Sprintf("I can track up to %d subscriptions per session, so I left out %s.", max, joinNames(dropped))
}

func askPlans(missing []string, opts map[string][]string) string {
	var b strings.Builder
	if len(missing) == 1 {
		fmt.Fprintf(&b, "Which %s plan are you on?", missing[0])
	} else {
		fmt.Fprintf(&b, "Which plans are you on for %s?", joinNames(missing))
	}
	for _, tool := range missing {
		if o := opts[tool]; len(o) > 0 {
			fmt.Fprintf(&b, "\n- %s: %s", tool, strings.Join(o, ", "))
		}
	}
	if len(missing) > 1 {
		b.WriteString("\nYou can also answer with a tier, e.g. \"mid tier for all of them\".")
	}
	return b.String()
}

func askPrices(missing []string) string {
	if len(missing) == 1 {
		return fmt.Sprintf("Roughly how much do you pay for %s per year? A ballpark like \"$4k\" is fine.", missing[0])
	}
	return fmt.Sprintf("Roughly how much do you pay per year for %s? Ballparks are fine.", joinNames(missing))
}

func confirmMorePrompt(items []models.LineItem) string {
	return fmt.Sprintf("%s\n\nAnything else to add? Reply \"no\" when you're done and I'll prepare your brief.", recap(items))
}

// recap lists what has been collected so far.
func recap(items []models.LineItem) string {
	if len(items) == 0 {
		return "I don't have any subscriptions yet."
	}
	var b strings.Builder
	b.WriteString("Here's what I have so far:")
	for _, it := range items {
		b.WriteString("\n- ")
		b.WriteString(describe(it))
	}
	return b.String()
}

func describe(it models.LineItem) string {
	parts := []string{it.Tool}
	if it.HasPlan() {
		parts[0] += " " + it.PlanName()
	}
	if models.ValidAmount(it.Seats) {
		parts = append(parts, printer.Sprintf("%d seats", int64(math.Round(*it.Seats))))
	}
	switch {
	case models.ValidAmount(it.AnnualCost):
		parts = append(parts, formatMoney(*it.AnnualCost, it.Currency)+"/yr")
	case models.ValidAmount(it.AnnualCostPerSeat):
		parts = append(parts, formatMoney(*it.AnnualCostPerSeat, it.Currency)+"/seat/yr")
	}
	if it.Term != nil && strings.TrimSpace(*it.Term) != "" {
		parts = append(parts, strings.TrimSpace(*it.Term))
	}
	return strings.Join(parts, ", ")
}

// suggestionPrompt states the single guesses and asks to choose where two remain.
func suggestionPrompt(items []models.LineItem, suggestions map[string][]string) string {
	var sure, open []string
	for _, tool := range orderedTools(items, suggestions) {
		opts := suggestions[tool]
		if len(opts) == 1 {
			sure = append(sure, fmt.Sprintf("%s %s", tool, opts[0]))
		} else {
			open = append(open, fmt.Sprintf("%s: %s", tool, joinChoices(opts)))
		}
	}

	var lines []string
	if len(sure) > 0 {
		lines = append(lines, fmt.Sprintf("So that would be %s. Reply \"correct\" to confirm or tell me the actual plan.", joinNames(sure)))
	}
	if len(open) > 0 {
		lines = append(lines, "Which one is it?")
		for _, o := range open {
			lines = append(lines, "- "+o)
		}
	}
	return strings.Join(lines, "\n")
}

// orderedTools returns suggestion keys in line item order, then any leftovers sorted.
func orderedTools(items []models.LineItem, suggestions map[string][]string) []string {
	seen := make(map[string]bool, len(suggestions))
	var out []string
	for _, it := range items {
		if _, ok := suggestions[it.Tool]; ok && !seen[it.Tool] {
			out = append(out, it.Tool)
			seen[it.Tool] = true
		}
	}
	var rest []string
	for tool := range suggestions {
		if !seen[tool] {
			rest = append(rest, tool)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// briefFallback never exposes raw diagnostics.
func briefFallback(cat genai.Category, items []models.LineItem) string {
	var lead string
	switch cat {
	case genai.CategoryTimeout:
		lead = "Generating your brief took too long."
	case genai.CategoryCredentialMissing:
		lead = "Brief generation isn't available right now."
	case genai.CategorySchemaViolation, genai.CategoryMalformedOutput, genai.CategoryEmptyOutput:
		lead = "I couldn't put together a usable brief this time."
	default:
		lead = "Something went wrong while generating your brief."
	}

	var gaps []string
	if missing := lineitems.MissingPlanTools(items); len(missing) > 0 {
		gaps = append(gaps, "the plan for "+joinNames(missing))
	}
	if missing := lineitems.MissingPriceTools(items); len(missing) > 0 {
		gaps = append(gaps, "the annual cost for "+joinNames(missing))
	}
	if len(gaps) > 0 {
		return fmt.Sprintf("%s It would also help to know %s. Send those details or just say \"try again\".", lead, strings.Join(gaps, " and "))
	}
	return lead + " Say \"try again\" and I'll retry."
}

func renderBrief(b *models.Brief) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(b.Summary))
	if b.TotalAnnual > 0 {
		fmt.Fprintf(&sb, "\n\nTotal annual spend: %s", formatMoney(b.TotalAnnual, b.Currency))
		if b.PotentialSaves > 0 {
			fmt.Fprintf(&sb, " (potential savings around %s)", formatMoney(b.PotentialSaves, b.Currency))
		}
	}
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "\n\n%s: %s", it.Tool, strings.TrimSpace(it.Assessment))
		if it.TargetPrice != nil && models.ValidAmount(it.TargetPrice) {
			fmt.Fprintf(&sb, "\nTarget: %s/yr", formatMoney(*it.TargetPrice, b.Currency))
		}
		for _, l := range it.Leverage {
			fmt.Fprintf(&sb, "\n- %s", l)
		}
	}
	if len(b.NextSteps) > 0 {
		sb.WriteString("\n\nNext steps:")
		for i, s := range b.NextSteps {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, s)
		}
	}
	return strings.TrimSpace(sb.String())
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func joinChoices(opts []string) string {
	if len(opts) == 2 {
		return opts[0] + " or " + opts[1]
	}
	return strings.Join(opts, ", ")
}
