// Package textintent holds the cheap heuristic readings of a terse user reply.
//
// Every predicate normalizes its input (trim, lower-case, straight quotes) and is free of side
// effects. Precision matters more than recall: a miss falls through to the extraction call.
package textintent

import (
	"regexp"
	"strings"
)

var (
	affirmativePattern = regexp.MustCompile(`^(?:yes|yeah|yep|sure|ok|okay|add|more)\b`)
	// A leading filler word is tolerated so "ok, that's all" reads as negative.
	negativePattern = regexp.MustCompile(`^(?:(?:ok|okay|well|so|i think),?\s+)?(?:no|nope|nah|done|finished|that'?s all|all set|nothing else|no more|no further)\b`)
	unsurePattern   = regexp.MustCompile(`^(?:no idea|not sure|no clue|dunno|(?:i )?don'?t know)\b`)
	correctPattern  = regexp.MustCompile(`^(?:correct|that'?s correct|yes,? (?:that'?s )?correct)[.!]?$`)

	listVerbPattern    = regexp.MustCompile(`\b(?:list|show|repeat)\b`)
	listContextPattern = regexp.MustCompile(`\b(?:already|shared|have)\b`)

	metaQuestionPattern = regexp.MustCompile(`\blist\b|\brepeat\b|what did i`)
	collectivePattern   = regexp.MustCompile(`\b(?:each|all|both|them|those)\b`)
	midPattern          = regexp.MustCompile(`\b(?:mid|middle)\b`)
	tierPattern         = regexp.MustCompile(`\btier\b`)
	tierWordPattern     = regexp.MustCompile(`\b(?:low|entry|starter|bottom|lowest|mid|middle|top|highest|enterprise)\b`)
	regeneratePattern   = regexp.MustCompile(`\b(?:regenerate|re-generate|try again|redo|retry)\b`)

	leadingAffirmative = regexp.MustCompile(`(?i)^(?:yes|yeah|yep|sure|ok|okay|add|more)\b[\s,.!:;-]*(?:please)?[\s,.!:;-]*`)
)

// Normalize trims, lower-cases and straightens quotes.
func Normalize(text string) string {
	t := strings.TrimSpace(text)
	t = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(t)
	return strings.ToLower(strings.Join(strings.Fields(t), " "))
}

// IsAffirmative matches an anchored affirmative token.
func IsAffirmative(text string) bool {
	return affirmativePattern.MatchString(Normalize(text))
}

// IsNegative matches an anchored negative token or phrase.
func IsNegative(text string) bool {
	t := Normalize(text)
	if unsurePattern.MatchString(t) {
		return false
	}
	return negativePattern.MatchString(t)
}

// IsUnsure matches "no idea" style replies to a price or plan question.
func IsUnsure(text string) bool {
	return unsurePattern.MatchString(Normalize(text))
}

// IsCorrect matches the literal confirmation of a suggestion.
func IsCorrect(text string) bool {
	return correctPattern.MatchString(Normalize(text))
}

// LooksLikeListRequest matches "list/show/repeat" together with "already/shared/have".
func LooksLikeListRequest(text string) bool {
	t := Normalize(text)
	return listVerbPattern.MatchString(t) && listContextPattern.MatchString(t)
}

// LooksLikePlanName rejects full sentences and meta questions.
func LooksLikePlanName(text string) bool {
	t := Normalize(text)
	if t == "" || len(t) > 48 {
		return false
	}
	if strings.ContainsAny(t, "<>") {
		return false
	}
	if metaQuestionPattern.MatchString(t) {
		return false
	}
	return len(strings.Fields(t)) <= 6
}

// LooksLikeSinglePlanForAll matches short replies like "Pro for all of them".
func LooksLikeSinglePlanForAll(text string) bool {
	t := Normalize(text)
	if t == "" || strings.Contains(t, ":") || len(t) > 32 {
		return false
	}
	return collectivePattern.MatchString(t)
}

// IsMidTierAllTools matches "mid tier for all of them" style replies.
func IsMidTierAllTools(text string) bool {
	t := Normalize(text)
	if strings.Contains(t, ":") {
		return false
	}
	return midPattern.MatchString(t) && tierPattern.MatchString(t) && collectivePattern.MatchString(t)
}

// MentionsTier reports whether any tier adjective occurs.
func MentionsTier(text string) bool {
	return tierWordPattern.MatchString(Normalize(text))
}

// IsRegenerateRequest matches an explicit request to produce the brief again.
func IsRegenerateRequest(text string) bool {
	return regeneratePattern.MatchString(Normalize(text))
}

// Residual strips a leading affirmative token and returns the rest of the reply as typed.
func Residual(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(leadingAffirmative.ReplaceAllString(t, ""))
}

// StripCollective removes the "for all of them" tail of a single-plan-for-all reply.
func StripCollective(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(t)
	for _, marker := range []string{" for all", " for each", " for both", " for them", " for those", " on all", " on both", " across all"} {
		if idx := strings.Index(lower, marker); idx > 0 {
			return strings.Trim(strings.TrimSpace(t[:idx]), ".,;!")
		}
	}
	for _, marker := range []string{"all on ", "all ", "both on ", "both ", "each on "} {
		if strings.HasPrefix(lower, marker) {
			return strings.Trim(strings.TrimSpace(t[len(marker):]), ".,;!")
		}
	}
	return ""
}
