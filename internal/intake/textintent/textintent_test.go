package textintent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseApproxAnnualCost(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"$19k/yr", 19000, true},
		{"4,200", 4200, true},
		{"about $4200 per year", 4200, true},
		{"1.5k", 1500, true},
		{"$2M", 2000000, true},
		{"1,234.56", 1235, true},
		{"3000usd", 3000, true},
		{"4200EUR", 4200, true},
		{"we pay 4,200.", 4200, true},
		{"3000 kids", 3000, true},
		{"1,2345", 0, false},
		{"no idea", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseApproxAnnualCost(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAffirmativeAndNegative(t *testing.T) {
	tests := []struct {
		input    string
		positive bool
		negative bool
	}{
		{"yes", true, false},
		{"Yeah, add Figma", true, false},
		{"okay", true, false},
		{"more", true, false},
		{"nope", false, true},
		{"No more, thanks", false, true},
		{"that's all", false, true},
		{"That’s all", false, true},
		{"ok, that's all", true, true},
		{"all set", false, true},
		{"no idea", false, false},
		{"Notion", false, false},
		{"none of those", false, false},
		{"yesterday we bought Zoom", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.positive, IsAffirmative(tt.input), "affirmative")
			assert.Equal(t, tt.negative, IsNegative(tt.input), "negative")
		})
	}
}

func TestConfirmMoreRules_NegativeBeforeAffirmative(t *testing.T) {
	assert.Equal(t, IntentNegative, ConfirmMoreRules.Classify("ok, that's all"))
	assert.Equal(t, IntentAffirmative, ConfirmMoreRules.Classify("sure"))
	assert.Equal(t, IntentNone, ConfirmMoreRules.Classify("We also pay for Zoom"))
}

func TestLooksLikeListRequest(t *testing.T) {
	assert.True(t, LooksLikeListRequest("can you list what I already shared?"))
	assert.True(t, LooksLikeListRequest("show me what we have"))
	assert.False(t, LooksLikeListRequest("show me pricing"))
	assert.False(t, LooksLikeListRequest("Slack Business+"))
}

func TestLooksLikePlanName(t *testing.T) {
	assert.True(t, LooksLikePlanName("Business+"))
	assert.True(t, LooksLikePlanName("Organization plan"))
	assert.False(t, LooksLikePlanName(""))
	assert.False(t, LooksLikePlanName("what did I tell you"))
	assert.False(t, LooksLikePlanName("we have a lot of people on a fairly expensive plan honestly"))
	assert.False(t, LooksLikePlanName("<script>"))
}

func TestSinglePlanForAll(t *testing.T) {
	assert.True(t, LooksLikeSinglePlanForAll("Pro for all of them"))
	assert.True(t, LooksLikeSinglePlanForAll("both on Business"))
	assert.False(t, LooksLikeSinglePlanForAll("Slack: Pro, Notion: Plus for all"))
	assert.Equal(t, "Pro", StripCollective("Pro for all of them"))
	assert.Equal(t, "Business", StripCollective("both on Business"))
	assert.Equal(t, "", StripCollective("Business"))
}

func TestIsMidTierAllTools(t *testing.T) {
	assert.True(t, IsMidTierAllTools("mid tier for all of them"))
	assert.True(t, IsMidTierAllTools("Middle tier for both"))
	assert.False(t, IsMidTierAllTools("mid tier for Figma"))
	assert.False(t, IsMidTierAllTools("Figma: mid tier for all"))
}

func TestCollectRules_Precedence(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"list what I already shared", IntentListRequest},
		{"nope", IntentNegative},
		{"mid tier for all of them", IntentMidTierAll},
		{"mid tier for Figma and Notion", IntentTierStatement},
		{"Pro for all of them", IntentSinglePlanForAll},
		{"$19k/yr", IntentApproxCost},
		{"45 seats", IntentPlanName},
		{"Business+", IntentPlanName},
		{"We use Slack Business+ with 45 seats and pay around nineteen thousand a year", IntentNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectRules.Classify(tt.input))
		})
	}
}

func TestTable_Without(t *testing.T) {
	table := CollectRules.Without(IntentPlanName, IntentApproxCost)
	assert.Equal(t, IntentNone, table.Classify("Business+"))
	assert.Len(t, CollectRules, len(table)+2)
}

func TestResidual(t *testing.T) {
	assert.Equal(t, "", Residual("Yes!"))
	assert.Equal(t, "Figma Organization, 12 seats", Residual("Yes, Figma Organization, 12 seats"))
	assert.Equal(t, "zoom", Residual("sure please zoom"))
}

func TestIsRegenerateRequest(t *testing.T) {
	assert.True(t, IsRegenerateRequest("can you try again"))
	assert.True(t, IsRegenerateRequest("Regenerate"))
	assert.False(t, IsRegenerateRequest("what should I negotiate first?"))
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "mid_tier_all", IntentMidTierAll.String())
	assert.Equal(t, "unknown", Intent(99).String())
}
