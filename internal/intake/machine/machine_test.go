package machine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/models"
)

type fakeExtractor struct {
	byMessage map[string][]models.LineItem
	err       error
	calls     int
}

func (f *fakeExtractor) Extract(_ context.Context, req ExtractRequest) ([]models.LineItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byMessage[req.Message], nil
}

type fakeAdvisor struct {
	brief      *models.Brief
	briefErr   error
	answer     string
	answerErr  error
	briefCalls int
}

func (f *fakeAdvisor) Brief(_ context.Context, req BriefRequest) (*models.Brief, error) {
	f.briefCalls++
	if f.briefErr != nil {
		return nil, f.briefErr
	}
	b := *f.brief
	return &b, nil
}

func (f *fakeAdvisor) Answer(context.Context, QuestionRequest) (string, error) {
	return f.answer, f.answerErr
}

func testCatalog(t *testing.T) *benchmarks.Catalog {
	t.Helper()
	c, err := benchmarks.NewCatalog([]models.Benchmark{
		{Name: "Slack", Plans: []string{"Pro", "Business+", "Enterprise Grid"}},
		{Name: "Notion", Plans: []string{"Plus", "Business"}},
		{Name: "Figma", Plans: []string{"Starter", "Professional", "Organization", "Enterprise"}},
		{Name: "Zoom", Plans: []string{"Pro", "Business", "Enterprise"}},
	})
	require.NoError(t, err)
	return c
}

func item(tool, plan string, cost float64) models.LineItem {
	it := models.LineItem{Tool: tool, Currency: "USD"}
	if plan != "" {
		it.Plan = models.StringPtr(plan)
	}
	if cost > 0 {
		it.AnnualCost = models.FloatPtr(cost)
	}
	return it
}

func newTestMachine(t *testing.T, ex Extractor, adv Advisor, cfg Config) *Machine {
	t.Helper()
	if cfg.MaxLineItems == 0 {
		cfg.MaxLineItems = 50
	}
	return New(testCatalog(t), ex, adv, cfg, logger.NewTestLogger(t))
}

func step(t *testing.T, m *Machine, st models.IntakeState, msg string) *Outcome {
	t.Helper()
	out, err := m.Step(context.Background(), Turn{State: st, Message: msg, Authenticated: true})
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestStep_TwoCompleteItemsReachConfirmMore(t *testing.T) {
	msg := "Slack Business+ 45 seats $19k/yr, Notion Business 45 seats $4200/yr"
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		msg: {item("slack", "Business+", 19000), item("Notion", "Business", 4200)},
	}}
	m := newTestMachine(t, ex, nil, Config{})

	out := step(t, m, models.NewIntakeState(), msg)

	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
	require.Len(t, out.State.LineItems, 2)
	assert.Equal(t, "Slack", out.State.LineItems[0].Tool)
	assert.Equal(t, "Notion", out.State.LineItems[1].Tool)
	assert.Contains(t, out.Reply, "Anything else to add?")
	assert.Contains(t, out.Reply, "$19,000/yr")
	assert.True(t, out.Extracted)
	assert.Empty(t, out.Analysis.MissingPlans)
	assert.Empty(t, out.Analysis.MissingPrices)
}

func TestStep_ToolWithoutPlanListsOptions(t *testing.T) {
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		"Figma": {{Tool: "Figma"}},
	}}
	m := newTestMachine(t, ex, nil, Config{})

	out := step(t, m, models.NewIntakeState(), "Figma")

	assert.Equal(t, models.StageCollect, out.State.Stage)
	assert.Equal(t, []string{"Figma"}, out.Analysis.MissingPlans)
	assert.Contains(t, out.Reply, "Which Figma plan are you on?")
	assert.Contains(t, out.Reply, "Starter, Professional, Organization, Enterprise")
}

type recordingDiscoverer struct {
	tools []string
}

func (r *recordingDiscoverer) Trigger(tool string) { r.tools = append(r.tools, tool) }

func TestStep_DiscoveryOnlyForExtractedTools(t *testing.T) {
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		"Loom": {{Tool: "Loom", AnnualCost: models.FloatPtr(1200)}},
	}}
	d := &recordingDiscoverer{}
	m := newTestMachine(t, ex, nil, Config{Discoverer: d})

	out := step(t, m, models.NewIntakeState(), "Loom")
	require.Equal(t, []string{"Loom"}, out.Analysis.MissingPlans)

	out = step(t, m, out.State, "Business")
	assert.Equal(t, "plan_name", out.Intent)
	assert.Equal(t, "Business", out.State.LineItems[0].PlanName())
	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
	assert.Equal(t, []string{"Loom"}, d.tools)
}

func TestStep_PlanReplyRepeatingToolName(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})

	for msg, want := range map[string]string{
		"Slack Pro":       "Pro",
		"slack business+": "Business+",
		"Slack Pro plan":  "Pro",
	} {
		st := models.IntakeState{Stage: models.StageCollect, LineItems: []models.LineItem{item("Slack", "", 19000)}}
		out := step(t, m, st, msg)
		assert.Equal(t, "plan_name", out.Intent, msg)
		assert.Equal(t, want, out.State.LineItems[0].PlanName(), msg)
	}
}

func TestStep_SingleMissingPlanAndPriceAutofill(t *testing.T) {
	ex := &fakeExtractor{}
	m := newTestMachine(t, ex, nil, Config{})
	st := models.IntakeState{Stage: models.StageCollect, LineItems: []models.LineItem{{Tool: "Figma", Currency: "USD"}}}

	out := step(t, m, st, "organization")
	assert.Equal(t, "plan_name", out.Intent)
	assert.Equal(t, "Organization", out.State.LineItems[0].PlanName())
	assert.Equal(t, models.StageCollect, out.State.Stage)
	assert.Contains(t, out.Reply, "Roughly how much do you pay for Figma")

	out = step(t, m, out.State, "$19k/yr")
	assert.Equal(t, "approx_cost", out.Intent)
	require.NotNil(t, out.State.LineItems[0].AnnualCost)
	assert.Equal(t, 19000.0, *out.State.LineItems[0].AnnualCost)
	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
	assert.Zero(t, ex.calls)
}

func TestStep_SeatCountIsNotAPlan(t *testing.T) {
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		"12 seats": {{Tool: "Figma", Seats: models.FloatPtr(12)}},
	}}
	m := newTestMachine(t, ex, nil, Config{})
	st := models.IntakeState{Stage: models.StageCollect, LineItems: []models.LineItem{{Tool: "Figma", Currency: "USD"}}}

	out := step(t, m, st, "12 seats")

	assert.Equal(t, "extraction", out.Intent)
	assert.False(t, out.State.LineItems[0].HasPlan())
	require.NotNil(t, out.State.LineItems[0].Seats)
	assert.Equal(t, 12.0, *out.State.LineItems[0].Seats)
}

func TestStep_ConfirmMoreNegativeGeneratesBrief(t *testing.T) {
	adv := &fakeAdvisor{brief: &models.Brief{Summary: "You are overpaying for Slack.", TotalAnnual: 23200}}
	m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
	st := models.IntakeState{
		Stage:     models.StageConfirmMore,
		LineItems: []models.LineItem{item("Slack", "Business+", 19000)},
	}

	out := step(t, m, st, "nope")

	assert.Equal(t, "negative", out.Intent)
	assert.Equal(t, models.StageBriefed, out.State.Stage)
	assert.True(t, out.BriefGenerated)
	require.NotNil(t, out.State.Brief)
	assert.False(t, out.State.Brief.GeneratedAt.IsZero())
	assert.Contains(t, out.Reply, "You are overpaying for Slack.")
	assert.Contains(t, out.Reply, "$23,200")
	assert.Equal(t, 1, adv.briefCalls)
}

func TestStep_ConfirmMoreNegativeWithoutAdvisorStaysReady(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageConfirmMore,
		LineItems: []models.LineItem{item("Slack", "Business+", 19000)},
	}

	out := step(t, m, st, "nope")

	assert.Equal(t, models.StageReady, out.State.Stage)
	assert.Equal(t, genai.CategoryCredentialMissing, out.BriefFailure)
}

func TestStep_ConfirmMoreReplies(t *testing.T) {
	st := models.IntakeState{
		Stage:     models.StageConfirmMore,
		LineItems: []models.LineItem{item("Slack", "Business+", 19000)},
	}

	t.Run("bare yes asks for more", func(t *testing.T) {
		m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
		out := step(t, m, st, "yes")
		assert.Equal(t, models.StageCollect, out.State.Stage)
		assert.Equal(t, addMorePrompt, out.Reply)
	})

	t.Run("yes with details is collected", func(t *testing.T) {
		ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
			"Zoom Pro, $1,800": {item("zoom", "Pro", 1800)},
		}}
		m := newTestMachine(t, ex, nil, Config{})
		out := step(t, m, st, "yes, Zoom Pro, $1,800")
		require.Len(t, out.State.LineItems, 2)
		assert.Equal(t, "Zoom", out.State.LineItems[1].Tool)
		assert.Equal(t, models.StageConfirmMore, out.State.Stage)
	})

	t.Run("ambiguous reply re-asks", func(t *testing.T) {
		m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
		out := step(t, m, st, "hmm")
		assert.Equal(t, models.StageConfirmMore, out.State.Stage)
		assert.Equal(t, confirmMoreReask, out.Reply)
		assert.Len(t, out.State.LineItems, 1)
	})

	t.Run("list request recaps", func(t *testing.T) {
		m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
		out := step(t, m, st, "can you list what I already shared")
		assert.Equal(t, models.StageConfirmMore, out.State.Stage)
		assert.Contains(t, out.Reply, "Slack Business+")
	})
}

func TestStep_MidTierForFigmaAndNotion(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{item("Figma", "", 9000), item("Notion", "", 4200)},
	}

	out := step(t, m, st, "mid tier for Figma and Notion")

	assert.Equal(t, "tier_statement", out.Intent)
	assert.Equal(t, models.StageConfirmPlans, out.State.Stage)
	assert.Equal(t, map[string][]string{
		"Figma":  {"Professional"},
		"Notion": {"Plus", "Business"},
	}, out.State.PlanSuggestions)
	assert.Contains(t, out.Reply, "Figma Professional")
	assert.Contains(t, out.Reply, "Notion: Plus or Business")

	out = step(t, m, out.State, "correct")
	assert.Equal(t, models.StageConfirmPlans, out.State.Stage)
	assert.Equal(t, "Professional", out.State.LineItems[0].PlanName())
	assert.Equal(t, map[string][]string{"Notion": {"Plus", "Business"}}, out.State.PlanSuggestions)

	out = step(t, m, out.State, "Business")
	assert.Equal(t, "Business", out.State.LineItems[1].PlanName())
	assert.Nil(t, out.State.PlanSuggestions)
	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
}

func TestStep_MidTierForAllOfThem(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{item("Slack", "", 19000), item("Figma", "", 9000)},
	}

	out := step(t, m, st, "mid tier for all of them")

	assert.Equal(t, "mid_tier_all", out.Intent)
	assert.Equal(t, map[string][]string{
		"Slack": {"Business+"},
		"Figma": {"Professional"},
	}, out.State.PlanSuggestions)

	out = step(t, m, out.State, "yes")
	assert.Nil(t, out.State.PlanSuggestions)
	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
}

func TestStep_SinglePlanForAll(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{item("Slack", "", 19000), item("Zoom", "", 1800)},
	}

	out := step(t, m, st, "Pro for all of them")

	assert.Equal(t, "single_plan_for_all", out.Intent)
	assert.Equal(t, "Pro", out.State.LineItems[0].PlanName())
	assert.Equal(t, "Pro", out.State.LineItems[1].PlanName())
	assert.Equal(t, models.StageConfirmMore, out.State.Stage)
}

func TestStep_NegativeInCollectWithItemsGoesToReady(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{item("Figma", "", 9000)},
	}

	out := step(t, m, st, "no")

	assert.Equal(t, models.StageReady, out.State.Stage)
	assert.Contains(t, out.Reply, "the plan for Figma")
	assert.Equal(t, []Action{{Type: ActionRetryBrief, Label: retryLabel}}, out.Actions)
}

func TestStep_NegativeWithoutItemsStaysInCollect(t *testing.T) {
	ex := &fakeExtractor{}
	m := newTestMachine(t, ex, nil, Config{})

	out := step(t, m, models.NewIntakeState(), "no")

	assert.Equal(t, models.StageCollect, out.State.Stage)
	assert.Contains(t, out.Reply, genericPrompt)
}

func TestStep_ExtractionFailureRepromptsWithoutMutation(t *testing.T) {
	ex := &fakeExtractor{err: &genai.Error{Op: "extract", Category: genai.CategoryTimeout}}
	m := newTestMachine(t, ex, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{item("Figma", "", 0)},
	}

	out := step(t, m, st, "We have Figma and pay something like that per year honestly, not sure")

	assert.True(t, out.ExtractionFailed)
	assert.Equal(t, models.StageCollect, out.State.Stage)
	assert.Equal(t, st.LineItems, out.State.LineItems)
	assert.Contains(t, out.Reply, "Which Figma plan are you on?")
}

func TestStep_SigninGate(t *testing.T) {
	adv := &fakeAdvisor{brief: &models.Brief{Summary: "Brief."}}
	m := newTestMachine(t, &fakeExtractor{}, adv, Config{RequireSignin: true})
	st := models.IntakeState{
		Stage:     models.StageConfirmMore,
		LineItems: []models.LineItem{item("Slack", "Pro", 8000)},
	}

	out, err := m.Step(context.Background(), Turn{State: st, Message: "that's all"})
	require.NoError(t, err)
	assert.Equal(t, models.StagePromptSignin, out.State.Stage)
	assert.Equal(t, []Action{{Type: ActionSignin, Label: signinLabel}}, out.Actions)
	assert.Zero(t, adv.briefCalls)

	out, err = m.Step(context.Background(), Turn{State: out.State, Message: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.StagePromptSignin, out.State.Stage)

	out, err = m.Step(context.Background(), Turn{State: out.State, Message: "signed in", Authenticated: true})
	require.NoError(t, err)
	assert.Equal(t, models.StageBriefed, out.State.Stage)
	assert.Equal(t, 1, adv.briefCalls)
}

func TestStep_BriefFailureFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &genai.Error{Category: genai.CategoryTimeout}, "took too long"},
		{"schema violation", &genai.Error{Category: genai.CategorySchemaViolation}, "usable brief"},
		{"request failed", &genai.Error{Category: genai.CategoryRequestFailed, Status: 502}, "Something went wrong"},
		{"plain error", errors.New("boom"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvisor{briefErr: tt.err}
			m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
			st := models.IntakeState{
				Stage:     models.StageConfirmMore,
				LineItems: []models.LineItem{item("Slack", "Pro", 8000)},
			}

			out := step(t, m, st, "done")

			assert.Equal(t, models.StageReady, out.State.Stage)
			assert.Contains(t, out.Reply, tt.want)
			assert.Contains(t, out.Reply, "try again")
			assert.NotContains(t, out.Reply, "boom")
			assert.Nil(t, out.State.Brief)
		})
	}
}

func TestStep_ReadyRetrySucceeds(t *testing.T) {
	adv := &fakeAdvisor{brief: &models.Brief{Summary: "Second time lucky."}}
	m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
	st := models.IntakeState{
		Stage:     models.StageReady,
		LineItems: []models.LineItem{item("Slack", "Pro", 8000)},
	}

	out := step(t, m, st, "try again")

	assert.Equal(t, models.StageBriefed, out.State.Stage)
	assert.Equal(t, "Second time lucky.", out.Reply)
}

func TestStep_Briefed(t *testing.T) {
	brief := &models.Brief{Summary: "Original."}
	st := models.IntakeState{
		Stage:     models.StageBriefed,
		LineItems: []models.LineItem{item("Slack", "Pro", 8000)},
		Brief:     brief,
	}

	t.Run("question is answered", func(t *testing.T) {
		adv := &fakeAdvisor{answer: "Ask for a multi-year discount."}
		m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
		out := step(t, m, st, "what should I ask Slack for?")
		assert.Equal(t, models.StageBriefed, out.State.Stage)
		assert.Equal(t, "Ask for a multi-year discount.", out.Reply)
		assert.Same(t, brief, out.State.Brief)
	})

	t.Run("answer failure falls back", func(t *testing.T) {
		adv := &fakeAdvisor{answerErr: &genai.Error{Category: genai.CategoryTimeout}}
		m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
		out := step(t, m, st, "what now?")
		assert.Equal(t, answerFallback, out.Reply)
	})

	t.Run("regenerate re-enters ready and rebuilds", func(t *testing.T) {
		adv := &fakeAdvisor{brief: &models.Brief{Summary: "Fresh."}}
		m := newTestMachine(t, &fakeExtractor{}, adv, Config{})
		out := step(t, m, st, "regenerate")
		assert.Equal(t, models.StageBriefed, out.State.Stage)
		assert.Equal(t, "Fresh.", out.State.Brief.Summary)
	})
}

func TestStep_MaxLineItemsNotice(t *testing.T) {
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		"Slack Pro $8k, Zoom Pro $1,800": {item("Slack", "Pro", 8000), item("Zoom", "Pro", 1800)},
	}}
	m := newTestMachine(t, ex, nil, Config{MaxLineItems: 1})

	out := step(t, m, models.NewIntakeState(), "Slack Pro $8k, Zoom Pro $1,800")

	require.Len(t, out.State.LineItems, 1)
	assert.Equal(t, []string{"Zoom"}, out.Dropped)
	assert.Contains(t, out.Reply, "left out Zoom")
}

func TestStep_InvalidStoredStageFallsBackToCollect(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{Stage: "bogus"}

	out := step(t, m, st, "hello")

	assert.Equal(t, models.StageCollect, out.State.Stage)
	assert.Equal(t, genericPrompt, out.Reply)
}

func TestStep_DoesNotMutateInputState(t *testing.T) {
	m := newTestMachine(t, &fakeExtractor{}, nil, Config{})
	st := models.IntakeState{
		Stage:     models.StageCollect,
		LineItems: []models.LineItem{{Tool: "Figma", Currency: "USD"}},
	}

	step(t, m, st, "Professional")

	assert.False(t, st.LineItems[0].HasPlan())
}

// Every reachable ready/confirm_more state carries at least one item.
func TestStep_ReadyAndConfirmMoreImplyItems(t *testing.T) {
	messages := []string{"", "no", "nope", "yes", "correct", "Business", "mid tier for all of them", "$4k", "list what I already shared", "regenerate", "Slack Pro $8k"}
	stages := []models.Stage{
		models.StageCollect, models.StageConfirmPlans, models.StageConfirmMore,
		models.StagePromptSignin, models.StageReady, models.StageBriefed,
	}
	ex := &fakeExtractor{byMessage: map[string][]models.LineItem{
		"Slack Pro $8k": {{Tool: "unknown"}},
	}}
	adv := &fakeAdvisor{briefErr: &genai.Error{Category: genai.CategoryTimeout}}
	m := newTestMachine(t, ex, adv, Config{})

	for _, stage := range stages {
		for _, msg := range messages {
			out := step(t, m, models.IntakeState{Stage: stage}, msg)
			if out.State.Stage == models.StageReady || out.State.Stage == models.StageConfirmMore {
				t.Errorf("stage %s with message %q reached %s without items", stage, msg, out.State.Stage)
			}
			assert.NotEmpty(t, out.Reply)
		}
	}
}
