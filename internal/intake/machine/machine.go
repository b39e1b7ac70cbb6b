// Package machine drives the subscription intake dialogue one user turn at a time.
//
// Step is deterministic given its collaborators: it reads the stored IntakeState and the
// message, consults the heuristic classifiers first, calls the extractor only when no
// heuristic applies, and returns the next state with the reply to show.
package machine

import (
	"context"
	"strings"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/lineitems"
	"subscription-intake/internal/intake/tiers"
	"subscription-intake/internal/models"
)

// ExtractRequest is what the extractor sees of the conversation.
type ExtractRequest struct {
	Message       string
	Stage         models.Stage
	Known         []models.LineItem
	MissingPlans  []string
	MissingPrices []string
}

// Extractor turns a free-form message into line item facts.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]models.LineItem, error)
}

// BriefRequest asks for the negotiation brief.
type BriefRequest struct {
	Items []models.LineItem
}

// QuestionRequest is an open-ended question once the brief exists.
type QuestionRequest struct {
	Question string
	Items    []models.LineItem
	Brief    *models.Brief
}

// Advisor produces the brief and answers follow-up questions about it.
type Advisor interface {
	Brief(ctx context.Context, req BriefRequest) (*models.Brief, error)
	Answer(ctx context.Context, req QuestionRequest) (string, error)
}

// Config holds the dialogue rules.
type Config struct {
	RequireSignin bool
	MaxLineItems  int
	// Discoverer, when set, looks up new tool names the resolver does not know. Only tool
	// names from extraction reach it, never plan or tier replies.
	Discoverer lineitems.Discoverer
}

// Action is a UI hint returned with a reply.
type Action struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

const (
	ActionSignin     = "signin"
	ActionRetryBrief = "retry_brief"
)

// Turn is one user message against the stored state.
type Turn struct {
	State         models.IntakeState
	Message       string
	Authenticated bool
}

// Analysis is the structured view of the state returned alongside the reply.
type Analysis struct {
	Stage           models.Stage        `json:"stage"`
	Intent          string              `json:"intent,omitempty"`
	LineItems       []models.LineItem   `json:"lineItems"`
	MissingPlans    []string            `json:"missingPlans,omitempty"`
	MissingPrices   []string            `json:"missingPrices,omitempty"`
	PlanSuggestions map[string][]string `json:"planSuggestions,omitempty"`
	Brief           *models.Brief       `json:"brief,omitempty"`
}

// Outcome is the result of Step.
type Outcome struct {
	State    models.IntakeState
	Reply    string
	Actions  []Action
	Analysis *Analysis

	Intent           string
	Extracted        bool
	ExtractionFailed bool
	BriefGenerated   bool
	BriefFailure     genai.Category
	Dropped          []string
}

// Machine is the intake state machine.
type Machine struct {
	resolver  benchmarks.Resolver
	merger    *lineitems.Merger
	tiers     *tiers.Engine
	extractor Extractor
	advisor   Advisor
	cfg       Config
	logger    logger.Logger
}

// New creates a Machine. A nil resolver disables canonicalization and plan ladders.
func New(resolver benchmarks.Resolver, extractor Extractor, advisor Advisor, cfg Config, log logger.Logger) *Machine {
	if resolver == nil {
		resolver = benchmarks.Static{}
	}
	var opts []lineitems.Option
	if cfg.Discoverer != nil {
		opts = append(opts, lineitems.WithDiscoverer(cfg.Discoverer))
	}
	return &Machine{
		resolver:  resolver,
		merger:    lineitems.NewMerger(resolver, cfg.MaxLineItems, opts...),
		tiers:     tiers.NewEngine(resolver),
		extractor: extractor,
		advisor:   advisor,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "intake-machine"}),
	}
}

// turn carries the mutable state of one Step.
type turn struct {
	Turn
	st  models.IntakeState
	out *Outcome
}

func (t *turn) say(parts ...string) {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	t.out.Reply = strings.Join(keep, "\n\n")
}

// Step advances the dialogue by one user message.
func (m *Machine) Step(ctx context.Context, in Turn) (*Outcome, error) {
	t := &turn{Turn: in, st: in.State.Clone(), out: &Outcome{}}
	t.st.Normalize()
	t.Message = strings.TrimSpace(in.Message)

	switch t.st.Stage {
	case models.StageCollect:
		m.collect(ctx, t, t.Message)
	case models.StageConfirmPlans:
		m.confirmPlans(ctx, t)
	case models.StageConfirmMore:
		m.confirmMore(ctx, t)
	case models.StagePromptSignin:
		m.promptSignin(t)
	case models.StageReady:
		m.retryReady(ctx, t)
	case models.StageBriefed:
		m.briefed(ctx, t)
	}

	if len(t.st.LineItems) == 0 {
		t.st.Stage = models.StageCollect
		t.st.PlanSuggestions = nil
		t.st.Brief = nil
		t.say(noticeFor(t.out.Dropped, m.cfg.MaxLineItems), genericPrompt)
	} else if t.st.Stage == models.StageReady {
		m.ready(ctx, t)
	}

	if len(t.st.PlanSuggestions) == 0 {
		t.st.PlanSuggestions = nil
	}

	t.out.State = t.st
	t.out.Analysis = m.analysis(t)
	return t.out, nil
}

func (m *Machine) analysis(t *turn) *Analysis {
	items := t.st.LineItems
	return &Analysis{
		Stage:           t.st.Stage,
		Intent:          t.out.Intent,
		LineItems:       items,
		MissingPlans:    lineitems.MissingPlanTools(items),
		MissingPrices:   lineitems.MissingPriceTools(items),
		PlanSuggestions: t.st.PlanSuggestions,
		Brief:           t.st.Brief,
	}
}

// toReady enters the ready stage; Step generates the brief before returning.
func (m *Machine) toReady(t *turn) {
	t.st.PlanSuggestions = nil
	t.st.Stage = models.StageReady
}

// advance recomputes completeness and asks the next question, or moves to confirm_more.
func (m *Machine) advance(ctx context.Context, t *turn, lead string) {
	items := t.st.LineItems
	if len(items) == 0 {
		t.st.Stage = models.StageCollect
		return
	}

	notice := noticeFor(t.out.Dropped, m.cfg.MaxLineItems)
	if missing := lineitems.MissingPlanTools(items); len(missing) > 0 {
		t.st.Stage = models.StageCollect
		t.say(lead, notice, askPlans(missing, m.planOptions(ctx, missing)))
		return
	}
	if missing := lineitems.MissingPriceTools(items); len(missing) > 0 {
		t.st.Stage = models.StageCollect
		t.say(lead, notice, askPrices(missing))
		return
	}

	t.st.Stage = models.StageConfirmMore
	t.say(lead, notice, confirmMorePrompt(items))
}

func (m *Machine) planOptions(ctx context.Context, tools []string) map[string][]string {
	out := make(map[string][]string, len(tools))
	for _, tool := range tools {
		if opts := m.resolver.PlanOptions(ctx, tool); len(opts) > 0 {
			out[tool] = opts
		}
	}
	return out
}

// extract runs the extractor and merges its facts. Extraction failure counts as no facts.
func (m *Machine) extract(ctx context.Context, t *turn, message string) lineitems.Result {
	t.out.Extracted = true
	if m.extractor == nil {
		return lineitems.Result{Items: t.st.LineItems}
	}

	items := t.st.LineItems
	facts, err := m.extractor.Extract(ctx, ExtractRequest{
		Message:       message,
		Stage:         t.st.Stage,
		Known:         items,
		MissingPlans:  lineitems.MissingPlanTools(items),
		MissingPrices: lineitems.MissingPriceTools(items),
	})
	if err != nil {
		t.out.ExtractionFailed = true
		m.logger.Warn("extraction failed, continuing without facts", map[string]interface{}{
			"stage":    string(t.st.Stage),
			"category": string(genai.CategoryOf(err)),
			"error":    err,
		})
		facts = nil
	}

	res := m.merger.MergeDetailed(ctx, items, facts)
	t.st.LineItems = res.Items
	t.out.Dropped = append(t.out.Dropped, res.Dropped...)
	return res
}
