package generatebrief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/camunda"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/models"
)

const (
	TaskType = "generate-brief"
)

var (
	ErrBriefFailed  = errors.New("BRIEF_GENERATION_FAILED")
	ErrAnswerFailed = errors.New("ANSWER_FAILED")
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

const (
	statusBelow   = "below"
	statusWithin  = "within"
	statusAbove   = "above"
	statusUnknown = "unknown"
)

const briefInstruction = `You are a SaaS procurement analyst. Write a negotiation brief for the subscriptions below.
Return valid JSON only:
{"summary": "<3-5 sentences>",
 "items": [{"tool": "<name>", "assessment": "<2-3 sentences>", "targetAnnualCost": <number|null>, "leverage": ["<point>", ...]}],
 "nextSteps": ["<step>", ...],
 "potentialSavings": <number>}
Use the benchmark ranges when given; say so when a price is above the range. Do not invent facts about the customer.`

const answerInstruction = `You are a SaaS procurement analyst answering a follow-up question about a negotiation brief you wrote.
Answer in plain text, at most 150 words, grounded on the subscriptions and the brief below.`

var briefSchema = validation.MustCompile("negotiation-brief", `{
	"type": "object",
	"required": ["summary", "items"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["tool", "assessment"],
				"properties": {
					"tool": {"type": "string"},
					"assessment": {"type": "string"},
					"targetAnnualCost": {"type": ["number", "null"]},
					"leverage": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"nextSteps": {"type": "array", "items": {"type": "string"}},
		"potentialSavings": {"type": ["number", "null"]}
	}
}`)

type Handler struct {
	config   *Config
	gen      genai.Generator
	resolver benchmarks.Resolver
	errs     *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler creates a Handler. A nil resolver leaves the brief without benchmark ranges.
func NewHandler(config *Config, gen genai.Generator, resolver benchmarks.Resolver, log logger.Logger) *Handler {
	if resolver == nil {
		resolver = benchmarks.Static{}
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		gen:      gen,
		resolver: resolver,
		errs:     apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errs.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			h.errs.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
			return
		}
		h.errs.HandleJobError(ctx, client, job, genai.Standard(TaskType, err, apperrors.NewBriefGenerationFailedError))
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrInvalidInput)
	}

	switch input.Mode {
	case "", ModeBrief:
		b, err := h.generateBrief(ctx, input.Items)
		if err != nil {
			return nil, err
		}
		return &Output{Brief: b}, nil
	case ModeAnswer:
		if strings.TrimSpace(input.Question) == "" {
			return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
		}
		a, err := h.answer(ctx, input.Question, input.Items, input.Brief)
		if err != nil {
			return nil, err
		}
		return &Output{Answer: a}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, input.Mode)
	}
}

// Brief serves the intake machine in-process.
func (h *Handler) Brief(ctx context.Context, req machine.BriefRequest) (*models.Brief, error) {
	return h.generateBrief(ctx, req.Items)
}

// Answer serves the intake machine in-process.
func (h *Handler) Answer(ctx context.Context, req machine.QuestionRequest) (string, error) {
	return h.answer(ctx, req.Question, req.Items, req.Brief)
}

func (h *Handler) generateBrief(ctx context.Context, items []models.LineItem) (*models.Brief, error) {
	tools := h.toolContexts(ctx, items)

	temp := h.config.BriefTemperature
	b, err := genai.Decode[models.Brief](ctx, h.gen, briefSchema, genai.Request{
		Op:                TaskType,
		SystemInstruction: briefInstruction,
		UserPrompt:        describeTools(tools),
		Temperature:       &temp,
		MaxOutputTokens:   h.config.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBriefFailed, err)
	}

	b.GeneratedAt = time.Now().UTC()
	b.Currency = currencyOf(items)
	b.TotalAnnual = totalAnnual(items)
	if b.PotentialSaves < 0 || b.PotentialSaves > b.TotalAnnual {
		b.PotentialSaves = 0
	}
	for i := range b.Items {
		b.Items[i].BenchmarkStatus = statusUnknown
		for _, tc := range tools {
			if benchmarks.Key(tc.Item.Tool) == benchmarks.Key(b.Items[i].Tool) {
				b.Items[i].BenchmarkStatus = tc.Status
				break
			}
		}
	}

	h.logger.Info("brief generated", map[string]interface{}{
		"items":       len(items),
		"totalAnnual": b.TotalAnnual,
	})
	return b, nil
}

func (h *Handler) answer(ctx context.Context, question string, items []models.LineItem, brief *models.Brief) (string, error) {
	var b strings.Builder
	b.WriteString(describeTools(h.toolContexts(ctx, items)))
	if brief != nil {
		if doc, err := json.Marshal(brief); err == nil {
			b.WriteString("\nBrief:\n")
			b.Write(doc)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s", strings.TrimSpace(question))

	temp := h.config.AnswerTemperature
	text, err := h.gen.Complete(ctx, genai.Request{
		Op:                TaskType + "/answer",
		SystemInstruction: answerInstruction,
		UserPrompt:        b.String(),
		Temperature:       &temp,
		MaxOutputTokens:   h.config.MaxOutputTokens / 4,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswerFailed, err)
	}
	return text, nil
}

func (h *Handler) toolContexts(ctx context.Context, items []models.LineItem) []toolContext {
	out := make([]toolContext, 0, len(items))
	for _, it := range items {
		tc := toolContext{Item: it, Status: statusUnknown}
		tc.Plans = h.resolver.PlanOptions(ctx, it.Tool)
		if r, ok := h.resolver.PerSeatRange(ctx, it.Tool); ok {
			tc.PerSeat = r
		}
		tc.ActualPer = perSeat(it)
		if tc.PerSeat != nil && tc.ActualPer != nil {
			tc.Status = classify(*tc.ActualPer, *tc.PerSeat)
		}
		out = append(out, tc)
	}
	return out
}

// perSeat returns the stated or derived annual cost per seat.
func perSeat(it models.LineItem) *float64 {
	if models.ValidAmount(it.AnnualCostPerSeat) {
		return it.AnnualCostPerSeat
	}
	if models.ValidAmount(it.AnnualCost) && models.ValidAmount(it.Seats) && *it.Seats > 0 {
		v := math.Round(*it.AnnualCost / *it.Seats * 100) / 100
		return &v
	}
	return nil
}

func classify(actual float64, r models.PriceRange) string {
	switch {
	case actual < r.Min:
		return statusBelow
	case actual > r.Max:
		return statusAbove
	default:
		return statusWithin
	}
}

func totalAnnual(items []models.LineItem) float64 {
	var total float64
	for _, it := range items {
		switch {
		case models.ValidAmount(it.AnnualCost):
			total += *it.AnnualCost
		case models.ValidAmount(it.AnnualCostPerSeat) && models.ValidAmount(it.Seats):
			total += *it.AnnualCostPerSeat * *it.Seats
		}
	}
	return math.Round(total)
}

// currencyOf returns the shared currency, or the default when items disagree.
func currencyOf(items []models.LineItem) string {
	cur := ""
	for _, it := range items {
		c := strings.ToUpper(strings.TrimSpace(it.Currency))
		if c == "" {
			continue
		}
		if cur != "" && cur != c {
			return models.DefaultCurrency
		}
		cur = c
	}
	if cur == "" {
		return models.DefaultCurrency
	}
	return cur
}

func describeTools(tools []toolContext) string {
	var b strings.Builder
	b.WriteString("Subscriptions:\n")
	for _, tc := range tools {
		it := tc.Item
		fmt.Fprintf(&b, "- %s", it.Tool)
		if it.HasPlan() {
			fmt.Fprintf(&b, ", plan %s", it.PlanName())
		}
		if models.ValidAmount(it.Seats) {
			fmt.Fprintf(&b, ", %.0f seats", *it.Seats)
		}
		if models.ValidAmount(it.AnnualCost) {
			fmt.Fprintf(&b, ", %.0f %s/year", *it.AnnualCost, it.Currency)
		}
		if tc.ActualPer != nil {
			fmt.Fprintf(&b, ", %.2f per seat/year", *tc.ActualPer)
		}
		if it.Term != nil {
			fmt.Fprintf(&b, ", term %s", *it.Term)
		}
		if tc.PerSeat != nil {
			fmt.Fprintf(&b, " | benchmark %.0f-%.0f per seat/year (%s)", tc.PerSeat.Min, tc.PerSeat.Max, tc.Status)
		}
		if len(tc.Plans) > 0 {
			fmt.Fprintf(&b, " | plans: %s", strings.Join(tc.Plans, ", "))
		}
		if it.Notes != nil {
			fmt.Fprintf(&b, " | notes: %s", *it.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}
