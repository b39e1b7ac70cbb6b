package extractlineitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"subscription-intake/internal/common/camunda"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/models"
)

const (
	TaskType = "extract-line-items"
)

var (
	ErrExtractionFailed  = errors.New("EXTRACTION_FAILED")
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
	ErrInvalidInput      = errors.New("INVALID_INPUT")
)

const systemInstruction = `You extract SaaS subscription facts from one chat message.
Return valid JSON only: {"items": [...]}.
Each item has: tool (product name as written), plan, seats, annualCost (total per year), annualCostPerSeat, currency (ISO 4217 code), term, notes.
Use null for anything the message does not state. Never guess a plan or a price.
Convert monthly amounts to yearly. "19k" means 19000.
If the message answers an open question about a known tool, return that tool with only the new facts.
Return {"items": []} when the message holds no subscription facts.`

var extractionSchema = validation.MustCompile("line-item-extraction", `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {
			"type": "array",
			"maxItems": 100,
			"items": {
				"type": "object",
				"required": ["tool"],
				"properties": {
					"tool": {"type": "string"},
					"plan": {"type": ["string", "null"]},
					"seats": {"type": ["number", "null"]},
					"annualCost": {"type": ["number", "null"]},
					"annualCostPerSeat": {"type": ["number", "null"]},
					"currency": {"type": ["string", "null"]},
					"term": {"type": ["string", "null"]},
					"notes": {"type": ["string", "null"]}
				}
			}
		}
	}
}`)

type Handler struct {
	config *Config
	gen    genai.Generator
	errs   *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, gen genai.Generator, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		gen:    gen,
		errs:   apperrors.NewErrorHandler(log),
		logger: log,
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
		h.errs.HandleJobError(ctx, client, job, h.standard(err))
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute extracts line item facts from one message.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	temp := h.config.Temperature
	doc, err := genai.Decode[extraction](ctx, h.gen, extractionSchema, genai.Request{
		Op:                TaskType,
		SystemInstruction: systemInstruction,
		UserPrompt:        buildPrompt(input),
		Temperature:       &temp,
		MaxOutputTokens:   h.config.MaxOutputTokens,
	})
	if err != nil {
		if genai.CategoryOf(err) == genai.CategoryTimeout {
			return nil, fmt.Errorf("%w: %w", ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	items := make([]models.LineItem, 0, len(doc.Items))
	for _, it := range doc.Items {
		if strings.TrimSpace(it.Tool) == "" {
			continue
		}
		items = append(items, it)
	}

	h.logger.Info("line items extracted", map[string]interface{}{
		"stage": string(input.Stage),
		"count": len(items),
	})
	return &Output{LineItems: items, Count: len(items)}, nil
}

// Extract serves the intake machine in-process.
func (h *Handler) Extract(ctx context.Context, req machine.ExtractRequest) ([]models.LineItem, error) {
	out, err := h.Execute(ctx, &Input{
		Message:       req.Message,
		Stage:         req.Stage,
		Known:         req.Known,
		MissingPlans:  req.MissingPlans,
		MissingPrices: req.MissingPrices,
	})
	if err != nil {
		return nil, err
	}
	return out.LineItems, nil
}

func (h *Handler) standard(err error) *apperrors.StandardError {
	if errors.Is(err, ErrInvalidInput) {
		return apperrors.NewInvalidInputError(err.Error())
	}
	return genai.Standard(TaskType, err, apperrors.NewExtractionFailedError)
}

func buildPrompt(input *Input) string {
	var b strings.Builder
	if len(input.Known) > 0 {
		b.WriteString("Known subscriptions:\n")
		for _, it := range input.Known {
			b.WriteString("- ")
			b.WriteString(it.Tool)
			if it.HasPlan() {
				b.WriteString(" (plan: " + it.PlanName() + ")")
			}
			b.WriteString("\n")
		}
	}
	if len(input.MissingPlans) > 0 {
		fmt.Fprintf(&b, "We asked for the plan of: %s\n", strings.Join(input.MissingPlans, ", "))
	} else if len(input.MissingPrices) > 0 {
		fmt.Fprintf(&b, "We asked for the annual cost of: %s\n", strings.Join(input.MissingPrices, ", "))
	}
	fmt.Fprintf(&b, "Message:\n%s", strings.TrimSpace(input.Message))
	return b.String()
}
