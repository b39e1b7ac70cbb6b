package classifytopic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"subscription-intake/internal/common/camunda"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/topic"
)

const (
	TaskType = "classify-topic"
)

var (
	ErrClassificationFailed = errors.New("TOPIC_CLASSIFICATION_FAILED")
	ErrInvalidInput         = errors.New("INVALID_INPUT")
)

// subscriptionSignal marks a message as on-topic without a model call.
var subscriptionSignal = regexp.MustCompile(`(?i)\b(?:saas|subscriptions?|licen[cs]es?|seats?|per (?:user|seat)|plan|tier|renewal|invoice|billing|pricing|vendor|contract)\b|\$\s?\d|\b\d+\s?(?:k|usd|eur|gbp)\b|/(?:yr|year|mo|month)\b`)

const systemInstruction = `You decide whether a chat message belongs in a conversation about a company's SaaS subscriptions: which tools they pay for, plans, seats, prices, renewals and negotiating them.
Short answers to such questions (a product name, a number, "yes") are on topic.
Return valid JSON only: {"onTopic": true|false, "reason": "<short reason>"}.`

var verdictSchema = validation.MustCompile("topic-verdict", `{
	"type": "object",
	"required": ["onTopic"],
	"properties": {
		"onTopic": {"type": "boolean"},
		"reason": {"type": "string"}
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
		if errors.Is(err, ErrInvalidInput) {
			h.errs.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
			return
		}
		h.errs.HandleJobError(ctx, client, job, genai.Standard(TaskType, err, apperrors.NewTopicClassificationFailedError))
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute classifies a message, trying the keyword signal before the model.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	msg := strings.TrimSpace(input.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	if subscriptionSignal.MatchString(msg) {
		return &Output{OnTopic: true, Reason: "subscription keywords"}, nil
	}

	out, err := genai.Decode[Output](ctx, h.gen, verdictSchema, genai.Request{
		Op:                TaskType,
		SystemInstruction: systemInstruction,
		UserPrompt:        msg,
		MaxOutputTokens:   h.config.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	h.logger.Debug("topic classified", map[string]interface{}{
		"onTopic": out.OnTopic,
		"reason":  out.Reason,
	})
	return out, nil
}

// Classify serves the topic gateway in-process.
func (h *Handler) Classify(ctx context.Context, message string) (*topic.Verdict, error) {
	out, err := h.Execute(ctx, &Input{Message: message})
	if err != nil {
		return nil, err
	}
	return &topic.Verdict{OnTopic: out.OnTopic, Reason: out.Reason}, nil
}
