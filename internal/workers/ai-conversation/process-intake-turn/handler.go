package processintaketurn

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"subscription-intake/internal/common/camunda"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/intake/service"
	"subscription-intake/internal/models"
)

const (
	TaskType = "process-intake-turn"
)

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req service.Request) (*service.Response, error)
}

type Handler struct {
	config *Config
	turns  TurnHandler
	errs   *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, turns TurnHandler, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		turns:  turns,
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
		h.errs.HandleJobError(ctx, client, job, err)
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute runs the turn through the intake service. Jobs carry no client key, so the
// service used here should be built without a limiter.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.turns.HandleTurn(ctx, service.Request{
		SessionID: input.SessionID,
		Message:   input.Message,
		UserID:    input.UserID,
		Email:     input.Email,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		SessionID: resp.SessionID,
		OnTopic:   resp.OnTopic,
		ReplyText: resp.ReplyText,
		Analysis:  resp.Analysis,
		Actions:   resp.Actions,
	}
	if resp.Analysis != nil {
		out.Stage = resp.Analysis.Stage
		out.BriefReady = resp.Analysis.Stage == models.StageBriefed && resp.Analysis.Brief != nil
	}
	for _, a := range resp.Actions {
		if a.Type == machine.ActionSignin {
			out.SigninRequired = true
		}
	}
	return out, nil
}
