package emailbrief

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"subscription-intake/internal/common/aws"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

type Service struct {
	config *Config
	sender Sender
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		sender: deps.Sender,
		logger: deps.Logger,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	doc, err := json.Marshal(input)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := inputSchema.Validate(doc); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	text, html, err := render(input)
	if err != nil {
		return nil, apperrors.NewBusinessRuleError("Brief rendering failed", err.Error())
	}

	id, err := s.sender.Send(ctx, aws.Email{
		From:    s.config.DefaultFrom,
		To:      []string{input.To},
		Subject: s.config.Subject,
		Text:    text,
		HTML:    html,
	})
	if err != nil {
		return nil, apperrors.NewEmailSendFailedError(fmt.Errorf("send to %s: %w", input.To, err))
	}

	s.logger.Info("brief emailed", map[string]interface{}{
		"messageId": id,
		"items":     len(input.Brief.Items),
	})

	return &Output{
		Success:   true,
		MessageID: id,
		Provider:  "SES",
		SentAt:    time.Now().UTC(),
	}, nil
}

// SendBrief emails a generated brief to a signed-in user.
func (s *Service) SendBrief(ctx context.Context, to string, brief *models.Brief, items []models.LineItem) error {
	_, err := s.Execute(ctx, &Input{To: to, Brief: brief, Items: items})
	return err
}
