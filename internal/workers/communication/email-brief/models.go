package emailbrief

import (
	"context"
	"time"

	"subscription-intake/internal/common/aws"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

type Input struct {
	To    string            `json:"to"`
	Name  string            `json:"name,omitempty"`
	Brief *models.Brief     `json:"brief"`
	Items []models.LineItem `json:"items,omitempty"`
}

type Output struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	SentAt    time.Time `json:"sentAt,omitempty"`
}

// Sender delivers one email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, e aws.Email) (string, error)
}

type ServiceDependencies struct {
	Sender Sender
	Logger logger.Logger
}
