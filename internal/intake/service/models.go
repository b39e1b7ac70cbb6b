package service

import (
	"context"
	"time"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/observability"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/intake/ratelimit"
	"subscription-intake/internal/intake/topic"
	"subscription-intake/internal/models"
	"subscription-intake/internal/store"
)

// Request is one chat turn as received from a client.
type Request struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	ClientKey string `json:"-"` // rate-limit key, normally the client IP
	UserID    string `json:"-"` // empty for anonymous users
	Email     string `json:"-"`
}

// Response is the reply to one chat turn.
type Response struct {
	SessionID string            `json:"sessionId"`
	OnTopic   bool              `json:"onTopic"`
	ReplyText string            `json:"replyText"`
	Analysis  *machine.Analysis `json:"analysis,omitempty"`
	Actions   []machine.Action  `json:"actions,omitempty"`
}

// BriefMailer emails a generated brief.
type BriefMailer interface {
	SendBrief(ctx context.Context, to string, brief *models.Brief, items []models.LineItem) error
}

// Config holds the per-turn limits.
type Config struct {
	MaxMessageChars int
	EmailBrief      bool
	TurnTimeout     time.Duration // bounds classification and the step; zero means no limit
}

// ServiceDependencies wires the collaborators. Limiter, Store, Mailer and Obs may be nil.
type ServiceDependencies struct {
	Limiter *ratelimit.Limiter
	Store   store.Store
	Gateway *topic.Gateway
	Machine *machine.Machine
	Mailer  BriefMailer
	Obs     *observability.Observability
	Logger  logger.Logger
}
