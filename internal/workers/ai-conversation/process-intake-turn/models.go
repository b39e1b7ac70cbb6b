package processintaketurn

import (
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/models"
)

type Input struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
}

type Output struct {
	SessionID      string            `json:"sessionId"`
	OnTopic        bool              `json:"onTopic"`
	ReplyText      string            `json:"replyText"`
	Stage          models.Stage      `json:"stage,omitempty"`
	BriefReady     bool              `json:"briefReady"`
	Analysis       *machine.Analysis `json:"analysis,omitempty"`
	Actions        []machine.Action  `json:"actions,omitempty"`
	SigninRequired bool              `json:"signinRequired"`
}
