package models

import (
	"encoding/json"
	"time"
)

// Session binds an intake document to an identity.
type Session struct {
	ID        string      `json:"id" db:"id"`
	UserID    string      `json:"userId,omitempty" db:"user_id"`
	Intake    IntakeState `json:"intake" db:"intake"`
	Stage     Stage       `json:"stage" db:"stage"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is an append-only transcript entry.
type ChatMessage struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"sessionId" db:"session_id"`
	Role      Role            `json:"role" db:"role"`
	Content   string          `json:"content" db:"content"`
	Analysis  json.RawMessage `json:"analysis,omitempty" db:"analysis"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
