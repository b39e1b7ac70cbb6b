// Package store persists intake sessions and their transcripts.
package store

import (
	"context"
	"errors"

	"subscription-intake/internal/models"
)

var ErrSessionNotFound = errors.New("SESSION_NOT_FOUND")

// Store is the session persistence the intake flow needs. A nil Store means stateless mode.
type Store interface {
	// LoadIntake returns the stored intake document or ErrSessionNotFound.
	LoadIntake(ctx context.Context, sessionID string) (*models.IntakeState, error)
	// SaveIntake writes the intake document and its stage projection. An empty userID keeps any
	// user already bound to the session.
	SaveIntake(ctx context.Context, sessionID, userID string, state models.IntakeState) error
	// AppendMessage adds one transcript entry.
	AppendMessage(ctx context.Context, msg models.ChatMessage) error
}
