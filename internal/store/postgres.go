package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"subscription-intake/internal/models"
)

// Schema creates the session and transcript tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS intake_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		intake JSONB NOT NULL,
		stage TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS intake_sessions_user_idx ON intake_sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		analysis JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, created_at)`,
}

const (
	loadIntakeQuery = `SELECT intake FROM intake_sessions WHERE id = $1`

	saveIntakeQuery = `INSERT INTO intake_sessions (id, user_id, intake, stage)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	user_id = COALESCE(EXCLUDED.user_id, intake_sessions.user_id),
	intake = EXCLUDED.intake,
	stage = EXCLUDED.stage,
	updated_at = now()`

	appendMessageQuery = `INSERT INTO chat_messages (id, session_id, role, content, analysis, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
)

// Postgres stores sessions in intake_sessions and transcripts in chat_messages.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) LoadIntake(ctx context.Context, sessionID string) (*models.IntakeState, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, loadIntakeQuery, sessionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load intake: %w", err)
	}

	var state models.IntakeState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode intake: %w", err)
	}
	state.Normalize()
	return &state, nil
}

func (p *Postgres) SaveIntake(ctx context.Context, sessionID, userID string, state models.IntakeState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode intake: %w", err)
	}

	user := sql.NullString{String: userID, Valid: userID != ""}
	if _, err := p.db.ExecContext(ctx, saveIntakeQuery, sessionID, user, doc, string(state.Stage)); err != nil {
		return fmt.Errorf("save intake: %w", err)
	}
	return nil
}

func (p *Postgres) AppendMessage(ctx context.Context, msg models.ChatMessage) error {
	var analysis interface{}
	if len(msg.Analysis) > 0 {
		analysis = []byte(msg.Analysis)
	}

	_, err := p.db.ExecContext(ctx, appendMessageQuery,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, analysis, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
