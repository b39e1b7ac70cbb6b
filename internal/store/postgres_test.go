package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/models"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgres_LoadIntake(t *testing.T) {
	p, mock := newMockPostgres(t)
	doc := `{"lineItems":[{"tool":"Slack","plan":"Pro"}],"stage":"confirm_more"}`
	mock.ExpectQuery(regexp.QuoteMeta(loadIntakeQuery)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"intake"}).AddRow([]byte(doc)))

	state, err := p.LoadIntake(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, models.StageConfirmMore, state.Stage)
	require.Len(t, state.LineItems, 1)
	assert.Equal(t, "Slack", state.LineItems[0].Tool)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadIntake_NormalizesUnknownStage(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadIntakeQuery)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"intake"}).AddRow([]byte(`{"stage":"done"}`)))

	state, err := p.LoadIntake(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, models.StageCollect, state.Stage)
	assert.NotNil(t, state.LineItems)
}

func TestPostgres_LoadIntake_Errors(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadIntakeQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"intake"}))
	mock.ExpectQuery(regexp.QuoteMeta(loadIntakeQuery)).
		WithArgs("s1").
		WillReturnError(errors.New("connection refused"))

	_, err := p.LoadIntake(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = p.LoadIntake(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgres_SaveIntake(t *testing.T) {
	p, mock := newMockPostgres(t)
	state := models.IntakeState{
		LineItems: []models.LineItem{{Tool: "Figma"}},
		Stage:     models.StageCollect,
	}

	mock.ExpectExec(regexp.QuoteMeta(saveIntakeQuery)).
		WithArgs("s1", "user-7", sqlmock.AnyArg(), "collect").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(saveIntakeQuery)).
		WithArgs("s2", nil, sqlmock.AnyArg(), "collect").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.SaveIntake(context.Background(), "s1", "user-7", state))
	require.NoError(t, p.SaveIntake(context.Background(), "s2", "", state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendMessage(t *testing.T) {
	p, mock := newMockPostgres(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(appendMessageQuery)).
		WithArgs("m1", "s1", "user", "Slack Pro", nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(appendMessageQuery)).
		WithArgs("m2", "s1", "assistant", "Here is your brief", []byte(`{"summary":"x"}`), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.AppendMessage(context.Background(), models.ChatMessage{
		ID: "m1", SessionID: "s1", Role: models.RoleUser, Content: "Slack Pro", CreatedAt: at,
	}))
	require.NoError(t, p.AppendMessage(context.Background(), models.ChatMessage{
		ID: "m2", SessionID: "s1", Role: models.RoleAssistant, Content: "Here is your brief",
		Analysis: json.RawMessage(`{"summary":"x"}`), CreatedAt: at,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
