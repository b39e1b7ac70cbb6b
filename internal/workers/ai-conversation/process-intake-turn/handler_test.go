package processintaketurn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/intake/service"
	"subscription-intake/internal/models"
)

type fakeTurns struct {
	last service.Request
	resp *service.Response
	err  error
}

func (f *fakeTurns) HandleTurn(_ context.Context, req service.Request) (*service.Response, error) {
	f.last = req
	return f.resp, f.err
}

func TestHandler_Execute_Briefed(t *testing.T) {
	turns := &fakeTurns{resp: &service.Response{
		SessionID: "s-1",
		OnTopic:   true,
		ReplyText: "Here is your brief.",
		Analysis: &machine.Analysis{
			Stage: models.StageBriefed,
			Brief: &models.Brief{Summary: "Negotiate."},
		},
	}}
	h := NewHandler(LoadConfig(), turns, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{SessionID: "s-1", Message: "no", UserID: "u-1", Email: "ana@example.com"})

	require.NoError(t, err)
	assert.Equal(t, models.StageBriefed, out.Stage)
	assert.True(t, out.BriefReady)
	assert.False(t, out.SigninRequired)
	assert.Equal(t, service.Request{SessionID: "s-1", Message: "no", UserID: "u-1", Email: "ana@example.com"}, turns.last)
}

func TestHandler_Execute_SigninAndOffTopic(t *testing.T) {
	turns := &fakeTurns{resp: &service.Response{
		SessionID: "s-1",
		OnTopic:   true,
		Analysis:  &machine.Analysis{Stage: models.StagePromptSignin},
		Actions:   []machine.Action{{Type: machine.ActionSignin, Label: "Sign in"}},
	}}
	h := NewHandler(LoadConfig(), turns, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{SessionID: "s-1", Message: "no"})
	require.NoError(t, err)
	assert.True(t, out.SigninRequired)
	assert.False(t, out.BriefReady)

	turns.resp = &service.Response{SessionID: "s-1", OnTopic: false, ReplyText: "redirect"}
	out, err = h.Execute(context.Background(), &Input{SessionID: "s-1", Message: "a poem"})
	require.NoError(t, err)
	assert.False(t, out.OnTopic)
	assert.Empty(t, out.Stage)
}

func TestHandler_Execute_Error(t *testing.T) {
	turns := &fakeTurns{err: apperrors.NewInvalidInputError("message is required")}
	h := NewHandler(LoadConfig(), turns, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{})

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}
