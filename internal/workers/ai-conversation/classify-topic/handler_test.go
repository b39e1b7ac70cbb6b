package classifytopic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/topic"
	"subscription-intake/internal/models"
)

type fakeGenerator struct {
	doc   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, schema *validation.Schema, req genai.Request) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := schema.Validate([]byte(f.doc)); err != nil {
		return nil, &genai.Error{Op: req.Op, Category: genai.CategorySchemaViolation, Err: err}
	}
	return json.RawMessage(f.doc), nil
}

func (f *fakeGenerator) Complete(context.Context, genai.Request) (string, error) {
	return "", errors.New("not used")
}

func TestHandler_Execute_KeywordShortcut(t *testing.T) {
	tests := []string{
		"We pay $19k a year for Slack",
		"45 seats on the business plan",
		"our renewal is in March",
		"about 4k/yr",
	}

	for _, msg := range tests {
		t.Run(msg, func(t *testing.T) {
			gen := &fakeGenerator{}
			h := NewHandler(LoadConfig(), gen, logger.NewNoOpLogger())

			out, err := h.Execute(context.Background(), &Input{Message: msg})

			require.NoError(t, err)
			assert.True(t, out.OnTopic)
			assert.Zero(t, gen.calls)
		})
	}
}

func TestHandler_Execute_ModelVerdict(t *testing.T) {
	gen := &fakeGenerator{doc: `{"onTopic": false, "reason": "weather question"}`}
	h := NewHandler(LoadConfig(), gen, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Message: "what's the weather in Paris?"})

	require.NoError(t, err)
	assert.False(t, out.OnTopic)
	assert.Equal(t, "weather question", out.Reason)
	assert.Equal(t, 1, gen.calls)
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := NewHandler(LoadConfig(), &fakeGenerator{}, logger.NewNoOpLogger())
	_, err := h.Execute(context.Background(), &Input{Message: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	h = NewHandler(LoadConfig(), &fakeGenerator{err: &genai.Error{Category: genai.CategoryTimeout}}, logger.NewNoOpLogger())
	_, err = h.Execute(context.Background(), &Input{Message: "tell me a joke"})
	assert.ErrorIs(t, err, ErrClassificationFailed)
	assert.Equal(t, genai.CategoryTimeout, genai.CategoryOf(err))
}

func TestHandler_FailsOpenThroughGateway(t *testing.T) {
	h := NewHandler(LoadConfig(), &fakeGenerator{err: &genai.Error{Category: genai.CategoryRequestFailed, Status: 500}}, logger.NewNoOpLogger())
	gw := topic.NewGateway(h, logger.NewNoOpLogger())

	d := gw.Check(context.Background(), models.NewIntakeState(), "hello there")

	assert.True(t, d.OnTopic)
	assert.False(t, d.Bypassed)
}
