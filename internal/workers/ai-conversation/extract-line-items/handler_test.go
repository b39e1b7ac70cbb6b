package extractlineitems

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
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/models"
)

type fakeGenerator struct {
	doc     string
	err     error
	lastReq genai.Request
}

func (f *fakeGenerator) Generate(_ context.Context, schema *validation.Schema, req genai.Request) (json.RawMessage, error) {
	f.lastReq = req
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

func TestHandler_Execute_Success(t *testing.T) {
	gen := &fakeGenerator{doc: `{"items": [
		{"tool": "Slack", "plan": "Business+", "seats": 45, "annualCost": 19000, "currency": "USD"},
		{"tool": "Notion", "plan": null, "annualCost": 4200},
		{"tool": "  "}
	]}`}
	h := NewHandler(LoadConfig(), gen, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Message:      "Slack Business+ 45 seats $19k/yr, Notion $4200/yr",
		Stage:        models.StageCollect,
		Known:        []models.LineItem{{Tool: "Zoom", Plan: models.StringPtr("Pro")}},
		MissingPlans: []string{"Zoom"},
	})

	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "Slack", out.LineItems[0].Tool)
	assert.Equal(t, 19000.0, *out.LineItems[0].AnnualCost)
	assert.Nil(t, out.LineItems[1].Plan)

	assert.Equal(t, TaskType, gen.lastReq.Op)
	assert.Contains(t, gen.lastReq.UserPrompt, "Zoom (plan: Pro)")
	assert.Contains(t, gen.lastReq.UserPrompt, "We asked for the plan of: Zoom")
	require.NotNil(t, gen.lastReq.Temperature)
	assert.Equal(t, 0.0, *gen.lastReq.Temperature)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		gen     *fakeGenerator
		wantErr error
		code    string
	}{
		{
			name:    "empty message",
			input:   Input{Message: "  "},
			gen:     &fakeGenerator{},
			wantErr: ErrInvalidInput,
			code:    "INVALID_INPUT",
		},
		{
			name:    "timeout",
			input:   Input{Message: "Slack"},
			gen:     &fakeGenerator{err: &genai.Error{Category: genai.CategoryTimeout}},
			wantErr: ErrExtractionTimeout,
			code:    "GENERATION_TIMEOUT",
		},
		{
			name:    "schema violation",
			input:   Input{Message: "Slack"},
			gen:     &fakeGenerator{doc: `{"things": []}`},
			wantErr: ErrExtractionFailed,
			code:    "EXTRACTION_FAILED",
		},
		{
			name:    "credential missing",
			input:   Input{Message: "Slack"},
			gen:     &fakeGenerator{err: &genai.Error{Category: genai.CategoryCredentialMissing}},
			wantErr: ErrExtractionFailed,
			code:    "CREDENTIAL_MISSING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), tt.gen, logger.NewNoOpLogger())
			_, err := h.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.code, string(h.standard(err).Code))
		})
	}
}

func TestHandler_ImplementsExtractor(t *testing.T) {
	gen := &fakeGenerator{doc: `{"items": [{"tool": "Figma"}]}`}
	var ex machine.Extractor = NewHandler(LoadConfig(), gen, logger.NewNoOpLogger())

	items, err := ex.Extract(context.Background(), machine.ExtractRequest{Message: "Figma", Stage: models.StageCollect})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Figma", items[0].Tool)
	assert.Contains(t, gen.lastReq.UserPrompt, "Message:\nFigma")
}
