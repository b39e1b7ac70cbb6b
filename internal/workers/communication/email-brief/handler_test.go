package emailbrief

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/common/aws"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

type fakeSender struct {
	sent []aws.Email
	err  error
}

func (f *fakeSender) Send(_ context.Context, e aws.Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, e)
	return "msg-42", nil
}

func testBrief() *models.Brief {
	return &models.Brief{
		Summary:        "Slack is priced above the list band.",
		TotalAnnual:    23200,
		PotentialSaves: 4000,
		Currency:       "USD",
		Items: []models.BriefItem{{
			Tool:            "Slack",
			Assessment:      "45 seats at $422/seat.",
			TargetPrice:     models.FloatPtr(15000),
			Leverage:        []string{"multi-year <commitment>"},
			BenchmarkStatus: "above",
		}},
		NextSteps: []string{"Request a multi-year quote", "Audit inactive seats"},
	}
}

func newTestService(t *testing.T, sender Sender) *Service {
	return NewService(ServiceDependencies{Sender: sender, Logger: logger.NewTestLogger(t)}, DefaultConfig())
}

func TestService_Execute(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(t, sender)

	out, err := s.Execute(context.Background(), &Input{To: "ana@example.com", Name: "Ana", Brief: testBrief()})

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "msg-42", out.MessageID)
	assert.Equal(t, "SES", out.Provider)

	require.Len(t, sender.sent, 1)
	e := sender.sent[0]
	assert.Equal(t, []string{"ana@example.com"}, e.To)
	assert.Equal(t, "briefs@example.com", e.From)
	assert.Equal(t, "Your SaaS negotiation brief", e.Subject)

	assert.Contains(t, e.Text, "Hi Ana,")
	assert.Contains(t, e.Text, "Total annual spend: $23,200")
	assert.Contains(t, e.Text, "Potential savings: $4,000")
	assert.Contains(t, e.Text, "Slack (above benchmark)")
	assert.Contains(t, e.Text, "Target: $15,000/yr")
	assert.Contains(t, e.Text, "1. Request a multi-year quote")
	assert.Contains(t, e.Text, "2. Audit inactive seats")

	assert.Contains(t, e.HTML, "<h3>Slack</h3>")
	assert.Contains(t, e.HTML, "multi-year &lt;commitment&gt;")
}

func TestService_Execute_ForeignCurrency(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(t, sender)
	b := testBrief()
	b.Currency = "EUR"

	_, err := s.Execute(context.Background(), &Input{To: "ana@example.com", Brief: b})

	require.NoError(t, err)
	assert.Contains(t, sender.sent[0].Text, "Total annual spend: EUR 23,200")
	assert.Contains(t, sender.sent[0].Text, "Hi,")
}

func TestService_Execute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  Input
		sender *fakeSender
		code   apperrors.ErrorCode
	}{
		{name: "bad address", input: Input{To: "not-an-email", Brief: testBrief()}, sender: &fakeSender{}, code: apperrors.ErrCodeInvalidInput},
		{name: "missing brief", input: Input{To: "ana@example.com"}, sender: &fakeSender{}, code: apperrors.ErrCodeInvalidInput},
		{name: "empty summary", input: Input{To: "ana@example.com", Brief: &models.Brief{}}, sender: &fakeSender{}, code: apperrors.ErrCodeInvalidInput},
		{name: "ses failure", input: Input{To: "ana@example.com", Brief: testBrief()}, sender: &fakeSender{err: errors.New("throttled")}, code: apperrors.ErrCodeEmailSendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, tt.sender)
			_, err := s.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			stdErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Empty(t, tt.sender.sent)
		})
	}
}

func TestService_SendBrief(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(t, sender)

	require.NoError(t, s.SendBrief(context.Background(), "ana@example.com", testBrief(), nil))
	assert.Len(t, sender.sent, 1)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	c := DefaultConfig()
	c.DefaultFrom = ""
	assert.Error(t, c.Validate())
}
