package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESClient_Send(t *testing.T) {
	api := &fakeSES{}
	c := NewSESClientWith(api)

	id, err := c.Send(context.Background(), Email{
		From:    "briefs@example.com",
		To:      []string{"ana@example.com"},
		Subject: "Your brief",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "briefs@example.com", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"ana@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Your brief", aws.ToString(api.input.Message.Subject.Data))
	assert.Equal(t, "plain", aws.ToString(api.input.Message.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(api.input.Message.Body.Html.Data))
}

func TestSESClient_Send_TextOnlyAndError(t *testing.T) {
	api := &fakeSES{}
	c := NewSESClientWith(api)

	_, err := c.Send(context.Background(), Email{From: "a@example.com", To: []string{"b@example.com"}, Text: "hi"})
	require.NoError(t, err)
	assert.Nil(t, api.input.Message.Body.Html)

	api.err = errors.New("throttled")
	_, err = c.Send(context.Background(), Email{From: "a@example.com", To: []string{"b@example.com"}, Text: "hi"})
	assert.EqualError(t, err, "throttled")
}
