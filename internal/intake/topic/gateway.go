// Package topic decides whether a message needs the on-topic classifier and runs it.
package topic

import (
	"context"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/intake/textintent"
	"subscription-intake/internal/models"
)

// RedirectReply is sent when a message is judged off-topic.
const RedirectReply = "I can only help with your SaaS subscriptions and what you pay for them. " +
	"Tell me which tools your team uses, which plan, how many seats and roughly what you pay per year."

// Verdict is the classifier's answer.
type Verdict struct {
	OnTopic bool   `json:"onTopic"`
	Reason  string `json:"reason,omitempty"`
}

// Classifier judges whether a message is about SaaS subscriptions or pricing.
type Classifier interface {
	Classify(ctx context.Context, message string) (*Verdict, error)
}

var bypassStages = map[models.Stage]bool{
	models.StageConfirmMore:  true,
	models.StageConfirmPlans: true,
	models.StageReady:        true,
	models.StagePromptSignin: true,
}

// ShouldBypassClassifier reports whether message is a contextual reply that a topic classifier
// would misjudge as off-topic ("yes", "nope", "correct").
func ShouldBypassClassifier(state models.IntakeState, message string) bool {
	if bypassStages[state.Stage] {
		return true
	}
	if len(state.LineItems) == 0 {
		return false
	}
	return textintent.IsAffirmative(message) ||
		textintent.IsNegative(message) ||
		textintent.LooksLikeListRequest(message) ||
		textintent.IsCorrect(message)
}

// Decision is the gateway's outcome for one message.
type Decision struct {
	OnTopic  bool
	Bypassed bool
	Reason   string
}

// Gateway wraps a Classifier with the bypass rule and a fail-open policy.
type Gateway struct {
	classifier Classifier
	logger     logger.Logger
}

// NewGateway creates a Gateway. A nil classifier treats everything as on-topic.
func NewGateway(classifier Classifier, log logger.Logger) *Gateway {
	return &Gateway{
		classifier: classifier,
		logger:     log.WithFields(map[string]interface{}{"component": "topic-gateway"}),
	}
}

// Check classifies message unless the state makes it a contextual reply. Classifier errors
// count as on-topic.
func (g *Gateway) Check(ctx context.Context, state models.IntakeState, message string) Decision {
	if ShouldBypassClassifier(state, message) {
		return Decision{OnTopic: true, Bypassed: true}
	}
	if g.classifier == nil {
		return Decision{OnTopic: true}
	}

	v, err := g.classifier.Classify(ctx, message)
	if err != nil {
		g.logger.Warn("topic classification failed, treating as on-topic", map[string]interface{}{
			"stage": string(state.Stage),
			"error": err,
		})
		return Decision{OnTopic: true}
	}
	if v == nil {
		return Decision{OnTopic: true}
	}
	return Decision{OnTopic: v.OnTopic, Reason: v.Reason}
}
