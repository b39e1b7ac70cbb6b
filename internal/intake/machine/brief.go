package machine

import (
	"context"
	"time"

	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/textintent"
	"subscription-intake/internal/models"
)

// promptSignin waits for an authenticated identity before the brief is generated.
func (m *Machine) promptSignin(t *turn) {
	if t.Authenticated || !m.cfg.RequireSignin {
		m.toReady(t)
		return
	}
	t.say(signinPrompt)
	t.out.Actions = append(t.out.Actions, Action{Type: ActionSignin, Label: signinLabel})
}

// ready generates the brief. Failure keeps the stage so the next message retries.
func (m *Machine) ready(ctx context.Context, t *turn) {
	if m.cfg.RequireSignin && !t.Authenticated {
		t.st.Stage = models.StagePromptSignin
		t.say(signinPrompt)
		t.out.Actions = append(t.out.Actions, Action{Type: ActionSignin, Label: signinLabel})
		return
	}

	if m.advisor == nil {
		t.out.BriefFailure = genai.CategoryCredentialMissing
		t.say(briefFallback(genai.CategoryCredentialMissing, t.st.LineItems))
		t.out.Actions = append(t.out.Actions, Action{Type: ActionRetryBrief, Label: retryLabel})
		return
	}

	brief, err := m.advisor.Brief(ctx, BriefRequest{Items: t.st.LineItems})
	if err != nil || brief == nil {
		cat := genai.CategoryOf(err)
		if err == nil {
			cat = genai.CategoryEmptyOutput
		}
		t.out.BriefFailure = cat
		m.logger.Warn("brief generation failed", map[string]interface{}{
			"category": string(cat),
			"items":    len(t.st.LineItems),
			"error":    err,
		})
		t.st.Stage = models.StageReady
		t.say(briefFallback(cat, t.st.LineItems))
		t.out.Actions = append(t.out.Actions, Action{Type: ActionRetryBrief, Label: retryLabel})
		return
	}

	if brief.GeneratedAt.IsZero() {
		brief.GeneratedAt = time.Now().UTC()
	}
	t.st.Brief = brief
	t.st.Stage = models.StageBriefed
	t.out.BriefGenerated = true
	t.say(renderBrief(brief))
}

// retryReady runs after a failed brief. Details sent with the retry are merged first.
func (m *Machine) retryReady(ctx context.Context, t *turn) {
	if t.Message == "" || textintent.IsRegenerateRequest(t.Message) || textintent.IsAffirmative(t.Message) {
		t.out.Intent = textintent.IntentRegenerate.String()
		return
	}
	m.extract(ctx, t, t.Message)
	t.out.Intent = "extraction"
}

// briefed answers follow-up questions; an explicit regenerate request re-enters ready.
func (m *Machine) briefed(ctx context.Context, t *turn) {
	intent := textintent.BriefedRules.Classify(t.Message)
	t.out.Intent = intent.String()

	switch intent {
	case textintent.IntentRegenerate:
		t.st.Brief = nil
		m.toReady(t)
		return
	case textintent.IntentListRequest:
		t.say(recap(t.st.LineItems))
		return
	}

	if m.advisor == nil {
		t.say(answerFallback)
		return
	}
	answer, err := m.advisor.Answer(ctx, QuestionRequest{
		Question: t.Message,
		Items:    t.st.LineItems,
		Brief:    t.st.Brief,
	})
	if err != nil {
		m.logger.Warn("follow-up answer failed", map[string]interface{}{
			"category": string(genai.CategoryOf(err)),
			"error":    err,
		})
		t.say(answerFallback)
		return
	}
	t.say(answer)
}
