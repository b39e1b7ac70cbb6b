// Package service runs one chat turn end to end: admission, session load, topic gate, the
// intake machine, persistence and the brief email hand-off.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/metrics"
	"subscription-intake/internal/common/observability"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/intake/ratelimit"
	"subscription-intake/internal/intake/topic"
	"subscription-intake/internal/models"
	"subscription-intake/internal/store"
)

const emailTimeout = 30 * time.Second

type Service struct {
	limiter *ratelimit.Limiter
	store   store.Store
	gateway *topic.Gateway
	machine *machine.Machine
	mailer  BriefMailer
	obs     *observability.Observability
	cfg     Config
	logger  logger.Logger

	newID func() string
	now   func() time.Time
	mail  sync.WaitGroup
}

func NewService(deps ServiceDependencies, cfg Config) *Service {
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = 4000
	}
	gw := deps.Gateway
	if gw == nil {
		gw = topic.NewGateway(nil, deps.Logger)
	}
	return &Service{
		limiter: deps.Limiter,
		store:   deps.Store,
		gateway: gw,
		machine: deps.Machine,
		mailer:  deps.Mailer,
		obs:     deps.Obs,
		cfg:     cfg,
		logger:  deps.Logger.WithFields(map[string]interface{}{"component": "intake-service"}),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Stateless reports whether no session store is configured.
func (s *Service) Stateless() bool {
	return s.store == nil
}

// HandleTurn processes one message. Admission and validation failures are returned as
// *apperrors.StandardError and leave every stored state untouched.
func (s *Service) HandleTurn(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if s.limiter != nil {
		if d := s.limiter.Admit(req.ClientKey); !d.Allowed {
			metrics.RateLimitRejections.Inc()
			return nil, apperrors.NewRateLimitedError(d.RetryAfterSeconds)
		}
	}

	msg, err := s.validate(&req)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newID()
	}
	log := s.logger.WithFields(map[string]interface{}{"sessionId": sessionID})

	state, tracking := s.load(ctx, sessionID, log)

	// Model calls share one deadline. Persisting below still uses the request context.
	turnCtx := ctx
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	decision := s.gateway.Check(turnCtx, state, msg)
	recordTopic(decision)
	if !decision.OnTopic {
		log.Info("off-topic message", map[string]interface{}{"reason": decision.Reason})
		s.obs.RecordTurn(ctx, string(state.Stage), false, s.now().Sub(start))
		return &Response{
			SessionID: sessionID,
			OnTopic:   false,
			ReplyText: topic.RedirectReply,
		}, nil
	}

	out, err := s.machine.Step(turnCtx, machine.Turn{
		State:         state,
		Message:       msg,
		Authenticated: req.UserID != "",
	})
	if err != nil {
		return nil, fmt.Errorf("intake step: %w", err)
	}
	s.recordOutcome(state.Stage, out)

	if tracking {
		s.persist(ctx, sessionID, req, out, log)
	}
	if out.BriefGenerated {
		s.mailBrief(req, out, log)
	}

	log.Info("turn handled", map[string]interface{}{
		"from":      string(state.Stage),
		"to":        string(out.State.Stage),
		"intent":    out.Intent,
		"items":     len(out.State.LineItems),
		"extracted": out.Extracted,
		"bypassed":  decision.Bypassed,
	})
	s.obs.RecordTurn(ctx, string(out.State.Stage), true, s.now().Sub(start))

	return &Response{
		SessionID: sessionID,
		OnTopic:   true,
		ReplyText: out.Reply,
		Analysis:  out.Analysis,
		Actions:   out.Actions,
	}, nil
}

func (s *Service) validate(req *Request) (string, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", apperrors.NewInvalidInputError("message is required")
	}
	if utf8.RuneCountInString(msg) > s.cfg.MaxMessageChars {
		return "", apperrors.NewInvalidInputError(fmt.Sprintf("message exceeds %d characters", s.cfg.MaxMessageChars))
	}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return "", apperrors.NewInvalidInputError("sessionId must be a UUID")
		}
		req.SessionID = id.String()
	}
	return msg, nil
}

// load returns the stored state. tracking is false when the store is absent or failing, in
// which case the turn runs statelessly and nothing is written back.
func (s *Service) load(ctx context.Context, sessionID string, log logger.Logger) (models.IntakeState, bool) {
	if s.store == nil {
		return models.NewIntakeState(), false
	}

	state, err := s.store.LoadIntake(ctx, sessionID)
	switch {
	case err == nil:
		return *state, true
	case errors.Is(err, store.ErrSessionNotFound):
		return models.NewIntakeState(), true
	default:
		metrics.StoreErrors.WithLabelValues("load").Inc()
		log.Warn("session store unavailable, running statelessly", map[string]interface{}{
			"code":  string(apperrors.ErrCodeStoreUnavailable),
			"error": err.Error(),
		})
		return models.NewIntakeState(), false
	}
}

func (s *Service) persist(ctx context.Context, sessionID string, req Request, out *machine.Outcome, log logger.Logger) {
	if err := s.store.SaveIntake(ctx, sessionID, req.UserID, out.State); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		log.Warn("failed to save intake", map[string]interface{}{"error": err.Error()})
		return
	}

	now := s.now().UTC()
	userMsg := models.ChatMessage{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   strings.TrimSpace(req.Message),
		CreatedAt: now,
	}
	reply := models.ChatMessage{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   out.Reply,
		CreatedAt: now,
	}
	if out.BriefGenerated {
		if doc, err := json.Marshal(out.Analysis); err == nil {
			reply.Analysis = doc
		}
	}

	for _, m := range []models.ChatMessage{userMsg, reply} {
		if err := s.store.AppendMessage(ctx, m); err != nil {
			metrics.StoreErrors.WithLabelValues("append").Inc()
			log.Warn("failed to append message", map[string]interface{}{
				"role":  string(m.Role),
				"error": err.Error(),
			})
			return
		}
	}
}

// mailBrief sends the brief in the background. Delivery failures are logged only.
func (s *Service) mailBrief(req Request, out *machine.Outcome, log logger.Logger) {
	if !s.cfg.EmailBrief || s.mailer == nil || req.Email == "" || out.State.Brief == nil {
		return
	}

	brief := out.State.Brief
	items := append([]models.LineItem(nil), out.State.LineItems...)
	s.mail.Add(1)
	go func() {
		defer s.mail.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := s.mailer.SendBrief(ctx, req.Email, brief, items); err != nil {
			log.Warn("failed to email brief", map[string]interface{}{"error": err.Error()})
			return
		}
		log.Info("brief emailed", nil)
	}()
}

// Wait blocks until background email deliveries finish.
func (s *Service) Wait() {
	s.mail.Wait()
}

func recordTopic(d topic.Decision) {
	switch {
	case d.Bypassed:
		metrics.TopicDecisions.WithLabelValues("bypassed").Inc()
	case d.OnTopic:
		metrics.TopicDecisions.WithLabelValues("on_topic").Inc()
	default:
		metrics.TopicDecisions.WithLabelValues("off_topic").Inc()
	}
}

func (s *Service) recordOutcome(from models.Stage, out *machine.Outcome) {
	to := out.State.Stage
	metrics.IntakeTurns.WithLabelValues(string(to)).Inc()
	if from != to {
		metrics.IntakeStageTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
	if out.ExtractionFailed {
		metrics.GenerationFailures.WithLabelValues("extract-line-items", "failed").Inc()
	}
	if out.BriefFailure != "" {
		metrics.GenerationFailures.WithLabelValues("generate-brief", string(out.BriefFailure)).Inc()
	}
}
