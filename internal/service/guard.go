package service

import (
	"context"
	"time"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/metrics"
	"github.com/timmy/imageguard/internal/moderation"
)

// GuardService handles inbound messages: evaluate, then enforce.
type GuardService struct {
	engine     *MatchEngine
	dispatcher moderation.Dispatcher
	recall     bool
	mute       bool
	muteFor    time.Duration
	failClosed bool
}

// GuardConfig holds the enforcement options
type GuardConfig struct {
	RecallFlag   bool
	MuteFlag     bool
	MuteDuration time.Duration
	FailClosed   bool
}

// NewGuardService creates a new guard service
func NewGuardService(engine *MatchEngine, dispatcher moderation.Dispatcher, cfg *GuardConfig) *GuardService {
	return &GuardService{
		engine:     engine,
		dispatcher: dispatcher,
		recall:     cfg.RecallFlag,
		mute:       cfg.MuteFlag,
		muteFor:    cfg.MuteDuration,
		failClosed: cfg.FailClosed,
	}
}

// Decision tells the host what to do with a message.
type Decision struct {
	Allow  bool                `json:"allow"`
	Result *domain.MatchResult `json:"result,omitempty"`
}

// HandleMessage evaluates a message and, on a match, dispatches the
// configured moderation actions. Dispatch failures are logged and never
// change the decision.
//
// When the rule store cannot be consulted the error is returned together
// with a decision that holds the message if fail_closed is set.
func (s *GuardService) HandleMessage(ctx context.Context, msg domain.Message) (*Decision, error) {
	if len(msg.Images) == 0 {
		return &Decision{Allow: true}, nil
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldScopeID:   msg.ScopeID,
		logger.FieldMessageID: msg.MessageID,
		logger.FieldUserID:    msg.UserID,
	})

	result, err := s.engine.Evaluate(ctx, msg.ScopeID, msg.Images)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("fail_closed", s.failClosed).
			Error("Message evaluation failed")
		return &Decision{Allow: !s.failClosed}, err
	}

	switch {
	case result.Verdict.IsMatch():
		logger.With(logger.Fields{
			logger.FieldVerdict:   result.Verdict,
			logger.FieldDistance:  result.Distance,
			logger.FieldContentID: result.ContentID,
			"seq":                 result.Seq,
		}).Info(ctx, "Blocked image detected")
		s.enforce(ctx, msg)
		return &Decision{Allow: false, Result: result}, nil
	case result.Verdict == domain.VerdictIndeterminate:
		logger.With(logger.Fields{logger.FieldVerdict: result.Verdict}).
			WithCount(len(result.Unscorable)).
			Warn(ctx, "No candidate image could be scored, allowing message")
	}
	return &Decision{Allow: true, Result: result}, nil
}

func (s *GuardService) enforce(ctx context.Context, msg domain.Message) {
	if s.dispatcher == nil {
		return
	}
	if s.recall {
		err := s.dispatcher.DeleteMessage(ctx, msg.ScopeID, msg.MessageID)
		s.recordDispatch(ctx, "delete_message", err)
	}
	if s.mute {
		err := s.dispatcher.MuteMember(ctx, msg.ScopeID, msg.UserID, s.muteFor)
		s.recordDispatch(ctx, "mute_member", err)
	}
}

func (s *GuardService) recordDispatch(ctx context.Context, action string, err error) {
	if err != nil {
		metrics.DispatchCount.WithLabelValues(action, "error").Inc()
		logger.FromContext(ctx).WithError(err).WithField("action", action).
			Error("Moderation action failed")
		return
	}
	metrics.DispatchCount.WithLabelValues(action, "ok").Inc()
}
