// Package moderation carries out enforcement actions on the chat platform.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/logger"
)

// Dispatcher performs enforcement actions against a chat message or user.
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	// DeleteMessage recalls a message in a scope.
	DeleteMessage(ctx context.Context, scopeID, messageID string) error
	// MuteMember silences a user in a scope for d.
	MuteMember(ctx context.Context, scopeID, userID string, d time.Duration) error
}

// NewDispatcher builds the dispatcher named by cfg.Driver.
func NewDispatcher(cfg *config.ModerationConfig) (Dispatcher, error) {
	switch cfg.Driver {
	case "", "log":
		return LogDispatcher{}, nil
	case "onebot":
		return NewOneBotDispatcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown moderation driver: %s", cfg.Driver)
	}
}

// LogDispatcher only records the actions it would take.
type LogDispatcher struct{}

// DeleteMessage logs the recall.
func (LogDispatcher) DeleteMessage(ctx context.Context, scopeID, messageID string) error {
	logger.With(logger.Fields{
		logger.FieldScopeID:   scopeID,
		logger.FieldMessageID: messageID,
	}).Info(ctx, "Would delete message")
	return nil
}

// MuteMember logs the mute.
func (LogDispatcher) MuteMember(ctx context.Context, scopeID, userID string, d time.Duration) error {
	logger.With(logger.Fields{
		logger.FieldScopeID: scopeID,
		logger.FieldUserID:  userID,
	}).Info(ctx, "Would mute user for %s", d)
	return nil
}
