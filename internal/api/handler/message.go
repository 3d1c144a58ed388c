package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/service"
)

// MessageHandler receives inbound chat messages from the host adapter.
type MessageHandler struct {
	guard     *service.GuardService
	localizer *i18n.Localizer
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(guard *service.GuardService, localizer *i18n.Localizer) *MessageHandler {
	return &MessageHandler{guard: guard, localizer: localizer}
}

// MessageRequest is an inbound message; the scope comes from the path.
type MessageRequest struct {
	MessageID string             `json:"message_id" binding:"required"`
	UserID    string             `json:"user_id"`
	Images    []domain.Candidate `json:"images"`
}

// MessageErrorResponse carries the decision alongside the error, so the
// host knows whether to hold the message.
type MessageErrorResponse struct {
	ErrorResponse
	Allow bool `json:"allow"`
}

// HandleMessage handles POST /api/v1/scopes/:scope/messages.
func (h *MessageHandler) HandleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.localizer, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	decision, err := h.guard.HandleMessage(c.Request.Context(), domain.Message{
		ScopeID:   c.Param("scope"),
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Images:    req.Images,
	})
	if err != nil {
		key := domain.ErrorKey(err)
		c.JSON(statusFor(err), MessageErrorResponse{
			ErrorResponse: ErrorResponse{
				Code:      key,
				Message:   h.localizer.Text(c.GetHeader("Accept-Language"), key),
				RequestID: logger.GetRequestID(c.Request.Context()),
			},
			Allow: decision != nil && decision.Allow,
		})
		return
	}

	c.JSON(http.StatusOK, decision)
}
