package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// keyedError overrides the message key of a domain error while keeping
// its status mapping.
type keyedError struct {
	key string
	err error
}

func (e *keyedError) Error() string { return e.err.Error() }
func (e *keyedError) Unwrap() error { return e.err }

func withKey(key string, err error) error {
	return &keyedError{key: key, err: err}
}

// messageKey returns the catalog key for err.
func messageKey(err error) string {
	var ke *keyedError
	if errors.As(err, &ke) {
		return ke.key
	}
	return domain.ErrorKey(err)
}

var statusByKey = map[string]int{
	i18n.KeyAlreadyHas:       http.StatusConflict,
	i18n.KeyNonExist:         http.StatusNotFound,
	i18n.KeyBadImage:         http.StatusUnprocessableEntity,
	i18n.KeyFetchFailed:      http.StatusBadGateway,
	i18n.KeyStoreUnavailable: http.StatusServiceUnavailable,
	i18n.KeyInvalidInput:     http.StatusBadRequest,
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if status, ok := statusByKey[domain.ErrorKey(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as a localized ErrorResponse.
func respondError(c *gin.Context, loc *i18n.Localizer, err error) {
	key := messageKey(err)
	status := statusFor(err)
	ctx := c.Request.Context()

	log := logger.FromContext(ctx).WithError(err).WithField("code", key)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}

	c.JSON(status, ErrorResponse{
		Code:      key,
		Message:   loc.Text(c.GetHeader("Accept-Language"), key),
		RequestID: logger.GetRequestID(ctx),
	})
}
