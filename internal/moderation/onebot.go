package moderation

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/imageguard/internal/config"
)

// OneBotDispatcher talks to a OneBot v11 HTTP endpoint. When a rate limit
// is configured, calls wait for the limiter or fail with the caller's context.
type OneBotDispatcher struct {
	client  *resty.Client
	limiter *rate.Limiter
}

type oneBotResponse struct {
	Status  string `json:"status"`
	RetCode int    `json:"retcode"`
	Message string `json:"message,omitempty"`
	Wording string `json:"wording,omitempty"`
}

// NewOneBotDispatcher creates a dispatcher posting to cfg.BaseURL.
func NewOneBotDispatcher(cfg *config.ModerationConfig) *OneBotDispatcher {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	d := &OneBotDispatcher{client: client}
	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return d
}

// DeleteMessage calls delete_msg.
func (d *OneBotDispatcher) DeleteMessage(ctx context.Context, scopeID, messageID string) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot: message id %q is not numeric", messageID)
	}
	return d.call(ctx, "/delete_msg", map[string]interface{}{
		"message_id": id,
	})
}

// MuteMember calls set_group_ban. Durations are rounded up to whole seconds.
func (d *OneBotDispatcher) MuteMember(ctx context.Context, scopeID, userID string, dur time.Duration) error {
	groupID, err := strconv.ParseInt(scopeID, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot: group id %q is not numeric", scopeID)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("onebot: user id %q is not numeric", userID)
	}
	seconds := int64((dur + time.Second - 1) / time.Second)
	return d.call(ctx, "/set_group_ban", map[string]interface{}{
		"group_id": groupID,
		"user_id":  uid,
		"duration": seconds,
	})
}

func (d *OneBotDispatcher) call(ctx context.Context, action string, body interface{}) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("onebot %s: %w", action, err)
		}
	}

	var resp oneBotResponse
	httpResp, err := d.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		Post(action)
	if err != nil {
		return fmt.Errorf("onebot %s: %w", action, err)
	}
	if httpResp.StatusCode() != http.StatusOK {
		return fmt.Errorf("onebot %s: status %d", action, httpResp.StatusCode())
	}
	if resp.Status == "failed" || resp.RetCode != 0 {
		msg := resp.Wording
		if msg == "" {
			msg = resp.Message
		}
		return fmt.Errorf("onebot %s: retcode %d: %s", action, resp.RetCode, msg)
	}
	return nil
}
