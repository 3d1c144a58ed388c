package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/imageguard/internal/domain"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	deleted []string
	muted   []string
	mutedMs []time.Duration
	err     error
}

func (d *recordingDispatcher) DeleteMessage(ctx context.Context, scopeID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, scopeID+"/"+messageID)
	return d.err
}

func (d *recordingDispatcher) MuteMember(ctx context.Context, scopeID, userID string, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = append(d.muted, scopeID+"/"+userID)
	d.mutedMs = append(d.mutedMs, dur)
	return d.err
}

func bannedMessage() domain.Message {
	return domain.Message{
		ScopeID:   "S",
		MessageID: "m1",
		UserID:    "u1",
		Images:    []domain.Candidate{{ContentID: "c", Fingerprint: "abc133"}},
	}
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		cfg         GuardConfig
		dispatchErr error
		wantDeleted []string
		wantMuted   []string
	}{
		{
			name:        "recall only",
			cfg:         GuardConfig{RecallFlag: true, MuteDuration: 30 * time.Minute},
			wantDeleted: []string{"S/m1"},
		},
		{
			name:        "recall and mute",
			cfg:         GuardConfig{RecallFlag: true, MuteFlag: true, MuteDuration: 30 * time.Minute},
			wantDeleted: []string{"S/m1"},
			wantMuted:   []string{"S/u1"},
		},
		{
			name:      "mute only",
			cfg:       GuardConfig{MuteFlag: true, MuteDuration: 30 * time.Minute},
			wantMuted: []string{"S/u1"},
		},
		{
			name:        "dispatch failure keeps verdict",
			cfg:         GuardConfig{RecallFlag: true, MuteFlag: true, MuteDuration: time.Minute},
			dispatchErr: errors.New("bot offline"),
			wantDeleted: []string{"S/m1"},
			wantMuted:   []string{"S/u1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 2)
			env.seed(t, "S", "ref", "abc123")
			d := &recordingDispatcher{err: tt.dispatchErr}
			guard := NewGuardService(env.engine, d, &tt.cfg)

			decision, err := guard.HandleMessage(context.Background(), bannedMessage())
			require.NoError(t, err)
			assert.False(t, decision.Allow)
			assert.Equal(t, domain.VerdictSimilarMatch, decision.Result.Verdict)
			assert.Equal(t, tt.wantDeleted, d.deleted)
			assert.Equal(t, tt.wantMuted, d.muted)
			for _, dur := range d.mutedMs {
				assert.Equal(t, tt.cfg.MuteDuration, dur)
			}
		})
	}
}

func TestHandleMessageAllows(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seed(t, "S", "ref", "abc123")
	d := &recordingDispatcher{}
	guard := NewGuardService(env.engine, d, &GuardConfig{RecallFlag: true, FailClosed: true})
	ctx := context.Background()

	t.Run("clean image", func(t *testing.T) {
		msg := bannedMessage()
		msg.Images[0].Fingerprint = "xyz999"
		decision, err := guard.HandleMessage(ctx, msg)
		require.NoError(t, err)
		assert.True(t, decision.Allow)
		assert.Equal(t, domain.VerdictNoMatch, decision.Result.Verdict)
	})

	t.Run("indeterminate", func(t *testing.T) {
		msg := bannedMessage()
		msg.Images = []domain.Candidate{{ContentID: "junk", Data: []byte("junk")}}
		decision, err := guard.HandleMessage(ctx, msg)
		require.NoError(t, err)
		assert.True(t, decision.Allow)
		assert.Equal(t, domain.VerdictIndeterminate, decision.Result.Verdict)
	})

	assert.Empty(t, d.deleted)
}

func TestHandleMessageStoreUnavailable(t *testing.T) {
	for _, failClosed := range []bool{true, false} {
		env := newTestEnv(t, 2)
		d := &recordingDispatcher{}
		guard := NewGuardService(env.engine, d, &GuardConfig{RecallFlag: true, FailClosed: failClosed})
		env.breakStore(t)

		t.Run("text only needs no store", func(t *testing.T) {
			decision, err := guard.HandleMessage(context.Background(), domain.Message{ScopeID: "S", MessageID: "m0"})
			require.NoError(t, err)
			assert.True(t, decision.Allow)
		})

		decision, err := guard.HandleMessage(context.Background(), bannedMessage())
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.Equal(t, !failClosed, decision.Allow)
		assert.Empty(t, d.deleted)
	}
}
