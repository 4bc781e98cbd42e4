package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/haloview/mfa-incident-backend/internal/domain/event"
)

func setupTestWindow(t *testing.T) (*EventWindow, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewEventWindow(client, 60*time.Second, zaptest.NewLogger(t)), s
}

func failedLogin(principal, ip string, ts time.Time) event.NormalizedEvent {
	msg := event.FailedAuthErrorMessage
	return event.NormalizedEvent{
		EventName:    event.EventNameConsoleLogin,
		EventSource:  event.EventSourceSignin,
		ErrorMessage: &msg,
		Principal:    principal,
		SourceIP:     ip,
		Timestamp:    ts,
	}
}

func TestEventWindow_RecordAndRecent(t *testing.T) {
	w, _ := setupTestWindow(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Record(ctx, failedLogin("alice", "1.2.3.4", base.Add(time.Duration(i)*8*time.Second))))
	}

	recent, err := w.Recent(ctx, "alice", "1.2.3.4", base.Add(40*time.Second), 60*time.Second)
	require.NoError(t, err)
	require.Len(t, recent, 5)

	// Most recent first.
	assert.Equal(t, base.Add(32*time.Second), recent[0].Timestamp)
	assert.Equal(t, base, recent[4].Timestamp)
	for _, ev := range recent {
		assert.Equal(t, "alice", ev.Principal)
		assert.True(t, ev.IsFailedLogin())
	}
}

func TestEventWindow_ScopedByPrincipalAndIP(t *testing.T) {
	w, _ := setupTestWindow(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, w.Record(ctx, failedLogin("alice", "1.2.3.4", base)))
	require.NoError(t, w.Record(ctx, failedLogin("alice", "5.6.7.8", base)))
	require.NoError(t, w.Record(ctx, failedLogin("mallory", "1.2.3.4", base)))

	recent, err := w.Recent(ctx, "alice", "1.2.3.4", base.Add(time.Second), 60*time.Second)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "alice", recent[0].Principal)
	assert.Equal(t, "1.2.3.4", recent[0].SourceIP)
}

func TestEventWindow_TrailingWindowExcludesOldEvents(t *testing.T) {
	w, _ := setupTestWindow(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old := failedLogin("alice", "1.2.3.4", base.Add(-2*time.Minute))
	fresh := failedLogin("alice", "1.2.3.4", base.Add(-10*time.Second))
	require.NoError(t, w.Record(ctx, old))
	require.NoError(t, w.Record(ctx, fresh))

	recent, err := w.Recent(ctx, "alice", "1.2.3.4", base, 60*time.Second)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.Timestamp, recent[0].Timestamp)
}

func TestEventWindow_RecordTrimsExpiredEntries(t *testing.T) {
	w, _ := setupTestWindow(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, w.Record(ctx, failedLogin("alice", "1.2.3.4", base.Add(-5*time.Minute))))
	require.NoError(t, w.Record(ctx, failedLogin("alice", "1.2.3.4", base)))

	// The old entry is gone even when queried with a generous window.
	recent, err := w.Recent(ctx, "alice", "1.2.3.4", base, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, base, recent[0].Timestamp)
}

func TestEventWindow_EmptyWindow(t *testing.T) {
	w, _ := setupTestWindow(t)

	recent, err := w.Recent(context.Background(), "nobody", "0.0.0.0", time.Now(), 60*time.Second)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
