package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/haloview/mfa-incident-backend/internal/domain/event"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/config"
)

const eventWindowPrefix = "authwindow:"

// NewRedisClient creates a Redis client from config and verifies the
// connection.
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis event window initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	return client, nil
}

// EventWindow keeps a rolling per-principal window of recent auth events in
// Redis sorted sets, scored by event time. It supplies the burst lookback
// to the classification path; the engine itself never touches Redis.
type EventWindow struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.Logger
}

// NewEventWindow creates an event window that retains entries for at least
// the given duration before trimming.
func NewEventWindow(client *redis.Client, retention time.Duration, logger *zap.Logger) *EventWindow {
	if retention <= 0 {
		retention = time.Minute
	}
	return &EventWindow{client: client, retention: retention, logger: logger}
}

func windowKey(principal, sourceIP string) string {
	return eventWindowPrefix + principal + ":" + sourceIP
}

// Record adds an event to its principal+IP window, trims entries older
// than the retention horizon and refreshes the key expiry.
func (w *EventWindow) Record(ctx context.Context, ev event.NormalizedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal window event: %w", err)
	}

	key := windowKey(ev.Principal, ev.SourceIP)
	cutoff := ev.Timestamp.Add(-w.retention)

	pipe := w.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(ev.Timestamp.UnixNano()),
		Member: string(payload),
	})
	pipe.Expire(ctx, key, w.retention+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		w.logger.Error("event window record failed",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("event window record failed: %w", err)
	}
	return nil
}

// Recent returns the events for principal+IP inside the trailing window
// ending at ref, most recent first.
func (w *EventWindow) Recent(ctx context.Context, principal, sourceIP string, ref time.Time, window time.Duration) ([]event.NormalizedEvent, error) {
	key := windowKey(principal, sourceIP)
	windowStart := ref.Add(-window)

	members, err := w.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(windowStart.UnixNano(), 10),
		Max: strconv.FormatInt(ref.UnixNano(), 10),
	}).Result()
	if err != nil {
		w.logger.Error("event window lookup failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("event window lookup failed: %w", err)
	}

	events := make([]event.NormalizedEvent, 0, len(members))
	for _, member := range members {
		var ev event.NormalizedEvent
		if err := json.Unmarshal([]byte(member), &ev); err != nil {
			// One corrupt entry must not poison the lookback.
			w.logger.Warn("skipping undecodable window entry", zap.String("key", key), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
