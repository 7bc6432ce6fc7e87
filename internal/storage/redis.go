package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/PraWek/BusinessTelemetry/internal/config"
	"github.com/PraWek/BusinessTelemetry/internal/report"
	"github.com/PraWek/BusinessTelemetry/internal/session"
)

const sessionKeyPrefix = "session:"

// SessionStore exports session aggregates to Redis hashes keyed session:<id>
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSessionStore creates a new session store
func NewSessionStore(cfg config.RedisConfig) *SessionStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &SessionStore{
		redis: rdb,
		ttl:   cfg.TTL,
	}
}

// Ping checks the connection
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *SessionStore) Name() string { return "redis" }

// Write stores every session summary of the report in one pipeline
func (s *SessionStore) Write(ctx context.Context, r *report.Report) error {
	if len(r.Sessions) == 0 {
		return nil
	}

	// Use Redis pipeline for efficiency
	pipe := s.redis.Pipeline()
	for _, summary := range r.Sessions {
		key := sessionKeyPrefix + summary.SessionID
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, SessionFields(r.RunID.String(), summary))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Int("sessions", len(r.Sessions)).Msg("Failed to store sessions in Redis")
		return err
	}
	return nil
}

// SessionFields flattens a summary into hash fields. Timestamps are unix
// milliseconds and are omitted when unknown.
func SessionFields(runID string, s session.Summary) map[string]interface{} {
	fields := map[string]interface{}{
		"run_id":       runID,
		"user_id":      s.UserID,
		"events_count": s.EventsCount,
		"duration_ms":  s.Duration.Milliseconds(),
	}
	if !s.StartedAt.IsZero() {
		fields["started_at"] = s.StartedAt.UnixMilli()
	}
	if !s.EndedAt.IsZero() {
		fields["ended_at"] = s.EndedAt.UnixMilli()
	}
	return fields
}

// ParseSessionData rebuilds a summary from the fields of an HGETALL reply
func ParseSessionData(sessionID string, data map[string]string) session.Summary {
	summary := session.Summary{
		SessionID: sessionID,
	}

	if v, ok := data["user_id"]; ok {
		summary.UserID = v
	}
	if v, ok := data["started_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			summary.StartedAt = time.UnixMilli(ms).UTC()
		}
	}
	if v, ok := data["ended_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			summary.EndedAt = time.UnixMilli(ms).UTC()
		}
	}
	if v, ok := data["duration_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			summary.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := data["events_count"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			summary.EventsCount = n
		}
	}

	return summary
}

// Close closes the store
func (s *SessionStore) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
