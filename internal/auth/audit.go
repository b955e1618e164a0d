package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

type AuditEventType string

const (
	AuditRegistered     AuditEventType = "registered"
	AuditLoggedIn       AuditEventType = "logged_in"
	AuditLoginFailed    AuditEventType = "login_failed"
	AuditLoggedOut      AuditEventType = "logged_out"
	AuditVerifyCodeSent AuditEventType = "verify_code_sent"
	AuditVerified       AuditEventType = "verified"
	AuditResetCodeSent  AuditEventType = "reset_code_sent"
	AuditPasswordReset  AuditEventType = "password_reset"
)

type AuditEvent struct {
	ID        string         `json:"id"`
	Type      AuditEventType `json:"type"`
	UserID    string         `json:"userId,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// AuditSink records security-relevant account events. Implementations must
// be safe for concurrent use.
type AuditSink interface {
	Record(ctx context.Context, e AuditEvent) error
}

// RedisAuditLog appends events as JSON to a capped Redis list per user.
type RedisAuditLog struct {
	Redis  redis.Cmdable
	MaxLen int64
	Prefix string
}

func NewRedisAuditLog(client redis.Cmdable, maxLen int64) *RedisAuditLog {
	return &RedisAuditLog{Redis: client, MaxLen: maxLen, Prefix: "audit"}
}

func (a *RedisAuditLog) Record(ctx context.Context, e AuditEvent) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := a.Key(e.UserID)
	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Key is the list an event for userID lands in.
func (a *RedisAuditLog) Key(userID string) string {
	if userID == "" {
		return a.Prefix
	}
	return a.Prefix + ":" + userID
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditEvent) error { return nil }

// NopAudit discards every event.
func NopAudit() AuditSink { return nopAudit{} }
