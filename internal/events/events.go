package events

import (
	"context"
	"time"
)

// Security event kinds published for downstream consumers (fraud review,
// notification service).
const (
	KindLogin                = "auth.login"
	KindRegister             = "auth.register"
	KindRefreshReuseDetected = "auth.refresh.reuse_detected"
	KindTokensRevoked        = "auth.tokens.revoked"
)

type SecurityEvent struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	CustomerID uint           `json:"customer_id"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	At         time.Time      `json:"at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

type Publisher interface {
	PublishSecurityEvent(ctx context.Context, evt SecurityEvent) error
	Close() error
}

type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishSecurityEvent(context.Context, SecurityEvent) error { return nil }

func (p *NoopPublisher) Close() error { return nil }
