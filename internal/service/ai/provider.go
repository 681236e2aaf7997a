package ai

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/config"
)

// ErrNotConfigured is returned by sessions created without credentials.
var ErrNotConfigured = errors.New("chat provider credentials are not configured")

// NewProvider picks the provider named by cfg. Missing credentials yield a
// provider whose sessions report themselves unauthenticated, so the screen
// can still start and tell the user what to fix.
func NewProvider(ctx context.Context, cfg config.ChatConfig) (Provider, func() error, error) {
	noop := func() error { return nil }

	if !cfg.Enabled() {
		log.Warn().
			Str("component", "ai").
			Str("provider", cfg.Provider).
			Msg("chat provider not configured; questions will be rejected")
		return Unconfigured{}, noop, nil
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		provider, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return provider, provider.Close, nil
	default:
		provider, err := NewArkProvider(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return provider, noop, nil
	}
}

// Unconfigured hands out sessions that are never authenticated.
type Unconfigured struct{}

func (Unconfigured) NewSession(context.Context) (Session, error) {
	return unconfiguredSession{id: uuid.NewString()}, nil
}

type unconfiguredSession struct {
	id string
}

func (s unconfiguredSession) ID() string { return s.id }

func (unconfiguredSession) Authenticated(context.Context) bool { return false }

func (unconfiguredSession) Send(context.Context, string, ProgressFunc) (string, error) {
	return "", ErrNotConfigured
}
