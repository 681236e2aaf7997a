// Package app assembles the chat screen and its collaborators from
// configuration. Both binaries start from here.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/config"
	"github.com/zhouzirui/z-ask/backend/internal/service/ai"
	"github.com/zhouzirui/z-ask/backend/internal/service/chat"
	"github.com/zhouzirui/z-ask/backend/internal/service/clipboard"
	"github.com/zhouzirui/z-ask/backend/internal/service/favorites"
	"github.com/zhouzirui/z-ask/backend/internal/service/share"
	"github.com/zhouzirui/z-ask/backend/internal/service/speech"
	"github.com/zhouzirui/z-ask/backend/internal/storage/kv"
)

// App holds the wired services. Close releases storage and provider clients.
type App struct {
	Config    *config.Config
	Chat      *chat.Service
	Favorites *favorites.Store
	Speaker   *speech.Speaker
	TTS       *speech.TTSClient

	closers []func() error
}

// Build opens storage, loads saved favorites and creates the chat service.
// A favorites list that cannot be read aborts startup.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := kv.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}
	a.closers = append(a.closers, store.Close)

	a.Favorites = favorites.NewStore(store)
	saved, err := a.Favorites.Load(ctx)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "load favorites")
	}
	log.Info().
		Str("driver", cfg.Storage.Driver).
		Str("path", cfg.Storage.Path).
		Int("favorites", len(saved)).
		Msg("storage ready")

	provider, closeProvider, err := ai.NewProvider(ctx, cfg.Chat)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "init chat provider")
	}
	a.closers = append(a.closers, closeProvider)
	if cfg.Chat.Enabled() {
		log.Info().Str("provider", cfg.Chat.Provider).Msg("chat provider initialized")
	} else {
		log.Warn().Str("provider", cfg.Chat.Provider).Msg("chat provider credentials missing, questions will be rejected")
	}

	a.TTS = speech.NewTTSClient(cfg.Speech, "")
	a.Speaker = speech.NewSpeakerWith(a.TTS, cfg.Speech.Enabled, cfg.Speech.Timeout)
	if !cfg.Speech.Enabled {
		log.Info().Msg("speech credentials not configured, speak is disabled")
	}

	clip, system := clipboard.Detect()
	if !system {
		log.Warn().Msg("system clipboard unavailable, copies stay in memory")
	}

	a.Chat, err = chat.New(ctx, chat.Options{
		Provider:    provider,
		Favorites:   a.Favorites,
		Clipboard:   clip,
		Speaker:     a.Speaker,
		Sharer:      share.NewClient(cfg.Share),
		SendTimeout: cfg.Chat.SendTimeout,
	})
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "init chat screen")
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
