package favorites

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/storage/kv"
)

// StorageKey is the single key under which the favorites list is persisted.
const StorageKey = "savedAnswers"

// Store keeps saved answers in memory and mirrors the full list to a kv
// backend on every change.
type Store struct {
	mu    sync.RWMutex
	kv    kv.Store
	items []answer.Favorite
}

// NewStore returns an empty store; call Load before serving.
func NewStore(backend kv.Store) *Store {
	return &Store{kv: backend}
}

// Load reads the persisted list. A missing key yields an empty list, a
// corrupt value is an error so that the next write cannot clobber it.
func (s *Store) Load(ctx context.Context) ([]answer.Favorite, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, errors.Wrap(err, "load favorites")
	}

	var items []answer.Favorite
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.Wrap(err, "decode favorites")
		}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	log.Debug().Str("component", "favorites").Int("count", len(items)).Msg("favorites loaded")
	return s.List(), nil
}

// Save appends a stamped copy of a and rewrites the persisted list.
func (s *Store) Save(ctx context.Context, a answer.Answer, now time.Time) (answer.Favorite, error) {
	fav := answer.NewFavorite(a, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append(make([]answer.Favorite, 0, len(s.items)+1), s.items...), fav)
	raw, err := json.Marshal(next)
	if err != nil {
		return answer.Favorite{}, errors.Wrap(err, "encode favorites")
	}
	if err := s.kv.Set(ctx, StorageKey, raw); err != nil {
		return answer.Favorite{}, errors.Wrap(err, "persist favorites")
	}
	s.items = next

	log.Info().Str("component", "favorites").Str("answer_id", a.ID).Int("count", len(next)).Msg("answer saved")
	return fav, nil
}

// List returns a copy of the saved answers in save order.
func (s *Store) List() []answer.Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]answer.Favorite{}, s.items...)
}
