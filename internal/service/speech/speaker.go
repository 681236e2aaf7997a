package speech

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/config"
	"github.com/zhouzirui/z-ask/backend/internal/model/speech"
)

// ErrSpeechDisabled is returned when no TTS credentials are configured.
var ErrSpeechDisabled = errors.New("speech synthesis is disabled: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")

// Synthesizer produces audio for a request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error)
}

// Speaker runs at most one synthesis at a time. Starting a new one cancels
// the previous.
type Speaker struct {
	synth   Synthesizer
	enabled bool
	timeout time.Duration

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewSpeaker wires the Volcengine client for cfg.
func NewSpeaker(cfg config.SpeechConfig) *Speaker {
	return NewSpeakerWith(NewTTSClient(cfg, ""), cfg.Enabled, cfg.Timeout)
}

// NewSpeakerWith wraps any synthesizer.
func NewSpeakerWith(synth Synthesizer, enabled bool, timeout time.Duration) *Speaker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Speaker{synth: synth, enabled: enabled, timeout: timeout}
}

// Enabled reports whether synthesis can run.
func (s *Speaker) Enabled() bool { return s.enabled }

// Speak stops any running synthesis and returns mp3 audio for text.
func (s *Speaker) Speak(ctx context.Context, text string) ([]byte, error) {
	if !s.enabled {
		return nil, ErrSpeechDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	resp, err := s.synth.Synthesize(ctx, speech.TTSRequest{Text: text, Format: "mp3"})
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}
		return nil, err
	}

	log.Debug().
		Str("component", "speech").
		Str("request_id", resp.RequestID).
		Int("bytes", len(resp.AudioData)).
		Msg("speech synthesized")
	return resp.AudioData, nil
}

// Stop cancels the running synthesis, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Speaking reports whether a synthesis is in flight.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
