package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/zhouzirui/z-ask/backend/internal/config"
)

// GeminiProvider runs conversations through Google Gemini chat sessions.
type GeminiProvider struct {
	client       *genai.Client
	modelName    string
	systemPrompt string
	apiKey       string
}

// NewGeminiProvider creates the GenAI client for cfg.
func NewGeminiProvider(ctx context.Context, cfg config.ChatConfig) (*GeminiProvider, error) {
	if !cfg.Gemini.Enabled() {
		return nil, errors.New("gemini api key or model missing: set GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	systemPrompt := cfg.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &GeminiProvider{
		client:       client,
		modelName:    cfg.Gemini.Model,
		systemPrompt: systemPrompt,
		apiKey:       cfg.Gemini.APIKey,
	}, nil
}

// Close releases the GenAI client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// NewSession starts a fresh chat session with no history.
func (p *GeminiProvider) NewSession(_ context.Context) (Session, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(p.systemPrompt)},
	}

	return &geminiSession{
		id:       uuid.NewString(),
		provider: p,
		chat:     model.StartChat(),
	}, nil
}

type geminiSession struct {
	id       string
	provider *GeminiProvider

	// ChatSession mutates its History during a stream
	mu   sync.Mutex
	chat *genai.ChatSession
}

func (s *geminiSession) ID() string { return s.id }

func (s *geminiSession) Authenticated(context.Context) bool {
	return s.provider != nil && s.provider.apiKey != ""
}

func (s *geminiSession) Send(ctx context.Context, question string, onProgress ProgressFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.chat.SendMessageStream(ctx, genai.Text(question))

	var answer strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "gemini chat stream failed")
		}

		delta := responseText(resp)
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if onProgress != nil {
			onProgress(answer.String())
		}
	}

	if answer.Len() == 0 {
		return "", errors.New("gemini returned an empty response")
	}

	log.Debug().
		Str("component", "ai").
		Str("session_id", s.id).
		Int("length", answer.Len()).
		Msg("answer streamed")

	return answer.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String()
}
