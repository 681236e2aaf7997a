package ai

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/config"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer the user's question clearly and concisely using Markdown."

// ArkProvider runs conversations through an eino chain backed by a chat model.
type ArkProvider struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
}

// NewArkProvider builds the Ark chat model described by cfg and wraps it.
func NewArkProvider(ctx context.Context, cfg config.ChatConfig) (*ArkProvider, error) {
	chatModel, err := cfg.Ark.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create chat model")
	}
	return NewChainProvider(ctx, chatModel, cfg.SystemPrompt)
}

// NewChainProvider compiles the prompt chain around any eino chat model.
func NewChainProvider(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string) (*ArkProvider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile chat chain")
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &ArkProvider{chain: runnable, systemPrompt: systemPrompt}, nil
}

// NewSession starts an empty conversation.
func (p *ArkProvider) NewSession(_ context.Context) (Session, error) {
	return &arkSession{id: uuid.NewString(), provider: p}, nil
}

type arkSession struct {
	id       string
	provider *ArkProvider
	history  transcript
}

func (s *arkSession) ID() string { return s.id }

// Authenticated is true once the model was built; credentials are checked at construction.
func (s *arkSession) Authenticated(context.Context) bool {
	return s.provider != nil && s.provider.chain != nil
}

func (s *arkSession) Send(ctx context.Context, question string, onProgress ProgressFunc) (string, error) {
	input := buildChainInput(s.provider.systemPrompt, s.history.recent(), question)

	stream, err := s.provider.chain.Stream(ctx, input)
	if err != nil {
		return "", errors.Wrap(err, "stream chat chain output")
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	var partial strings.Builder

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", errors.Wrap(recvErr, "receive chat chunk")
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			partial.WriteString(chunk.Content)
			if onProgress != nil {
				onProgress(partial.String())
			}
		}
	}

	if len(chunks) == 0 {
		return "", errors.New("chat model returned an empty stream")
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", errors.Wrap(err, "merge chat chunks")
	}

	s.history.append(question, response.Content)
	log.Debug().
		Str("component", "ai").
		Str("session_id", s.id).
		Int("length", len(response.Content)).
		Msg("answer streamed")

	return response.Content, nil
}

func buildChainInput(systemPrompt string, turns []Turn, question string) map[string]any {
	return map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(turns),
		"query":   question,
	}
}

func buildHistoryMessages(turns []Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history, schema.UserMessage(turn.Question))
		history = append(history, schema.AssistantMessage(turn.Answer, nil))
	}
	return history
}
