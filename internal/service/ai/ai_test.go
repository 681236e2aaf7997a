package ai

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-ask/backend/internal/config"
)

type scriptedModel struct {
	mu     sync.Mutex
	chunks []string
	inputs [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(input)
	content := ""
	for _, c := range m.chunks {
		content += c
	}
	return schema.AssistantMessage(content, nil), nil
}

func (m *scriptedModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(input)
	msgs := make([]*schema.Message, 0, len(m.chunks))
	for _, c := range m.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (m *scriptedModel) record(input []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
}

func (m *scriptedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

func TestChainSessionStreamsAccumulatedText(t *testing.T) {
	ctx := context.Background()
	fake := &scriptedModel{chunks: []string{"The answer", " is ", "4"}}

	provider, err := NewChainProvider(ctx, fake, "")
	require.NoError(t, err)

	session, err := provider.NewSession(ctx)
	require.NoError(t, err)
	require.True(t, session.Authenticated(ctx))

	var progress []string
	final, err := session.Send(ctx, "What is 2+2?", func(partial string) {
		progress = append(progress, partial)
	})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 4", final)
	assert.Equal(t, []string{"The answer", "The answer is ", "The answer is 4"}, progress)

	input := fake.lastInput()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, defaultSystemPrompt, input[0].Content)
	assert.Equal(t, "What is 2+2?", input[1].Content)
}

func TestChainSessionSendsEarlierTurns(t *testing.T) {
	ctx := context.Background()
	fake := &scriptedModel{chunks: []string{"ok"}}

	provider, err := NewChainProvider(ctx, fake, "be brief")
	require.NoError(t, err)
	session, err := provider.NewSession(ctx)
	require.NoError(t, err)

	_, err = session.Send(ctx, "first", nil)
	require.NoError(t, err)
	_, err = session.Send(ctx, "second", nil)
	require.NoError(t, err)

	input := fake.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, "be brief", input[0].Content)
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, "first", input[1].Content)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, "ok", input[2].Content)
	assert.Equal(t, "second", input[3].Content)
}

func TestNewSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	provider, err := NewChainProvider(ctx, &scriptedModel{chunks: []string{"x"}}, "")
	require.NoError(t, err)

	a, err := provider.NewSession(ctx)
	require.NoError(t, err)
	b, err := provider.NewSession(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTranscriptKeepsRecentTurns(t *testing.T) {
	var tr transcript
	for i := 0; i < historyLimit+3; i++ {
		tr.append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	recent := tr.recent()
	require.Len(t, recent, historyLimit)
	assert.Equal(t, "q3", recent[0].Question)
	assert.Equal(t, fmt.Sprintf("a%d", historyLimit+2), recent[len(recent)-1].Answer)
}

func TestBuildHistoryMessagesEmpty(t *testing.T) {
	assert.Nil(t, buildHistoryMessages(nil))
}

func TestNewProviderWithoutCredentialsIsUnauthenticated(t *testing.T) {
	ctx := context.Background()
	provider, closeFn, err := NewProvider(ctx, config.ChatConfig{Provider: config.ProviderArk})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	session, err := provider.NewSession(ctx)
	require.NoError(t, err)
	assert.False(t, session.Authenticated(ctx))

	_, err = session.Send(ctx, "hello", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
