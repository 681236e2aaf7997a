package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/z-ask/backend/internal/service/chat"
)

// Messages delivered to Update.
type (
	eventMsg  chat.Event
	viewMsg   chat.View
	audioMsg  []byte
	errMsg    struct{ err error }
	closedMsg struct{}
)

func waitForEvent(ch <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func refresh(ctx context.Context, screen Screen) tea.Cmd {
	return func() tea.Msg {
		view, err := screen.Snapshot(ctx)
		if err != nil {
			return errMsg{err}
		}
		return viewMsg(view)
	}
}

// run executes fn off the update loop. Results arrive as screen events, so
// only failures produce a message.
func run(ctx context.Context, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func speak(ctx context.Context, screen Screen, id string) tea.Cmd {
	return func() tea.Msg {
		audio, err := screen.Speak(ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return audioMsg(audio)
	}
}
