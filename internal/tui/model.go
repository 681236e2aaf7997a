package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/service/chat"
)

const (
	maxListRows  = 6
	chromeHeight = 8 // header, input box, status and help lines
)

// Screen is the part of chat.Service the terminal drives.
type Screen interface {
	Subscribe(buffer int) (<-chan chat.Event, func())
	Snapshot(ctx context.Context) (chat.View, error)
	Submit(ctx context.Context, question string) (answer.Answer, error)
	SetSearchText(ctx context.Context, text string) error
	Select(ctx context.Context, id string) error
	Copy(ctx context.Context, id string, field chat.Field) error
	Save(ctx context.Context, id string) (answer.Favorite, error)
	Speak(ctx context.Context, id string) ([]byte, error)
	StopSpeaking()
	Export(ctx context.Context) (string, error)
	Reset(ctx context.Context) (string, error)
}

// Player plays synthesized audio. A nil Player discards it.
type Player func(ctx context.Context, audio []byte) error

// Model is the bubbletea model of the Q/A screen.
type Model struct {
	ctx    context.Context
	screen Screen
	play   Player
	events <-chan chat.Event
	cancel func()

	view   chat.View
	status *answer.Notification

	input     textinput.Model
	composer  textarea.Model
	composing bool
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	width  int
	height int
}

// New subscribes to screen. Call Close when the program exits.
func New(ctx context.Context, screen Screen, play Player) Model {
	events, cancel := screen.Subscribe(0)

	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.CharLimit = 4000
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Write a longer question. ctrl+d sends, esc cancels."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(6)

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		screen:   screen,
		play:     play,
		events:   events,
		cancel:   cancel,
		input:    ti,
		composer: ta,
		viewport: viewport.New(80, 12),
		spinner:  sp,
	}
}

// Close drops the event subscription.
func (m Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.events),
		refresh(m.ctx, m.screen),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		ev := chat.Event(msg)
		switch ev.Type {
		case chat.EventNotification:
			if ev.Notification != nil {
				n := *ev.Notification
				m.status = &n
			}
		case chat.EventSearch:
			// echoes of our own typing would race with newer keystrokes;
			// only a clear comes from the screen itself
			if ev.SearchText != nil && *ev.SearchText == "" {
				m.input.Reset()
			}
		}
		return m, tea.Batch(waitForEvent(m.events), refresh(m.ctx, m.screen))

	case viewMsg:
		m.setView(chat.View(msg))
		return m, nil

	case audioMsg:
		if m.play == nil || len(msg) == 0 {
			return m, nil
		}
		play, audio := m.play, []byte(msg)
		return m, run(m.ctx, func(ctx context.Context) error {
			return play(ctx, audio)
		})

	case errMsg:
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		log.Debug().Err(msg.err).Str("component", "tui").Msg("action failed")
		m.status = &answer.Notification{Style: answer.StyleFailure, Title: "Error", Message: msg.err.Error()}
		return m, nil

	case closedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composing {
		return m.handleComposerKey(msg)
	}

	screen := m.screen
	selected, hasSelection := m.view.Selected()

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		return m, run(m.ctx, func(ctx context.Context) error {
			_, err := screen.Submit(ctx, question)
			return err
		})

	case tea.KeyUp, tea.KeyDown:
		delta := 1
		if msg.Type == tea.KeyUp {
			delta = -1
		}
		id := nextSelection(m.view.Items, m.view.SelectedID, delta)
		if id == "" || id == m.view.SelectedID {
			return m, nil
		}
		m.view.SelectedID = id
		m.viewport.SetContent(m.renderDetail())
		m.viewport.GotoTop()
		return m, run(m.ctx, func(ctx context.Context) error {
			return screen.Select(ctx, id)
		})

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyCtrlN:
		if !m.view.HasAction(chat.ActionNewConversation) {
			return m, nil
		}
		return m, run(m.ctx, func(ctx context.Context) error {
			_, err := screen.Reset(ctx)
			return err
		})

	case tea.KeyCtrlE:
		if !m.view.HasAction(chat.ActionShare) {
			return m, nil
		}
		return m, run(m.ctx, func(ctx context.Context) error {
			_, err := screen.Export(ctx)
			return err
		})

	case tea.KeyCtrlX:
		screen.StopSpeaking()
		return m, nil

	case tea.KeyCtrlT:
		if !m.view.HasAction(chat.ActionFullTextInput) {
			return m, nil
		}
		m.composing = true
		m.composer.SetValue(m.input.Value())
		m.input.Blur()
		return m, m.composer.Focus()

	case tea.KeyCtrlS, tea.KeyCtrlY, tea.KeyCtrlK, tea.KeyCtrlP:
		if !hasSelection {
			return m, nil
		}
		return m, m.answerAction(msg.Type, selected.ID)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		return m, tea.Batch(cmd, run(m.ctx, func(ctx context.Context) error {
			return screen.SetSearchText(ctx, after)
		}))
	}
	return m, cmd
}

// handleComposerKey drives the multi-line question form.
func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.closeComposer()
		return m, m.input.Focus()

	case tea.KeyCtrlD:
		question := strings.TrimSpace(m.composer.Value())
		if question == "" {
			return m, nil
		}
		m.closeComposer()
		screen := m.screen
		return m, tea.Batch(m.input.Focus(), run(m.ctx, func(ctx context.Context) error {
			_, err := screen.Submit(ctx, question)
			return err
		}))
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) closeComposer() {
	m.composing = false
	m.composer.Blur()
	m.composer.Reset()
}

// answerAction maps a key to the action it triggers on the selected answer.
// Keys whose action the screen does not offer right now do nothing.
func (m Model) answerAction(key tea.KeyType, id string) tea.Cmd {
	screen := m.screen
	switch key {
	case tea.KeyCtrlS:
		if m.view.HasAction(chat.ActionSaveAnswer) {
			return run(m.ctx, func(ctx context.Context) error {
				_, err := screen.Save(ctx, id)
				return err
			})
		}
	case tea.KeyCtrlY:
		if m.view.HasAction(chat.ActionCopyAnswer) {
			return run(m.ctx, func(ctx context.Context) error {
				return screen.Copy(ctx, id, chat.FieldAnswer)
			})
		}
	case tea.KeyCtrlK:
		if m.view.HasAction(chat.ActionCopyQuestion) {
			return run(m.ctx, func(ctx context.Context) error {
				return screen.Copy(ctx, id, chat.FieldQuestion)
			})
		}
	case tea.KeyCtrlP:
		if m.view.HasAction(chat.ActionSpeak) {
			return speak(m.ctx, screen, id)
		}
	}
	return nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-8, 10)
	m.composer.SetWidth(max(width-6, 10))

	m.viewport.Width = max(width-2, 10)
	m.viewport.Height = max(height-chromeHeight-maxListRows, 3)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-6, 20)),
	)
	if err != nil {
		log.Warn().Err(err).Str("component", "tui").Msg("markdown renderer unavailable")
	}
	m.renderer = renderer
	m.viewport.SetContent(m.renderDetail())
}

func (m *Model) setView(view chat.View) {
	previous := m.view.SelectedID
	m.view = view
	if view.Placeholder != "" {
		m.input.Placeholder = view.Placeholder
	}
	m.viewport.SetContent(m.renderDetail())
	if view.SelectedID != previous {
		m.viewport.GotoTop()
	}
}

func (m Model) renderDetail() string {
	if m.view.EmptyView != nil {
		return titleStyle.Render(m.view.EmptyView.Title) + "\n\n" + subtleStyle.Render(m.view.EmptyView.Description)
	}

	item, ok := m.view.Selected()
	if !ok {
		return ""
	}

	if m.renderer == nil {
		return item.Markdown
	}
	out, err := m.renderer.Render(item.Markdown)
	if err != nil {
		return item.Markdown
	}
	return out
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("z-ask")
	if id := m.view.ConversationID; id != "" {
		header += subtleStyle.Render(fmt.Sprintf("  conversation %.8s", id))
	}
	b.WriteString(header)
	b.WriteString("\n")

	if list := renderList(m.view, m.width); list != "" {
		b.WriteString(list)
		b.WriteString("\n")
	}

	b.WriteString(detailStyle.Render(m.viewport.View()))
	b.WriteString("\n")
	if m.composing {
		b.WriteString(inputStyle.Render(m.composer.View()))
	} else {
		b.WriteString(inputStyle.Render(m.input.View()))
	}
	b.WriteString("\n")

	spin := ""
	if m.view.IsLoading {
		spin = m.spinner.View() + " "
	}
	b.WriteString(spin + statusLine(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpLine(m.view)))

	return b.String()
}

// renderList draws up to maxListRows items, keeping the selection visible.
func renderList(view chat.View, width int) string {
	if len(view.Items) == 0 {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	selected := 0
	for i, item := range view.Items {
		if item.ID == view.SelectedID {
			selected = i
			break
		}
	}

	start := 0
	if selected >= maxListRows {
		start = selected - maxListRows + 1
	}
	end := min(start+maxListRows, len(view.Items))

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		item := view.Items[i]
		marker := "  "
		style := itemStyle
		if item.ID == view.SelectedID {
			marker = "> "
			style = selectedStyle
		}

		right := accessory.Render(item.Accessory)
		room := width - lipgloss.Width(right) - len(marker) - 1
		title := truncate(item.Title, room)
		gap := max(width-len(marker)-lipgloss.Width(title)-lipgloss.Width(right), 1)

		rows = append(rows, marker+style.Render(title)+strings.Repeat(" ", gap)+right)
	}
	return strings.Join(rows, "\n")
}

// nextSelection moves delta rows from selectedID, clamped to the list.
func nextSelection(items []chat.Item, selectedID string, delta int) string {
	if len(items) == 0 {
		return ""
	}

	current := -1
	for i, item := range items {
		if item.ID == selectedID {
			current = i
			break
		}
	}
	if current < 0 {
		return items[0].ID
	}

	next := min(max(current+delta, 0), len(items)-1)
	return items[next].ID
}

func statusLine(n *answer.Notification) string {
	if n == nil {
		return ""
	}

	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}

	switch n.Style {
	case answer.StyleSuccess:
		return successStyle.Render(text)
	case answer.StyleFailure:
		return failureStyle.Render(text)
	default:
		return subtleStyle.Render(text)
	}
}

var keyHelp = []struct {
	action chat.Action
	help   string
}{
	{chat.ActionGetAnswer, "enter ask"},
	{chat.ActionCopyAnswer, "ctrl+y copy answer"},
	{chat.ActionCopyQuestion, "ctrl+k copy question"},
	{chat.ActionSaveAnswer, "ctrl+s save"},
	{chat.ActionSpeak, "ctrl+p speak"},
	{chat.ActionShare, "ctrl+e share"},
	{chat.ActionFullTextInput, "ctrl+t full text"},
	{chat.ActionNewConversation, "ctrl+n new conversation"},
}

func helpLine(view chat.View) string {
	parts := make([]string, 0, len(keyHelp)+1)
	for _, k := range keyHelp {
		if view.HasAction(k.action) {
			parts = append(parts, k.help)
		}
	}
	parts = append(parts, "esc quit")
	return strings.Join(parts, " • ")
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
