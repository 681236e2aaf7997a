package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
)

// Action names an operation the screen currently offers.
type Action string

const (
	ActionGetAnswer       Action = "get-answer"
	ActionCopyAnswer      Action = "copy-answer"
	ActionCopyQuestion    Action = "copy-question"
	ActionSaveAnswer      Action = "save-answer"
	ActionSpeak           Action = "speak"
	ActionShare           Action = "share"
	ActionFullTextInput   Action = "full-text-input"
	ActionNewConversation Action = "new-conversation"
)

const (
	placeholderFollowUp   = "Ask another question..."
	placeholderGenerating = "Generating your answer..."
	placeholderFirst      = "Ask a question..."

	emptyTitle              = "Ask anything!"
	emptyDescriptionLoading = "Hang on tight! This might require some time. You may redo your search if it takes longer"
	emptyDescriptionIdle    = "Type your question or prompt from the search bar and hit the enter key"
)

// Item is one row of the answer list.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Accessory      string    `json:"accessory"`
	Markdown       string    `json:"markdown"`
	Done           bool      `json:"done"`
	Question       string    `json:"question"`
	CreatedAt      time.Time `json:"createdAt"`
	ConversationID string    `json:"conversationId"`
}

// EmptyView is shown instead of the list when there are no answers.
type EmptyView struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// View is everything a front end needs to draw the screen.
type View struct {
	ConversationID  string     `json:"conversationId"`
	SearchText      string     `json:"searchText"`
	Placeholder     string     `json:"placeholder"`
	IsLoading       bool       `json:"isLoading"`
	IsShowingDetail bool       `json:"isShowingDetail"`
	SelectedID      string     `json:"selectedId,omitempty"`
	Items           []Item     `json:"items"`
	Actions         []Action   `json:"actions"`
	EmptyView       *EmptyView `json:"emptyView,omitempty"`
}

// Selected returns the focused item, if any.
func (v View) Selected() (Item, bool) {
	for _, item := range v.Items {
		if item.ID == v.SelectedID {
			return item, true
		}
	}
	return Item{}, false
}

// HasAction reports whether the action is currently offered.
func (v View) HasAction(action Action) bool {
	for _, a := range v.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// BuildView derives the screen from the answer list. Items are newest first.
func BuildView(conversationID string, answers []answer.Answer, selectedID, searchText string, loading bool) View {
	sorted := SortNewestFirst(answers)

	items := make([]Item, 0, len(sorted))
	for i, a := range sorted {
		items = append(items, Item{
			ID:             a.ID,
			Title:          a.Question,
			Accessory:      fmt.Sprintf("#%d", len(sorted)-i),
			Markdown:       a.Text(),
			Done:           a.Done,
			Question:       a.Question,
			CreatedAt:      a.CreatedAt,
			ConversationID: a.ConversationID,
		})
	}

	view := View{
		ConversationID:  conversationID,
		SearchText:      searchText,
		Placeholder:     placeholder(len(answers), loading),
		IsLoading:       loading,
		IsShowingDetail: len(answers) > 0,
		SelectedID:      selectedID,
		Items:           items,
	}

	_, hasSelection := view.Selected()
	view.Actions = actions(searchText, hasSelection && !loading, len(answers) > 0)

	if len(answers) == 0 {
		desc := emptyDescriptionIdle
		if loading {
			desc = emptyDescriptionLoading
		}
		view.EmptyView = &EmptyView{Title: emptyTitle, Description: desc}
	}

	return view
}

// SortNewestFirst returns a copy ordered by creation time, newest first.
// Answers created at the same instant keep their relative order.
func SortNewestFirst(answers []answer.Answer) []answer.Answer {
	out := make([]answer.Answer, len(answers))
	copy(out, answers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func placeholder(count int, loading bool) string {
	switch {
	case count > 0:
		return placeholderFollowUp
	case loading:
		return placeholderGenerating
	default:
		return placeholderFirst
	}
}

func actions(searchText string, answerActions, hasAnswers bool) []Action {
	out := make([]Action, 0, 8)
	if strings.TrimSpace(searchText) != "" {
		out = append(out, ActionGetAnswer)
	} else if answerActions {
		out = append(out, ActionCopyAnswer, ActionCopyQuestion, ActionSaveAnswer, ActionSpeak, ActionShare)
	}
	out = append(out, ActionFullTextInput)
	if hasAnswers {
		out = append(out, ActionNewConversation)
	}
	return out
}
