package chat

import (
	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	"github.com/zhouzirui/z-ask/backend/internal/service/ai"
)

// state is owned by the screen loop and never shared.
type state struct {
	conversationID string
	session        ai.Session
	// generation changes on every reset so late sends from an old
	// conversation leave the new one untouched
	generation int

	answers    []answer.Answer
	selectedID string
	searchText string
	inflight   int
}

func (st *state) index(id string) int {
	for i := range st.answers {
		if st.answers[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *state) find(id string) (answer.Answer, bool) {
	if i := st.index(id); i >= 0 {
		return st.answers[i], true
	}
	return answer.Answer{}, false
}

// updatePartial replaces the partial text of a pending answer.
func (st *state) updatePartial(id, partial string) (answer.Answer, bool) {
	i := st.index(id)
	if i < 0 || st.answers[i].Done {
		return answer.Answer{}, false
	}
	st.answers[i].PartialAnswer = partial
	return st.answers[i], true
}

// complete marks a pending answer done. A done answer is never changed again.
func (st *state) complete(id, final string) (answer.Answer, bool) {
	i := st.index(id)
	if i < 0 || st.answers[i].Done {
		return answer.Answer{}, false
	}
	st.answers[i].Answer = final
	st.answers[i].PartialAnswer = final
	st.answers[i].Done = true
	return st.answers[i], true
}

func (st *state) chronological() []answer.Answer {
	out := make([]answer.Answer, len(st.answers))
	copy(out, st.answers)
	return out
}

func (st *state) view() View {
	return BuildView(st.conversationID, st.answers, st.selectedID, st.searchText, st.inflight > 0)
}
