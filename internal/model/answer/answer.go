package answer

import "time"

// Answer is one question/answer pair of the active conversation.
// PartialAnswer buffers streamed text until Done flips to true.
type Answer struct {
	ID             string     `json:"id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	PartialAnswer  string     `json:"partialAnswer"`
	Done           bool       `json:"done"`
	ConversationID string     `json:"conversationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	SavedAt        *time.Time `json:"savedAt,omitempty"`
}

// Text returns what should be displayed for the answer right now.
func (a Answer) Text() string {
	if a.Done {
		return a.Answer
	}
	return a.PartialAnswer
}

// Favorite is a persisted copy of an answer, stamped when the user saved it.
type Favorite struct {
	Answer
}

// NewFavorite copies a and stamps it with savedAt, never earlier than the
// answer's creation time.
func NewFavorite(a Answer, savedAt time.Time) Favorite {
	if savedAt.Before(a.CreatedAt) {
		savedAt = a.CreatedAt
	}
	stamped := savedAt
	a.SavedAt = &stamped
	return Favorite{Answer: a}
}
