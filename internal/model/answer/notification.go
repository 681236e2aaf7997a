package answer

// Style mirrors the states of a transient user notice.
type Style string

const (
	StyleAnimated Style = "animated"
	StyleSuccess  Style = "success"
	StyleFailure  Style = "failure"
)

// Notification is a user-facing notice. An in-progress notice keeps its ID
// when it is later updated to success or failure.
type Notification struct {
	ID      string `json:"id"`
	Style   Style  `json:"style"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}
