package models

// Role values for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        int64  `json:"id"`
	SessionID int64  `json:"sessionId"`
	Role      string `json:"role"` // user or assistant
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

type Session struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// ChatMessage is the only shape that crosses the inference boundary:
// no ids, no timestamps.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnMode selects how a turn is handled.
type TurnMode int

const (
	ModePlain TurnMode = iota
	ModeSearch
	ModeImage
)

// Turn describes one user submission. DisplayContent is what the user sees
// and what gets persisted; SubmittedContent is what goes upstream. The two
// diverge for quoted, search and image turns.
type Turn struct {
	SessionID        int64
	DisplayContent   string
	SubmittedContent string
	Quote            string
	Mode             TurnMode
}
