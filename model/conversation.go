package model

// Sender is the closed set of conversation turn authors.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderOther  Sender = "other"
	SenderSystem Sender = "system"
)

// ConversationTurn is one entry of the conversation history attached to a
// request. Within a ring buffer, ts is strictly non-decreasing.
type ConversationTurn struct {
	Sender Sender
	Text   string
	TS     float64
}
