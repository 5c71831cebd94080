package chat

import (
	"context"
	"time"
)

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Hidden messages were injected by a
// non-chat UI action: they stay in history as backend context but are
// excluded from the on-screen view.
type Message struct {
	Role   Role      `json:"role"`
	Text   string    `json:"text"`
	Hidden bool      `json:"hidden,omitempty"`
	At     time.Time `json:"at"`
}

// Responder is the contract for the language-model backend. It receives the
// full prior history plus the new user input.
type Responder interface {
	Reply(ctx context.Context, history []Message, input string) (string, error)
}

// Speaker voices an assistant reply. The speech engine implements it.
type Speaker interface {
	Speak(ctx context.Context, text string)
}
