package chat

import (
	"context"
	"strings"
	"time"
)

type mockResponder struct {
	delay time.Duration
}

// NewMockResponder returns a Responder that echoes a canned completion.
func NewMockResponder(delay time.Duration) Responder {
	return &mockResponder{delay: delay}
}

func (m *mockResponder) Reply(ctx context.Context, history []Message, input string) (string, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return "[mock reply to " + strings.TrimSpace(input) + "]", nil
}
