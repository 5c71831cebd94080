package transcript

import (
	"context"
	"log/slog"

	"github.com/cooolfix/airgate/internal/chat"
)

// Recorder adapts the store to the shell's fire-and-forget recording hooks.
// Persistence failures are absorbed: a transcript is never allowed to break
// the conversation.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) RecordTurn(sessionID string, m chat.Message) {
	if err := r.store.AppendTurn(context.Background(), sessionID, m); err != nil {
		r.store.log.Warn("failed to record turn", slog.String("error", err.Error()))
	}
}

func (r *Recorder) RecordEvent(sessionID, kind, detail string) {
	if err := r.store.AppendMilestone(context.Background(), sessionID, kind, detail); err != nil {
		r.store.log.Warn("failed to record milestone", slog.String("error", err.Error()))
	}
}
