package transcript

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cooolfix/airgate/internal/chat"
	"github.com/cooolfix/airgate/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralSkipsPersistence(t *testing.T) {
	cfg := config.TranscriptConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.AppendTurn(context.Background(), "sess", chat.Message{Role: chat.RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("append on ephemeral store: %v", err)
	}
	entries, err := s.ListSession(context.Background(), "sess", 10)
	if err != nil {
		t.Fatalf("list on ephemeral store: %v", err)
	}
	if entries != nil {
		t.Fatalf("ephemeral store returned %d entries", len(entries))
	}
}

func TestAppendAndListTranscript(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TranscriptConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	turns := []chat.Message{
		{Role: chat.RoleAssistant, Text: "Centipid Node Online."},
		{Role: chat.RoleUser, Text: "upgrade me", Hidden: true},
		{Role: chat.RoleAssistant, Text: "Gold tier it is."},
	}
	for _, m := range turns {
		if err := s.AppendTurn(context.Background(), sessionID, m); err != nil {
			t.Fatalf("append turn: %v", err)
		}
	}
	if err := s.AppendMilestone(context.Background(), sessionID, "live.start", ""); err != nil {
		t.Fatalf("append milestone: %v", err)
	}

	entries, err := s.ListSession(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Text != "Centipid Node Online." || entries[0].Role != "assistant" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if !entries[1].Hidden {
		t.Fatal("hidden flag lost")
	}
	if entries[3].Kind != "milestone.live.start" {
		t.Fatalf("unexpected milestone kind: %s", entries[3].Kind)
	}
}

func TestSessionRetentionDropsTranscriptOnEnd(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TranscriptConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.AppendTurn(context.Background(), "sess", chat.Message{Role: chat.RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if err := s.EndSession(context.Background(), "sess"); err != nil {
		t.Fatalf("end session: %v", err)
	}
	entries, err := s.ListSession(context.Background(), "sess", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("transcript survived session end: %d entries", len(entries))
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TranscriptConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendTurn(context.Background(), "old-session", chat.Message{Role: chat.RoleUser, Text: "old"}); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginSession(context.Background(), "new-session"); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.ListSession(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("expected old session pruned")
	}
}

func TestRecorderAbsorbsStoreFailures(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TranscriptConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	r := NewRecorder(s)
	r.RecordTurn("sess", chat.Message{Role: chat.RoleUser, Text: "hi"})
	r.RecordEvent("sess", "shell.open", "")

	s.Close()
	// Recording against a closed store must not panic.
	r.RecordTurn("sess", chat.Message{Role: chat.RoleUser, Text: "late"})
}
