package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Speech.SampleRate != 24000 {
		t.Fatalf("expected 24kHz speech default, got %d", cfg.Speech.SampleRate)
	}
	if cfg.Live.InputSampleRate != 16000 {
		t.Fatalf("expected 16kHz live input default, got %d", cfg.Live.InputSampleRate)
	}
	if len(cfg.Catalog.Packages) == 0 {
		t.Fatal("expected default catalog packages")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIRGATE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("AIRGATE_BUS_USERNAME", "alice")
	t.Setenv("AIRGATE_BUS_PASSWORD", "secret")
	t.Setenv("AIRGATE_CHAT_TIMEOUT_MS", "5000")
	t.Setenv("AIRGATE_SPEECH_VOICE", "Puck")
	t.Setenv("AIRGATE_ASSISTANT_VOICE_ENABLED", "false")
	t.Setenv("AIRGATE_ASSISTANT_GREETING_REPLAY", "always")
	t.Setenv("AIRGATE_TRANSCRIPTS_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatal("expected credentials override")
	}
	if cfg.Chat.TimeoutMS != 5000 {
		t.Fatalf("expected chat timeout override, got %d", cfg.Chat.TimeoutMS)
	}
	if cfg.Speech.Voice != "Puck" {
		t.Fatalf("expected voice override, got %s", cfg.Speech.Voice)
	}
	if cfg.Assistant.VoiceEnabled {
		t.Fatal("expected voice disabled override")
	}
	if cfg.Assistant.GreetingReplay != "always" {
		t.Fatalf("expected greeting replay override, got %s", cfg.Assistant.GreetingReplay)
	}
	if cfg.Transcripts.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override, got %s", cfg.Transcripts.RetentionMode)
	}
}

func TestValidateRejectsBadReplayPolicy(t *testing.T) {
	t.Setenv("AIRGATE_ASSISTANT_GREETING_REPLAY", "sometimes")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for bad greeting_replay")
	}
}

func TestValidateRequiresAPIKeyForGeminiModes(t *testing.T) {
	t.Setenv("AIRGATE_CHAT_MODE", "gemini")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error when gemini mode has no api key")
	}
	t.Setenv("AIRGATE_GEMINI_API_KEY", "test-key")
	if _, err := Load(""); err != nil {
		t.Fatalf("unexpected error with api key set: %v", err)
	}
}
