package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type TranscriptConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type QuickAction struct {
	Label string `yaml:"label"`
	Query string `yaml:"query"`
}

type AssistantConfig struct {
	Greeting       string        `yaml:"greeting"`
	GreetingReplay string        `yaml:"greeting_replay"` // once | always
	VoiceEnabled   bool          `yaml:"voice_enabled"`
	HandoffContact string        `yaml:"handoff_contact"`
	QuickActions   []QuickAction `yaml:"quick_actions"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

type ChatConfig struct {
	Mode      string `yaml:"mode"` // mock | gemini
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Fallback  string `yaml:"fallback"`
}

type SpeechConfig struct {
	Mode         string `yaml:"mode"` // mock | gemini
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
	SampleRate   int    `yaml:"sample_rate"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
}

type LiveConfig struct {
	Mode             string `yaml:"mode"` // mock | gemini
	Model            string `yaml:"model"`
	Voice            string `yaml:"voice"`
	InputSampleRate  int    `yaml:"input_sample_rate"`
	OutputSampleRate int    `yaml:"output_sample_rate"`
	SystemPrompt     string `yaml:"system_prompt"`
}

type PaymentsConfig struct {
	Enabled       bool    `yaml:"enabled"`
	SettleDelayMS int     `yaml:"settle_delay_ms"`
	FailureRate   float64 `yaml:"failure_rate"`
}

type Package struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Price    int      `yaml:"price"`
	Speed    string   `yaml:"speed"`
	Duration string   `yaml:"duration"`
	Kind     string   `yaml:"kind"` // fiber | hotspot
	Devices  int      `yaml:"devices"`
	Popular  bool     `yaml:"popular"`
	Features []string `yaml:"features"`
}

type CatalogConfig struct {
	Packages []Package `yaml:"packages"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Transcripts TranscriptConfig `yaml:"transcripts"`
	Assistant   AssistantConfig  `yaml:"assistant"`
	Gemini      GeminiConfig     `yaml:"gemini"`
	Chat        ChatConfig       `yaml:"chat"`
	Speech      SpeechConfig     `yaml:"speech"`
	Live        LiveConfig       `yaml:"live"`
	Payments    PaymentsConfig   `yaml:"payments"`
	Catalog     CatalogConfig    `yaml:"catalog"`
}

const defaultGreeting = "Centipid Node Online. I am the Cooolfix Automated Gateway. Initialize your request by providing your sector location and requested throughput tier."

const defaultFallback = "Backbone Latency Error. The Centipid Gateway is experiencing high load. Please retry your uplink or contact Westlands Mission Control directly at 0712 156 070."

func Default() Config {
	return Config{
		RuntimeName: "airgate",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Transcripts: TranscriptConfig{
			Path:          "./data/airgate-transcripts.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Assistant: AssistantConfig{
			Greeting:       defaultGreeting,
			GreetingReplay: "once",
			VoiceEnabled:   true,
			HandoffContact: "254712156070",
			QuickActions: []QuickAction{
				{Label: "Coverage Scan", Query: "Run coverage scan for my sector."},
				{Label: "Node Fault", Query: "Report technical node fault."},
				{Label: "Uplink Credit", Query: "I need to renew my internet provisioning."},
				{Label: "High-Fidelity Tiers", Query: "Provide details on premium fiber tiers."},
			},
		},
		Chat: ChatConfig{
			Mode:      "mock",
			Model:     "gemini-3-flash-preview",
			TimeoutMS: 30000,
			Fallback:  defaultFallback,
		},
		Speech: SpeechConfig{
			Mode:         "mock",
			Model:        "gemini-2.5-flash-preview-tts",
			Voice:        "Kore",
			SampleRate:   24000,
			RetryDelayMS: 500,
		},
		Live: LiveConfig{
			Mode:             "mock",
			Model:            "gemini-2.5-flash-native-audio-preview-12-2025",
			Voice:            "Zephyr",
			InputSampleRate:  16000,
			OutputSampleRate: 24000,
			SystemPrompt:     "You are the Air Assistant for Cooolfix Air Technologies. You are triaging a live customer voice request. Use elite engineering terminology.",
		},
		Payments: PaymentsConfig{
			Enabled:       true,
			SettleDelayMS: 2000,
			FailureRate:   0,
		},
		Catalog: CatalogConfig{
			Packages: defaultPackages(),
		},
	}
}

func defaultPackages() []Package {
	fiberFeatures := []string{"Unlimited Data", "PPPoE Connection", "24/7 Support"}
	return []Package{
		{ID: "home-6m", Name: "Home", Price: 1500, Speed: "6Mbps", Duration: "1 Month", Kind: "fiber", Devices: 2, Features: fiberFeatures},
		{ID: "lite-8m", Name: "Lite", Price: 1850, Speed: "8Mbps", Duration: "1 Month", Kind: "fiber", Devices: 4, Features: fiberFeatures},
		{ID: "edge-12m", Name: "Edge", Price: 2000, Speed: "12Mbps", Duration: "1 Month", Kind: "fiber", Devices: 6, Features: fiberFeatures},
		{ID: "silver-20m", Name: "Silver", Price: 2299, Speed: "20Mbps", Duration: "1 Month", Kind: "fiber", Devices: 8, Popular: true, Features: append(fiberFeatures, "Fast Streaming")},
		{ID: "mantle-32m", Name: "Mantle", Price: 2899, Speed: "32Mbps", Duration: "1 Month", Kind: "fiber", Devices: 12, Features: append(fiberFeatures, "Multiple Users")},
		{ID: "crust-40m", Name: "Crust", Price: 3799, Speed: "40Mbps", Duration: "1 Month", Kind: "fiber", Devices: 15, Features: append(fiberFeatures, "4K Streaming")},
		{ID: "platinum-70m", Name: "Platinum", Price: 5499, Speed: "70Mbps", Duration: "1 Month", Kind: "fiber", Devices: 25, Features: []string{"Unlimited Data", "PPPoE Connection", "Priority Support", "Heavy Gaming"}},
		{ID: "gold-100m", Name: "Gold", Price: 10000, Speed: "100Mbps", Duration: "1 Month", Kind: "fiber", Devices: 50, Features: []string{"Unlimited Data", "PPPoE Connection", "Priority Support", "Enterprise Grade"}},
		{ID: "hs-kumi", Name: "Kumi Unlimited", Price: 10, Duration: "1 Hour", Kind: "hotspot", Devices: 2, Features: []string{"Unlimited 2 Devices", "Instant Activation", "Shield Protected"}},
		{ID: "hs-mbao", Name: "Mbao Unlimited", Price: 20, Duration: "2.5 Hours", Kind: "hotspot", Devices: 2, Features: []string{"Unlimited Access", "2 Devices", "Shield Protected"}},
		{ID: "hs-chuani", Name: "Chuani Unlimited", Price: 50, Duration: "8 Hours", Kind: "hotspot", Devices: 3, Features: []string{"Unlimited 3 Devices", "Instant Activation", "Shield Protected"}},
		{ID: "hs-daily", Name: "Daily Unlimited", Price: 80, Duration: "1 Day", Kind: "hotspot", Devices: 3, Features: []string{"24 Hour Access", "3 Devices", "Shield Protected"}},
		{ID: "hs-weekly-solo", Name: "Weekly Solo", Price: 280, Duration: "7 Days", Kind: "hotspot", Devices: 1, Features: []string{"Solo Account", "7 Day Access", "Shield Protected"}},
		{ID: "hs-weekly-duo", Name: "Weekly Duo", Price: 380, Duration: "7 Days", Kind: "hotspot", Devices: 2, Features: []string{"Dual Account", "7 Day Access", "Shield Protected"}},
		{ID: "hs-weekly-trio", Name: "Weekly Trio", Price: 400, Duration: "7 Days", Kind: "hotspot", Devices: 3, Popular: true, Features: []string{"Trio Account", "7 Day Access", "Shield Protected"}},
		{ID: "hs-biweekly", Name: "Bi-Weekly Unlimited", Price: 550, Duration: "14 Days", Kind: "hotspot", Devices: 3, Features: []string{"14 Day Access", "3 Devices", "Shield Protected"}},
		{ID: "hs-monthly-solo", Name: "Monthly Solo", Price: 1000, Duration: "1 Month", Kind: "hotspot", Devices: 1, Features: []string{"Monthly Account", "Solo User", "Shield Protected"}},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "AIRGATE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "AIRGATE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "AIRGATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "AIRGATE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "AIRGATE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "AIRGATE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "AIRGATE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "AIRGATE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "AIRGATE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "AIRGATE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "AIRGATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "AIRGATE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "AIRGATE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "AIRGATE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "AIRGATE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "AIRGATE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Transcripts.Path, "AIRGATE_TRANSCRIPTS_PATH")
	overrideString(&cfg.Transcripts.RetentionMode, "AIRGATE_TRANSCRIPTS_RETENTION_MODE")
	overrideInt(&cfg.Transcripts.RetentionDays, "AIRGATE_TRANSCRIPTS_RETENTION_DAYS")
	overrideInt(&cfg.Transcripts.MaxSessions, "AIRGATE_TRANSCRIPTS_MAX_SESSIONS")
	overrideBool(&cfg.Transcripts.VacuumOnStart, "AIRGATE_TRANSCRIPTS_VACUUM_ON_START")
	overrideString(&cfg.Assistant.Greeting, "AIRGATE_ASSISTANT_GREETING")
	overrideString(&cfg.Assistant.GreetingReplay, "AIRGATE_ASSISTANT_GREETING_REPLAY")
	overrideBool(&cfg.Assistant.VoiceEnabled, "AIRGATE_ASSISTANT_VOICE_ENABLED")
	overrideString(&cfg.Assistant.HandoffContact, "AIRGATE_ASSISTANT_HANDOFF_CONTACT")
	overrideString(&cfg.Gemini.APIKey, "AIRGATE_GEMINI_API_KEY")
	overrideString(&cfg.Chat.Mode, "AIRGATE_CHAT_MODE")
	overrideString(&cfg.Chat.Model, "AIRGATE_CHAT_MODEL")
	overrideInt(&cfg.Chat.TimeoutMS, "AIRGATE_CHAT_TIMEOUT_MS")
	overrideString(&cfg.Chat.Fallback, "AIRGATE_CHAT_FALLBACK")
	overrideString(&cfg.Speech.Mode, "AIRGATE_SPEECH_MODE")
	overrideString(&cfg.Speech.Model, "AIRGATE_SPEECH_MODEL")
	overrideString(&cfg.Speech.Voice, "AIRGATE_SPEECH_VOICE")
	overrideInt(&cfg.Speech.SampleRate, "AIRGATE_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.RetryDelayMS, "AIRGATE_SPEECH_RETRY_DELAY_MS")
	overrideString(&cfg.Live.Mode, "AIRGATE_LIVE_MODE")
	overrideString(&cfg.Live.Model, "AIRGATE_LIVE_MODEL")
	overrideString(&cfg.Live.Voice, "AIRGATE_LIVE_VOICE")
	overrideInt(&cfg.Live.InputSampleRate, "AIRGATE_LIVE_INPUT_SAMPLE_RATE")
	overrideInt(&cfg.Live.OutputSampleRate, "AIRGATE_LIVE_OUTPUT_SAMPLE_RATE")
	overrideString(&cfg.Live.SystemPrompt, "AIRGATE_LIVE_SYSTEM_PROMPT")
	overrideBool(&cfg.Payments.Enabled, "AIRGATE_PAYMENTS_ENABLED")
	overrideInt(&cfg.Payments.SettleDelayMS, "AIRGATE_PAYMENTS_SETTLE_DELAY_MS")
	overrideFloat(&cfg.Payments.FailureRate, "AIRGATE_PAYMENTS_FAILURE_RATE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Transcripts.Path == "" {
		return errors.New("transcripts.path must not be empty")
	}
	switch cfg.Transcripts.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("transcripts.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Transcripts.RetentionDays < 0 {
		return errors.New("transcripts.retention_days must be >= 0")
	}
	if cfg.Assistant.Greeting == "" {
		return errors.New("assistant.greeting must not be empty")
	}
	switch cfg.Assistant.GreetingReplay {
	case "once", "always":
	default:
		return errors.New("assistant.greeting_replay must be one of once|always")
	}
	switch cfg.Chat.Mode {
	case "mock", "gemini":
	default:
		return errors.New("chat.mode must be one of mock|gemini")
	}
	if cfg.Chat.Mode == "gemini" && cfg.Gemini.APIKey == "" {
		return errors.New("gemini.api_key must be set when chat.mode=gemini")
	}
	if cfg.Chat.TimeoutMS <= 0 {
		return errors.New("chat.timeout_ms must be positive")
	}
	if cfg.Chat.Fallback == "" {
		return errors.New("chat.fallback must not be empty")
	}
	switch cfg.Speech.Mode {
	case "mock", "gemini":
	default:
		return errors.New("speech.mode must be one of mock|gemini")
	}
	if cfg.Speech.Mode == "gemini" && cfg.Gemini.APIKey == "" {
		return errors.New("gemini.api_key must be set when speech.mode=gemini")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	if cfg.Speech.RetryDelayMS < 0 {
		return errors.New("speech.retry_delay_ms must be >= 0")
	}
	switch cfg.Live.Mode {
	case "mock", "gemini":
	default:
		return errors.New("live.mode must be one of mock|gemini")
	}
	if cfg.Live.Mode == "gemini" && cfg.Gemini.APIKey == "" {
		return errors.New("gemini.api_key must be set when live.mode=gemini")
	}
	if cfg.Live.InputSampleRate <= 0 || cfg.Live.OutputSampleRate <= 0 {
		return errors.New("live sample rates must be positive")
	}
	if cfg.Payments.FailureRate < 0 || cfg.Payments.FailureRate > 1 {
		return errors.New("payments.failure_rate must be between 0 and 1")
	}
	if cfg.Payments.SettleDelayMS < 0 {
		return errors.New("payments.settle_delay_ms must be >= 0")
	}
	for _, p := range cfg.Catalog.Packages {
		if p.ID == "" || p.Name == "" {
			return errors.New("catalog packages must have id and name")
		}
		if p.Kind != "fiber" && p.Kind != "hotspot" {
			return fmt.Errorf("catalog package %s: kind must be fiber|hotspot", p.ID)
		}
	}
	return nil
}
