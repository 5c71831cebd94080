package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cooolfix/airgate/internal/assistant"
	"github.com/cooolfix/airgate/internal/audio"
	"github.com/cooolfix/airgate/internal/bus"
	"github.com/cooolfix/airgate/internal/catalog"
	"github.com/cooolfix/airgate/internal/chat"
	"github.com/cooolfix/airgate/internal/config"
	"github.com/cooolfix/airgate/internal/live"
	"github.com/cooolfix/airgate/internal/natsserver"
	"github.com/cooolfix/airgate/internal/payments"
	"github.com/cooolfix/airgate/internal/protocol"
	"github.com/cooolfix/airgate/internal/speech"
	"github.com/cooolfix/airgate/internal/transcript"
)

// Runtime wires the assistant gateway together: telemetry, message bus,
// transcript store, catalog, payments and one assistant shell, all exposed
// over the HTTP API.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	tracerClose func(context.Context) error
	embedded    *natsserver.EmbeddedServer
	busClient   *bus.Client
	store       *transcript.Store
	output      *audio.Output
	shell       *assistant.Shell
	catalog     *catalog.Catalog
	payments    payments.Provider
	metrics     *gatewayMetrics
	sessionID   string

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the gateway up and blocks until ctx is canceled, then drains
// everything in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, gatewayMetrics, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	r.metrics = gatewayMetrics

	if r.cfg.Bus.Embedded {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded
	}

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		r.shutdownInfra()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := transcript.Open(ctx, r.cfg.Transcripts, r.logger)
	if err != nil {
		r.shutdownInfra()
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	r.store = store

	r.catalog = catalog.New(r.cfg.Catalog)
	r.payments = payments.NewSimulated(r.cfg.Payments, r.logger)
	r.sessionID = uuid.NewString()

	if err := r.buildShell(ctx); err != nil {
		r.shutdownInfra()
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	r.registerAPI(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("session_id", r.sessionID))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.shell.Close()
	r.output.Close()
	if err := r.store.EndSession(shutdownCtx, r.sessionID); err != nil {
		r.logger.Warn("failed to finalize session transcript", slog.String("error", err.Error()))
	}
	r.shutdownInfra()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) shutdownInfra() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("transcript store close failed", slog.String("error", err.Error()))
		}
		r.store = nil
	}
	if r.busClient != nil {
		r.busClient.Close()
		r.busClient = nil
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
		r.embedded = nil
	}
}

func (r *Runtime) buildShell(ctx context.Context) error {
	responder, err := r.buildResponder(ctx)
	if err != nil {
		return fmt.Errorf("failed to build chat backend: %w", err)
	}
	synth := r.buildSynthesizer()
	backend := r.buildLiveBackend()

	r.output = audio.NewOutput(bus.NewAudioSink(r.busClient, r.sessionID))
	capture := live.NewBusCapture(r.busClient, r.sessionID, r.logger)

	r.shell = assistant.New(assistant.Options{
		SessionID:            r.sessionID,
		Assistant:            r.cfg.Assistant,
		Responder:            responder,
		Fallback:             r.cfg.Chat.Fallback,
		ChatTimeout:          time.Duration(r.cfg.Chat.TimeoutMS) * time.Millisecond,
		Synthesizer:          synth,
		Output:               r.output,
		SpeechSampleRate:     r.cfg.Speech.SampleRate,
		SpeechRetryDelay:     time.Duration(r.cfg.Speech.RetryDelayMS) * time.Millisecond,
		LiveBackend:          backend,
		LiveCapture:          capture,
		LiveOutputSampleRate: r.cfg.Live.OutputSampleRate,
		OnLiveState:          r.publishLiveState,
		Recorder:             &busRecorder{inner: transcript.NewRecorder(r.store), runtime: r},
		Logger:               r.logger,
	})
	return r.store.BeginSession(ctx, r.sessionID)
}

func (r *Runtime) buildResponder(ctx context.Context) (chat.Responder, error) {
	switch r.cfg.Chat.Mode {
	case "gemini":
		return chat.NewGeminiResponder(ctx, r.cfg.Gemini.APIKey, r.cfg.Chat.Model, r.systemPrompt())
	default:
		return chat.NewMockResponder(0), nil
	}
}

func (r *Runtime) buildSynthesizer() speech.Synthesizer {
	switch r.cfg.Speech.Mode {
	case "gemini":
		return speech.NewGeminiSynth(r.cfg.Gemini.APIKey, r.cfg.Speech.Model, r.cfg.Speech.Voice)
	default:
		return speech.NewMockSynth(r.cfg.Speech.SampleRate, 0)
	}
}

func (r *Runtime) buildLiveBackend() live.Backend {
	switch r.cfg.Live.Mode {
	case "gemini":
		return &live.GeminiBackend{
			APIKey:          r.cfg.Gemini.APIKey,
			Model:           r.cfg.Live.Model,
			Voice:           r.cfg.Live.Voice,
			InputSampleRate: r.cfg.Live.InputSampleRate,
			SystemPrompt:    r.systemPrompt(),
			Logger:          r.logger,
		}
	default:
		return &live.MockBackend{Conn: live.NewMockConn()}
	}
}

func (r *Runtime) systemPrompt() string {
	prompt := r.cfg.Live.SystemPrompt
	if briefing := r.catalog.Briefing(); briefing != "" {
		prompt += "\n\n" + briefing
	}
	return prompt
}

func (r *Runtime) publishLiveState(state live.State, reason string) {
	if state == live.StateActive {
		r.metrics.liveSessionStarted(context.Background())
	}
	r.publish(protocol.SubjectLiveStatus, protocol.LiveStatus{
		SessionID: r.sessionID,
		State:     state.String(),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

func (r *Runtime) publish(subject string, v any) {
	if r.busClient == nil || !r.busClient.Healthy() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to encode bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := r.busClient.Conn().Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

// busRecorder mirrors transcript recording onto the bus so edge devices can
// render the conversation as it happens.
type busRecorder struct {
	inner   *transcript.Recorder
	runtime *Runtime
}

func (b *busRecorder) RecordTurn(sessionID string, m chat.Message) {
	b.inner.RecordTurn(sessionID, m)
	b.runtime.metrics.turnRecorded(context.Background(), string(m.Role))
	b.runtime.publish(protocol.SubjectChatTurn, protocol.ChatTurn{
		SessionID: sessionID,
		Role:      string(m.Role),
		Text:      m.Text,
		Hidden:    m.Hidden,
		Timestamp: m.At.UTC(),
	})
}

func (b *busRecorder) RecordEvent(sessionID, kind, detail string) {
	b.inner.RecordEvent(sessionID, kind, detail)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
