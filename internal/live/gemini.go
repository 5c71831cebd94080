package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const bidiEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// GeminiBackend dials the BidiGenerateContent websocket API. Each Connect
// opens a fresh session with the configured model and voice.
type GeminiBackend struct {
	APIKey          string
	Model           string
	Voice           string
	InputSampleRate int
	SystemPrompt    string
	Logger          *slog.Logger
}

type bidiSetup struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
			SpeechConfig       struct {
				VoiceConfig struct {
					PrebuiltVoiceConfig struct {
						VoiceName string `json:"voiceName"`
					} `json:"prebuiltVoiceConfig"`
				} `json:"voiceConfig"`
			} `json:"speechConfig"`
		} `json:"generationConfig"`
		SystemInstruction *bidiContent `json:"systemInstruction,omitempty"`
	} `json:"setup"`
}

type bidiContent struct {
	Parts []bidiPart `json:"parts"`
}

type bidiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *bidiInlineData `json:"inlineData,omitempty"`
}

type bidiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type bidiClientMessage struct {
	RealtimeInput *struct {
		MediaChunks []bidiInlineData `json:"mediaChunks"`
	} `json:"realtimeInput,omitempty"`
}

type bidiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		ModelTurn    *bidiContent `json:"modelTurn,omitempty"`
		Interrupted  bool         `json:"interrupted,omitempty"`
		TurnComplete bool         `json:"turnComplete,omitempty"`
	} `json:"serverContent,omitempty"`
	GoAway *struct{} `json:"goAway,omitempty"`
}

func (b *GeminiBackend) Connect(ctx context.Context) (Conn, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	url := fmt.Sprintf("%s?key=%s", bidiEndpoint, b.APIKey)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing live session: %w", err)
	}

	var setup bidiSetup
	setup.Setup.Model = "models/" + b.Model
	setup.Setup.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = b.Voice
	if b.SystemPrompt != "" {
		setup.Setup.SystemInstruction = &bidiContent{Parts: []bidiPart{{Text: b.SystemPrompt}}}
	}
	if err := ws.WriteJSON(setup); err != nil {
		ws.Close()
		return nil, fmt.Errorf("sending session setup: %w", err)
	}

	c := &geminiConn{
		ws:       ws,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", b.InputSampleRate),
		events:   make(chan Event, 32),
		logger:   logger.With(slog.String("component", "live-gemini")),
	}
	go c.readLoop()
	return c, nil
}

type geminiConn struct {
	ws       *websocket.Conn
	mimeType string
	events   chan Event
	logger   *slog.Logger
}

func (c *geminiConn) Send(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg bidiClientMessage
	msg.RealtimeInput = &struct {
		MediaChunks []bidiInlineData `json:"mediaChunks"`
	}{MediaChunks: []bidiInlineData{{MimeType: c.mimeType, Data: payload}}}
	return c.ws.WriteJSON(msg)
}

func (c *geminiConn) Events() <-chan Event { return c.events }

func (c *geminiConn) Close() error {
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *geminiConn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- Event{Kind: EventClosed}
			} else {
				c.events <- Event{Kind: EventError, Err: err}
			}
			return
		}
		var msg bidiServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("unparseable server message", slog.String("error", err.Error()))
			continue
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.Interrupted {
			c.events <- Event{Kind: EventInterrupted}
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && part.InlineData.Data != "" {
					c.events <- Event{Kind: EventAudio, Audio: part.InlineData.Data}
				}
			}
		}
	}
}
