package protocol

import "time"

// MicFrame carries captured PCM audio published by an edge device. PCM is
// transport-encoded 16kHz mono little-endian int16.
type MicFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        string `json:"pcm"`
	Final      bool   `json:"final"`
}

// AudioChunk carries synthesized audio scheduled for playback on an edge
// device. PCM is transport-encoded little-endian int16.
type AudioChunk struct {
	SessionID  string  `json:"session_id"`
	Sequence   int     `json:"sequence"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	StartAt    float64 `json:"start_at"`
	PCM        string  `json:"pcm"`
}

// ChatTurn announces a completed conversation turn.
type ChatTurn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Hidden    bool      `json:"hidden,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveStatus announces live voice session state transitions.
type LiveStatus struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectMicFramePrefix  = "audio.mic"
	SubjectAudioOutPrefix  = "audio.out"
	SubjectChatTurn        = "assistant.chat.turn"
	SubjectLiveStatus      = "assistant.live.status"
	SubjectPlaybackStopped = "assistant.playback.stopped"
)

// MicSubject returns the mic frame subject for one session.
func MicSubject(sessionID string) string {
	return SubjectMicFramePrefix + "." + sessionID
}

// AudioOutSubject returns the playback subject for one session.
func AudioOutSubject(sessionID string) string {
	return SubjectAudioOutPrefix + "." + sessionID
}
