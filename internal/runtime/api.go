package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cooolfix/airgate/internal/assistant"
	"github.com/cooolfix/airgate/internal/chat"
	"github.com/cooolfix/airgate/internal/live"
	"github.com/cooolfix/airgate/internal/payments"
	"github.com/cooolfix/airgate/internal/protocol"
	"github.com/cooolfix/airgate/internal/transcript"
)

type apiError struct {
	Error string `json:"error"`
}

type turnView struct {
	Role   string    `json:"role"`
	Text   string    `json:"text"`
	Hidden bool      `json:"hidden,omitempty"`
	At     time.Time `json:"at"`
}

type historyView struct {
	SessionID string     `json:"session_id"`
	Typing    bool       `json:"typing"`
	Turns     []turnView `json:"turns"`
}

func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assistant/open", r.handleOpen)
	mux.HandleFunc("POST /api/assistant/close", r.handleClose)
	mux.HandleFunc("POST /api/assistant/message", r.handleMessage)
	mux.HandleFunc("GET /api/assistant/history", r.handleHistory)
	mux.HandleFunc("GET /api/assistant/voice", r.handleVoiceGet)
	mux.HandleFunc("POST /api/assistant/voice", r.handleVoiceSet)
	mux.HandleFunc("POST /api/assistant/live/start", r.handleLiveStart)
	mux.HandleFunc("POST /api/assistant/live/stop", r.handleLiveStop)
	mux.HandleFunc("GET /api/assistant/live", r.handleLiveState)
	mux.HandleFunc("GET /api/assistant/quick-actions", r.handleQuickActions)
	mux.HandleFunc("POST /api/assistant/quick-action", r.handleQuickAction)
	mux.HandleFunc("POST /api/assistant/mode", r.handleMode)
	mux.HandleFunc("GET /api/assistant/handoff", r.handleHandoff)
	mux.HandleFunc("GET /api/catalog", r.handleCatalog)
	mux.HandleFunc("POST /api/payments/initiate", r.handlePaymentInitiate)
	mux.HandleFunc("GET /api/payments/verify", r.handlePaymentVerify)
	mux.HandleFunc("GET /api/transcript", r.handleTranscript)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiError{Error: err.Error()})
}

func (r *Runtime) historyView(all bool) historyView {
	var msgs []chat.Message
	if all {
		msgs = r.shell.History()
	} else {
		msgs = r.shell.VisibleHistory()
	}
	turns := make([]turnView, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, turnView{Role: string(m.Role), Text: m.Text, Hidden: m.Hidden, At: m.At})
	}
	return historyView{SessionID: r.sessionID, Typing: r.shell.Typing(), Turns: turns}
}

func (r *Runtime) handleOpen(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if req.ContentLength > 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var reply string
	if body.Query != "" {
		reply, _ = r.shell.OpenWithQuery(req.Context(), body.Query)
	} else {
		r.shell.Open(req.Context())
	}
	writeJSON(w, http.StatusOK, struct {
		Reply   string      `json:"reply,omitempty"`
		History historyView `json:"history"`
	}{Reply: reply, History: r.historyView(false)})
}

func (r *Runtime) handleClose(w http.ResponseWriter, _ *http.Request) {
	r.shell.Close()
	writeJSON(w, http.StatusOK, struct {
		Open bool `json:"open"`
	}{Open: false})
}

func (r *Runtime) handleMessage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, ok := r.shell.Ask(req.Context(), body.Text)
	writeJSON(w, http.StatusOK, struct {
		Reply     string `json:"reply"`
		Processed bool   `json:"processed"`
	}{Reply: reply, Processed: ok})
}

func (r *Runtime) handleHistory(w http.ResponseWriter, req *http.Request) {
	all := req.URL.Query().Get("all") == "true"
	writeJSON(w, http.StatusOK, r.historyView(all))
}

func (r *Runtime) handleVoiceGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Enabled bool `json:"enabled"`
	}{Enabled: r.shell.IsVoiceEnabled()})
}

func (r *Runtime) handleVoiceSet(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	r.shell.SetVoiceEnabled(body.Enabled)
	if !body.Enabled {
		r.publish(protocol.SubjectPlaybackStopped, struct {
			SessionID string `json:"session_id"`
			Reason    string `json:"reason"`
		}{SessionID: r.sessionID, Reason: "voice disabled"})
	}
	writeJSON(w, http.StatusOK, struct {
		Enabled bool `json:"enabled"`
	}{Enabled: r.shell.IsVoiceEnabled()})
}

func (r *Runtime) handleLiveStart(w http.ResponseWriter, req *http.Request) {
	if err := r.shell.StartLive(req.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, live.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		r.logger.Warn("live session start failed", slog.String("error", err.Error()))
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		State string `json:"state"`
	}{State: r.shell.LiveState().String()})
}

func (r *Runtime) handleLiveStop(w http.ResponseWriter, _ *http.Request) {
	r.shell.StopLive()
	r.publish(protocol.SubjectPlaybackStopped, struct {
		SessionID string `json:"session_id"`
		Reason    string `json:"reason"`
	}{SessionID: r.sessionID, Reason: "live stopped"})
	writeJSON(w, http.StatusOK, struct {
		State string `json:"state"`
	}{State: r.shell.LiveState().String()})
}

func (r *Runtime) handleLiveState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		State string `json:"state"`
	}{State: r.shell.LiveState().String()})
}

func (r *Runtime) handleQuickActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.shell.QuickActions())
}

func (r *Runtime) handleQuickAction(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := r.shell.QuickAction(req.Context(), body.Label)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Reply string `json:"reply"`
	}{Reply: reply})
}

func (r *Runtime) handleMode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mode := assistant.Mode(body.Mode)
	if mode != assistant.ModeChat && mode != assistant.ModeHandoff {
		writeError(w, http.StatusBadRequest, errors.New("mode must be chat or handoff"))
		return
	}
	r.shell.SetMode(mode)
	writeJSON(w, http.StatusOK, struct {
		Mode string `json:"mode"`
	}{Mode: string(r.shell.CurrentMode())})
}

func (r *Runtime) handleHandoff(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Summary string `json:"summary"`
	}{Summary: r.shell.HandoffSummary()})
}

func (r *Runtime) handleCatalog(w http.ResponseWriter, req *http.Request) {
	if id := req.URL.Query().Get("id"); id != "" {
		pkg, ok := r.catalog.Lookup(id)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown package"))
			return
		}
		writeJSON(w, http.StatusOK, pkg)
		return
	}
	if kind := req.URL.Query().Get("kind"); kind != "" {
		writeJSON(w, http.StatusOK, r.catalog.Kind(kind))
		return
	}
	writeJSON(w, http.StatusOK, r.catalog.Packages())
}

func (r *Runtime) handlePaymentInitiate(w http.ResponseWriter, req *http.Request) {
	if !r.cfg.Payments.Enabled {
		writeError(w, http.StatusNotImplemented, errors.New("payments disabled"))
		return
	}
	var body payments.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pkg, ok := r.catalog.Lookup(body.PackageID)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown package"))
		return
	}
	if body.AmountKES == 0 {
		body.AmountKES = pkg.Price
	}

	receipt, err := r.payments.Initiate(req.Context(), body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, payments.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	r.metrics.paymentInitiated(req.Context(), string(body.Method))
	writeJSON(w, http.StatusOK, receipt)
}

func (r *Runtime) handlePaymentVerify(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}

	status, err := r.payments.Verify(req.Context(), id)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, payments.ErrUnknownTransaction) {
			code = http.StatusNotFound
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}{TransactionID: id, Status: string(status)})
}

func (r *Runtime) handleTranscript(w http.ResponseWriter, req *http.Request) {
	sessionID := req.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = r.sessionID
	}
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = n
	}

	entries, err := r.store.ListSession(req.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		SessionID string             `json:"session_id"`
		Entries   []transcript.Entry `json:"entries"`
	}{SessionID: sessionID, Entries: entries})
}
