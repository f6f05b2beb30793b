// Package session serves analysis phases over websockets.
//
// A session reads exactly one JSON request, runs the phase pipeline and
// forwards its events as frames, then closes. Validation failures close
// the connection with a policy-violation code and a reason naming the
// missing field; everything that goes wrong after the phase has started
// is reported inside the stream and ends with a normal close.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
	"github.com/tjfontaine/youtube-reviewer/internal/phases"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
	"github.com/tjfontaine/youtube-reviewer/internal/server"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	closeGrace            = time.Second
	maxRequestBytes       = 1 << 20
)

// PipelineSource resolves a phase to its pipeline.
type PipelineSource interface {
	Pipeline(p phases.Phase) (*pipeline.Pipeline, error)
}

// Config tunes session timeouts and origin checks.
type Config struct {
	// AllowedOrigins lists accepted Origin headers. Empty accepts any.
	AllowedOrigins []string
	// RequestTimeout bounds the wait for the initial request.
	RequestTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

// Handler upgrades phase requests to websocket sessions.
type Handler struct {
	pipelines PipelineSource
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a session handler.
func NewHandler(pipelines PipelineSource, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	h := &Handler{
		pipelines: pipelines,
		cfg:       cfg,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Routes mounts one endpoint per phase plus /ws/phase/{phase}.
func (h *Handler) Routes(r chi.Router) {
	for _, p := range phases.All {
		r.Get("/ws/"+p.Slug(), h.Phase(p))
	}
	r.Get("/ws/phase/{phase}", h.servePhaseParam)
}

// Phase returns the handler for one phase.
func (h *Handler) Phase(p phases.Phase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, p)
	}
}

func (h *Handler) servePhaseParam(w http.ResponseWriter, r *http.Request) {
	p, ok := phases.ParsePhase(chi.URLParam(r, "phase"))
	if !ok {
		p = 0
	}
	h.serve(w, r, p)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warn("rejected websocket origin", "origin", origin)
	return false
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, p phases.Phase) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "path", r.URL.Path)
		server.AddError(r.Context(), err)
		return
	}
	conn.SetReadLimit(maxRequestBytes)

	id := uuid.New().String()
	server.AddLogField(r.Context(), "session_id", id)
	s := &session{
		id:    id,
		phase: p,
		conn:  conn,
		cfg:   h.cfg,
		now:   h.now,
		logger: h.logger.With(
			"session_id", id,
			"request_id", server.GetRequestID(r.Context()),
			"phase", int(p),
		),
	}
	s.setState(StateConnected)
	defer s.finish()

	if !p.Valid() {
		s.sendError(0, "unknown phase")
		s.closeWith(websocket.ClosePolicyViolation, "unknown phase")
		return
	}

	req, ok := s.readRequest()
	if !ok {
		return
	}

	pl, err := h.pipelines.Pipeline(p)
	if err != nil {
		s.logger.Error("no pipeline for phase", "error", err)
		s.sendError(int(p), "phase unavailable")
		s.closeWith(websocket.CloseInternalServerErr, "phase unavailable")
		return
	}

	s.run(r.Context(), pl, req)
}

// session is one websocket connection serving one phase request.
type session struct {
	id     string
	phase  phases.Phase
	conn   *websocket.Conn
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	state      State
	readerDone chan struct{}
}

func (s *session) setState(st State) {
	s.state = st
	s.logger.Debug("session state", "state", st.String())
}

// readRequest reads and validates the initial request. On failure it has
// already reported the error and closed the connection.
func (s *session) readRequest() (*phases.Request, bool) {
	s.setState(StateAwaitingRequest)
	_ = s.conn.SetReadDeadline(s.now().Add(s.cfg.RequestTimeout))

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.transportError("read request", err)
		return nil, false
	}
	_ = s.conn.SetReadDeadline(time.Time{})

	req, dropped, err := phases.DecodeRequest(data)
	if err != nil {
		s.logger.Warn("invalid request", "kind", domain.KindInputValidation, "error", err)
		s.sendError(int(s.phase), "invalid JSON request")
		s.closeWith(websocket.CloseUnsupportedData, "invalid JSON request")
		return nil, false
	}
	if dropped != "" {
		s.logger.Warn("ignored mistyped request field", "kind", domain.KindInputValidation, "field", dropped)
	}

	if err := req.Validate(s.phase); err != nil {
		var missing *phases.MissingFieldError
		reason := err.Error()
		if errors.As(err, &missing) {
			reason = missing.CloseReason()
		}
		s.logger.Warn("invalid request", "kind", domain.KindInputValidation, "error", err)
		s.sendError(int(s.phase), err.Error())
		s.closeWith(websocket.ClosePolicyViolation, reason)
		return nil, false
	}

	return req, true
}

func (s *session) run(parent context.Context, pl *pipeline.Pipeline, req *phases.Request) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	s.setState(StateRunning)
	s.watchDisconnect(cancel)

	start := s.now()
	s.logger.Info("phase started", "pipeline", pl.Name())

	if !s.send(Frame{
		Type:    FramePhaseStarted,
		Phase:   int(s.phase),
		Message: fmt.Sprintf("Starting phase %d: %s", int(s.phase), s.phase),
	}) {
		return
	}

	events := pl.Run(ctx, req.Payload())
	completed := false
	for ev := range events {
		frames := s.framesFor(ev)
		for _, frame := range frames {
			if !s.send(frame) {
				cancel()
				drain(events)
				return
			}
		}
		if ev.Type == pipeline.EventStepFailed {
			s.logger.Warn("stage failed", "stage", ev.StageID, "message", ev.Message)
		}
		if ev.Type == pipeline.EventOutput {
			completed = true
		}
	}

	if !completed {
		s.logger.Info("client disconnected before phase completed",
			"kind", domain.KindTransport,
			"duration", s.now().Sub(start),
		)
		return
	}

	s.logger.Info("phase completed", "duration", s.now().Sub(start))
	s.closeWith(websocket.CloseNormalClosure, "phase completed")
}

// framesFor maps one pipeline event to the frames sent for it. A stage
// failure is sent as step_failed followed by an error frame for the phase.
func (s *session) framesFor(ev pipeline.Event) []Frame {
	f := Frame{Phase: int(s.phase), Timestamp: ev.Timestamp}
	switch ev.Type {
	case pipeline.EventStarted:
		f.Type = FrameWorkflowStarted
	case pipeline.EventStepStarted:
		f.Type = FrameStepStarted
		f.ID = ev.StageID
	case pipeline.EventStepFailed:
		f.Type = FrameStepFailed
		f.ID = ev.StageID
		f.Message = ev.Message
		return []Frame{f, {
			Type:      FrameError,
			Phase:     int(s.phase),
			Timestamp: ev.Timestamp,
			Message:   ev.Message,
		}}
	case pipeline.EventOutput:
		f.Type = FramePhaseCompleted
		f.Output = ev.Value
		f.Message = fmt.Sprintf("Phase %d completed", int(s.phase))
	default:
		return nil
	}
	return []Frame{f}
}

// watchDisconnect reads until the connection fails and then cancels the
// run. Clients send nothing after the request, so any read error means the
// peer is gone or closing.
func (s *session) watchDisconnect(cancel context.CancelFunc) {
	s.readerDone = make(chan struct{})
	go func() {
		defer close(s.readerDone)
		defer cancel()
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("connection read ended", "error", err)
				}
				return
			}
		}
	}()
}

// send writes one frame. It reports false if the connection is gone.
func (s *session) send(f Frame) bool {
	if f.Timestamp.IsZero() {
		f.Timestamp = s.now().UTC()
	}
	_ = s.conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(f); err != nil {
		s.transportError("write frame", err)
		return false
	}
	return true
}

func (s *session) sendError(phase int, message string) {
	s.send(Frame{Type: FrameError, Phase: phase, Message: message})
}

// closeWith sends a close frame and waits briefly for the peer to answer.
func (s *session) closeWith(code int, reason string) {
	if s.state == StateClosed {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, s.now().Add(s.cfg.WriteTimeout)); err != nil {
		s.logger.Debug("write close frame", "error", err)
	}
	s.logger.Info("session closing", "code", code, "reason", reason)

	if s.readerDone != nil {
		select {
		case <-s.readerDone:
		case <-time.After(closeGrace):
		}
	} else {
		_ = s.conn.SetReadDeadline(s.now().Add(closeGrace))
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				break
			}
		}
	}
	s.setState(StateClosed)
}

func (s *session) transportError(op string, err error) {
	s.logger.Info("session transport error", "kind", domain.KindTransport, "op", op, "error", err)
	s.setState(StateClosed)
}

func (s *session) finish() {
	_ = s.conn.Close()
	if s.readerDone != nil {
		<-s.readerDone
	}
	if s.state != StateClosed {
		s.setState(StateClosed)
	}
	s.logger.Debug("session finished")
}

// drain consumes the remaining events of a cancelled run so its producer
// goroutine can exit.
func drain(events <-chan pipeline.Event) {
	for range events {
	}
}
