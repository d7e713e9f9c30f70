package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/huskiesio/api/internal/metrics"
)

// HandlerFunc handles one command request on a session.
type HandlerFunc func(ctx context.Context, sess *Session, payload json.RawMessage) (any, error)

// Mux routes command names to handlers.
type Mux struct {
	handlers map[string]HandlerFunc
}

// NewMux creates an empty command mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

// Handle registers a handler for a command name.
func (m *Mux) Handle(command string, fn HandlerFunc) {
	m.handlers[command] = fn
}

// Server accepts WebSocket connections and dispatches command frames.
// Each request frame is served in its own goroutine; responses and pushes
// are serialized through the session's write loop.
type Server struct {
	mux     *Mux
	logger  zerolog.Logger
	origins []string
}

// NewServer creates a command-socket server. origins lists the allowed
// WebSocket origins; empty means same-origin only.
func NewServer(mux *Mux, logger zerolog.Logger, origins []string) *Server {
	return &Server{mux: mux, logger: logger, origins: origins}
}

// ServeHTTP upgrades the request and runs the session until disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		return // Accept already wrote the error response
	}
	conn.SetReadLimit(8 << 20) // avatar payloads arrive hex-encoded

	sess := newSession(r.Context(), conn)
	metrics.ConnectionsActive.Inc()
	s.logger.Info().Str("session_id", sess.ID()).Msg("connection opened")

	defer func() {
		sess.close()
		metrics.ConnectionsActive.Dec()
		s.logger.Info().Str("session_id", sess.ID()).Msg("connection closed")
	}()

	for {
		var frame Frame
		if err := wsjson.Read(sess.ctx, conn, &frame); err != nil {
			return
		}
		if frame.Type != TypeRequest || frame.Command == "" {
			continue
		}
		go s.serve(sess, frame)
	}
}

func (s *Server) serve(sess *Session, req Frame) {
	start := time.Now()
	status := "ok"

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("command", req.Command).Interface("panic", r).Msg("handler panicked")
			status = "panic"
			sess.respond(Frame{
				Type:  TypeResponse,
				ID:    req.ID,
				Error: NewError(CodeInternal, "internal error"),
			})
		}
		metrics.CommandsTotal.WithLabelValues(req.Command, status).Inc()
		metrics.CommandDuration.WithLabelValues(req.Command).Observe(time.Since(start).Seconds())
	}()

	handler, ok := s.mux.handlers[req.Command]
	if !ok {
		status = CodeUnknownCommand
		sess.respond(Frame{
			Type:  TypeResponse,
			ID:    req.ID,
			Error: NewError(CodeUnknownCommand, "unknown command"),
		})
		return
	}

	result, err := handler(sess.ctx, sess, req.Payload)
	if err != nil {
		var cmdErr *Error
		if !errors.As(err, &cmdErr) {
			// Mask everything that is not a structured command failure.
			s.logger.Error().Err(err).Str("command", req.Command).Str("session_id", sess.ID()).Msg("command failed")
			cmdErr = NewError(CodeInternal, "internal error")
		}
		status = cmdErr.Code
		sess.respond(Frame{Type: TypeResponse, ID: req.ID, Error: cmdErr})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Str("command", req.Command).Msg("response marshal failed")
		status = CodeInternal
		sess.respond(Frame{Type: TypeResponse, ID: req.ID, Error: NewError(CodeInternal, "internal error")})
		return
	}

	s.logger.Debug().
		Str("command", req.Command).
		Str("session_id", sess.ID()).
		Dur("latency", time.Since(start)).
		Msg("command completed")

	sess.respond(Frame{Type: TypeResponse, ID: req.ID, Payload: payload})
}
