package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// ErrSendBufferFull is returned by Push when the session's outbound buffer
// is full. Pushes are best-effort; the caller decides whether that matters.
var ErrSendBufferFull = errors.New("session send buffer full")

const sendBufferSize = 64

// Session is one live connection and its authorization state machine:
// anonymous until a challenge is issued, authorized only after the
// challenge signature checks out. All metadata access is mutex-guarded;
// command handlers for one session run concurrently.
type Session struct {
	id   string
	conn *websocket.Conn
	send chan Frame

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	authorized bool
	userID     uuid.UUID
	deviceID   uuid.UUID
	challenge  []byte
	signature  []byte
	closed     bool
	closeHooks []func()
}

func newSession(ctx context.Context, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     ulid.Make().String(),
		conn:   conn,
		send:   make(chan Frame, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.writeLoop()
	go s.keepAliveLoop()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetChallenge records the pending sign-in state: the resolved user and
// device plus the freshly issued nonce. The session stays unauthorized.
func (s *Session) SetChallenge(userID, deviceID uuid.UUID, challenge []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.deviceID = deviceID
	s.challenge = challenge
	s.signature = nil
	s.authorized = false
}

// Challenge returns the pending nonce and the device it was issued for.
// ok is false when no sign-in has been started on this session.
func (s *Session) Challenge() (challenge []byte, deviceID uuid.UUID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return nil, uuid.Nil, false
	}
	return s.challenge, s.deviceID, true
}

// Authorize marks the session as authorized for the given user, keeping
// the verified signature.
func (s *Session) Authorize(userID uuid.UUID, signature []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.signature = signature
	s.authorized = true
}

// AuthorizedUser returns the authenticated user id. ok is false unless the
// session has completed sign-in; this is the single authorization
// checkpoint for every guarded command.
func (s *Session) AuthorizedUser() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorized || s.userID == uuid.Nil {
		return uuid.Nil, false
	}
	return s.userID, true
}

// OnClose registers a hook that runs when the connection goes away.
// The registry uses this to drop the session from the user's bucket.
// A hook registered after the session already closed runs immediately,
// so a handler racing the disconnect cannot strand its cleanup.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.closeHooks = append(s.closeHooks, fn)
	s.mu.Unlock()
}

func (s *Session) runCloseHooks() {
	s.mu.Lock()
	s.closed = true
	hooks := s.closeHooks
	s.closeHooks = nil
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Push sends a server-initiated event to the client. Delivery is
// best-effort at-most-once: a full buffer drops the frame.
func (s *Session) Push(command string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := Frame{Type: TypePush, Command: command, Payload: data}
	select {
	case s.send <- frame:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// respond queues a response frame, blocking until there is buffer room so
// request/response pairs are never silently dropped.
func (s *Session) respond(frame Frame) {
	select {
	case s.send <- frame:
	case <-s.ctx.Done():
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, s.conn, frame)
			cancel()
		}
	}
}

func (s *Session) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *Session) close() {
	s.cancel()
	s.runCloseHooks()
	_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
}
