package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/render"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 64 << 10
)

// Message types exchanged over /ws
const (
	msgQuery   = "query"
	msgClose   = "close"
	msgSession = "session"
	msgLevel   = "level"
	msgDone    = "done"
	msgError   = "error"
)

// clientMessage is a message from the browser
type clientMessage struct {
	Type string `json:"type"`
	engine.Params
}

type sessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type levelMessage struct {
	Type  string        `json:"type"`
	Depth int           `json:"depth"`
	Paths []render.Path `json:"paths"`
}

type doneMessage struct {
	Type  string `json:"type"`
	Roads int    `json:"roads"`
}

type errorMessage struct {
	Type     string         `json:"type"`
	Code     core.ErrorCode `json:"code"`
	Message  string         `json:"message"`
	Guidance string         `json:"guidance,omitempty"`
}

func (t *HTTPTransport) upgrader() *websocket.Upgrader {
	origins := t.config.AllowedOrigins
	u := &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16 << 10,
	}
	switch {
	case slices.Contains(origins, "*"):
		u.CheckOrigin = func(*http.Request) bool { return true }
	case len(origins) > 0:
		u.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
	return u
}

// handleWebSocket upgrades the request and serves one session until the
// client disconnects or sends close
func (t *HTTPTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader().Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("failed to upgrade websocket", "error", err, "remote_addr", getIP(r))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s := &wsSession{
		id:     uuid.NewString(),
		conn:   conn,
		engine: t.engine,
		buffer: t.config.StreamBuffer,
		out:    make(chan any, t.config.StreamBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	s.logger = t.logger.With("session_id", s.id)

	if !t.sessions.add(s) {
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}
	defer func() {
		n := t.sessions.remove(s.id)
		monitoring.UpdateActiveConnections("websocket", "session", n)
	}()
	monitoring.UpdateActiveConnections("websocket", "session", t.sessions.len())

	s.logger.Info("websocket session started", "remote_addr", getIP(r))
	s.serve()
	s.logger.Info("websocket session ended")
}

// wsSession is one WebSocket connection. A single writer goroutine owns
// writes to conn; everything else queues messages on out.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	engine *engine.Engine
	logger *slog.Logger
	buffer int
	out    chan any

	ctx    context.Context
	cancel context.CancelFunc

	queryCancel context.CancelFunc
	queryDone   chan struct{}
}

func (s *wsSession) serve() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	defer func() {
		s.cancel()
		s.stopQuery()
		<-writerDone
		s.conn.Close()
	}()

	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	if !s.send(s.ctx, sessionMessage{Type: msgSession, SessionID: s.id}) {
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("ignoring malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case msgQuery:
			s.startQuery(msg.Params)
		case msgClose:
			s.logger.Debug("client closed session")
			return
		default:
			s.logger.Warn("ignoring unknown message", "type", msg.Type)
		}
	}
}

// writeLoop drains out onto the connection and keeps it alive with pings
func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.cancel()
				// unblock the reader
				s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				s.cancel()
				s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			// the reader returns once the client acknowledges or the deadline passes
			_ = s.conn.SetReadDeadline(time.Now().Add(wsWriteWait))
			return
		}
	}
}

// send queues msg for the writer, giving up when ctx ends
func (s *wsSession) send(ctx context.Context, msg any) bool {
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// startQuery cancels any in-flight query and starts p
func (s *wsSession) startQuery(p engine.Params) {
	s.stopQuery()

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.queryCancel = cancel
	s.queryDone = done

	go func() {
		defer close(done)
		defer cancel()
		s.runQuery(ctx, p)
	}()
}

func (s *wsSession) stopQuery() {
	if s.queryCancel == nil {
		return
	}
	s.queryCancel()
	<-s.queryDone
	s.queryCancel = nil
	s.queryDone = nil
}

func (s *wsSession) runQuery(ctx context.Context, p engine.Params) {
	q, err := p.Query()
	if err != nil {
		s.sendError(ctx, err)
		return
	}

	levels := make(chan engine.Level, s.buffer)
	errc := make(chan error, 1)
	go func() {
		errc <- s.engine.Stream(ctx, q, levels)
	}()

	store := s.engine.Store()
	roads := 0
	for l := range levels {
		if ctx.Err() != nil {
			continue
		}
		roads += len(l.Roads)
		s.send(ctx, levelMessage{Type: msgLevel, Depth: l.Depth, Paths: render.LevelPaths(store, l)})
	}

	if err := <-errc; err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			s.logger.Debug("query cancelled")
			return
		}
		s.sendError(ctx, err)
		return
	}
	s.send(ctx, doneMessage{Type: msgDone, Roads: roads})
}

func (s *wsSession) sendError(ctx context.Context, err error) {
	e := core.AsError(err)
	if e.HTTPStatus() >= http.StatusInternalServerError {
		s.logger.Warn("query failed", "error", err)
	}
	s.send(ctx, errorMessage{Type: msgError, Code: e.Code, Message: e.Message, Guidance: e.Guidance})
}

// sessionSet tracks live sessions so shutdown can end them
type sessionSet struct {
	mu       sync.Mutex
	sessions map[string]*wsSession
	closed   bool
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[string]*wsSession)}
}

func (ss *sessionSet) add(s *wsSession) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return false
	}
	ss.sessions[s.id] = s
	return true
}

func (ss *sessionSet) remove(id string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
	return len(ss.sessions)
}

func (ss *sessionSet) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

// closeAll cancels every session and refuses new ones
func (ss *sessionSet) closeAll() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.closed = true
	for _, s := range ss.sessions {
		s.cancel()
	}
}
