package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub tracks live sessions. On shutdown it stops every session it knows.
func (s *FastAPIServer) runHub(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.hubDone)

	for {
		select {
		case session := <-s.register:
			s.sessions[session] = struct{}{}
			s.active.Add(1)
			s.Metrics.SessionOpened()
			s.Logger.Info("Client %s connected (%d active)", session.ID, len(s.sessions))

		case session := <-s.unregister:
			if _, ok := s.sessions[session]; ok {
				delete(s.sessions, session)
				s.active.Add(-1)
				s.Metrics.SessionClosed()
			}

		case <-ctx.Done():
			for session := range s.sessions {
				session.Stop()
				delete(s.sessions, session)
				s.active.Add(-1)
				s.Metrics.SessionClosed()
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) registerSession(session *Session) bool {
	select {
	case s.register <- session:
		return true
	case <-s.hubDone:
		return false
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) unregisterSession(session *Session) {
	select {
	case s.unregister <- session:
	case <-s.hubDone:
	}
}

// -----------------------------------------------------------------------------

// runRefresher keeps the cache warm between sessions' ticks. The cache gate
// still decides whether the upstream is actually called.
func (s *FastAPIServer) runRefresher(ctx context.Context) {
	defer s.wg.Done()

	interval := s.Config.Feed.MinAPIInterval.Duration()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cache.GetSnapshot(ctx)
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.Config.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	session := NewSession(uuid.NewString(), s.Cache, s.Analysis, s.Metrics, s.Logger, s.sessionOptions())
	session.onOverflow = func() { conn.Close() }

	if !s.registerSession(session) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	client := &Client{
		hub:     s,
		conn:    conn,
		session: session,
	}

	session.Start()
	go client.writePump()
	go client.readPump()
}
