package server

import (
	"time"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // client commands are tiny
)

// -----------------------------------------------------------------------------
// Client binds one websocket connection to its session.
// -----------------------------------------------------------------------------

type Client struct {
	hub     *FastAPIServer
	conn    *websocket.Conn
	session *Session
}

// -----------------------------------------------------------------------------
// readPump - handles incoming commands from the client
// Acts as the watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}

		if err := c.session.HandleCommand(message); err != nil {
			c.hub.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// teardown stops the session before the socket is released, so no push is
// queued for a closed connection.
func (c *Client) teardown() {
	c.hub.unregisterSession(c.session)
	c.session.Stop()
	c.conn.Close()
	c.hub.Logger.Info("Client %s disconnected after %s", c.session.ID, time.Since(c.session.ConnectedAt).Round(time.Second))
}

// -----------------------------------------------------------------------------
// writePump - drains the session queue onto the socket
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.session.Send():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Session stopped
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
