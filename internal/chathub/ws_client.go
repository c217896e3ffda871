package chathub

import (
	"complaintdesk/backend/internal/models"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// PostFunc appends text to the thread on behalf of the connected viewer.
type PostFunc func(ctx context.Context, text string) error

// WebSocketClient bridges one viewer's WebSocket to a complaint thread.
// Initial is written first, then every event from Events; inbound frames
// are handed to Post.
type WebSocketClient struct {
	ComplaintID string
	UserID      string
	Conn        *websocket.Conn
	Initial     []models.Message
	Events      <-chan models.LiveEvent
	Post        PostFunc
	Logger      *slog.Logger
}

// Run pumps the connection until either side goes away. It blocks.
func (c *WebSocketClient) Run(ctx context.Context) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx, cancel)
	c.readPump(ctx)
}

func (c *WebSocketClient) readPump(ctx context.Context) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn("websocket read failed", "complaint_id", c.ComplaintID, "user_id", c.UserID, "error", err)
			}
			return
		}

		var frame models.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.Logger.Debug("ignoring malformed frame", "complaint_id", c.ComplaintID, "error", err)
			continue
		}
		if strings.TrimSpace(frame.Message) == "" {
			continue
		}
		if err := c.Post(ctx, frame.Message); err != nil {
			c.Logger.Warn("post from websocket failed", "complaint_id", c.ComplaintID, "user_id", c.UserID, "error", err)
		}
	}
}

func (c *WebSocketClient) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.Conn.Close()
	}()

	for _, m := range c.Initial {
		if err := c.write(models.MessageEvent(m)); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev, ok := <-c.Events:
			if !ok {
				// Feed dropped by the hub; the viewer reconnects and reloads.
				c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"))
				return
			}
			if err := c.write(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) write(ev models.LiveEvent) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteJSON(ev); err != nil {
		c.Logger.Debug("websocket write failed", "complaint_id", c.ComplaintID, "error", err)
		return err
	}
	return nil
}
