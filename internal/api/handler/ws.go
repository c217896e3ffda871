package handler

import (
	"complaintdesk/backend/internal/chathub"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web client's origin once it is served from a fixed domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket opens a live view of a complaint thread. The first frames
// are the current thread, then live events follow without gaps or repeats.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	who := actor(c)
	complaintID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess, err := h.Threads.Watch(ctx, who, complaintID)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer sess.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "complaint_id", complaintID, "error", err)
		return
	}

	client := &chathub.WebSocketClient{
		ComplaintID: complaintID,
		UserID:      who.UserID,
		Conn:        conn,
		Initial:     sess.Initial,
		Events:      sess.Events(),
		Post: func(ctx context.Context, text string) error {
			_, err := h.Threads.Post(ctx, who, complaintID, text)
			return err
		},
		Logger: h.Logger,
	}
	client.Run(ctx)
}
