package handler

import (
	"complaintdesk/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.Threads.Load(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage answers 204 when the text was blank and nothing was posted.
func (h *Handler) PostMessage(c *gin.Context) {
	var frame models.InboundFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		h.badRequest(c, err)
		return
	}
	msg, err := h.Threads.Post(c.Request.Context(), actor(c), c.Param("id"), frame.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
