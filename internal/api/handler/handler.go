// Package handler is the HTTP and WebSocket surface of the complaint desk.
package handler

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/assignment"
	"complaintdesk/backend/internal/bulk"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/thread"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler holds the services the routes call into.
type Handler struct {
	Auth        TokenResolver
	Complaints  *complaint.Service
	Threads     *thread.Service
	Assignments *assignment.Service
	Bulk        *bulk.Service
	Logger      *slog.Logger
}

func NewHandler(auth TokenResolver, complaints *complaint.Service, threads *thread.Service,
	assignments *assignment.Service, bulkSvc *bulk.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Auth:        auth,
		Complaints:  complaints,
		Threads:     threads,
		Assignments: assignments,
		Bulk:        bulkSvc,
		Logger:      logger,
	}
}

// Register mounts every route on r behind the auth middleware.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/", h.RequireIdentity())

	api.GET("/me", h.Me)
	api.GET("/assignees", h.ListAssignees)

	api.GET("/complaints", h.ListComplaints)
	api.POST("/complaints", h.CreateComplaint)
	api.POST("/complaints/bulk", h.BulkUpdate)
	api.GET("/complaints/:id", h.GetComplaint)
	api.PATCH("/complaints/:id/status", h.SetStatus)
	api.PATCH("/complaints/:id/priority", h.SetPriority)
	api.POST("/complaints/:id/assign", h.Assign)
	api.GET("/complaints/:id/messages", h.ListMessages)
	api.POST("/complaints/:id/messages", h.PostMessage)
	api.GET("/complaints/:id/attachments", h.ListAttachments)
	api.POST("/complaints/:id/attachments", h.AddAttachment)
	api.GET("/complaints/:id/history", h.ListHistory)
	api.GET("/complaints/:id/ws", h.ServeWebSocket)
}

// fail renders err with the status its kind maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
