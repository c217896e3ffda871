package handler

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/bulk"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/models"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListComplaints(c *gin.Context) {
	q := complaint.ListQuery{
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		AssignedTo: c.Query("assigned_to"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.badRequest(c, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}
	if q.AssignedTo == "me" {
		q.AssignedTo = actor(c).UserID
	}

	list, err := h.Complaints.List(c.Request.Context(), actor(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list})
}

func (h *Handler) CreateComplaint(c *gin.Context) {
	var in complaint.NewComplaint
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	created, err := h.Complaints.Submit(c.Request.Context(), actor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetComplaint(c *gin.Context) {
	got, err := h.Complaints.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	updated, err := h.Complaints.SetStatus(c.Request.Context(), actor(c), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type priorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func (h *Handler) SetPriority(c *gin.Context) {
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	updated, err := h.Complaints.SetPriority(c.Request.Context(), actor(c), c.Param("id"), req.Priority)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type assignRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
}

// Assign answers 200 even when the notice failed; the failure is reported
// in "warning".
func (h *Handler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	res, err := h.Assignments.AssignAndNotify(c.Request.Context(), actor(c), c.Param("id"), req.StaffID)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"complaint": res.Complaint, "assignee": res.Assignee, "notified": res.Notified}
	if res.Warning != nil {
		body["warning"] = res.Warning.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) ListAssignees(c *gin.Context) {
	if !actor(c).IsStaff() {
		h.fail(c, fmt.Errorf("only staff can list assignees: %w", apperr.ErrPermissionDenied))
		return
	}
	list, err := h.Assignments.ListEligibleAssignees(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignees": list})
}

func (h *Handler) BulkUpdate(c *gin.Context) {
	var req bulk.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	res, err := h.Bulk.Execute(c.Request.Context(), actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	list, err := h.Complaints.Attachments(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": list})
}

func (h *Handler) AddAttachment(c *gin.Context) {
	var meta complaint.AttachmentMeta
	if err := c.ShouldBindJSON(&meta); err != nil {
		h.badRequest(c, err)
		return
	}
	a, err := h.Complaints.AddAttachment(c.Request.Context(), actor(c), c.Param("id"), meta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListHistory(c *gin.Context) {
	list, err := h.Complaints.History(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.ComplaintHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}
