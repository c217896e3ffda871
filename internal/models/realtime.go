package models

// Live event types.
const (
	EventMessage   = "message"
	EventComplaint = "complaint"
)

// LiveEvent is the envelope pushed to everyone watching a complaint.
type LiveEvent struct {
	Type        string     `json:"type"`
	ComplaintID string     `json:"complaint_id"`
	Message     *Message   `json:"message,omitempty"`
	Complaint   *Complaint `json:"complaint,omitempty"`
}

// MessageEvent wraps a newly appended thread message.
func MessageEvent(m Message) LiveEvent {
	return LiveEvent{Type: EventMessage, ComplaintID: m.ComplaintID, Message: &m}
}

// ComplaintEvent wraps a complaint whose status, priority or assignee changed.
func ComplaintEvent(c Complaint) LiveEvent {
	return LiveEvent{Type: EventComplaint, ComplaintID: c.ID, Complaint: &c}
}

// InboundFrame is what a WebSocket viewer sends to post into the thread.
type InboundFrame struct {
	Message string `json:"message"`
}
