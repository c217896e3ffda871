package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier posts notices to an email dispatch endpoint.
type HTTPNotifier struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewHTTPNotifier(url, apiKey string) *HTTPNotifier {
	return &HTTPNotifier{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type assignmentEmail struct {
	StaffEmail      string `json:"staffEmail"`
	StaffName       string `json:"staffName"`
	ComplaintNumber string `json:"complaintNumber"`
	ComplaintTitle  string `json:"complaintTitle"`
	ComplaintID     string `json:"complaintId"`
}

func (h *HTTPNotifier) NotifyAssignment(ctx context.Context, n AssignmentNotice) error {
	if n.RecipientAddress == "" {
		return ErrNoRecipient
	}
	body, err := json.Marshal(assignmentEmail{
		StaffEmail:      n.RecipientAddress,
		StaffName:       n.RecipientName,
		ComplaintNumber: n.ComplaintNumber,
		ComplaintTitle:  n.ComplaintTitle,
		ComplaintID:     n.ComplaintID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send assignment email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send assignment email: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
