package dto

import "github.com/telecare/billingcore/internal/domain/webhookevent"

// WebhookResponse is returned to the provider on every acknowledged delivery
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Handled   bool   `json:"handled"`
}

func NewWebhookResponse(result *webhookevent.DispatchResult) *WebhookResponse {
	return &WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		Duplicate: result.Duplicate,
		Handled:   result.Handled,
	}
}
