package domain

import "time"

// WebhookStatus represents the delivery state of an event notification.
type WebhookStatus string

const (
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// WebhookPayload is the body POSTed to subscribers. The signature travels in a header.
type WebhookPayload struct {
	Event  Event `json:"event"`
	SentAt int64 `json:"sent_at"`
}

// WebhookDelivery summarises the attempts made for one event and one subscriber.
type WebhookDelivery struct {
	EventID    string        `json:"event_id"`
	URL        string        `json:"url"`
	Attempts   int           `json:"attempts"`
	HTTPStatus int           `json:"http_status"`
	Status     WebhookStatus `json:"status"`
	LastError  string        `json:"last_error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
