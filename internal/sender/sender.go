package sender

import "context"

// Payload is the content for one outbound message.
type Payload struct {
	Message  string `json:"message"`
	MediaRef string `json:"media_ref,omitempty"`
	LinkURL  string `json:"link_url,omitempty"`
	Buttons  string `json:"buttons,omitempty"` // raw JSON, passed through to the provider
}

// Sender delivers exactly one message per call. The dispatch core calls it at
// most once per item per run and treats any error as an ordinary per-item
// failure.
type Sender interface {
	SendOne(ctx context.Context, instanceID, recipient string, p Payload) (providerMessageID string, err error)
}
