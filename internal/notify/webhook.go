package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/tiqet/internal/crypto"
)

// WebhookSender posts the message as JSON, signed with the shared secret so
// the receiver can check X-Tiqet-Signature.
type WebhookSender struct {
	url    string
	auth   *crypto.WebhookAuth
	client *http.Client
}

// NewWebhookSender creates a WebhookSender.
func NewWebhookSender(url, secret string) *WebhookSender {
	return &WebhookSender{url: url, auth: &crypto.WebhookAuth{Secret: secret}, client: newHTTPClient()}
}

// Send posts msg.
func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}
	if err := postJSON(ctx, w.client, w.url, body, w.auth.Headers(body)); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (w *WebhookSender) Name() string { return "webhook" }
