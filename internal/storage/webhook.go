package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/rvallee/meteo-collector/internal/collect"
)

// WebhookSink relays the raw collection document to a configured webhook.
// Deliveries are fire-and-forget from the caller's point of view; failures
// only flip this sink's flag.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookSink(client *http.Client, url, secret string) *WebhookSink {
	return &WebhookSink{url: url, secret: secret, client: client}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Save(ctx context.Context, doc *collect.CollectionDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", uuid.NewString())
	if s.secret != "" {
		req.Header.Set("X-Signature", "sha256="+signPayload(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
