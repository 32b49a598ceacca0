package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// incomingEvent is the envelope posted by the processor.
type incomingEvent struct {
	ID   string          `json:"id"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature in constant time. An optional
// "sha256=" prefix is accepted.
func VerifySignature(payload []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return ErrInvalidSignature
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(Sign(payload, secret))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}

func decodeIncoming(payload []byte) (*incomingEvent, error) {
	var inc incomingEvent
	if err := json.Unmarshal(payload, &inc); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if inc.ID == "" {
		return nil, fmt.Errorf("webhook payload has no event id")
	}
	return &inc, nil
}

// classifyCharge maps a charge event to the two outcomes the core consumes.
// Omise reports a manual-capture authorization as pending+authorized.
func classifyCharge(key, status string, authorized bool) WebhookEventType {
	if key != "charge.complete" && key != "charge.create" && key != "charge.capture" {
		return WebhookIgnored
	}
	switch status {
	case "successful":
		return WebhookPaymentSucceeded
	case "pending":
		if authorized {
			return WebhookPaymentSucceeded
		}
		return WebhookIgnored
	case "failed", "expired":
		return WebhookPaymentFailed
	}
	return WebhookIgnored
}
