package gateway

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrDeclined         = errors.New("payment declined")
)

// Gateway is the card processor boundary. Amounts are decimal currency units;
// implementations convert to minor units.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error)
	// Capture takes amount from an authorized hold. A nil amount captures the
	// full hold.
	Capture(ctx context.Context, intentRef string, amount *float64) (*CaptureResult, error)
	// Cancel voids an uncaptured hold.
	Cancel(ctx context.Context, intentRef string) error
	// Refund returns captured money. A nil amount refunds everything captured.
	Refund(ctx context.Context, intentRef string, amount *float64, metadata map[string]any) (*RefundResult, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	ReverseTransfer(ctx context.Context, transferRef string) error
	VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

type AuthorizeRequest struct {
	Amount         float64
	Currency       string
	ManualCapture  bool
	Source         string
	IdempotencyKey string
	Metadata       map[string]any
}

type Authorization struct {
	IntentRef    string
	ClientSecret string
	// Status is the processor's status at creation time; the webhook is
	// authoritative.
	Status string
}

type CaptureResult struct {
	IntentRef      string
	CapturedAmount float64
}

type RefundResult struct {
	RefundRef string
	Amount    float64
}

type TransferRequest struct {
	Amount      float64
	Currency    string
	Destination string
	Metadata    map[string]any
}

type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "payment.succeeded"
	WebhookPaymentFailed    WebhookEventType = "payment.failed"
	WebhookIgnored          WebhookEventType = "ignored"
)

type WebhookEvent struct {
	ID            string
	Type          WebhookEventType
	GatewayRef    string
	FailureReason string
}
