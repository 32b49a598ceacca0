package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"vehicle-rental/pkg/utils"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"go.uber.org/zap"
)

type omiseGateway struct {
	client        *omise.Client
	webhookSecret string
	log           *zap.Logger
}

func NewOmiseClient(publicKey, secretKey string) (*omise.Client, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return c, nil
}

func NewOmiseGateway(client *omise.Client, webhookSecret string, log *zap.Logger) Gateway {
	return &omiseGateway{
		client:        client,
		webhookSecret: webhookSecret,
		log:           log.With(zap.String("gateway", "omise")),
	}
}

func (g *omiseGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.IdempotencyKey != "" {
		metadata["idempotency_key"] = req.IdempotencyKey
	}

	ch := &omise.Charge{}
	op := &operations.CreateCharge{
		Amount:      utils.ToMinorUnits(req.Amount),
		Currency:    req.Currency,
		Card:        req.Source,
		DontCapture: req.ManualCapture,
		Metadata:    metadata,
	}

	if err := g.client.Do(ch, op); err != nil {
		g.log.Error("Failed to create charge",
			zap.Error(err),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
		return nil, fmt.Errorf("create charge: %w", err)
	}

	if string(ch.Status) == "failed" {
		reason := ""
		if ch.FailureCode != nil {
			reason = *ch.FailureCode
		}
		return nil, fmt.Errorf("%w: %s", ErrDeclined, reason)
	}

	secret := ch.AuthorizeURI
	if secret == "" {
		secret = ch.ID
	}

	return &Authorization{
		IntentRef:    ch.ID,
		ClientSecret: secret,
		Status:       string(ch.Status),
	}, nil
}

// Capture on Omise always takes the full authorization; a partial capture is
// a full capture followed by a refund of the remainder.
func (g *omiseGateway) Capture(ctx context.Context, intentRef string, amount *float64) (*CaptureResult, error) {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.CaptureCharge{ChargeID: intentRef}); err != nil {
		g.log.Error("Failed to capture charge", zap.Error(err), zap.String("charge_id", intentRef))
		return nil, fmt.Errorf("capture charge %s: %w", intentRef, err)
	}

	captured := utils.FromMinorUnits(ch.Amount)
	if amount == nil || utils.ToMinorUnits(*amount) >= ch.Amount {
		return &CaptureResult{IntentRef: ch.ID, CapturedAmount: captured}, nil
	}

	remainder := ch.Amount - utils.ToMinorUnits(*amount)
	refund := &omise.Refund{}
	op := &operations.CreateRefund{
		ChargeID: intentRef,
		Amount:   remainder,
		Metadata: map[string]any{"reason": "partial_capture_remainder"},
	}
	if err := g.client.Do(refund, op); err != nil {
		// The capture went through; the remainder must be refunded by hand.
		g.log.Error("Failed to refund partial capture remainder",
			zap.Error(err),
			zap.String("charge_id", intentRef),
			zap.Int64("remainder", remainder),
		)
		return nil, fmt.Errorf("refund remainder of charge %s: %w", intentRef, err)
	}

	return &CaptureResult{IntentRef: ch.ID, CapturedAmount: *amount}, nil
}

func (g *omiseGateway) Cancel(ctx context.Context, intentRef string) error {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.ReverseCharge{ChargeID: intentRef}); err != nil {
		g.log.Error("Failed to reverse charge", zap.Error(err), zap.String("charge_id", intentRef))
		return fmt.Errorf("reverse charge %s: %w", intentRef, err)
	}
	return nil
}

func (g *omiseGateway) Refund(ctx context.Context, intentRef string, amount *float64, metadata map[string]any) (*RefundResult, error) {
	var minor int64
	if amount != nil {
		minor = utils.ToMinorUnits(*amount)
	} else {
		ch := &omise.Charge{}
		if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: intentRef}); err != nil {
			return nil, fmt.Errorf("retrieve charge %s: %w", intentRef, err)
		}
		minor = ch.Amount
	}

	refund := &omise.Refund{}
	op := &operations.CreateRefund{
		ChargeID: intentRef,
		Amount:   minor,
		Metadata: metadata,
	}
	if err := g.client.Do(refund, op); err != nil {
		g.log.Error("Failed to refund charge", zap.Error(err), zap.String("charge_id", intentRef))
		return nil, fmt.Errorf("refund charge %s: %w", intentRef, err)
	}

	return &RefundResult{RefundRef: refund.ID, Amount: utils.FromMinorUnits(refund.Amount)}, nil
}

func (g *omiseGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	transfer := &omise.Transfer{}
	op := &operations.CreateTransfer{
		Amount:    utils.ToMinorUnits(req.Amount),
		Recipient: req.Destination,
		Metadata:  req.Metadata,
	}
	if err := g.client.Do(transfer, op); err != nil {
		g.log.Error("Failed to create transfer",
			zap.Error(err),
			zap.String("recipient", req.Destination),
		)
		return "", fmt.Errorf("create transfer to %s: %w", req.Destination, err)
	}
	return transfer.ID, nil
}

func (g *omiseGateway) ReverseTransfer(ctx context.Context, transferRef string) error {
	del := &omise.Deletion{}
	if err := g.client.Do(del, &operations.DestroyTransfer{TransferID: transferRef}); err != nil {
		g.log.Error("Failed to destroy transfer", zap.Error(err), zap.String("transfer_id", transferRef))
		return fmt.Errorf("destroy transfer %s: %w", transferRef, err)
	}
	return nil
}

// VerifyWebhookSignature checks the HMAC, then re-fetches the event from
// Omise so the payload body is never trusted on its own.
func (g *omiseGateway) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if err := VerifySignature(payload, signature, g.webhookSecret); err != nil {
		return nil, err
	}

	inc, err := decodeIncoming(payload)
	if err != nil {
		return nil, err
	}

	ev := &omise.Event{}
	if err := g.client.Do(ev, &operations.RetrieveEvent{EventID: inc.ID}); err != nil {
		g.log.Error("Failed to retrieve webhook event", zap.Error(err), zap.String("event_id", inc.ID))
		return nil, fmt.Errorf("retrieve event %s: %w", inc.ID, err)
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge from event %s: %w", inc.ID, err)
	}

	out := &WebhookEvent{
		ID:         ev.ID,
		Type:       classifyCharge(ev.Key, string(ch.Status), ch.Authorized),
		GatewayRef: ch.ID,
	}
	if ch.FailureCode != nil {
		out.FailureReason = *ch.FailureCode
	}
	if ch.FailureMessage != nil {
		out.FailureReason += ": " + *ch.FailureMessage
	}
	return out, nil
}
