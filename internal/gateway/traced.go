package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracedGateway struct {
	next   Gateway
	tracer trace.Tracer
}

// WithTracing wraps every gateway call in a client span.
func WithTracing(next Gateway) Gateway {
	return &tracedGateway{next: next, tracer: otel.Tracer("vehicle-rental/gateway")}
}

func (t *tracedGateway) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	ctx, span := t.start(ctx, "authorize",
		attribute.Float64("amount", req.Amount),
		attribute.String("currency", req.Currency),
		attribute.Bool("manual_capture", req.ManualCapture),
		attribute.String("idempotency_key", req.IdempotencyKey),
	)
	res, err := t.next.Authorize(ctx, req)
	end(span, err)
	return res, err
}

func (t *tracedGateway) Capture(ctx context.Context, intentRef string, amount *float64) (*CaptureResult, error) {
	ctx, span := t.start(ctx, "capture", attribute.String("intent_ref", intentRef))
	res, err := t.next.Capture(ctx, intentRef, amount)
	end(span, err)
	return res, err
}

func (t *tracedGateway) Cancel(ctx context.Context, intentRef string) error {
	ctx, span := t.start(ctx, "cancel", attribute.String("intent_ref", intentRef))
	err := t.next.Cancel(ctx, intentRef)
	end(span, err)
	return err
}

func (t *tracedGateway) Refund(ctx context.Context, intentRef string, amount *float64, metadata map[string]any) (*RefundResult, error) {
	ctx, span := t.start(ctx, "refund", attribute.String("intent_ref", intentRef))
	res, err := t.next.Refund(ctx, intentRef, amount, metadata)
	end(span, err)
	return res, err
}

func (t *tracedGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	ctx, span := t.start(ctx, "transfer",
		attribute.Float64("amount", req.Amount),
		attribute.String("currency", req.Currency),
	)
	ref, err := t.next.Transfer(ctx, req)
	end(span, err)
	return ref, err
}

func (t *tracedGateway) ReverseTransfer(ctx context.Context, transferRef string) error {
	ctx, span := t.start(ctx, "reverse_transfer", attribute.String("transfer_ref", transferRef))
	err := t.next.ReverseTransfer(ctx, transferRef)
	end(span, err)
	return err
}

func (t *tracedGateway) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	ctx, span := t.start(ctx, "verify_webhook")
	ev, err := t.next.VerifyWebhookSignature(ctx, payload, signature)
	end(span, err)
	return ev, err
}
