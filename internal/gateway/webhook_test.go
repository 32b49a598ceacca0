package gateway

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evnt_test_1","key":"charge.complete"}`)
	secret := "whsec"
	good := Sign(payload, secret)

	tests := []struct {
		name      string
		signature string
		secret    string
		wantErr   bool
	}{
		{name: "valid", signature: good, secret: secret},
		{name: "valid with prefix", signature: "sha256=" + good, secret: secret},
		{name: "wrong secret", signature: good, secret: "other", wantErr: true},
		{name: "not hex", signature: "zz", secret: secret, wantErr: true},
		{name: "empty signature", signature: "", secret: secret, wantErr: true},
		{name: "no secret configured", signature: good, secret: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(payload, tc.signature, tc.secret)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Fatalf("expected ErrInvalidSignature, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	sig := Sign([]byte(`{"id":"evnt_1"}`), "whsec")
	if err := VerifySignature([]byte(`{"id":"evnt_2"}`), sig, "whsec"); err == nil {
		t.Fatalf("expected tampered payload to fail verification")
	}
}

func TestClassifyCharge(t *testing.T) {
	tests := []struct {
		key        string
		status     string
		authorized bool
		want       WebhookEventType
	}{
		{"charge.complete", "successful", true, WebhookPaymentSucceeded},
		{"charge.create", "pending", true, WebhookPaymentSucceeded},
		{"charge.create", "pending", false, WebhookIgnored},
		{"charge.complete", "failed", false, WebhookPaymentFailed},
		{"charge.complete", "expired", false, WebhookPaymentFailed},
		{"transfer.create", "successful", false, WebhookIgnored},
	}

	for _, tc := range tests {
		if got := classifyCharge(tc.key, tc.status, tc.authorized); got != tc.want {
			t.Fatalf("classifyCharge(%q, %q, %v) = %q, want %q", tc.key, tc.status, tc.authorized, got, tc.want)
		}
	}
}

func TestDecodeIncomingRequiresID(t *testing.T) {
	if _, err := decodeIncoming([]byte(`{"key":"charge.complete"}`)); err == nil {
		t.Fatalf("expected error for missing event id")
	}
	inc, err := decodeIncoming([]byte(`{"id":"evnt_1","key":"charge.complete","data":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inc.ID != "evnt_1" || inc.Key != "charge.complete" {
		t.Fatalf("unexpected decoded event: %+v", inc)
	}
}
