// Package webhook implements the webhook processing pipeline: signature
// verification, idempotent acceptance, durable logging and background
// dispatch to typed handlers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v81/webhook"

	"github.com/saaskit/backend/internal/domain/shared"
)

// VerifiedEvent is a webhook delivery that passed signature verification.
type VerifiedEvent struct {
	ID         string
	Type       string
	Provider   string
	Payload    []byte          // full raw event payload
	DataObject json.RawMessage // the provider's data.object, when present
}

// Verifier authenticates an incoming webhook delivery.
// Implementations return shared.ErrInvalidInput for malformed requests
// (missing header, unparseable payload) and shared.ErrInvalidSignature
// when the signature check itself fails.
type Verifier interface {
	Verify(payload []byte, header http.Header) (*VerifiedEvent, error)
}

// StripeVerifier verifies deliveries signed with Stripe's signing scheme.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier creates a verifier for the given endpoint secret.
// A zero tolerance falls back to Stripe's default.
func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = stripewebhook.DefaultTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance}
}

// Verify checks the Stripe-Signature header against the payload.
func (v *StripeVerifier) Verify(payload []byte, header http.Header) (*VerifiedEvent, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", shared.ErrInvalidInput)
	}

	event, err := stripewebhook.ConstructEventWithTolerance(payload, sig, v.secret, v.tolerance)
	if err != nil {
		if isStripeSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: invalid payload: %v", shared.ErrInvalidInput, err)
	}

	return &VerifiedEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		Provider:   "stripe",
		Payload:    payload,
		DataObject: event.Data.Raw,
	}, nil
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, stripewebhook.ErrInvalidHeader) ||
		errors.Is(err, stripewebhook.ErrNotSigned) ||
		errors.Is(err, stripewebhook.ErrNoValidSignature) ||
		errors.Is(err, stripewebhook.ErrTooOld)
}

// HMACVerifier verifies deliveries carrying a hex-encoded HMAC-SHA256 of
// the raw payload. Used for providers without an SDK-level scheme.
type HMACVerifier struct {
	provider   string
	secret     []byte
	headerName string
}

// NewHMACVerifier creates an HMAC-SHA256 verifier reading the signature
// from the given header.
func NewHMACVerifier(provider, secret, headerName string) *HMACVerifier {
	return &HMACVerifier{
		provider:   provider,
		secret:     []byte(secret),
		headerName: headerName,
	}
}

// Verify recomputes the payload MAC and compares it in constant time.
func (v *HMACVerifier) Verify(payload []byte, header http.Header) (*VerifiedEvent, error) {
	sig := header.Get(v.headerName)
	if sig == "" {
		return nil, fmt.Errorf("%w: missing %s header", shared.ErrInvalidInput, v.headerName)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, fmt.Errorf("%w: HMAC mismatch", shared.ErrInvalidSignature)
	}

	var envelope struct {
		ID   string          `json:"id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", shared.ErrInvalidInput, err)
	}

	return &VerifiedEvent{
		ID:         envelope.ID,
		Type:       envelope.Type,
		Provider:   v.provider,
		Payload:    payload,
		DataObject: envelope.Data,
	}, nil
}
