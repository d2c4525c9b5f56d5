package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/cache"
)

// staticVerifier accepts any payload carrying the expected header value.
type staticVerifier struct {
	header string
	value  string
}

func (v *staticVerifier) Verify(payload []byte, header http.Header) (*VerifiedEvent, error) {
	got := header.Get(v.header)
	if got == "" {
		return nil, fmt.Errorf("%w: missing %s header", shared.ErrInvalidInput, v.header)
	}
	if got != v.value {
		return nil, fmt.Errorf("%w: bad signature", shared.ErrInvalidSignature)
	}
	return &VerifiedEvent{
		ID:       "evt_static",
		Type:     "test.event",
		Provider: "test",
		Payload:  payload,
	}, nil
}

// blankEventVerifier accepts everything and returns an event with no id.
type blankEventVerifier struct{}

func (v *blankEventVerifier) Verify(payload []byte, header http.Header) (*VerifiedEvent, error) {
	return &VerifiedEvent{Provider: "blank", Payload: payload}, nil
}

func newServiceFixture(t *testing.T) (*Service, *fakeEventRecordRepo) {
	t.Helper()
	provider := cache.NewMemoryProvider()
	t.Cleanup(func() { _ = provider.Close() })

	store := cache.NewIdempotencyStore(provider, "webhook:")
	records := newFakeEventRecordRepo()
	processor := NewProcessor(records, zap.NewNop())

	svc := NewService(store, processor, time.Hour, zap.NewNop())
	svc.RegisterVerifier("test", &staticVerifier{header: "X-Signature", value: "good"})
	return svc, records
}

func signedHeader(value string) http.Header {
	h := http.Header{}
	h.Set("X-Signature", value)
	return h
}

func TestService_HandleDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery is received", func(t *testing.T) {
		svc, _ := newServiceFixture(t)
		result, err := svc.HandleDelivery(ctx, "test", []byte(`{}`), signedHeader("good"))
		require.NoError(t, err)
		assert.Equal(t, StatusReceived, result.Status)
		require.NoError(t, svc.Shutdown(ctx))
	})

	t.Run("replay inside the window is duplicate", func(t *testing.T) {
		svc, _ := newServiceFixture(t)
		first, err := svc.HandleDelivery(ctx, "test", []byte(`{}`), signedHeader("good"))
		require.NoError(t, err)
		assert.Equal(t, StatusReceived, first.Status)

		second, err := svc.HandleDelivery(ctx, "test", []byte(`{}`), signedHeader("good"))
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, second.Status)
		require.NoError(t, svc.Shutdown(ctx))
	})

	t.Run("unknown provider", func(t *testing.T) {
		svc, _ := newServiceFixture(t)
		_, err := svc.HandleDelivery(ctx, "nope", []byte(`{}`), signedHeader("good"))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing signature header", func(t *testing.T) {
		svc, _ := newServiceFixture(t)
		_, err := svc.HandleDelivery(ctx, "test", []byte(`{}`), http.Header{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc, _ := newServiceFixture(t)
		_, err := svc.HandleDelivery(ctx, "test", []byte(`{}`), signedHeader("evil"))
		assert.ErrorIs(t, err, shared.ErrInvalidSignature)
	})

	t.Run("verified event without id is acknowledged and dropped", func(t *testing.T) {
		svc, records := newServiceFixture(t)
		svc.RegisterVerifier("blank", &blankEventVerifier{})

		result, err := svc.HandleDelivery(ctx, "blank", []byte(`{}`), http.Header{})
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, result.Status)

		require.NoError(t, svc.Shutdown(ctx))
		assert.Empty(t, records.all(), "nothing should reach the processor")
	})
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("success marks the log row processed", func(t *testing.T) {
		records := newFakeEventRecordRepo()
		p := NewProcessor(records, zap.NewNop())
		p.RegisterHandler("ok.event", func(ctx context.Context, event *VerifiedEvent) error {
			return nil
		})

		p.Process(ctx, &VerifiedEvent{ID: "evt_1", Type: "ok.event", Provider: "test", Payload: []byte(`{}`)})

		rec, err := records.FindByEventID(ctx, "test", "evt_1")
		require.NoError(t, err)
		assert.True(t, rec.Processed)
		assert.NotNil(t, rec.ProcessedAt)
	})

	t.Run("handler error lands on the log row", func(t *testing.T) {
		records := newFakeEventRecordRepo()
		p := NewProcessor(records, zap.NewNop())
		p.RegisterHandler("bad.event", func(ctx context.Context, event *VerifiedEvent) error {
			return fmt.Errorf("downstream unavailable")
		})

		p.Process(ctx, &VerifiedEvent{ID: "evt_2", Type: "bad.event", Provider: "test", Payload: []byte(`{}`)})

		rec, err := records.FindByEventID(ctx, "test", "evt_2")
		require.NoError(t, err)
		assert.False(t, rec.Processed)
		assert.Equal(t, "downstream unavailable", rec.Error)
	})

	t.Run("handler panic is contained and recorded", func(t *testing.T) {
		records := newFakeEventRecordRepo()
		p := NewProcessor(records, zap.NewNop())
		p.RegisterHandler("panic.event", func(ctx context.Context, event *VerifiedEvent) error {
			panic("boom")
		})

		p.Process(ctx, &VerifiedEvent{ID: "evt_3", Type: "panic.event", Provider: "test", Payload: []byte(`{}`)})

		rec, err := records.FindByEventID(ctx, "test", "evt_3")
		require.NoError(t, err)
		assert.False(t, rec.Processed)
		assert.Contains(t, rec.Error, "boom")
	})

	t.Run("unmatched type is logged and dropped", func(t *testing.T) {
		records := newFakeEventRecordRepo()
		p := NewProcessor(records, zap.NewNop())

		p.Process(ctx, &VerifiedEvent{ID: "evt_4", Type: "nobody.cares", Provider: "test", Payload: []byte(`{}`)})

		rec, err := records.FindByEventID(ctx, "test", "evt_4")
		require.NoError(t, err)
		assert.False(t, rec.Processed)
		assert.Empty(t, rec.Error)
	})

	t.Run("dispatch runs in the background and drains", func(t *testing.T) {
		records := newFakeEventRecordRepo()
		p := NewProcessor(records, zap.NewNop())
		done := make(chan struct{})
		p.RegisterHandler("slow.event", func(ctx context.Context, event *VerifiedEvent) error {
			<-done
			return nil
		})

		p.Dispatch(&VerifiedEvent{ID: "evt_5", Type: "slow.event", Provider: "test", Payload: []byte(`{}`)})
		close(done)

		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, p.Drain(drainCtx))

		rec, err := records.FindByEventID(ctx, "test", "evt_5")
		require.NoError(t, err)
		assert.True(t, rec.Processed)
	})
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("acme", "secret", "X-Acme-Signature")
	payload := []byte(`{"id":"evt_9","type":"ping","data":{"object":{}}}`)

	t.Run("valid signature", func(t *testing.T) {
		h := http.Header{}
		// HMAC-SHA256("secret", payload) in hex.
		h.Set("X-Acme-Signature", hmacHex(t, "secret", payload))

		event, err := v.Verify(payload, h)
		require.NoError(t, err)
		assert.Equal(t, "evt_9", event.ID)
		assert.Equal(t, "ping", event.Type)
		assert.Equal(t, "acme", event.Provider)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := v.Verify(payload, http.Header{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("wrong signature", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Acme-Signature", "deadbeef")
		_, err := v.Verify(payload, h)
		assert.ErrorIs(t, err, shared.ErrInvalidSignature)
	})
}

func hmacHex(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeVerifier_MissingHeader(t *testing.T) {
	v := NewStripeVerifier("whsec_test", 0)
	_, err := v.Verify([]byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestStripeVerifier_BadSignature(t *testing.T) {
	v := NewStripeVerifier("whsec_test", 0)
	h := http.Header{}
	h.Set("Stripe-Signature", "t=123,v1=deadbeef")
	_, err := v.Verify([]byte(`{}`), h)
	assert.ErrorIs(t, err, shared.ErrInvalidSignature)
}
