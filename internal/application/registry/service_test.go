package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/registry"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/cache"
	"github.com/saaskit/backend/internal/infrastructure/storage"
)

type fakeSubscriptionRepo struct {
	byUser map[uuid.UUID]*billing.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{byUser: make(map[uuid.UUID]*billing.Subscription)}
}

func (r *fakeSubscriptionRepo) Upsert(_ context.Context, sub *billing.Subscription) error {
	r.byUser[sub.UserID] = sub
	return nil
}

func (r *fakeSubscriptionRepo) Update(_ context.Context, sub *billing.Subscription) error {
	r.byUser[sub.UserID] = sub
	return nil
}

func (r *fakeSubscriptionRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Subscription, error) {
	for _, sub := range r.byUser {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSubscriptionRepo) FindByStripeSubscriptionID(_ context.Context, subscriptionID string) (*billing.Subscription, error) {
	for _, sub := range r.byUser {
		if sub.StripeSubscriptionID == subscriptionID {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSubscriptionRepo) FindByStripeCustomerID(_ context.Context, customerID string) ([]*billing.Subscription, error) {
	var out []*billing.Subscription
	for _, sub := range r.byUser {
		if sub.StripeCustomerID == customerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	if sub, ok := r.byUser[userID]; ok {
		return []*billing.Subscription{sub}, nil
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) FindEntitledByUser(_ context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	sub, ok := r.byUser[userID]
	if !ok || !sub.IsEntitled() {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

type fakeDownloadLogRepo struct {
	entries []*registry.DownloadLog
}

func (r *fakeDownloadLogRepo) Create(_ context.Context, log *registry.DownloadLog) error {
	r.entries = append(r.entries, log)
	return nil
}

func (r *fakeDownloadLogRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*registry.DownloadLog, error) {
	var out []*registry.DownloadLog
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDownloadLogRepo) actions() []registry.DownloadAction {
	out := make([]registry.DownloadAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	service *Service
	subs    *fakeSubscriptionRepo
	logs    *fakeDownloadLogRepo
	cache   cache.Provider
	userID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	subs := newFakeSubscriptionRepo()
	logs := &fakeDownloadLogRepo{}
	provider := cache.NewMemoryProvider()
	t.Cleanup(func() { _ = provider.Close() })

	svc := NewService(subs, logs, provider, storage.NewStubObjectStorage(), Config{
		BaseURL:  "https://registry.example.com",
		TokenTTL: time.Hour,
	}, zap.NewNop())

	return &fixture{
		service: svc,
		subs:    subs,
		logs:    logs,
		cache:   provider,
		userID:  uuid.New(),
	}
}

func (f *fixture) grantSubscription(status billing.SubscriptionStatus) {
	sub := &billing.Subscription{
		UserOwnedEntity:      shared.NewUserOwnedEntity(f.userID),
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
		Status:               status,
	}
	f.subs.byUser[f.userID] = sub
}

func TestIssueTokenRequiresEntitlement(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.IssueToken(context.Background(), f.userID, "saas-app", "latest", "127.0.0.1", "docker/24")
	assert.ErrorIs(t, err, shared.ErrSubscriptionRequired)
	assert.Equal(t, []registry.DownloadAction{registry.DownloadActionDenied}, f.logs.actions())
}

func TestIssueTokenRejectsCanceledSubscription(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusCanceled)

	_, err := f.service.IssueToken(context.Background(), f.userID, "saas-app", "latest", "127.0.0.1", "docker/24")
	assert.ErrorIs(t, err, shared.ErrSubscriptionRequired)
}

func TestIssueTokenCachesPayload(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusActive)
	ctx := context.Background()

	grant, err := f.service.IssueToken(ctx, f.userID, "saas-app", "", "127.0.0.1", "docker/24")
	require.NoError(t, err)

	assert.NotEmpty(t, grant.Token)
	assert.Equal(t, "saas-app:latest", grant.Artifact)
	assert.Equal(t, "https://registry.example.com/saas-app:latest", grant.DownloadURL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), grant.ExpiresAt, 5*time.Second)

	raw, err := f.cache.Get(ctx, tokenKeyPrefix+grant.Token)
	require.NoError(t, err)
	var payload registry.DownloadToken
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, f.userID, payload.UserID)
	assert.Equal(t, "saas-app:latest", payload.Artifact)

	assert.Equal(t, []registry.DownloadAction{registry.DownloadActionTokenIssued}, f.logs.actions())
}

func TestIssueTokenRequiresArtifactName(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusTrialing)

	_, err := f.service.IssueToken(context.Background(), f.userID, "", "latest", "127.0.0.1", "docker/24")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestVerifyTokenRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusTrialing)
	ctx := context.Background()

	grant, err := f.service.IssueToken(ctx, f.userID, "saas-app", "v2", "127.0.0.1", "docker/24")
	require.NoError(t, err)

	payload, err := f.service.VerifyToken(ctx, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "saas-app:v2", payload.Artifact)
	assert.Equal(t, f.userID, payload.UserID)
}

func TestVerifyTokenUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.VerifyToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVerifyTokenExpiredIsPurged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload := registry.DownloadToken{
		Token:     "stale",
		UserID:    f.userID,
		Artifact:  "saas-app:latest",
		IssuedAt:  time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(ctx, tokenKeyPrefix+"stale", string(data), time.Hour))

	_, err = f.service.VerifyToken(ctx, "stale")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.cache.Get(ctx, tokenKeyPrefix+"stale")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedeemReturnsPresignedURLAndLogsPull(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusActive)
	ctx := context.Background()

	grant, err := f.service.IssueToken(ctx, f.userID, "saas-app", "latest", "127.0.0.1", "docker/24")
	require.NoError(t, err)

	url, err := f.service.Redeem(ctx, grant.Token, "10.0.0.1", "docker/24")
	require.NoError(t, err)
	assert.Contains(t, url, "artifacts/saas-app:latest")

	actions := f.logs.actions()
	assert.Equal(t, []registry.DownloadAction{
		registry.DownloadActionTokenIssued,
		registry.DownloadActionPull,
	}, actions)
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Redeem(context.Background(), "bogus", "10.0.0.1", "docker/24")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, f.logs.actions())
}

func TestListArtifactsGatedOnSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifacts, err := f.service.ListArtifacts(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	f.grantSubscription(billing.SubscriptionStatusActive)
	artifacts, err = f.service.ListArtifacts(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "saas-app", artifacts[0].Name)
}

func TestHistoryScopedToUser(t *testing.T) {
	f := newFixture(t)
	f.grantSubscription(billing.SubscriptionStatusActive)
	ctx := context.Background()

	_, err := f.service.IssueToken(ctx, f.userID, "saas-app", "latest", "127.0.0.1", "docker/24")
	require.NoError(t, err)

	other := uuid.New()
	f.subs.byUser[other] = &billing.Subscription{
		UserOwnedEntity: shared.NewUserOwnedEntity(other),
		Status:          billing.SubscriptionStatusActive,
	}
	_, err = f.service.IssueToken(ctx, other, "saas-app", "latest", "127.0.0.1", "docker/24")
	require.NoError(t, err)

	history, err := f.service.History(ctx, f.userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, f.userID, history[0].UserID)
}
