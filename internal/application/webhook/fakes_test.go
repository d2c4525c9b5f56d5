package webhook

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/domain/webhook"
)

type fakeProfileRepo struct {
	mu         sync.Mutex
	byCustomer map[string]*identity.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{byCustomer: make(map[string]*identity.Profile)}
}

func (r *fakeProfileRepo) Create(ctx context.Context, p *identity.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.StripeCustomerID != "" {
		r.byCustomer[p.StripeCustomerID] = p
	}
	return nil
}

func (r *fakeProfileRepo) Update(ctx context.Context, p *identity.Profile) error {
	return r.Create(ctx, p)
}

func (r *fakeProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCustomer {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProfileRepo) FindByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCustomer {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProfileRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byCustomer[customerID]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProfileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type fakeSubscriptionRepo struct {
	mu       sync.Mutex
	byStripe map[string]*billing.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{byStripe: make(map[string]*billing.Subscription)}
}

func (r *fakeSubscriptionRepo) Upsert(ctx context.Context, sub *billing.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStripe[sub.StripeSubscriptionID] = sub
	return nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, sub *billing.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byStripe[sub.StripeSubscriptionID]; !ok {
		return shared.ErrNotFound
	}
	r.byStripe[sub.StripeSubscriptionID] = sub
	return nil
}

func (r *fakeSubscriptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byStripe {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSubscriptionRepo) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byStripe[subscriptionID]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeSubscriptionRepo) FindByStripeCustomerID(ctx context.Context, customerID string) ([]*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Subscription
	for _, s := range r.byStripe {
		if s.StripeCustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Subscription
	for _, s := range r.byStripe {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) FindEntitledByUser(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byStripe {
		if s.UserID == userID && s.IsEntitled() {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

type fakeEventRecordRepo struct {
	mu      sync.Mutex
	records map[string]*webhook.EventRecord
}

func newFakeEventRecordRepo() *fakeEventRecordRepo {
	return &fakeEventRecordRepo{records: make(map[string]*webhook.EventRecord)}
}

func (r *fakeEventRecordRepo) key(provider, eventID string) string {
	return provider + ":" + eventID
}

func (r *fakeEventRecordRepo) Create(ctx context.Context, record *webhook.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.key(record.Provider, record.EventID)] = record
	return nil
}

func (r *fakeEventRecordRepo) Update(ctx context.Context, record *webhook.EventRecord) error {
	return r.Create(ctx, record)
}

func (r *fakeEventRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*webhook.EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEventRecordRepo) FindByEventID(ctx context.Context, provider, eventID string) (*webhook.EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[r.key(provider, eventID)]; ok {
		return rec, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEventRecordRepo) all() []*webhook.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*webhook.EventRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

func (r *fakeEventRecordRepo) ListUnprocessed(ctx context.Context, limit int) ([]*webhook.EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.EventRecord
	for _, rec := range r.records {
		if !rec.Processed {
			out = append(out, rec)
		}
	}
	return out, nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *capturingBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *capturingBus) published() []shared.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}
