package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"calagent/internal/models"
)

// In-memory fakes for the repository interfaces. Handler tests mock the
// service layer; these exercise real service logic against fake storage.

type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[string]models.Subscription // by id
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[string]models.Subscription{}}
}

func (f *fakeSubRepo) Upsert(ctx context.Context, s models.Subscription) (models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.subs {
		if existing.UserID == s.UserID && existing.SubscriptionKey == s.SubscriptionKey {
			// metadata refresh; identity and feed token survive
			existing.DisplayName = s.DisplayName
			existing.Domain = s.Domain
			existing.Timezone = s.Timezone
			existing.UpdatedAt = s.UpdatedAt
			f.subs[existing.ID] = existing
			return existing, nil
		}
	}
	f.subs[s.ID] = s
	return s, nil
}

func (f *fakeSubRepo) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeSubRepo) GetByKey(ctx context.Context, userID int, key string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.UserID == userID && s.SubscriptionKey == key {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) GetByFeedToken(ctx context.Context, token string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.FeedToken == token {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) ListByUser(ctx context.Context, userID int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) Delete(ctx context.Context, userID int, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.subs, id)
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (f *fakeEventRepo) UpsertBatch(ctx context.Context, events []models.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	for _, ev := range events {
		replaced := false
		for i, old := range f.events {
			if old.SubscriptionID == ev.SubscriptionID && old.ExternalID == ev.ExternalID {
				f.events[i] = ev
				replaced = true
				break
			}
		}
		if !replaced {
			f.events = append(f.events, ev)
		}
	}
	return len(events), nil
}

func (f *fakeEventRepo) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Event
	for _, ev := range f.events {
		if ev.SubscriptionID == subscriptionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListByUser(ctx context.Context, userID int) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeEventRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeSyncRunRepo struct {
	mu        sync.Mutex
	created   []models.SyncRun
	completed []models.SyncRun
}

func (f *fakeSyncRunRepo) Create(ctx context.Context, r models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	return nil
}

func (f *fakeSyncRunRepo) Complete(ctx context.Context, r models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, r)
	return nil
}

func (f *fakeSyncRunRepo) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SyncRun
	for _, r := range f.completed {
		if r.SubscriptionID == subscriptionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSyncRunRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeProfileRepo struct {
	mu     sync.Mutex
	tokens map[int]string
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{tokens: map[int]string{}}
}

func (f *fakeProfileRepo) GetMasterToken(ctx context.Context, userID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

func (f *fakeProfileRepo) CreateMasterToken(ctx context.Context, userID int, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[userID] = token
	return nil
}

func (f *fakeProfileRepo) GetUserIDByMasterToken(ctx context.Context, token string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid, t := range f.tokens {
		if t == token {
			return uid, nil
		}
	}
	return 0, nil
}

type fakeKeyRepo struct {
	mu   sync.Mutex
	keys map[string]models.APIKey // by id
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: map[string]models.APIKey{}}
}

func (f *fakeKeyRepo) Insert(ctx context.Context, k models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[k.ID] = k
	return nil
}

func (f *fakeKeyRepo) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k.KeyHash == keyHash {
			return &k, nil
		}
	}
	return nil, nil
}

func (f *fakeKeyRepo) ListByUser(ctx context.Context, userID int) ([]models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.APIKey
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyRepo) Revoke(ctx context.Context, userID int, keyID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.UserID != userID || k.RevokedAt != nil {
		return sql.ErrNoRows
	}
	k.RevokedAt = &at
	f.keys[keyID] = k
	return nil
}

func (f *fakeKeyRepo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.keys[keyID]; ok {
		k.LastUsedAt = &at
		f.keys[keyID] = k
	}
	return nil
}
