package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: make(map[string]string)}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	value, exists := f.values[key]
	if !exists {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "pfw:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	other, err := NewRedisLock(store, "pfw:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	ok, err = other.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while lock held")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	ok, err = other.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestRedisLock_ReleaseOnlyWhenOwner(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "pfw:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	// Never acquired: release is a no-op even if someone else holds the key.
	store.values["pfw:lock:cron"] = "someone-else"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if store.values["pfw:lock:cron"] != "someone-else" {
		t.Fatal("expected foreign lock to survive release")
	}
}

func TestNewRedisLock_Validation(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(newFakeRedisStore(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
}
