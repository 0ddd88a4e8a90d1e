package main

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeRescorer struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeRescorer) RescoreAnomalies(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[userID]++
	if f.fail[userID] {
		return 0, errors.New("database unavailable")
	}
	return len(userID), nil
}

func TestRescoreAll(t *testing.T) {
	f := &fakeRescorer{calls: map[string]int{}, fail: map[string]bool{"bad": true}}
	users := []string{"a", "bb", "ccc", "bad"}

	got := rescoreAll(context.Background(), f, users, 50)

	if got.Workers != len(users) {
		t.Errorf("rescoreAll() workers = %v, want %v", got.Workers, len(users))
	}
	if got.Processed != 3 {
		t.Errorf("rescoreAll() processed = %v, want 3", got.Processed)
	}
	if got.Errors != 1 {
		t.Errorf("rescoreAll() errors = %v, want 1", got.Errors)
	}
	if got.Anomalies != 6 {
		t.Errorf("rescoreAll() anomalies = %v, want 6", got.Anomalies)
	}
	for _, u := range users {
		if f.calls[u] != 1 {
			t.Errorf("user %s rescored %d times, want 1", u, f.calls[u])
		}
	}
}

func TestRescoreAll_FewerWorkers(t *testing.T) {
	f := &fakeRescorer{calls: map[string]int{}, fail: map[string]bool{}}
	users := []string{"a", "b", "c", "d", "e"}

	got := rescoreAll(context.Background(), f, users, 2)
	if got.Workers != 2 {
		t.Errorf("rescoreAll() workers = %v, want 2", got.Workers)
	}
	if got.Processed != 5 {
		t.Errorf("rescoreAll() processed = %v, want 5", got.Processed)
	}
}
