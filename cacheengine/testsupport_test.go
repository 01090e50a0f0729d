package cacheengine

import (
	"context"
	"errors"
	"path"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store with real TTL behavior, used by the engine
// tests in place of Valkey.
type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
}

type memEntry struct {
	value    string
	expireAt time.Time // zero = no expiry
}

func newMemStore() *memStore {
	return &memStore{data: map[string]memEntry{}}
}

func (s *memStore) live(key string) (memEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expireAt.IsZero() && time.Now().After(e.expireAt) {
		delete(s.data, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.value, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *memStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	e := memEntry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

func (s *memStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if e, ok := s.live(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	s.data[key] = memEntry{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func (s *memStore) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := s.live(k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) ScanPattern(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if _, ok := s.live(k); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *memStore) StrLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return int64(len(e.value)), nil
}

func (s *memStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok || e.value != expected {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

// failStore errors on every operation, simulating an unreachable KV store.
type failStore struct{}

var errStoreDown = errors.New("store down")

func (failStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failStore) Set(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (failStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (failStore) Incr(context.Context, string) (int64, error)          { return 0, errStoreDown }
func (failStore) Del(context.Context, ...string) (int64, error)        { return 0, errStoreDown }
func (failStore) ScanPattern(context.Context, string) ([]string, error) { return nil, errStoreDown }
func (failStore) StrLen(context.Context, string) (int64, error)        { return 0, errStoreDown }
func (failStore) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errStoreDown
}

// fakeSettings is an EnabledReader with a programmable value and call count.
type fakeSettings struct {
	mu      sync.Mutex
	enabled bool
	err     error
	calls   int
}

func (f *fakeSettings) CacheImagesEnabled(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.enabled, f.err
}

func (f *fakeSettings) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFetcher replays a scripted response and counts upstream calls.
type fakeFetcher struct {
	mu    sync.Mutex
	resp  *BinaryResponse
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string, map[string]string) (*BinaryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	return &resp, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okImage(body string) *BinaryResponse {
	return &BinaryResponse{Status: 200, OK: true, Body: []byte(body), ContentType: "image/jpeg"}
}

// newTestEngine builds an Engine over a memStore with short windows.
func newTestEngine(t interface {
	TempDir() string
	Fatalf(string, ...any)
}, store Store, settings EnabledReader, fetcher BinaryFetcher) *Engine {
	eng, err := New(Options{
		Store:      store,
		Settings:   settings,
		Fetcher:    fetcher,
		StorageDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return eng
}
