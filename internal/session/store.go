package session

import (
	"reflect"
	"time"

	lru "github.com/patrickmn/go-cache"
)

// Store keeps per-session values with a sliding expiration. Evicted values
// are handed to the eviction callback, which is where pending work gets torn
// down.
type Store[T any] struct {
	cache *lru.Cache
}

func NewStore[T any](ttl, cleanupInterval time.Duration, onEvict func(id string, v T)) *Store[T] {
	c := lru.New(ttl, cleanupInterval)
	if onEvict != nil {
		c.OnEvicted(func(k string, v interface{}) {
			if t, ok := v.(T); ok {
				onEvict(k, t)
			}
		})
	}
	return &Store[T]{cache: c}
}

// Get returns the value for id and extends its lifetime.
func (s *Store[T]) Get(id string) (T, bool) {
	var zero T
	v, ok := s.cache.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	s.cache.Set(id, t, lru.DefaultExpiration)
	return t, true
}

func (s *Store[T]) Set(id string, v T) {
	s.cache.Set(id, v, lru.DefaultExpiration)
}

// Delete removes id, running the eviction callback.
func (s *Store[T]) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store[T]) Len() int {
	return s.cache.ItemCount()
}

// Close evicts every session.
func (s *Store[T]) Close() {
	for k := range s.cache.Items() {
		s.cache.Delete(k)
	}
}

// Items returns the live values keyed by session id.
func (s *Store[T]) Items() map[string]T {
	items := s.cache.Items()
	out := make(map[string]T, len(items))
	for k, it := range items {
		if t, ok := it.Object.(T); ok {
			out[k] = t
		}
	}
	return out
}

// State snapshots the store. describe turns a value into what gets reported.
func (s *Store[T]) State(describe func(T) any) State {
	return GetState(s.cache.Items(), describe)
}

// Entry is a session with its expiration time.
type Entry struct {
	Value      interface{} `json:"value"`
	Expiration int64       `json:"expiration"` // Unix timestamp in nanoseconds, 0 means no expiration
}

type State struct {
	Sessions map[string]Entry   `json:"sessions"`
	Memory   map[string]uintptr `json:"memory"`
}

func GetState[T any](items map[string]lru.Item, describe func(T) any) State {
	state := State{
		Memory:   make(map[string]uintptr, 1),
		Sessions: make(map[string]Entry, len(items)),
	}

	state.Memory["sessions"] = reflect.TypeOf(state.Sessions).Size()
	for k, v := range items {
		t, ok := v.Object.(T)
		if !ok {
			continue
		}
		state.Sessions[k] = Entry{
			Value:      describe(t),
			Expiration: v.Expiration,
		}
		state.Memory["sessions"] += reflect.TypeOf(k).Size()
		state.Memory["sessions"] += reflect.TypeOf(v).Size()
		state.Memory["sessions"] += uintptr(len(k))
	}

	return state
}
