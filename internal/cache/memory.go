// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Entries are immutable once
// stored; a Put replaces the whole entry.
type MemoryStore struct {
	entries sync.Map // Key → *Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Header(_ context.Context, key Key) (Header, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return Header{}, false, nil
	}
	return v.(*Entry).Header, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Entry, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return Entry{}, false, nil
	}
	e := *v.(*Entry)
	e.Payload = append([]byte(nil), e.Payload...)
	return e, true, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	entry.Payload = append([]byte(nil), entry.Payload...)
	s.entries.Store(entry.Key, &entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.entries.Delete(key)
	return nil
}

func (s *MemoryStore) DeleteIfUnchanged(_ context.Context, key Key, insertedAt time.Time) (bool, error) {
	v, ok := s.entries.Load(key)
	if !ok || !v.(*Entry).InsertedAt.Equal(insertedAt) {
		return false, nil
	}
	return s.entries.CompareAndDelete(key, v), nil
}

func (s *MemoryStore) DeleteTerm(_ context.Context, term string) (int, error) {
	n := 0
	s.entries.Range(func(k, _ any) bool {
		if k.(Key).Term == term {
			s.entries.Delete(k)
			n++
		}
		return true
	})
	return n, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.entries.Clear()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
