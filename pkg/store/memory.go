package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wildfunctions/acme/pkg/fitness"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	entries     map[string]map[string]fitness.Entry // scope -> key -> entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.entries = make(map[string]map[string]fitness.Entry)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return Run{}, false, errNotInitialized
	}

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) SaveEntries(_ context.Context, scope, _ string, entries []fitness.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	m, ok := s.entries[scope]
	if !ok {
		m = make(map[string]fitness.Entry, len(entries))
		s.entries[scope] = m
	}
	for _, e := range entries {
		m[e.Key] = e
	}
	return nil
}

func (s *MemoryStore) LoadEntries(_ context.Context, scope string) ([]fitness.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, errNotInitialized
	}

	out := make([]fitness.Entry, 0, len(s.entries[scope]))
	for _, e := range s.entries[scope] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var errNotInitialized = errors.New("store is not initialized")
