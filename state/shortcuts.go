package state

import (
	"sort"
	"sync"
)

// ShortcutStore maps shortcut names to prompt templates. Mutated only
// through admin commands.
type ShortcutStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewShortcutStore() *ShortcutStore {
	return &ShortcutStore{entries: make(map[string]string)}
}

func (s *ShortcutStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.entries[name]
	return template, ok
}

func (s *ShortcutStore) Set(name, template string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = template
}

func (s *ShortcutStore) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	return true
}

func (s *ShortcutStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a copy of the full mapping.
func (s *ShortcutStore) Entries() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries))
	for name, template := range s.entries {
		out[name] = template
	}
	return out
}
