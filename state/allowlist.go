package state

import "sync"

// AllowList is the set of callers permitted to use the bot. An empty
// list means the bot is open to everyone.
type AllowList struct {
	mu    sync.RWMutex
	names []string
}

func NewAllowList(names ...string) *AllowList {
	l := &AllowList{}
	for _, name := range names {
		l.Add(name)
	}
	return l
}

func (l *AllowList) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names) == 0
}

func (l *AllowList) Contains(identity string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, name := range l.names {
		if name == identity {
			return true
		}
	}
	return false
}

// Add appends the identity, ignoring duplicates. Reports whether the
// list changed.
func (l *AllowList) Add(identity string) bool {
	if identity == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range l.names {
		if name == identity {
			return false
		}
	}
	l.names = append(l.names, identity)
	return true
}

func (l *AllowList) Remove(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, name := range l.names {
		if name == identity {
			l.names = append(l.names[:i], l.names[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns a copy in insertion order.
func (l *AllowList) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}
