package session

import (
	"sort"
	"sync"
	"time"

	"github.com/canisterai/gptbot/internal/idempotency"
)

// Kind tells which backend mode produced a turn.
type Kind string

const (
	KindChat  Kind = "chat"
	KindImage Kind = "image"
)

// DefaultRetention is how long follow-on context survives before the
// next recording purges it.
const DefaultRetention = 30 * 24 * time.Hour

// Turn is one completed question/answer exchange. Immutable once
// recorded; only the purge rule removes it.
type Turn struct {
	Owner    string
	Date     time.Time
	Kind     Kind
	Question string
	Answer   string
	FollowOn bool
}

type entry struct {
	turn Turn
	seq  uint64
}

// Store holds every caller's turns, keyed by the turn's idempotency key.
// All access is serialized per store; RecordTurn's purge-then-insert is
// atomic with respect to concurrent recordings for the same owner.
type Store struct {
	mu        sync.Mutex
	entries   map[string]entry
	seq       uint64
	retention time.Duration
	now       func() time.Time
}

func NewStore(retention time.Duration, now func() time.Time) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:   make(map[string]entry),
		retention: retention,
		now:       now,
	}
}

// RecordTurn purges stale or superseded turns for the owner, then
// inserts the new turn. A non-follow-on recording resets the owner's
// context to just this turn.
func (s *Store) RecordTurn(owner string, kind Kind, at time.Time, question, answer string, followOn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(owner, followOn)
	s.seq++
	key := idempotency.TurnKey(string(kind), question, at)
	s.entries[key] = entry{
		turn: Turn{
			Owner:    owner,
			Date:     at,
			Kind:     kind,
			Question: question,
			Answer:   answer,
			FollowOn: followOn,
		},
		seq: s.seq,
	}
}

func (s *Store) purgeLocked(owner string, followOn bool) {
	cutoff := s.now().Add(-s.retention)
	for key, e := range s.entries {
		if e.turn.Owner != owner {
			continue
		}
		if !followOn || e.turn.Date.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// LatestTurn returns the chronologically first turn retained for the
// owner: the question that opened the active thread. Used by /retry.
func (s *Store) LatestTurn(owner string) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.ownedLocked(owner)
	if len(owned) == 0 {
		return Turn{}, false
	}
	return owned[0].turn, true
}

// FollowOnChain returns the owner's continued conversation in ascending
// time order: walking back from the newest turn, the chain ends at the
// first turn that did not continue its predecessor (inclusive).
func (s *Store) FollowOnChain(owner string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.ownedLocked(owner)
	chain := make([]Turn, 0, len(owned))
	for i := len(owned) - 1; i >= 0; i-- {
		chain = append(chain, owned[i].turn)
		if !owned[i].turn.FollowOn {
			break
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ownedLocked collects the owner's turns sorted by time, ties broken by
// insertion order.
func (s *Store) ownedLocked(owner string) []entry {
	owned := make([]entry, 0, 8)
	for _, e := range s.entries {
		if e.turn.Owner == owner {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].turn.Date.Equal(owned[j].turn.Date) {
			return owned[i].seq < owned[j].seq
		}
		return owned[i].turn.Date.Before(owned[j].turn.Date)
	})
	return owned
}
