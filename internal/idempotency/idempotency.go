package idempotency

import (
	"fmt"
	"time"
)

// TurnKey builds the dedup handle for one recorded turn. The same value
// keys the session store entry and travels to the completion backend so
// a retried request is recognizable there.
func TurnKey(kind, question string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%d", kind, question, at.UnixNano())
}
