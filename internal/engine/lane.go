package engine

import (
	"sync"

	"github.com/iho/payengine/internal/domain"
)

// lane is the strictly ordered transaction queue for one client, plus
// that client's account. A lane is drained by at most one worker at a
// time (the scheduled flag), which is the only thing guarding the
// account: no two workers ever touch it concurrently, and per-client
// order matches arrival order.
type lane struct {
	clientID uint16
	account  *domain.Account

	mu        sync.Mutex
	queue     []domain.Transaction
	scheduled bool
}

func newLane(clientID uint16) *lane {
	return &lane{
		clientID: clientID,
		account:  domain.NewAccount(clientID),
	}
}

// push appends a transaction and reports whether the lane needs to be
// handed to a worker (it was idle).
func (l *lane) push(tx domain.Transaction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, tx)
	if l.scheduled {
		return false
	}
	l.scheduled = true
	return true
}

// take removes the whole backlog for processing. An empty backlog marks
// the lane idle again and the caller must stop draining it.
func (l *lane) take() []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		l.scheduled = false
		return nil
	}
	batch := l.queue
	l.queue = nil
	return batch
}
