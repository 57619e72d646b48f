// Package store implements the tiered transaction store: a bounded
// in-memory hot tier in front of a durable cold backend. Recently
// touched entries stay hot; least-recently-accessed entries are
// serialized and moved to the cold tier, transparently promoted back on
// lookup. Each transaction id lives in exactly one tier at a time.
package store

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/store/coldstore"
)

const defaultShards = 16

// Entry wraps a stored transaction with its dispute state.
type Entry struct {
	Tx    domain.Transaction  `json:"tx"`
	State domain.DisputeState `json:"state"`
}

// Tiered coordinates the hot and cold tiers. Access is sharded by
// transaction id so mutations on one id are linearizable under its
// shard lock without serializing the whole store.
type Tiered struct {
	cold    coldstore.Backend
	shards  []shard
	mask    uint32
	metrics *metrics.Metrics
}

type shard struct {
	mu       sync.Mutex
	capacity int
	items    map[uint32]*list.Element
	lru      *list.List // front = most recently accessed
}

type node struct {
	id    uint32
	entry Entry
}

// New creates a tiered store with the given total hot capacity. The
// capacity is split evenly across shards; m may be nil.
func New(cold coldstore.Backend, hotCapacity int, m *metrics.Metrics) *Tiered {
	nShards := defaultShards
	if hotCapacity < nShards {
		nShards = 1
	}
	perShard := hotCapacity / nShards
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]shard, nShards)
	for i := range shards {
		shards[i] = shard{
			capacity: perShard,
			items:    make(map[uint32]*list.Element),
			lru:      list.New(),
		}
	}

	return &Tiered{
		cold:    cold,
		shards:  shards,
		mask:    uint32(nShards - 1),
		metrics: m,
	}
}

func (s *Tiered) shardFor(id uint32) *shard {
	return &s.shards[id&s.mask]
}

// Insert records a transaction in the hot tier with dispute state
// Normal, evicting least-recently-accessed entries to the cold tier if
// the shard is over budget.
func (s *Tiered) Insert(ctx context.Context, tx domain.Transaction) error {
	sh := s.shardFor(tx.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	added := sh.put(tx.ID, Entry{Tx: tx, State: domain.DisputeStateNormal})
	if added && s.metrics != nil {
		s.metrics.HotEntries.Inc()
	}
	return s.evictLocked(ctx, sh)
}

// Get returns the entry for id from whichever tier holds it. A cold hit
// promotes the entry back into the hot tier (the cold copy is deleted;
// ownership moves, never duplicates). Returns
// domain.ErrTransactionNotFound when neither tier has the id.
func (s *Tiered) Get(ctx context.Context, id uint32) (Entry, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[id]; ok {
		sh.lru.MoveToFront(el)
		return el.Value.(*node).entry, nil
	}

	entry, err := s.fetchCold(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.cold.Delete(ctx, id); err != nil {
		return Entry{}, fmt.Errorf("cold tier delete %d: %w", id, err)
	}

	sh.put(id, entry)
	if s.metrics != nil {
		s.metrics.Promotions.Inc()
		s.metrics.HotEntries.Inc()
		s.metrics.ColdOperations.WithLabelValues("delete").Inc()
	}
	if err := s.evictLocked(ctx, sh); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Mutate atomically applies fn to the entry for id in place, in
// whichever tier holds it. The shard lock is held for the whole
// read-validate-write step, so no eviction or concurrent mutation can
// interleave between the lookup and the state change. If fn returns an
// error the entry is left untouched.
func (s *Tiered) Mutate(ctx context.Context, id uint32, fn func(*Entry) error) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[id]; ok {
		n := el.Value.(*node)
		updated := n.entry
		if err := fn(&updated); err != nil {
			return err
		}
		n.entry = updated
		sh.lru.MoveToFront(el)
		return nil
	}

	// Cold tier: read-modify-write round trip.
	entry, err := s.fetchCold(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(&entry); err != nil {
		return err
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.cold.Put(ctx, id, raw); err != nil {
		if s.metrics != nil {
			s.metrics.ColdErrors.WithLabelValues("put").Inc()
		}
		return fmt.Errorf("cold tier put %d: %w", id, err)
	}
	if s.metrics != nil {
		s.metrics.ColdOperations.WithLabelValues("put").Inc()
	}
	return nil
}

// UpdateState transitions the dispute state of the entry for id.
func (s *Tiered) UpdateState(ctx context.Context, id uint32, state domain.DisputeState) error {
	return s.Mutate(ctx, id, func(e *Entry) error {
		e.State = state
		return nil
	})
}

// HotLen reports the number of entries currently in the hot tier.
func (s *Tiered) HotLen() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.items)
		sh.mu.Unlock()
	}
	return total
}

// Close releases the cold backend.
func (s *Tiered) Close() error {
	return s.cold.Close()
}

func (s *Tiered) fetchCold(ctx context.Context, id uint32) (Entry, error) {
	raw, err := s.cold.Get(ctx, id)
	if errors.Is(err, coldstore.ErrNotFound) {
		return Entry{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ColdErrors.WithLabelValues("get").Inc()
		}
		return Entry{}, fmt.Errorf("cold tier get %d: %w", id, err)
	}
	if s.metrics != nil {
		s.metrics.ColdOperations.WithLabelValues("get").Inc()
	}
	return decodeEntry(raw)
}

// evictLocked moves LRU tail entries to the cold tier until the shard
// is back under budget. Caller holds sh.mu. An entry is removed from
// the hot tier only after the cold write succeeded.
func (s *Tiered) evictLocked(ctx context.Context, sh *shard) error {
	for len(sh.items) > sh.capacity {
		el := sh.lru.Back()
		if el == nil {
			return nil
		}
		n := el.Value.(*node)

		raw, err := encodeEntry(n.entry)
		if err != nil {
			return err
		}
		if err := s.cold.Put(ctx, n.id, raw); err != nil {
			if s.metrics != nil {
				s.metrics.ColdErrors.WithLabelValues("put").Inc()
			}
			return fmt.Errorf("cold tier put %d: %w", n.id, err)
		}

		sh.lru.Remove(el)
		delete(sh.items, n.id)
		if s.metrics != nil {
			s.metrics.Evictions.Inc()
			s.metrics.HotEntries.Dec()
			s.metrics.ColdOperations.WithLabelValues("put").Inc()
		}
	}
	return nil
}

// put inserts or replaces an entry at the front of the shard LRU and
// reports whether a new entry was added. Caller holds sh.mu.
func (sh *shard) put(id uint32, entry Entry) bool {
	if el, ok := sh.items[id]; ok {
		el.Value.(*node).entry = entry
		sh.lru.MoveToFront(el)
		return false
	}
	sh.items[id] = sh.lru.PushFront(&node{id: id, entry: entry})
	return true
}
