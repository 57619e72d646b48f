// Package engine routes a transaction stream into per-client lanes and
// drives them to completion on a bounded worker pool. Different
// clients' lanes run concurrently; one client's transactions are always
// applied in arrival order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/ledger"
)

// Source produces the lazy, finite transaction sequence. Next returns
// io.EOF when the stream ends; any other error is fatal for the run.
type Source interface {
	Next() (domain.Transaction, error)
}

// Config tunes the engine.
type Config struct {
	// Workers is the worker pool size; 0 means one per CPU.
	Workers int
	// MaxPending bounds buffered-but-unprocessed transactions across
	// all lanes; the feeder blocks when the bound is hit, so extreme
	// client skew cannot grow memory without limit. 0 means 1024.
	MaxPending int
}

// Engine owns the worker pool configuration and the ledger it applies
// transactions with.
type Engine struct {
	ledger     *ledger.Ledger
	log        zerolog.Logger
	metrics    *metrics.Metrics
	workers    int
	maxPending int
}

// New creates an engine; m may be nil.
func New(l *ledger.Ledger, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxPending := cfg.MaxPending
	if maxPending <= 0 {
		maxPending = 1024
	}
	return &Engine{
		ledger:     l,
		log:        log,
		metrics:    m,
		workers:    workers,
		maxPending: maxPending,
	}
}

// Run consumes src to exhaustion and returns the final account
// snapshots in ascending client id order. Per-transaction rejections
// are logged and skipped; a storage failure cancels all lanes and
// aborts the run with no output.
func (e *Engine) Run(ctx context.Context, src Source) ([]domain.AccountSnapshot, error) {
	r := &run{
		engine:   e,
		lanes:    make(map[uint16]*lane),
		runnable: make(chan *lane, e.maxPending),
		sem:      make(chan struct{}, e.maxPending),
		drained:  make(chan struct{}),
		feeding:  true,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error { return r.worker(gctx) })
	}
	g.Go(func() error { return r.feed(gctx, src) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// run is the per-invocation state; Engine itself stays reusable.
type run struct {
	engine   *Engine
	runnable chan *lane
	sem      chan struct{}
	drained  chan struct{}

	mu      sync.Mutex
	lanes   map[uint16]*lane
	pending int
	feeding bool
	closed  bool
}

// feed routes transactions to lanes as the stream produces them; it is
// the single producer. The semaphore provides backpressure against the
// workers.
func (r *run) feed(ctx context.Context, src Source) error {
	defer r.finishFeeding()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.trackIn()

		r.laneFor(tx.ClientID).pushInto(r, tx)
	}
}

func (r *run) laneFor(clientID uint16) *lane {
	r.mu.Lock()
	defer r.mu.Unlock()
	ln, ok := r.lanes[clientID]
	if !ok {
		ln = newLane(clientID)
		r.lanes[clientID] = ln
	}
	return ln
}

// pushInto enqueues tx and wakes the lane if it was idle. A scheduled
// lane is in the runnable channel or being drained; either way the new
// transaction will be seen.
func (l *lane) pushInto(r *run, tx domain.Transaction) {
	if l.push(tx) {
		r.runnable <- l
	}
}

// worker drains lanes until the run is drained, the context is
// cancelled, or a fatal error occurs.
func (r *run) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.drained:
			return nil
		case ln := <-r.runnable:
			if err := r.drainLane(ctx, ln); err != nil {
				return err
			}
		}
	}
}

// drainLane applies the lane's backlog in arrival order. The lane is
// exclusively owned until take reports it idle.
func (r *run) drainLane(ctx context.Context, ln *lane) error {
	e := r.engine
	for {
		batch := ln.take()
		if batch == nil {
			return nil
		}

		for _, tx := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := e.ledger.Apply(ctx, ln.account, tx)
			switch {
			case err == nil:
				if e.metrics != nil {
					e.metrics.TransactionsProcessed.WithLabelValues(string(tx.Kind)).Inc()
				}
			case domain.IsRejection(err):
				e.log.Warn().
					Uint16("client", tx.ClientID).
					Uint32("tx", tx.ID).
					Str("kind", string(tx.Kind)).
					Err(err).
					Msg("transaction rejected")
				if e.metrics != nil {
					e.metrics.TransactionsRejected.WithLabelValues(domain.RejectionReason(err)).Inc()
				}
			default:
				return fmt.Errorf("apply transaction %d for client %d: %w", tx.ID, tx.ClientID, err)
			}

			r.trackOut()
		}
	}
}

func (r *run) trackIn() {
	r.mu.Lock()
	r.pending++
	depth := r.pending
	r.mu.Unlock()
	if m := r.engine.metrics; m != nil {
		m.LaneDepth.Set(float64(depth))
	}
}

func (r *run) trackOut() {
	<-r.sem
	r.mu.Lock()
	r.pending--
	depth := r.pending
	if r.pending == 0 && !r.feeding && !r.closed {
		r.closed = true
		close(r.drained)
	}
	r.mu.Unlock()
	if m := r.engine.metrics; m != nil {
		m.LaneDepth.Set(float64(depth))
	}
}

func (r *run) finishFeeding() {
	r.mu.Lock()
	r.feeding = false
	if r.pending == 0 && !r.closed {
		r.closed = true
		close(r.drained)
	}
	r.mu.Unlock()
}

// snapshot aggregates the final per-client account states. It runs
// only after every worker has joined, so every lane is fully drained.
func (r *run) snapshot() []domain.AccountSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]domain.AccountSnapshot, 0, len(r.lanes))
	for _, ln := range r.lanes {
		snaps = append(snaps, ln.account.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].ClientID < snaps[j].ClientID
	})
	return snaps
}
