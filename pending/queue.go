// Package pending implements the per-order confirmation-gate state machine
// (spec.md §4.3): NEW -> WAITING_CONFIRMATIONS -> {READY | EXHAUSTED}.
//
// Grounded on the teacher's connection/reconnect timer discipline in
// feeds/polymarket_ws.go (single map of live state guarded by a mutex,
// goroutines scheduled via time.Timer/time.Ticker) generalized from "one
// feed connection" to "one timer per pending order, cancel-on-resubmit."
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/web3guy0/intentfiller/order"
)

// State is the pending entry's lifecycle state.
type State string

const (
	StateNew                  State = "NEW"
	StateWaitingConfirmations State = "WAITING_CONFIRMATIONS"
	StateReady                State = "READY"
	StateExhausted            State = "EXHAUSTED"
)

// Entry is the durable-in-memory state for one order awaiting confirmation
// (spec.md §3, PendingEntry).
type Entry struct {
	OrderID           order.ID
	RemainingRechecks int
	NextVisitAt       time.Time
	State             State
}

// ConfirmationSource reports confirmations for a source transaction and the
// order's required threshold. Implemented by the chain registry + policy.
type ConfirmationSource interface {
	ConfirmationsOf(ctx context.Context, sourceChain string, sourceTx [32]byte) (uint64, error)
	Required(sourceChain string, o order.Order) uint64
}

// Queue holds every order currently waiting on confirmations. Each entry is
// owned by at most one live timer at a time; resubmitting an order cancels
// the prior timer before scheduling a new one (spec.md §4.3 concurrency
// note).
type Queue struct {
	mu        sync.Mutex
	entries   map[order.ID]*Entry
	timers    map[order.ID]*time.Timer
	confirmed ConfirmationSource

	maxRechecks  int
	recheckDelay time.Duration

	onReady     func(o order.Order)
	onExhausted func(o order.Order)

	closed bool
}

// Config parameterizes the queue's retry policy.
type Config struct {
	MaxRechecks  int
	RecheckDelay time.Duration
}

// NewQueue builds a pending queue. onReady is invoked once an order is
// promoted; onExhausted once its rechecks run out (spec.md P4: no order
// survives more than MaxRechecks attempts).
func NewQueue(cfg Config, confirmed ConfirmationSource, onReady, onExhausted func(o order.Order)) *Queue {
	return &Queue{
		entries:      make(map[order.ID]*Entry),
		timers:       make(map[order.ID]*time.Timer),
		confirmed:    confirmed,
		maxRechecks:  cfg.MaxRechecks,
		recheckDelay: cfg.RecheckDelay,
		onReady:      onReady,
		onExhausted:  onExhausted,
	}
}

// Submit enqueues an order (NEW -> WAITING_CONFIRMATIONS, always). If the
// order is already pending, the prior timer is cancelled and a fresh check
// is scheduled immediately — the "clearTimeout on resubmit" behavior named
// in spec.md §9.
func (q *Queue) Submit(ctx context.Context, o order.Order) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if t, ok := q.timers[o.ID]; ok {
		t.Stop()
		delete(q.timers, o.ID)
	}
	entry := &Entry{
		OrderID:           o.ID,
		RemainingRechecks: q.maxRechecks,
		State:             StateWaitingConfirmations,
	}
	q.entries[o.ID] = entry
	q.mu.Unlock()

	q.check(ctx, o)
}

// check performs one confirmation check for o, transitioning state and
// scheduling the next check (or dropping the order) as needed.
func (q *Queue) check(ctx context.Context, o order.Order) {
	confirmations, err := q.confirmed.ConfirmationsOf(ctx, o.SourceChain, o.SourceTx)
	if err != nil {
		log.Warn().Err(err).Str("order", o.ID.String()).Msg("confirmations_of failed, will retry")
		q.reschedule(ctx, o)
		return
	}

	required := q.confirmed.Required(o.SourceChain, o)
	if confirmations >= required {
		q.mu.Lock()
		if entry, ok := q.entries[o.ID]; ok {
			entry.State = StateReady
		}
		delete(q.entries, o.ID)
		delete(q.timers, o.ID)
		q.mu.Unlock()

		log.Info().
			Str("order", o.ID.String()).
			Uint64("confirmations", confirmations).
			Uint64("required", required).
			Msg("order promoted to ready")
		q.onReady(o)
		return
	}

	q.reschedule(ctx, o)
}

func (q *Queue) reschedule(ctx context.Context, o order.Order) {
	q.mu.Lock()
	entry, ok := q.entries[o.ID]
	if !ok || q.closed {
		q.mu.Unlock()
		return
	}
	entry.RemainingRechecks--
	if entry.RemainingRechecks <= 0 {
		entry.State = StateExhausted
		delete(q.entries, o.ID)
		delete(q.timers, o.ID)
		q.mu.Unlock()

		log.Warn().Str("order", o.ID.String()).Msg("pending_exhausted: max rechecks reached")
		q.onExhausted(o)
		return
	}

	entry.NextVisitAt = time.Now().Add(q.recheckDelay)
	timer := time.AfterFunc(q.recheckDelay, func() { q.check(ctx, o) })
	q.timers[o.ID] = timer
	q.mu.Unlock()
}

// Entry returns a snapshot of an order's pending state, if any.
func (q *Queue) Entry(id order.ID) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Shutdown cancels every live timer, guaranteeing no leaked wakeups
// (spec.md §4.3, §5).
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
