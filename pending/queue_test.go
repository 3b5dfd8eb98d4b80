package pending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/intentfiller/order"
)

type fakeConfirmations struct {
	mu       sync.Mutex
	counts   map[order.ID]uint64
	required uint64
}

func (f *fakeConfirmations) ConfirmationsOf(ctx context.Context, sourceChain string, sourceTx [32]byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var id order.ID
	copy(id[:], sourceTx[:])
	return f.counts[id], nil
}

func (f *fakeConfirmations) Required(sourceChain string, o order.Order) uint64 {
	return f.required
}

func (f *fakeConfirmations) set(sourceTx [32]byte, n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var id order.ID
	copy(id[:], sourceTx[:])
	f.counts[id] = n
}

func testOrder(sourceTx byte) order.Order {
	o, _ := order.New(
		[32]byte{1}, "EVM-97", "EVM-10200", 1000, 1, order.AmountFromInt(1),
		[]order.TokenAmount{{TokenID: "native", Amount: order.AmountFromInt(10)}},
		[]order.Output{{TokenID: "native", Amount: order.AmountFromInt(10)}},
		nil, [32]byte{sourceTx},
	)
	return o
}

func TestQueue_PromotesWhenConfirmed(t *testing.T) {
	fc := &fakeConfirmations{counts: map[order.ID]uint64{}, required: 2}
	o := testOrder(1)
	fc.set(o.SourceTx, 5)

	readyCh := make(chan order.Order, 1)
	q := NewQueue(Config{MaxRechecks: 3, RecheckDelay: 10 * time.Millisecond}, fc,
		func(o order.Order) { readyCh <- o },
		func(o order.Order) {},
	)

	q.Submit(context.Background(), o)

	select {
	case got := <-readyCh:
		assert.Equal(t, o.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("order never promoted to ready")
	}
}

// P4 — bounded rechecks: an order that never confirms is exhausted after
// MaxRechecks attempts, never retried indefinitely.
func TestQueue_ExhaustsAfterMaxRechecks(t *testing.T) {
	fc := &fakeConfirmations{counts: map[order.ID]uint64{}, required: 100}
	o := testOrder(2)

	exhaustedCh := make(chan order.Order, 1)
	q := NewQueue(Config{MaxRechecks: 2, RecheckDelay: 5 * time.Millisecond}, fc,
		func(o order.Order) {},
		func(o order.Order) { exhaustedCh <- o },
	)

	q.Submit(context.Background(), o)

	select {
	case got := <-exhaustedCh:
		assert.Equal(t, o.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("order never exhausted")
	}

	_, ok := q.Entry(o.ID)
	assert.False(t, ok)
}

func TestQueue_ResubmitCancelsPriorTimer(t *testing.T) {
	fc := &fakeConfirmations{counts: map[order.ID]uint64{}, required: 1}
	o := testOrder(3)

	q := NewQueue(Config{MaxRechecks: 5, RecheckDelay: time.Hour}, fc,
		func(o order.Order) {},
		func(o order.Order) {},
	)

	// Submit performs one synchronous check before returning, so the first
	// recheck is already consumed by the time Submit returns.
	q.Submit(context.Background(), o)
	entry, ok := q.Entry(o.ID)
	require.True(t, ok)
	assert.Equal(t, 4, entry.RemainingRechecks)

	// Resubmitting resets and re-consumes exactly one recheck again,
	// proving the prior hour-long timer was cancelled rather than stacked.
	q.Submit(context.Background(), o)
	entry, ok = q.Entry(o.ID)
	require.True(t, ok)
	assert.Equal(t, 4, entry.RemainingRechecks)

	q.Shutdown()
}
