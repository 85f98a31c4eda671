package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/types"
)

// PaymentSeenCacheSize bounds the cache of already-matched transaction
// hashes, so a replayed event cannot re-resolve a memo.
const PaymentSeenCacheSize = 1_000

// TimeoutPolicy decides how WaitForNewPayment resolves when the deadline
// passes without a match.
type TimeoutPolicy int

const (
	// PolicyFail resolves the wait with types.ErrWatchTimedOut.
	PolicyFail TimeoutPolicy = iota
	// PolicyIgnore resolves the wait with no payment and no error.
	PolicyIgnore
)

type pendingPayment struct {
	matched bool
	ch      chan chain.Payment // buffered 1: a match never blocks the watch loop
}

// StartWatchingForNewPayments registers a memo in the pending-match table.
// The first registration opens the single underlying payment subscription at
// cursor "now"; later ones reuse it. Registering an already-watched memo is
// a no-op.
func (e *Engine) StartWatchingForNewPayments(memo types.PaymentMemo) error {
	account, _, err := e.requireActive()
	if err != nil {
		return err
	}

	e.payLock.Lock()
	defer e.payLock.Unlock()

	if e.payWatch == nil {
		watch := account.WatchPayments(chain.CursorNow)
		e.payWatch = watch
		go e.watchPaymentsLoop(watch)
		log.Verbose("Opened payment subscription for ", account.PublicAddress())
	}

	key := memo.String()
	if _, ok := e.pending[key]; !ok {
		e.pending[key] = &pendingPayment{ch: make(chan chain.Payment, 1)}
	}

	return nil
}

// watchPaymentsLoop scans incoming payments for pending memos. A matched
// entry is signaled at most once; the transaction hash cache drops replays
// of the same event.
func (e *Engine) watchPaymentsLoop(watch chain.PaymentWatch) {
	for p := range watch.Events() {
		e.payLock.Lock()

		if _, seen := e.seenTxs.Get(p.Hash); seen {
			e.payLock.Unlock()
			continue
		}
		e.seenTxs.Add(p.Hash, true)

		entry, ok := e.pending[p.Memo]
		if ok && !entry.matched {
			entry.matched = true
			entry.ch <- p
			log.Verbosef("Matched payment memo %s, tx = %s", p.Memo, p.Hash)
		}
		e.payLock.Unlock()
	}
}

// WaitForNewPayment awaits the payment matching a registered memo. The memo
// must have been passed to StartWatchingForNewPayments first. timeout <= 0
// selects the configured default. On a match the engine also refreshes the
// balance opportunistically. On timeout the memo's pending entry is dropped;
// the subscription itself stays up until StopWatchingForNewPayments.
func (e *Engine) WaitForNewPayment(ctx context.Context, memo types.PaymentMemo,
	timeout time.Duration, policy TimeoutPolicy) (*chain.Payment, error) {
	if timeout <= 0 {
		timeout = e.cfg.PaymentTimeout()
	}

	key := memo.String()

	e.payLock.Lock()
	entry := e.pending[key]
	e.payLock.Unlock()

	if entry == nil {
		return nil, fmt.Errorf("%w: memo %s", types.ErrWatchNotStarted, key)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-entry.ch:
		e.removePending(key)
		go e.refreshBalance()
		return &p, nil

	case <-timer.C:
		e.removePending(key)
		if policy == PolicyIgnore {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: memo %s", types.ErrWatchTimedOut, key)

	case <-ctx.Done():
		e.removePending(key)
		return nil, ctx.Err()
	}
}

// StopWatchingForNewPayments clears the given memos, or every memo when none
// is given. The underlying subscription is torn down once nothing is left
// pending, and always on a full stop.
func (e *Engine) StopWatchingForNewPayments(memos ...types.PaymentMemo) {
	e.payLock.Lock()
	defer e.payLock.Unlock()

	if len(memos) == 0 {
		e.pending = make(map[string]*pendingPayment)
		e.stopPaymentWatchLocked()
		return
	}

	for _, memo := range memos {
		delete(e.pending, memo.String())
	}

	if len(e.pending) == 0 {
		e.stopPaymentWatchLocked()
	}
}

func (e *Engine) removePending(key string) {
	e.payLock.Lock()
	delete(e.pending, key)
	e.payLock.Unlock()
}

func (e *Engine) stopPaymentWatchLocked() {
	if e.payWatch != nil {
		e.payWatch.Stop()
		e.payWatch = nil
		log.Verbose("Closed payment subscription")
	}
}
