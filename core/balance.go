package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/types"
)

const refreshTimeout = 30 * time.Second

// Balance queries the chain for the active account's balance and runs the
// update path: persist, push to the update stream, fan out to observers.
func (e *Engine) Balance(ctx context.Context) (types.Balance, error) {
	account, _, err := e.requireActive()
	if err != nil {
		return types.Balance{}, err
	}

	amount, err := account.Balance(ctx)
	if err != nil {
		return types.Balance{}, err
	}

	b := types.NewBalance(amount)
	e.updateBalance(b)

	return b, nil
}

// CachedBalance returns the last known balance without a network round trip.
func (e *Engine) CachedBalance() (types.Balance, bool) {
	e.balLock.Lock()
	defer e.balLock.Unlock()

	if e.cached == nil {
		return types.Balance{}, false
	}

	return *e.cached, true
}

// Updates is the generic balance-changed stream. Slow readers miss updates
// rather than stalling the engine.
func (e *Engine) Updates() <-chan types.Balance {
	return e.updates
}

// AddBalanceObserver registers a callback and immediately replays the cached
// balance to it if one exists. The first observer starts the underlying
// balance watch; at most one watch runs regardless of observer count. The
// returned identifier (the given one, or a fresh uuid) removes the observer
// later.
func (e *Engine) AddBalanceObserver(fn BalanceObserver, identifier ...string) string {
	id := uuid.NewString()
	if len(identifier) > 0 && identifier[0] != "" {
		id = identifier[0]
	}

	account, _, _ := e.requireActive()

	e.balLock.Lock()
	e.observers[id] = fn
	cached := e.cached
	if e.balanceWatch == nil && account != nil {
		e.startBalanceWatchLocked(account)
	}
	e.balLock.Unlock()

	if cached != nil {
		fn(*cached)
	}

	return id
}

// RemoveBalanceObserver deregisters a callback. When the last observer
// leaves, the underlying watch is torn down; cached state stays intact.
func (e *Engine) RemoveBalanceObserver(id string) {
	e.balLock.Lock()
	defer e.balLock.Unlock()

	delete(e.observers, id)

	if len(e.observers) == 0 && e.balanceWatch != nil {
		e.balanceWatch.Stop()
		e.balanceWatch = nil
	}
}

// updateBalance is the single write path for the balance cache: persist,
// stream, then fan out. Observer order is unspecified.
func (e *Engine) updateBalance(b types.Balance) {
	e.balLock.Lock()
	if err := e.store.SetBalance(b); err != nil {
		log.Error("Cannot persist balance, err = ", err)
	}
	e.cached = &b

	observers := make([]BalanceObserver, 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}

	select {
	case e.updates <- b:
	default:
	}
	e.balLock.Unlock()

	for _, fn := range observers {
		fn(b)
	}
}

// loadCachedBalance primes the cache from durable storage. Unreadable
// entries read as absent.
func (e *Engine) loadCachedBalance() {
	b, ok, err := e.store.GetBalance()
	if err != nil {
		log.Error("Cannot load cached balance, err = ", err)
		return
	}
	if !ok {
		return
	}

	e.balLock.Lock()
	e.cached = &b
	e.balLock.Unlock()
}

// refreshBalance opportunistically re-queries the balance in the background.
func (e *Engine) refreshBalance() {
	account, _, err := e.requireActive()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	amount, err := account.Balance(ctx)
	if err != nil {
		log.Verbose("Background balance refresh failed: ", err)
		return
	}

	e.updateBalance(types.NewBalance(amount))
}

// restartBalanceWatch re-points the watch at a newly active account, but
// only if observers exist.
func (e *Engine) restartBalanceWatch(account chain.Account) {
	e.balLock.Lock()
	defer e.balLock.Unlock()

	if e.balanceWatch != nil {
		e.balanceWatch.Stop()
		e.balanceWatch = nil
	}

	if len(e.observers) > 0 {
		e.startBalanceWatchLocked(account)
	}
}

func (e *Engine) startBalanceWatchLocked(account chain.Account) {
	var seed *decimal.Decimal
	if e.cached != nil {
		v := e.cached.Amount
		seed = &v
	}

	watch := account.WatchBalance(seed)
	e.balanceWatch = watch
	go e.watchBalanceLoop(watch)

	log.Verbose("Started balance watch for ", account.PublicAddress())
}

func (e *Engine) watchBalanceLoop(watch chain.BalanceWatch) {
	for amount := range watch.Events() {
		e.updateBalance(types.NewBalance(amount))
	}
}
