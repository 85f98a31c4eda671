package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/types"
)

type stubBalanceWatch struct {
	ch    chan decimal.Decimal
	stops *atomic.Int32
}

func (w *stubBalanceWatch) Events() <-chan decimal.Decimal { return w.ch }

func (w *stubBalanceWatch) Stop() {
	w.stops.Inc()
	close(w.ch)
}

func TestBalance_UpdatePath(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc := fundedAccount(t, client, 42)
	installActive(env.engine, acc, client)

	b, err := env.engine.Balance(context.Background())
	require.Nil(t, err)
	require.True(t, b.Amount.Equal(decimal.NewFromInt(42)))

	// The result landed in the cache and the durable store.
	cached, ok := env.engine.CachedBalance()
	require.True(t, ok)
	require.True(t, cached.Amount.Equal(b.Amount))

	stored, ok, err := env.store.GetBalance()
	require.Nil(t, err)
	require.True(t, ok)
	require.True(t, stored.Amount.Equal(b.Amount))

	// And hit the update stream.
	select {
	case got := <-env.engine.Updates():
		require.True(t, got.Amount.Equal(b.Amount))
	default:
		t.Fatal("no update streamed")
	}
}

func TestBalance_RequiresActiveAccount(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	_, err := env.engine.Balance(context.Background())
	require.ErrorIs(t, err, types.ErrInternalInconsistency)

	_, ok := env.engine.CachedBalance()
	require.False(t, ok)
}

func TestAddBalanceObserver_ReplaysCached(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	stops := atomic.NewInt32(0)
	account := &chain.MockAccount{
		BalanceFunc: func(ctx context.Context) (decimal.Decimal, error) {
			return decimal.NewFromInt(7), nil
		},
		WatchBalanceFunc: func(seed *decimal.Decimal) chain.BalanceWatch {
			return &stubBalanceWatch{ch: make(chan decimal.Decimal), stops: stops}
		},
	}
	installActive(env.engine, account, &chain.MockClient{})

	_, err := env.engine.Balance(context.Background())
	require.Nil(t, err)

	var got []types.Balance
	env.engine.AddBalanceObserver(func(b types.Balance) {
		got = append(got, b)
	})

	// Replay happens before AddBalanceObserver returns.
	require.Len(t, got, 1)
	require.True(t, got[0].Amount.Equal(decimal.NewFromInt(7)))
}

func TestBalanceObservers_ShareOneWatch(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	opened := atomic.NewInt32(0)
	stops := atomic.NewInt32(0)
	account := &chain.MockAccount{
		PublicAddressFunc: func() string { return "GADDR1" },
		WatchBalanceFunc: func(seed *decimal.Decimal) chain.BalanceWatch {
			opened.Inc()
			return &stubBalanceWatch{ch: make(chan decimal.Decimal), stops: stops}
		},
	}
	installActive(env.engine, account, &chain.MockClient{})

	id1 := env.engine.AddBalanceObserver(func(types.Balance) {})
	id2 := env.engine.AddBalanceObserver(func(types.Balance) {}, "custom-id")
	require.Equal(t, "custom-id", id2)
	require.Equal(t, int32(1), opened.Load())

	// Removing one observer keeps the watch alive.
	env.engine.RemoveBalanceObserver(id1)
	require.Equal(t, int32(0), stops.Load())

	// Removing the last one tears it down.
	env.engine.RemoveBalanceObserver(id2)
	require.Equal(t, int32(1), stops.Load())

	// A new observer opens a fresh watch.
	env.engine.AddBalanceObserver(func(types.Balance) {})
	require.Equal(t, int32(2), opened.Load())
}

func TestBalanceObserver_ReceivesWatchUpdates(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc := fundedAccount(t, client, 5)
	installActive(env.engine, acc, client)

	updates := make(chan types.Balance, 4)
	env.engine.AddBalanceObserver(func(b types.Balance) {
		updates <- b
	})

	require.Nil(t, client.Credit(acc.PublicAddress(), decimal.NewFromInt(3)))

	select {
	case b := <-updates:
		require.True(t, b.Amount.Equal(decimal.NewFromInt(8)))
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not receive the update")
	}

	// The pushed value also became the cache.
	cached, ok := env.engine.CachedBalance()
	require.True(t, ok)
	require.True(t, cached.Amount.Equal(decimal.NewFromInt(8)))
}

func TestStop_TearsDownBalanceWatch(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	stops := atomic.NewInt32(0)
	account := &chain.MockAccount{
		WatchBalanceFunc: func(seed *decimal.Decimal) chain.BalanceWatch {
			return &stubBalanceWatch{ch: make(chan decimal.Decimal), stops: stops}
		},
	}
	installActive(env.engine, account, &chain.MockClient{})

	env.engine.AddBalanceObserver(func(types.Balance) {})
	env.engine.Stop()
	require.Equal(t, int32(1), stops.Load())

	// Observers were cleared too, so a fresh registration opens a new watch.
	env.engine.AddBalanceObserver(func(types.Balance) {})
	env.engine.balLock.Lock()
	require.NotNil(t, env.engine.balanceWatch)
	require.Len(t, env.engine.observers, 1)
	env.engine.balLock.Unlock()
}
