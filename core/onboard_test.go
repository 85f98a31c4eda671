package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/types"
)

// installActive wires an account directly into the engine, bypassing the
// migration session, so onboarding paths can be exercised in isolation.
func installActive(e *Engine, account chain.Account, client chain.Client) {
	token := testToken()

	e.lock.Lock()
	e.token = &token
	e.active = account
	e.client = client
	e.version = types.KinVersion3
	e.lock.Unlock()
}

func TestOnboard_BalanceSuccess(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc := fundedAccount(t, client, 50)
	installActive(env.engine, acc, client)

	require.Nil(t, env.engine.Onboard(context.Background()))
	require.True(t, env.engine.Onboarded())

	// Metadata now records the onboarded state.
	meta := keystore.ParseMetadata(acc.Extra())
	require.NotNil(t, meta)
	require.True(t, meta.Onboarded)

	// The balance query result landed in the cache.
	cached, ok := env.engine.CachedBalance()
	require.True(t, ok)
	require.True(t, cached.Amount.Equal(decimal.NewFromInt(50)))
}

func TestOnboard_SingleFlight(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	queries := atomic.NewInt32(0)
	entered := make(chan struct{})
	release := make(chan struct{})

	account := &chain.MockAccount{
		PublicAddressFunc: func() string { return "GADDR1" },
		BalanceFunc: func(ctx context.Context) (decimal.Decimal, error) {
			if queries.Inc() == 1 {
				close(entered)
			}
			<-release
			return decimal.NewFromInt(10), nil
		},
	}

	installActive(env.engine, account, &chain.MockClient{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = env.engine.Onboard(context.Background())
		}()
	}

	<-entered
	// Give the second caller time to join the in-flight attempt.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Nil(t, results[0])
	require.Nil(t, results[1])
	require.Equal(t, int32(1), queries.Load())
	require.True(t, env.engine.Onboarded())
}

func TestOnboard_MissingAccountWaitsForCreation(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc, err := client.CreateAccount()
	require.Nil(t, err)
	installActive(env.engine, acc, client)

	done := make(chan error, 1)
	go func() {
		done <- env.engine.Onboard(context.Background())
	}()

	// Let the onboard attempt reach the creation watch, then create the
	// account on chain.
	time.Sleep(50 * time.Millisecond)
	require.Nil(t, client.ConfirmCreation(acc.PublicAddress()))

	select {
	case err := <-done:
		require.Nil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("onboard did not finish")
	}
	require.True(t, env.engine.Onboarded())
}

func TestOnboard_MissingAccountTimesOut(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3) // onboard timeout is 1s in tests
	client := env.clients[types.KinVersion3]

	acc, err := client.CreateAccount()
	require.Nil(t, err)
	installActive(env.engine, acc, client)

	err = env.engine.Onboard(context.Background())
	require.ErrorIs(t, err, types.ErrTimeout)
	require.False(t, env.engine.Onboarded())

	// A later attempt retries from scratch and succeeds.
	require.Nil(t, client.ConfirmCreation(acc.PublicAddress()))
	require.Nil(t, env.engine.Onboard(context.Background()))
	require.True(t, env.engine.Onboarded())
}

func TestOnboard_MissingBalanceActivates(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc, err := client.CreateAccount()
	require.Nil(t, err)
	require.Nil(t, client.ConfirmCreation(acc.PublicAddress()))
	installActive(env.engine, acc, client)

	require.Nil(t, env.engine.Onboard(context.Background()))
	require.True(t, env.engine.Onboarded())

	// Activation funded the account.
	_, err = acc.Balance(context.Background())
	require.Nil(t, err)
}

func TestOnboard_RequiresActiveAccount(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	err := env.engine.Onboard(context.Background())
	require.ErrorIs(t, err, types.ErrInternalInconsistency)
}

func TestOffboard(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	acc := fundedAccount(t, client, 10)
	installActive(env.engine, acc, client)

	require.Nil(t, env.engine.Onboard(context.Background()))
	require.True(t, env.engine.Onboarded())

	env.engine.Offboard()
	require.False(t, env.engine.Onboarded())

	// Offboarding does not touch the account; onboarding again succeeds.
	require.Nil(t, env.engine.Onboard(context.Background()))
	require.True(t, env.engine.Onboarded())
}
