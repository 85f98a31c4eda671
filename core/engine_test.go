package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/config"
	"github.com/kinecosystem/kin-engine/migration"
	"github.com/kinecosystem/kin-engine/store"
	"github.com/kinecosystem/kin-engine/types"
)

type testEnv struct {
	engine  *Engine
	store   store.Store
	clients map[types.Version]*chain.MemoryClient
}

func testToken() types.AuthToken {
	return types.AuthToken{
		UserID:          "user1",
		EcosystemUserID: "eco1",
		AppID:           "app1",
		Token:           "jwt",
	}
}

func newTestEnv(t *testing.T, resolved types.Version) *testEnv {
	cfg := config.Engine{
		Environment:        "test",
		AppID:              "app1",
		InMemory:           true,
		OnboardTimeoutSecs: 1,
		PaymentTimeoutSecs: 1,
	}

	st := store.NewStore(&cfg)
	require.Nil(t, st.Init())
	t.Cleanup(func() { st.Close() })

	clients := map[types.Version]*chain.MemoryClient{
		types.KinVersion2: chain.NewMemoryClient(types.KinVersion2),
		types.KinVersion3: chain.NewMemoryClient(types.KinVersion3),
	}

	coordinator := migration.NewCoordinator(
		func(ctx context.Context) (types.Version, error) {
			return resolved, nil
		},
		func(version types.Version) (chain.Client, error) {
			return clients[version], nil
		},
	)

	engine := New(cfg, st, coordinator)
	t.Cleanup(engine.Stop)

	return &testEnv{engine: engine, store: st, clients: clients}
}

// fundedAccount creates, confirms and credits a fresh account on the client.
func fundedAccount(t *testing.T, client *chain.MemoryClient, amount int64) chain.Account {
	acc, err := client.CreateAccount()
	require.Nil(t, err)
	require.Nil(t, client.ConfirmCreation(acc.PublicAddress()))
	require.Nil(t, client.Credit(acc.PublicAddress(), decimal.NewFromInt(amount)))

	return acc
}

func TestEngine_Start_CreatesAccount(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	require.Nil(t, env.engine.Start(context.Background(), testToken(), ""))

	require.Equal(t, 1, env.clients[types.KinVersion3].AccountCount())
	require.Equal(t, 0, env.clients[types.KinVersion2].AccountCount())

	addr, err := env.engine.PublicAddress()
	require.Nil(t, err)
	require.Nil(t, chain.ValidateAddress(types.KinVersion3, addr))
	require.Equal(t, types.KinVersion3, env.engine.Version())
}

func TestEngine_Start_FastPathReuse(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]

	existing, err := client.CreateAccount()
	require.Nil(t, err)

	require.Nil(t, env.engine.Start(context.Background(), testToken(), existing.PublicAddress()))

	// The known account is selected and nothing new is created.
	require.Equal(t, 1, client.AccountCount())
	addr, err := env.engine.PublicAddress()
	require.Nil(t, err)
	require.Equal(t, existing.PublicAddress(), addr)
}

func TestEngine_Start_InvalidAddressReResolves(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	// Address minted on the legacy version is invalid for kin3. The engine
	// recovers by re-resolving and creating a fresh kin3 account.
	legacyAcc, err := env.clients[types.KinVersion2].CreateAccount()
	require.Nil(t, err)

	require.Nil(t, env.engine.Start(context.Background(), testToken(), legacyAcc.PublicAddress()))

	require.Equal(t, 1, env.clients[types.KinVersion3].AccountCount())
	addr, err := env.engine.PublicAddress()
	require.Nil(t, err)
	require.Nil(t, chain.ValidateAddress(types.KinVersion3, addr))
}

func TestEngine_Start_SingleFlight(t *testing.T) {
	cfg := config.Engine{InMemory: true}
	st := store.NewStore(&cfg)
	require.Nil(t, st.Init())
	t.Cleanup(func() { st.Close() })

	entered := make(chan struct{})
	release := make(chan struct{})
	coordinator := migration.NewCoordinator(
		func(ctx context.Context) (types.Version, error) {
			close(entered)
			<-release
			return types.KinVersion3, nil
		},
		func(version types.Version) (chain.Client, error) {
			return chain.NewMemoryClient(version), nil
		},
	)

	engine := New(cfg, st, coordinator)
	t.Cleanup(engine.Stop)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- engine.Start(context.Background(), testToken(), "")
	}()

	<-entered
	err := engine.Start(context.Background(), testToken(), "")
	require.ErrorIs(t, err, types.ErrInternalInconsistency)

	close(release)
	require.Nil(t, <-firstDone)
}

func TestEngine_Pay(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]
	ctx := context.Background()

	t.Run("not_logged_in", func(t *testing.T) {
		_, err := env.engine.Pay(ctx, "GDEST", decimal.NewFromInt(1), types.NewPaymentMemo("app1", "o1"), nil)
		require.ErrorIs(t, err, types.ErrNotLoggedIn)
	})

	sender := fundedAccount(t, client, 100)
	require.Nil(t, env.engine.Start(ctx, testToken(), sender.PublicAddress()))

	receiver := fundedAccount(t, client, 0)
	watch := receiver.WatchPayments(chain.CursorNow)
	defer watch.Stop()

	memo := types.NewPaymentMemo("app1", "order42")
	hash, err := env.engine.Pay(ctx, receiver.PublicAddress(), decimal.NewFromInt(25), memo, nil)
	require.Nil(t, err)
	require.NotEmpty(t, hash)

	select {
	case p := <-watch.Events():
		require.Equal(t, hash, p.Hash)
		require.Equal(t, memo.String(), p.Memo)
	case <-time.After(time.Second):
		t.Fatal("payment was not delivered")
	}
}

func TestEngine_Pay_WhitelistFailure(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	client := env.clients[types.KinVersion3]
	ctx := context.Background()

	sender := fundedAccount(t, client, 100)
	require.Nil(t, env.engine.Start(ctx, testToken(), sender.PublicAddress()))

	_, err := env.engine.Pay(ctx, "GDEST", decimal.NewFromInt(1), types.NewPaymentMemo("app1", "o1"),
		func(envelope []byte) ([]byte, error) {
			return nil, context.DeadlineExceeded
		})
	require.ErrorIs(t, err, chain.ErrTransactionFailed)
}

func TestEngine_ExportAndRestore(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	ctx := context.Background()

	require.Nil(t, env.engine.Start(ctx, testToken(), ""))
	addr, err := env.engine.PublicAddress()
	require.Nil(t, err)

	raw, err := env.engine.ExportAccount("backup-pw")
	require.Nil(t, err)

	// A second device with empty stores restores the same account.
	other := newTestEnv(t, types.KinVersion3)
	require.Nil(t, other.engine.ImportAccount(raw, "backup-pw"))
	require.Nil(t, other.engine.Start(ctx, testToken(), ""))

	restored, err := other.engine.PublicAddress()
	require.Nil(t, err)
	require.Equal(t, addr, restored)
}

func TestEngine_ImportAccount_BadKeystore(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)

	err := env.engine.ImportAccount([]byte("{broken"), "pw")
	require.ErrorIs(t, err, types.ErrAccountReadFailed)
}

func TestEngine_Import_WrongPasswordFailsStart(t *testing.T) {
	env := newTestEnv(t, types.KinVersion3)
	ctx := context.Background()

	require.Nil(t, env.engine.Start(ctx, testToken(), ""))
	raw, err := env.engine.ExportAccount("right-pw")
	require.Nil(t, err)

	other := newTestEnv(t, types.KinVersion3)
	require.Nil(t, other.engine.ImportAccount(raw, "wrong-pw"))
	err = other.engine.Start(ctx, testToken(), "")
	require.ErrorIs(t, err, types.ErrInvalidPassword)

	// The failed session is cleared; a plain start works afterwards.
	require.Nil(t, other.engine.Start(ctx, testToken(), ""))
}
