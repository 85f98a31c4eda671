package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/shopspring/decimal"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/config"
	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/migration"
	"github.com/kinecosystem/kin-engine/store"
	"github.com/kinecosystem/kin-engine/types"
)

const balanceStreamBuffer = 16

// Engine owns the active account, drives onboarding, maintains the balance
// cache and its observers, and correlates payment events to caller-issued
// memos. It implements migration.Events to bridge the coordinator's
// lifecycle callbacks into account selection.
type Engine struct {
	cfg         config.Engine
	store       store.Store
	coordinator *migration.Coordinator

	lock          sync.RWMutex
	token         *types.AuthToken
	session       *migration.Session
	pendingImport *migration.PendingImport
	active        chain.Account
	client        chain.Client
	version       types.Version

	onboarded    *atomic.Bool
	onboardGroup singleflight.Group

	// Balance cache and observer fan-out. balLock is taken after lock, never
	// the other way around.
	balLock      sync.Mutex
	cached       *types.Balance
	observers    map[string]BalanceObserver
	balanceWatch chain.BalanceWatch
	updates      chan types.Balance

	// Payment correlation.
	payLock  sync.Mutex
	pending  map[string]*pendingPayment
	payWatch chain.PaymentWatch
	seenTxs  *lru.Cache
}

// BalanceObserver receives every balance update, starting with the cached
// value at registration time if one exists.
type BalanceObserver func(types.Balance)

func New(cfg config.Engine, st store.Store, coordinator *migration.Coordinator) *Engine {
	cfg.ApplyDefaults()

	return &Engine{
		cfg:         cfg,
		store:       st,
		coordinator: coordinator,
		onboarded:   atomic.NewBool(false),
		observers:   make(map[string]BalanceObserver),
		updates:     make(chan types.Balance, balanceStreamBuffer),
		pending:     make(map[string]*pendingPayment),
		seenTxs:     lru.New(PaymentSeenCacheSize),
	}
}

// Start begins a migration session for the given user. knownAddress is the
// previously used public address, if any; an empty string means no prior
// account is known. Only one session may be in flight at a time.
func (e *Engine) Start(ctx context.Context, token types.AuthToken, knownAddress string) error {
	e.lock.Lock()
	if e.session != nil {
		e.lock.Unlock()
		return fmt.Errorf("%w: start already in flight", types.ErrInternalInconsistency)
	}

	sess := &migration.Session{
		Token:           token,
		StartingAddress: knownAddress,
		Import:          e.pendingImport,
	}
	e.session = sess
	e.pendingImport = nil
	e.token = &token
	e.lock.Unlock()

	log.Infof("Starting session, user = %s, known address = %q", token.EcosystemUserID, knownAddress)

	err := e.coordinator.Start(ctx, sess, e)

	// The session lives for exactly one start call chain.
	e.lock.Lock()
	e.session = nil
	e.lock.Unlock()

	return err
}

// ImportAccount stages an exported keystore blob for the next session. The
// blob is parsed eagerly so malformed input fails fast; the password is only
// validated once a client is ready.
func (e *Engine) ImportAccount(keystoreJSON []byte, password string) error {
	blob, err := keystore.Parse(keystoreJSON)
	if err != nil {
		return err
	}

	e.lock.Lock()
	e.pendingImport = &migration.PendingImport{
		Keystore: keystoreJSON,
		Blob:     blob,
		Password: password,
	}
	e.lock.Unlock()

	log.Verbose("Staged keystore import for ", blob.PKey)

	return nil
}

// OnMigrationStarted implements migration.Events.
func (e *Engine) OnMigrationStarted(ctx context.Context, version types.Version) {
	log.Info("Migration session started, resolved version = ", version)
}

// OnClientReady implements migration.Events: prune the versioned stores,
// run account selection against the ready client, and make the result
// active.
func (e *Engine) OnClientReady(ctx context.Context, version types.Version, client chain.Client) error {
	e.pruneStores()

	e.lock.RLock()
	sess := e.session
	e.lock.RUnlock()
	if sess == nil {
		return fmt.Errorf("%w: client ready without a session", types.ErrInternalInconsistency)
	}

	account, err := e.selectAccount(sess)
	if err != nil {
		return err
	}

	return e.setActive(account, client, version)
}

// OnMigrationFailed implements migration.Events. The invalid-public-address
// variant is recoverable: re-resolve the version and create a fresh account
// on the resolved client. Everything else is terminal for the session.
func (e *Engine) OnMigrationFailed(ctx context.Context, err error) error {
	if !errors.Is(err, chain.ErrInvalidPublicAddress) {
		log.Error("Migration session failed, err = ", err)
		return err
	}

	log.Warnf("Known address rejected for the resolved version, re-resolving")

	version, client, rerr := e.coordinator.Resolve(ctx)
	if rerr != nil {
		return rerr
	}

	account, cerr := client.CreateAccount()
	if cerr != nil {
		return cerr
	}

	return e.setActive(account, client, version)
}

// setActive installs the selected account, stamps its metadata, and kicks
// the balance machinery.
func (e *Engine) setActive(account chain.Account, client chain.Client, version types.Version) error {
	meta, err := e.stampMetadata(account)
	if err != nil {
		return err
	}

	e.lock.Lock()
	e.active = account
	e.client = client
	e.version = version
	e.lock.Unlock()

	e.onboarded.Store(meta.Onboarded)

	e.loadCachedBalance()
	e.restartBalanceWatch(account)
	go e.refreshBalance()

	log.Infof("Active account is %s on %s", account.PublicAddress(), version)

	return nil
}

// stampMetadata records the session's identity on the account and touches
// the last-active timestamp. The onboarded flag carries over untouched,
// including the legacy inference for unparseable extra data.
func (e *Engine) stampMetadata(account chain.Account) (*keystore.AccountMetadata, error) {
	meta := keystore.ParseMetadata(account.Extra())
	if meta == nil {
		meta = &keystore.AccountMetadata{}
	}

	e.lock.RLock()
	token := e.token
	e.lock.RUnlock()

	if token != nil {
		if token.UserID != "" {
			meta.KinUserID = &token.UserID
		}
		if token.EcosystemUserID != "" {
			meta.EcosystemUserID = &token.EcosystemUserID
		}
	}
	if e.cfg.Environment != "" {
		env := e.cfg.Environment
		meta.Environment = &env
	}
	meta.Touch(time.Now().UTC())

	bz, err := meta.Encode()
	if err != nil {
		return nil, err
	}
	if err := account.SetExtra(bz); err != nil {
		return nil, err
	}

	return meta, nil
}

// Pay sends amount to the given address with the caller's memo. The fee is
// the client's minimum; the whitelist callback, when set, lets the
// application co-sign the envelope before submission.
func (e *Engine) Pay(ctx context.Context, to string, amount decimal.Decimal,
	memo types.PaymentMemo, whitelist chain.WhitelistFunc) (string, error) {
	if err := e.requireToken(); err != nil {
		return "", err
	}

	account, client, err := e.requireActive()
	if err != nil {
		return "", err
	}

	fee, err := client.MinFee(ctx)
	if err != nil {
		return "", err
	}

	hash, err := account.SendTransaction(ctx, to, amount, memo.String(), fee, whitelist)
	if err != nil {
		return "", err
	}

	log.Infof("Payment sent, hash = %s, memo = %s", hash, memo)
	go e.refreshBalance()

	return hash, nil
}

// ExportAccount seals the active account's seed under the given password and
// marks the account backed up.
func (e *Engine) ExportAccount(password string) ([]byte, error) {
	account, _, err := e.requireActive()
	if err != nil {
		return nil, err
	}

	raw, err := account.Export(password)
	if err != nil {
		return nil, err
	}

	meta := keystore.ParseMetadata(account.Extra())
	if meta == nil {
		meta = &keystore.AccountMetadata{}
	}
	meta.BackedUp = true
	if bz, err := meta.Encode(); err == nil {
		if err := account.SetExtra(bz); err != nil {
			log.Error("Cannot mark account backed up, err = ", err)
		}
	}

	return raw, nil
}

// PublicAddress returns the active account's address.
func (e *Engine) PublicAddress() (string, error) {
	account, _, err := e.requireActive()
	if err != nil {
		return "", err
	}

	return account.PublicAddress(), nil
}

// Version returns the blockchain version of the active account.
func (e *Engine) Version() types.Version {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return e.version
}

// Stop tears down every watch subscription. Cached state stays intact.
func (e *Engine) Stop() {
	e.StopWatchingForNewPayments()

	e.balLock.Lock()
	if e.balanceWatch != nil {
		e.balanceWatch.Stop()
		e.balanceWatch = nil
	}
	e.observers = make(map[string]BalanceObserver)
	e.balLock.Unlock()

	log.Info("Engine stopped")
}

func (e *Engine) requireActive() (chain.Account, chain.Client, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.active == nil {
		return nil, nil, fmt.Errorf("%w: no active account", types.ErrInternalInconsistency)
	}

	return e.active, e.client, nil
}

func (e *Engine) requireToken() error {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.token == nil {
		return types.ErrNotLoggedIn
	}

	return nil
}
