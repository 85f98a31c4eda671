package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/types"
)

const watchBuffer = 16

// MemoryClient is a fully local backend implementing Client. It is used by
// the demo binary and by engine tests; account creation and funding are
// driven explicitly through the ConfirmCreation/Credit helpers so tests can
// exercise the onboarding paths deterministically.
type MemoryClient struct {
	version types.Version
	minFee  decimal.Decimal

	lock     sync.Mutex
	accounts []*memoryAccount
	txSeq    int
}

func NewMemoryClient(version types.Version) *MemoryClient {
	return &MemoryClient{
		version: version,
		minFee:  decimal.NewFromFloat(0.001),
	}
}

func (c *MemoryClient) Version() types.Version {
	return c.version
}

func (c *MemoryClient) AccountCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.accounts)
}

func (c *MemoryClient) AccountAt(index int) (Account, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if index < 0 || index >= len(c.accounts) {
		return nil, fmt.Errorf("%w: index %d", ErrAccountNotFound, index)
	}

	return c.accounts[index], nil
}

func (c *MemoryClient) AccountByAddress(publicAddress string) (Account, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if acc := c.findLocked(publicAddress); acc != nil {
		return acc, true
	}

	return nil, false
}

// CreateAccount generates a fresh key pair from bip39 entropy. The account
// exists locally only until its on-chain creation is observed.
func (c *MemoryClient) CreateAccount() (Account, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])

	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.addLocked(priv)

	return acc, nil
}

func (c *MemoryClient) DeleteAccountAt(index int) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if index < 0 || index >= len(c.accounts) {
		return fmt.Errorf("%w: index %d", ErrAccountNotFound, index)
	}

	acc := c.accounts[index]
	acc.closeWatchesLocked()
	c.accounts = append(c.accounts[:index], c.accounts[index+1:]...)

	return nil
}

func (c *MemoryClient) ImportAccount(keystoreJSON []byte, password string) (Account, error) {
	blob, err := keystore.Parse(keystoreJSON)
	if err != nil {
		return nil, err
	}

	seed, err := blob.Decrypt(password)
	if err != nil {
		return nil, err
	}

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed length %d", types.ErrAccountReadFailed, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)

	c.lock.Lock()
	defer c.lock.Unlock()

	addr := EncodeAddress(c.version, priv.Public().(ed25519.PublicKey))
	if acc := c.findLocked(addr); acc != nil {
		return acc, nil
	}

	acc := c.addLocked(priv)
	// An imported account was exported from somewhere, so it exists on chain.
	acc.created = true

	return acc, nil
}

func (c *MemoryClient) MinFee(ctx context.Context) (decimal.Decimal, error) {
	return c.minFee, nil
}

// ConfirmCreation marks the account as created on chain and resolves any
// pending creation watches.
func (c *MemoryClient) ConfirmCreation(publicAddress string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.findLocked(publicAddress)
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, publicAddress)
	}

	acc.created = true
	for _, w := range acc.creationWatches {
		w.signal(nil)
	}
	acc.creationWatches = nil

	return nil
}

// Credit funds a created account and notifies its balance watchers.
func (c *MemoryClient) Credit(publicAddress string, amount decimal.Decimal) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	acc := c.findLocked(publicAddress)
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, publicAddress)
	}

	if !acc.created {
		return ErrMissingAccount
	}

	acc.funded = true
	acc.balance = acc.balance.Add(amount)
	acc.emitBalanceLocked()

	return nil
}

func (c *MemoryClient) findLocked(publicAddress string) *memoryAccount {
	for _, acc := range c.accounts {
		if acc.address == publicAddress {
			return acc
		}
	}

	return nil
}

func (c *MemoryClient) addLocked(priv ed25519.PrivateKey) *memoryAccount {
	acc := &memoryAccount{
		client:  c,
		priv:    priv,
		address: EncodeAddress(c.version, priv.Public().(ed25519.PublicKey)),
	}
	c.accounts = append(c.accounts, acc)

	return acc
}

func (c *MemoryClient) nextHashLocked(from, to, memo string) string {
	c.txSeq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", from, to, memo, c.txSeq)))

	return hex.EncodeToString(sum[:])
}

type memoryAccount struct {
	client  *MemoryClient
	priv    ed25519.PrivateKey
	address string
	extra   []byte

	created bool
	funded  bool
	balance decimal.Decimal

	balanceWatches  []*memoryBalanceWatch
	paymentWatches  []*memoryPaymentWatch
	creationWatches []*memoryCreationWatch
}

func (a *memoryAccount) PublicAddress() string {
	return a.address
}

func (a *memoryAccount) Extra() []byte {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	return a.extra
}

func (a *memoryAccount) SetExtra(bz []byte) error {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	a.extra = bz

	return nil
}

func (a *memoryAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	if !a.created {
		return decimal.Zero, ErrMissingAccount
	}
	if !a.funded {
		return decimal.Zero, ErrMissingBalance
	}

	return a.balance, nil
}

func (a *memoryAccount) Activate(ctx context.Context) error {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	if !a.created {
		return ErrMissingAccount
	}

	a.funded = true
	a.emitBalanceLocked()

	return nil
}

func (a *memoryAccount) SendTransaction(ctx context.Context, to string, amount decimal.Decimal,
	memo string, fee decimal.Decimal, whitelist WhitelistFunc) (string, error) {
	envelope := []byte(fmt.Sprintf("%s|%s|%s|%s", a.address, to, amount.String(), memo))
	if whitelist != nil {
		signed, err := whitelist(envelope)
		if err != nil {
			return "", fmt.Errorf("%w: whitelist: %v", ErrTransactionFailed, err)
		}
		envelope = signed
	}
	_ = ed25519.Sign(a.priv, envelope)

	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	if !a.created {
		return "", ErrMissingAccount
	}
	if !a.funded {
		return "", ErrMissingBalance
	}

	total := amount.Add(fee)
	if a.balance.LessThan(total) {
		return "", fmt.Errorf("%w: insufficient balance", ErrTransactionFailed)
	}

	hash := a.client.nextHashLocked(a.address, to, memo)
	a.balance = a.balance.Sub(total)
	a.emitBalanceLocked()

	if recipient := a.client.findLocked(to); recipient != nil && recipient.created {
		recipient.funded = true
		recipient.balance = recipient.balance.Add(amount)
		recipient.emitBalanceLocked()
		recipient.emitPaymentLocked(Payment{
			Hash:   hash,
			From:   a.address,
			To:     to,
			Amount: amount,
			Memo:   memo,
		})
	}

	return hash, nil
}

func (a *memoryAccount) Export(password string) ([]byte, error) {
	blob, err := keystore.Seal(a.priv.Seed(), a.address, password)
	if err != nil {
		return nil, err
	}

	return blob.Encode()
}

func (a *memoryAccount) WatchBalance(seed *decimal.Decimal) BalanceWatch {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	w := &memoryBalanceWatch{account: a, ch: make(chan decimal.Decimal, watchBuffer)}
	if seed != nil {
		w.ch <- *seed
	}
	a.balanceWatches = append(a.balanceWatches, w)

	return w
}

func (a *memoryAccount) WatchPayments(cursor Cursor) PaymentWatch {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	// Only CursorNow is supported: there is no history to replay.
	w := &memoryPaymentWatch{account: a, ch: make(chan Payment, watchBuffer)}
	a.paymentWatches = append(a.paymentWatches, w)

	return w
}

func (a *memoryAccount) WatchCreation() CreationWatch {
	a.client.lock.Lock()
	defer a.client.lock.Unlock()

	w := &memoryCreationWatch{account: a, ch: make(chan error, 1)}
	if a.created {
		w.signal(nil)
	} else {
		a.creationWatches = append(a.creationWatches, w)
	}

	return w
}

func (a *memoryAccount) emitBalanceLocked() {
	for _, w := range a.balanceWatches {
		select {
		case w.ch <- a.balance:
		default:
		}
	}
}

func (a *memoryAccount) emitPaymentLocked(p Payment) {
	for _, w := range a.paymentWatches {
		select {
		case w.ch <- p:
		default:
		}
	}
}

func (a *memoryAccount) closeWatchesLocked() {
	for _, w := range a.balanceWatches {
		w.closeLocked()
	}
	a.balanceWatches = nil
	for _, w := range a.paymentWatches {
		w.closeLocked()
	}
	a.paymentWatches = nil
	for _, w := range a.creationWatches {
		w.signal(fmt.Errorf("%w: account deleted", ErrAccountNotFound))
	}
	a.creationWatches = nil
}

type memoryBalanceWatch struct {
	account *memoryAccount
	ch      chan decimal.Decimal
	once    sync.Once
}

func (w *memoryBalanceWatch) Events() <-chan decimal.Decimal {
	return w.ch
}

func (w *memoryBalanceWatch) Stop() {
	w.account.client.lock.Lock()
	defer w.account.client.lock.Unlock()

	for i, other := range w.account.balanceWatches {
		if other == w {
			w.account.balanceWatches = append(w.account.balanceWatches[:i], w.account.balanceWatches[i+1:]...)
			break
		}
	}
	w.closeLocked()
}

func (w *memoryBalanceWatch) closeLocked() {
	w.once.Do(func() { close(w.ch) })
}

type memoryPaymentWatch struct {
	account *memoryAccount
	ch      chan Payment
	once    sync.Once
}

func (w *memoryPaymentWatch) Events() <-chan Payment {
	return w.ch
}

func (w *memoryPaymentWatch) Stop() {
	w.account.client.lock.Lock()
	defer w.account.client.lock.Unlock()

	for i, other := range w.account.paymentWatches {
		if other == w {
			w.account.paymentWatches = append(w.account.paymentWatches[:i], w.account.paymentWatches[i+1:]...)
			break
		}
	}
	w.closeLocked()
}

func (w *memoryPaymentWatch) closeLocked() {
	w.once.Do(func() { close(w.ch) })
}

type memoryCreationWatch struct {
	account *memoryAccount
	ch      chan error
	once    sync.Once
}

func (w *memoryCreationWatch) Done() <-chan error {
	return w.ch
}

func (w *memoryCreationWatch) Stop() {
	w.once.Do(func() { close(w.ch) })
}

func (w *memoryCreationWatch) signal(err error) {
	w.once.Do(func() {
		w.ch <- err
		close(w.ch)
	})
}
