package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kinecosystem/kin-engine/types"
)

// Cursor positions a payment subscription on the event stream.
type Cursor string

// CursorNow subscribes to future events only.
const CursorNow Cursor = "now"

// WhitelistFunc lets the application co-sign a transaction envelope before
// submission so the network waives its fee. A nil func submits unwhitelisted.
type WhitelistFunc func(envelope []byte) ([]byte, error)

// Payment is one incoming transfer observed by a payment watch.
type Payment struct {
	Hash   string
	From   string
	To     string
	Amount decimal.Decimal
	Memo   string
}

// Client is one versioned collection of locally held accounts, backed by a
// single blockchain version. Two clients exist concurrently during the
// migration window.
type Client interface {
	Version() types.Version
	AccountCount() int
	AccountAt(index int) (Account, error)
	AccountByAddress(publicAddress string) (Account, bool)
	CreateAccount() (Account, error)
	DeleteAccountAt(index int) error
	ImportAccount(keystoreJSON []byte, password string) (Account, error)
	MinFee(ctx context.Context) (decimal.Decimal, error)
}

// Account is one locally held key pair plus its on-chain state.
type Account interface {
	PublicAddress() string

	// Extra is the opaque per-account metadata slot.
	Extra() []byte
	SetExtra(bz []byte) error

	Balance(ctx context.Context) (decimal.Decimal, error)
	Activate(ctx context.Context) error
	SendTransaction(ctx context.Context, to string, amount decimal.Decimal,
		memo string, fee decimal.Decimal, whitelist WhitelistFunc) (string, error)
	Export(password string) ([]byte, error)

	WatchBalance(seed *decimal.Decimal) BalanceWatch
	WatchPayments(cursor Cursor) PaymentWatch
	WatchCreation() CreationWatch
}

// BalanceWatch delivers balance changes for one account.
type BalanceWatch interface {
	Events() <-chan decimal.Decimal
	Stop()
}

// PaymentWatch delivers incoming payments for one account.
type PaymentWatch interface {
	Events() <-chan Payment
	Stop()
}

// CreationWatch resolves once the account's on-chain creation is observed.
type CreationWatch interface {
	Done() <-chan error
	Stop()
}
