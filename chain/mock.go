package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kinecosystem/kin-engine/types"
)

type MockClient struct {
	VersionFunc          func() types.Version
	AccountCountFunc     func() int
	AccountAtFunc        func(index int) (Account, error)
	AccountByAddressFunc func(publicAddress string) (Account, bool)
	CreateAccountFunc    func() (Account, error)
	DeleteAccountAtFunc  func(index int) error
	ImportAccountFunc    func(keystoreJSON []byte, password string) (Account, error)
	MinFeeFunc           func(ctx context.Context) (decimal.Decimal, error)
}

func (m *MockClient) Version() types.Version {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}

	return types.KinVersion3
}

func (m *MockClient) AccountCount() int {
	if m.AccountCountFunc != nil {
		return m.AccountCountFunc()
	}

	return 0
}

func (m *MockClient) AccountAt(index int) (Account, error) {
	if m.AccountAtFunc != nil {
		return m.AccountAtFunc(index)
	}

	return nil, ErrAccountNotFound
}

func (m *MockClient) AccountByAddress(publicAddress string) (Account, bool) {
	if m.AccountByAddressFunc != nil {
		return m.AccountByAddressFunc(publicAddress)
	}

	return nil, false
}

func (m *MockClient) CreateAccount() (Account, error) {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc()
	}

	return nil, ErrAccountNotFound
}

func (m *MockClient) DeleteAccountAt(index int) error {
	if m.DeleteAccountAtFunc != nil {
		return m.DeleteAccountAtFunc(index)
	}

	return nil
}

func (m *MockClient) ImportAccount(keystoreJSON []byte, password string) (Account, error) {
	if m.ImportAccountFunc != nil {
		return m.ImportAccountFunc(keystoreJSON, password)
	}

	return nil, ErrAccountNotFound
}

func (m *MockClient) MinFee(ctx context.Context) (decimal.Decimal, error) {
	if m.MinFeeFunc != nil {
		return m.MinFeeFunc(ctx)
	}

	return decimal.Zero, nil
}

type MockAccount struct {
	PublicAddressFunc   func() string
	ExtraFunc           func() []byte
	SetExtraFunc        func(bz []byte) error
	BalanceFunc         func(ctx context.Context) (decimal.Decimal, error)
	ActivateFunc        func(ctx context.Context) error
	SendTransactionFunc func(ctx context.Context, to string, amount decimal.Decimal,
		memo string, fee decimal.Decimal, whitelist WhitelistFunc) (string, error)
	ExportFunc        func(password string) ([]byte, error)
	WatchBalanceFunc  func(seed *decimal.Decimal) BalanceWatch
	WatchPaymentsFunc func(cursor Cursor) PaymentWatch
	WatchCreationFunc func() CreationWatch
}

func (m *MockAccount) PublicAddress() string {
	if m.PublicAddressFunc != nil {
		return m.PublicAddressFunc()
	}

	return ""
}

func (m *MockAccount) Extra() []byte {
	if m.ExtraFunc != nil {
		return m.ExtraFunc()
	}

	return nil
}

func (m *MockAccount) SetExtra(bz []byte) error {
	if m.SetExtraFunc != nil {
		return m.SetExtraFunc(bz)
	}

	return nil
}

func (m *MockAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx)
	}

	return decimal.Zero, nil
}

func (m *MockAccount) Activate(ctx context.Context) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx)
	}

	return nil
}

func (m *MockAccount) SendTransaction(ctx context.Context, to string, amount decimal.Decimal,
	memo string, fee decimal.Decimal, whitelist WhitelistFunc) (string, error) {
	if m.SendTransactionFunc != nil {
		return m.SendTransactionFunc(ctx, to, amount, memo, fee, whitelist)
	}

	return "", nil
}

func (m *MockAccount) Export(password string) ([]byte, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(password)
	}

	return nil, nil
}

func (m *MockAccount) WatchBalance(seed *decimal.Decimal) BalanceWatch {
	if m.WatchBalanceFunc != nil {
		return m.WatchBalanceFunc(seed)
	}

	return nil
}

func (m *MockAccount) WatchPayments(cursor Cursor) PaymentWatch {
	if m.WatchPaymentsFunc != nil {
		return m.WatchPaymentsFunc(cursor)
	}

	return nil
}

func (m *MockAccount) WatchCreation() CreationWatch {
	if m.WatchCreationFunc != nil {
		return m.WatchCreationFunc()
	}

	return nil
}
