package store

import "github.com/kinecosystem/kin-engine/types"

type MockStore struct {
	InitFunc       func() error
	CloseFunc      func() error
	SetEntryFunc   func(name string, value []byte) error
	GetEntryFunc   func(name string) ([]byte, bool, error)
	SetBalanceFunc func(b types.Balance) error
	GetBalanceFunc func() (types.Balance, bool, error)
}

func (m *MockStore) Init() error {
	if m.InitFunc != nil {
		return m.InitFunc()
	}

	return nil
}

func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}

	return nil
}

func (m *MockStore) SetEntry(name string, value []byte) error {
	if m.SetEntryFunc != nil {
		return m.SetEntryFunc(name, value)
	}

	return nil
}

func (m *MockStore) GetEntry(name string) ([]byte, bool, error) {
	if m.GetEntryFunc != nil {
		return m.GetEntryFunc(name)
	}

	return nil, false, nil
}

func (m *MockStore) SetBalance(b types.Balance) error {
	if m.SetBalanceFunc != nil {
		return m.SetBalanceFunc(b)
	}

	return nil
}

func (m *MockStore) GetBalance() (types.Balance, bool, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc()
	}

	return types.Balance{}, false, nil
}
