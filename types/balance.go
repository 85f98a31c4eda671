package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Balance is the last known amount held by the active account.
type Balance struct {
	Amount decimal.Decimal `json:"amount"`
}

func NewBalance(amount decimal.Decimal) Balance {
	return Balance{Amount: amount}
}

// Encode serializes the balance for the durable preference entry.
func (b Balance) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBalance parses a persisted balance entry. Callers treat a decode
// failure as "no cached value", not as a hard error.
func DecodeBalance(bz []byte) (Balance, error) {
	var b Balance
	if err := json.Unmarshal(bz, &b); err != nil {
		return Balance{}, err
	}

	return b, nil
}
