package types

import (
	"fmt"
	"strings"
)

// MemoVersion is the fixed tag prepended to every app memo.
const MemoVersion = "1"

// PaymentMemo identifies one payment on the caller's behalf. It renders as
// "{version}-{appId}-{id}" and two memos are equal iff their rendered strings
// are equal, so the rendered string doubles as a map key.
type PaymentMemo struct {
	Version string
	AppID   string
	ID      string
}

// NewPaymentMemo builds a memo with the fixed memo version tag.
func NewPaymentMemo(appID, id string) PaymentMemo {
	return PaymentMemo{
		Version: MemoVersion,
		AppID:   appID,
		ID:      id,
	}
}

func (m PaymentMemo) String() string {
	return fmt.Sprintf("%s-%s-%s", m.Version, m.AppID, m.ID)
}

// ParseMemo splits a rendered memo back into its parts. App ids never contain
// a dash, so everything after the second dash belongs to the caller id.
func ParseMemo(s string) (PaymentMemo, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return PaymentMemo{}, fmt.Errorf("malformed payment memo %q", s)
	}

	return PaymentMemo{Version: parts[0], AppID: parts[1], ID: parts[2]}, nil
}
