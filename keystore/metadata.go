package keystore

import (
	"encoding/json"
	"time"
)

// AccountMetadata is the small record stored in an account's opaque extra
// blob. It travels with the account through export and restore.
type AccountMetadata struct {
	KinUserID       *string   `json:"kin_user_id,omitempty"`
	EcosystemUserID *string   `json:"ecosystem_user_id,omitempty"`
	Environment     *string   `json:"environment,omitempty"`
	Onboarded       bool      `json:"onboarded"`
	LastActive      time.Time `json:"last_active"`
	BackedUp        bool      `json:"backed_up"`
}

// ParseMetadata interprets an account's extra blob.
//
// Absent extra data means the account was never onboarded and nil is
// returned. Extra data that exists but does not parse belongs to the legacy
// schema, which only wrote extra data after onboarding, so such accounts are
// reported as onboarded.
func ParseMetadata(extra []byte) *AccountMetadata {
	if len(extra) == 0 {
		return nil
	}

	var meta AccountMetadata
	if err := json.Unmarshal(extra, &meta); err != nil {
		return &AccountMetadata{Onboarded: true}
	}

	return &meta
}

// Encode serializes the metadata for the extra blob.
func (m *AccountMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Touch updates the last-active timestamp.
func (m *AccountMetadata) Touch(now time.Time) {
	m.LastActive = now
}
