package chain

import "errors"

var (
	// ErrMissingAccount means the account does not exist on chain yet.
	ErrMissingAccount = errors.New("account missing on chain")

	// ErrMissingBalance means the account exists on chain but was never
	// funded/activated.
	ErrMissingBalance = errors.New("account has no balance")

	// ErrTransactionFailed wraps a rejected or unsubmittable transaction.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidPublicAddress means a public address is not valid for the
	// resolved blockchain version. The engine reacts by re-resolving the
	// version and creating a fresh account.
	ErrInvalidPublicAddress = errors.New("public address invalid for version")

	// ErrAccountNotFound means no local account matches the given address
	// or index.
	ErrAccountNotFound = errors.New("local account not found")
)
