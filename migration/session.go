package migration

import (
	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/types"
)

// PendingImport is a keystore blob staged for import, together with the
// password that unlocks it. Blob is the parsed form of Keystore so session
// consumers do not re-parse it.
type PendingImport struct {
	Keystore []byte
	Blob     *keystore.Blob
	Password string
}

// Session holds the state of one start(...) call chain. It exists only for
// the duration of the chain and is cleared once an account is confirmed
// active, whether selection succeeded or failed.
type Session struct {
	Token           types.AuthToken
	StartingAddress string
	Import          *PendingImport

	Version types.Version
	Client  chain.Client
}
