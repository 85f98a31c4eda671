package core

import (
	"sort"

	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/migration"
	"github.com/kinecosystem/kin-engine/types"
)

// pruneStores caps both versioned stores before selection runs. The
// lowest-indexed accounts go first.
func (e *Engine) pruneStores() {
	for _, version := range []types.Version{types.KinVersion2, types.KinVersion3} {
		client, err := e.coordinator.ClientFor(version)
		if err != nil {
			log.Warnf("Cannot prune %s store: %v", version, err)
			continue
		}

		pruneStore(client, e.cfg.MaxLocalAccounts)
	}
}

func pruneStore(client chain.Client, max int) {
	for client.AccountCount() > max {
		if err := client.DeleteAccountAt(0); err != nil {
			log.Error("Cannot prune account store, err = ", err)
			return
		}
	}
}

// selectAccount picks the account a ready client makes active:
// a known address found in the store wins outright; otherwise a staged
// import is validated and resolved; otherwise a fresh account is created.
func (e *Engine) selectAccount(sess *migration.Session) (chain.Account, error) {
	client := sess.Client

	if sess.StartingAddress != "" {
		if account, ok := client.AccountByAddress(sess.StartingAddress); ok {
			log.Info("Reusing known account ", sess.StartingAddress)
			return account, nil
		}
	}

	if sess.Import != nil {
		return e.resolveImport(sess)
	}

	log.Info("Creating a brand-new account on ", sess.Version)

	return client.CreateAccount()
}

// resolveImport validates the staged keystore password, then reuses the best
// matching local account or imports fresh.
func (e *Engine) resolveImport(sess *migration.Session) (chain.Account, error) {
	imp := sess.Import
	if err := imp.Blob.ValidatePassword(imp.Password); err != nil {
		return nil, err
	}

	client := sess.Client

	if account, ok := client.AccountByAddress(imp.Blob.PKey); ok {
		log.Info("Import matches local account ", imp.Blob.PKey)
		return account, nil
	}

	if account := bestCandidate(localAccounts(client), sess.Token.EcosystemUserID); account != nil {
		log.Info("Import resolved to heuristic match ", account.PublicAddress())
		return account, nil
	}

	log.Info("No local candidate, importing fresh account ", imp.Blob.PKey)

	return client.ImportAccount(imp.Keystore, imp.Password)
}

func localAccounts(client chain.Client) []chain.Account {
	accounts := make([]chain.Account, 0, client.AccountCount())
	for i := 0; i < client.AccountCount(); i++ {
		account, err := client.AccountAt(i)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts
}

type candidate struct {
	account chain.Account
	meta    *keystore.AccountMetadata
}

// bestCandidate is the single allowed tie-break rule: among accounts owned
// by the given user, an onboarded one beats a non-onboarded one, and ties go
// to the most recent last-active timestamp. Candidates are stable-sorted
// ascending and the final element is taken, so equal timestamps resolve to
// the account that was enumerated last.
func bestCandidate(accounts []chain.Account, ecosystemUserID string) chain.Account {
	if ecosystemUserID == "" {
		return nil
	}

	var forUser []candidate
	for _, account := range accounts {
		meta := keystore.ParseMetadata(account.Extra())
		if meta == nil || meta.EcosystemUserID == nil || *meta.EcosystemUserID != ecosystemUserID {
			continue
		}
		forUser = append(forUser, candidate{account: account, meta: meta})
	}

	var onboarded []candidate
	for _, c := range forUser {
		if c.meta.Onboarded {
			onboarded = append(onboarded, c)
		}
	}

	if account := mostRecent(onboarded); account != nil {
		return account
	}

	return mostRecent(forUser)
}

func mostRecent(candidates []candidate) chain.Account {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].meta.LastActive.Before(candidates[j].meta.LastActive)
	})

	return candidates[len(candidates)-1].account
}
