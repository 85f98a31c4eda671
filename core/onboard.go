package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/keystore"
	"github.com/kinecosystem/kin-engine/types"
)

// Onboard ensures the active account exists and is funded on chain. It is
// single-flight: concurrent callers share one underlying attempt and receive
// the same result. A failed attempt leaves the account not onboarded so the
// next call retries from scratch.
func (e *Engine) Onboard(ctx context.Context) error {
	account, _, err := e.requireActive()
	if err != nil {
		return err
	}

	if e.onboarded.Load() {
		return nil
	}

	_, err, _ = e.onboardGroup.Do("onboard", func() (interface{}, error) {
		return nil, e.doOnboard(ctx, account)
	})

	return err
}

func (e *Engine) doOnboard(ctx context.Context, account chain.Account) error {
	if e.onboarded.Load() {
		return nil
	}

	amount, err := account.Balance(ctx)
	switch {
	case err == nil:
		e.updateBalance(types.NewBalance(amount))

	case errors.Is(err, chain.ErrMissingAccount):
		log.Info("Account missing on chain, waiting for creation of ", account.PublicAddress())
		if werr := e.waitForCreation(ctx, account); werr != nil {
			return werr
		}

	case errors.Is(err, chain.ErrMissingBalance):
		log.Info("Account is unfunded, activating ", account.PublicAddress())
		if aerr := account.Activate(ctx); aerr != nil {
			return aerr
		}

	default:
		return err
	}

	return e.markOnboarded(account)
}

// waitForCreation blocks until the account's on-chain creation is observed
// or the onboard deadline passes. The watch is not cancelled on timeout; its
// late result is simply dropped.
func (e *Engine) waitForCreation(ctx context.Context, account chain.Account) error {
	watch := account.WatchCreation()
	defer watch.Stop()

	timer := time.NewTimer(e.cfg.OnboardTimeout())
	defer timer.Stop()

	select {
	case err, ok := <-watch.Done():
		if !ok {
			return fmt.Errorf("%w: creation watch closed", types.ErrInternalInconsistency)
		}
		return err

	case <-timer.C:
		return fmt.Errorf("%w: waiting for account creation", types.ErrTimeout)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) markOnboarded(account chain.Account) error {
	meta := keystore.ParseMetadata(account.Extra())
	if meta == nil {
		meta = &keystore.AccountMetadata{}
	}
	meta.Onboarded = true
	meta.Touch(time.Now().UTC())

	bz, err := meta.Encode()
	if err != nil {
		return err
	}
	if err := account.SetExtra(bz); err != nil {
		return err
	}

	e.onboarded.Store(true)
	log.Info("Account onboarded: ", account.PublicAddress())

	return nil
}

// Offboard clears the onboarded flag only. The account and any running
// watches are untouched.
func (e *Engine) Offboard() {
	e.onboarded.Store(false)
}

// Onboarded reports the current onboarding state.
func (e *Engine) Onboarded() bool {
	return e.onboarded.Load()
}
