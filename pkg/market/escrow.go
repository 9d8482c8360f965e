package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// escrowAccount wraps the two external ledgers with custody primitives.
// Every transfer it performs is recorded in a journal so a failed multi-step
// operation can be unwound as a unit: the boards have no partial-state
// concept, so a non-success must leave both ledgers exactly as before.
type escrowAccount struct {
	owner    common.Address // the board's custody address on both ledgers
	token    FungibleLedger
	registry AssetRegistry
	log      *zap.SugaredLogger
}

// journal is a compensating-action log for one operation. Each completed
// step records its inverse; revert applies the inverses in reverse order.
type journal struct {
	undos []func() error
	descs []string
}

func (j *journal) record(desc string, undo func() error) {
	j.undos = append(j.undos, undo)
	j.descs = append(j.descs, desc)
}

// revert unwinds all recorded steps. An inverse that itself fails is logged
// and skipped: at that point custody has diverged from the order maps and
// operator intervention is required.
func (j *journal) revert(log *zap.SugaredLogger) {
	for i := len(j.undos) - 1; i >= 0; i-- {
		if err := j.undos[i](); err != nil {
			log.Errorw("escrow_revert_failed", "step", j.descs[i], "err", err)
		}
	}
}

// pull moves funds from an external account into board custody. The account
// must have approved the board as spender; the ledger enforces it.
func (e *escrowAccount) pull(j *journal, from common.Address, amount int64) error {
	if err := e.token.TransferFrom(e.owner, from, e.owner, amount); err != nil {
		return fmt.Errorf("pull %d from %s: %w", amount, from.Hex(), err)
	}
	j.record(fmt.Sprintf("pull %d from %s", amount, from.Hex()), func() error {
		return e.token.TransferFrom(e.owner, e.owner, from, amount)
	})
	return nil
}

// payout moves funds out of board custody. It records no inverse: undoing a
// payout would need the recipient's allowance, which the board cannot assume
// it holds. Operations therefore order payouts after every step that can be
// refused; a payout only fails if custody has already diverged externally.
func (e *escrowAccount) payout(to common.Address, amount int64) error {
	if err := e.token.TransferFrom(e.owner, e.owner, to, amount); err != nil {
		return fmt.Errorf("payout %d to %s: %w", amount, to.Hex(), err)
	}
	return nil
}

// lockAsset transfers asset custody from its owner to the board. The owner
// must have approved the board at the registry.
func (e *escrowAccount) lockAsset(j *journal, key OrderKey, from common.Address) error {
	if err := e.registry.TransferFrom(e.owner, key, from, e.owner); err != nil {
		return fmt.Errorf("lock asset %s: %w", key, err)
	}
	j.record(fmt.Sprintf("lock asset %s", key), func() error {
		return e.registry.TransferFrom(e.owner, key, e.owner, from)
	})
	return nil
}

// releaseAsset transfers asset custody from the board back out. The board is
// the owner, so the registry cannot refuse it.
func (e *escrowAccount) releaseAsset(j *journal, key OrderKey, to common.Address) error {
	if err := e.registry.TransferFrom(e.owner, key, e.owner, to); err != nil {
		return fmt.Errorf("release asset %s: %w", key, err)
	}
	j.record(fmt.Sprintf("release asset %s", key), func() error {
		return e.registry.TransferFrom(e.owner, key, to, e.owner)
	})
	return nil
}

// moveAsset transfers asset custody directly between two external accounts
// with the board acting as the owner's approved operator. Used by bid
// acceptance, where the board never holds the asset itself.
func (e *escrowAccount) moveAsset(j *journal, key OrderKey, from, to common.Address) error {
	if err := e.registry.TransferFrom(e.owner, key, from, to); err != nil {
		return fmt.Errorf("move asset %s: %w", key, err)
	}
	j.record(fmt.Sprintf("move asset %s", key), func() error {
		return e.registry.TransferFrom(e.owner, key, to, from)
	})
	return nil
}
