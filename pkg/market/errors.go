package market

import "errors"

// Board error taxonomy. Ledger-originated failures (insufficient balance or
// allowance, missing registry approval) are wrapped and propagated from the
// collaborating ledger packages; everything below is raised by the boards.
var (
	// ErrNotFound means no live Ask/Bid exists for the key.
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateOrder means a live Ask already exists for the key.
	// Asks are never overwritten; cancel and re-place instead.
	ErrDuplicateOrder = errors.New("order already exists")

	// ErrUnauthorized means the caller is not the order's owning account.
	ErrUnauthorized = errors.New("caller does not own the order")

	// ErrNotOwner means the caller does not own the asset at the registry.
	ErrNotOwner = errors.New("caller is not the asset owner")

	// ErrPriceMismatch means the caller-supplied price confirmation disagrees
	// with the stored ask. Guards against stale-order execution.
	ErrPriceMismatch = errors.New("expected price does not match ask")

	// ErrAmountMismatch means the caller-supplied amount confirmation
	// disagrees with the stored bid.
	ErrAmountMismatch = errors.New("expected amount does not match bid")

	// ErrArithmeticOverflow means the fee computation would exceed int64.
	ErrArithmeticOverflow = errors.New("fee computation overflows")

	// ErrInvalidAmount means a negative or zero price/amount was supplied.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidFeeRate means a fee rate outside [0, 10000] bps.
	ErrInvalidFeeRate = errors.New("fee rate out of range")

	// ErrInsufficientBalance is raised by the fungible ledger (and by the
	// bid board's pre-pull check) when an account cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is raised when the board lacks spending
	// approval from the account it pulls funds from.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrRegistryNotAuthorized is raised by the asset registry when the
	// board lacks the owner's transfer approval for an asset.
	ErrRegistryNotAuthorized = errors.New("registry transfer not authorized")
)
