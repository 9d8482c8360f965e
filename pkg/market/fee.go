package market

import "math"

// MaxFeeRateBps caps fee rates at 100% (10000 basis points).
const MaxFeeRateBps = 10000

// ComputeFee returns the settlement fee for a notional amount.
// Formula: floor(amount × feeRateBps / 10000)
// Example: amount=100000, feeRateBps=250 → fee=2500
//
// Pure and deterministic; boards call it once at order placement and never
// recompute on settlement. The amount×bps product is overflow-guarded rather
// than silently wrapped.
func ComputeFee(amount, feeRateBps int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if feeRateBps < 0 || feeRateBps > MaxFeeRateBps {
		return 0, ErrInvalidFeeRate
	}
	if feeRateBps > 0 && amount > math.MaxInt64/feeRateBps {
		return 0, ErrArithmeticOverflow
	}
	fee := amount * feeRateBps / 10000
	// Escrow totals carry amount+fee; reject amounts whose total would wrap.
	if amount > math.MaxInt64-fee {
		return 0, ErrArithmeticOverflow
	}
	return fee, nil
}
