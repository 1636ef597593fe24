// Package feesplit converts escrow pool totals into fee and prize amounts.
//
// All arithmetic is integer, in credits (the platform's base unit). Fees are
// expressed in basis points (1 bps = 0.01%) and truncate toward zero; any
// remainder from per-winner division stays in escrow as an accepted rounding
// loss rather than being redistributed.
package feesplit

import (
	"errors"
	"math/big"
)

// Bps denominator: fees are parts per ten thousand.
const BpsDenominator = 10000

var (
	ErrInvalidPool    = errors.New("pool total must not be negative")
	ErrInvalidFeeRate = errors.New("fee rate must be in [0, 10000) basis points")
	ErrNoWinners      = errors.New("winner count must be positive")
)

// Split is the result of dividing a pool into fees and the distributable prize.
type Split struct {
	PlatformFee   int64 `json:"platformFee"`
	ArbiterFee    int64 `json:"arbiterFee"`
	Distributable int64 `json:"distributable"`
}

// Compute splits a pool total into platform fee, arbiter fee, and the
// distributable prize. Pass arbiterFeeBps = 0 for wager types without an
// arbiter.
func Compute(totalPool, platformFeeBps, arbiterFeeBps int64) (Split, error) {
	if totalPool < 0 {
		return Split{}, ErrInvalidPool
	}
	if platformFeeBps < 0 || platformFeeBps >= BpsDenominator ||
		arbiterFeeBps < 0 || arbiterFeeBps >= BpsDenominator ||
		platformFeeBps+arbiterFeeBps >= BpsDenominator {
		return Split{}, ErrInvalidFeeRate
	}

	platformFee := totalPool * platformFeeBps / BpsDenominator
	arbiterFee := totalPool * arbiterFeeBps / BpsDenominator

	return Split{
		PlatformFee:   platformFee,
		ArbiterFee:    arbiterFee,
		Distributable: totalPool - platformFee - arbiterFee,
	}, nil
}

// PerWinnerShare divides a distributable prize between n winners.
// The division remainder is not paid out; it remains in escrow.
func PerWinnerShare(distributable int64, n int) (int64, error) {
	if distributable < 0 {
		return 0, ErrInvalidPool
	}
	if n <= 0 {
		return 0, ErrNoWinners
	}
	return distributable / int64(n), nil
}

// ProRataShare computes stake * distributable / total without overflowing
// the intermediate product. stake must not exceed total, so the result
// always fits in int64.
func ProRataShare(stake, distributable, total int64) (int64, error) {
	if stake < 0 || distributable < 0 {
		return 0, ErrInvalidPool
	}
	if total <= 0 || stake > total {
		return 0, ErrInvalidPool
	}
	share := new(big.Int).Mul(big.NewInt(stake), big.NewInt(distributable))
	share.Quo(share, big.NewInt(total))
	return share.Int64(), nil
}
