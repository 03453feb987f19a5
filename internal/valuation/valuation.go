package valuation

import (
	"context"
	"errors"
	"math/big"
)

// RateSource is the external oracle behind reference-currency conversion.
// Both calls are synchronous contract queries that may fail (revert); failures
// surface as errors and are never retried here.
type RateSource interface {
	// TradeOutputBySourceAmount quotes how much targetToken a trade of
	// amount sourceToken would return at the given block.
	TradeOutputBySourceAmount(ctx context.Context, sourceToken, targetToken string, amount *big.Int, block uint64) (*big.Int, error)

	// PoolTokenToUnderlying converts pool-share units of the pool owning
	// reserveToken back into reserve-token units.
	PoolTokenToUnderlying(ctx context.Context, reserveToken string, poolTokenAmount *big.Int, block uint64) (*big.Int, error)
}

// Converter values token amounts in the reference currency. A failed lookup is
// returned as an error: the documented zero fallback is applied by callers, so
// they can tell "lookup failed" apart from a genuinely zero value.
type Converter struct {
	src         RateSource
	refToken    string
	refDecimals uint8
}

func NewConverter(src RateSource, refToken string, refDecimals uint8) (*Converter, error) {
	if src == nil {
		return nil, errors.New("rate source is required")
	}
	if refToken == "" {
		return nil, errors.New("reference token is required")
	}

	return &Converter{
		src:         src,
		refToken:    refToken,
		refDecimals: refDecimals,
	}, nil
}

// ReferenceToken reports the reference currency address.
func (c *Converter) ReferenceToken() string {
	return c.refToken
}

// ReferenceAmount values amount of tokenID in the reference currency at the
// given block. Amounts of the reference currency itself are converted by fixed
// decimal precision with no external call.
func (c *Converter) ReferenceAmount(ctx context.Context, tokenID string, amount *big.Int, block uint64) (float64, error) {
	if amount == nil || amount.Sign() == 0 {
		return 0, nil
	}
	if tokenID == c.refToken {
		return ToDecimal(amount, c.refDecimals), nil
	}

	out, err := c.src.TradeOutputBySourceAmount(ctx, tokenID, c.refToken, amount, block)
	if err != nil {
		return 0, err
	}
	return ToDecimal(out, c.refDecimals), nil
}

// UnderlyingAmount converts pool-share units into reserve-token units.
func (c *Converter) UnderlyingAmount(ctx context.Context, reserveToken string, poolTokenAmount *big.Int, block uint64) (*big.Int, error) {
	if poolTokenAmount == nil || poolTokenAmount.Sign() == 0 {
		return new(big.Int), nil
	}
	return c.src.PoolTokenToUnderlying(ctx, reserveToken, poolTokenAmount, block)
}

// ToDecimal divides a wire-precision integer amount by 10^decimals.
func ToDecimal(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}

	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(exp))
	v, _ := f.Float64()
	return v
}
