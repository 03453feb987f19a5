package valuation

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refToken = "0x6b175474e89094c44da98b954eedeac495271d0f"

var errReverted = errors.New("execution reverted")

// stubRateSource quotes every token at a fixed rate into the reference
// currency, or fails everything when broken is set.
type stubRateSource struct {
	rate   int64 // target units per source unit
	broken bool
	calls  int
}

func (s *stubRateSource) TradeOutputBySourceAmount(_ context.Context, _, _ string, amount *big.Int, _ uint64) (*big.Int, error) {
	s.calls++
	if s.broken {
		return nil, errReverted
	}
	return new(big.Int).Mul(amount, big.NewInt(s.rate)), nil
}

func (s *stubRateSource) PoolTokenToUnderlying(_ context.Context, _ string, amount *big.Int, _ uint64) (*big.Int, error) {
	s.calls++
	if s.broken {
		return nil, errReverted
	}
	return new(big.Int).Set(amount), nil
}

func wad(n int64) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(n), exp)
}

func TestNewConverterValidation(t *testing.T) {
	_, err := NewConverter(nil, refToken, 18)
	assert.Error(t, err)

	_, err = NewConverter(&stubRateSource{}, "", 18)
	assert.Error(t, err)
}

func TestReferenceAmountShortCircuit(t *testing.T) {
	src := &stubRateSource{rate: 2}
	conv, err := NewConverter(src, refToken, 18)
	require.NoError(t, err)

	// the reference currency itself never hits the oracle
	v, err := conv.ReferenceAmount(context.Background(), refToken, wad(1000), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, v, 1e-9)
	assert.Zero(t, src.calls)
}

func TestReferenceAmountQuotesOracle(t *testing.T) {
	src := &stubRateSource{rate: 3}
	conv, err := NewConverter(src, refToken, 18)
	require.NoError(t, err)

	v, err := conv.ReferenceAmount(context.Background(), "0xaaa", wad(10), 1)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, v, 1e-9)
	assert.Equal(t, 1, src.calls)
}

func TestReferenceAmountPropagatesFailure(t *testing.T) {
	src := &stubRateSource{broken: true}
	conv, err := NewConverter(src, refToken, 18)
	require.NoError(t, err)

	_, err = conv.ReferenceAmount(context.Background(), "0xaaa", wad(10), 1)
	assert.ErrorIs(t, err, errReverted)
}

func TestReferenceAmountZeroAndNil(t *testing.T) {
	src := &stubRateSource{broken: true}
	conv, err := NewConverter(src, refToken, 18)
	require.NoError(t, err)

	v, err := conv.ReferenceAmount(context.Background(), "0xaaa", new(big.Int), 1)
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = conv.ReferenceAmount(context.Background(), "0xaaa", nil, 1)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestUnderlyingAmount(t *testing.T) {
	src := &stubRateSource{rate: 1}
	conv, err := NewConverter(src, refToken, 18)
	require.NoError(t, err)

	out, err := conv.UnderlyingAmount(context.Background(), "0xaaa", big.NewInt(5), 1)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(5).Cmp(out))

	out, err = conv.UnderlyingAmount(context.Background(), "0xaaa", nil, 1)
	require.NoError(t, err)
	assert.Zero(t, out.Sign())
}

func TestToDecimal(t *testing.T) {
	assert.InDelta(t, 1.5, ToDecimal(big.NewInt(1500), 3), 1e-9)
	assert.InDelta(t, 1000.0, ToDecimal(wad(1000), 18), 1e-6)
	assert.Zero(t, ToDecimal(nil, 18))
}
