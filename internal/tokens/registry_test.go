package tokens

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/domain"
	"poolstats/internal/store"
)

type noopLogger struct{}

func (noopLogger) Debug(string)                                  {}
func (noopLogger) Debugf(string, ...interface{})                 {}
func (noopLogger) Info(string)                                   {}
func (noopLogger) Infof(string, ...interface{})                  {}
func (noopLogger) Warn(string)                                   {}
func (noopLogger) Warnf(string, ...interface{})                  {}
func (noopLogger) Error(string)                                  {}
func (noopLogger) Errorf(string, ...interface{})                 {}
func (noopLogger) Fatal(string)                                  {}
func (noopLogger) Fatalf(string, ...interface{})                 {}
func (noopLogger) Panic(string)                                  {}
func (noopLogger) Panicf(string, ...interface{})                 {}
func (n noopLogger) WithField(string, interface{}) logger.Logger { return n }
func (n noopLogger) WithFields(map[string]interface{}) logger.Logger {
	return n
}

type stubMetadata struct {
	names    map[string]string
	symbols  map[string]string
	decimals map[string]uint8

	failName, failSymbol, failDecimals bool
}

var errReverted = errors.New("execution reverted")

func (s *stubMetadata) Name(_ context.Context, token string) (string, error) {
	if s.failName {
		return "", errReverted
	}
	return s.names[token], nil
}

func (s *stubMetadata) Symbol(_ context.Context, token string) (string, error) {
	if s.failSymbol {
		return "", errReverted
	}
	return s.symbols[token], nil
}

func (s *stubMetadata) Decimals(_ context.Context, token string) (uint8, error) {
	if s.failDecimals {
		return 0, errReverted
	}
	return s.decimals[token], nil
}

var native = NativeAsset{
	Address:  "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
	Name:     "Ether",
	Symbol:   "ETH",
	Decimals: 18,
}

func newTestRegistry(t *testing.T, meta *stubMetadata) (*Registry, *store.Collection[domain.Token]) {
	t.Helper()

	col := store.NewCollection[domain.Token](store.NewMemory(), "token")
	reg, err := NewRegistry(noopLogger{}, col, meta, native)
	require.NoError(t, err)
	return reg, col
}

func TestCreatePoolToken(t *testing.T) {
	meta := &stubMetadata{
		names:    map[string]string{"0xpt": "Bancor ETH Pool Token"},
		symbols:  map[string]string{"0xpt": "bnETH"},
		decimals: map[string]uint8{"0xpt": 18},
	}
	reg, col := newTestRegistry(t, meta)

	tok, err := reg.CreatePoolToken(context.Background(), "0xpt")
	require.NoError(t, err)
	assert.Equal(t, "Bancor ETH Pool Token", tok.Name)
	assert.Equal(t, "bnETH", tok.Symbol)
	assert.Equal(t, uint8(18), tok.Decimals)

	_, linked := tok.PoolTokenID()
	assert.False(t, linked)

	saved, ok, err := col.Find(context.Background(), "0xpt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok, saved)
}

func TestCreatePoolTokenMetadataFallbacks(t *testing.T) {
	meta := &stubMetadata{failName: true, failSymbol: true, failDecimals: true}
	reg, _ := newTestRegistry(t, meta)

	tok, err := reg.CreatePoolToken(context.Background(), "0xpt")
	require.NoError(t, err)
	assert.Equal(t, UnknownName, tok.Name)
	assert.Equal(t, UnknownSymbol, tok.Symbol)
	assert.Equal(t, uint8(0), tok.Decimals)
}

func TestCreateReserveTokenLinksPool(t *testing.T) {
	meta := &stubMetadata{
		names:    map[string]string{"0xrt": "Chainlink"},
		symbols:  map[string]string{"0xrt": "LINK"},
		decimals: map[string]uint8{"0xrt": 18},
	}
	reg, _ := newTestRegistry(t, meta)

	tok, err := reg.CreateReserveToken(context.Background(), "0xrt", "0xpt")
	require.NoError(t, err)

	poolID, linked := tok.PoolTokenID()
	require.True(t, linked)
	assert.Equal(t, "0xpt", poolID)
	assert.Equal(t, "LINK", tok.Symbol)
}

func TestCreateReserveTokenNativeAsset(t *testing.T) {
	// metadata source would fail; the native asset must never be queried
	meta := &stubMetadata{failName: true, failSymbol: true, failDecimals: true}
	reg, _ := newTestRegistry(t, meta)

	tok, err := reg.CreateReserveToken(context.Background(), native.Address, "0xpt")
	require.NoError(t, err)
	assert.Equal(t, "Ether", tok.Name)
	assert.Equal(t, "ETH", tok.Symbol)
	assert.Equal(t, uint8(18), tok.Decimals)
}
