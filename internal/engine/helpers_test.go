package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/domain"
	"poolstats/internal/store"
	"poolstats/internal/tokens"
	"poolstats/internal/valuation"
)

// fixture addresses; reference amounts use zero decimals so USD values in
// assertions are plain integers
const (
	protocolAddr = "0xnetwork"
	daiAddr      = "0xdai"
	linkAddr     = "0xlink"
	bnLinkAddr   = "0xbnlink"
	bnDaiAddr    = "0xbndai"
	bntAddr      = "0xbnt"
	bnBNTAddr    = "0xbnbnt"
	traderAddr   = "0xalice"
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

var errOracle = errors.New("execution reverted")

// stubRates quotes a fixed per-token rate into the reference currency and a
// fixed share-to-underlying rate per reserve token (1:1 unless set).
type stubRates struct {
	rates      map[string]*big.Rat
	shareRates map[string]*big.Rat
	fail       bool
}

func (s *stubRates) TradeOutputBySourceAmount(_ context.Context, source, _ string, amount *big.Int, _ uint64) (*big.Int, error) {
	if s.fail {
		return nil, errOracle
	}
	r, ok := s.rates[source]
	if !ok {
		return nil, errOracle
	}
	out := new(big.Int).Mul(amount, r.Num())
	return out.Quo(out, r.Denom()), nil
}

func (s *stubRates) PoolTokenToUnderlying(_ context.Context, reserve string, amount *big.Int, _ uint64) (*big.Int, error) {
	if s.fail {
		return nil, errOracle
	}
	r, ok := s.shareRates[reserve]
	if !ok {
		return amount, nil
	}
	out := new(big.Int).Mul(amount, r.Num())
	return out.Quo(out, r.Denom()), nil
}

type staticMetadata struct {
	names   map[string]string
	symbols map[string]string
}

func (s *staticMetadata) Name(_ context.Context, token string) (string, error) {
	if n, ok := s.names[token]; ok {
		return n, nil
	}
	return "", errOracle
}

func (s *staticMetadata) Symbol(_ context.Context, token string) (string, error) {
	if sym, ok := s.symbols[token]; ok {
		return sym, nil
	}
	return "", errOracle
}

func (s *staticMetadata) Decimals(_ context.Context, _ string) (uint8, error) {
	return 0, nil
}

type captureSink struct {
	swaps     []*domain.Swap
	deposits  []*domain.Deposit
	withdraws []*domain.Withdraw
}

func (c *captureSink) RecordSwap(s *domain.Swap)         { c.swaps = append(c.swaps, s) }
func (c *captureSink) RecordDeposit(d *domain.Deposit)   { c.deposits = append(c.deposits, d) }
func (c *captureSink) RecordWithdraw(w *domain.Withdraw) { c.withdraws = append(c.withdraws, w) }

type fixture struct {
	eng   *Engine
	ents  *store.Entities
	rates *stubRates
	sink  *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ents := store.NewEntities(store.NewMemory())

	meta := &staticMetadata{
		names: map[string]string{
			linkAddr:   "Chainlink",
			bnLinkAddr: "LINK Pool Token",
			daiAddr:    "Dai Stablecoin",
			bnDaiAddr:  "DAI Pool Token",
			bntAddr:    "Bancor Network Token",
			bnBNTAddr:  "BNT Pool Token",
		},
		symbols: map[string]string{
			linkAddr:   "LINK",
			bnLinkAddr: "bnLINK",
			daiAddr:    "DAI",
			bnDaiAddr:  "bnDAI",
			bntAddr:    "BNT",
			bnBNTAddr:  "bnBNT",
		},
	}
	native := tokens.NativeAsset{Address: "0xeth", Name: "Ether", Symbol: "ETH", Decimals: 18}
	reg, err := tokens.NewRegistry(noopLogger{}, ents.Tokens, meta, native)
	require.NoError(t, err)

	rates := &stubRates{
		rates: map[string]*big.Rat{
			linkAddr: big.NewRat(1, 1),
			bntAddr:  big.NewRat(1, 1),
		},
		shareRates: map[string]*big.Rat{},
	}
	conv, err := valuation.NewConverter(rates, daiAddr, 0)
	require.NoError(t, err)

	sink := &captureSink{}
	eng, err := New(noopLogger{}, ents, reg, conv,
		Addresses{Protocol: protocolAddr, GovToken: bntAddr, GovPoolToken: bnBNTAddr},
		Info{Name: "Bancor V3", Slug: "bancor-v3", Network: "mainnet"},
		sink)
	require.NoError(t, err)

	return &fixture{eng: eng, ents: ents, rates: rates, sink: sink}
}

func evt(t *testing.T, kind domain.Kind, ts int64, logIdx uint32, payload interface{}) *domain.Event {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.Event{
		Kind:           kind,
		BlockNumber:    1000,
		BlockTimestamp: ts,
		TxHash:         "0xtx",
		LogIndex:       logIdx,
		Payload:        raw,
	}
}

func (f *fixture) process(t *testing.T, ev *domain.Event) {
	t.Helper()
	require.NoError(t, f.eng.Process(context.Background(), ev))
}

// seedPool registers a pool token / reserve token pair and its pool.
func (f *fixture) seedPool(t *testing.T, poolToken, reserveToken string) {
	t.Helper()
	f.process(t, evt(t, domain.KindPoolTokenCreated, 1_700_000_000, 0, domain.PoolTokenCreated{
		PoolToken:    poolToken,
		ReserveToken: reserveToken,
	}))
}

// setNetworkFee applies a fee-ppm update through the normal event path.
func (f *fixture) setNetworkFee(t *testing.T, ppm uint32) {
	t.Helper()
	f.process(t, evt(t, domain.KindNetworkFeeUpdated, 1_700_000_000, 0, domain.FeeUpdated{NewFeePPM: ppm}))
}

func (f *fixture) protocol(t *testing.T) *domain.Protocol {
	t.Helper()
	p, ok, err := f.ents.Protocols.Find(context.Background(), protocolAddr)
	require.NoError(t, err)
	require.True(t, ok)
	return p
}

func (f *fixture) pool(t *testing.T, id string) *domain.LiquidityPool {
	t.Helper()
	p, ok, err := f.ents.Pools.Find(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return p
}
