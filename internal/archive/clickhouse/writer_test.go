package clickhouse

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/config"
	"poolstats/internal/domain"
)

func TestSwapRow(t *testing.T) {
	row := swapRow(&domain.Swap{
		ID:          "swap-0xtx-3",
		Hash:        "0xtx",
		LogIndex:    3,
		BlockNumber: 1000,
		Timestamp:   1_700_000_000,
		From:        "0xalice",
		Pool:        "0xbnlink",

		TokenIn:      "0xlink",
		AmountIn:     big.NewInt(100),
		AmountInUSD:  100,
		TokenOut:     "0xdai",
		AmountOut:    big.NewInt(95),
		AmountOutUSD: 95,

		TradingFeeAmount: big.NewInt(5),
		TradingFeeUSD:    5,
	})

	assert.Equal(t, "swap", row.EventType)
	assert.Equal(t, "swap-0xtx-3", row.EventID)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), row.EventTime)
	assert.Equal(t, "100", row.AmountIn)
	assert.Equal(t, "95", row.AmountOut)
	assert.Equal(t, "5", row.FeeAmount)
	assert.Equal(t, float64(5), row.FeeUSD)
	assert.Equal(t, uint16(1), row.SchemaVersion)
}

func TestDepositRowHasNoFee(t *testing.T) {
	row := depositRow(&domain.Deposit{
		ID:               "deposit-0xtx-1",
		Timestamp:        1_700_000_000,
		InputToken:       "0xlink",
		InputTokenAmount: big.NewInt(40),
		AmountUSD:        40,
	})

	assert.Equal(t, "deposit", row.EventType)
	assert.Equal(t, "0", row.FeeAmount)
	assert.Equal(t, float64(0), row.FeeUSD)
}

func TestWithdrawRow(t *testing.T) {
	row := withdrawRow(&domain.Withdraw{
		ID:                  "withdraw-0xtx-2",
		Timestamp:           1_700_000_000,
		OutputToken:         "0xlink",
		OutputTokenAmount:   big.NewInt(90),
		AmountUSD:           90,
		WithdrawalFeeAmount: big.NewInt(10),
		WithdrawalFeeUSD:    10,
	})

	assert.Equal(t, "withdraw", row.EventType)
	assert.Equal(t, "90", row.AmountOut)
	assert.Equal(t, "10", row.FeeAmount)
}

func TestBigStringNil(t *testing.T) {
	assert.Equal(t, "0", bigString(nil))
	assert.Equal(t, "123456789012345678901234567890", bigString(mustBig("123456789012345678901234567890")))
}

func mustBig(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

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

func TestRecordAfterCloseDoesNotPanic(t *testing.T) {
	w := NewWriter(noopLogger{}, nil, config.ClickHouseConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	assert.NotPanics(t, func() {
		w.RecordSwap(&domain.Swap{ID: "swap-0xtx-1", AmountIn: big.NewInt(1)})
	})

	// Close is idempotent
	require.NoError(t, w.Close(ctx))
}
