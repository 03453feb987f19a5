package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordIDs(t *testing.T) {
	assert.Equal(t, "swap-0xabc-7", SwapID("0xabc", 7))
	assert.Equal(t, "deposit-0xabc-0", DepositID("0xabc", 0))
	assert.Equal(t, "withdraw-0xdef-12", WithdrawID("0xdef", 12))
}

func TestBucketIndexes(t *testing.T) {
	// 2022-01-01T00:00:00Z
	const ts = int64(1640995200)

	assert.Equal(t, ts/86400, DayIndex(ts))
	assert.Equal(t, ts/3600, HourIndex(ts))

	// two timestamps inside the same window map to the same bucket
	assert.Equal(t, DayIndex(ts), DayIndex(ts+86399))
	assert.NotEqual(t, DayIndex(ts), DayIndex(ts+86400))
	assert.Equal(t, HourIndex(ts), HourIndex(ts+3599))
	assert.NotEqual(t, HourIndex(ts), HourIndex(ts+3600))

	// hourly and daily granularities are distinct bucketings
	assert.NotEqual(t, DayIndex(ts), HourIndex(ts))
}

func TestSubjectBucketID(t *testing.T) {
	assert.Equal(t, "0xpool-18993", SubjectBucketID("0xpool", 18993))
	assert.Equal(t, "18993", BucketID(18993))
}

func TestEventID(t *testing.T) {
	ev := &Event{TxHash: "0xabc", LogIndex: 3}
	assert.Equal(t, "0xabc:3", ev.ID())
}
