package domain

import (
	"fmt"
	"strconv"
)

const (
	SecondsPerDay  int64 = 86400
	SecondsPerHour int64 = 3600
)

// SwapID = "swap-<txHash>-<logIndex>"
func SwapID(txHash string, logIndex uint32) string {
	return fmt.Sprintf("swap-%s-%d", txHash, logIndex)
}

// DepositID = "deposit-<txHash>-<logIndex>"
func DepositID(txHash string, logIndex uint32) string {
	return fmt.Sprintf("deposit-%s-%d", txHash, logIndex)
}

// WithdrawID = "withdraw-<txHash>-<logIndex>"
func WithdrawID(txHash string, logIndex uint32) string {
	return fmt.Sprintf("withdraw-%s-%d", txHash, logIndex)
}

// DayIndex is the daily bucket index: floor(timestamp / 86400).
func DayIndex(timestamp int64) int64 {
	return timestamp / SecondsPerDay
}

// HourIndex is the hourly bucket index: floor(timestamp / 3600).
func HourIndex(timestamp int64) int64 {
	return timestamp / SecondsPerHour
}

// BucketID renders a bucket index as a snapshot id.
func BucketID(index int64) string {
	return strconv.FormatInt(index, 10)
}

// SubjectBucketID = "<subjectId>-<bucketIndex>", used by pool snapshots and
// active-account markers.
func SubjectBucketID(subject string, index int64) string {
	return subject + "-" + strconv.FormatInt(index, 10)
}
