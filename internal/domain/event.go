package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Kind identifies one of the protocol event types consumed from the stream.
// The set is closed; unknown kinds indicate a producer/schema mismatch.
type Kind string

const (
	KindPoolTokenCreated      Kind = "pool_token_created"
	KindPoolCollectionAdded   Kind = "pool_collection_added"
	KindNetworkFeeUpdated     Kind = "network_fee_updated"
	KindWithdrawalFeeUpdated  Kind = "withdrawal_fee_updated"
	KindTokensTraded          Kind = "tokens_traded"
	KindTokensDeposited       Kind = "tokens_deposited"
	KindTokensWithdrawn       Kind = "tokens_withdrawn"
	KindTotalLiquidityUpdated Kind = "total_liquidity_updated"
	KindProgramCreated        Kind = "program_created"

	// Governance-token variants: parallel events emitted by the governance
	// pool contract with identical semantics, token addresses implied.
	KindGovTokensDeposited       Kind = "gov_tokens_deposited"
	KindGovTokensWithdrawn       Kind = "gov_tokens_withdrawn"
	KindGovTotalLiquidityUpdated Kind = "gov_total_liquidity_updated"
)

// Event is one entry of the ordered, append-only protocol stream. Delivery is
// totally ordered by (BlockNumber, LogIndex); the payload shape depends on Kind.
type Event struct {
	Kind           Kind            `json:"kind"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp int64           `json:"block_timestamp"`
	TxHash         string          `json:"tx_hash"`
	LogIndex       uint32          `json:"log_index"`
	Payload        json.RawMessage `json:"payload"`
}

// ID is the stream-unique identifier used for redelivery deduplication.
func (e *Event) ID() string {
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

type PoolTokenCreated struct {
	PoolToken    string `json:"pool_token"`
	ReserveToken string `json:"reserve_token"`
}

type PoolCollectionAdded struct {
	PoolCollection string `json:"pool_collection"`
}

// FeeUpdated carries a fee expressed in parts-per-million.
type FeeUpdated struct {
	NewFeePPM uint32 `json:"new_fee_ppm"`
}

type TokensTraded struct {
	SourceToken     string   `json:"source_token"`
	TargetToken     string   `json:"target_token"`
	Trader          string   `json:"trader"`
	SourceAmount    *big.Int `json:"source_amount"`
	TargetAmount    *big.Int `json:"target_amount"`
	TargetFeeAmount *big.Int `json:"target_fee_amount"`
}

// TokensDeposited also serves the governance variant, where Token is empty and
// the governance token address is implied.
type TokensDeposited struct {
	Provider        string   `json:"provider"`
	Token           string   `json:"token,omitempty"`
	TokenAmount     *big.Int `json:"token_amount"`
	PoolTokenAmount *big.Int `json:"pool_token_amount"`
}

type TokensWithdrawn struct {
	Provider            string   `json:"provider"`
	Token               string   `json:"token,omitempty"`
	TokenAmount         *big.Int `json:"token_amount"`
	PoolTokenAmount     *big.Int `json:"pool_token_amount"`
	WithdrawalFeeAmount *big.Int `json:"withdrawal_fee_amount"`
}

type TotalLiquidityUpdated struct {
	Pool            string   `json:"pool,omitempty"` // reserve token address
	StakedBalance   *big.Int `json:"staked_balance"`
	PoolTokenSupply *big.Int `json:"pool_token_supply"`
}

type ProgramCreated struct {
	Pool         string   `json:"pool"` // reserve token address
	RewardsToken string   `json:"rewards_token"`
	TotalRewards *big.Int `json:"total_rewards"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
}
