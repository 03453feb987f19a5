package domain

import "math/big"

// Token is created once per distinct address and never deleted. The pool-token
// back-reference is set exactly once, when the reserve token is linked to its
// pool at pool-creation time.
type Token struct {
	ID       string `json:"id"` // token contract address
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`

	// PoolToken is the id of the pool token paired with this reserve token.
	// Empty for pool tokens and for reserve tokens without a pool yet.
	// Callers must go through PoolTokenID.
	PoolToken string `json:"pool_token,omitempty"`
}

// PoolTokenID reports the paired pool-token id, if one has been linked.
func (t *Token) PoolTokenID() (string, bool) {
	if t.PoolToken == "" {
		return "", false
	}
	return t.PoolToken, true
}

// LiquidityPool models a single-sided pool: exactly one reserve (input) token
// and one pool (output) token. Keyed by the pool-token id.
type LiquidityPool struct {
	ID       string `json:"id"` // pool token address
	Protocol string `json:"protocol"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`

	InputToken   string   `json:"input_token"`
	OutputToken  string   `json:"output_token"`
	RewardTokens []string `json:"reward_tokens"`

	CreatedTimestamp int64  `json:"created_timestamp"`
	CreatedBlock     uint64 `json:"created_block"`

	TotalValueLockedUSD        float64 `json:"tvl_usd"`
	CumulativeVolumeUSD        float64 `json:"cumulative_volume_usd"`
	CumulativeTradingFeeUSD    float64 `json:"cumulative_trading_fee_usd"`
	CumulativeWithdrawalFeeUSD float64 `json:"cumulative_withdrawal_fee_usd"`

	InputTokenBalance       *big.Int `json:"input_token_balance"`
	OutputTokenSupply       *big.Int `json:"output_token_supply"`
	OutputTokenPriceUSD     float64  `json:"output_token_price_usd"`
	StakedOutputTokenAmount *big.Int `json:"staked_output_token_amount"`

	// One active reward program per pool.
	RewardEmissionsPerDay    *big.Int `json:"reward_emissions_per_day"`
	RewardEmissionsPerDayUSD float64  `json:"reward_emissions_per_day_usd"`
}

// Protocol is the singleton aggregate over all pools, keyed by the network
// contract address. TotalValueLockedUSD is maintained incrementally and must
// equal the sum of the pools' TVL at all times.
type Protocol struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Network string `json:"network"`
	Type    string `json:"type"`

	TotalValueLockedUSD              float64 `json:"tvl_usd"`
	CumulativeVolumeUSD              float64 `json:"cumulative_volume_usd"`
	CumulativeSupplySideRevenueUSD   float64 `json:"cumulative_supply_side_revenue_usd"`
	CumulativeProtocolSideRevenueUSD float64 `json:"cumulative_protocol_side_revenue_usd"`
	CumulativeTotalRevenueUSD        float64 `json:"cumulative_total_revenue_usd"`
	CumulativeUniqueUsers            int64   `json:"cumulative_unique_users"`

	PoolIDs []string `json:"pool_ids"`

	// Fractional fee rates, updated by configuration events (ppm / 1e6).
	NetworkFeeRate    float64 `json:"network_fee_rate"`
	WithdrawalFeeRate float64 `json:"withdrawal_fee_rate"`
}

// Swap is an immutable record of one trade event.
type Swap struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	LogIndex    uint32 `json:"log_index"`
	Protocol    string `json:"protocol"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Pool        string `json:"pool"`

	TokenIn      string   `json:"token_in"`
	AmountIn     *big.Int `json:"amount_in"`
	AmountInUSD  float64  `json:"amount_in_usd"`
	TokenOut     string   `json:"token_out"`
	AmountOut    *big.Int `json:"amount_out"`
	AmountOutUSD float64  `json:"amount_out_usd"`

	TradingFeeAmount *big.Int `json:"trading_fee_amount"`
	TradingFeeUSD    float64  `json:"trading_fee_usd"`
}

// Deposit is an immutable record of one liquidity-provision event.
type Deposit struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	LogIndex    uint32 `json:"log_index"`
	Protocol    string `json:"protocol"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Pool        string `json:"pool"`

	InputToken        string   `json:"input_token"`
	InputTokenAmount  *big.Int `json:"input_token_amount"`
	OutputToken       string   `json:"output_token"`
	OutputTokenAmount *big.Int `json:"output_token_amount"`
	AmountUSD         float64  `json:"amount_usd"`
}

// Withdraw is an immutable record of one liquidity-removal event.
type Withdraw struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	LogIndex    uint32 `json:"log_index"`
	Protocol    string `json:"protocol"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Pool        string `json:"pool"`

	InputToken        string   `json:"input_token"`
	InputTokenAmount  *big.Int `json:"input_token_amount"`
	OutputToken       string   `json:"output_token"`
	OutputTokenAmount *big.Int `json:"output_token_amount"`
	AmountUSD         float64  `json:"amount_usd"`

	WithdrawalFeeAmount *big.Int `json:"withdrawal_fee_amount"`
	WithdrawalFeeUSD    float64  `json:"withdrawal_fee_usd"`
}

// Account marks that an address has ever interacted with the protocol.
type Account struct {
	ID string `json:"id"`
}

// ActiveAccount marks that an address was active within one time bucket.
// Daily and hourly markers live in separate collections.
type ActiveAccount struct {
	ID string `json:"id"` // "<address>-<bucketIndex>"
}

// UsageSnapshot is a per-bucket record of user activity. The same shape serves
// daily and hourly granularities; the two live in separate collections.
type UsageSnapshot struct {
	ID       string `json:"id"` // bucket index
	Protocol string `json:"protocol"`

	ActiveUsers           int64 `json:"active_users"`
	CumulativeUniqueUsers int64 `json:"cumulative_unique_users"`
	TransactionCount      int64 `json:"transaction_count"`
	DepositCount          int64 `json:"deposit_count"`
	WithdrawCount         int64 `json:"withdraw_count"`
	SwapCount             int64 `json:"swap_count"`

	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
}

// PoolSnapshot is a per-bucket record for one pool. Instantaneous fields are
// copied from the live pool on every touch; Period* fields accumulate deltas
// within the bucket.
type PoolSnapshot struct {
	ID       string `json:"id"` // "<poolID>-<bucketIndex>"
	Protocol string `json:"protocol"`
	Pool     string `json:"pool"`

	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`

	TotalValueLockedUSD     float64  `json:"tvl_usd"`
	CumulativeVolumeUSD     float64  `json:"cumulative_volume_usd"`
	InputTokenBalance       *big.Int `json:"input_token_balance"`
	OutputTokenSupply       *big.Int `json:"output_token_supply"`
	OutputTokenPriceUSD     float64  `json:"output_token_price_usd"`
	StakedOutputTokenAmount *big.Int `json:"staked_output_token_amount"`

	RewardEmissionsPerDay    *big.Int `json:"reward_emissions_per_day"`
	RewardEmissionsPerDayUSD float64  `json:"reward_emissions_per_day_usd"`

	PeriodVolumeTokenAmount *big.Int `json:"period_volume_token_amount"`
	PeriodVolumeUSD         float64  `json:"period_volume_usd"`
}

// FinancialsSnapshot is the daily protocol-wide financial record. Cumulative
// volume is recomputed by summing over the owned pools as an audit of the
// incrementally maintained counters.
type FinancialsSnapshot struct {
	ID       string `json:"id"` // day index
	Protocol string `json:"protocol"`

	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`

	TotalValueLockedUSD        float64 `json:"tvl_usd"`
	ProtocolControlledValueUSD float64 `json:"protocol_controlled_value_usd"`

	DailyVolumeUSD              float64 `json:"daily_volume_usd"`
	DailyTotalRevenueUSD        float64 `json:"daily_total_revenue_usd"`
	DailySupplySideRevenueUSD   float64 `json:"daily_supply_side_revenue_usd"`
	DailyProtocolSideRevenueUSD float64 `json:"daily_protocol_side_revenue_usd"`

	CumulativeVolumeUSD              float64 `json:"cumulative_volume_usd"`
	CumulativeTotalRevenueUSD        float64 `json:"cumulative_total_revenue_usd"`
	CumulativeSupplySideRevenueUSD   float64 `json:"cumulative_supply_side_revenue_usd"`
	CumulativeProtocolSideRevenueUSD float64 `json:"cumulative_protocol_side_revenue_usd"`
}
