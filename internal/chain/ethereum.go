package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/config"
)

// Minimal ABIs for the read-only calls this service makes. The rate oracle is
// the deployment's network-info contract.
const (
	networkInfoABI = `[
		{"name":"tradeOutputBySourceAmount","type":"function","stateMutability":"view",
		 "inputs":[{"name":"sourceToken","type":"address"},{"name":"targetToken","type":"address"},{"name":"sourceAmount","type":"uint256"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"name":"poolTokenToUnderlying","type":"function","stateMutability":"view",
		 "inputs":[{"name":"pool","type":"address"},{"name":"poolTokenAmount","type":"uint256"}],
		 "outputs":[{"name":"","type":"uint256"}]}
	]`

	erc20ABI = `[
		{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`
)

// Client performs the chain reads behind valuation and token metadata. All
// calls are pinned to the block the triggering event came from, so replays
// produce identical values.
type Client struct {
	log logger.Logger
	eth *ethclient.Client

	networkInfo common.Address
	infoABI     abi.ABI
	tokenABI    abi.ABI

	cfg config.ChainConfig
}

func New(log logger.Logger, cfg *config.ChainConfig) (*Client, error) {
	if cfg == nil || cfg.RPCURL == "" {
		return nil, errors.New("chain rpc url is required")
	}
	if cfg.NetworkInfoAddr == "" {
		return nil, errors.New("network info contract address is required")
	}

	infoABI, err := abi.JSON(strings.NewReader(networkInfoABI))
	if err != nil {
		return nil, fmt.Errorf("parse network info abi: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	return &Client{
		log:         log,
		eth:         eth,
		networkInfo: common.HexToAddress(cfg.NetworkInfoAddr),
		infoABI:     infoABI,
		tokenABI:    tokenABI,
		cfg:         *cfg,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// TradeOutputBySourceAmount quotes amount of sourceToken in targetToken units
// at the given block.
func (c *Client) TradeOutputBySourceAmount(ctx context.Context, sourceToken, targetToken string, amount *big.Int, block uint64) (*big.Int, error) {
	out, err := c.call(ctx, c.networkInfo, c.infoABI, "tradeOutputBySourceAmount", block,
		common.HexToAddress(sourceToken), common.HexToAddress(targetToken), amount)
	if err != nil {
		return nil, err
	}
	return toBigInt(out)
}

// PoolTokenToUnderlying converts pool-share units of reserveToken's pool back
// into reserve-token units at the given block.
func (c *Client) PoolTokenToUnderlying(ctx context.Context, reserveToken string, poolTokenAmount *big.Int, block uint64) (*big.Int, error) {
	out, err := c.call(ctx, c.networkInfo, c.infoABI, "poolTokenToUnderlying", block,
		common.HexToAddress(reserveToken), poolTokenAmount)
	if err != nil {
		return nil, err
	}
	return toBigInt(out)
}

func (c *Client) Name(ctx context.Context, token string) (string, error) {
	out, err := c.call(ctx, common.HexToAddress(token), c.tokenABI, "name", 0)
	if err != nil {
		return "", err
	}
	return toString(out)
}

func (c *Client) Symbol(ctx context.Context, token string) (string, error) {
	out, err := c.call(ctx, common.HexToAddress(token), c.tokenABI, "symbol", 0)
	if err != nil {
		return "", err
	}
	return toString(out)
}

func (c *Client) Decimals(ctx context.Context, token string) (uint8, error) {
	out, err := c.call(ctx, common.HexToAddress(token), c.tokenABI, "decimals", 0)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, errUnexpectedOutput
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, errUnexpectedOutput
	}
	return v, nil
}

var errUnexpectedOutput = errors.New("unexpected call output")

// call performs one eth_call against a contract, pinned to block when block
// is non-zero.
func (c *Client) call(ctx context.Context, to common.Address, a abi.ABI, method string, block uint64, args ...interface{}) ([]interface{}, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, at)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := a.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func toBigInt(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, errUnexpectedOutput
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errUnexpectedOutput
	}
	return v, nil
}

func toString(out []interface{}) (string, error) {
	if len(out) != 1 {
		return "", errUnexpectedOutput
	}
	v, ok := out[0].(string)
	if !ok {
		return "", errUnexpectedOutput
	}
	return v, nil
}
