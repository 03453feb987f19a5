package store

import (
	"context"
	"encoding/json"
	"fmt"

	"poolstats/internal/domain"
)

// KV is the persistence contract the aggregation engine runs on: a key-value
// store of JSON documents keyed by arbitrary string ids. Processing is
// strictly sequential, so implementations need no transactional semantics.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Collection provides typed access to one entity kind over a KV store.
// Keys are namespaced as "<kind>:<id>".
type Collection[T any] struct {
	kv   KV
	kind string
}

func NewCollection[T any](kv KV, kind string) *Collection[T] {
	return &Collection[T]{kv: kv, kind: kind}
}

func (c *Collection[T]) key(id string) string {
	return c.kind + ":" + id
}

// Find loads the entity with the given id; the second return value reports
// whether it exists.
func (c *Collection[T]) Find(ctx context.Context, id string) (*T, bool, error) {
	b, ok, err := c.kv.Get(ctx, c.key(id))
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", c.key(id), err)
	}
	if !ok {
		return nil, false, nil
	}

	var v T
	if err = json.Unmarshal(b, &v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", c.key(id), err)
	}
	return &v, true, nil
}

// Save persists the entity under the given id, overwriting any prior version.
func (c *Collection[T]) Save(ctx context.Context, id string, v *T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key(id), err)
	}
	if err = c.kv.Put(ctx, c.key(id), b); err != nil {
		return fmt.Errorf("put %s: %w", c.key(id), err)
	}
	return nil
}

// Entities bundles one collection per entity kind over a shared KV backend.
type Entities struct {
	Tokens    *Collection[domain.Token]
	Pools     *Collection[domain.LiquidityPool]
	Protocols *Collection[domain.Protocol]

	Swaps     *Collection[domain.Swap]
	Deposits  *Collection[domain.Deposit]
	Withdraws *Collection[domain.Withdraw]

	Accounts     *Collection[domain.Account]
	ActiveDaily  *Collection[domain.ActiveAccount]
	ActiveHourly *Collection[domain.ActiveAccount]
	UsageDaily   *Collection[domain.UsageSnapshot]
	UsageHourly  *Collection[domain.UsageSnapshot]
	PoolDaily    *Collection[domain.PoolSnapshot]
	PoolHourly   *Collection[domain.PoolSnapshot]
	Financials   *Collection[domain.FinancialsSnapshot]
}

func NewEntities(kv KV) *Entities {
	return &Entities{
		Tokens:    NewCollection[domain.Token](kv, "token"),
		Pools:     NewCollection[domain.LiquidityPool](kv, "pool"),
		Protocols: NewCollection[domain.Protocol](kv, "protocol"),

		Swaps:     NewCollection[domain.Swap](kv, "swap"),
		Deposits:  NewCollection[domain.Deposit](kv, "deposit"),
		Withdraws: NewCollection[domain.Withdraw](kv, "withdraw"),

		Accounts:     NewCollection[domain.Account](kv, "account"),
		ActiveDaily:  NewCollection[domain.ActiveAccount](kv, "active_daily"),
		ActiveHourly: NewCollection[domain.ActiveAccount](kv, "active_hourly"),
		UsageDaily:   NewCollection[domain.UsageSnapshot](kv, "usage_daily"),
		UsageHourly:  NewCollection[domain.UsageSnapshot](kv, "usage_hourly"),
		PoolDaily:    NewCollection[domain.PoolSnapshot](kv, "pool_daily"),
		PoolHourly:   NewCollection[domain.PoolSnapshot](kv, "pool_hourly"),
		Financials:   NewCollection[domain.FinancialsSnapshot](kv, "financials_daily"),
	}
}
