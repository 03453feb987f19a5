package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/domain"
	"poolstats/internal/metrics"
	"poolstats/internal/store"
	"poolstats/internal/tokens"
	"poolstats/internal/valuation"
)

// Addresses are the deployment's well-known contract addresses.
type Addresses struct {
	Protocol     string // network contract, id of the protocol singleton
	GovToken     string
	GovPoolToken string
}

// Info describes the indexed protocol, seeded into the singleton on creation.
type Info struct {
	Name    string
	Slug    string
	Network string
}

// RecordSink receives immutable transactional records after their event has
// been fully applied. Implementations must not block.
type RecordSink interface {
	RecordSwap(*domain.Swap)
	RecordDeposit(*domain.Deposit)
	RecordWithdraw(*domain.Withdraw)
}

// EventClass drives revenue attribution: trading fees are split between
// protocol and supply side by the network fee rate, withdrawal fees are
// entirely protocol-side, deposits carry no revenue.
type EventClass int

const (
	ClassSwap EventClass = iota
	ClassDeposit
	ClassWithdraw
)

// Engine routes each incoming protocol event to its handler and maintains the
// derived aggregates. Processing is strictly sequential: Process must not be
// called concurrently, and all state lives in the entity store.
type Engine struct {
	log      logger.Logger
	ents     *store.Entities
	registry *tokens.Registry
	conv     *valuation.Converter
	addrs    Addresses
	info     Info
	sink     RecordSink // optional
}

func New(log logger.Logger, ents *store.Entities, registry *tokens.Registry, conv *valuation.Converter, addrs Addresses, info Info, sink RecordSink) (*Engine, error) {
	if ents == nil {
		return nil, errors.New("entity store is required")
	}
	if registry == nil {
		return nil, errors.New("token registry is required")
	}
	if conv == nil {
		return nil, errors.New("valuation converter is required")
	}
	if addrs.Protocol == "" {
		return nil, errors.New("protocol address is required")
	}

	return &Engine{
		log:      log,
		ents:     ents,
		registry: registry,
		conv:     conv,
		addrs:    addrs,
		info:     info,
		sink:     sink,
	}, nil
}

// Process applies one event. A missing referenced entity skips the event
// (fail-soft); only store and encoding failures are returned as errors.
func (e *Engine) Process(ctx context.Context, ev *domain.Event) error {
	var err error

	switch ev.Kind {
	case domain.KindPoolTokenCreated:
		err = dispatch(e, ctx, ev, e.handlePoolTokenCreated)
	case domain.KindPoolCollectionAdded:
		err = dispatch(e, ctx, ev, e.handlePoolCollectionAdded)
	case domain.KindNetworkFeeUpdated:
		err = dispatch(e, ctx, ev, e.handleNetworkFeeUpdated)
	case domain.KindWithdrawalFeeUpdated:
		err = dispatch(e, ctx, ev, e.handleWithdrawalFeeUpdated)
	case domain.KindTokensTraded:
		err = dispatch(e, ctx, ev, e.handleTokensTraded)
	case domain.KindTokensDeposited:
		err = dispatch(e, ctx, ev, e.handleTokensDeposited)
	case domain.KindGovTokensDeposited:
		err = dispatch(e, ctx, ev, e.handleGovTokensDeposited)
	case domain.KindTokensWithdrawn:
		err = dispatch(e, ctx, ev, e.handleTokensWithdrawn)
	case domain.KindGovTokensWithdrawn:
		err = dispatch(e, ctx, ev, e.handleGovTokensWithdrawn)
	case domain.KindTotalLiquidityUpdated:
		err = dispatch(e, ctx, ev, e.handleTotalLiquidityUpdated)
	case domain.KindGovTotalLiquidityUpdated:
		err = dispatch(e, ctx, ev, e.handleGovTotalLiquidityUpdated)
	case domain.KindProgramCreated:
		err = dispatch(e, ctx, ev, e.handleProgramCreated)
	default:
		// closed set; an unknown kind is a producer/schema mismatch
		err = e.skip(ev, "unknown_kind", "unknown event kind %q", ev.Kind)
	}

	if err != nil {
		if errors.Is(err, errSkipped) {
			return nil
		}
		return fmt.Errorf("process %s %s: %w", ev.Kind, ev.ID(), err)
	}

	metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

// dispatch decodes the payload for a handler. A malformed payload is skipped,
// not fatal: the stream must keep flowing.
func dispatch[T any](e *Engine, ctx context.Context, ev *domain.Event, h func(context.Context, *domain.Event, *T) error) error {
	var p T
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return e.skip(ev, "bad_payload", "malformed payload: %v", err)
	}
	return h(ctx, ev, &p)
}

// errSkipped marks an event dropped by the fail-soft policy; Process swallows
// it so the stream keeps flowing, without counting the event as processed.
var errSkipped = errors.New("event skipped")

// skip logs a fail-soft event drop: the single event's remaining side effects
// are abandoned, the pipeline stays live.
func (e *Engine) skip(ev *domain.Event, reason, format string, args ...interface{}) error {
	e.log.Warnf("[%s %s] skipped: "+format, append([]interface{}{ev.Kind, ev.ID()}, args...)...)
	metrics.EventsSkipped.WithLabelValues(string(ev.Kind), reason).Inc()
	return errSkipped
}

// refAmountOrZero applies the documented valuation fallback: a failed lookup
// degrades to zero and is recorded, it never halts processing.
func (e *Engine) refAmountOrZero(ctx context.Context, token string, amount *big.Int, block uint64) float64 {
	v, err := e.conv.ReferenceAmount(ctx, token, amount, block)
	if err != nil {
		metrics.ValuationFailures.Inc()
		e.log.Warnf("valuation of %s at block %d failed: %v", token, block, err)
		return 0
	}
	return v
}

// underlyingOrZero converts pool shares to reserve units with the same
// zero-on-failure fallback.
func (e *Engine) underlyingOrZero(ctx context.Context, reserveToken string, shares *big.Int, block uint64) *big.Int {
	v, err := e.conv.UnderlyingAmount(ctx, reserveToken, shares, block)
	if err != nil {
		metrics.ValuationFailures.Inc()
		e.log.Warnf("underlying amount of %s at block %d failed: %v", reserveToken, block, err)
		return new(big.Int)
	}
	return v
}
