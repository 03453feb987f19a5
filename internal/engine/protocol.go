package engine

import (
	"context"
	"fmt"
	"math/big"

	"poolstats/internal/domain"
)

const ppmDenominator = 1_000_000

// getOrCreateProtocol returns the protocol singleton, creating it with
// descriptor defaults on first touch.
func (e *Engine) getOrCreateProtocol(ctx context.Context) (*domain.Protocol, error) {
	p, ok, err := e.ents.Protocols.Find(ctx, e.addrs.Protocol)
	if err != nil {
		return nil, fmt.Errorf("find protocol: %w", err)
	}
	if ok {
		return p, nil
	}

	p = &domain.Protocol{
		ID:      e.addrs.Protocol,
		Name:    e.info.Name,
		Slug:    e.info.Slug,
		Network: e.info.Network,
		Type:    "EXCHANGE",
		PoolIDs: []string{},
	}
	if err := e.ents.Protocols.Save(ctx, p.ID, p); err != nil {
		return nil, fmt.Errorf("save protocol: %w", err)
	}
	return p, nil
}

func (e *Engine) handleNetworkFeeUpdated(ctx context.Context, ev *domain.Event, p *domain.FeeUpdated) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	prot.NetworkFeeRate = float64(p.NewFeePPM) / ppmDenominator
	e.log.Infof("network fee rate set to %g at block %d", prot.NetworkFeeRate, ev.BlockNumber)
	return e.ents.Protocols.Save(ctx, prot.ID, prot)
}

func (e *Engine) handleWithdrawalFeeUpdated(ctx context.Context, ev *domain.Event, p *domain.FeeUpdated) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	prot.WithdrawalFeeRate = float64(p.NewFeePPM) / ppmDenominator
	e.log.Infof("withdrawal fee rate set to %g at block %d", prot.WithdrawalFeeRate, ev.BlockNumber)
	return e.ents.Protocols.Save(ctx, prot.ID, prot)
}

// attributeRevenue splits a fee between the protocol and liquidity providers.
// Trading fees are split by the network fee rate; withdrawal fees go entirely
// to the protocol; deposits carry none.
func attributeRevenue(class EventClass, networkFeeRate, feeUSD float64) (protocolSide, supplySide float64) {
	switch class {
	case ClassSwap:
		protocolSide = feeUSD * networkFeeRate
		return protocolSide, feeUSD - protocolSide
	case ClassWithdraw:
		return feeUSD, 0
	default:
		return 0, 0
	}
}

// applyRevenue accrues a realized fee on the protocol's cumulative totals.
func (e *Engine) applyRevenue(ctx context.Context, class EventClass, feeUSD float64) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	protocolSide, supplySide := attributeRevenue(class, prot.NetworkFeeRate, feeUSD)
	prot.CumulativeTotalRevenueUSD += feeUSD
	prot.CumulativeProtocolSideRevenueUSD += protocolSide
	prot.CumulativeSupplySideRevenueUSD += supplySide
	return e.ents.Protocols.Save(ctx, prot.ID, prot)
}

// addProtocolVolume accrues swap volume on the protocol total.
func (e *Engine) addProtocolVolume(ctx context.Context, amountUSD float64) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}
	prot.CumulativeVolumeUSD += amountUSD
	return e.ents.Protocols.Save(ctx, prot.ID, prot)
}

// oneShare is 10^decimals, the unit amount used to price a pool share.
func oneShare(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
