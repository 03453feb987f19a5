package engine

import (
	"context"

	"poolstats/internal/domain"
	"poolstats/internal/store"
)

// snapshotUsage counts one interaction against the daily and hourly usage
// buckets and maintains account uniqueness. By the time an event reaches
// aggregation the protocol singleton always exists; its absence is a defect,
// logged loudly and not retried.
func (e *Engine) snapshotUsage(ctx context.Context, ev *domain.Event, account string, class EventClass) error {
	prot, ok, err := e.ents.Protocols.Find(ctx, e.addrs.Protocol)
	if err != nil {
		return err
	}
	if !ok {
		e.log.Errorf("protocol %s not found while counting usage, this should never happen", e.addrs.Protocol)
		return nil
	}

	acc, ok, err := e.ents.Accounts.Find(ctx, account)
	if err != nil {
		return err
	}
	if !ok {
		acc = &domain.Account{ID: account}
		if err := e.ents.Accounts.Save(ctx, acc.ID, acc); err != nil {
			return err
		}
		prot.CumulativeUniqueUsers++
		if err := e.ents.Protocols.Save(ctx, prot.ID, prot); err != nil {
			return err
		}
	}

	dayIdx := domain.DayIndex(ev.BlockTimestamp)
	if err := e.bumpUsage(ctx, e.ents.UsageDaily, e.ents.ActiveDaily, dayIdx, ev, account, class, prot); err != nil {
		return err
	}
	hourIdx := domain.HourIndex(ev.BlockTimestamp)
	return e.bumpUsage(ctx, e.ents.UsageHourly, e.ents.ActiveHourly, hourIdx, ev, account, class, prot)
}

func (e *Engine) bumpUsage(ctx context.Context, snaps *store.Collection[domain.UsageSnapshot], actives *store.Collection[domain.ActiveAccount], idx int64, ev *domain.Event, account string, class EventClass, prot *domain.Protocol) error {
	id := domain.BucketID(idx)
	snap, ok, err := snaps.Find(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		snap = &domain.UsageSnapshot{ID: id, Protocol: prot.ID}
	}

	markerID := domain.SubjectBucketID(account, idx)
	if _, seen, err := actives.Find(ctx, markerID); err != nil {
		return err
	} else if !seen {
		if err := actives.Save(ctx, markerID, &domain.ActiveAccount{ID: markerID}); err != nil {
			return err
		}
		snap.ActiveUsers++
	}

	snap.CumulativeUniqueUsers = prot.CumulativeUniqueUsers
	snap.TransactionCount++
	switch class {
	case ClassSwap:
		snap.SwapCount++
	case ClassDeposit:
		snap.DepositCount++
	case ClassWithdraw:
		snap.WithdrawCount++
	}
	snap.BlockNumber = ev.BlockNumber
	snap.Timestamp = ev.BlockTimestamp
	return snaps.Save(ctx, id, snap)
}
