package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/config"
	"poolstats/internal/dedupe"
)

var _ dedupe.Deduper = (*Deduper)(nil)

// Deduper is a cluster-wide exactly-once guard: SETNX with a TTL covering the
// broker's redelivery window.
type Deduper struct {
	log    logger.Logger
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *goredis.Client) (*Deduper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dedupe:"
	}

	return &Deduper{
		log:    log,
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: prefix,
	}, nil
}

// Seen reports whether id was already marked processed. Read-only: a sighting
// is recorded by MarkSeen, never by the check itself.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		d.log.Errorf("Redis Exists error=%v", err)
		return false, fmt.Errorf("redis Exists error=%v", err)
	}
	return n > 0, nil
}

// MarkSeen records id as processed. SETNX keeps the first mark's TTL when
// concurrent redeliveries race.
func (d *Deduper) MarkSeen(ctx context.Context, id string) error {
	if err := d.rdb.SetNX(ctx, d.prefix+id, 1, d.ttl).Err(); err != nil {
		d.log.Errorf("Redis SetNX error=%v", err)
		return fmt.Errorf("redis SetNX error=%v", err)
	}
	return nil
}
