package clickhouse

import (
	"context"
	"math/big"
	"sync"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/config"
	"poolstats/internal/domain"
)

// TransactionRow is one archived transactional record. Native token amounts
// go over the wire as strings to keep UInt256 precision.
type TransactionRow struct {
	EventTime   time.Time
	EventType   string // swap|deposit|withdraw
	EventID     string
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	Account     string
	Pool        string

	TokenIn     string
	AmountIn    string
	AmountInUSD float64

	TokenOut     string
	AmountOut    string
	AmountOutUSD float64

	FeeAmount string
	FeeUSD    float64

	SchemaVersion uint16
}

// Writer batches transaction rows into ClickHouse. Enqueueing never blocks
// the aggregation path: when the buffer is full the row is dropped and
// counted against the log.
type Writer struct {
	log logger.Logger

	conn ch.Conn
	cfg  config.ClickHouseConfig

	inCh      chan TransactionRow
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:      log,
		conn:     conn,
		cfg:      cfg,
		inCh:     make(chan TransactionRow, 8192),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *Writer) RecordSwap(s *domain.Swap) {
	w.enqueue(swapRow(s))
}

func (w *Writer) RecordDeposit(d *domain.Deposit) {
	w.enqueue(depositRow(d))
}

func (w *Writer) RecordWithdraw(wd *domain.Withdraw) {
	w.enqueue(withdrawRow(wd))
}

func swapRow(s *domain.Swap) TransactionRow {
	return TransactionRow{
		EventTime:   time.Unix(s.Timestamp, 0).UTC(),
		EventType:   "swap",
		EventID:     s.ID,
		TxHash:      s.Hash,
		LogIndex:    s.LogIndex,
		BlockNumber: s.BlockNumber,
		Account:     s.From,
		Pool:        s.Pool,

		TokenIn:     s.TokenIn,
		AmountIn:    bigString(s.AmountIn),
		AmountInUSD: s.AmountInUSD,

		TokenOut:     s.TokenOut,
		AmountOut:    bigString(s.AmountOut),
		AmountOutUSD: s.AmountOutUSD,

		FeeAmount: bigString(s.TradingFeeAmount),
		FeeUSD:    s.TradingFeeUSD,

		SchemaVersion: 1,
	}
}

func depositRow(d *domain.Deposit) TransactionRow {
	return TransactionRow{
		EventTime:   time.Unix(d.Timestamp, 0).UTC(),
		EventType:   "deposit",
		EventID:     d.ID,
		TxHash:      d.Hash,
		LogIndex:    d.LogIndex,
		BlockNumber: d.BlockNumber,
		Account:     d.From,
		Pool:        d.Pool,

		TokenIn:     d.InputToken,
		AmountIn:    bigString(d.InputTokenAmount),
		AmountInUSD: d.AmountUSD,

		TokenOut:  d.OutputToken,
		AmountOut: bigString(d.OutputTokenAmount),

		FeeAmount: "0",

		SchemaVersion: 1,
	}
}

func withdrawRow(wd *domain.Withdraw) TransactionRow {
	return TransactionRow{
		EventTime:   time.Unix(wd.Timestamp, 0).UTC(),
		EventType:   "withdraw",
		EventID:     wd.ID,
		TxHash:      wd.Hash,
		LogIndex:    wd.LogIndex,
		BlockNumber: wd.BlockNumber,
		Account:     wd.From,
		Pool:        wd.Pool,

		TokenIn:  wd.InputToken,
		AmountIn: bigString(wd.InputTokenAmount),

		TokenOut:     wd.OutputToken,
		AmountOut:    bigString(wd.OutputTokenAmount),
		AmountOutUSD: wd.AmountUSD,

		FeeAmount: bigString(wd.WithdrawalFeeAmount),
		FeeUSD:    wd.WithdrawalFeeUSD,

		SchemaVersion: 1,
	}
}

func (w *Writer) enqueue(row TransactionRow) {
	select {
	case <-w.closedCh:
		return
	default:
	}

	select {
	case w.inCh <- row:
	default:
		w.log.Warnf("Archive buffer full, dropping %s row %s", row.EventType, row.EventID)
	}
}

// Close stops the writer after flushing what is buffered. inCh is never
// closed, so a produce racing the shutdown cannot panic; it is simply dropped
// by the closedCh guard in enqueue.
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]TransactionRow, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-w.inCh:
			batch = append(batch, row)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.closedCh:
			// drain whatever was enqueued before the close, then flush
			for {
				select {
				case row := <-w.inCh:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	// repeat with exponential delay
	backoff := w.cfg.Writer.RetryBackoff

	var lastErr error

	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		batch, err := w.conn.PrepareBatch(ctx, `
			INSERT INTO transactions (
				event_time,
				event_type,
				event_id,
				tx_hash,
				log_index,
				block_number,
				account,
				pool,
				token_in,
				amount_in,
				amount_in_usd,
				token_out,
				amount_out,
				amount_out_usd,
				fee_amount,
				fee_usd,
				schema_version
			)
		`)
		if err != nil {
			lastErr = err
			goto retry
		}

		for i := range rows {
			r := &rows[i]
			if err = batch.Append(
				r.EventTime,
				r.EventType,
				r.EventID,
				r.TxHash,
				r.LogIndex,
				r.BlockNumber,
				r.Account,
				r.Pool,
				r.TokenIn,
				r.AmountIn,
				r.AmountInUSD,
				r.TokenOut,
				r.AmountOut,
				r.AmountOutUSD,
				r.FeeAmount,
				r.FeeUSD,
				r.SchemaVersion,
			); err != nil {
				lastErr = err
				_ = batch.Abort()
				goto retry
			}
		}

		if err = batch.Send(); err != nil {
			lastErr = err
			goto retry
		}
		// success
		return nil

	retry:
		if attempt == w.cfg.Writer.MaxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return lastErr
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
