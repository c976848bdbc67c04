package db

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

// SinkTotals reports what an Accumulator sent to one sink.
type SinkTotals struct {
	Table   string
	Queued  int64 // rows handed to the sink
	Written int64 // rows the store reported as written
}

// FlushInfo describes one committed flush.
type FlushInfo struct {
	Records int   // source records in this flush
	Total   int64 // source records committed so far
}

// Accumulator buffers rows for several related tables and writes all of them in
// one transaction once a fixed number of source records is pending. Memory use is
// bounded by size records regardless of input length.
//
// A source record contributes zero or more rows to each sink through Add; the batch
// size counts records, not rows.
type Accumulator struct {
	db      *sql.DB
	size    int
	sinks   []InsertConfig
	pending [][][]any
	records int
	totals  []SinkTotals
	flushed int64

	// OnFlush, when set, runs after every committed flush.
	OnFlush func(FlushInfo)
}

// NewAccumulator creates an accumulator flushing every size records into sinks.
func NewAccumulator(db *sql.DB, size int, sinks ...InsertConfig) (*Accumulator, error) {
	if size <= 0 {
		return nil, eris.Errorf("db: accumulator: batch size must be positive, got %d", size)
	}
	if len(sinks) == 0 {
		return nil, eris.New("db: accumulator: no sinks")
	}
	totals := make([]SinkTotals, len(sinks))
	for i, s := range sinks {
		totals[i].Table = s.Table
	}
	return &Accumulator{
		db:      db,
		size:    size,
		sinks:   sinks,
		pending: make([][][]any, len(sinks)),
		totals:  totals,
	}, nil
}

// Add queues one source record. rows[i] holds the rows for sink i and may be empty;
// passing fewer groups than sinks leaves the remaining sinks untouched. A flush
// happens when the batch reaches capacity.
func (a *Accumulator) Add(ctx context.Context, rows ...[][]any) error {
	if len(rows) > len(a.sinks) {
		return eris.Errorf("db: accumulator: %d row groups for %d sinks", len(rows), len(a.sinks))
	}
	for i, group := range rows {
		a.pending[i] = append(a.pending[i], group...)
	}
	a.records++
	if a.records >= a.size {
		return a.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered source records.
func (a *Accumulator) Pending() int { return a.records }

// Flush writes every buffered row in a single transaction and clears the buffers.
// On error nothing from this batch is committed.
func (a *Accumulator) Flush(ctx context.Context) error {
	if a.records == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "db: accumulator: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	written := make([]int64, len(a.sinks))
	for i, sink := range a.sinks {
		n, err := BulkInsert(ctx, tx, sink, a.pending[i])
		if err != nil {
			return eris.Wrapf(err, "db: accumulator: flush %s", sink.Table)
		}
		written[i] = n
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "db: accumulator: commit tx")
	}

	for i := range a.sinks {
		a.totals[i].Queued += int64(len(a.pending[i]))
		a.totals[i].Written += written[i]
		a.pending[i] = a.pending[i][:0]
	}
	info := FlushInfo{Records: a.records}
	a.flushed += int64(a.records)
	info.Total = a.flushed
	a.records = 0

	if a.OnFlush != nil {
		a.OnFlush(info)
	}
	return nil
}

// Close flushes any partial batch.
func (a *Accumulator) Close(ctx context.Context) error {
	return a.Flush(ctx)
}

// Records returns the number of committed source records.
func (a *Accumulator) Records() int64 { return a.flushed }

// Totals returns per-sink counts for committed flushes, in sink order.
func (a *Accumulator) Totals() []SinkTotals {
	out := make([]SinkTotals, len(a.totals))
	copy(out, a.totals)
	return out
}
