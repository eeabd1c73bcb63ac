package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

// InstrumentedTables records the duration and outcome of every gateway call.
type InstrumentedTables struct {
	next gateway.Tables
}

func Instrument(next gateway.Tables) *InstrumentedTables {
	return &InstrumentedTables{next: next}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrNotFound):
		return "not_found"
	case errors.Is(err, gateway.ErrConflict):
		return "conflict"
	case errors.Is(err, gateway.ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}

func observe(op, table string, start time.Time, err error) error {
	GatewayRequestDuration.WithLabelValues(op, table, outcome(err)).Observe(time.Since(start).Seconds())
	return err
}

func (t *InstrumentedTables) Select(ctx context.Context, dest any, q gateway.Query) error {
	start := time.Now()
	return observe("select", q.Table, start, t.next.Select(ctx, dest, q))
}

func (t *InstrumentedTables) SelectOne(ctx context.Context, dest any, q gateway.Query) error {
	start := time.Now()
	return observe("select_one", q.Table, start, t.next.SelectOne(ctx, dest, q))
}

func (t *InstrumentedTables) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	start := time.Now()
	n, err := t.next.Count(ctx, table, filters...)
	return n, observe("count", table, start, err)
}

func (t *InstrumentedTables) Insert(ctx context.Context, table string, row gateway.Row, returning any) error {
	start := time.Now()
	return observe("insert", table, start, t.next.Insert(ctx, table, row, returning))
}

func (t *InstrumentedTables) Update(ctx context.Context, table string, values gateway.Row, filters ...gateway.Filter) error {
	start := time.Now()
	return observe("update", table, start, t.next.Update(ctx, table, values, filters...))
}

func (t *InstrumentedTables) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	start := time.Now()
	return observe("delete", table, start, t.next.Delete(ctx, table, filters...))
}

func (t *InstrumentedTables) InsertWithinLimit(ctx context.Context, table string, row gateway.Row, limit int, scope ...gateway.Filter) error {
	start := time.Now()
	return observe("insert_within_limit", table, start, t.next.InsertWithinLimit(ctx, table, row, limit, scope...))
}
