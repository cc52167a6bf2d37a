// Package ordernum issues human-readable order numbers.
//
// Generators only propose candidates. Uniqueness is enforced by storage and
// the caller retries on collision.
package ordernum

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// Sequencer hands out strictly increasing values for a named counter. The
// value is only durable if the surrounding transaction commits.
type Sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// Generator proposes an order number candidate.
type Generator interface {
	Next(ctx context.Context, seq Sequencer) (string, error)
}

// DailySequence formats numbers as Prefix + YYYYMMDD + zero-padded counter,
// e.g. CMD20240115000042.
type DailySequence struct {
	Prefix  string
	Counter string
	Width   int

	now func() time.Time
}

// NewDailySequence creates a generator backed by the named counter.
func NewDailySequence(prefix, counter string, width int) *DailySequence {
	return &DailySequence{
		Prefix:  prefix,
		Counter: counter,
		Width:   width,
		now:     time.Now,
	}
}

// Next draws a value from seq and formats it.
func (g *DailySequence) Next(ctx context.Context, seq Sequencer) (string, error) {
	if seq == nil {
		return "", errors.New("daily sequence requires a sequencer")
	}
	n, err := seq.NextSequence(ctx, g.Counter)
	if err != nil {
		return "", errors.Wrapf(err, "next %q value", g.Counter)
	}
	return g.Prefix + g.now().Format("20060102") + pad(n, g.Width), nil
}

// Timestamp formats numbers as Prefix + Unix microseconds, e.g.
// CMD-1705312800123456. Values issued by one Timestamp never repeat, even
// when the clock stalls or steps backwards.
type Timestamp struct {
	Prefix string

	now  func() time.Time
	last atomic.Int64
}

// NewTimestamp creates a clock-based generator.
func NewTimestamp(prefix string) *Timestamp {
	return &Timestamp{
		Prefix: prefix,
		now:    time.Now,
	}
}

// Next ignores seq.
func (g *Timestamp) Next(_ context.Context, _ Sequencer) (string, error) {
	for {
		prev := g.last.Load()
		ts := g.now().UnixMicro()
		if ts <= prev {
			ts = prev + 1
		}
		if g.last.CompareAndSwap(prev, ts) {
			return g.Prefix + strconv.FormatInt(ts, 10), nil
		}
	}
}

func pad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
