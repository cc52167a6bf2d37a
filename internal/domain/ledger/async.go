package ledger

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned by Async.Record when the entry was dropped.
var ErrQueueFull = errors.New("ledger queue full")

// Async hands entries to background workers so the order response never
// waits on the ledger.
type Async struct {
	next    Recorder
	queue   chan Entry
	workers int
	drain   time.Duration
	lg      *zap.Logger
	dropped metric.Int64Counter
}

var _ Recorder = (*Async)(nil)

// AsyncOptions configures Async.
type AsyncOptions struct {
	Workers   int
	QueueSize int
	// DrainTimeout bounds how long buffered entries are still applied after
	// Run's context is cancelled.
	DrainTimeout time.Duration
}

func (o *AsyncOptions) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 5 * time.Second
	}
}

// NewAsync wraps next with a bounded queue.
func NewAsync(next Recorder, opts AsyncOptions, lg *zap.Logger, meter metric.Meter) (*Async, error) {
	opts.setDefaults()
	dropped, err := meter.Int64Counter("ledger.dropped",
		metric.WithDescription("Ledger entries dropped because the queue was full"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create dropped counter")
	}
	return &Async{
		next:    next,
		queue:   make(chan Entry, opts.QueueSize),
		workers: opts.Workers,
		drain:   opts.DrainTimeout,
		lg:      lg,
		dropped: dropped,
	}, nil
}

// Record enqueues e without blocking.
func (a *Async) Record(ctx context.Context, e Entry) error {
	select {
	case a.queue <- e:
		return nil
	default:
		a.dropped.Add(ctx, 1)
		a.lg.Warn("Ledger queue full, entry dropped",
			zap.Int64("owner_id", e.OwnerID),
			zap.String("email", e.Email),
		)
		return ErrQueueFull
	}
}

// Run applies queued entries until ctx is done, then drains what is left.
func (a *Async) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range a.workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case e := <-a.queue:
					a.apply(gctx, e)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.drain)
	defer cancel()
	for {
		select {
		case e := <-a.queue:
			a.apply(drainCtx, e)
		default:
			return nil
		}
	}
}

func (a *Async) apply(ctx context.Context, e Entry) {
	if err := a.next.Record(ctx, e); err != nil {
		a.lg.Error("Ledger update failed",
			zap.Int64("owner_id", e.OwnerID),
			zap.String("email", e.Email),
			zap.Error(err),
		)
	}
}
