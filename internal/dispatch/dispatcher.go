// Package dispatch delivers committed stage transitions to side-effect
// subscribers without ever blocking the committing request.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"leadflow/internal/logging"
	"leadflow/internal/metrics"
	"leadflow/internal/models"
	"leadflow/internal/workflow"
)

const (
	DefaultWorkers         = 4
	DefaultBuffer          = 256
	DefaultDeliveryTimeout = 5 * time.Second
	DefaultMaxRetries      = 3
	defaultInitialInterval = 200 * time.Millisecond
)

var ErrStopped = errors.New("dispatcher stopped")

// Subscriber is one side effect of a committed transition.
type Subscriber interface {
	Name() string
	// Wants reports whether the event concerns this subscriber at all.
	Wants(event models.StageEvent) bool
	Handle(ctx context.Context, event models.StageEvent) error
}

type Options struct {
	Workers         int
	Buffer          int
	DeliveryTimeout time.Duration
	MaxRetries      int
	// InitialInterval is the first backoff delay between retries.
	InitialInterval time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Dispatcher fans events out to subscribers on a fixed set of shards.
// All events of one lead land on the same shard, so each subscriber sees
// them in commit order.
type Dispatcher struct {
	subs    []Subscriber
	shards  []chan models.StageEvent
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	started bool
	closed  bool

	wg     sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc
}

var _ workflow.Publisher = (*Dispatcher)(nil)

func New(opts Options, subs ...Subscriber) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaultInitialInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Dispatcher{
		subs:    subs,
		shards:  make([]chan models.StageEvent, opts.Workers),
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
	}
	for i := range d.shards {
		d.shards[i] = make(chan models.StageEvent, opts.Buffer)
	}
	return d
}

// Start launches one worker per shard. Events published before Start are
// buffered and delivered once workers run.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.base, d.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i, ch := range d.shards {
		d.wg.Add(1)
		go d.run(i, ch)
	}
	d.logger.Info("dispatcher started", slog.Int("workers", len(d.shards)), slog.Int("subscribers", len(d.subs)))
}

// Publish hands the event to its shard and returns immediately. When the
// shard buffer is full the event is dropped.
func (d *Dispatcher) Publish(event models.StageEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "stopped")
		return
	}
	select {
	case d.shards[d.shardOf(event.LeadID)] <- event:
	default:
		d.drop(event, "buffer full")
	}
}

func (d *Dispatcher) drop(event models.StageEvent, why string) {
	d.metrics.Dropped()
	d.logger.Warn("stage event dropped",
		slog.String("why", why),
		slog.Int64("lead_id", event.LeadID),
		slog.String("transition_id", event.TransitionID),
		slog.String("to", string(event.ToStage)),
	)
}

func (d *Dispatcher) shardOf(leadID int64) int {
	n := int64(len(d.shards))
	s := leadID % n
	if s < 0 {
		s += n
	}
	return int(s)
}

// Stop refuses new events and waits until buffered ones are delivered or
// ctx is done; in the latter case in-flight deliveries are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("%w before drain: %v", ErrStopped, ctx.Err())
	}
}

func (d *Dispatcher) run(shard int, events <-chan models.StageEvent) {
	defer d.wg.Done()
	for event := range events {
		for _, sub := range d.subs {
			if !sub.Wants(event) {
				continue
			}
			d.deliver(shard, sub, event)
		}
	}
}

func (d *Dispatcher) deliver(shard int, sub Subscriber, event models.StageEvent) {
	attempts := 0
	op := func() (err error) {
		attempts++
		defer func() {
			if r := recover(); r != nil {
				err = backoff.Permanent(fmt.Errorf("subscriber panic: %v", r))
			}
		}()
		ctx, cancel := context.WithTimeout(d.base, d.opts.DeliveryTimeout)
		defer cancel()
		return sub.Handle(ctx, event)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.opts.InitialInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(d.opts.MaxRetries)), d.base)

	if err := backoff.Retry(op, policy); err != nil {
		d.metrics.DeliveryFailed(sub.Name())
		d.logger.Warn("side effect failed",
			slog.String("subscriber", sub.Name()),
			slog.Int("shard", shard),
			slog.Int("attempts", attempts),
			slog.Int64("lead_id", event.LeadID),
			slog.String("transition_id", event.TransitionID),
			slog.Any("error", err),
		)
		return
	}
	d.metrics.Delivered(sub.Name())
}
