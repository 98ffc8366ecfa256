package application

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/metrics"
)

var (
	ErrQueueFull         = errors.New("notification queue is full")
	ErrDispatcherStopped = errors.New("notification dispatcher is stopped")
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

type delivery struct {
	plan       domain.Plan
	receiverID uuid.UUID
}

// Dispatcher runs ingestion off the producer's request path. A single
// planner expands events in arrival order and routes each receiver to a
// fixed worker, so notifications for one receiver are stored and pushed in
// the order their events were submitted.
type Dispatcher struct {
	ingestor *Ingestor
	logger   *slog.Logger

	intake chan domain.Event
	shards []chan delivery

	mu      sync.RWMutex
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
}

func NewDispatcher(ingestor *Ingestor, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	shards := make([]chan delivery, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan delivery, cfg.QueueSize)
	}
	return &Dispatcher{
		ingestor: ingestor,
		logger:   logger,
		intake:   make(chan domain.Event, cfg.QueueSize),
		shards:   shards,
		done:     make(chan struct{}),
	}
}

// Submit enqueues ev without blocking. It returns ErrQueueFull when the
// intake buffer is saturated.
func (d *Dispatcher) Submit(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.intake <- ev:
		metrics.DispatchQueueDepth.Inc()
		return nil
	default:
		metrics.EventsRejected.WithLabelValues(metrics.ReasonQueueFull).Inc()
		return ErrQueueFull
	}
}

// Start launches the planner and workers. It is a no-op after the first call.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel

		var workers sync.WaitGroup
		for _, shard := range d.shards {
			workers.Add(1)
			go func(jobs <-chan delivery) {
				defer workers.Done()
				for job := range jobs {
					// errors are logged and counted by deliver
					_, _ = d.ingestor.deliver(ctx, job.plan, job.receiverID)
				}
			}(shard)
		}

		go func() {
			d.plan(ctx)
			for _, shard := range d.shards {
				close(shard)
			}
			workers.Wait()
			close(d.done)
		}()
	})
}

func (d *Dispatcher) plan(ctx context.Context) {
	for ev := range d.intake {
		metrics.DispatchQueueDepth.Dec()
		plan, receivers, err := d.ingestor.plan(ctx, ev)
		if err != nil {
			if errors.Is(err, domain.ErrStorage) {
				env, encErr := domain.Encode(ev, time.Now())
				d.logger.Error("dropping event after receiver lookup failed",
					"kind", ev.Kind(), "envelope", env, "encode_error", encErr, "error", err)
			}
			continue
		}
		for _, receiverID := range receivers {
			d.shards[shardFor(receiverID, len(d.shards))] <- delivery{plan: plan, receiverID: receiverID}
		}
	}
}

// Stop refuses new events, drains what is queued and waits for the workers.
// Events accepted before Start was ever called are still ingested: Stop
// starts the workers to drain them. If ctx expires first, in-flight work is
// cancelled and ctx's error returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.intake)
	}
	d.mu.Unlock()

	d.Start()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		return ctx.Err()
	}
}

func shardFor(id uuid.UUID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(n))
}
