package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// VoteEvent describes an accepted vote. It carries no identity values.
type VoteEvent struct {
	ItemID        uint      `json:"itemId"`
	Year          int       `json:"year"`
	Week          int       `json:"week"`
	Votes         int       `json:"votes"`
	Authenticated bool      `json:"authenticated"`
	At            time.Time `json:"at"`
}

// EventSink consumes batches of vote events, e.g. a Kafka publisher or a cache.
type EventSink interface {
	Publish(ctx context.Context, events []VoteEvent) error
}

const (
	eventQueueSize     = 1000
	eventBatchSize     = 50
	eventFlushInterval = 500 * time.Millisecond
)

// EventQueue 异步批量分发投票事件，不阻塞投票请求
type EventQueue struct {
	queue    chan VoteEvent
	sinks    []EventSink
	interval time.Duration
	log      *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewEventQueue(log *slog.Logger, sinks ...EventSink) *EventQueue {
	if log == nil {
		log = slog.Default()
	}
	q := &EventQueue{
		queue:    make(chan VoteEvent, eventQueueSize), // 缓冲队列，防止阻塞
		sinks:    sinks,
		interval: eventFlushInterval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.worker()
	return q
}

// Schedule enqueues ev without blocking; a full queue drops the event.
func (q *EventQueue) Schedule(ev VoteEvent) {
	select {
	case q.queue <- ev:
	default:
		q.log.Warn("vote event queue full, dropping event", "item_id", ev.ItemID)
	}
}

func (q *EventQueue) worker() {
	defer close(q.done)

	batch := make([]VoteEvent, 0, eventBatchSize)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-q.queue:
			batch = append(batch, ev)
			if len(batch) >= eventBatchSize {
				q.dispatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				q.dispatch(batch)
				batch = batch[:0]
			}
		case <-q.stop:
			// drain whatever is still buffered
			for {
				select {
				case ev := <-q.queue:
					batch = append(batch, ev)
				default:
					if len(batch) > 0 {
						q.dispatch(batch)
					}
					return
				}
			}
		}
	}
}

func (q *EventQueue) dispatch(batch []VoteEvent) {
	events := make([]VoteEvent, len(batch))
	copy(events, batch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sink := range q.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			q.log.Error("publish vote events failed", "count", len(events), "error", err)
		}
	}
}

// Close flushes pending events and stops the worker, or gives up when ctx ends.
func (q *EventQueue) Close(ctx context.Context) error {
	q.once.Do(func() { close(q.stop) })
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
