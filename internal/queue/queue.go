// Package queue is the delivery stage of inter-guild fan-out: a single
// worker drains an in-memory FIFO with a fixed minimum gap between sends,
// so chat-rate limits on the game servers are never tripped by bursts.
// Items that cannot be delivered are re-enqueued at the tail with backoff
// and dropped after a bounded number of attempts; retries therefore trade
// strict ordering for delivery, which is the right trade for chat.
package queue

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildlink/bridge-app/internal/metrics"
)

// ItemKind selects the destination channel of an item.
type ItemKind string

const (
	KindGuild   ItemKind = "guild"
	KindOfficer ItemKind = "officer"
	KindEvent   ItemKind = "event"
)

// Item is one rendered line awaiting delivery to one target guild.
type Item struct {
	Kind          ItemKind
	TargetGuildID string
	SourceGuildID string
	Text          string
	Attempts      int
	MaxAttempts   int
	FirstEnqueued time.Time
}

// Sender dispatches rendered text into a guild; implemented by the
// connection supervisor.
type Sender interface {
	IsConnected(guildID string) bool
	SendMessage(guildID, text string) error
	SendOfficerMessage(guildID, text string) error
}

// Options tune the worker. Zero values select the contract defaults.
type Options struct {
	Gap                time.Duration // minimum gap between deliveries (1s)
	MaxAttempts        int           // per-item attempt bound (3)
	OfflineBackoff     time.Duration // requeue delay when target offline (5s)
	FailureBackoffStep time.Duration // requeue delay per attempt on failure (2s)
}

func (o *Options) applyDefaults() {
	if o.Gap == 0 {
		o.Gap = time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.OfflineBackoff == 0 {
		o.OfflineBackoff = 5 * time.Second
	}
	if o.FailureBackoffStep == 0 {
		o.FailureBackoffStep = 2 * time.Second
	}
}

// Queue is the FIFO plus its worker. The item slice is exclusively owned
// here; producers only Enqueue.
type Queue struct {
	sender Sender
	opts   Options

	mu    sync.Mutex
	items []*Item

	wake chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New builds a stopped queue; call Start to launch the worker.
func New(sender Sender, opts Options) *Queue {
	opts.applyDefaults()
	return &Queue{
		sender: sender,
		opts:   opts,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the single delivery worker.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop terminates the worker and waits for it. Pending items are abandoned.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}

// Enqueue appends an item at the tail and wakes the worker.
func (q *Queue) Enqueue(item Item) {
	if item.MaxAttempts == 0 {
		item.MaxAttempts = q.opts.MaxAttempts
	}
	if item.FirstEnqueued.IsZero() {
		item.FirstEnqueued = time.Now()
	}
	q.mu.Lock()
	q.items = append(q.items, &item)
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of items currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Delivered returns the number of successfully dispatched items.
func (q *Queue) Delivered() uint64 { return q.delivered.Load() }

// Dropped returns the number of items abandoned after exhausting attempts.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

func (q *Queue) pop() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))
	return it
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		it := q.pop()
		if it == nil {
			select {
			case <-q.done:
				return
			case <-q.wake:
				continue
			}
		}

		q.process(it)

		select {
		case <-q.done:
			return
		case <-time.After(q.opts.Gap):
		}
	}
}

func (q *Queue) process(it *Item) {
	// Defensive double-check; the fan-out engine already suppresses
	// same-guild items.
	if it.SourceGuildID == it.TargetGuildID {
		q.drop(it, "same_guild")
		return
	}

	if !q.sender.IsConnected(it.TargetGuildID) {
		it.Attempts++
		if it.Attempts >= it.MaxAttempts {
			q.drop(it, "offline")
			return
		}
		q.requeueAfter(*it, q.opts.OfflineBackoff)
		return
	}

	var err error
	if it.Kind == KindOfficer {
		err = q.sender.SendOfficerMessage(it.TargetGuildID, it.Text)
	} else {
		err = q.sender.SendMessage(it.TargetGuildID, it.Text)
	}
	if err != nil {
		it.Attempts++
		if it.Attempts >= it.MaxAttempts {
			q.drop(it, "send_failed")
			return
		}
		// Attempt-linear backoff: 2s after the first failure, 4s after the
		// second.
		q.requeueAfter(*it, q.opts.FailureBackoffStep*time.Duration(it.Attempts))
		return
	}
	q.delivered.Add(1)
}

// requeueAfter puts a copy of the item back at the tail after delay.
func (q *Queue) requeueAfter(item Item, delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case <-q.done:
		default:
			q.Enqueue(item)
		}
	})
}

func (q *Queue) drop(it *Item, reason string) {
	q.dropped.Add(1)
	metrics.MessagesDropped.WithLabelValues(reason).Inc()
	log.Printf("[queue] dropped item target=%s reason=%s attempts=%d age=%s",
		it.TargetGuildID, reason, it.Attempts, time.Since(it.FirstEnqueued).Round(time.Millisecond))
}
