// Package notify announces cache changes to observers with
// latest-value-only semantics.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ReasonTextNote    = "text-note"
	ReasonRepost      = "repost"
	ReasonReaction    = "reaction"
	ReasonContactList = "contact-list"
)

// Marker is a snapshot marker. Observers re-read the cache when one arrives.
type Marker struct {
	Revision    string
	Sequence    uint64
	Reason      string
	PublishedAt time.Time
}

// DispatcherConfig describes the dependencies of a Dispatcher.
type DispatcherConfig struct {
	Clock     func() time.Time
	Revisions RevisionSource
	Logger    *zap.Logger
}

// Dispatcher fans markers out to subscribers. Each subscriber holds at most
// one unread marker; a newer publish replaces it.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	watchers    sync.WaitGroup

	publishMu sync.Mutex
	sequence  uint64
	latest    *Marker

	clock     func() time.Time
	revisions RevisionSource
	logger    *zap.Logger
}

type subscriber struct {
	id     int64
	stream chan Marker
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	revisions := cfg.Revisions
	if revisions == nil {
		revisions = NewRevisionSource()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subscribers: make(map[int64]*subscriber),
		clock:       clock,
		revisions:   revisions,
		logger:      logger,
	}
}

// Subscribe registers an observer. The returned channel delivers the newest
// marker; the cleanup function, or cancelling ctx, unregisters it.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Marker, func()) {
	sub := &subscriber{stream: make(chan Marker, 1)}
	d.registerSubscriber(sub)

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(sub.id)
			close(done)
		})
	}
	d.watchers.Add(1)
	go func() {
		defer d.watchers.Done()
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

// Publish records a new marker and offers it to every subscriber without
// blocking.
func (d *Dispatcher) Publish(reason string) Marker {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()

	revision, err := d.revisions.NewRevision()
	if err != nil {
		d.logger.Warn("marker revision generation failed", zap.Error(err))
		revision = ""
	}
	d.sequence++
	marker := Marker{
		Revision:    revision,
		Sequence:    d.sequence,
		Reason:      reason,
		PublishedAt: d.clock().UTC(),
	}
	d.latest = &marker

	d.mu.RLock()
	targets := make([]*subscriber, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		targets = append(targets, sub)
	}
	d.mu.RUnlock()

	for _, sub := range targets {
		offer(sub.stream, marker)
	}
	return marker
}

// Latest returns the most recent marker, if any was published.
func (d *Dispatcher) Latest() (Marker, bool) {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()
	if d.latest == nil {
		return Marker{}, false
	}
	return *d.latest, true
}

// SubscriberCount returns the number of registered observers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// offer replaces any unread marker in the one-slot stream.
func offer(stream chan Marker, marker Marker) {
	select {
	case stream <- marker:
		return
	default:
	}
	select {
	case <-stream:
	default:
	}
	select {
	case stream <- marker:
	default:
	}
}

func (d *Dispatcher) registerSubscriber(sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	sub.id = d.nextID
	d.subscribers[sub.id] = sub
}

func (d *Dispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
