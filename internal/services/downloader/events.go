package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/denisAlshanov/ytgrab/internal/models"
)

const defaultMaxEvents = 256

// EventBus stores the recent events of one download and wakes up readers on
// every publish. It is closed after the terminal event.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []models.DownloadEvent
	changed   chan struct{}
	closed    bool
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]models.DownloadEvent, 0, maxEvents),
		changed:   make(chan struct{}),
	}
}

// Publish appends one event and assigns sequence and timestamp. Events
// published after Close are dropped and returned with a zero sequence.
func (b *EventBus) Publish(event models.DownloadEvent) models.DownloadEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return event
	}

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]models.DownloadEvent(nil), b.events[trim:]...)
	}

	close(b.changed)
	b.changed = make(chan struct{})

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []models.DownloadEvent {
	events, _, _ := b.Next(seq)
	return events
}

// Next returns events after seq together with a channel closed on the next
// publish, and whether the bus is closed. All three are read atomically, so a
// reader that waits on the channel cannot miss an event.
func (b *EventBus) Next(seq int64) ([]models.DownloadEvent, <-chan struct{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.DownloadEvent
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out, b.changed, b.closed
}

// Last returns the most recent event, if any.
func (b *EventBus) Last() (models.DownloadEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return models.DownloadEvent{}, false
	}
	return b.events[len(b.events)-1], true
}

// Close marks the stream finished and wakes up all readers.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *EventBus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Subscribe streams events after seq until the bus is closed and drained or
// ctx is done. The returned channel is closed in both cases.
func (b *EventBus) Subscribe(ctx context.Context, seq int64) <-chan models.DownloadEvent {
	out := make(chan models.DownloadEvent)

	go func() {
		defer close(out)

		last := seq
		for {
			events, changed, closed := b.Next(last)
			for _, event := range events {
				select {
				case out <- event:
					last = event.Seq
				case <-ctx.Done():
					return
				}
			}
			if closed {
				return
			}
			if len(events) > 0 {
				continue
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
