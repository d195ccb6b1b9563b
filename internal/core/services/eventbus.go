package services

import (
	"log/slog"
	"sync"
	"time"
)

// RunEvent is one progress event of a loop run, as published to subscribers.
type RunEvent struct {
	RunID     string `json:"run_id"`
	Stage     string `json:"stage"`
	Iteration int    `json:"iteration"`
	Tool      string `json:"tool,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventBus fans run progress events out to subscribers (SSE streams, logs).
type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan RunEvent // key: run ID
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan RunEvent),
	}
}

// Subscribe returns a channel receiving events for a specific run and an
// unsubscribe function that closes it.
func (b *EventBus) Subscribe(runID string) (<-chan RunEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan RunEvent, 100) // buffered so a slow reader can't block the loop
	b.subs[runID] = append(b.subs[runID], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[runID]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[runID] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[runID]) == 0 {
			delete(b.subs, runID)
		}
	}
	return ch, unsub
}

// Publish delivers a progress event to every subscriber of the run.
// Full subscriber buffers drop events rather than stalling the publisher.
func (b *EventBus) Publish(runID string, ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := RunEvent{
		RunID:     runID,
		Stage:     ev.Stage,
		Iteration: ev.Iteration,
		Tool:      ev.Tool,
		Detail:    ev.Detail,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, ch := range b.subs[runID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping run event, subscriber buffer full", "run_id", runID, "stage", ev.Stage)
		}
	}
}
