package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/workyard/internal/notify"
)

// subscriberBuffer is how many events a slow stream may fall behind before
// new events are dropped for it.
const subscriberBuffer = 16

// Broker fans published events out to open event streams. It is a
// notify.Sink, so transitions reach browsers the same way they reach chat.
type Broker struct {
	mu   sync.Mutex
	subs map[chan notify.Event]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan notify.Event]struct{})}
}

// Name implements notify.Sink.
func (b *Broker) Name() string { return "events" }

// Publish implements notify.Sink. It never blocks on a slow subscriber.
func (b *Broker) Publish(_ context.Context, e notify.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Subscribe registers a stream. The returned func unregisters it.
func (b *Broker) Subscribe() (<-chan notify.Event, func()) {
	ch := make(chan notify.Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

// Subscribers reports how many streams are open.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// handleEvents streams published events as server-sent events.
func handleEvents(b *Broker, heartbeatEvery time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		var events <-chan notify.Event
		if b != nil {
			ch, cancel := b.Subscribe()
			defer cancel()
			events = ch
		}

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatEvery)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case e := <-events:
				writeSSE(c.Writer, "notification", e)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
