// Package sse implements a Server-Sent Events broker for profile change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	ProfileCreated   = "profile.created"
	ProfileUpdated   = "profile.updated"
	ProfileDeleted   = "profile.deleted"
	SelectionUpdated = "selection.updated"
)

// AllTopics subscribes to every topic.
const AllTopics = ""

// Event represents an SSE event to broadcast on a topic.
type Event struct {
	Topic string `json:"-"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

type subscribeReq struct {
	ch    chan []byte
	topic string
}

// Broker manages SSE client connections and broadcasts events. Topics are
// profile names.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-topic throttle timestamps). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	selectionMin time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	selectionCh   chan string
	trailingCh    chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. selection.updated events are sent at
// most once per throttle interval per topic; changes inside the interval
// are coalesced into one event when it ends.
func NewBroker(selectionThrottle time.Duration) *Broker {
	if selectionThrottle <= 0 {
		selectionThrottle = time.Second
	}

	b := &Broker{
		selectionMin:  selectionThrottle,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		selectionCh:   make(chan string, 256),
		trailingCh:    make(chan string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastSelection := make(map[string]time.Time)
	// Topics whose selection changed inside the throttle window, and the
	// timers that publish them when the window closes.
	pending := make(map[string]bool)
	timers := make(map[string]*time.Timer)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, topic := range clients {
			if topic != AllTopics && topic != event.Topic {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for _, t := range timers {
				t.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = req.topic

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case topic := <-b.selectionCh:
			now := time.Now()
			if wait := b.selectionMin - now.Sub(lastSelection[topic]); wait > 0 {
				pending[topic] = true
				if timers[topic] == nil {
					timers[topic] = time.AfterFunc(wait, func() {
						select {
						case b.trailingCh <- topic:
						case <-b.stopped:
						}
					})
				}
				continue
			}
			lastSelection[topic] = now
			broadcast(Event{Topic: topic, Type: SelectionUpdated, Data: map[string]string{"profile": topic}})

		case topic := <-b.trailingCh:
			delete(timers, topic)
			if !pending[topic] {
				continue
			}
			delete(pending, topic)
			lastSelection[topic] = time.Now()
			broadcast(Event{Topic: topic, Type: SelectionUpdated, Data: map[string]string{"profile": topic}})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client for topic and returns its channel.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, topic: topic}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the clients of its topic.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishProfileEvent publishes a change of a profile source. kind is one
// of "created", "updated" or "deleted".
func (b *Broker) PublishProfileEvent(kind, profile string) {
	var typ string
	switch kind {
	case "created":
		typ = ProfileCreated
	case "updated":
		typ = ProfileUpdated
	case "deleted":
		typ = ProfileDeleted
	default:
		return
	}
	b.Publish(Event{Topic: profile, Type: typ, Data: map[string]string{"profile": profile}})
}

// PublishSelection publishes a throttled selection.updated event.
func (b *Broker) PublishSelection(profile string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.selectionCh <- profile:
	case <-b.stopped:
	}
}

// ServeHTTP streams every topic (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.ServeTopic(w, r, AllTopics, false)
}

// ServeTopic streams the events of one topic. With once set the stream
// ends after the first event, and clients reconnect to wait for the next.
func (b *Broker) ServeTopic(w http.ResponseWriter, r *http.Request, topic string, once bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(topic)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
			if once {
				return
			}
		}
	}
}
