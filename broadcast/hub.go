// Package broadcast fans out payload-free change notifications. Consumers
// re-read the entity store on receipt; the channel never carries entity data.
package broadcast

import (
	"sync"
	"time"
)

// Topic tags which part of the store changed.
type Topic string

const (
	TopicDocs      Topic = "docs"
	TopicLocations Topic = "locations"
	TopicMoves     Topic = "moves"
	TopicAll       Topic = "*"
)

// Message kinds.
const (
	KindUpdate = "update"
	KindFlush  = "flush"
)

// Message is the wire shape shared by all transports.
type Message struct {
	Kind      string `json:"kind"`
	Topic     Topic  `json:"topic"`
	Timestamp string `json:"timestamp"`
}

type subscriber struct {
	topic Topic
	ch    chan Message
}

// Hub delivers messages to in-process subscribers and mirrors local updates
// to an attached relay. Delivery is best-effort and duplicate-tolerant:
// subscribers with a full buffer miss messages instead of blocking the
// publisher, which is fine because consumers re-pull a full snapshot anyway.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	relay  *Relay
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers a consumer for one topic (TopicAll for everything).
// The returned cancel func must be called to release the subscription.
func (h *Hub) Subscribe(topic Topic, buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{topic: topic, ch: make(chan Message, buffer)}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish announces a local store change on the given topic, delivering to
// in-process subscribers and to the relay when one is attached.
func (h *Hub) Publish(topic Topic) {
	msg := Message{Kind: KindUpdate, Topic: topic, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
	h.deliver(msg)

	h.mu.Lock()
	relay := h.relay
	h.mu.Unlock()
	if relay != nil {
		relay.send(msg)
	}
}

// Flush tells local consumers to re-read the store after connectivity came
// back. It is not mirrored to the relay.
func (h *Hub) Flush() {
	h.deliver(Message{Kind: KindFlush, Topic: TopicAll, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)})
}

// AttachRelay mirrors future publishes to r. Messages arriving from the
// relay are delivered locally only, so they cannot loop back outward.
func (h *Hub) AttachRelay(r *Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.topic != TopicAll && msg.Topic != TopicAll && sub.topic != msg.Topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}
