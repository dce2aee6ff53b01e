package stream

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// Reserved topics. Everything else is a ticket id.
const (
	// AdminSupportFeed carries new support tickets to moderator dashboards.
	AdminSupportFeed = "admin:support"
	// StaffChatFeed carries the staff-only chat room.
	StaffChatFeed = "staff:chat"
)

// Event is the payload fanned out to stream subscribers of a ticket.
type Event struct {
	Type    string `json:"type"`
	Message any    `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Ticket  any    `json:"ticket,omitempty"`
}

// ConnectedEvent is sent once on admission.
func ConnectedEvent() Event {
	return Event{Type: "connected"}
}

// MessageEvent wraps a new transcript message.
func MessageEvent(message any) Event {
	return Event{Type: "message", Message: message}
}

// StatusEvent announces a terminal lifecycle transition.
func StatusEvent(status domain.TicketStatus, reason string) Event {
	return Event{Type: "status", Status: string(status), Reason: reason}
}

// ClearEvent tells subscribers the transcript was wiped.
func ClearEvent() Event {
	return Event{Type: "clear"}
}

// NewTicketEvent announces a freshly opened ticket on the admin feed.
func NewTicketEvent(ticket any) Event {
	return Event{Type: "new_ticket", Ticket: ticket}
}

// Frame renders the event as a text/event-stream data frame.
func (e Event) Frame() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// Subscription is one live sink registered for a topic. Frames arrive on C in
// publish order; the channel is closed when the subscription is removed.
type Subscription struct {
	id    string
	topic string
	ch    chan []byte
	C     <-chan []byte
}

// Topic returns the ticket id (or feed name) this subscription listens on.
func (s *Subscription) Topic() string {
	return s.topic
}

// Broadcaster is an in-memory publish/subscribe registry keyed by ticket id.
// It is constructed once per process and shared by all connection handlers.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscription
	buffer int
	logger *zap.Logger
}

// NewBroadcaster creates an empty registry. bufferSize bounds how many
// undelivered frames a slow subscriber may accumulate before it is treated as
// disconnected.
func NewBroadcaster(bufferSize int, logger *zap.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broadcaster{
		topics: make(map[string]map[string]*Subscription),
		buffer: bufferSize,
		logger: logger,
	}
}

// Subscribe registers a new live sink for the topic.
func (b *Broadcaster) Subscribe(topic string) *Subscription {
	ch := make(chan []byte, b.buffer)
	sub := &Subscription{
		id:    uuid.NewString(),
		topic: topic,
		ch:    ch,
		C:     ch,
	}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]*Subscription)
		b.topics[topic] = subs
	}
	subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a sink. It is idempotent; removing a sink that is no
// longer registered is a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	b.removeLocked(sub)
	b.mu.Unlock()
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
	close(sub.ch)
}

// Publish delivers the event to every sink currently registered for the
// topic, best effort. A sink whose buffer is full is dropped as a dead
// connection; delivery to the remaining sinks is unaffected.
func (b *Broadcaster) Publish(topic string, event Event) {
	frame, err := event.Frame()
	if err != nil {
		if b.logger != nil {
			b.logger.Error("encode stream event", zap.String("topic", topic), zap.Error(err))
		}
		return
	}

	// Sends stay under the read lock: channels are only closed under the
	// write lock, and the sends below never block.
	b.mu.RLock()
	var dead []*Subscription
	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- frame:
		default:
			dead = append(dead, sub)
		}
	}
	b.mu.RUnlock()

	if len(dead) == 0 {
		return
	}
	b.mu.Lock()
	for _, sub := range dead {
		b.removeLocked(sub)
	}
	b.mu.Unlock()
	if b.logger != nil {
		b.logger.Debug("dropped slow stream subscribers",
			zap.String("topic", topic), zap.Int("count", len(dead)))
	}
}

// SubscriberCount returns how many sinks are registered for the topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
