package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/observability"
)

const defaultQueueSize = 16

// Event announces that a collection reached a new revision.
type Event struct {
	Key      collection.Key `json:"key"`
	Revision int64          `json:"revision"`
	Origin   string         `json:"origin,omitempty"`
	At       time.Time      `json:"at"`
}

// Handler receives change events. Handlers must tolerate repeated and irrelevant events.
type Handler func(Event)

// Bridge carries encoded events between nodes serving the same collections.
type Bridge interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func(payload []byte)) error
}

type envelope struct {
	Source string    `json:"source"`
	Event  Event     `json:"event"`
	SentAt time.Time `json:"sent_at"`
}

// Hub fans change events out to the subscriptions of each key, locally and through bridges.
type Hub struct {
	mu        sync.RWMutex
	subs      map[collection.Key]map[*Subscription]struct{}
	queueSize int
	bridges   []Bridge
	nodeID    string
	logger    zerolog.Logger
}

// Option customises a Hub.
type Option func(*Hub)

// WithBridge forwards announcements to other nodes through b.
func WithBridge(b Bridge) Option {
	return func(h *Hub) {
		if b != nil {
			h.bridges = append(h.bridges, b)
		}
	}
}

// WithQueueSize sets the per-subscription buffer.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

// NewHub constructs a change notifier.
func NewHub(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[collection.Key]map[*Subscription]struct{}),
		queueSize: defaultQueueSize,
		nodeID:    uuid.NewString(),
		logger:    logger.With().Str("component", "change_notifier").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NodeID identifies this process on the bridges.
func (h *Hub) NodeID() string { return h.nodeID }

// Start begins consuming remote events from every bridge until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	for _, bridge := range h.bridges {
		if err := bridge.Subscribe(ctx, h.handleRemote); err != nil {
			return err
		}
		h.logger.Info().Str("bridge", bridge.Name()).Msg("change bridge subscribed")
	}
	return nil
}

// Announce broadcasts that key reached revision. The originating view is skipped; it already
// holds the state it just saved.
func (h *Hub) Announce(ctx context.Context, key collection.Key, revision int64, origin string) {
	event := Event{Key: key, Revision: revision, Origin: origin, At: time.Now().UTC()}
	h.deliver(event)
	h.publish(ctx, event)
}

// Subscribe registers handler for changes of key. Events announced by origin are not delivered.
func (h *Hub) Subscribe(key collection.Key, origin string, handler Handler) *Subscription {
	sub := &Subscription{
		hub:     h,
		key:     key,
		origin:  origin,
		handler: handler,
		queue:   make(chan Event, h.queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[*Subscription]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()
	return sub
}

// Subscribers reports the number of live subscriptions for key.
func (h *Hub) Subscribers(key collection.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

func (h *Hub) deliver(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.Key] {
		if event.Origin != "" && sub.origin == event.Origin {
			continue
		}
		select {
		case sub.queue <- event:
			observability.NotifierDelivered().WithLabelValues(event.Key.String()).Inc()
		default:
			observability.NotifierDropped().WithLabelValues(event.Key.String()).Inc()
			h.logger.Warn().Str("collection", event.Key.String()).Str("origin", sub.origin).Msg("dropping change event for slow subscriber")
		}
	}
}

func (h *Hub) publish(ctx context.Context, event Event) {
	if len(h.bridges) == 0 {
		return
	}

	payload, err := json.Marshal(envelope{Source: h.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode change event")
		return
	}

	for _, bridge := range h.bridges {
		if err := bridge.Publish(ctx, payload); err != nil {
			h.logger.Warn().Err(err).Str("bridge", bridge.Name()).Msg("failed to publish change event")
		}
	}
}

func (h *Hub) handleRemote(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warn().Err(err).Msg("invalid change event payload")
		return
	}
	if env.Source == h.nodeID {
		return
	}
	h.deliver(env.Event)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.key]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.key)
		}
	}
}

// Subscription is one handler's registration for one key.
type Subscription struct {
	hub     *Hub
	key     collection.Key
	origin  string
	handler Handler
	queue   chan Event
	done    chan struct{}
	once    sync.Once
}

// Key returns the subscribed collection.
func (s *Subscription) Key() collection.Key { return s.key }

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(event)
		}
	}
}
