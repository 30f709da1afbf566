// Package relay forwards metric updates to dashboards that embed the
// instrumented page.
//
// Dashboards subscribe over a websocket. A subscription is bound to the
// Origin of its handshake, and a message posted for an origin reaches only
// subscribers of exactly that origin. Posting is non-blocking: a slow
// subscriber whose queue is full misses the message.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/vitalsd/internal/logger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// Observer is notified of relay outcomes.
type Observer interface {
	Delivered()
	Dropped(reason string)
	Subscribers(n int)
}

type noopObserver struct{}

func (noopObserver) Delivered()      {}
func (noopObserver) Dropped(string)  {}
func (noopObserver) Subscribers(int) {}

type Option func(*Hub)

// WithObserver registers an observer for relay outcomes.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithAllowedOrigins sets the origins allowed to open a subscription.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.originPatterns = originHosts(origins)
	}
}

type subscriber struct {
	id     string
	origin string
	queue  chan Message
}

type Hub struct {
	cfg            Config
	originPatterns []string
	observer       Observer
	logger         logger.Logger

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

func NewHub(cfg Config, opts ...Option) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Hub{
		cfg:      cfg,
		observer: noopObserver{},
		logger:   logger.Component("relay"),
		subs:     make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Post queues msg for every subscriber of targetOrigin. An empty or
// wildcard target is refused.
func (h *Hub) Post(msg Message, targetOrigin string) {
	if targetOrigin == "" || targetOrigin == "*" {
		h.observer.Dropped("invalid_target")
		h.logger.Debug().Str("target_origin", targetOrigin).Msg("Refusing relay without a concrete target origin")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.origin != targetOrigin {
			continue
		}
		select {
		case sub.queue <- msg:
			h.observer.Delivered()
		default:
			h.observer.Dropped("queue_full")
			h.logger.Debug().Str("subscriber", sub.id).Msg("Relay queue full, dropping message")
		}
	}
}

// Subscribe registers a subscriber for origin. The returned channel is
// closed by cancel or by Close.
func (h *Hub) Subscribe(origin string) (id string, messages <-chan Message, cancel func()) {
	sub := &subscriber{
		id:     uuid.NewString(),
		origin: origin,
		queue:  make(chan Message, h.cfg.QueueSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.queue)
		return sub.id, sub.queue, func() {}
	}
	h.subs[sub.id] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.observer.Subscribers(n)
	h.logger.Info().Str("subscriber", sub.id).Str("origin", origin).Msg("Relay subscriber connected")

	return sub.id, sub.queue, func() { h.unsubscribe(sub.id) }
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.queue)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.observer.Subscribers(n)
		h.logger.Info().Str("subscriber", id).Msg("Relay subscriber disconnected")
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later posts reach nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.queue)
		delete(h.subs, id)
	}
	h.observer.Subscribers(0)
}

// ServeHTTP upgrades the request to a websocket and streams messages for
// the request's Origin until either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		http.Error(w, "relay subscriptions require an Origin header", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug().Err(err).Str("origin", origin).Msg("Relay handshake rejected")
		return
	}
	defer conn.CloseNow()

	// Subscribers never send; CloseRead handles control frames and cancels
	// ctx when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	_, messages, cancel := h.Subscribe(origin)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "relay shutting down")
				return
			}
			if err := write(ctx, conn, msg); err != nil {
				h.observer.Dropped("write_failed")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
