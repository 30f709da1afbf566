// Package collector turns per-signal metric callbacks into history writes
// and, for embedded pages, relay posts.
package collector

import (
	"context"

	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/relay"
)

// Metric is one measurement or update of a signal, as reported by the
// page instrumentation.
type Metric struct {
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	Rating         string  `json:"rating,omitempty"`
	ID             string  `json:"id,omitempty"`
	NavigationType string  `json:"navigationType,omitempty"`
}

// PageContext is the reporting page's view of itself.
type PageContext struct {
	Pathname string
	Origin   string
	// Embedded is set when the page runs inside another frame.
	Embedded bool
}

// Callback receives metric updates for one signal.
type Callback func(ctx context.Context, page PageContext, m Metric)

// Source delivers metric updates for the signals callbacks are registered
// on.
type Source interface {
	On(signal string, fn Callback)
}

// Store is the history write path used by the collector.
type Store interface {
	IsSignal(name string) bool
	Signals() []string
	SavePerformanceSnapshot(ctx context.Context, page string, metrics map[string]*float64, overallScore *float64)
}

// Observer is notified of collector outcomes.
type Observer interface {
	Accepted(signal string)
	Ignored()
	Relayed()
}

type noopObserver struct{}

func (noopObserver) Accepted(string) {}
func (noopObserver) Ignored()        {}
func (noopObserver) Relayed()        {}

type Option func(*Collector)

// WithObserver registers an observer for collector outcomes.
func WithObserver(o Observer) Option {
	return func(c *Collector) {
		if o != nil {
			c.observer = o
		}
	}
}

type Collector struct {
	store    Store
	relay    relay.Relay
	observer Observer
	logger   logger.Logger
}

// New returns a collector writing to store and relaying through r. A nil r
// disables relaying.
func New(store Store, r relay.Relay, opts ...Option) *Collector {
	if r == nil {
		r = relay.Discard{}
	}
	c := &Collector{
		store:    store,
		relay:    r,
		observer: noopObserver{},
		logger:   logger.Component("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register installs one callback per tracked signal on src.
func (c *Collector) Register(src Source) {
	for _, signal := range c.store.Signals() {
		src.On(signal, func(ctx context.Context, page PageContext, m Metric) {
			c.Handle(ctx, page, m)
		})
	}
}

// Handle records m for page. It reports false when m is not a tracked
// signal, in which case nothing is written or relayed.
//
// Every accepted update is its own write; repeated updates of a signal are
// neither batched nor deduplicated.
func (c *Collector) Handle(ctx context.Context, page PageContext, m Metric) bool {
	if !c.store.IsSignal(m.Name) {
		c.observer.Ignored()
		c.logger.Debug().Str("name", m.Name).Msg("Ignoring untracked metric")
		return false
	}

	value := m.Value
	c.store.SavePerformanceSnapshot(ctx, page.Pathname, map[string]*float64{m.Name: &value}, nil)
	c.observer.Accepted(m.Name)

	c.logger.Debug().
		Str("page", page.Pathname).
		Str("name", m.Name).
		Float64("value", m.Value).
		Str("rating", m.Rating).
		Bool("embedded", page.Embedded).
		Msg("Metric recorded")

	if !page.Embedded {
		return true
	}
	if page.Origin == "" || page.Origin == "*" {
		c.logger.Debug().Str("page", page.Pathname).Msg("Embedded page without an origin, not relaying")
		return true
	}

	c.relay.Post(relay.NewMessage(relay.Metric{
		Name:   m.Name,
		Value:  m.Value,
		Rating: m.Rating,
	}, page.Pathname), page.Origin)
	c.observer.Relayed()

	return true
}
