package collector_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/vitalsd/internal/collector"
	"codeberg.org/mutker/vitalsd/internal/history"
	"codeberg.org/mutker/vitalsd/internal/relay"
	"codeberg.org/mutker/vitalsd/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	msg    relay.Message
	target string
}

type fakeRelay struct {
	posts []post
}

func (f *fakeRelay) Post(msg relay.Message, targetOrigin string) {
	f.posts = append(f.posts, post{msg: msg, target: targetOrigin})
}

func newCollector(t *testing.T) (*collector.Collector, *history.Store, *fakeRelay) {
	t.Helper()
	store, err := history.New(storage.NewMemory(), history.DefaultConfig())
	require.NoError(t, err)
	r := &fakeRelay{}
	return collector.New(store, r), store, r
}

var topLevel = collector.PageContext{Pathname: "/home", Origin: "https://shop.example"}

func TestHandleWritesOneSnapshot(t *testing.T) {
	ctx := context.Background()
	c, store, r := newCollector(t)

	ok := c.Handle(ctx, topLevel, collector.Metric{Name: "LCP", Value: 2300, Rating: "good", ID: "v4-1"})
	require.True(t, ok)

	h, found := store.GetHistoryForPage(ctx, "/home")
	require.True(t, found)
	require.Len(t, h.Metrics["LCP"], 1)
	assert.Equal(t, 2300.0, h.Metrics["LCP"][0].Value)
	assert.Empty(t, h.OverallScoreHistory, "the collector never supplies a composite score")
	assert.Empty(t, r.posts, "top-level pages do not relay")
}

func TestHandleIgnoresUnknownSignal(t *testing.T) {
	ctx := context.Background()
	c, store, r := newCollector(t)

	embedded := topLevel
	embedded.Embedded = true
	ok := c.Handle(ctx, embedded, collector.Metric{Name: "FID", Value: 12})

	assert.False(t, ok)
	assert.Empty(t, store.GetPerformanceHistory(ctx))
	assert.Empty(t, r.posts)
}

func TestHandleRelaysWhenEmbedded(t *testing.T) {
	ctx := context.Background()
	c, store, r := newCollector(t)

	page := collector.PageContext{Pathname: "/checkout", Origin: "https://shop.example", Embedded: true}
	require.True(t, c.Handle(ctx, page, collector.Metric{Name: "CLS", Value: 0.12, Rating: "needs-improvement", ID: "v4-9", NavigationType: "navigate"}))

	require.Len(t, r.posts, 1)
	p := r.posts[0]
	assert.Equal(t, "https://shop.example", p.target)
	assert.Equal(t, relay.Message{
		Type:     relay.MessageType,
		Metric:   relay.Metric{Name: "CLS", Value: 0.12, Rating: "needs-improvement"},
		Pathname: "/checkout",
	}, p.msg)

	_, found := store.GetHistoryForPage(ctx, "/checkout")
	assert.True(t, found, "the store write happens regardless of relaying")
}

func TestRepeatedUpdatesAreIndependentWrites(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCollector(t)

	for _, v := range []float64{0.01, 0.01, 0.04} {
		c.Handle(ctx, topLevel, collector.Metric{Name: "CLS", Value: v})
	}

	h, _ := store.GetHistoryForPage(ctx, "/home")
	require.Len(t, h.Metrics["CLS"], 3)
	assert.Equal(t, 0.04, h.Metrics["CLS"][2].Value)
}

func TestRegisterOneCallbackPerSignal(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCollector(t)
	d := collector.NewDispatcher()
	c.Register(d)

	for _, name := range history.DefaultSignals {
		assert.True(t, d.Dispatch(ctx, topLevel, collector.Metric{Name: name, Value: 1}), name)
	}
	assert.False(t, d.Dispatch(ctx, topLevel, collector.Metric{Name: "UNKNOWN", Value: 1}))

	h, _ := store.GetHistoryForPage(ctx, "/home")
	assert.Len(t, h.Metrics, len(history.DefaultSignals))
	for _, name := range history.DefaultSignals {
		assert.Len(t, h.Metrics[name], 1, name)
	}
}

type countingObserver struct {
	accepted map[string]int
	ignored  int
	relayed  int
}

func (o *countingObserver) Accepted(s string) { o.accepted[s]++ }
func (o *countingObserver) Ignored()          { o.ignored++ }
func (o *countingObserver) Relayed()          { o.relayed++ }

func TestObserverCounts(t *testing.T) {
	ctx := context.Background()
	store, err := history.New(storage.NewMemory(), history.DefaultConfig())
	require.NoError(t, err)
	obs := &countingObserver{accepted: map[string]int{}}
	c := collector.New(store, nil, collector.WithObserver(obs))

	embedded := topLevel
	embedded.Embedded = true
	c.Handle(ctx, embedded, collector.Metric{Name: "TTFB", Value: 210})
	c.Handle(ctx, topLevel, collector.Metric{Name: "TTFB", Value: 220})
	c.Handle(ctx, topLevel, collector.Metric{Name: "nope", Value: 1})

	assert.Equal(t, 2, obs.accepted["TTFB"])
	assert.Equal(t, 1, obs.ignored)
	assert.Equal(t, 1, obs.relayed)
}

func TestEmbeddedWithoutOriginIsNotRelayed(t *testing.T) {
	ctx := context.Background()
	store, err := history.New(storage.NewMemory(), history.DefaultConfig())
	require.NoError(t, err)
	r := &fakeRelay{}
	obs := &countingObserver{accepted: map[string]int{}}
	c := collector.New(store, r, collector.WithObserver(obs))

	for _, origin := range []string{"", "*"} {
		page := collector.PageContext{Pathname: "/frame", Origin: origin, Embedded: true}
		require.True(t, c.Handle(ctx, page, collector.Metric{Name: "LCP", Value: 1800}))
	}

	assert.Empty(t, r.posts)
	assert.Zero(t, obs.relayed)
	assert.Equal(t, 2, obs.accepted["LCP"], "the store write still happens")
}
