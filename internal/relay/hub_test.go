package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/vitalsd/internal/relay"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	shopOrigin  = "https://shop.example"
	otherOrigin = "https://evil.example"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingObserver struct {
	mu        sync.Mutex
	delivered int
	dropped   map[string]int
}

func (o *recordingObserver) Delivered() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered++
}

func (o *recordingObserver) Dropped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dropped == nil {
		o.dropped = map[string]int{}
	}
	o.dropped[reason]++
}

func (*recordingObserver) Subscribers(int) {}

func (o *recordingObserver) droppedFor(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[reason]
}

func newHub(t *testing.T, opts ...relay.Option) *relay.Hub {
	t.Helper()
	h, err := relay.NewHub(relay.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func message(name string, value float64) relay.Message {
	return relay.NewMessage(relay.Metric{Name: name, Value: value, Rating: "good"}, "/home")
}

func TestPostReachesOnlyMatchingOrigin(t *testing.T) {
	h := newHub(t)

	_, shop, cancelShop := h.Subscribe(shopOrigin)
	defer cancelShop()
	_, other, cancelOther := h.Subscribe(otherOrigin)
	defer cancelOther()

	h.Post(message("LCP", 2100), shopOrigin)

	select {
	case msg := <-shop:
		assert.Equal(t, relay.MessageType, msg.Type)
		assert.Equal(t, "LCP", msg.Metric.Name)
		assert.Equal(t, 2100.0, msg.Metric.Value)
		assert.Equal(t, "/home", msg.Pathname)
	default:
		t.Fatal("shop subscriber got nothing")
	}

	select {
	case msg := <-other:
		t.Fatalf("other origin received %+v", msg)
	default:
	}
}

func TestPostRefusesWildcardTarget(t *testing.T) {
	obs := &recordingObserver{}
	h := newHub(t, relay.WithObserver(obs))

	_, ch, cancel := h.Subscribe(shopOrigin)
	defer cancel()

	h.Post(message("CLS", 0.01), "*")
	h.Post(message("CLS", 0.01), "")

	assert.Len(t, ch, 0)
	assert.Equal(t, 2, obs.droppedFor("invalid_target"))
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	obs := &recordingObserver{}
	h, err := relay.NewHub(relay.Config{QueueSize: 1}, relay.WithObserver(obs))
	require.NoError(t, err)
	defer h.Close()

	_, ch, cancel := h.Subscribe(shopOrigin)
	defer cancel()

	h.Post(message("FCP", 1), shopOrigin)
	h.Post(message("FCP", 2), shopOrigin)

	require.Len(t, ch, 1)
	assert.Equal(t, 1.0, (<-ch).Metric.Value, "the queued message is the first one")
	assert.Equal(t, 1, obs.droppedFor("queue_full"))
}

func TestPostWithoutSubscribersIsHarmless(t *testing.T) {
	h := newHub(t)
	assert.NotPanics(t, func() { h.Post(message("TTFB", 300), shopOrigin) })
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h, err := relay.NewHub(relay.DefaultConfig())
	require.NoError(t, err)

	_, ch, cancel := h.Subscribe(shopOrigin)
	h.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, cancel)
	assert.NotPanics(t, func() { h.Post(message("LCP", 1), shopOrigin) })

	_, late, _ := h.Subscribe(shopOrigin)
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, relay.DefaultConfig().Validate())
	assert.Error(t, relay.Config{}.Validate())

	_, err := relay.NewHub(relay.Config{QueueSize: -1})
	assert.Error(t, err)
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, origin string) (*websocket.Conn, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func TestWebsocketDelivery(t *testing.T) {
	h := newHub(t, relay.WithAllowedOrigins([]string{shopOrigin, otherOrigin}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shop, err := dial(t, ctx, srv, shopOrigin)
	require.NoError(t, err)
	defer shop.Close(websocket.StatusNormalClosure, "")

	other, err := dial(t, ctx, srv, otherOrigin)
	require.NoError(t, err)
	defer other.Close(websocket.StatusNormalClosure, "")

	// Subscriptions are registered by the handler after the upgrade.
	require.Eventually(t, func() bool { return h.Len() == 2 }, 3*time.Second, 10*time.Millisecond)

	h.Post(message("INP", 120), shopOrigin)

	var got relay.Message
	require.NoError(t, wsjson.Read(ctx, shop, &got))
	assert.Equal(t, relay.MessageType, got.Type)
	assert.Equal(t, "INP", got.Metric.Name)
	assert.Equal(t, 120.0, got.Metric.Value)
	assert.Equal(t, "/home", got.Pathname)

	// A timed-out read closes the connection, so this must be the last use
	// of other.
	readCtx, readCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer readCancel()
	var leaked relay.Message
	assert.Error(t, wsjson.Read(readCtx, other, &leaked), "other origin must not receive shop metrics")
}

func TestWebsocketRejectsUnknownOrigin(t *testing.T) {
	h := newHub(t, relay.WithAllowedOrigins([]string{shopOrigin}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dial(t, ctx, srv, otherOrigin)
	if conn != nil {
		conn.CloseNow()
	}
	assert.Error(t, err)
}

func TestWebsocketRequiresOrigin(t *testing.T) {
	h := newHub(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relay", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
