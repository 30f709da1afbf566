// Package history persists bounded per-page performance history with
// baseline markers.
//
// The whole history is one JSON document under a fixed key. Every call is a
// full read-modify-write of that document, finished before the call returns.
// Calls are serialized within a process. Separate processes sharing one
// backend race on the document and the last writer wins, unless
// Config.CompareAndSwap is enabled on a backend implementing
// storage.Swapper.
//
// Failures never reach the caller: an unreadable document reads as empty
// and a failed write is logged and dropped.
package history

import (
	"context"
	"encoding/json"
	"sync"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/storage"
	"github.com/coder/quartz"
)

// Observer is notified of store outcomes.
type Observer interface {
	SnapshotAppended(signal string)
	StorageFailed(op string)
	WriteConflict()
}

type noopObserver struct{}

func (noopObserver) SnapshotAppended(string) {}
func (noopObserver) StorageFailed(string)    {}
func (noopObserver) WriteConflict()          {}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for snapshot timestamps.
func WithClock(c quartz.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithObserver registers an observer for store outcomes.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

type Store struct {
	storage  storage.Storage
	cfg      Config
	signals  map[string]struct{}
	clock    quartz.Clock
	observer Observer
	logger   logger.Logger
	mu       sync.Mutex
}

// New returns a Store over st. A nil st behaves as an unavailable medium.
func New(st storage.Storage, cfg Config, opts ...Option) (*Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if st == nil {
		st = storage.Unavailable{}
	}

	s := &Store{
		storage:  st,
		cfg:      cfg,
		signals:  make(map[string]struct{}, len(cfg.Signals)),
		clock:    quartz.NewReal(),
		observer: noopObserver{},
		logger:   logger.Component("history"),
	}
	for _, name := range cfg.Signals {
		s.signals[name] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// IsSignal reports whether name is a tracked signal.
func (s *Store) IsSignal(name string) bool {
	_, ok := s.signals[name]
	return ok
}

// Signals returns the tracked signal names in configuration order.
func (s *Store) Signals() []string {
	return append([]string(nil), s.cfg.Signals...)
}

// Now returns the store clock in Unix milliseconds.
func (s *Store) Now() int64 {
	return s.clock.Now().UnixMilli()
}

// SavePerformanceSnapshot appends a snapshot stamped now for every tracked,
// non-nil entry of metrics, and for overallScore when it is non-nil.
// Untracked names are ignored. A call with nothing to append writes nothing.
func (s *Store) SavePerformanceSnapshot(ctx context.Context, page string, metrics map[string]*float64, overallScore *float64) {
	var appended []string

	written := s.update(ctx, "save", func(doc Document) bool {
		now := s.Now()
		appended = appended[:0]

		h := doc[page]
		ensure := func() *PagePerformanceHistory {
			if h == nil {
				h = newPageHistory(page)
				doc[page] = h
			}
			return h
		}

		for name, value := range metrics {
			if value == nil || !s.IsSignal(name) {
				continue
			}
			ph := ensure()
			ph.Metrics[name] = appendBounded(ph.Metrics[name], MetricSnapshot{Value: *value, Timestamp: now}, s.cfg.MaxEntries)
			appended = append(appended, name)
		}

		if overallScore != nil {
			ph := ensure()
			ph.OverallScoreHistory = appendBounded(ph.OverallScoreHistory, MetricSnapshot{Value: *overallScore, Timestamp: now}, s.cfg.MaxEntries)
			appended = append(appended, "overall")
		}

		return len(appended) > 0
	})

	if !written {
		return
	}
	for _, series := range appended {
		s.observer.SnapshotAppended(series)
	}
}

// GetPerformanceHistory returns every page history. It is never nil.
func (s *Store) GetPerformanceHistory(ctx context.Context) Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, _, err := s.load(ctx)
	if err != nil {
		return Document{}
	}
	return doc
}

// GetHistoryForPage returns the history of page, or false if it has none.
func (s *Store) GetHistoryForPage(ctx context.Context, page string) (*PagePerformanceHistory, bool) {
	h, ok := s.GetPerformanceHistory(ctx)[page]
	return h, ok
}

// ClearPerformanceHistory removes the whole document.
func (s *Store) ClearPerformanceHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.cfg.Key); err != nil {
		s.storageFailed("clear", err)
		return
	}
	s.logger.Info().Str("key", s.cfg.Key).Msg("Performance history cleared")
}

// SetBaseline marks timestamp (Unix ms) as the baseline of page. Pages
// without history are left alone.
func (s *Store) SetBaseline(ctx context.Context, page string, timestamp int64) {
	s.update(ctx, "set_baseline", func(doc Document) bool {
		h, ok := doc[page]
		if !ok {
			return false
		}
		ts := timestamp
		h.BaselineTimestamp = &ts
		return true
	})
}

// ClearBaseline removes the baseline of page, if any.
func (s *Store) ClearBaseline(ctx context.Context, page string) {
	s.update(ctx, "clear_baseline", func(doc Document) bool {
		h, ok := doc[page]
		if !ok || h.BaselineTimestamp == nil {
			return false
		}
		h.BaselineTimestamp = nil
		return true
	})
}

// update runs one read-modify-write cycle. mutate reports whether it
// changed the document; unchanged documents are not written back. mutate
// runs again on every compare-and-swap retry. update reports whether a
// changed document reached storage.
func (s *Store) update(ctx context.Context, op string, mutate func(Document) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	swapper, canSwap := s.storage.(storage.Swapper)
	useSwap := s.cfg.CompareAndSwap && canSwap

	attempts := 1
	if useSwap {
		attempts += s.cfg.MaxRetries
	}

	for i := 0; i < attempts; i++ {
		doc, raw, exists, err := s.load(ctx)
		if err != nil {
			return false
		}
		if !mutate(doc) {
			return false
		}

		next, err := json.Marshal(doc)
		if err != nil {
			s.logger.ErrorWithCode(errors.New().Wrap(ErrEncode, err)).Str("op", op).Msg("Failed to encode performance history")
			return false
		}

		if !useSwap {
			if err := s.storage.Set(ctx, s.cfg.Key, next); err != nil {
				s.storageFailed(op, err)
				return false
			}
			return true
		}

		var prev []byte
		if exists {
			prev = raw
		}
		swapped, err := swapper.CompareAndSwap(ctx, s.cfg.Key, prev, next)
		if err != nil {
			s.storageFailed(op, err)
			return false
		}
		if swapped {
			return true
		}

		s.observer.WriteConflict()
		s.logger.Debug().Str("op", op).Int("attempt", i+1).Msg("Performance history changed concurrently, retrying")
	}

	s.logger.Warn().
		Str("op", op).
		Int("attempts", attempts).
		Str("error_code", string(errors.ErrConflict)).
		Msg("Dropping write after repeated conflicts")
	return false
}

// load reads and decodes the document. A missing or malformed document
// decodes as empty; only a failing medium returns an error.
func (s *Store) load(ctx context.Context) (Document, []byte, bool, error) {
	raw, ok, err := s.storage.Get(ctx, s.cfg.Key)
	if err != nil {
		s.storageFailed("read", err)
		return nil, nil, false, err
	}
	if !ok {
		return Document{}, nil, false, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn().Err(err).Str("key", s.cfg.Key).Msg("Ignoring malformed performance history")
		return Document{}, raw, true, nil
	}

	for page, h := range doc {
		if h == nil {
			delete(doc, page)
			continue
		}
		if h.Page == "" {
			h.Page = page
		}
		if h.Metrics == nil {
			h.Metrics = make(map[string][]MetricSnapshot)
		}
		if h.OverallScoreHistory == nil {
			h.OverallScoreHistory = []MetricSnapshot{}
		}
	}
	if doc == nil {
		doc = Document{}
	}

	return doc, raw, true, nil
}

func (s *Store) storageFailed(op string, err error) {
	s.observer.StorageFailed(op)
	s.logger.Warn().
		Err(err).
		Str("op", op).
		Str("error_code", string(errors.CodeOf(err))).
		Msg("Performance history storage unavailable")
}
