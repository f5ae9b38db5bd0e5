package thing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the thing package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	// historyQueueSize bounds pending history writes before changes are dropped.
	historyQueueSize = 256

	// historyWriteTimeout bounds one insert.
	historyWriteTimeout = 5 * time.Second

	// historyPruneInterval is how often old entries are removed when retention is set.
	historyPruneInterval = time.Hour
)

// HistoryWriter persists accepted writes off the writer's goroutine.
//
// Observe never blocks: when the queue is full the change is dropped and
// counted. History is a local audit trail, not a source of truth.
type HistoryWriter struct {
	repo      HistoryRepository
	retention time.Duration
	logger    Logger

	queue   chan Change
	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHistoryWriter creates a writer over repo. retention of zero keeps everything.
func NewHistoryWriter(repo HistoryRepository, retention time.Duration, logger Logger) *HistoryWriter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &HistoryWriter{
		repo:      repo,
		retention: retention,
		logger:    logger,
		queue:     make(chan Change, historyQueueSize),
		done:      make(chan struct{}),
	}
}

// Observe queues a change for persistence. It satisfies Observer.
func (w *HistoryWriter) Observe(c Change) {
	select {
	case w.queue <- c:
	default:
		w.dropped.Add(1)
		w.logger.Warn("history queue full, dropping change",
			"property", c.Property,
			"dropped_total", w.dropped.Load(),
		)
	}
}

// Dropped returns how many changes were discarded because the queue was full.
func (w *HistoryWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Start begins persisting queued changes until Stop is called or ctx ends.
func (w *HistoryWriter) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.run(ctx)
	})
}

// Stop persists anything still queued and waits for the writer to exit.
func (w *HistoryWriter) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			return
		}
		w.cancel()
		<-w.done
	})
}

func (w *HistoryWriter) run(ctx context.Context) {
	defer close(w.done)

	var prune <-chan time.Time
	if w.retention > 0 {
		ticker := time.NewTicker(historyPruneInterval)
		defer ticker.Stop()
		prune = ticker.C
		w.prune()
	}

	for {
		select {
		case c := <-w.queue:
			w.write(c)
		case <-prune:
			w.prune()
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

// drain writes whatever is left in the queue without waiting for more.
func (w *HistoryWriter) drain() {
	for {
		select {
		case c := <-w.queue:
			w.write(c)
		default:
			return
		}
	}
}

func (w *HistoryWriter) write(c Change) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := w.repo.Record(ctx, c); err != nil {
		w.logger.Warn("failed to record property history",
			"property", c.Property,
			"error", err,
		)
	}
}

func (w *HistoryWriter) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	n, err := w.repo.PruneHistory(ctx, w.retention)
	if err != nil {
		w.logger.Warn("failed to prune property history", "error", err)
		return
	}
	if n > 0 {
		w.logger.Debug("pruned property history", "removed", n)
	}
}
