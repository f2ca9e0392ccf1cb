package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/tracebridge/pkg/telemetry/metrics"
)

// RecorderConfig contains configuration for the async journal recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RecordMessages keeps message and response texts. When false they are
	// stripped before the entry is queued.
	RecordMessages bool
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes journal entries asynchronously so delivery never waits on
// the database. When the buffer is full the entry is dropped and logged.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	metrics *metrics.Collector
	logger  *slog.Logger

	entries chan *Entry
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder draining into storage. metrics may be nil.
func NewRecorder(storage Storage, config *RecorderConfig, collector *metrics.Collector, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		metrics: collector,
		logger:  logger.With("component", "journal.recorder"),
		entries: make(chan *Entry, config.AsyncBuffer),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("journal recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
		"record_messages", config.RecordMessages,
	)

	return r
}

// Record enqueues entry and returns immediately. The entry must not be
// modified by the caller afterwards.
func (r *Recorder) Record(entry *Entry) {
	if r == nil || entry == nil {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	if !r.config.RecordMessages {
		entry.Message = ""
		entry.Response = ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("journal entry dropped after close", "entry_id", entry.ID)
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("journal buffer full, entry dropped",
			"entry_id", entry.ID,
			"chat_id", entry.ChatID,
		)
		r.metrics.RecordJournalWrite(ErrBufferFull)
	}
}

// Close stops accepting entries, drains the buffer and waits for pending
// writes. It does not close the storage.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.entries:
			r.write(entry)

		case <-r.done:
			for {
				select {
				case entry := <-r.entries:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Append(ctx, entry)
	r.metrics.RecordJournalWrite(err)

	if err != nil {
		r.logger.Error("failed to append journal entry",
			"entry_id", entry.ID,
			"chat_id", entry.ChatID,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow journal write",
			"entry_id", entry.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
