package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueSize is the default capacity of the recorder queue.
const DefaultQueueSize = 256

// Recorder writes records to a Store off the request path.
type Recorder struct {
	store  Store
	queue  chan Record
	onDrop func()
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Record, n)
		}
	}
}

// WithOnDrop registers a callback invoked whenever a record is dropped.
func WithOnDrop(fn func()) RecorderOption {
	return func(r *Recorder) { r.onDrop = fn }
}

// NewRecorder creates a Recorder over st. Call Run to start draining.
func NewRecorder(st Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: st, queue: make(chan Record, DefaultQueueSize)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues rec without blocking. When the queue is full the record is dropped.
func (r *Recorder) Record(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	select {
	case r.queue <- rec:
	default:
		slog.Warn("Recorder.Record: queue full, dropping record", "user_id", rec.UserID, "type", rec.Type)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	slog.Info("Recorder.Run: started", "capacity", cap(r.queue))
	for {
		select {
		case rec := <-r.queue:
			r.write(context.Background(), rec)
		case <-ctx.Done():
			r.flush()
			slog.Info("Recorder.Run: stopped")
			return nil
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case rec := <-r.queue:
			r.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.SaveRecord(ctx, rec); err != nil {
		slog.Error("Recorder.write: save failed", "error", err, "user_id", rec.UserID, "id", rec.ID)
	}
}
