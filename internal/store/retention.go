package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPruneTimeout bounds a single retention pass.
const DefaultPruneTimeout = time.Minute

// Pruner deletes records older than a retention window.
type Pruner struct {
	store     Store
	retention time.Duration
	now       func() time.Time
	onPruned  func(int64)
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithPruneClock sets the clock used to compute the cutoff.
func WithPruneClock(now func() time.Time) PrunerOption {
	return func(p *Pruner) {
		if now != nil {
			p.now = now
		}
	}
}

// WithOnPruned is called with the number of deleted records after each pass.
func WithOnPruned(fn func(int64)) PrunerOption {
	return func(p *Pruner) { p.onPruned = fn }
}

// NewPruner creates a Pruner keeping records for retention.
func NewPruner(st Store, retention time.Duration, opts ...PrunerOption) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	p := &Pruner{store: st, retention: retention, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Prune runs one retention pass.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultPruneTimeout)
	defer cancel()

	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneRecords(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	slog.Info("Pruner.Prune: retention pass finished", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	if p.onPruned != nil {
		p.onPruned(n)
	}
	return n, nil
}
