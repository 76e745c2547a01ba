package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/model"
	"dynamicFee/internal/storage"
)

const (
	defaultBatchSize  = 200
	defaultMaxRetries = 3
	defaultRetryDelay = 200 * time.Millisecond
)

type SinkConfig struct {
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// Sink buffers fee changes and writes them to storage in batches.
type Sink struct {
	store  storage.Storage
	cfg    SinkConfig
	logger *zap.Logger

	mu      sync.Mutex
	pending []model.FeeChangeRecord
	written int
}

func NewSink(store storage.Storage, cfg SinkConfig, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Sink{store: store, cfg: cfg, logger: logger}
}

// FeeChanged implements fee.Notifier. A full buffer is flushed inline.
func (s *Sink) FeeChanged(ctx context.Context, change fee.FeeChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, model.NewFeeChangeRecord(change))
	if len(s.pending) < s.cfg.BatchSize {
		return nil
	}
	return s.flushLocked(ctx)
}

// Flush writes any buffered records.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Written returns the number of records persisted so far.
func (s *Sink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *Sink) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryDelay
	policy.MaxInterval = s.cfg.RetryDelay * 10

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("fee change write failed, retrying",
			zap.Int("records", len(batch)),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}
	operation := func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, s.store.PutFeeChanges(ctx, batch)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return fmt.Errorf("write %d fee changes: %w", len(batch), err)
	}
	s.written += len(batch)
	s.pending = nil
	return nil
}
