package spool

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBuffer       = 256
	defaultWriteTimeout = 5 * time.Second
)

// WriteFunc persists one item.
type WriteFunc[T any] func(ctx context.Context, item T) error

// Spool hands items to a background writer without blocking the producer.
// Items offered while the buffer is full are dropped and counted.
type Spool[T any] struct {
	name         string
	items        chan T
	write        WriteFunc[T]
	writeTimeout time.Duration
	dropped      atomic.Int64
	logger       *zap.Logger
}

// New builds a spool. buffer <= 0 uses a default size.
func New[T any](name string, buffer int, write WriteFunc[T], logger *zap.Logger) *Spool[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spool[T]{
		name:         name,
		items:        make(chan T, buffer),
		write:        write,
		writeTimeout: defaultWriteTimeout,
		logger:       logger,
	}
}

// Offer enqueues item and reports whether it was accepted.
func (s *Spool[T]) Offer(item T) bool {
	select {
	case s.items <- item:
		return true
	default:
		s.dropped.Add(1)
		s.logger.Warn("spool buffer full, dropping item", zap.String("spool", s.name))
		return false
	}
}

// Dropped returns how many items were rejected because the buffer was full.
func (s *Spool[T]) Dropped() int64 {
	return s.dropped.Load()
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (s *Spool[T]) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case item := <-s.items:
			s.persist(item)
		}
	}
}

func (s *Spool[T]) flush() {
	for {
		select {
		case item := <-s.items:
			s.persist(item)
		default:
			return
		}
	}
}

func (s *Spool[T]) persist(item T) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.write(ctx, item); err != nil {
		s.logger.Warn("spool write failed", zap.String("spool", s.name), zap.Error(err))
	}
}
