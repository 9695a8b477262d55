// Package poller keeps a process-wide snapshot of a remote collection fresh
// by fetching it on a fixed interval.
//
// At most one scheduled fetch is outstanding at a time; ticks that fire while
// one is in flight are skipped. Every fetch carries a sequence number taken at
// issue time and only the most recently issued fetch may update the snapshot,
// so a slow response can never overwrite the result of a newer request.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotStarted is returned by Refresh before Start.
	ErrNotStarted = errors.New("poller: not started")
	// ErrStopped is returned once the source has been stopped.
	ErrStopped = errors.New("poller: stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("poller: already started")

	errSkipped = errors.New("poller: fetch in flight")
)

// FetchFunc loads the full collection.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the state observed by readers.
type Snapshot[T any] struct {
	Value     T
	Err       error
	UpdatedAt time.Time
	FailedAt  time.Time
	// Seq is the sequence number of the fetch that produced Value.
	Seq    uint64
	Loaded bool
}

// Config describes one polled collection.
type Config[T any] struct {
	Name     string
	Interval time.Duration
	Fetch    FetchFunc[T]
	Logger   *slog.Logger
	Metrics  *Metrics
	Clock    func() time.Time
}

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateRunning
	stateStopped
)

type pending struct {
	seq  uint64
	done chan struct{}
	err  error
}

// Source polls one collection. It is safe for concurrent use.
type Source[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	mu       sync.Mutex
	state    lifecycle
	snap     Snapshot[T]
	issued   uint64
	inflight map[uint64]context.CancelFunc
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	fetches  sync.WaitGroup
}

// New constructs an idle source.
func New[T any](cfg Config[T]) *Source[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Source[T]{
		name:     cfg.Name,
		interval: interval,
		fetch:    cfg.Fetch,
		logger:   logger.With(slog.String("component", "poller"), slog.String("source", cfg.Name)),
		metrics:  cfg.Metrics,
		now:      clock,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Name returns the source label.
func (s *Source[T]) Name() string { return s.name }

// Interval returns the polling period.
func (s *Source[T]) Interval() time.Duration { return s.interval }

// Start issues the first fetch immediately and schedules the rest. The
// source stops when ctx is cancelled or Stop is called.
func (s *Source[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case stateStopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state = stateRunning
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	go s.loop(s.ctx, s.loopDone)
	return nil
}

func (s *Source[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.tick()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Source[T]) tick() {
	if _, err := s.issue(false); err != nil && !errors.Is(err, errSkipped) {
		s.logger.Debug("poll not issued", slog.Any("error", err))
	}
}

// Refresh issues a fetch even when one is already outstanding and waits for
// it. The older fetch is cancelled and its result discarded.
func (s *Source[T]) Refresh(ctx context.Context) error {
	p, err := s.issue(true)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return p.err
	}
}

func (s *Source[T]) issue(forced bool) (*pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateIdle:
		return nil, ErrNotStarted
	case stateStopped:
		return nil, ErrStopped
	}
	if s.ctx.Err() != nil {
		return nil, ErrStopped
	}
	if len(s.inflight) > 0 {
		if !forced {
			s.metrics.observe(s.name, OutcomeSkipped)
			return nil, errSkipped
		}
		for _, cancel := range s.inflight {
			cancel()
		}
	}

	s.issued++
	p := &pending{seq: s.issued, done: make(chan struct{})}
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight[p.seq] = cancel
	s.fetches.Add(1)
	go s.run(ctx, p)
	return p, nil
}

func (s *Source[T]) run(ctx context.Context, p *pending) {
	defer s.fetches.Done()
	defer close(p.done)
	started := s.now()
	value, err := s.fetch(ctx)
	p.err = err
	s.complete(p.seq, value, err, started)
}

func (s *Source[T]) complete(seq uint64, value T, err error, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inflight[seq]; ok {
		cancel()
		delete(s.inflight, seq)
	}
	if s.state == stateStopped || seq != s.issued || seq <= s.snap.Seq {
		s.metrics.observe(s.name, OutcomeStale)
		return
	}

	now := s.now()
	s.metrics.observeDuration(s.name, now.Sub(started).Seconds())
	if err != nil {
		s.snap.Err = err
		s.snap.FailedAt = now
		s.metrics.observe(s.name, OutcomeError)
		s.logger.Warn("poll failed", slog.Uint64("seq", seq), slog.Any("error", err))
		return
	}
	s.snap.Value = value
	s.snap.Err = nil
	s.snap.UpdatedAt = now
	s.snap.Seq = seq
	s.snap.Loaded = true
	s.metrics.observe(s.name, OutcomeSuccess)
}

// Snapshot returns the latest applied state.
func (s *Source[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Stop cancels the schedule and every outstanding fetch, then waits for the
// loop and for fetchers to return. Results arriving after Stop are dropped.
// Calling Stop more than once is harmless.
func (s *Source[T]) Stop() {
	s.mu.Lock()
	if s.state != stateRunning {
		s.state = stateStopped
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	s.cancel()
	done := s.loopDone
	s.mu.Unlock()

	<-done
	s.fetches.Wait()
}
