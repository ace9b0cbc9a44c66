package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// ServiceConfig contains everything the service needs besides its collaborators.
type ServiceConfig struct {
	Community string
	// Account is the service account name; resolved from the forum when empty.
	Account string

	ThreadStrategy     string
	ModerationStrategy string
	Marker             string
	Notice             string

	Capacity           int
	MaxAge             time.Duration
	StreamLimit        int
	Backoff            Backoff
	CheckpointInterval time.Duration
	Once               bool
}

// Service owns the tracked pair store, the service clock and the poll loop.
// Start loads the store and captures the clock; Stop abandons in-flight work
// and saves the store.
type Service struct {
	config    ServiceConfig
	client    ports.ForumClient
	repo      ports.PairRepository
	filters   *FilterSet
	logger    ports.Logger
	lifecycle *Lifecycle
	now       func() time.Time

	mu     sync.Mutex
	store  *domain.PairStore
	clock  time.Time
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

// NewService creates a service in StateStopped.
func NewService(cfg ServiceConfig, client ports.ForumClient, repo ports.PairRepository, filters *FilterSet, logger ports.Logger) *Service {
	if cfg.Capacity <= 0 {
		cfg.Capacity = domain.DefaultCapacity
	}
	if filters == nil {
		filters = NewFilterSet(nil)
	}
	// closed until Start replaces it, so Stop after a failed Start doesn't wait
	done := make(chan struct{})
	close(done)
	return &Service{
		config:    cfg,
		client:    client,
		repo:      repo,
		filters:   filters,
		logger:    logger,
		lifecycle: NewLifecycle(logger),
		now:       time.Now,
		done:      done,
	}
}

// Start loads the store, captures the service clock and starts the poll
// loop in the background. A corrupt or unreadable image is logged and
// replaced by an empty store.
func (s *Service) Start(ctx context.Context) error {
	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	store, err := s.repo.Load(ctx, s.config.Capacity)
	if err != nil {
		s.logger.Warn("could not load tracked pairs, starting empty", ports.Err(err))
	}
	if store == nil {
		store = domain.NewPairStore(s.config.Capacity)
	}
	clock := s.now()

	account := s.config.Account
	if account == "" {
		account, err = s.client.Me(ctx)
		if err != nil {
			_ = s.lifecycle.TransitionTo(StateCrashed, "resolve account failed")
			return fmt.Errorf("resolve service account: %w", err)
		}
	}

	stream := NewStream(s.client, s.config.Community, s.config.StreamLimit)
	poster := NewPoster(s.client, PosterConfig{
		Community: s.config.Community,
		Account:   account,
		Strategy:  s.config.ThreadStrategy,
		Marker:    s.config.Marker,
		Notice:    s.config.Notice,
	})
	moderator := NewModerator(s.client, ModeratorConfig{
		Account:  account,
		Strategy: s.config.ModerationStrategy,
		MaxAge:   s.config.MaxAge,
	}, s.logger)
	loop := NewLoop(LoopConfig{
		Account:            account,
		Backoff:            s.config.Backoff,
		CheckpointInterval: s.config.CheckpointInterval,
		Once:               s.config.Once,
	}, stream, poster, moderator, store, s.repo, s.filters, clock, s.logger)

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.store = store
	s.clock = clock
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.logger.Info("watching community",
		ports.String("community", s.config.Community),
		ports.String("account", account),
		ports.Int("tracked", store.Len()),
		ports.Time("since", clock))

	if err := s.lifecycle.TransitionTo(StateRunning, "poll loop starting"); err != nil {
		cancel()
		return err
	}

	go func() {
		defer close(done)
		err := loop.Run(runCtx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
		s.logger.Error("poll loop failed", ports.Err(err))
		_ = s.lifecycle.TransitionTo(StateCrashed, err.Error())
	}()
	return nil
}

// Stop abandons the poll loop's in-flight work, waits briefly for it to
// return, then saves the store. The store is saved even if the loop does
// not return within ShutdownTimeout.
func (s *Service) Stop() error {
	if !s.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var waitErr error
	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.logger.Warn("poll loop did not return, saving anyway", ports.Duration("timeout", ShutdownTimeout))
		waitErr = domain.ErrShutdownTimeout
	}

	if err := s.Save(context.Background()); err != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, "save failed")
		return err
	}

	if waitErr != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
		return waitErr
	}
	_ = s.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	return nil
}

// Save writes the store to durable storage.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store == nil {
		return nil
	}
	if err := s.repo.Save(ctx, store); err != nil {
		s.logger.Error("failed to save tracked pairs", ports.Err(err))
		return fmt.Errorf("save tracked pairs: %w", err)
	}
	s.logger.Info("saved tracked pairs", ports.Int("tracked", store.Len()))
	return nil
}

// Done is closed when the poll loop returns.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error that ended the poll loop, if any.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Status returns the current lifecycle state.
func (s *Service) Status() State {
	return s.lifecycle.State()
}

// Clock returns the time the service started watching.
func (s *Service) Clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Store returns the tracked pair store (nil before Start).
func (s *Service) Store() *domain.PairStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}
