package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/challenge"
)

// DefaultHousekeepingInterval is used when no interval is configured.
const DefaultHousekeepingInterval = time.Minute

// HousekeepingService periodically evicts expired 2FA codes from stores that
// don't expire entries on their own.
type HousekeepingService struct {
	Sweeper  challenge.Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. A non-positive interval means DefaultHousekeepingInterval.
func NewHousekeepingService(sweeper challenge.Sweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down. Starting
// twice, or after Stop, does nothing.
func (s *HousekeepingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker and waits for an in-progress sweep to finish.
// It is safe to call more than once, and returns at once if Start was never
// called.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.started
		s.stopped = true
		s.mu.Unlock()

		close(s.stopCh)
		if running {
			<-s.doneCh
		}
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	n := s.Sweeper.Sweep(context.Background())
	if n > 0 {
		s.Logger.Info("expired 2fa codes evicted", "count", n)
	} else {
		s.Logger.Debug("housekeeping found nothing to evict")
	}
}
