package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"miniappbot/pkg/logger"
)

const probeTimeout = 20 * time.Second

// Checker reports the health of named components. A nil error means healthy.
type Checker interface {
	CheckHealth(ctx context.Context) map[string]error
}

// ChannelStatus is the outcome of one probe for one channel.
type ChannelStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type Status struct {
	Healthy   bool                     `json:"healthy"`
	CheckedAt time.Time                `json:"checked_at"`
	Channels  map[string]ChannelStatus `json:"channels"`
}

// Service probes a Checker on a cron schedule and keeps the latest result.
type Service struct {
	checker  Checker
	schedule string
	now      func() time.Time

	mu      sync.RWMutex
	cron    *cron.Cron
	last    Status
	checked bool
}

func NewService(checker Checker, schedule string) *Service {
	return &Service{
		checker:  checker,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start runs one probe immediately and then follows the schedule.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		s.CheckNow(context.Background())
	}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid health schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	s.mu.Unlock()

	s.CheckNow(context.Background())
	c.Start()
	logger.InfoCF("health", "Health prober started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// Stop halts the schedule and waits for a running probe to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	logger.InfoC("health", "Health prober stopped")
}

// CheckNow probes every channel and stores the result.
func (s *Service) CheckNow(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	results := s.checker.CheckHealth(ctx)
	status := Status{
		Healthy:   true,
		CheckedAt: s.now(),
		Channels:  make(map[string]ChannelStatus, len(results)),
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err := results[name]
		if err == nil {
			status.Channels[name] = ChannelStatus{Healthy: true}
			continue
		}
		status.Healthy = false
		status.Channels[name] = ChannelStatus{Error: err.Error()}
		logger.WarnCF("health", "Channel health check failed", map[string]interface{}{
			logger.FieldChannel: name,
			logger.FieldError:   err.Error(),
		})
	}

	s.mu.Lock()
	prevHealthy := s.last.Healthy || !s.checked
	s.last = status
	s.checked = true
	s.mu.Unlock()

	if status.Healthy && !prevHealthy {
		logger.InfoC("health", "All channels healthy again")
	}
	return status
}

// Status returns the latest probe result. ok is false before the first probe.
func (s *Service) Status() (status Status, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.checked
}
