package faulttolerance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ErrDegraded marks a check result as degraded rather than unhealthy.
var ErrDegraded = errors.New("degraded")

// CheckFunc reports an unhealthy component by returning an error.
// Returning ErrDegraded (or an error wrapping it) marks it degraded instead.
type CheckFunc func(ctx context.Context) error

// HealthCheck is the last observed result of a named check.
type HealthCheck struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	LastCheck time.Time     `json:"last_check"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	check     CheckFunc
}

// HealthMonitor runs registered checks on an interval.
type HealthMonitor struct {
	checks   map[string]*HealthCheck
	mutex    sync.RWMutex
	logger   logrus.FieldLogger
	interval time.Duration
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewHealthMonitor(logger logrus.FieldLogger, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		checks:   make(map[string]*HealthCheck),
		logger:   logger,
		interval: interval,
		timeout:  10 * time.Second,
	}
}

// AddCheck registers a check. Checks start healthy until first run.
func (hm *HealthMonitor) AddCheck(name string, check CheckFunc) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[name] = &HealthCheck{
		Name:   name,
		Status: HealthStatusHealthy,
		check:  check,
	}
}

// Start runs all checks once, then on every interval until ctx is done.
func (hm *HealthMonitor) Start(ctx context.Context) {
	hm.wg.Add(1)
	go func() {
		defer hm.wg.Done()

		ticker := time.NewTicker(hm.interval)
		defer ticker.Stop()

		hm.RunChecks(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hm.RunChecks(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start returns.
func (hm *HealthMonitor) Wait() {
	hm.wg.Wait()
}

// RunChecks runs every registered check concurrently and records the results.
func (hm *HealthMonitor) RunChecks(ctx context.Context) {
	hm.mutex.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mutex.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(check *HealthCheck) {
			defer wg.Done()
			hm.run(ctx, check)
		}(check)
	}
	wg.Wait()
}

func (hm *HealthMonitor) run(ctx context.Context, check *HealthCheck) {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
	err := check.check(checkCtx)
	cancel()
	duration := time.Since(start)

	status := HealthStatusHealthy
	if err != nil {
		status = HealthStatusUnhealthy
		if errors.Is(err, ErrDegraded) {
			status = HealthStatusDegraded
		}
	}

	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	previous := check.Status
	check.LastCheck = start
	check.Duration = duration
	check.Status = status
	check.Error = ""
	if err != nil {
		check.Error = err.Error()
	}

	if previous == status {
		return
	}
	entry := hm.logger.WithFields(logrus.Fields{"check": check.Name, "status": status})
	if err != nil {
		entry.WithError(err).Warn("Health check changed status")
	} else {
		entry.Info("Health check recovered")
	}
}

// GetHealth returns a copy of every check's last result.
func (hm *HealthMonitor) GetHealth() map[string]HealthCheck {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	result := make(map[string]HealthCheck, len(hm.checks))
	for name, check := range hm.checks {
		snapshot := *check
		snapshot.check = nil
		result[name] = snapshot
	}
	return result
}

// GetOverallHealth returns the worst status across all checks.
func (hm *HealthMonitor) GetOverallHealth() HealthStatus {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	overall := HealthStatusHealthy
	for _, check := range hm.checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			overall = HealthStatusDegraded
		}
	}
	return overall
}
