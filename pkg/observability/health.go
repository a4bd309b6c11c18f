package observability

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is the state of a dependency.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the outcome of one probe.
type HealthCheckResult struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration"`
}

// HealthChecker probes a dependency.
type HealthChecker func(ctx context.Context) HealthCheckResult

// OverallHealth is the body served by readiness endpoints.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// HealthRegistry runs registered probes concurrently.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the probe for name.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs every probe and aggregates the worst status.
func (r *HealthRegistry) Check(ctx context.Context) OverallHealth {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for k, v := range r.checkers {
		checkers[k] = v
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := checker(ctx)
			res.Duration = time.Since(start).String()
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return OverallHealth{
		Status:    worst(results),
		Timestamp: time.Now().UTC(),
		Checks:    results,
	}
}

func worst(results map[string]HealthCheckResult) HealthStatus {
	status := HealthStatusHealthy
	for _, res := range results {
		switch res.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// PingChecker wraps a ping function. Failures report failStatus so optional
// dependencies such as Redis can degrade instead of failing readiness.
func PingChecker(component string, failStatus HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{Status: failStatus, Message: component + ": " + err.Error()}
		}
		return HealthCheckResult{Status: HealthStatusHealthy}
	}
}
