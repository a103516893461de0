package health

import (
	"context"
	"sort"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Names of the components reported by Check.
const (
	ComponentCache      = "cache"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
	ComponentSearch     = "search"
)

// Service coordinates health checks.
type Service struct {
	cache    Pinger
	checkers map[string]Checker
}

// New creates a Service. cache can be nil when no persistent cache is configured.
func New(cache Pinger) *Service {
	return &Service{cache: cache, checkers: make(map[string]Checker)}
}

// With registers a provider checker under name. Nil checkers are ignored.
func (s *Service) With(name string, c Checker) *Service {
	if c != nil {
		s.checkers[name] = c
	}
	return s
}

// Components returns the registered component names in sorted order.
func (s *Service) Components() []string {
	names := make([]string, 0, len(s.checkers)+1)
	if s.cache != nil {
		names = append(names, ComponentCache)
	}
	for name := range s.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all checks concurrently.
// Status is Unhealthy when every check fails, Degraded when some do.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	if s.cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(ComponentCache, s.cache.Ping(ctx))
		}()
	}
	for name, c := range s.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(name, c.HealthCheck(ctx))
		}()
	}
	wg.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
