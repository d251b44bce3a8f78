package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/solebound/api/internal/domain"
)

// probeFallbackTimeout bounds a dependency probe that declares no limit of its own.
const probeFallbackTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe: a named function that reports
// whether a backing service answers within its timeout.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout replaces the fallback timeout applied to checks that
// carry none of their own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.fallbackTimeout = timeout
		}
	}
}

// WithDependencyClock injects the time source, for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	probes          []DependencyCheck
	fallbackTimeout time.Duration
	now             func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository validates the probe set and returns a
// HealthRepository that runs every probe concurrently on Collect. Probes must
// be named, unique, and carry a check function.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}

	probes := make([]DependencyCheck, 0, len(checks))
	seen := make(map[string]struct{}, len(checks))
	for _, check := range checks {
		name := strings.TrimSpace(check.Name)
		if name == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("health repository: duplicate dependency name %s", name)
		}
		seen[name] = struct{}{}
		check.Name = name
		probes = append(probes, check)
	}

	repo := &dependencyHealthRepository{
		probes:          probes,
		fallbackTimeout: probeFallbackTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Collect probes every dependency in parallel and folds the outcomes into one
// report. Any error outcome makes the report error; otherwise any non-ok
// probe degrades it.
func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	type outcome struct {
		name  string
		check domain.SystemHealthCheck
	}
	outcomes := make(chan outcome, len(r.probes))
	for _, probe := range r.probes {
		probe := probe
		go func() {
			outcomes <- outcome{name: probe.Name, check: r.runProbe(ctx, probe)}
		}()
	}

	checks := make(map[string]domain.SystemHealthCheck, len(r.probes))
	for range r.probes {
		res := <-outcomes
		checks[res.name] = res.check
	}

	return domain.SystemHealthReport{
		Status:      overallStatus(checks),
		Checks:      checks,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) runProbe(ctx context.Context, probe DependencyCheck) domain.SystemHealthCheck {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = r.fallbackTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := probe.Check(probeCtx)
	finished := r.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   finished.Sub(start),
		CheckedAt: finished,
	}

	switch {
	case err == nil && probeCtx.Err() == nil:
		// healthy
	case errors.Is(err, context.Canceled) || (err == nil && errors.Is(probeCtx.Err(), context.Canceled)):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
		result.Error = context.Canceled.Error()
	case errors.Is(err, context.DeadlineExceeded) || err == nil:
		// err == nil here means the deadline lapsed even though the probe returned.
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
		result.Error = context.DeadlineExceeded.Error()
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
		result.Error = err.Error()
	}
	return result
}

func overallStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusDegraded:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
