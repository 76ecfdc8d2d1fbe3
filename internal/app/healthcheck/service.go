// Package healthcheck probes the service's dependencies in the background and
// keeps the latest result for the health endpoint.
package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"francoggm/travelpay/internal/app/providers"
	"francoggm/travelpay/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
)

const (
	routineInterval = 5 * time.Second
	probeTimeout    = 3 * time.Second
)

// Probe returns nil when the dependency is usable.
type Probe func(ctx context.Context) error

type HealthCheckService struct {
	probes map[string]Probe
	now    func() time.Time
	logger *slog.Logger

	healthMutex sync.RWMutex
	report      models.HealthReport
}

func NewHealthCheckService(probes map[string]Probe, logger *slog.Logger) *HealthCheckService {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthCheckService{
		probes: probes,
		now:    time.Now,
		logger: logger,
	}
}

// Start runs the checks right away and then on every tick until ctx is done.
func (s *HealthCheckService) Start(ctx context.Context) {
	s.performChecks(ctx)

	go func() {
		ticker := time.NewTicker(routineInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.performChecks(ctx)
			}
		}
	}()
}

func (s *HealthCheckService) Report() models.HealthReport {
	s.healthMutex.RLock()
	defer s.healthMutex.RUnlock()

	report := s.report
	report.Checks = append([]models.HealthCheck(nil), s.report.Checks...)
	return report
}

func (s *HealthCheckService) performChecks(ctx context.Context) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		checks = make([]models.HealthCheck, 0, len(s.probes))
	)

	for name, probe := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()

			check := s.runProbe(ctx, name, probe)

			mu.Lock()
			checks = append(checks, check)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	healthy := true
	for _, check := range checks {
		if check.IsFailing {
			healthy = false
			s.logger.Warn("dependency unhealthy", slog.String("dependency", check.Name), slog.String("error", check.Error))
		}
	}

	s.healthMutex.Lock()
	s.report = models.HealthReport{Healthy: healthy, Checks: checks}
	s.healthMutex.Unlock()
}

func (s *HealthCheckService) runProbe(ctx context.Context, name string, probe Probe) models.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := s.now()
	err := probe(ctx)

	check := models.HealthCheck{
		Name:           name,
		ResponseTimeMs: s.now().Sub(start).Milliseconds(),
		CheckedAt:      start,
	}
	if err != nil {
		check.IsFailing = true
		check.Error = err.Error()
	}

	return check
}

func RedisProbe(cache *redis.Client) Probe {
	return func(ctx context.Context) error {
		return cache.Ping(ctx).Err()
	}
}

// HTTPProbe treats any response below 500 as reachable. Only transport errors
// and server errors count as failing.
func HTTPProbe(doer providers.Doer, url string) Probe {
	return func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer func() {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		resp.SkipBody = true

		if err := providers.Send(ctx, doer, req, resp); err != nil {
			return fmt.Errorf("failed to reach %s: %w", url, err)
		}

		if status := resp.StatusCode(); status >= fasthttp.StatusInternalServerError {
			return fmt.Errorf("%s answered with status code: %d", url, status)
		}

		return nil
	}
}
