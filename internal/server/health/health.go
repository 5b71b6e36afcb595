// Package health checks PostgreSQL and Redis and publishes the outcome as
// the server's serving status.
package health

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Status is the health of one component or of the whole server.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth is the result of a single check.
type ComponentHealth struct {
	Status   Status
	Message  string
	Duration time.Duration
}

// Report aggregates one round of checks.
type Report struct {
	Status     Status
	Components map[string]ComponentHealth
}

// Serving reports whether traffic should still be accepted. A degraded
// server keeps serving.
func (r *Report) Serving() bool {
	return r.Status != StatusUnhealthy
}

// Publisher receives the serving status after every round of checks.
type Publisher interface {
	SetServing(serving bool)
}

const defaultTimeout = 5 * time.Second

// Checker runs connectivity checks against the backing stores.
type Checker struct {
	db      *sql.DB
	redis   redis.UniversalClient
	timeout time.Duration
	logger  logging.Logger
}

// NewChecker builds a Checker. A zero timeout selects five seconds.
func NewChecker(db *sql.DB, rdb redis.UniversalClient, timeout time.Duration, logger logging.Logger) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{
		db:      db,
		redis:   rdb,
		timeout: timeout,
		logger:  logger.With("module", "health"),
	}
}

// CheckDB pings the database and runs a trivial query.
func (c *Checker) CheckDB(ctx context.Context) ComponentHealth {
	start := time.Now()
	if c.db == nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "database ping failed", Duration: time.Since(start)}
	}

	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return ComponentHealth{Status: StatusDegraded, Message: "database query failed", Duration: time.Since(start)}
	}
	return ComponentHealth{Status: StatusHealthy, Duration: time.Since(start)}
}

// CheckRedis pings the denylist store.
func (c *Checker) CheckRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	if c.redis == nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "redis not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "redis ping failed", Duration: time.Since(start)}
	}
	return ComponentHealth{Status: StatusHealthy, Duration: time.Since(start)}
}

// Check runs every component check in parallel. The server is unhealthy
// if any component is, and degraded if any component is degraded.
func (c *Checker) Check(ctx context.Context) *Report {
	report := &Report{Status: StatusHealthy, Components: make(map[string]ComponentHealth)}

	checks := map[string]func(context.Context) ComponentHealth{
		"database": c.CheckDB,
		"redis":    c.CheckRedis,
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := check(ctx)
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, comp := range report.Components {
		switch {
		case comp.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case comp.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

// Watch checks once right away and then every interval, handing each
// outcome to p, until ctx is cancelled. Status changes are logged.
func (c *Checker) Watch(ctx context.Context, interval time.Duration, p Publisher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Status
	for {
		report := c.Check(ctx)
		p.SetServing(report.Serving())
		if report.Status != last {
			c.logStatus(ctx, report)
			last = report.Status
		}

		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) logStatus(ctx context.Context, r *Report) {
	args := []any{"status", string(r.Status)}
	for name, comp := range r.Components {
		if comp.Message != "" {
			args = append(args, name, comp.Message)
		}
	}
	if r.Status == StatusHealthy {
		c.logger.Info(ctx, "backing stores healthy", args...)
		return
	}
	c.logger.Warn(ctx, "backing stores not healthy", args...)
}
