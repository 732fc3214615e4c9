package health

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult holds the result of a health check.
type CheckResult struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// Component represents a system component that can be health-checked.
type Component struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // upstream, database
	Critical bool   `json:"critical"`
	CheckResult
}

// ModelLister lists the models the upstream has installed. *ollama.Client implements it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Checker performs health checks on system components.
type Checker struct {
	components []Component
	mu         sync.RWMutex

	upstream ModelLister
	model    string
	ledgerDB *sql.DB

	dbTimeout          time.Duration
	httpTimeout        time.Duration
	maxDatabaseLatency time.Duration
}

// Config holds health checker configuration.
type Config struct {
	Upstream ModelLister
	// Model is the configured model; a missing model degrades the upstream component.
	Model    string
	LedgerDB *sql.DB

	DBTimeout          time.Duration
	HTTPTimeout        time.Duration
	MaxDatabaseLatency time.Duration
}

// New creates a new health checker.
func New(cfg Config) *Checker {
	if cfg.DBTimeout == 0 {
		cfg.DBTimeout = 2 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.MaxDatabaseLatency == 0 {
		cfg.MaxDatabaseLatency = 100 * time.Millisecond
	}
	return &Checker{
		upstream:           cfg.Upstream,
		model:              cfg.Model,
		ledgerDB:           cfg.LedgerDB,
		dbTimeout:          cfg.DBTimeout,
		httpTimeout:        cfg.HTTPTimeout,
		maxDatabaseLatency: cfg.MaxDatabaseLatency,
	}
}

// Check performs all health checks and returns overall status.
func (c *Checker) Check(ctx context.Context) HealthStatus {
	var wg sync.WaitGroup
	results := make(chan Component, 2)

	if c.upstream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.checkUpstream(ctx)
		}()
	}
	if c.ledgerDB != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.checkDatabase(ctx, "ledger_db", c.ledgerDB)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	components := make([]Component, 0, 2)
	for comp := range results {
		components = append(components, comp)
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	c.mu.Lock()
	c.components = components
	c.mu.Unlock()

	return calculateOverallStatus(components)
}

func (c *Checker) checkDatabase(ctx context.Context, name string, db *sql.DB) Component {
	comp := Component{
		Name:        name,
		Type:        "database",
		CheckResult: CheckResult{Timestamp: time.Now()},
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, c.dbTimeout)
	defer cancel()

	err := db.PingContext(dbCtx)
	comp.Latency = time.Since(start)
	if err != nil {
		// The relay keeps serving without its ledger.
		comp.Status = StatusDegraded
		comp.Error = err.Error()
		comp.Message = "Database unreachable"
		return comp
	}
	if comp.Latency > c.maxDatabaseLatency {
		comp.Status = StatusDegraded
		comp.Message = fmt.Sprintf("High latency: %v", comp.Latency)
	} else {
		comp.Status = StatusHealthy
		comp.Message = "Connected"
	}
	return comp
}

// checkUpstream lists upstream models. Failure here is critical.
func (c *Checker) checkUpstream(ctx context.Context) Component {
	comp := Component{
		Name:        "upstream",
		Type:        "upstream",
		Critical:    true,
		CheckResult: CheckResult{Timestamp: time.Now()},
	}

	start := time.Now()
	httpCtx, cancel := context.WithTimeout(ctx, c.httpTimeout)
	defer cancel()

	models, err := c.upstream.ListModels(httpCtx)
	comp.Latency = time.Since(start)
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Message = "Upstream unreachable"
		return comp
	}
	if c.model != "" && !HasModel(models, c.model) {
		comp.Status = StatusDegraded
		comp.Message = fmt.Sprintf("Model %q not installed", c.model)
		return comp
	}
	comp.Status = StatusHealthy
	comp.Message = fmt.Sprintf("Reachable (%d models)", len(models))
	return comp
}

// HasModel matches a configured model name against installed tags; "mistral" matches "mistral:latest".
func HasModel(installed []string, model string) bool {
	for _, name := range installed {
		if name == model || strings.TrimSuffix(name, ":latest") == model {
			return true
		}
	}
	return false
}

func calculateOverallStatus(components []Component) HealthStatus {
	overall := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			if comp.Critical {
				overall = StatusUnhealthy
			} else if overall == StatusHealthy {
				overall = StatusDegraded
			}
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return HealthStatus{
		Status:     overall,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components"`
}

// GetLastStatus returns the last health check result.
func (c *Checker) GetLastStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.components) == 0 {
		return HealthStatus{Status: StatusHealthy, Timestamp: time.Now()}
	}
	return calculateOverallStatus(c.components)
}
