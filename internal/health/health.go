package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status представляет статус компонента
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const defaultCheckTimeout = 2 * time.Second

// Check — результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Critical   bool   `json:"critical"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response представляет ответ health check
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет доступность зависимости.
type Checker interface {
	Check(ctx context.Context) Check
}

type registered struct {
	checker  Checker
	critical bool
}

// Handler отдаёт /healthz и /readyz.
// Некритичные зависимости (Kafka, SMS) при сбое дают degraded, но не снимают готовность.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]registered
	version   string
	startTime time.Time
	timeout   time.Duration
}

// NewHandler создаёт новый health handler
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]registered),
		version:   version,
		startTime: time.Now(),
		timeout:   defaultCheckTimeout,
	}
}

// RegisterChecker регистрирует проверку компонента.
func (h *Handler) RegisterChecker(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registered{checker: checker, critical: critical}
}

func (h *Handler) runChecks(ctx context.Context) (map[string]Check, Status) {
	h.mu.RLock()
	snapshot := make(map[string]registered, len(h.checkers))
	for k, v := range h.checkers {
		snapshot[k] = v
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(snapshot))
	)
	for name, reg := range snapshot {
		wg.Add(1)
		go func(name string, reg registered) {
			defer wg.Done()
			check := reg.checker.Check(ctx)
			check.Critical = reg.critical
			if check.Status == StatusUnhealthy && !reg.critical {
				check.Status = StatusDegraded
			}
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return checks, overall
}

// ServeHTTP обрабатывает HTTP запрос
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks, overall := h.runChecks(r.Context())

	response := Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler простой liveness probe (всегда возвращает 200)
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler отвечает 503, пока недоступна хотя бы одна критичная зависимость.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	_, overall := h.runChecks(r.Context())
	if overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// PingChecker проверяет зависимость функцией ping.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker создаёт проверку, например для pgxpool.Pool.Ping или redis Ping.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Check выполняет проверку
func (c *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.ping(ctx)
	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
