package httpx

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

type Check func(ctx context.Context) error

type HealthHandler struct {
	Checks map[string]Check
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency"`
}

type HealthResp struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
	Latency   int64                  `json:"latency"`
}

func (h *HealthHandler) Register(r *chi.Mux) {
	r.Get("/healthz", h.health)
	r.Get("/health", h.health)
}

// health runs every check and answers 503 if any of them fails.
func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	start := time.Now()
	resp := HealthResp{Status: "healthy", Timestamp: start.UTC(), Checks: make(map[string]checkResult, len(h.Checks))}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := time.Now()
		err := h.Checks[name](ctx)
		res := checkResult{Status: "healthy", Latency: time.Since(t).Milliseconds()}
		if err != nil {
			res.Status, res.Message = "unhealthy", err.Error()
			resp.Status = "unhealthy"
		}
		resp.Checks[name] = res
	}
	resp.Latency = time.Since(start).Milliseconds()

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
