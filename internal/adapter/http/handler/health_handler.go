package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wildlife-governance/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

type dependencyStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every checker is pinged concurrently and
// the endpoint reports 503 if any of them fails or times out.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := make([]dependencyStatus, len(checkers))

		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func(i int, checker ports.HealthChecker) {
				defer wg.Done()
				statuses[i] = ping(c.Request.Context(), checker)
			}(i, checker)
		}
		wg.Wait()

		deps := make(map[string]dependencyStatus, len(checkers))
		healthy := true
		for i, checker := range checkers {
			deps[checker.Name()] = statuses[i]
			if statuses[i].Status != "healthy" {
				healthy = false
			}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

func ping(ctx context.Context, checker ports.HealthChecker) dependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	st := dependencyStatus{Status: "healthy", Latency: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		st.Status = "unhealthy"
		st.Error = err.Error()
	}
	return st
}
