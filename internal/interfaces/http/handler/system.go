package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saaskit/backend/internal/interfaces/http/dto"
)

// Pinger reports backend liveness. Database and cache both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler handles health and system info endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	backends  map[string]Pinger
}

// NewSystemHandler creates a new SystemHandler. The backends map names
// each dependency checked by the health endpoint.
func NewSystemHandler(backends map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		backends:  backends,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

// Health handles GET /health. Reports 503 when any backend is down.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if len(h.backends) > 0 {
		resp.Backends = make(map[string]string, len(h.backends))
		for name, backend := range h.backends {
			if err := backend.Ping(c.Request.Context()); err != nil {
				resp.Backends[name] = "down"
				resp.Status = "degraded"
				continue
			}
			resp.Backends[name] = "up"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "SaaS Backend API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}
