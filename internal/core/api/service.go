// Package api provides the HTTP admin and ingest surface for killwatch.
package api

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/killwatch/internal/engine"
)

// Service implements the HTTP API. Thin orchestration layer delegating to the
// matching engine; no business logic lives here.
type Service struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewService creates the API service with its dependencies.
func NewService(eng *engine.Engine, logger *slog.Logger) (*Service, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: eng, logger: logger}, nil
}

// Register mounts all routes on the router.
func (s *Service) Register(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/killmails", s.matchKillmail)
	v1.POST("/reload", s.reloadProfiles)
	v1.GET("/stats", s.stats)
}
