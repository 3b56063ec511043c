/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/apiresponses"
	"github.com/telekom/auditlog-forwarder/pkg/metrics"
	"github.com/telekom/auditlog-forwarder/pkg/ratelimit"
	"github.com/telekom/auditlog-forwarder/pkg/storelog"
	"github.com/telekom/auditlog-forwarder/pkg/system"
)

// Readiness is the pipeline state the readiness probe reports.
type Readiness interface {
	Ready() bool
	Pending() int
}

// ServerConfig configures a Server. Stub and Breaker are optional.
type ServerConfig struct {
	Log           *zap.Logger
	ListenAddress string
	Debug         bool
	Pipeline      Readiness
	Stub          *storelog.MemoryStore
	Breaker       *storelog.BreakerStore
	// RateLimit limits the /api routes per client when set.
	RateLimit *ratelimit.Config
}

type Server struct {
	gin     *gin.Engine
	http    *http.Server
	limiter *ratelimit.Limiter
	cfg     ServerConfig
	logger  *zap.SugaredLogger
}

// NewServer creates a new Server and registers its routes.
func NewServer(cfg ServerConfig) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(cfg.Log, time.RFC3339, true),
		ginzap.RecoveryWithZap(cfg.Log, true),
		system.RequestLogger(cfg.Log.Sugar()),
	)

	s := &Server{
		gin:    engine,
		cfg:    cfg,
		logger: cfg.Log.Named("api").Sugar(),
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/readyz", s.readyz)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	if cfg.Stub != nil {
		api := engine.Group("/api")
		if cfg.RateLimit != nil {
			s.limiter = ratelimit.New(*cfg.RateLimit)
			api.Use(s.limiter.Middleware())
		}
		api.POST("/storelog", s.storeLog)
		api.GET("/stub/logs", s.listLogs)
		api.DELETE("/stub/logs", s.resetLogs)
		api.GET("/stub/fault", s.getFault)
		api.PUT("/stub/fault", s.putFault)
	}

	s.http = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Admin server listening", "address", s.cfg.ListenAddress)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.limiter != nil {
		defer s.limiter.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) healthz(c *gin.Context) {
	apiresponses.RespondOK(c, gin.H{"status": "ok"})
}

// ReadyStatus is the body of the readiness probe.
type ReadyStatus struct {
	Ready        bool   `json:"ready"`
	PendingItems int    `json:"pendingItems"`
	StoreCircuit string `json:"storeCircuit,omitempty"`
}

func (s *Server) readyz(c *gin.Context) {
	status := ReadyStatus{}
	if s.cfg.Pipeline != nil {
		status.Ready = s.cfg.Pipeline.Ready()
		status.PendingItems = s.cfg.Pipeline.Pending()
	}
	if s.cfg.Breaker != nil {
		status.StoreCircuit = s.cfg.Breaker.State().String()
	}
	if !status.Ready {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	apiresponses.RespondOK(c, status)
}
