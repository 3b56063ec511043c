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

package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/telekom/auditlog-forwarder/pkg/api"
	"github.com/telekom/auditlog-forwarder/pkg/pipeline"
	"github.com/telekom/auditlog-forwarder/pkg/ratelimit"
	"github.com/telekom/auditlog-forwarder/pkg/version"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the forwarding pipeline and the admin server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			logger, err := rt.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting audit log forwarder",
				zap.String("version", version.Version),
				zap.String("commit", version.GitCommit),
				zap.String("transport", cfg.Queues.Transport),
				zap.String("store", cfg.StoreLog.Type))

			comps, err := pipeline.BuildComponents(cfg, logger)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, comps, logger)
			if err != nil {
				_ = comps.Close()
				return err
			}
			defer func() {
				if err := p.Close(); err != nil {
					logger.Warn("error while closing pipeline", zap.Error(err))
				}
			}()

			adminLimit := ratelimit.DefaultAdminConfig()
			server := api.NewServer(api.ServerConfig{
				Log:           logger,
				ListenAddress: cfg.Server.ListenAddress,
				Debug:         rt.debug,
				Pipeline:      p,
				Stub:          comps.Stub,
				Breaker:       comps.Breaker,
				RateLimit:     &adminLimit,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return p.Run(gctx) })
			g.Go(func() error { return server.Run(gctx) })

			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("forwarder stopped with error", zap.Error(err))
				return err
			}
			logger.Info("forwarder stopped")
			return nil
		},
	}
}
