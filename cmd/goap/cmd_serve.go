// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGOAP/services/goap/api"
	"github.com/AleutianAI/AleutianGOAP/services/goap/telemetry"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := c.slog()
			shutdownTelemetry, err := telemetry.Init(ctx, c.cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTelemetry(flushCtx); err != nil {
					logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()

			sys, err := c.openSystem(ctx)
			if err != nil {
				return err
			}
			defer sys.Close()

			serverCfg := c.cfg.Server
			if addr != "" {
				serverCfg.Addr = addr
			}
			if !c.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			return api.Serve(ctx, sys, serverCfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8090)")
	return cmd
}
