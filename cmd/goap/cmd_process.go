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
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
)

// requestFlags are shared by process and validate.
type requestFlags struct {
	tokenBudget  uint32
	maxReplans   int
	noReplanning bool
	goal         string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.tokenBudget, "token-budget", 0, "token budget for the request (default from config)")
	cmd.Flags().IntVar(&f.maxReplans, "max-replans", -1, "replan limit for the request (default from config)")
	cmd.Flags().BoolVar(&f.noReplanning, "no-replanning", false, "abort on the first failure")
	cmd.Flags().StringVar(&f.goal, "goal", "", "goal preset: efficiency_focused, pattern_reuse, quality_focused or staged_quality")
}

func (f *requestFlags) request(text string) (goap.PlanRequest, error) {
	req := goap.PlanRequest{
		Text:              text,
		TokenBudget:       f.tokenBudget,
		DisableReplanning: f.noReplanning,
	}
	if f.maxReplans >= 0 {
		n := f.maxReplans
		req.MaxReplans = &n
	}
	if f.goal != "" {
		stages, err := goals.Lookup(f.goal)
		if err != nil {
			return goap.PlanRequest{}, err
		}
		req.Stages = stages
	}
	return req, nil
}

// readText joins args, or reads stdin when there are none or the only
// argument is "-".
func (c *cli) readText(args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(c.stdin, int64(execution.MaxRequestBytes)+1))
	if err != nil {
		return "", fmt.Errorf("read request from stdin: %w", err)
	}
	return string(data), nil
}

func (c *cli) processCmd() *cobra.Command {
	var (
		flags   requestFlags
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "process [request text | -]",
		Short: "Plan and execute a request, printing the generated document",
		Example: `  goap process "kubernetes deployment for nginx with 3 replicas"
  echo "github actions workflow that runs go test" | goap process --out ci.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := c.readText(args)
			if err != nil {
				return err
			}
			req, err := flags.request(text)
			if err != nil {
				return err
			}
			return c.runProcess(cmd, req, outPath)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "also write the generated document to this file")
	return cmd
}

func (c *cli) runProcess(cmd *cobra.Command, req goap.PlanRequest, outPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sys, err := c.openSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	result, err := sys.Process(ctx, req)
	if result == nil {
		return err
	}
	if rerr := c.renderResult(result, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return &reportedError{err: err, code: exitAborted}
	}
	if outPath != "" {
		if werr := os.WriteFile(outPath, []byte(result.Response), 0o644); werr != nil {
			return fmt.Errorf("write %s: %w", outPath, werr)
		}
		c.slog().Debug("response written", "path", outPath)
	}
	return nil
}

func (c *cli) validateCmd() *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "validate [request text | -]",
		Short: "Check a request and report the pattern it would reuse, without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := c.readText(args)
			if err != nil {
				return err
			}
			req, err := flags.request(text)
			if err != nil {
				return err
			}
			sys, err := c.openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer sys.Close()

			report, err := sys.Validate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := c.renderReport(report); err != nil {
				return err
			}
			if !report.Valid {
				return &reportedError{err: fmt.Errorf("invalid request: %s", strings.Join(report.Issues, "; ")), code: exitValidation}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
