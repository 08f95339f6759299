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

	"github.com/spf13/cobra"
)

func (c *cli) patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and manage learned patterns",
		Long: `Learned patterns live in the configured store. With the default memory
backend they last only for one invocation; use storage.backend: badger to
keep them between runs.`,
	}

	var minConfidence float64
	list := &cobra.Command{
		Use:   "list",
		Short: "List learned patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if minConfidence < 0 || minConfidence > 100 {
				return fmt.Errorf("--min-confidence must be between 0 and 100, got %v", minConfidence)
			}
			sys, err := c.openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer sys.Close()
			return c.renderPatterns(sys.ListPatterns(minConfidence))
		},
	}
	list.Flags().Float64Var(&minConfidence, "min-confidence", 0, "only list patterns at or above this confidence")

	show := &cobra.Command{
		Use:   "show <pattern-id>",
		Short: "Show one pattern and its action sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := c.openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer sys.Close()
			p, err := sys.GetPattern(args[0])
			if err != nil {
				return err
			}
			return c.renderPattern(p)
		},
	}

	del := &cobra.Command{
		Use:     "delete <pattern-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a pattern",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := c.openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer sys.Close()
			if err := sys.DeletePattern(cmd.Context(), args[0]); err != nil {
				return err
			}
			if c.output == outputJSON {
				return c.writeJSON(map[string]string{"status": "deleted", "id": args[0]})
			}
			c.printer().Success("deleted pattern " + args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func (c *cli) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show pattern cache statistics for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sys, err := c.openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer sys.Close()
			return c.renderMetrics(metricsView{Metrics: sys.Metrics(), PatternCache: sys.PatternStats()})
		},
	}
}
