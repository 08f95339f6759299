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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGOAP/pkg/logging"
	"github.com/AleutianAI/AleutianGOAP/pkg/ux"
	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/config"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

// Exit codes.
const (
	exitFailure    = 1
	exitValidation = 2
	exitAborted    = 3
)

// cli holds the flags and process-wide state shared by every command.
type cli struct {
	configPath string
	output     string
	verbose    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *logging.Logger
}

// newRootCmd builds the command tree. Commands read from stdin and write
// results to stdout; logs go to stderr.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "goap",
		Short: "Goal-oriented planning for structured generation requests",
		Long: `goap plans the cheapest sequence of actions that turns a natural-language
request into a validated structured document, replans around failures and
learns reusable patterns from successful runs.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Close()
			}
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML or JSON config file")
	flags.StringVarP(&c.output, "output", "o", "", "output format: text or json (default: text on a terminal, json otherwise)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		c.processCmd(),
		c.validateCmd(),
		c.patternsCmd(),
		c.metricsCmd(),
		c.serveCmd(),
	)

	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	switch c.output {
	case "":
		c.output = outputJSON
		if logging.IsTerminal(c.stdout) {
			c.output = outputText
		}
	case outputText, outputJSON:
	default:
		return &goap.ValidationError{Field: "output", Detail: fmt.Sprintf("unknown format %q", c.output), Err: goap.ErrMalformedRequest}
	}

	logCfg := cfg.Logging
	logCfg.Output = c.stderr
	switch {
	case c.verbose:
		logCfg.Level = logging.LevelDebug
	case cmd.Name() != "serve" && logCfg.Level < logging.LevelWarn:
		// One-shot commands keep stderr for problems only.
		logCfg.Level = logging.LevelWarn
	}
	c.cfg = cfg
	c.logger = logging.New(logCfg)
	return nil
}

func (c *cli) slog() *slog.Logger { return c.logger.Slog() }

// openSystem creates a System from the loaded config.
func (c *cli) openSystem(ctx context.Context) (*goap.System, error) {
	return goap.New(ctx, c.cfg, goap.WithLogger(c.slog()))
}

func (c *cli) printer() *ux.Printer {
	return ux.NewPrinter(c.stdout, !logging.IsTerminal(c.stdout))
}

// reportedError is a failure whose details were already written to stdout.
type reportedError struct {
	err  error
	code int
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var reported *reportedError
	switch {
	case errors.As(err, &reported):
		return reported.code
	case goap.Classify(err) == goap.CategoryValidation:
		return exitValidation
	default:
		return exitFailure
	}
}
