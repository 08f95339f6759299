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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
)

const k8sText = "kubernetes deployment for nginx with one replica"

type cliRun struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// badgerConfig writes a config file that persists patterns under dir.
func badgerConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "goap.yaml")
	body := fmt.Sprintf("storage:\n  backend: badger\n  path: %s\n  gc_interval: 0s\ncache:\n  sweep_interval: 0s\n",
		filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestProcess_JSONByDefaultWhenPiped(t *testing.T) {
	run := runCLI(t, "", "process", k8sText)
	require.NoError(t, run.err, run.stderr)

	var resp struct {
		Success    bool   `json:"success"`
		FromCache  bool   `json:"from_cache"`
		TokensUsed uint32 `json:"tokens_used"`
		Response   string `json:"response"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp), run.stdout)
	assert.True(t, resp.Success)
	assert.False(t, resp.FromCache)
	assert.Equal(t, uint32(145), resp.TokensUsed)
	assert.Contains(t, resp.Response, "kind: Deployment")
	assert.Empty(t, run.stderr, "info logs stay quiet for one-shot commands")
}

func TestProcess_TextOutput(t *testing.T) {
	run := runCLI(t, "", "process", "--output", "text", k8sText)
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "OK: request completed")
	assert.Contains(t, run.stdout, "source: planner")
	assert.Contains(t, run.stdout, "tokens: 145 used")
	assert.Contains(t, run.stdout, "generate_response")
	assert.Contains(t, run.stdout, "--- Response ---")
}

func TestProcess_ReadsStdinAndWritesOut(t *testing.T) {
	out := filepath.Join(t.TempDir(), "deploy.yaml")
	run := runCLI(t, k8sText, "process", "--out", out, "-")
	require.NoError(t, run.err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion:")
}

func TestProcess_Rejected(t *testing.T) {
	run := runCLI(t, "", "process", "--token-budget", "50", k8sText)
	require.Error(t, run.err)
	assert.ErrorIs(t, run.err, goap.ErrBudgetBelowMinimum)
	assert.Equal(t, exitValidation, exitCode(run.err))
	assert.Empty(t, run.stdout)
}

func TestProcess_UnknownGoal(t *testing.T) {
	run := runCLI(t, "", "process", "--goal", "everything", k8sText)
	assert.ErrorIs(t, run.err, goals.ErrInvalidGoal)
}

func TestProcess_StagedGoal(t *testing.T) {
	run := runCLI(t, "", "process", "--goal", "staged_quality", k8sText)
	require.NoError(t, run.err, run.stderr)

	var resp struct {
		Success        bool     `json:"success"`
		TokensUsed     uint32   `json:"tokens_used"`
		CompletedGoals []string `json:"completed_goals"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp), run.stdout)
	assert.True(t, resp.Success)
	assert.Equal(t, uint32(150), resp.TokensUsed)
	assert.Equal(t, []string{"prepare", "respond"}, resp.CompletedGoals)
}

func TestProcess_EmptyStdin(t *testing.T) {
	run := runCLI(t, "   ", "process")
	assert.ErrorIs(t, run.err, goap.ErrMalformedRequest)
	assert.Equal(t, exitValidation, exitCode(run.err))
}

func TestValidate(t *testing.T) {
	run := runCLI(t, "", "validate", "-o", "text", k8sText)
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "OK: request is valid")
	assert.Contains(t, run.stdout, "schema type: kubernetes")

	run = runCLI(t, "", "validate", "--token-budget", "10", k8sText)
	require.Error(t, run.err)
	assert.Equal(t, exitValidation, exitCode(run.err))
	var report goap.ValidationReport
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &report))
	assert.False(t, report.Valid)
}

func TestPatterns_PersistAcrossInvocations(t *testing.T) {
	cfg := badgerConfig(t)

	require.NoError(t, runCLI(t, "", "-c", cfg, "process", k8sText).err)

	run := runCLI(t, "", "-c", cfg, "patterns", "list")
	require.NoError(t, run.err, run.stderr)
	var list struct {
		Patterns []*cache.SuccessPattern `json:"patterns"`
		Count    int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &list))
	require.Equal(t, 1, list.Count)
	id := list.Patterns[0].ID

	run = runCLI(t, "", "-c", cfg, "process", k8sText)
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, `"from_cache": true`)

	run = runCLI(t, "", "-c", cfg, "-o", "text", "patterns", "show", id)
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "Pattern "+id)
	assert.Contains(t, run.stdout, "schema type: kubernetes")

	run = runCLI(t, "", "-c", cfg, "-o", "text", "patterns", "list")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, id)

	run = runCLI(t, "", "-c", cfg, "metrics")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, `"size": 1`)

	require.NoError(t, runCLI(t, "", "-c", cfg, "patterns", "delete", id).err)

	run = runCLI(t, "", "-c", cfg, "patterns", "show", id)
	assert.ErrorIs(t, run.err, cache.ErrPatternNotFound)
	assert.Equal(t, exitFailure, exitCode(run.err))
}

func TestPatterns_ListBadConfidence(t *testing.T) {
	run := runCLI(t, "", "patterns", "list", "--min-confidence", "120")
	assert.Error(t, run.err)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	run := runCLI(t, "", "--output", "yaml", "metrics")
	require.Error(t, run.err)
	assert.Equal(t, exitValidation, exitCode(run.err))
}

func TestRoot_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planner:\n  max_plan_depth: 0\n"), 0o600))
	run := runCLI(t, "", "-c", path, "metrics")
	assert.Error(t, run.err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitAborted, exitCode(&reportedError{err: errors.New("aborted"), code: exitAborted}))
	assert.Equal(t, exitValidation, exitCode(&goap.ValidationError{Field: "text", Err: goap.ErrMalformedRequest}))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}
