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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/api"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/metrics"
)

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) renderResult(result *execution.ExecutionResult, err error) error {
	if c.output == outputJSON {
		return c.writeJSON(api.ProcessResponse{ExecutionResult: result, Category: goap.Classify(err)})
	}
	p := c.printer()
	if result.Success {
		p.Success("request completed")
	} else {
		p.Error("request aborted")
	}

	source := "planner"
	if result.FromCache {
		source = "pattern " + result.PatternID
	}
	p.Field("source", source)
	p.Field("tokens", fmt.Sprintf("%d used, %d remaining", result.TokensUsed, result.TokensRemaining))
	p.Field("replans", result.ReplanCount)
	p.Field("duration", result.Duration.Round(time.Microsecond))

	steps := make([]string, 0, len(result.Steps))
	for _, s := range result.Steps {
		line := fmt.Sprintf("%s [%s, %d tokens]", s.Action, s.Status, s.TokensUsed)
		if s.Error != "" {
			line += ": " + s.Error
		}
		steps = append(steps, line)
	}
	p.Title("Steps")
	p.Bullets(steps)

	if len(result.Replans) > 0 {
		replans := make([]string, 0, len(result.Replans))
		for _, r := range result.Replans {
			replans = append(replans, fmt.Sprintf("#%d %s after %s, excluded %d, new plan %d steps",
				r.Attempt, r.Reason, r.FailedAction, len(r.Excluded), r.PlanLength))
		}
		p.Title("Replans")
		p.Bullets(replans)
	}

	if err != nil {
		p.Error(err.Error())
		if len(result.Unsatisfied) > 0 {
			names := make([]string, len(result.Unsatisfied))
			for i, prop := range result.Unsatisfied {
				names[i] = prop.String()
			}
			p.Field("unsatisfied", strings.Join(names, ", "))
		}
	}
	if result.Response != "" {
		p.Box("Response", result.Response)
	}
	return nil
}

func (c *cli) renderReport(report goap.ValidationReport) error {
	if c.output == outputJSON {
		return c.writeJSON(report)
	}
	p := c.printer()
	if report.Valid {
		p.Success("request is valid")
	} else {
		p.Error("request is invalid")
	}
	p.Field("schema type", report.SchemaType)
	p.Field("estimated tokens", report.EstimatedTokens)
	if report.TokenBudget > 0 {
		p.Field("token budget", report.TokenBudget)
	}
	if m := report.PatternMatch; m != nil {
		p.Field("pattern", fmt.Sprintf("%s (confidence %.1f, similarity %.2f, used %d times)",
			m.ID, m.Confidence, m.Similarity, m.UsageCount))
	}
	for _, issue := range report.Issues {
		p.Warning(issue)
	}
	return nil
}

func (c *cli) renderPatterns(patterns []*cache.SuccessPattern) error {
	if c.output == outputJSON {
		return c.writeJSON(api.PatternListResponse{Patterns: patterns, Count: len(patterns)})
	}
	p := c.printer()
	if len(patterns) == 0 {
		p.Warning("no patterns learned")
		return nil
	}
	rows := make([][]string, 0, len(patterns))
	for _, pat := range patterns {
		rows = append(rows, []string{
			pat.ID,
			pat.SchemaType,
			fmt.Sprintf("%.1f", pat.Confidence),
			fmt.Sprintf("%d", pat.UsageCount),
			fmt.Sprintf("%.0f", pat.AvgTokens),
			pat.LastUsed.Format(time.RFC3339),
		})
	}
	p.Table([]string{"ID", "SCHEMA", "CONFIDENCE", "USES", "AVG TOKENS", "LAST USED"}, rows)
	return nil
}

func (c *cli) renderPattern(pat *cache.SuccessPattern) error {
	if c.output == outputJSON {
		return c.writeJSON(pat)
	}
	p := c.printer()
	p.Title("Pattern " + pat.ID)
	p.Field("schema type", pat.SchemaType)
	p.Field("confidence", fmt.Sprintf("%.1f", pat.Confidence))
	p.Field("success rate", fmt.Sprintf("%.2f", pat.SuccessRate))
	p.Field("uses", pat.UsageCount)
	p.Field("avg tokens", fmt.Sprintf("%.0f", pat.AvgTokens))
	p.Field("created", pat.CreatedAt.Format(time.RFC3339))
	p.Field("last used", pat.LastUsed.Format(time.RFC3339))
	if pat.Sample != "" {
		p.Field("sample", pat.Sample)
	}
	seq := make([]string, len(pat.ActionSequence))
	for i, t := range pat.ActionSequence {
		seq[i] = t.String()
	}
	p.Title("Actions")
	p.Bullets(seq)
	return nil
}

// metricsView is the JSON shape of the metrics command.
type metricsView struct {
	Metrics      metrics.Snapshot   `json:"metrics"`
	PatternCache cache.PatternStats `json:"pattern_cache"`
}

func (c *cli) renderMetrics(v metricsView) error {
	if c.output == outputJSON {
		return c.writeJSON(v)
	}
	p := c.printer()
	p.Title("Pattern cache")
	p.Field("patterns", fmt.Sprintf("%d / %d", v.PatternCache.Size, v.PatternCache.Capacity))
	p.Field("lookups", fmt.Sprintf("%d (%d hits, %.0f%%)", v.PatternCache.Lookups, v.PatternCache.Hits, v.PatternCache.HitRate()*100))
	p.Field("evictions", v.PatternCache.Evictions)
	p.Title("Requests")
	m := v.Metrics
	p.Field("total", m.TotalRequests)
	p.Field("succeeded", m.SuccessfulRequests)
	p.Field("failed", m.FailedRequests)
	p.Field("rejected", m.RejectedRequests)
	p.Field("tokens saved", m.TokensSaved)
	return nil
}
