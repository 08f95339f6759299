// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a: b\n", "a: b"},
		{"yaml fence", "```yaml\na: b\n```", "a: b"},
		{"bare fence", "```\na: b\nc: d\n```\n", "a: b\nc: d"},
		{"only fence", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, uint32(0), EstimateTokens(""))
	assert.Equal(t, uint32(15), EstimateTokens("0123456789"))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{Mode: ModeSchema, Text: "deploy nginx", SchemaType: "kubernetes", Schema: "kind: string"})
	assert.Contains(t, p, "kubernetes")
	assert.Contains(t, p, "kind: string")
	assert.Contains(t, p, "deploy nginx")

	p = BuildPrompt(Request{Mode: ModePattern, Text: "deploy redis", PatternSample: "deploy nginx"})
	assert.Contains(t, p, "deploy nginx")

	p = BuildPrompt(Request{Mode: ModeRepair, Text: "x", Previous: "a: [", Issues: []string{"unclosed flow sequence"}})
	assert.Contains(t, p, "- unclosed flow sequence")
	assert.Contains(t, p, "a: [")
}

func TestTemplateGenerator(t *testing.T) {
	g, err := NewTemplateGenerator(nil)
	require.NoError(t, err)

	for _, schemaType := range []string{"github_actions", "kubernetes", "docker_compose", "ansible", "generic_yaml", "unknown"} {
		t.Run(schemaType, func(t *testing.T) {
			out, err := g.Generate(context.Background(), Request{
				Text:       `Create a "quoted" thing: with colons & ünïcode`,
				SchemaType: schemaType,
			})
			require.NoError(t, err)
			var doc any
			require.NoError(t, yaml.Unmarshal([]byte(out), &doc), out)
			assert.NotNil(t, doc)
		})
	}

	t.Run("override", func(t *testing.T) {
		g, err := NewTemplateGenerator(map[string]string{"custom": "slug: {{.Slug}}\n"})
		require.NoError(t, err)
		out, err := g.Generate(context.Background(), Request{Text: "My Cool App", SchemaType: "custom"})
		require.NoError(t, err)
		assert.Equal(t, "slug: my-cool-app\n", out)
	})

	t.Run("bad override", func(t *testing.T) {
		_, err := NewTemplateGenerator(map[string]string{"bad": "{{.Nope"})
		assert.Error(t, err)
	})
}

func TestBreaker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenDuration: time.Minute})
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		ok, done := b.Allow()
		require.True(t, ok)
		done(boom)
	}
	assert.Equal(t, BreakerOpen, b.State())

	ok, _ := b.Allow()
	assert.False(t, ok, "open breaker rejects")

	now = now.Add(2 * time.Minute)
	ok, done := b.Allow()
	require.True(t, ok, "cool-down elapsed, trial call allowed")
	assert.Equal(t, BreakerHalfOpen, b.State())

	second, _ := b.Allow()
	assert.False(t, second, "only one trial call at a time")

	done(nil)
	assert.Equal(t, BreakerClosed, b.State())

	stats := b.Stats()
	assert.Equal(t, int64(5), stats.Calls)
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(2), stats.Rejections)
}

func TestBreaker_CancellationIsNeutral(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})
	ok, done := b.Allow()
	require.True(t, ok)
	done(context.Canceled)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestGuarded(t *testing.T) {
	calls := 0
	failing := GeneratorFunc(func(context.Context, Request) (string, error) {
		calls++
		return "", errors.New("upstream 500")
	})
	g := NewGuarded(failing, GuardConfig{Breaker: BreakerConfig{FailureThreshold: 2, OpenDuration: time.Hour}}, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	_, err := g.Generate(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 2, calls, "open breaker short-circuits")
	assert.Equal(t, "open", g.Stats().State)
}

func TestGuarded_RateLimitHonoursContext(t *testing.T) {
	ok := GeneratorFunc(func(context.Context, Request) (string, error) { return "a: b", nil })
	g := NewGuarded(ok, GuardConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)

	out, err := g.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "a: b", out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, Request{})
	assert.Error(t, err, "second call would wait far past the deadline")
}

func TestOpenAIGenerator(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "` + "```yaml\\nkind: Deployment\\n```" + `"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model"}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), Request{Mode: ModeSchema, Text: "deploy nginx", SchemaType: "kubernetes"})
	require.NoError(t, err)
	assert.Equal(t, "kind: Deployment", out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "deploy nginx")
}

func TestNewOpenAIGenerator_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIGenerator(OpenAIConfig{}, nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = NewOpenAIGenerator(OpenAIConfig{APIKeyFile: t.TempDir() + "/missing"}, nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
