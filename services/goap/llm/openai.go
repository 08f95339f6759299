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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You generate configuration files. Reply with the file content only."

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey string `json:"-" yaml:"-"`

	// APIKeyFile is read when APIKey and OPENAI_API_KEY are both empty.
	APIKeyFile string `json:"api_key_file" yaml:"api_key_file"`

	// BaseURL points at an OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL string `json:"base_url" yaml:"base_url"`

	Model        string  `json:"model" yaml:"model"`
	Temperature  float32 `json:"temperature" yaml:"temperature"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens"`
	SystemPrompt string  `json:"system_prompt" yaml:"system_prompt"`
}

// OpenAIGenerator generates responses with the chat completions API.
//
// Thread Safety: Safe for concurrent use.
type OpenAIGenerator struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIGenerator creates a generator.
//
// Description:
//
//	The API key comes from cfg.APIKey, then OPENAI_API_KEY, then the file
//	at cfg.APIKeyFile (a mounted secret). The model defaults to OPENAI_MODEL
//	and then gpt-4o-mini.
//
// Outputs:
//   - *OpenAIGenerator: The generator.
//   - error: ErrNotConfigured if no API key can be found.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" && cfg.APIKeyFile != "" {
		raw, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read api key file %s: %v", ErrNotConfigured, cfg.APIKeyFile, err)
		}
		cfg.APIKey = strings.TrimSpace(string(raw))
		logger.Info("read OpenAI API key from secret file", slog.String("path", cfg.APIKeyFile))
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger.Info("initializing OpenAI generator", slog.String("model", cfg.Model))
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: logger,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		Temperature: g.config.Temperature,
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if maxTokens > 0 {
		chat.MaxCompletionTokens = maxTokens
	}

	g.logger.DebugContext(ctx, "generating via OpenAI",
		slog.String("model", g.config.Model),
		slog.String("mode", string(req.Mode)))

	resp, err := g.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := StripFences(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	g.logger.DebugContext(ctx, "received OpenAI response",
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))
	return out, nil
}
