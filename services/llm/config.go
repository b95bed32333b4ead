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
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderSpec configures one backend in the fallback chain.
//
// Kind selects the client implementation: "anthropic", "openai", or
// "ollama". Model is the capable-tier model; FastModel, when set, gives
// the backend a distinct fast-tier client for planning calls.
type ProviderSpec struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	FastModel string `yaml:"fast_model"`
	BaseURL   string `yaml:"base_url"`
}

// RouterConfig is the YAML document describing the whole routing layer.
type RouterConfig struct {
	Providers   []ProviderSpec `yaml:"providers"`
	MaxAttempts int            `yaml:"max_attempts"`
	// RetryBaseDelayMS is the first backoff delay on a rate-limited
	// backend, in milliseconds.
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
}

// DefaultRouterConfig is the chain used when no YAML file is supplied:
// Anthropic, then OpenAI, then local Ollama. Each client resolves its
// model and credentials from the environment.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Providers: []ProviderSpec{
			{Name: "anthropic", Kind: "anthropic"},
			{Name: "openai", Kind: "openai"},
			{Name: "ollama", Kind: "ollama"},
		},
	}
}

// LoadRouterConfig reads and parses a RouterConfig from a YAML file.
func LoadRouterConfig(path string) (*RouterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read router config %s: %w", path, err)
	}
	var cfg RouterConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse router config %s: %w", path, err)
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("router config %s lists no providers", path)
	}
	return &cfg, nil
}

// BuildRouter constructs a ProviderRouter from configuration.
//
// Backends whose client cannot be constructed (missing API key, bad URL)
// are skipped with a warning so one misconfigured provider does not take
// the whole chain down. Construction fails only when no backend at all
// could be built.
func BuildRouter(cfg *RouterConfig) (*ProviderRouter, error) {
	var backends []Backend
	for _, spec := range cfg.Providers {
		capable, err := newClientForSpec(spec, spec.Model)
		if err != nil {
			slog.Warn("Skipping LLM backend", "name", spec.Name, "kind", spec.Kind, "error", err)
			continue
		}
		backend := Backend{Name: spec.Name, Capable: capable}
		if spec.FastModel != "" {
			fast, err := newClientForSpec(spec, spec.FastModel)
			if err != nil {
				slog.Warn("Fast-tier client unavailable, using capable tier",
					"name", spec.Name, "error", err)
			} else {
				backend.Fast = fast
			}
		}
		backends = append(backends, backend)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no usable LLM backends out of %d configured", len(cfg.Providers))
	}
	return NewProviderRouter(backends, cfg.MaxAttempts,
		time.Duration(cfg.RetryBaseDelayMS)*time.Millisecond)
}

func newClientForSpec(spec ProviderSpec, model string) (LLMClient, error) {
	switch spec.Kind {
	case "anthropic":
		return NewAnthropicClient(model)
	case "openai":
		return NewOpenAIClient(model)
	case "ollama":
		return NewOllamaClient(spec.BaseURL, model)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", spec.Kind)
	}
}
