package llm

import (
	"context"

	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// Float32Ptr, IntPtr are small helpers for building GenerationParams literals.
func Float32Ptr(v float32) *float32 { return &v }
func IntPtr(v int) *int             { return &v }
