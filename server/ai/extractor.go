package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// FactExtractor distills raw conversational input into atomic fact strings.
// Zero results for non-empty input is valid, not an error. The interface is
// deliberately narrow so the engine's tests can substitute a deterministic
// stub for the non-deterministic LLM implementation.
type FactExtractor interface {
	Extract(ctx context.Context, content string) ([]string, error)
}

const extractSystemPrompt = `You distill conversational text into atomic, storable facts about the user.
Rules:
- Each fact is a single self-contained statement.
- Only include durable personal facts (preferences, relationships, projects, commitments), not small talk.
- Return a JSON array of strings. Return [] if the text contains no storable facts.
- No commentary outside the JSON array.`

type chatCompleter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// LLMExtractor implements FactExtractor on top of a chat-completion provider.
type LLMExtractor struct {
	provider chatCompleter
}

// NewLLMExtractor creates a fact extractor backed by the given provider.
func NewLLMExtractor(provider chatCompleter) *LLMExtractor {
	return &LLMExtractor{provider: provider}
}

// Extract sends the content to the LLM and parses the returned JSON array.
func (e *LLMExtractor) Extract(ctx context.Context, content string) ([]string, error) {
	raw, err := e.provider.Chat(ctx, extractSystemPrompt, content)
	if err != nil {
		return nil, fmt.Errorf("fact extraction request failed: %w", err)
	}
	return parseFactArray(raw)
}

// parseFactArray parses a JSON string array, tolerating markdown code fences
// around the payload. Blank facts are dropped.
func parseFactArray(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var facts []string
	if err := json.Unmarshal([]byte(trimmed), &facts); err != nil {
		return nil, fmt.Errorf("failed to parse extracted facts: %w", err)
	}

	out := facts[:0]
	for _, fact := range facts {
		if f := strings.TrimSpace(fact); f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}
