// Package orchestrator drives a single query exchange: one generation call,
// at most one capability invocation, one terminal answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"courserag/internal/capability"
	"courserag/internal/domain"
	"courserag/internal/generator"
)

// SystemPrompt is the fixed instruction sent with every query.
const SystemPrompt = `You are an AI assistant specialized in course materials and educational content.

Use the search_course_content capability only when a question asks about specific course content or lesson details, and at most once per query. Answer general knowledge questions directly from what you know.

Answers must be brief, concise and focused, without meta-commentary about the search process. If the search finds nothing relevant, say so.`

// Loop runs the bounded generator/capability exchange. One Loop value serves
// many concurrent query flows; all per-query state lives on the stack.
type Loop struct {
	gen      generator.Generator
	registry *capability.Registry
}

// New creates an orchestration loop over the given generator and registry.
func New(gen generator.Generator, registry *capability.Registry) *Loop {
	return &Loop{gen: gen, registry: registry}
}

// Run answers one query. History is an opaque block of prior-turn text
// supplied by the session provider; it may be empty. Returns the terminal
// answer and the source labels of the capability call, if one was made.
func (l *Loop) Run(ctx context.Context, query, history string) (string, []string, error) {
	system := SystemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", SystemPrompt, history)
	}
	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: system},
		{Role: generator.RoleUser, Content: query},
	}

	resp, err := l.gen.Generate(ctx, generator.Request{
		Messages: messages,
		Tools:    l.registry.Schemas(),
	})
	if err != nil {
		return "", nil, err
	}
	if resp.Call == nil {
		// No capability selected: the first response is terminal.
		return resp.Text, nil, nil
	}

	result, err := l.registry.Dispatch(ctx, *resp.Call)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCapability) {
			// Configuration defect: the generator asked for a capability we
			// never declared. Fall back to the first response.
			log.Printf("orchestrator: %v", err)
			return resp.Text, nil, nil
		}
		return "", nil, err
	}

	messages = append(messages,
		generator.Message{
			Role:    generator.RoleAssistant,
			Content: resp.Text,
			Call:    resp.Call,
			CallID:  resp.CallID,
		},
		generator.Message{
			Role:    generator.RoleCapability,
			Content: result.Text,
			CallID:  resp.CallID,
		},
	)

	// Follow-up with no tools attached: the one-search limit is structural,
	// not an instruction the model could ignore.
	final, err := l.gen.Generate(ctx, generator.Request{Messages: messages})
	if err != nil {
		return "", nil, err
	}
	return final.Text, result.Sources, nil
}
