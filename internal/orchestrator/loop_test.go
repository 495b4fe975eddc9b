package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserag/internal/capability"
	"courserag/internal/domain"
	"courserag/internal/generator"
)

// scriptedGenerator replays canned responses in order and records every
// request it receives.
type scriptedGenerator struct {
	responses []generator.Response
	requests  []generator.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req generator.Request) (generator.Response, error) {
	g.requests = append(g.requests, req)
	if len(g.responses) == 0 {
		return generator.Response{Text: "out of script"}, nil
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

type recordingCapability struct {
	name     string
	result   capability.Result
	executed int
	lastArgs map[string]any
}

func (c *recordingCapability) Schema() capability.Schema {
	return capability.Schema{Name: c.name}
}

func (c *recordingCapability) Execute(_ context.Context, args map[string]any) (capability.Result, error) {
	c.executed++
	c.lastArgs = args
	return c.result, nil
}

func newRegistry(t *testing.T, caps ...capability.Capability) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	for _, c := range caps {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

func TestRun_DirectAnswer(t *testing.T) {
	gen := &scriptedGenerator{responses: []generator.Response{{Text: "Paris."}}}
	search := &recordingCapability{name: "search_course_content"}
	loop := New(gen, newRegistry(t, search))

	answer, sources, err := loop.Run(context.Background(), "Capital of France?", "")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
	assert.Empty(t, sources)
	assert.Zero(t, search.executed)
	require.Len(t, gen.requests, 1)
	assert.Len(t, gen.requests[0].Tools, 1)
}

func TestRun_SingleCapabilityRound(t *testing.T) {
	call := &domain.CapabilityCall{
		Name:      "search_course_content",
		Arguments: map[string]any{"query": "mammals"},
	}
	gen := &scriptedGenerator{responses: []generator.Response{
		{Call: call, CallID: "call_1"},
		{Text: "Cats and dogs are mammals."},
	}}
	search := &recordingCapability{
		name: "search_course_content",
		result: capability.Result{
			Text:    "[Intro to X - Lesson 1]\nCats are mammals.",
			Sources: []string{"Intro to X - Lesson 1"},
		},
	}
	loop := New(gen, newRegistry(t, search))

	answer, sources, err := loop.Run(context.Background(), "What are mammals?", "")
	require.NoError(t, err)
	assert.Equal(t, "Cats and dogs are mammals.", answer)
	assert.Equal(t, []string{"Intro to X - Lesson 1"}, sources)
	assert.Equal(t, 1, search.executed)
	assert.Equal(t, map[string]any{"query": "mammals"}, search.lastArgs)

	require.Len(t, gen.requests, 2)
	followUp := gen.requests[1]
	assert.Nil(t, followUp.Tools, "follow-up request must not offer tools")

	// The follow-up conversation carries the capability exchange.
	require.Len(t, followUp.Messages, 4)
	assert.Equal(t, generator.RoleAssistant, followUp.Messages[2].Role)
	assert.Equal(t, call, followUp.Messages[2].Call)
	assert.Equal(t, generator.RoleCapability, followUp.Messages[3].Role)
	assert.Equal(t, "call_1", followUp.Messages[3].CallID)
	assert.Equal(t, "[Intro to X - Lesson 1]\nCats are mammals.", followUp.Messages[3].Content)
}

func TestRun_SecondCallRequestIsIgnored(t *testing.T) {
	call := &domain.CapabilityCall{Name: "search_course_content", Arguments: map[string]any{"query": "a"}}
	gen := &scriptedGenerator{responses: []generator.Response{
		{Call: call, CallID: "call_1"},
		// The model asks again; without tools attached the text is terminal.
		{Text: "Final answer.", Call: call, CallID: "call_2"},
	}}
	search := &recordingCapability{name: "search_course_content", result: capability.Result{Text: "found"}}
	loop := New(gen, newRegistry(t, search))

	answer, _, err := loop.Run(context.Background(), "question", "")
	require.NoError(t, err)
	assert.Equal(t, "Final answer.", answer)
	assert.Equal(t, 1, search.executed)
	assert.Len(t, gen.requests, 2)
}

func TestRun_UnknownCapabilityFallsBack(t *testing.T) {
	gen := &scriptedGenerator{responses: []generator.Response{
		{Text: "partial thought", Call: &domain.CapabilityCall{Name: "not_registered"}},
	}}
	loop := New(gen, newRegistry(t))

	answer, sources, err := loop.Run(context.Background(), "question", "")
	require.NoError(t, err)
	assert.Equal(t, "partial thought", answer)
	assert.Empty(t, sources)
	assert.Len(t, gen.requests, 1)
}

func TestRun_HistoryAppendedToSystemPrompt(t *testing.T) {
	gen := &scriptedGenerator{responses: []generator.Response{{Text: "ok"}}}
	loop := New(gen, newRegistry(t))

	_, _, err := loop.Run(context.Background(), "follow-up question", "User: hi\nAssistant: hello")
	require.NoError(t, err)

	require.Len(t, gen.requests, 1)
	system := gen.requests[0].Messages[0]
	assert.Equal(t, generator.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Previous conversation:\nUser: hi\nAssistant: hello")

	gen2 := &scriptedGenerator{responses: []generator.Response{{Text: "ok"}}}
	loop2 := New(gen2, newRegistry(t))
	_, _, err = loop2.Run(context.Background(), "first question", "")
	require.NoError(t, err)
	assert.NotContains(t, gen2.requests[0].Messages[0].Content, "Previous conversation")
}

func TestRun_EmptySearchStillAnswers(t *testing.T) {
	call := &domain.CapabilityCall{Name: "search_course_content", Arguments: map[string]any{"query": "quantum"}}
	gen := &scriptedGenerator{responses: []generator.Response{
		{Call: call, CallID: "call_1"},
		{Text: "The course does not cover that."},
	}}
	search := &recordingCapability{
		name:   "search_course_content",
		result: capability.Result{Text: "No relevant content found"},
	}
	loop := New(gen, newRegistry(t, search))

	answer, sources, err := loop.Run(context.Background(), "quantum gravity?", "")
	require.NoError(t, err)
	assert.Equal(t, "The course does not cover that.", answer)
	assert.Empty(t, sources)
}
