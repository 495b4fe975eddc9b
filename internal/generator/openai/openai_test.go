package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserag/internal/capability"
	"courserag/internal/domain"
	"courserag/internal/generator"
)

// newChatServer serves a canned chat completions response and captures the
// decoded request body.
func newChatServer(t *testing.T, response string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func newTestGenerator(t *testing.T, baseURL string) *Generator {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	gen, err := New(Config{BaseURL: baseURL + "/v1", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	return gen
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("UNSET_KEY_ENV", "")
	_, err := New(Config{APIKeyEnv: "UNSET_KEY_ENV"})
	assert.Error(t, err)
}

func TestGenerate_PlainAnswer(t *testing.T) {
	server, captured := newChatServer(t, `{
		"id": "cmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "Paris."}}]
	}`)
	gen := newTestGenerator(t, server.URL)

	resp, err := gen.Generate(context.Background(), generator.Request{
		Messages: []generator.Message{
			{Role: generator.RoleSystem, Content: "Answer briefly."},
			{Role: generator.RoleUser, Content: "Capital of France?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Text)
	assert.Nil(t, resp.Call)

	messages := (*captured)["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "Answer briefly.", first["content"])
}

func TestGenerate_DecodesToolCall(t *testing.T) {
	server, captured := newChatServer(t, `{
		"id": "cmpl-2",
		"choices": [{"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_abc",
				"type": "function",
				"function": {
					"name": "search_course_content",
					"arguments": "{\"query\": \"mammals\", \"lesson_number\": 2}"
				}
			}]
		}}]
	}`)
	gen := newTestGenerator(t, server.URL)

	schema := capability.Schema{
		Name:        "search_course_content",
		Description: "Search course materials",
		Properties: map[string]capability.Property{
			"query": {Type: "string", Description: "What to search for"},
		},
		Required: []string{"query"},
	}
	resp, err := gen.Generate(context.Background(), generator.Request{
		Messages: []generator.Message{{Role: generator.RoleUser, Content: "What are mammals?"}},
		Tools:    []capability.Schema{schema},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Call)
	assert.Equal(t, "search_course_content", resp.Call.Name)
	assert.Equal(t, "mammals", resp.Call.Arguments["query"])
	assert.Equal(t, float64(2), resp.Call.Arguments["lesson_number"])
	assert.Equal(t, "call_abc", resp.CallID)

	tools := (*captured)["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "search_course_content", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Contains(t, params["properties"].(map[string]any), "query")
	assert.Equal(t, []any{"query"}, params["required"])
}

func TestGenerate_MalformedArgumentsIgnored(t *testing.T) {
	server, _ := newChatServer(t, `{
		"id": "cmpl-3",
		"choices": [{"message": {
			"role": "assistant",
			"content": "Fallback answer.",
			"tool_calls": [{
				"id": "call_bad",
				"type": "function",
				"function": {"name": "search_course_content", "arguments": "{not json"}
			}]
		}}]
	}`)
	gen := newTestGenerator(t, server.URL)

	resp, err := gen.Generate(context.Background(), generator.Request{
		Messages: []generator.Message{{Role: generator.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Call)
	assert.Equal(t, "Fallback answer.", resp.Text)
}

func TestGenerate_CapabilityExchangeRoundTrips(t *testing.T) {
	server, captured := newChatServer(t, `{
		"id": "cmpl-4",
		"choices": [{"message": {"role": "assistant", "content": "Cats are mammals."}}]
	}`)
	gen := newTestGenerator(t, server.URL)

	call := &domain.CapabilityCall{
		Name:      "search_course_content",
		Arguments: map[string]any{"query": "mammals"},
	}
	_, err := gen.Generate(context.Background(), generator.Request{
		Messages: []generator.Message{
			{Role: generator.RoleUser, Content: "What are mammals?"},
			{Role: generator.RoleAssistant, Call: call, CallID: "call_abc"},
			{Role: generator.RoleCapability, Content: "[Intro to X - Lesson 1]\nCats are mammals.", CallID: "call_abc"},
		},
	})
	require.NoError(t, err)

	messages := (*captured)["messages"].([]any)
	require.Len(t, messages, 3)

	assistant := messages[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	toolCalls := assistant["tool_calls"].([]any)
	require.Len(t, toolCalls, 1)
	tc := toolCalls[0].(map[string]any)
	assert.Equal(t, "call_abc", tc["id"])
	assert.Equal(t, "search_course_content", tc["function"].(map[string]any)["name"])

	toolMsg := messages[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_abc", toolMsg["tool_call_id"])

	_, hasTools := (*captured)["tools"]
	assert.False(t, hasTools, "follow-up request must not offer tools")
}

func TestGenerate_NoChoices(t *testing.T) {
	server, _ := newChatServer(t, `{"id": "cmpl-5", "choices": []}`)
	gen := newTestGenerator(t, server.URL)

	_, err := gen.Generate(context.Background(), generator.Request{
		Messages: []generator.Message{{Role: generator.RoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}
