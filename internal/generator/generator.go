// Package generator defines the narrow interface through which the
// orchestration loop consumes a generative model.
package generator

import (
	"context"

	"courserag/internal/capability"
	"courserag/internal/domain"
)

// Message roles.
const (
	RoleSystem     = "system"
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleCapability = "capability"
)

// Message is one turn of the conversation sent to the generator. Call is set
// on assistant messages that selected a capability; CallID ties a
// RoleCapability result message back to that selection.
type Message struct {
	Role    string
	Content string
	Call    *domain.CapabilityCall
	CallID  string
}

// Request is one generation request. Tools lists the capability schemas the
// model may select from; a nil slice disables capability selection for this
// request.
type Request struct {
	Messages  []Message
	Tools     []capability.Schema
	MaxTokens int
}

// Response is the generator's reply. Call is non-nil when the model elected
// to invoke a capability instead of (or before) answering.
type Response struct {
	Text   string
	Call   *domain.CapabilityCall
	CallID string
}

// Generator produces one response per request with deterministic sampling.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
