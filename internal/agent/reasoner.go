// Package agent implements the claim adjudication loop: a bounded,
// tool-calling state machine around an opaque reasoning model.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/claimgate/internal/model"
)

// Message roles, mirroring the chat-completions convention
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a reasoning model's request to invoke one named tool
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Message is one turn in the running conversation
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // set on assistant turns requesting tools
	ToolCallID string     // set on tool result turns
	ToolName   string
}

// ToolSpec describes one tool the reasoner may request
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is everything the reasoner sees on one step
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Reasoner is the opaque reasoning capability. Given the instruction
// set and the running history it returns either free text or a request
// to invoke tools.
type Reasoner interface {
	Name() string
	Next(ctx context.Context, req Request) (*Message, error)
}

// OpenAIReasoner implements Reasoner over the chat-completions API
type OpenAIReasoner struct {
	client *openai.Client
	config model.AgentConfig
}

// NewOpenAIReasoner creates a reasoner backed by an OpenAI-compatible
// endpoint
func NewOpenAIReasoner(cfg model.AgentConfig) (*OpenAIReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIReasoner{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Name returns the reasoner identifier
func (r *OpenAIReasoner) Name() string {
	return "openai/" + r.config.Model
}

// Next runs one reasoning step against the model
func (r *OpenAIReasoner) Next(ctx context.Context, req Request) (*Message, error) {
	timeout := r.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, msg := range req.Messages {
		messages = append(messages, toOpenAIMessage(msg))
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, spec := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.config.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("reasoning model returned no choices")
	}

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.ToolName,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) *Message {
	out := &Message{
		Role:    RoleAssistant,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}
