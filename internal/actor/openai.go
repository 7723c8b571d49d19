package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	toolBash   = "bash"
	toolFixed  = "switch_to_fixed"
	toolBuggy  = "switch_to_buggy"
	toolSubmit = "submit_oracle_script"
)

// OpenAIConfig configures the LLM-backed actor.
type OpenAIConfig struct {
	APIKey    string // falls back to OPENAI_API_KEY
	BaseURL   string // optional, for OpenAI-compatible endpoints
	Model     string // defaults to gpt-4o
	MaxTokens int    // defaults to 8192
}

// OpenAIActor drives a chat-completion model with tool calling. It owns the
// conversation history for one session; a fresh actor is created per task.
type OpenAIActor struct {
	client    *openai.Client
	model     string
	maxTokens int
	messages  []openai.ChatCompletionMessage
	pending   []openai.ToolCall // tool calls awaiting results, delivered one per turn
}

// NewOpenAI creates an actor primed with the task context.
func NewOpenAI(cfg OpenAIConfig, taskCtx TaskContext) (*OpenAIActor, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set OPENAI_API_KEY or actor.api_key")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	a := &OpenAIActor{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
	}
	a.messages = append(a.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: taskCtx.SystemPrompt(),
	})
	return a, nil
}

// Next advances the conversation by one action. When the model batched
// several tool calls, they are drained one per turn, each observation
// answering the oldest outstanding call, before the model is consulted again.
func (a *OpenAIActor) Next(ctx context.Context, req Request) (Response, error) {
	if len(a.pending) > 0 {
		a.messages = append(a.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    req.Observation,
			ToolCallID: a.pending[0].ID,
		})
		a.pending = a.pending[1:]
		if len(a.pending) > 0 {
			return a.translate(a.pending[0])
		}
	} else if req.Observation != "" {
		a.messages = append(a.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Observation,
		})
	}

	if req.Nudge != "" {
		a.messages = append(a.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Nudge,
		})
	}
	if len(a.messages) == 1 {
		// System prompt only: open the conversation.
		a.messages = append(a.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Start. Explore the repository briefly, then write and submit the oracle script.",
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  a.messages,
		Tools:     toolDefinitions(),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	a.messages = append(a.messages, msg)

	if len(msg.ToolCalls) == 0 {
		slog.Debug("actor returned no tool call", "content_len", len(msg.Content))
		a.messages = append(a.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Respond with exactly one tool call (bash, switch_to_fixed, switch_to_buggy, or submit_oracle_script).",
		})
		return Response{Action: ActionNone}, nil
	}

	a.pending = append(a.pending, msg.ToolCalls...)
	return a.translate(a.pending[0])
}

func (a *OpenAIActor) translate(call openai.ToolCall) (Response, error) {
	switch call.Function.Name {
	case toolBash:
		var args struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return Response{}, fmt.Errorf("parse bash arguments: %w", err)
		}
		return Response{Action: ActionExec, Command: args.Command}, nil
	case toolFixed:
		return Response{Action: ActionSwitchFixed}, nil
	case toolBuggy:
		return Response{Action: ActionSwitchBuggy}, nil
	case toolSubmit:
		var args struct {
			ScriptContent string `json:"script_content"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return Response{}, fmt.Errorf("parse submit arguments: %w", err)
		}
		return Response{Action: ActionSubmit, Script: args.ScriptContent}, nil
	default:
		return Response{}, fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}

func toolDefinitions() []openai.Tool {
	noParams := jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}}
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolBash,
				Description: "Execute a shell command in the repository directory. Use for exploring files, installing dependencies, and trial-running tests.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"command": {Type: jsonschema.String, Description: "The shell command to execute"},
					},
					Required: []string{"command"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolFixed,
				Description: "Apply the fix changes so the repository is in the FIXED state (tests should pass).",
				Parameters:  noParams,
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolBuggy,
				Description: "Withhold the fix changes so the repository is in the BUGGY state (tests should fail).",
				Parameters:  noParams,
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolSubmit,
				Description: "Submit the final oracle script. It is validated automatically in both buggy and fixed states.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"script_content": {Type: jsonschema.String, Description: "Complete bash script content, starting with #!/bin/bash"},
					},
					Required: []string{"script_content"},
				},
			},
		},
	}
}
