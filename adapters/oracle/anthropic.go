package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/corebrain/robobrain/robot"
)

// AnthropicOracle adapts Anthropic's Claude API to the Oracle contract,
// grounded on the teacher's graph/model/anthropic adapter: a thin client
// interface for mocking, system-prompt extraction, and error wrapping.
type AnthropicOracle struct {
	modelName string
	client    anthropicClient

	lastUsage Usage
}

type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error)
}

// NewAnthropicOracle returns an AnthropicOracle using apiKey and modelName
// (e.g. "claude-3-5-sonnet-20241022"); an empty modelName falls back to a
// fixed default.
func NewAnthropicOracle(apiKey, modelName string) *AnthropicOracle {
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicOracle{
		modelName: modelName,
		client:    &defaultAnthropicClient{apiKey: apiKey, modelName: modelName},
	}
}

// Decide implements Oracle.
func (o *AnthropicOracle) Decide(ctx context.Context, messages []robot.Message, observation map[string]any, registrySummary string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	systemPrompt, err := buildSystemPrompt(observation, registrySummary)
	if err != nil {
		return "", err
	}

	raw, usage, err := o.client.createMessage(ctx, systemPrompt, messages)
	if err != nil {
		return "", fmt.Errorf("anthropic oracle: %w", err)
	}
	o.lastUsage = usage
	return raw, nil
}

// LastUsage implements UsageReporter.
func (o *AnthropicOracle) LastUsage() Usage {
	return o.lastUsage
}

// buildSystemPrompt renders the observation and registry summary into a
// single instruction block: the oracle is required to emit a JSON Decision
// object, and R2 owns parsing its raw response.
func buildSystemPrompt(observation map[string]any, registrySummary string) (string, error) {
	obsJSON, err := json.Marshal(observation)
	if err != nil {
		return "", err
	}
	return "You are the ReAct decision oracle for a mobile robot. Respond with a single JSON " +
		"object matching the Decision schema (type, reason, ops). Available skills:\n" +
		registrySummary + "\nCurrent observation:\n" + string(obsJSON), nil
}

type defaultAnthropicClient struct {
	apiKey    string
	modelName string
}

func (c *defaultAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error) {
	if c.apiKey == "" {
		return "", Usage{}, fmt.Errorf("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	msgs := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		if m.Role == "assistant" {
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  msgs,
		MaxTokens: 2048,
		System:    []anthropicsdk.TextBlockParam{{Text: systemPrompt}},
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text += b.Text
		}
	}

	usage := Usage{
		Model:        c.modelName,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return text, usage, nil
}
