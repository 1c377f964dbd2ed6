package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/corebrain/robobrain/robot"
)

// OpenAIOracle adapts OpenAI's chat completion API to the Oracle contract,
// grounded on the teacher's graph/model/openai adapter: transient-error
// retry with a linearly growing delay on rate limits and other transient
// errors.
type OpenAIOracle struct {
	modelName  string
	client     openaiClient
	maxRetries int
	retryDelay time.Duration

	lastUsage Usage
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error)
}

// NewOpenAIOracle returns an OpenAIOracle using apiKey and modelName (e.g.
// "gpt-4o"); an empty modelName falls back to a fixed default.
func NewOpenAIOracle(apiKey, modelName string) *OpenAIOracle {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIOracle{
		modelName:  modelName,
		client:     &defaultOpenAIClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Decide implements Oracle.
func (o *OpenAIOracle) Decide(ctx context.Context, messages []robot.Message, observation map[string]any, registrySummary string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	systemPrompt, err := buildSystemPrompt(observation, registrySummary)
	if err != nil {
		return "", err
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		attempts++
		raw, usage, err := o.client.createChatCompletion(ctx, systemPrompt, messages)
		if err == nil {
			o.lastUsage = usage
			return raw, nil
		}
		lastErr = err
		if !isTransientOracleError(err) || attempt >= o.maxRetries {
			break
		}
		select {
		case <-time.After(o.retryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("openai oracle failed after %d attempts: %w", attempts, lastErr)
}

// LastUsage implements UsageReporter.
func (o *OpenAIOracle) LastUsage() Usage {
	return o.lastUsage
}

func isTransientOracleError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "rate limit", "503", "502", "500"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type defaultOpenAIClient struct {
	apiKey    string
	modelName string
}

func (c *defaultOpenAIClient) createChatCompletion(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error) {
	if c.apiKey == "" {
		return "", Usage{}, errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	msgs = append(msgs, openaisdk.SystemMessage(systemPrompt))
	for _, m := range messages {
		if m.Role == "assistant" {
			msgs = append(msgs, openaisdk.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openaisdk.UserMessage(m.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: msgs,
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, nil
	}

	usage := Usage{
		Model:        c.modelName,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}
