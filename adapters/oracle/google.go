package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/corebrain/robobrain/robot"
)

// GoogleOracle adapts Google's Gemini API to the Oracle contract, grounded
// on the teacher's graph/model/google adapter, including its safety-filter
// error translation.
type GoogleOracle struct {
	modelName string
	client    googleClient

	lastUsage Usage
}

type googleClient interface {
	generateContent(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error)
}

// NewGoogleOracle returns a GoogleOracle using apiKey and modelName (e.g.
// "gemini-1.5-pro"); an empty modelName falls back to a fixed default.
func NewGoogleOracle(apiKey, modelName string) *GoogleOracle {
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	return &GoogleOracle{
		modelName: modelName,
		client:    &defaultGoogleClient{apiKey: apiKey, modelName: modelName},
	}
}

// Decide implements Oracle.
func (o *GoogleOracle) Decide(ctx context.Context, messages []robot.Message, observation map[string]any, registrySummary string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	systemPrompt, err := buildSystemPrompt(observation, registrySummary)
	if err != nil {
		return "", err
	}

	raw, usage, err := o.client.generateContent(ctx, systemPrompt, messages)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return "", safetyErr
		}
		return "", err
	}
	o.lastUsage = usage
	return raw, nil
}

// LastUsage implements UsageReporter.
func (o *GoogleOracle) LastUsage() Usage {
	return o.lastUsage
}

// SafetyFilterError represents a Gemini safety filter block.
type SafetyFilterError struct {
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

type defaultGoogleClient struct {
	apiKey    string
	modelName string
}

func (c *defaultGoogleClient) generateContent(ctx context.Context, systemPrompt string, messages []robot.Message) (string, Usage, error) {
	if c.apiKey == "" {
		return "", Usage{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)
	genModel.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	var parts []genai.Part
	for _, m := range messages {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", Usage{}, fmt.Errorf("google API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", Usage{}, nil
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", Usage{}, &SafetyFilterError{category: "SAFETY"}
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	var usage Usage
	usage.Model = c.modelName
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return text, usage, nil
}
