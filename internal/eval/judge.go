package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const judgePrompt = `You are grading an insurance claim adjudication system. Compare the system's explanation against the reference explanation for the same claim.

Score how well the system's explanation captures the substance of the reference: the same grounds for the decision, the same policy reasoning, the same key facts. Wording differences do not matter.

Reference explanation:
%s

System explanation:
%s

Respond with a JSON object and nothing else:
{"score": <number between 0.0 and 1.0>, "rationale": "<one sentence>"}`

// Judgment is the judge's assessment of one explanation
type Judgment struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Judge scores a predicted explanation against the reference
type Judge interface {
	Score(ctx context.Context, predicted, expected string) (*Judgment, error)
}

// LLMJudge implements Judge over a chat model
type LLMJudge struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewLLMJudge creates a judge backed by an OpenAI-compatible endpoint
func NewLLMJudge(apiKey, baseURL, judgeModel string) (*LLMJudge, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("judge API key is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &LLMJudge{
		client:  openai.NewClientWithConfig(config),
		model:   judgeModel,
		timeout: 30 * time.Second,
	}, nil
}

// Score asks the model to grade the explanation similarity
func (j *LLMJudge) Score(ctx context.Context, predicted, expected string) (*Judgment, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(judgePrompt, expected, predicted),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("judge model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge model returned no choices")
	}

	return parseJudgment(resp.Choices[0].Message.Content)
}

// parseJudgment recovers the judgment JSON, tolerating code fences
func parseJudgment(text string) (*Judgment, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var judgment Judgment
	if err := json.Unmarshal([]byte(text), &judgment); err != nil {
		return nil, fmt.Errorf("parse judgment %q: %w", text, err)
	}
	if judgment.Score < 0 || judgment.Score > 1 {
		return nil, fmt.Errorf("judgment score %f out of range", judgment.Score)
	}
	return &judgment, nil
}
