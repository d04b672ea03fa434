// Package vision answers free-form questions about a single claim
// document image using a vision-capable chat model.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/claimgate/internal/model"
)

const answerSystemPrompt = `You are an assistant that answers questions about a single image (an insurance claim document).
Follow these rules exactly when responding:

1. Answer only the question asked. Do not add extra information, commentary, or unsolicited suggestions.
2. Base your answer strictly on information visible in the provided image. Do not infer or invent facts.
3. Keep answers concise and on-point. Use one short sentence unless the user explicitly requests more detail.
4. For extraction tasks, return only the requested fields. If a requested field is missing, say that field is "MISSING".
5. Never include opinions or reasoning unless the user explicitly asks for an explanation; when asked for reasoning, keep it brief (2 sentences at most).

Always follow these rules. Respond only with the answer the user requested.`

const forgerySystemPrompt = `You are a document fraud examiner reviewing a single insurance claim document image.
Assess whether the document shows signs of tampering or forgery: inconsistent fonts, misaligned text,
digital editing artifacts, implausible stamps or signatures, or content contradicting the claim context
provided in the question.

Your answer MUST begin with exactly one of these verdicts on its own line:
DEFINITIVE FRAUD
SUSPICIOUS
LEGITIMATE

After the verdict, list your specific observations in 2-3 short sentences.`

// Analyzer queries a vision model about claim document images
type Analyzer struct {
	client *openai.Client
	config model.VisionConfig
}

// NewAnalyzer creates a vision analyzer backed by an OpenAI-compatible
// endpoint
func NewAnalyzer(apiKey, baseURL string, cfg model.VisionConfig) *Analyzer {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &Analyzer{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// QueryImage asks a free-form extraction question about the image
func (a *Analyzer) QueryImage(ctx context.Context, image []byte, query string) (string, error) {
	return a.ask(ctx, answerSystemPrompt, image, query)
}

// AssessForgery runs the fraud-examiner prompt against the image. The
// question should embed the claim context so contradictions are visible.
func (a *Analyzer) AssessForgery(ctx context.Context, image []byte, question string) (string, error) {
	return a.ask(ctx, forgerySystemPrompt, image, question)
}

func (a *Analyzer) ask(ctx context.Context, system string, image []byte, query string) (string, error) {
	timeout := a.config.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	imageURL := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(image)

	req := openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: query},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: 0.1,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
