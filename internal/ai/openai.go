package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Capability is the external text-scoring/summarization capability.
// Callers must treat every failure as recoverable: scoring falls back
// to heuristics and summarization skips the item.
type Capability interface {
	// ScoreItems rates each description 0-1 for relevance to the given
	// interest keywords. The response maps to items strictly by index;
	// it may be shorter than the input.
	ScoreItems(ctx context.Context, keywords []string, descriptions []string) ([]float64, error)
	// Summarize produces a short+long summary pair for article text.
	Summarize(ctx context.Context, title, text string) (Summary, error)
}

// Summary is the capability's two-length summary of one article.
type Summary struct {
	Short string `json:"short"`
	Long  string `json:"long"`
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

// OpenAIClient implements Capability using the Chat Completions API in
// JSON response mode.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg Config) *OpenAIClient {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{client: c, model: model}
}

func (o *OpenAIClient) ScoreItems(ctx context.Context, keywords []string, descriptions []string) ([]float64, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	sys := fmt.Sprintf(
		`Score each item 0-1 for relevance to a user interested in: %s. Return JSON: {"scores": [0.8, 0.3, ...]} matching input order.`,
		strings.Join(keywords, ", "))
	b := &strings.Builder{}
	for i, d := range descriptions {
		fmt.Fprintf(b, "%d: %s\n", i, d)
	}

	out, err := o.create(ctx, sys, b.String(), 0)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("ai: bad scores payload: %w", err)
	}
	return parsed.Scores, nil
}

func (o *OpenAIClient) Summarize(ctx context.Context, title, text string) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	sys := `Summarize the following article. Return JSON with two fields: "short" (1-2 sentences, max 50 words) and "long" (2-3 sentences, max 100 words). Be concise and informative.`
	user := fmt.Sprintf("Title: %s\n\nContent:\n%s", title, text)

	out, err := o.create(ctx, sys, user, 0.3)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		return Summary{}, fmt.Errorf("ai: bad summary payload: %w", err)
	}
	if strings.TrimSpace(sum.Short) == "" {
		return Summary{}, fmt.Errorf("ai: empty summary")
	}
	return sum, nil
}

func (o *OpenAIClient) create(ctx context.Context, system, user string, temperature float32) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ai: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
