package llm

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient generates answers through an OpenAI-compatible chat
// completions API. Ollama exposes one under /v1, which is the default.
type OpenAIClient struct {
	Client             *openai.Client
	BaseURL            string
	SystemInstructions string
	Model              string
	Logger             *log.Logger
}

func NewOpenAIClient(baseURL, apiKey, systemInstructions, model string, logger *log.Logger) (*OpenAIClient, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	if apiKey == "" {
		// Local servers ignore the key but the client insists on a bearer value.
		apiKey = "ollama"
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = apiBase(baseURL)
	}
	return &OpenAIClient{
		Client:             openai.NewClientWithConfig(cfg),
		BaseURL:            cfg.BaseURL,
		SystemInstructions: systemInstructions,
		Model:              model,
		Logger:             logger,
	}, nil
}

// apiBase appends /v1 to a bare server address such as
// http://localhost:11434. URLs that already carry a path are kept.
func apiBase(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if u, err := url.Parse(base); err == nil && u.Host != "" && u.Path == "" {
		return base + "/v1"
	}
	return base
}

// Endpoint is the full URL of the chat completions API.
func (c *OpenAIClient) Endpoint() string {
	return c.BaseURL + "/chat/completions"
}

func (c *OpenAIClient) request(req Request, stream bool) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if c.SystemInstructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.SystemInstructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	out := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: messages,
		Stream:   stream,
	}
	if req.Options != nil {
		out.Temperature = float32(req.Options.Temperature)
		out.TopP = float32(req.Options.TopP)
	}
	if req.Format == "json" {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := c.Client.CreateChatCompletion(ctx, c.request(req, false))
	if err != nil {
		c.Logger.Printf("❌ OpenAI-compatible completion error: %v", err)
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Stream forwards every content delta of a streamed chat completion.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onFragment func(string) error) error {
	stream, err := c.Client.CreateChatCompletionStream(ctx, c.request(req, true))
	if err != nil {
		c.Logger.Printf("Failed to stream OpenAI response: %v", err)
		return classify(ctx, err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return classify(ctx, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if err := onFragment(chunk); err != nil {
			return err
		}
	}
}
