package llm

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
)

// Options are sampling parameters forwarded to the model. Zero values are omitted.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

func (o *Options) toMap() map[string]any {
	if o == nil {
		return nil
	}
	m := map[string]any{}
	if o.Temperature != 0 {
		m["temperature"] = o.Temperature
	}
	if o.TopP != 0 {
		m["top_p"] = o.TopP
	}
	return m
}

// Request is a single prompt sent to a text-generation model.
type Request struct {
	Prompt string
	// Format constrains the output, e.g. "json" or a JSON schema. Empty means free text.
	Format  string
	Options *Options
}

// Generator produces one complete answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Streamer produces an answer incrementally, calling onFragment for every
// piece of text as it arrives.
type Streamer interface {
	Stream(ctx context.Context, req Request, onFragment func(string) error) error
}

// OllamaClient talks to an Ollama server's /api/generate endpoint.
type OllamaClient struct {
	BaseURL string
	Model   string
	API     *api.Client
	Logger  *log.Logger
}

var errStreamDone = errors.New("stream done")

func NewOllamaClient(baseURL, model string, logger *log.Logger) (*OllamaClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ollama base URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid ollama base URL %q", baseURL)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OllamaClient{
		BaseURL: base.String(),
		Model:   model,
		API:     api.NewClient(base, &http.Client{Transport: statusCheck{next: http.DefaultTransport}}),
		Logger:  logger,
	}, nil
}

// Endpoint is the full URL of the generate API.
func (c *OllamaClient) Endpoint() string {
	return c.BaseURL + "/api/generate"
}

func (c *OllamaClient) request(req Request, stream bool) *api.GenerateRequest {
	r := &api.GenerateRequest{
		Model:   c.Model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: req.Options.toMap(),
	}
	if f := strings.TrimSpace(req.Format); f != "" {
		if strings.HasPrefix(f, "{") {
			r.Format = json.RawMessage(f)
		} else {
			r.Format = json.RawMessage(strconv.Quote(f))
		}
	}
	return r
}

// Generate sends the prompt with streaming disabled. The server may still
// answer with newline-delimited JSON objects; the last one carries the text.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	var last *api.GenerateResponse
	err := c.API.Generate(ctx, c.request(req, false), func(r api.GenerateResponse) error {
		last = &r
		return nil
	})
	if err != nil {
		c.Logger.Printf("❌ Ollama request error: %v", err)
		return "", classify(ctx, err)
	}
	if last == nil {
		return "", errors.Wrap(ErrMalformed, "empty reply body")
	}
	answer := strings.TrimSpace(last.Response)
	if answer == "" {
		return "", ErrNoResponse
	}
	return answer, nil
}

// Stream sends the prompt with streaming enabled and forwards each fragment
// until the server marks the reply done.
func (c *OllamaClient) Stream(ctx context.Context, req Request, onFragment func(string) error) error {
	var (
		seen    bool
		fragErr error
	)
	err := c.API.Generate(ctx, c.request(req, true), func(r api.GenerateResponse) error {
		seen = true
		if r.Response != "" {
			if fragErr = onFragment(r.Response); fragErr != nil {
				return fragErr
			}
		}
		if r.Done {
			return errStreamDone
		}
		return nil
	})
	switch {
	case fragErr != nil:
		return fragErr
	case errors.Is(err, errStreamDone):
		return nil
	case err != nil:
		c.Logger.Printf("❌ Ollama stream error: %v", err)
		return classify(ctx, err)
	case !seen:
		return errors.Wrap(ErrMalformed, "empty reply body")
	}
	return nil
}

// statusCheck fails any reply with an error status before its body is
// parsed, so a plain-text proxy error still surfaces as an api.StatusError.
type statusCheck struct {
	next http.RoundTripper
}

func (t statusCheck) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return nil, api.StatusError{StatusCode: resp.StatusCode, Status: resp.Status, ErrorMessage: msg}
}
