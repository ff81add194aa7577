// Package assistant answers chat questions with the language model and turns
// model failures into user-facing messages.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/prompt"
)

// Fallback answers returned by Ask when the model call fails.
const (
	TimeoutMessage     = "I'm taking too long to respond. Please try again in a moment."
	ConnectionMessage  = "I'm having trouble connecting right now. Please try again later."
	ProcessingMessage  = "There was an error processing your request. Please try again."
	NoResponseMessage  = "Sorry, I could not generate a response."
	UnexpectedAnalysis = "An unexpected error occurred while processing the request."
)

var (
	// ErrMissingInput is returned by Analyze when chat data or the prompt is blank.
	ErrMissingInput = errors.New("Missing chat_data or user_prompt")
	// ErrModelUnreachable is returned by Analyze on connection failures and timeouts.
	ErrModelUnreachable = errors.New("model unreachable")
)

var askOptions = &llm.Options{Temperature: 0.7, TopP: 0.9}

// AskInput is a question addressed to the assistant inside a chat.
type AskInput struct {
	History      string `json:"history"`
	Question     string `json:"question"`
	AnalysisMode bool   `json:"analysis_mode"`
}

// Assistant serves /ask and /analyze style requests.
type Assistant struct {
	Generator llm.Generator
	// ModelURL is only used in error messages.
	ModelURL       string
	AskTimeout     time.Duration
	AnalyzeTimeout time.Duration
	Logger         *log.Logger
}

func New(gen llm.Generator, modelURL string, askTimeout, analyzeTimeout time.Duration, logger *log.Logger) (*Assistant, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Assistant{
		Generator:      gen,
		ModelURL:       modelURL,
		AskTimeout:     askTimeout,
		AnalyzeTimeout: analyzeTimeout,
		Logger:         logger,
	}, nil
}

// AskRequest builds the model request for in.
func AskRequest(in AskInput) llm.Request {
	return llm.Request{
		Prompt:  prompt.Ask(in.History, in.Question, in.AnalysisMode),
		Options: askOptions,
	}
}

// Ask always returns an answer; model failures become fallback messages.
func (a *Assistant) Ask(ctx context.Context, in AskInput) string {
	ctx, cancel := withTimeout(ctx, a.AskTimeout)
	defer cancel()

	answer, err := a.Generator.Generate(ctx, AskRequest(in))
	if err != nil {
		a.Logger.Printf("ask failed: %v", err)
		return FallbackFor(err)
	}
	return answer
}

// FallbackFor maps a model error onto the message shown to the user.
func FallbackFor(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return TimeoutMessage
	case errors.Is(err, llm.ErrNoResponse):
		return NoResponseMessage
	case errors.Is(err, llm.ErrMalformed):
		return ProcessingMessage
	default:
		return ConnectionMessage
	}
}

// Analyze answers a question about a group chat. A reply without a response
// field yields an empty answer.
func (a *Assistant) Analyze(ctx context.Context, chatData, userPrompt string) (string, error) {
	if strings.TrimSpace(chatData) == "" || strings.TrimSpace(userPrompt) == "" {
		return "", ErrMissingInput
	}
	ctx, cancel := withTimeout(ctx, a.AnalyzeTimeout)
	defer cancel()

	answer, err := a.Generator.Generate(ctx, llm.Request{Prompt: prompt.Analyze(chatData, userPrompt)})
	switch {
	case err == nil:
		return answer, nil
	case errors.Is(err, llm.ErrNoResponse):
		return "", nil
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrTimeout):
		a.Logger.Printf("Error: %s\nDetails: %v", a.unreachableMessage(), err)
		return "", errors.Wrap(ErrModelUnreachable, err.Error())
	default:
		a.Logger.Printf("An unexpected error occurred: %v", err)
		return "", err
	}
}

// AnalyzeErrorMessage is the user-facing text for an error returned by Analyze.
func (a *Assistant) AnalyzeErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingInput):
		return ErrMissingInput.Error()
	case errors.Is(err, ErrModelUnreachable):
		return a.unreachableMessage()
	default:
		return UnexpectedAnalysis
	}
}

func (a *Assistant) unreachableMessage() string {
	return fmt.Sprintf("Failed to connect to Llama3 model at %s. Ensure the model is running and the URL is correct.", a.ModelURL)
}

// withTimeout applies d when positive; zero means no deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
