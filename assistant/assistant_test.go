package assistant_test

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/assistant"
	"github.com/mrsingh-rishi/accord/llm"
	"github.com/mrsingh-rishi/accord/mocks"
)

func newAssistant(t *testing.T, gen llm.Generator) *assistant.Assistant {
	t.Helper()
	a, err := assistant.New(gen, "http://localhost:11434/api/generate", 30*time.Second, 0, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	return a
}

func TestAskReturnsAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("ask must carry a deadline")
		}
		if req.Options == nil || req.Options.Temperature != 0.7 || req.Options.TopP != 0.9 {
			t.Errorf("unexpected options %+v", req.Options)
		}
		if !strings.Contains(req.Prompt, "**Question:** hello?") {
			t.Errorf("unexpected prompt:\n%s", req.Prompt)
		}
		return "Hi!", nil
	})

	if got := newAssistant(t, gen).Ask(context.Background(), assistant.AskInput{Question: "hello?"}); got != "Hi!" {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestAskFallbacks(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"timeout":     {errors.Wrap(llm.ErrTimeout, "deadline"), assistant.TimeoutMessage},
		"unavailable": {errors.Wrap(llm.ErrUnavailable, "refused"), assistant.ConnectionMessage},
		"malformed":   {errors.Wrap(llm.ErrMalformed, "bad json"), assistant.ProcessingMessage},
		"noresponse":  {llm.ErrNoResponse, assistant.NoResponseMessage},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gen := mocks.NewMockGenerator(ctrl)
			gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", tc.err)
			if got := newAssistant(t, gen).Ask(context.Background(), assistant.AskInput{Question: "q"}); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
	if assistant.TimeoutMessage == assistant.ConnectionMessage {
		t.Fatal("timeout and connection messages must differ")
	}
}

func TestAnalyzeMissingInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	a := newAssistant(t, gen)

	_, err := a.Analyze(context.Background(), "", "question")
	if !errors.Is(err, assistant.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	if msg := a.AnalyzeErrorMessage(err); msg != "Missing chat_data or user_prompt" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAnalyze(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("analyze has no deadline by default")
		}
		return "Bob wants lunch.", nil
	})
	got, err := newAssistant(t, gen).Analyze(context.Background(), "bob: lunch?", "who is hungry?")
	if err != nil || got != "Bob wants lunch." {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gomock.InOrder(
		gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.Wrap(llm.ErrUnavailable, "refused")),
		gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", llm.ErrNoResponse),
		gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.Wrap(llm.ErrMalformed, "x")),
	)
	a := newAssistant(t, gen)

	_, err := a.Analyze(context.Background(), "chat", "q")
	if !errors.Is(err, assistant.ErrModelUnreachable) {
		t.Fatalf("expected ErrModelUnreachable, got %v", err)
	}
	if msg := a.AnalyzeErrorMessage(err); !strings.Contains(msg, "http://localhost:11434/api/generate") {
		t.Fatalf("message should name the model URL: %q", msg)
	}

	got, err := a.Analyze(context.Background(), "chat", "q")
	if err != nil || got != "" {
		t.Fatalf("missing response should yield empty answer, got %q, %v", got, err)
	}

	_, err = a.Analyze(context.Background(), "chat", "q")
	if msg := a.AnalyzeErrorMessage(err); msg != assistant.UnexpectedAnalysis {
		t.Fatalf("unexpected message %q", msg)
	}
}
