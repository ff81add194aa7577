package llm

import (
	"context"
	"strings"
	"testing"
)

type fragmentStreamer []string

func (f fragmentStreamer) Stream(ctx context.Context, req Request, onFragment func(string) error) error {
	for _, s := range f {
		if err := onFragment(s); err != nil {
			return err
		}
	}
	return nil
}

func TestProcessChunkKeepsRemainder(t *testing.T) {
	buf := &strings.Builder{}
	if got := processChunk(buf, "Hello there"); len(got) != 0 {
		t.Fatalf("no sentence expected yet, got %q", got)
	}
	got := processChunk(buf, ". How are you? I am")
	if len(got) != 2 || got[0] != "Hello there." || got[1] != "How are you?" {
		t.Fatalf("unexpected sentences: %q", got)
	}
	if buf.String() != " I am" {
		t.Fatalf("unexpected remainder %q", buf.String())
	}
}

func TestStreamSentences(t *testing.T) {
	out := make(chan string, 10)
	s := fragmentStreamer{"First one", ". Second!", " tail"}
	if err := StreamSentences(context.Background(), s, Request{}, out); err != nil {
		t.Fatalf("stream sentences: %v", err)
	}
	close(out)
	var got []string
	for s := range out {
		got = append(got, s)
	}
	want := []string{"First one.", "Second!", "tail"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
