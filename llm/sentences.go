package llm

import (
	"context"
	"regexp"
	"strings"
)

var sentenceRe = regexp.MustCompile(`[^\.!\?]*[\.!\?]`)

// StreamSentences runs a streamed generation and emits complete sentences on
// out as soon as they are available. Trailing text without terminal
// punctuation is sent when the stream ends. out is not closed.
func StreamSentences(ctx context.Context, s Streamer, req Request, out chan<- string) error {
	buffer := &strings.Builder{}
	err := s.Stream(ctx, req, func(fragment string) error {
		for _, sentence := range processChunk(buffer, fragment) {
			select {
			case out <- sentence:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flushRemaining(ctx, buffer, out)
}

// processChunk appends new text, extracts all full sentences and keeps the
// remainder in buffer.
func processChunk(buffer *strings.Builder, chunk string) []string {
	buffer.WriteString(chunk)
	text := buffer.String()

	var sentences []string
	for {
		loc := sentenceRe.FindStringIndex(text)
		if loc == nil {
			break
		}
		sentence := strings.TrimSpace(text[:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		text = text[loc[1]:]
	}

	buffer.Reset()
	buffer.WriteString(text)
	return sentences
}

func flushRemaining(ctx context.Context, buffer *strings.Builder, out chan<- string) error {
	leftover := strings.TrimSpace(buffer.String())
	if leftover == "" {
		return nil
	}
	select {
	case out <- leftover:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
