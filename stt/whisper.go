package stt

import (
	"context"
	"log"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/accord/model"
)

// WhisperTranscriber calls an OpenAI-compatible transcription endpoint
// (faster-whisper server, whisper.cpp, LocalAI) for word-level timestamps.
type WhisperTranscriber struct {
	Client *openai.Client
	Model  string
	Logger *log.Logger
}

func NewWhisperTranscriber(baseURL, apiKey, model string, logger *log.Logger) (*WhisperTranscriber, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("whisper base URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("whisper model is required")
	}
	if apiKey == "" {
		apiKey = "whisper"
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &WhisperTranscriber{
		Client: openai.NewClientWithConfig(cfg),
		Model:  model,
		Logger: logger,
	}, nil
}

// Probe succeeds when the server answers at all; servers without a models
// listing still count as reachable.
func (w *WhisperTranscriber) Probe(ctx context.Context) error {
	_, err := w.Client.ListModels(ctx)
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return nil
	}
	return errors.Wrap(err, "whisper server unreachable")
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (model.Transcription, error) {
	resp, err := w.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return model.Transcription{}, errors.Wrap(err, "whisper transcription")
	}

	out := model.Transcription{Text: strings.TrimSpace(resp.Text)}
	for _, wd := range resp.Words {
		out.Words = append(out.Words, model.Word{
			Text:  spaced(wd.Word),
			Start: wd.Start,
			End:   wd.End,
		})
	}
	w.Logger.Printf("✅ Transcribed %s: %d words", audioPath, len(out.Words))
	return out, nil
}

// spaced gives a word its leading space so words concatenate into text.
func spaced(word string) string {
	if word == "" || strings.HasPrefix(word, " ") {
		return word
	}
	return " " + word
}
