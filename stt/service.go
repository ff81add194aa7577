package stt

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/config"
	"github.com/mrsingh-rishi/accord/model"
	"github.com/mrsingh-rishi/accord/transcript"
)

const probeTimeout = 2 * time.Minute

// Service produces speaker-labelled dialogue from a recording. It is built
// once at startup; a nil backend stays unavailable for the process lifetime.
type Service struct {
	Transcriber Transcriber
	Diarizer    Diarizer
	Logger      *log.Logger
}

func NewService(t Transcriber, d Diarizer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{Transcriber: t, Diarizer: d, Logger: logger}
}

// Load builds the configured backends and probes each one. Failures are
// logged and leave the matching backend unavailable.
func Load(ctx context.Context, cfg config.STTConfig, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{Logger: logger}

	switch cfg.Backend {
	case "deepgram":
		dg, err := NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramModel, logger)
		if err != nil {
			logger.Printf("❌ Deepgram unavailable: %v", err)
			return s
		}
		if probe(ctx, dg, logger, "Deepgram") {
			s.Transcriber, s.Diarizer = dg, dg
		}
	default:
		wt, err := NewWhisperTranscriber(cfg.WhisperURL, "", cfg.WhisperModel, logger)
		if err != nil {
			logger.Printf("❌ Whisper unavailable: %v", err)
		} else if probe(ctx, wt, logger, "Whisper") {
			s.Transcriber = wt
		}
		pd, err := NewPyannoteDiarizer(cfg.Python, cfg.DiarizationModel, cfg.HuggingFaceToken, logger)
		if err != nil {
			logger.Printf("❌ Diarization unavailable: %v", err)
		} else if probe(ctx, pd, logger, "Pyannote") {
			s.Diarizer = pd
		}
	}
	return s
}

func probe(ctx context.Context, p Prober, logger *log.Logger, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := p.Probe(ctx); err != nil {
		logger.Printf("❌ %s failed to load: %v", name, err)
		return false
	}
	logger.Printf("✅ %s loaded", name)
	return true
}

// Ready reports which stages are available.
func (s *Service) Ready() (transcription, diarization bool) {
	return s.Transcriber != nil, s.Diarizer != nil
}

// Dialogue transcribes and diarizes the recording at audioPath. Without a
// diarizer it degrades to the plain transcription text.
func (s *Service) Dialogue(ctx context.Context, audioPath string) (string, error) {
	if s.Transcriber == nil {
		s.Logger.Printf("Cannot transcribe because one or more AI models failed to load.")
		return "", ErrModelsNotLoaded
	}
	if s.Diarizer == nil {
		s.Logger.Printf("Diarization unavailable, returning plain transcript for %s", audioPath)
		tr, err := s.Transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			return "", errors.Wrap(err, "processing audio")
		}
		return strings.TrimSpace(tr.Text), nil
	}

	s.Logger.Printf("Starting diarization for: %s", audioPath)
	tr, turns, err := s.run(ctx, audioPath)
	if err != nil {
		return "", errors.Wrap(err, "processing audio")
	}
	if transcript.Overlaps(turns) {
		s.Logger.Printf("⚠️ Overlapping speaker turns in %s, earliest listed turn wins", audioPath)
	}
	if len(tr.Words) == 0 && strings.TrimSpace(tr.Text) != "" {
		s.Logger.Printf("⚠️ No word timings for %s, returning plain transcript", audioPath)
		return strings.TrimSpace(tr.Text), nil
	}
	dialogue := transcript.Merge(turns, tr.Words)
	s.Logger.Printf("Dialogue reconstruction complete: %d blocks", len(dialogue))
	return dialogue.String(), nil
}

// Close releases backends that hold processes or connections.
func (s *Service) Close() error {
	var first error
	closeBackend := func(b any) {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	closeBackend(s.Transcriber)
	if any(s.Diarizer) != any(s.Transcriber) {
		closeBackend(s.Diarizer)
	}
	return first
}

// run uses a single pass when one backend serves both stages.
func (s *Service) run(ctx context.Context, audioPath string) (model.Transcription, []model.SpeakerTurn, error) {
	if st, ok := s.Transcriber.(SpeakerTranscriber); ok && any(s.Transcriber) == any(s.Diarizer) {
		return st.TranscribeSpeakers(ctx, audioPath)
	}
	turns, err := s.Diarizer.Diarize(ctx, audioPath)
	if err != nil {
		return model.Transcription{}, nil, err
	}
	tr, err := s.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return model.Transcription{}, nil, err
	}
	return tr, turns, nil
}
