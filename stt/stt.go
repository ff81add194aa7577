// Package stt turns recorded audio into word timings and speaker turns.
package stt

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/model"
)

// ErrModelsNotLoaded is returned when no transcription backend is available.
var ErrModelsNotLoaded = errors.New("Error: Transcription models not loaded.")

// Transcriber produces the text of a recording with per-word timings.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (model.Transcription, error)
}

// Diarizer finds who spoke when.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]model.SpeakerTurn, error)
}

// SpeakerTranscriber is implemented by backends that produce words and
// speaker turns in a single pass.
type SpeakerTranscriber interface {
	TranscribeSpeakers(ctx context.Context, audioPath string) (model.Transcription, []model.SpeakerTurn, error)
}

// Prober checks that a backend can serve requests.
type Prober interface {
	Probe(ctx context.Context) error
}
