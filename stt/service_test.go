package stt_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/mocks"
	"github.com/mrsingh-rishi/accord/model"
	"github.com/mrsingh-rishi/accord/stt"
)

var quiet = log.New(io.Discard, "", 0)

func twoSpeakerWords() []model.Word {
	return []model.Word{
		{Text: " Hello", Start: 0.0, End: 0.4},
		{Text: " there.", Start: 0.5, End: 0.9},
		{Text: " Hi,", Start: 1.5, End: 1.8},
		{Text: " thanks.", Start: 1.9, End: 2.3},
	}
}

func TestDialogueWithoutTranscriber(t *testing.T) {
	s := stt.NewService(nil, nil, quiet)
	_, err := s.Dialogue(context.Background(), "a.wav")
	if !errors.Is(err, stt.ErrModelsNotLoaded) {
		t.Fatalf("expected ErrModelsNotLoaded, got %v", err)
	}
	if err.Error() != "Error: Transcription models not loaded." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDialogueWithoutDiarizerReturnsPlainText(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	tr.EXPECT().Transcribe(gomock.Any(), "a.wav").Return(model.Transcription{Text: " Hello there. ", Words: twoSpeakerWords()}, nil)

	got, err := stt.NewService(tr, nil, quiet).Dialogue(context.Background(), "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello there." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestDialogueMergesSpeakers(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	di := mocks.NewMockDiarizer(ctrl)
	di.EXPECT().Diarize(gomock.Any(), "a.wav").Return([]model.SpeakerTurn{
		{Start: 0, End: 1.0, Speaker: "SPEAKER_00"},
		{Start: 1.2, End: 2.5, Speaker: "SPEAKER_01"},
	}, nil)
	tr.EXPECT().Transcribe(gomock.Any(), "a.wav").Return(model.Transcription{Words: twoSpeakerWords()}, nil)

	s := stt.NewService(tr, di, quiet)
	if ok1, ok2 := s.Ready(); !ok1 || !ok2 {
		t.Fatal("service should be ready")
	}
	got, err := s.Dialogue(context.Background(), "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	want := "**SPEAKER 00:** Hello there.\n\n**SPEAKER 01:** Hi, thanks."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDialogueBackendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	di := mocks.NewMockDiarizer(ctrl)
	di.EXPECT().Diarize(gomock.Any(), gomock.Any()).Return(nil, errors.New("cuda out of memory"))

	_, err := stt.NewService(tr, di, quiet).Dialogue(context.Background(), "a.wav")
	if err == nil || !strings.Contains(err.Error(), "processing audio") {
		t.Fatalf("expected processing error, got %v", err)
	}
	if errors.Is(err, stt.ErrModelsNotLoaded) {
		t.Fatal("backend failure is not a load failure")
	}
}

type singlePass struct {
	calls int
}

func (p *singlePass) Transcribe(ctx context.Context, path string) (model.Transcription, error) {
	panic("single pass backend should not be called per stage")
}

func (p *singlePass) Diarize(ctx context.Context, path string) ([]model.SpeakerTurn, error) {
	panic("single pass backend should not be called per stage")
}

func (p *singlePass) TranscribeSpeakers(ctx context.Context, path string) (model.Transcription, []model.SpeakerTurn, error) {
	p.calls++
	return model.Transcription{Words: twoSpeakerWords()}, []model.SpeakerTurn{{Start: 0, End: 3, Speaker: "SPEAKER_00"}}, nil
}

func TestDialogueSinglePassBackend(t *testing.T) {
	p := &singlePass{}
	got, err := stt.NewService(p, p, quiet).Dialogue(context.Background(), "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("expected one pass, got %d", p.calls)
	}
	if got != "**SPEAKER 00:** Hello there. Hi, thanks." {
		t.Fatalf("unexpected dialogue %q", got)
	}
}

func TestDialogueWithoutWordTimingsReturnsText(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	di := mocks.NewMockDiarizer(ctrl)
	di.EXPECT().Diarize(gomock.Any(), "a.wav").Return([]model.SpeakerTurn{{Start: 0, End: 4, Speaker: "SPEAKER_00"}}, nil)
	tr.EXPECT().Transcribe(gomock.Any(), "a.wav").Return(model.Transcription{Text: " I need a website built by June. "}, nil)

	var logs bytes.Buffer
	got, err := stt.NewService(tr, di, log.New(&logs, "", 0)).Dialogue(context.Background(), "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	if got != "I need a website built by June." {
		t.Fatalf("expected the plain transcript, got %q", got)
	}
	if !strings.Contains(logs.String(), "No word timings") {
		t.Fatalf("expected a warning, got logs %q", logs.String())
	}
}

func TestDialogueWarnsOnOverlappingTurns(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	di := mocks.NewMockDiarizer(ctrl)
	di.EXPECT().Diarize(gomock.Any(), gomock.Any()).Return([]model.SpeakerTurn{
		{Start: 0, End: 1.6, Speaker: "SPEAKER_00"},
		{Start: 1.2, End: 2.5, Speaker: "SPEAKER_01"},
	}, nil)
	tr.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcription{Words: twoSpeakerWords()}, nil)

	var logs bytes.Buffer
	got, err := stt.NewService(tr, di, log.New(&logs, "", 0)).Dialogue(context.Background(), "a.wav")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "Overlapping speaker turns in a.wav") {
		t.Fatalf("expected overlap warning, got logs %q", logs.String())
	}
	// " Hi," starts at 1.5, inside both turns; the first listed turn wins.
	want := "**SPEAKER 00:** Hello there. Hi,\n\n**SPEAKER 01:** thanks."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDialogueDisjointTurnsDoNotWarn(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscriber(ctrl)
	di := mocks.NewMockDiarizer(ctrl)
	di.EXPECT().Diarize(gomock.Any(), gomock.Any()).Return([]model.SpeakerTurn{
		{Start: 0, End: 1.0, Speaker: "SPEAKER_00"},
		{Start: 1.2, End: 2.5, Speaker: "SPEAKER_01"},
	}, nil)
	tr.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcription{Words: twoSpeakerWords()}, nil)

	var logs bytes.Buffer
	if _, err := stt.NewService(tr, di, log.New(&logs, "", 0)).Dialogue(context.Background(), "a.wav"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logs.String(), "Overlapping") {
		t.Fatalf("unexpected overlap warning: %q", logs.String())
	}
}
