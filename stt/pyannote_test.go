package stt

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakePython writes a shell script standing in for the Python helper. It
// records one line in loads.txt per pipeline load and answers each audio
// path with two turns, or an error for paths containing "bad".
func fakePython(t *testing.T) (python, loads string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	loads = filepath.Join(dir, "loads.txt")
	script := fmt.Sprintf(`#!/bin/sh
[ "$HUGGING_FACE_TOKEN" = "hf_test" ] || { echo "bad token" >&2; exit 3; }
echo load >> %q
echo '{"ready":true}'
while IFS= read -r path; do
  case "$path" in
    *bad*) echo '{"error":"cannot read audio"}' ;;
    *) echo '{"turns":[{"start":0,"end":1.5,"speaker":"SPEAKER_00"},{"start":1.5,"end":3,"speaker":"SPEAKER_01"}]}' ;;
  esac
done
`, loads)
	python = filepath.Join(dir, "python")
	if err := os.WriteFile(python, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return python, loads
}

func loadCount(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(b), "load")
}

func newTestDiarizer(t *testing.T, python, token string) *PyannoteDiarizer {
	t.Helper()
	d, err := NewPyannoteDiarizer(python, "pyannote/speaker-diarization-3.1", token, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestPyannoteLoadsPipelineOnce(t *testing.T) {
	python, loads := fakePython(t)
	d := newTestDiarizer(t, python, "hf_test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Probe(ctx); err != nil {
		t.Fatalf("probe: %v", err)
	}
	for i := 0; i < 2; i++ {
		turns, err := d.Diarize(ctx, fmt.Sprintf("/tmp/call_%d.wav", i))
		if err != nil {
			t.Fatalf("diarize %d: %v", i, err)
		}
		if len(turns) != 2 || turns[1].Speaker != "SPEAKER_01" || turns[1].End != 3 {
			t.Fatalf("unexpected turns %+v", turns)
		}
	}
	if n := loadCount(t, loads); n != 1 {
		t.Fatalf("pipeline loaded %d times, want 1", n)
	}
}

func TestPyannoteRequestErrorKeepsHelper(t *testing.T) {
	python, loads := fakePython(t)
	d := newTestDiarizer(t, python, "hf_test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := d.Diarize(ctx, "/tmp/bad.wav"); err == nil || !strings.Contains(err.Error(), "cannot read audio") {
		t.Fatalf("expected helper error, got %v", err)
	}
	if _, err := d.Diarize(ctx, "/tmp/good.wav"); err != nil {
		t.Fatalf("diarize after error: %v", err)
	}
	if n := loadCount(t, loads); n != 1 {
		t.Fatalf("pipeline loaded %d times, want 1", n)
	}
}

func TestPyannoteRestartsAfterClose(t *testing.T) {
	python, loads := fakePython(t)
	d := newTestDiarizer(t, python, "hf_test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Probe(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Diarize(ctx, "/tmp/call.wav"); err != nil {
		t.Fatal(err)
	}
	if n := loadCount(t, loads); n != 2 {
		t.Fatalf("pipeline loaded %d times, want 2", n)
	}
}

func TestPyannoteHelperFailsToLoad(t *testing.T) {
	python, _ := fakePython(t)
	d := newTestDiarizer(t, python, "wrong")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := d.Probe(ctx)
	if err == nil || !strings.Contains(err.Error(), "load diarization pipeline") {
		t.Fatalf("expected load failure, got %v", err)
	}
	if d.helper != nil {
		t.Fatal("failed helper must not be kept")
	}
}

func TestPyannoteRejectsMultilinePath(t *testing.T) {
	d := newTestDiarizer(t, "python3", "hf_test")
	if _, err := d.Diarize(context.Background(), "a.wav\nb.wav"); err == nil {
		t.Fatal("expected error for a path containing a newline")
	}
}
