package stt

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/model"
)

//go:embed assets/diarize.py
var diarizeScript []byte

const helperStopTimeout = 5 * time.Second

// PyannoteDiarizer runs the pyannote pipeline in a long-lived Python helper.
// The pipeline is loaded once when the helper starts; requests are
// serialised over its stdin and stdout.
type PyannoteDiarizer struct {
	Python string
	Model  string
	Token  string
	Logger *log.Logger

	mu     sync.Mutex
	helper *diarizeHelper
}

type diarizeHelper struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Reader
	script string
}

type helperReply struct {
	Ready bool                `json:"ready"`
	Turns []model.SpeakerTurn `json:"turns"`
	Error string              `json:"error"`
}

func NewPyannoteDiarizer(python, diarizationModel, token string, logger *log.Logger) (*PyannoteDiarizer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("HUGGING_FACE_TOKEN not found, diarization will not be available")
	}
	if python == "" {
		python = "python3"
	}
	if diarizationModel == "" {
		return nil, errors.New("diarization model is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PyannoteDiarizer{Python: python, Model: diarizationModel, Token: token, Logger: logger}, nil
}

// Probe starts the helper and waits until the pipeline has loaded.
func (p *PyannoteDiarizer) Probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureStarted(ctx)
}

func (p *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string) ([]model.SpeakerTurn, error) {
	if strings.ContainsAny(audioPath, "\r\n") {
		return nil, errors.Errorf("invalid audio path %q", audioPath)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureStarted(ctx); err != nil {
		return nil, err
	}

	if _, err := io.WriteString(p.helper.stdin, audioPath+"\n"); err != nil {
		p.stopLocked()
		return nil, errors.Wrap(err, "send audio path to diarization helper")
	}
	line, err := p.helper.readLine(ctx)
	if err != nil {
		// The reply may still arrive later, so the helper cannot be reused.
		p.stopLocked()
		return nil, err
	}
	turns, err := parseTurns(line)
	if err != nil {
		return nil, err
	}
	p.Logger.Printf("✅ Diarized %s: %d turns", audioPath, len(turns))
	return turns, nil
}

// Close stops the helper. A later Diarize call starts a new one.
func (p *PyannoteDiarizer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *PyannoteDiarizer) ensureStarted(ctx context.Context) error {
	if p.helper != nil {
		return nil
	}
	h, err := p.start()
	if err != nil {
		return err
	}
	p.helper = h

	line, err := h.readLine(ctx)
	if err == nil {
		var rep helperReply
		if jerr := json.Unmarshal(line, &rep); jerr != nil || !rep.Ready {
			err = errors.Errorf("unexpected helper greeting %q", truncate(string(line), 200))
		}
	}
	if err != nil {
		p.stopLocked()
		return errors.Wrap(err, "load diarization pipeline")
	}
	p.Logger.Printf("✅ Diarization pipeline %s loaded", p.Model)
	return nil
}

func (p *PyannoteDiarizer) start() (*diarizeHelper, error) {
	script, err := os.CreateTemp("", "accord_diarize_*.py")
	if err != nil {
		return nil, errors.Wrap(err, "create helper script")
	}
	_, werr := script.Write(diarizeScript)
	if cerr := script.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(script.Name())
		return nil, errors.Wrap(werr, "write helper script")
	}

	cmd := exec.Command(p.Python, script.Name(), "--model", p.Model)
	cmd.Env = append(os.Environ(), "HUGGING_FACE_TOKEN="+p.Token)
	cmd.Stderr = p.Logger.Writer()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(script.Name())
		return nil, errors.Wrap(err, "helper stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.Remove(script.Name())
		return nil, errors.Wrap(err, "helper stdout")
	}
	if err := cmd.Start(); err != nil {
		os.Remove(script.Name())
		return nil, errors.Wrap(err, "start diarization helper")
	}
	return &diarizeHelper{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout), script: script.Name()}, nil
}

// stopLocked closes the helper's stdin so it exits its read loop, and kills
// it if it has not exited within helperStopTimeout.
func (p *PyannoteDiarizer) stopLocked() {
	h := p.helper
	if h == nil {
		return
	}
	p.helper = nil
	h.stdin.Close()

	done := make(chan struct{})
	go func() {
		h.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(helperStopTimeout):
		h.cmd.Process.Kill()
		<-done
	}
	os.Remove(h.script)
}

func (h *diarizeHelper) readLine(ctx context.Context) ([]byte, error) {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := h.out.ReadBytes('\n')
		ch <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		h.cmd.Process.Kill()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "diarization helper exited")
		}
		return r.line, nil
	}
}

func parseTurns(out []byte) ([]model.SpeakerTurn, error) {
	var parsed helperReply
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parse helper output %q", truncate(string(out), 200))
	}
	if parsed.Error != "" {
		return nil, errors.Errorf("pyannote failed: %s", parsed.Error)
	}
	for i, t := range parsed.Turns {
		if t.End < t.Start {
			return nil, errors.Errorf("turn %d ends before it starts", i)
		}
	}
	return parsed.Turns, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
