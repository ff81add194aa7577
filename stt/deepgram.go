package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/model"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramChunk    = 8 * 1024
)

// DeepgramClient streams a recording over Deepgram's live websocket with
// diarization on, yielding words and speaker turns in one pass.
type DeepgramClient struct {
	APIKey   string
	Model    string
	Endpoint string
	Dialer   *gws.Dialer
	Logger   *log.Logger
}

// TranscriptionMessage is a Deepgram "Results" message.
type TranscriptionMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string         `json:"transcript"`
			Confidence float64        `json:"confidence"`
			Words      []DeepgramWord `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type DeepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        *int    `json:"speaker"`
}

func NewDeepgramClient(apiKey, dgModel string, logger *log.Logger) (*DeepgramClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("deepgram API key is required")
	}
	if dgModel == "" {
		dgModel = "nova-2"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DeepgramClient{
		APIKey:   apiKey,
		Model:    dgModel,
		Endpoint: deepgramEndpoint,
		Dialer:   gws.DefaultDialer,
		Logger:   logger,
	}, nil
}

func (dg *DeepgramClient) listenURL() string {
	q := url.Values{}
	q.Set("model", dg.Model)
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	return dg.Endpoint + "?" + q.Encode()
}

func (dg *DeepgramClient) dial(ctx context.Context) (*gws.Conn, error) {
	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", dg.APIKey)},
	}
	conn, resp, err := dg.Dialer.DialContext(ctx, dg.listenURL(), header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "deepgram dial: status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "deepgram dial")
	}
	return conn, nil
}

// Probe opens and closes a session to check the key and endpoint.
func (dg *DeepgramClient) Probe(ctx context.Context) error {
	conn, err := dg.dial(ctx)
	if err != nil {
		return err
	}
	conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`))
	return conn.Close()
}

func (dg *DeepgramClient) Transcribe(ctx context.Context, audioPath string) (model.Transcription, error) {
	tr, _, err := dg.TranscribeSpeakers(ctx, audioPath)
	return tr, err
}

func (dg *DeepgramClient) Diarize(ctx context.Context, audioPath string) ([]model.SpeakerTurn, error) {
	_, turns, err := dg.TranscribeSpeakers(ctx, audioPath)
	return turns, err
}

func (dg *DeepgramClient) TranscribeSpeakers(ctx context.Context, audioPath string) (model.Transcription, []model.SpeakerTurn, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return model.Transcription{}, nil, errors.Wrap(err, "open audio")
	}
	defer f.Close()

	conn, err := dg.dial(ctx)
	if err != nil {
		return model.Transcription{}, nil, err
	}
	dg.Logger.Printf("✅ Connected to Deepgram")

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		closeConn()
	}()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- dg.sendAudio(conn, f)
	}()

	var words []DeepgramWord
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure) || errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return model.Transcription{}, nil, errors.Wrap(ctx.Err(), "deepgram session")
			}
			return model.Transcription{}, nil, errors.Wrap(err, "deepgram read")
		}
		var msg TranscriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			dg.Logger.Printf("Error parsing Deepgram response: %v", err)
			continue
		}
		words = append(words, finalWords(msg)...)
	}
	if err := <-sendErr; err != nil {
		return model.Transcription{}, nil, err
	}

	tr, turns := buildResult(words)
	dg.Logger.Printf("✅ Deepgram finished %s: %d words, %d turns", audioPath, len(tr.Words), len(turns))
	return tr, turns, nil
}

// sendAudio writes the recording in binary frames, then asks the server to
// flush and close.
func (dg *DeepgramClient) sendAudio(conn *gws.Conn, r io.Reader) error {
	buf := make([]byte, deepgramChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(gws.BinaryMessage, buf[:n]); werr != nil {
				return errors.Wrap(werr, "deepgram write")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read audio")
		}
	}
	if err := conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return errors.Wrap(err, "deepgram close stream")
	}
	return nil
}

func finalWords(msg TranscriptionMessage) []DeepgramWord {
	if msg.Type != "" && msg.Type != "Results" {
		return nil
	}
	if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	return msg.Channel.Alternatives[0].Words
}

// buildResult turns Deepgram words into a transcription and speaker turns.
// Consecutive words from one speaker form one turn.
func buildResult(words []DeepgramWord) (model.Transcription, []model.SpeakerTurn) {
	var (
		tr    model.Transcription
		turns []model.SpeakerTurn
		text  strings.Builder
	)
	for _, w := range words {
		token := w.PunctuatedWord
		if token == "" {
			token = w.Word
		}
		tr.Words = append(tr.Words, model.Word{Text: " " + token, Start: w.Start, End: w.End})
		text.WriteString(" " + token)

		if w.Speaker == nil {
			continue
		}
		label := fmt.Sprintf("SPEAKER_%02d", *w.Speaker)
		if n := len(turns); n > 0 && turns[n-1].Speaker == label {
			turns[n-1].End = w.End
			continue
		}
		turns = append(turns, model.SpeakerTurn{Start: w.Start, End: w.End, Speaker: label})
	}
	tr.Text = strings.TrimSpace(text.String())
	return tr, turns
}
