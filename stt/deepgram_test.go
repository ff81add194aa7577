package stt

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gws "github.com/gorilla/websocket"
)

func intp(i int) *int { return &i }

func TestBuildResultGroupsSpeakers(t *testing.T) {
	tr, turns := buildResult([]DeepgramWord{
		{Word: "hello", PunctuatedWord: "Hello", Start: 0, End: 0.4, Speaker: intp(0)},
		{Word: "there", PunctuatedWord: "there.", Start: 0.5, End: 0.9, Speaker: intp(0)},
		{Word: "hi", PunctuatedWord: "Hi.", Start: 1.5, End: 1.8, Speaker: intp(1)},
	})
	if tr.Text != "Hello there. Hi." {
		t.Errorf("unexpected text %q", tr.Text)
	}
	if len(turns) != 2 {
		t.Fatalf("expected two turns, got %+v", turns)
	}
	if turns[0].Speaker != "SPEAKER_00" || turns[0].End != 0.9 || turns[1].Speaker != "SPEAKER_01" {
		t.Errorf("unexpected turns %+v", turns)
	}
}

func TestFinalWordsSkipsInterim(t *testing.T) {
	var msg TranscriptionMessage
	json.Unmarshal([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"words":[{"word":"a"}]}]}}`), &msg)
	if len(finalWords(msg)) != 0 {
		t.Fatal("interim results must be ignored")
	}
	msg.IsFinal = true
	if len(finalWords(msg)) != 1 {
		t.Fatal("final results must be kept")
	}
	msg.Type = "Metadata"
	if len(finalWords(msg)) != 0 {
		t.Fatal("metadata must be ignored")
	}
}

func TestDeepgramSession(t *testing.T) {
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token dg-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("diarize") != "true" {
			t.Errorf("diarize not requested: %s", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var audio int
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == gws.BinaryMessage {
				audio += len(data)
				continue
			}
			if strings.Contains(string(data), "CloseStream") {
				break
			}
		}
		if audio == 0 {
			t.Error("no audio received")
		}
		conn.WriteMessage(gws.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Hello there.","words":[
			{"word":"hello","punctuated_word":"Hello","start":0,"end":0.4,"speaker":0},
			{"word":"there","punctuated_word":"there.","start":0.5,"end":0.9,"speaker":0}]}]}}`))
		conn.WriteMessage(gws.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Hi.","words":[
			{"word":"hi","punctuated_word":"Hi.","start":1.5,"end":1.8,"speaker":1}]}]}}`))
		conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	dg, err := NewDeepgramClient("dg-key", "", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	dg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	tr, turns, err := dg.TranscribeSpeakers(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(tr.Words) != 3 || tr.Words[0].Text != " Hello" {
		t.Fatalf("unexpected words %+v", tr.Words)
	}
	if len(turns) != 2 || turns[1].Speaker != "SPEAKER_01" {
		t.Fatalf("unexpected turns %+v", turns)
	}

	dg.APIKey = "wrong"
	if _, _, err := dg.TranscribeSpeakers(context.Background(), writeAudio(t)); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected dial failure with status, got %v", err)
	}
}
