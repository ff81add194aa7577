package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/accord/assistant"
	"github.com/mrsingh-rishi/accord/llm"
)

type wsMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// wsAsk answers each question sent on the socket, streaming the answer one
// sentence at a time and finishing with a "done" message.
func (h *handlers) wsAsk() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		session := uuid.NewString()
		defer ws.Close()
		h.log.Printf("WebSocket /ws/ask connected (session %s)", session)

		for {
			var in assistant.AskInput
			if err := ws.ReadJSON(&in); err != nil {
				h.log.Printf("WebSocket session %s closed: %v", session, err)
				return
			}
			if err := askInput(in); err != nil {
				if werr := ws.WriteJSON(wsMessage{Type: "error", Text: err.Error()}); werr != nil {
					return
				}
				continue
			}
			if !h.streamAnswer(ws, session, in) {
				return
			}
		}
	})
}

// streamAnswer reports false when the client can no longer be written to.
func (h *handlers) streamAnswer(ws *websocket.Conn, session string, in assistant.AskInput) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if d := h.deps.Assistant.AskTimeout; d > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d)
		defer stop()
	}

	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		errc <- llm.StreamSentences(ctx, h.deps.Streamer, assistant.AskRequest(in), out)
		close(out)
	}()

	alive := true
	for sentence := range out {
		if !alive {
			continue
		}
		if err := ws.WriteJSON(wsMessage{Type: "sentence", Text: sentence}); err != nil {
			h.log.Printf("❌ WebSocket session %s write error: %v", session, err)
			alive = false
			cancel()
		}
	}
	err := <-errc
	if !alive {
		return false
	}
	if err != nil {
		h.log.Printf("ask stream failed (session %s): %v", session, err)
		return ws.WriteJSON(wsMessage{Type: "error", Text: assistant.FallbackFor(err)}) == nil
	}
	return ws.WriteJSON(wsMessage{Type: "done"}) == nil
}
