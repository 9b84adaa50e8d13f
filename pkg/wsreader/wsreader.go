// Package wsreader drives the read side of a websocket connection and
// hands every decoded envelope to a Dispatcher. Routing by message type
// is the dispatcher's job, so the catalogue of known types lives in one
// place and can be matched exhaustively.
package wsreader

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, conn *websocket.Conn, envelope Envelope)
}

// Serve reads messages until the connection fails or ctx is canceled.
// Malformed payloads are skipped; only transport errors end the loop.
func Serve(ctx context.Context, conn *websocket.Conn, dispatcher Dispatcher) error {
	defer conn.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		envelope := Envelope{Raw: raw}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			// plain-text ping frames are part of the legacy protocol
			if string(raw) == "ping" {
				envelope.Type = "ping"
			} else {
				continue
			}
		}

		dispatcher.Dispatch(ctx, conn, envelope)
	}
}
