/*
ws.go - Websocket change-signal stream

PURPOSE:
  Pushes a bare "update" message to each connected client whenever the
  ledger changes. Clients re-fetch balances, rankings, and unlock state
  over the REST API; the socket only says that something moved.

LIFECYCLE:
  One goroutine per connection. The session ends when the client
  disconnects, the write fails, or the server shuts down. Slow clients
  miss coalesced signals instead of blocking the engines (see notify).
*/
package api

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/ncoin/reward-engine/notify"
)

// writeWait bounds each websocket write so a dead peer cannot pin the
// session goroutine.
const writeWait = 5 * time.Second

// WSHandler upgrades connections and streams change signals.
type WSHandler struct {
	Hub *notify.Hub
}

// Serve upgrades the request and streams signals until the client
// disconnects.
// GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	signals, cancel := h.Hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if err := h.send(ctx, conn, "update"); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) send(ctx context.Context, conn *websocket.Conn, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(msg))
}
