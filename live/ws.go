// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request to a websocket, joins the election's channel
// and writes each tally update as a JSON text message until the client goes
// away or the subscription is dropped. Client messages are ignored.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, electionID string, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		// Accept has already written the HTTP error
		slog.Warn("websocket upgrade failed", "election_id", electionID, "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.Subscribe(electionID)
	defer sub.Close()

	slog.Info("live subscriber joined", "election_id", electionID, "remote", r.RemoteAddr)

	// CloseRead discards incoming frames and cancels ctx once the peer closes
	ctx := conn.CloseRead(r.Context())

	err = stream(ctx, conn, sub)
	switch {
	case errors.Is(err, errDropped):
		conn.Close(websocket.StatusGoingAway, "subscription ended")
	case websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled):
		slog.Warn("live subscriber write failed", "election_id", electionID, "error", err)
	}

	slog.Info("live subscriber left", "election_id", electionID, "remote", r.RemoteAddr)
}

var errDropped = errors.New("subscription dropped")

func stream(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-sub.C:
			if !ok {
				return errDropped
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, update)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
