// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/url"

	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/live"
	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/voting"
)

type LiveHandler struct {
	svc     *voting.Service
	hub     *live.Hub
	origins []string
}

func NewLiveHandler(svc *voting.Service, hub *live.Hub, cfg cliparse.Config) *LiveHandler {
	return &LiveHandler{svc: svc, hub: hub, origins: originPatterns(cfg.AllowedOrigin)}
}

// Subscribe handles GET /elections/{id}/live
// Upgrades to a websocket that streams tally updates for the election
func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Store().GetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	h.hub.ServeWS(w, r, e.ID, h.origins)
}

// originPatterns turns the configured CORS origin into a websocket host pattern.
// No pattern means same-host only.
func originPatterns(allowed string) []string {
	switch allowed {
	case "":
		return nil
	case "*":
		return []string{"*"}
	}
	if u, err := url.Parse(allowed); err == nil && u.Host != "" {
		return []string{u.Host}
	}
	return []string{allowed}
}
