// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/live"
	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/testutil"
	"github.com/voteverse/server/voting"
)

// testEnv bundles a fresh database with the service and hub wired over it
type testEnv struct {
	db  *sql.DB
	cfg cliparse.Config
	svc *voting.Service
	hub *live.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	m := metrics.New()
	hub := live.NewHub(m)
	svc := voting.NewService(voting.NewStore(db), hub, m)

	t.Cleanup(func() {
		svc.Wait()
		hub.Close()
		db.Close()
	})

	return &testEnv{db: db, cfg: testutil.GetTestConfig(), svc: svc, hub: hub}
}

// as attaches user to the request the way RequireUser does
func as(req *http.Request, user models.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()

	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", body, err)
	}
	return resp
}
