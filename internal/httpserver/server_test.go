package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/oceantree/internal/catalog"
	"github.com/robalobadob/oceantree/internal/game"
	"github.com/robalobadob/oceantree/internal/store"
)

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	s     *Server
	clock *game.ManualClock
	store store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, _, err := catalog.Default()
	require.NoError(t, err)

	clock := game.NewManualClock()
	st := store.NewMemoryStore()
	nop := zerolog.Nop()
	s := New(Options{
		Store:      st,
		Catalog:    cat,
		NewMachine: func() *game.Machine { return game.New(cat, game.WithClock(clock)) },
		Secret:     "test-secret",
		Logger:     &nop,
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, s: s, clock: clock, store: st}
}

func (h *harness) do(method, path, token string, body any) (int, []byte) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			rd = strings.NewReader(raw)
		} else {
			b, err := json.Marshal(body)
			require.NoError(h.t, err)
			rd = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(h.t, err)
	return res.StatusCode, out
}

func (h *harness) newSession() newSessionRes {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/session", "", nil)
	require.Equal(h.t, http.StatusOK, code, string(body))
	var res newSessionRes
	require.NoError(h.t, json.Unmarshal(body, &res))
	require.NotEmpty(h.t, res.Token)
	return res
}

func (h *harness) place(token, node, species string) placeRes {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/session/place", token, placeReq{NodeID: node, SpeciesID: species})
	require.Equal(h.t, http.StatusOK, code, string(body))
	var res placeRes
	require.NoError(h.t, json.Unmarshal(body, &res))
	return res
}

func (h *harness) state(token string) game.Snapshot {
	h.t.Helper()
	code, body := h.do(http.MethodGet, "/session/state", token, nil)
	require.Equal(h.t, http.StatusOK, code, string(body))
	var snap game.Snapshot
	require.NoError(h.t, json.Unmarshal(body, &snap))
	return snap
}

func TestHealthAndCatalog(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":true,"sessions":0}`, string(body))

	code, body = h.do(http.MethodGet, "/catalog", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(body), "correctSpecies", "answers stay on the server")
	var cat catalogRes
	require.NoError(t, json.Unmarshal(body, &cat))
	assert.Equal(t, "Ocean Family Tree", cat.Title)
	assert.Len(t, cat.Species, 22)
	assert.Len(t, cat.Nodes, 22)
	assert.Equal(t, catalog.DefaultScoring, cat.Scoring)
	require.NotNil(t, cat.Tree)
	assert.Equal(t, 400, cat.Tree.Width)

	code, body = h.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"not_found"}`, string(body))
}

func TestPlacementFlow(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()
	assert.Len(t, sess.State.Available, 22)
	assert.Equal(t, game.StatusPlaying, sess.State.Status)

	res := h.place(sess.Token, "1", "dugong")
	assert.True(t, res.Accepted)
	assert.True(t, res.Correct)
	assert.Equal(t, 10, res.State.Score)

	again := h.place(sess.Token, "1", "shark")
	assert.False(t, again.Accepted)
	assert.Equal(t, 10, again.State.Score)

	miss := h.place(sess.Token, "2", "shark")
	assert.True(t, miss.Accepted)
	assert.False(t, miss.Correct)
	assert.Equal(t, 8, miss.State.Score)
	require.NotNil(t, miss.State.Feedback)
	assert.Equal(t, game.FeedbackError, miss.State.Feedback.Kind)

	h.clock.Advance(game.DefaultTiming.RevertDelay)
	snap := h.state(sess.Token)
	assert.Len(t, snap.Available, 21)
	assert.Equal(t, 2, snap.TotalPlacements)
	assert.Equal(t, 1, snap.CorrectPlacements)
	for _, n := range snap.Nodes {
		if n.ID == "2" {
			assert.Nil(t, n.Placed)
			assert.Equal(t, game.PlacementUnset, n.Placement)
		}
	}

	code, body := h.do(http.MethodPost, "/session/reset", sess.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var reset struct {
		State game.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &reset))
	assert.Zero(t, reset.State.Score)
	assert.Len(t, reset.State.Available, 22)
}

func TestPlaceRejectsBadJSON(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()
	code, body := h.do(http.MethodPost, "/session/place", sess.Token, "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"bad_json"}`, string(body))
}

func TestUnknownInputsAreNoOps(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()
	assert.False(t, h.place(sess.Token, "404", "dugong").Accepted)
	assert.False(t, h.place(sess.Token, "1", "kraken").Accepted)
	assert.Zero(t, h.state(sess.Token).TotalPlacements)
}

func TestSessionAuth(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(http.MethodGet, "/session/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := h.do(http.MethodGet, "/session/state", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"error":"invalid_token"}`, string(body))

	other := New(Options{Store: h.store, Catalog: h.s.cat, Secret: "other-secret"})
	forged, _, err := other.signToken("whatever")
	require.NoError(t, err)
	code, _ = h.do(http.MethodGet, "/session/state", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	sess := h.newSession()
	code, _ = h.do(http.MethodDelete, "/session", sess.Token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, "/session/state", sess.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionCookie(t *testing.T) {
	h := newHarness(t)
	res, err := h.srv.Client().Post(h.srv.URL+"/session", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/session/state", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	res, err = h.srv.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestStreamPushesChanges(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/session/stream?token=" + sess.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() game.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var snap game.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}

	first := read()
	assert.Len(t, first.Available, 22)

	h.place(sess.Token, "1", "shark")
	placed := read()
	assert.Greater(t, placed.Version, first.Version)
	assert.Equal(t, -2, placed.Score)

	h.clock.Advance(game.DefaultTiming.RevertDelay)
	reverted := read()
	assert.Greater(t, reverted.Version, placed.Version)
	assert.Len(t, reverted.Available, 22)
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/session/stream?token=" + sess.Token
	hdr := http.Header{"Origin": []string{"https://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(url, hdr)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestStreamEndsWhenSessionDeleted(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/session/stream?token=" + sess.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first game.Snapshot
	require.NoError(t, conn.ReadJSON(&first))

	code, _ := h.do(http.MethodDelete, "/session", sess.Token, nil)
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
