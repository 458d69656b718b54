package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/ledger"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// setupTestEnv wires fresh globals around an in-memory ledger.
func setupTestEnv(t *testing.T) http.Handler {
	t.Helper()
	InfoLog = log.New(io.Discard, "", 0)
	ErrorLog = log.New(io.Discard, "", 0)
	cfg = Config{
		DBDriver:    "sqlite",
		Ledger:      true,
		RateLimit:   1000,
		RateBurst:   1000,
		MaxSessions: 10,
		SessionTTL:  time.Hour,
		Seed:        42,
	}
	ipLimiters = make(map[string]*rate.Limiter)

	var err error
	turnLog, err = ledger.Open("sqlite", ":memory:", InfoLog)
	if err != nil {
		t.Fatalf("Failed to open test ledger: %v", err)
	}
	t.Cleanup(func() { turnLog.Close() })

	newServices()
	return newHandler()
}

// Helper to make JSON requests
func executeRequest(handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("Bad JSON %q: %v", rr.Body.String(), err)
	}
}

func createGame(t *testing.T, h http.Handler) createResponse {
	t.Helper()
	rr := executeRequest(h, "POST", "/games", map[string]int{"neutralCount": 4})
	if rr.Code != 200 {
		t.Fatalf("Create failed. Code: %d, Body: %s", rr.Code, rr.Body.String())
	}
	var resp createResponse
	decode(t, rr, &resp)
	return resp
}

func fetchState(t *testing.T, h http.Handler, gameID, code string) game.View {
	t.Helper()
	rr := executeRequest(h, "GET", "/games/"+gameID+"/state?code="+url.QueryEscape(code), nil)
	if rr.Code != 200 {
		t.Fatalf("State failed. Code: %d, Body: %s", rr.Code, rr.Body.String())
	}
	var v game.View
	decode(t, rr, &v)
	return v
}

func unitOfKind(v game.View, kind types.UnitKind) int {
	for _, u := range v.Units {
		if u.Kind == kind {
			return u.ID
		}
	}
	return 0
}

func TestCreateGame(t *testing.T) {
	h := setupTestEnv(t)
	resp := createGame(t, h)

	if !resp.Success || resp.GameID == "" {
		t.Fatalf("Unexpected create response: %+v", resp)
	}
	for _, f := range types.Factions {
		link, ok := resp.Join[f]
		if !ok || link.Code == "" {
			t.Fatalf("Missing join code for %s", f)
		}
		if !strings.Contains(link.Link, "code="+link.Code) || !strings.Contains(link.Link, "game="+resp.GameID) {
			t.Errorf("Join link %q does not carry game and code", link.Link)
		}
	}
	if resp.Join[types.Ithaxi].Code == resp.Join[types.Hive].Code {
		t.Errorf("Factions share a join code")
	}

	v := fetchState(t, h, resp.GameID, resp.Join[types.Hive].Code)
	if v.Faction != types.Hive || v.Turn != 1 {
		t.Errorf("State = faction %q turn %d", v.Faction, v.Turn)
	}
	if len(v.Systems) != 6 {
		t.Errorf("Expected 2 homes + 4 neutral systems, got %d", len(v.Systems))
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{game.ErrNotFound, http.StatusNotFound},
		{game.ErrForbidden, http.StatusForbidden},
		{game.ErrInvalidState, http.StatusConflict},
		{game.ErrCapacity, http.StatusUnprocessableEntity},
		{game.ErrInvalid, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestAccessControl(t *testing.T) {
	h := setupTestEnv(t)
	resp := createGame(t, h)

	rr := executeRequest(h, "GET", "/games/nope/state?code=x", nil)
	if rr.Code != 404 {
		t.Errorf("Unknown game: expected 404, got %d", rr.Code)
	}
	rr = executeRequest(h, "GET", "/games/"+resp.GameID+"/state?code=wrong", nil)
	if rr.Code != 403 {
		t.Errorf("Wrong code: expected 403, got %d", rr.Code)
	}
	var e errorResponse
	decode(t, rr, &e)
	if e.Success || e.Error == "" {
		t.Errorf("Error body = %+v", e)
	}

	// Hive cannot command an Ithaxi ship.
	ith := fetchState(t, h, resp.GameID, resp.Join[types.Ithaxi].Code)
	ship := unitOfKind(ith, types.JumpShip)
	rr = executeRequest(h, "POST", "/games/"+resp.GameID+"/order/move", moveRequest{
		Code: resp.Join[types.Hive].Code, UnitID: ship, ToSystemID: game.HomeHive,
	})
	if rr.Code != 403 {
		t.Errorf("Cross-faction move: expected 403, got %d", rr.Code)
	}
}

func TestRequestHygiene(t *testing.T) {
	h := setupTestEnv(t)
	resp := createGame(t, h)

	req, _ := http.NewRequest("POST", "/games/"+resp.GameID+"/turn/ready", strings.NewReader("code=abc"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Form body: expected 415, got %d", rr.Code)
	}

	req, _ = http.NewRequest("POST", "/games/"+resp.GameID+"/turn/ready", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Malformed JSON: expected 400, got %d", rr.Code)
	}

	rr = executeRequest(h, "POST", "/games/"+resp.GameID+"/order/produce", map[string]any{
		"code": resp.Join[types.Ithaxi].Code, "shipyardId": 1, "units": []map[string]any{{"type": "Dreadnought", "count": 1}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Unknown unit kind: expected 400, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := setupTestEnv(t)
	cfg.RateLimit = 1
	cfg.RateBurst = 2
	ipLimiters = make(map[string]*rate.Limiter)

	var last int
	for i := 0; i < 4; i++ {
		last = executeRequest(h, "GET", "/api/status", nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", last)
	}
}

func TestTurnFlow(t *testing.T) {
	h := setupTestEnv(t)
	resp := createGame(t, h)
	id := resp.GameID
	ithCode := resp.Join[types.Ithaxi].Code
	hiveCode := resp.Join[types.Hive].Code

	v := fetchState(t, h, id, ithCode)
	yard := unitOfKind(v, types.Shipyard)
	ship := unitOfKind(v, types.JumpShip)

	rr := executeRequest(h, "POST", "/games/"+id+"/order/produce", produceRequest{
		Code: ithCode, ShipyardID: yard, Units: []game.ProduceItem{{Kind: types.Striker, Count: 2}},
	})
	if rr.Code != 200 {
		t.Fatalf("Produce failed: %s", rr.Body.String())
	}
	var pr produceResponse
	decode(t, rr, &pr)
	if pr.Queued != 2 {
		t.Errorf("Queued = %d, want 2", pr.Queued)
	}

	rr = executeRequest(h, "POST", "/games/"+id+"/order/move", moveRequest{Code: ithCode, UnitID: ship, ToSystemID: "NOWHERE"})
	if rr.Code != 404 {
		t.Errorf("Move to unknown system: expected 404, got %d", rr.Code)
	}

	rr = executeRequest(h, "POST", "/games/"+id+"/turn/ready", authRequest{Code: ithCode})
	var ready readyResponse
	decode(t, rr, &ready)
	if rr.Code != 200 || ready.Resolved || !ready.Ready[types.Ithaxi] {
		t.Fatalf("First ready: %d %s", rr.Code, rr.Body.String())
	}

	rr = executeRequest(h, "GET", "/games/"+id+"/turn/status?code="+hiveCode, nil)
	var st statusResponse
	decode(t, rr, &st)
	if st.Turn != 1 || !st.Ready[types.Ithaxi] || st.Ready[types.Hive] {
		t.Errorf("Status before second ready = %+v", st)
	}

	rr = executeRequest(h, "POST", "/games/"+id+"/turn/ready", authRequest{Code: hiveCode})
	decode(t, rr, &ready)
	if !ready.Resolved || ready.Turn != 2 {
		t.Fatalf("Second ready did not resolve: %s", rr.Body.String())
	}

	v = fetchState(t, h, id, ithCode)
	if v.Turn != 2 || v.Ready[types.Ithaxi] {
		t.Errorf("After resolution: turn %d ready %v", v.Turn, v.Ready)
	}

	rr = executeRequest(h, "GET", "/games/"+id+"/ledger?code="+hiveCode, nil)
	var hist historyResponse
	decode(t, rr, &hist)
	if rr.Code != 200 || len(hist.Entries) != 2 || !hist.Intact {
		t.Errorf("Ledger after one turn: %d %s", rr.Code, rr.Body.String())
	}

	rr = executeRequest(h, "GET", "/games/"+id+"/ledger/1?code="+hiveCode, nil)
	var past game.View
	decode(t, rr, &past)
	if rr.Code != 200 || past.Turn != 1 || past.Faction != types.Hive {
		t.Errorf("Replay of turn 1: %d %s", rr.Code, rr.Body.String())
	}
	if rr := executeRequest(h, "GET", "/games/"+id+"/ledger/9?code="+hiveCode, nil); rr.Code != 404 {
		t.Errorf("Replay of future turn: expected 404, got %d", rr.Code)
	}
	if rr := executeRequest(h, "GET", "/games/"+id+"/ledger/zero?code="+hiveCode, nil); rr.Code != 400 {
		t.Errorf("Replay of bad turn: expected 400, got %d", rr.Code)
	}
}

func TestResignFlow(t *testing.T) {
	h := setupTestEnv(t)
	resp := createGame(t, h)
	id := resp.GameID
	code := resp.Join[types.Ithaxi].Code

	rr := executeRequest(h, "POST", "/games/"+id+"/resign", authRequest{Code: code})
	if rr.Code != 409 {
		t.Errorf("Resign without intent: expected 409, got %d", rr.Code)
	}

	rr = executeRequest(h, "POST", "/games/"+id+"/resign/intent", authRequest{Code: code})
	if rr.Code != 200 {
		t.Fatalf("Intent failed: %s", rr.Body.String())
	}
	rr = executeRequest(h, "POST", "/games/"+id+"/resign", authRequest{Code: code})
	var res resignResponse
	decode(t, rr, &res)
	if !res.GameOver || res.Winner != types.Hive {
		t.Errorf("Resign result = %s", rr.Body.String())
	}

	rr = executeRequest(h, "POST", "/games/"+id+"/turn/ready", authRequest{Code: resp.Join[types.Hive].Code})
	if rr.Code != 409 {
		t.Errorf("Ready after game over: expected 409, got %d", rr.Code)
	}
}

func wsURL(t *testing.T, base, gameID, code string) string {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/games/" + gameID + "/stream"
	u.RawQuery = url.Values{"code": {code}}.Encode()
	return u.String()
}

func readState(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return msg
}

func TestStreamPushesResolution(t *testing.T) {
	h := setupTestEnv(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	resp := createGame(t, h)
	hiveCode := resp.Join[types.Hive].Code

	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL(t, srv.URL, resp.GameID, hiveCode), nil)
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		wsResp.Body.Close()
	})

	first := readState(t, conn)
	if first.Type != "state" || first.Faction != types.Hive || first.Turn != 1 {
		t.Fatalf("Initial message = %+v", first)
	}

	executeRequest(h, "POST", "/games/"+resp.GameID+"/turn/ready", authRequest{Code: resp.Join[types.Ithaxi].Code})
	executeRequest(h, "POST", "/games/"+resp.GameID+"/turn/ready", authRequest{Code: hiveCode})

	next := readState(t, conn)
	if next.Turn != 2 || next.Faction != types.Hive {
		t.Errorf("Pushed view = turn %d faction %q", next.Turn, next.Faction)
	}
	for _, u := range next.Units {
		if u.Faction != types.Hive {
			t.Errorf("Pushed view leaks enemy unit %d", u.ID)
		}
	}
}

func TestStreamRejectsBadCode(t *testing.T) {
	h := setupTestEnv(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	resp := createGame(t, h)

	_, wsResp, err := websocket.DefaultDialer.Dial(wsURL(t, srv.URL, resp.GameID, "wrong"), nil)
	if err == nil {
		t.Fatalf("Expected handshake failure")
	}
	if wsResp == nil || wsResp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 handshake response, got %v", wsResp)
	}
	if wsResp != nil {
		wsResp.Body.Close()
	}
}

func TestStreamDrop(t *testing.T) {
	h := setupTestEnv(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	resp := createGame(t, h)

	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL(t, srv.URL, resp.GameID, resp.Join[types.Ithaxi].Code), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer wsResp.Body.Close()
	defer conn.Close()
	readState(t, conn)

	streams.Drop(resp.GameID)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected going-away close, got %v", err)
	}
	if n := streams.Subscribers(resp.GameID); n != 0 {
		t.Errorf("Subscribers after drop = %d", n)
	}
}
