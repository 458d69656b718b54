package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /games", handleCreateGame)
	mux.HandleFunc("GET /games/{gameId}/state", handleState)
	mux.HandleFunc("GET /games/{gameId}/turn/status", handleTurnStatus)
	mux.HandleFunc("GET /games/{gameId}/ledger", handleLedger)
	mux.HandleFunc("GET /games/{gameId}/ledger/{turn}", handleReplay)
	mux.HandleFunc("GET /games/{gameId}/stream", streams.Handle)

	mux.HandleFunc("POST /games/{gameId}/turn/ready", handleReady)
	mux.HandleFunc("POST /games/{gameId}/turn/unready", handleUnready)
	mux.HandleFunc("POST /games/{gameId}/resign/intent", handleResignIntent)
	mux.HandleFunc("POST /games/{gameId}/resign", handleResign)

	mux.HandleFunc("POST /games/{gameId}/order/move", handleMove)
	mux.HandleFunc("POST /games/{gameId}/order/convertToShipyard", handleConvert)
	mux.HandleFunc("POST /games/{gameId}/order/load", handleLoad)
	mux.HandleFunc("POST /games/{gameId}/order/loadResources", handleLoadResources)
	mux.HandleFunc("POST /games/{gameId}/order/unload", handleUnload)
	mux.HandleFunc("POST /games/{gameId}/order/produce", handleProduce)
	mux.HandleFunc("POST /games/{gameId}/order/research", handleResearch)

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": len(games.Sessions())})
	})
}

// --- Session ---

func handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var setup game.Setup
	if err := decodeBody(r, &setup); err != nil {
		writeError(w, err)
		return
	}
	created, err := games.Create(r.Context(), setup)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := createResponse{Success: true, GameID: created.GameID, Join: make(map[types.Faction]joinLink, 2)}
	for f, code := range created.Codes {
		q := url.Values{"game": {created.GameID}, "code": {code}}
		resp.Join[f] = joinLink{Code: code, Link: "/?" + q.Encode()}
	}
	InfoLog.Printf("Game %s created from %s", created.GameID, r.RemoteAddr)
	writeJSON(w, http.StatusOK, resp)
}

func handleState(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	view, err := games.State(gameID, r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Success: true, GameID: gameID, View: view})
}

func handleTurnStatus(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	st, err := games.Status(gameID, r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, GameID: gameID, Status: st})
}

func handleLedger(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	h, err := games.History(r.Context(), gameID, r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, GameID: gameID, History: h})
}

func handleReplay(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	turn, err := strconv.Atoi(r.PathValue("turn"))
	if err != nil || turn < 1 {
		writeError(w, &game.Error{Kind: game.KindInvalid, Message: "Turn must be a positive integer"})
		return
	}
	view, err := games.Replay(r.Context(), gameID, r.URL.Query().Get("code"), turn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Success: true, GameID: gameID, View: view})
}

// --- Turn Flags ---

func handleReady(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	var req authRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := games.Ready(r.Context(), gameID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Success: true, GameID: gameID, ReadyResult: res})
}

func handleUnready(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	var req authRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := games.Unready(gameID, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true, GameID: gameID})
}

func handleResignIntent(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	var req resignIntentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	on := req.On == nil || *req.On
	if err := games.ResignIntent(gameID, req.Code, on); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true, GameID: gameID})
}

func handleResign(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	var req authRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := games.ConfirmResign(r.Context(), gameID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resignResponse{Success: true, GameID: gameID, ResignResult: res})
}

// --- Orders ---

func handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dist, err := games.Move(r.PathValue("gameId"), req.Code, req.UnitID, req.ToSystemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Success: true, Distance: dist})
}

func handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := games.ConvertToShipyard(r.PathValue("gameId"), req.Code, req.JumpShipID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := games.LoadUnit(r.PathValue("gameId"), req.Code, req.JumpShipID, req.UnitID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Success: true, LoadResult: res})
}

func handleLoadResources(w http.ResponseWriter, r *http.Request) {
	var req loadResourcesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := games.LoadResources(r.PathValue("gameId"), req.Code, req.JumpShipID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Success: true, LoadResult: res})
}

func handleUnload(w http.ResponseWriter, r *http.Request) {
	var req unloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := games.Unload(r.PathValue("gameId"), req.Code, req.JumpShipID, req.UnloadRequest); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func handleProduce(w http.ResponseWriter, r *http.Request) {
	var req produceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	queued, err := games.Produce(r.PathValue("gameId"), req.Code, req.ShipyardID, req.Units)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, produceResponse{Success: true, Queued: queued})
}

func handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := games.QueueResearch(r.PathValue("gameId"), req.Code, req.LabID, req.Tech, req.TargetLevel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}
