package main

import (
	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/session"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// --- API Payloads ---

// Every order body carries the caller's join code; the game id comes from the path.
type authRequest struct {
	Code string `json:"code"`
}

type moveRequest struct {
	Code       string `json:"code"`
	UnitID     int    `json:"unitId"`
	ToSystemID string `json:"toSystemId"`
}

type convertRequest struct {
	Code       string `json:"code"`
	JumpShipID int    `json:"jumpShipId"`
}

type loadRequest struct {
	Code       string `json:"code"`
	JumpShipID int    `json:"jumpShipId"`
	UnitID     int    `json:"unitId"`
}

type loadResourcesRequest struct {
	Code       string `json:"code"`
	JumpShipID int    `json:"jumpShipId"`
	Amount     int    `json:"amount"`
}

type unloadRequest struct {
	Code       string `json:"code"`
	JumpShipID int    `json:"jumpShipId"`
	game.UnloadRequest
}

type produceRequest struct {
	Code       string             `json:"code"`
	ShipyardID int                `json:"shipyardId"`
	Units      []game.ProduceItem `json:"units"`
}

type researchRequest struct {
	Code        string         `json:"code"`
	LabID       int            `json:"labId"`
	Tech        types.UnitKind `json:"tech"`
	TargetLevel int            `json:"targetLevel"`
}

type resignIntentRequest struct {
	Code string `json:"code"`
	On   *bool  `json:"on,omitempty"` // defaults to true
}

// --- Responses ---

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type okResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId,omitempty"`
}

type joinLink struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

type createResponse struct {
	Success bool                       `json:"success"`
	GameID  string                     `json:"gameId"`
	Join    map[types.Faction]joinLink `json:"join"`
}

type stateResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	game.View
}

type statusResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	session.Status
}

type readyResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	session.ReadyResult
}

type resignResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	session.ResignResult
}

type moveResponse struct {
	Success  bool `json:"success"`
	Distance int  `json:"distance"`
}

type loadResponse struct {
	Success bool `json:"success"`
	game.LoadResult
}

type produceResponse struct {
	Success bool `json:"success"`
	Queued  int  `json:"queued"`
}

type historyResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"gameId"`
	session.History
}
