// Package session hosts independent matches and serializes all access to
// each one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/davergrounds/galactic-empires/pkg/core"
	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/ledger"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// Ledger persists the per-turn hash chain. *ledger.Ledger satisfies it.
type Ledger interface {
	Record(ctx context.Context, sessionID string, g *types.Game) (ledger.Entry, error)
	Entries(ctx context.Context, sessionID string) ([]ledger.Entry, error)
	Verify(ctx context.Context, sessionID string) (int, error)
	Load(ctx context.Context, sessionID string, turn int) (*types.Game, error)
	Forget(ctx context.Context, sessionID string) error
}

// Notifier receives each faction's masked view after the world changes
// outside that faction's own order, i.e. after resolution or resignation.
type Notifier interface {
	Notify(sessionID string, views map[types.Faction]game.View)
}

type Config struct {
	Repo     Repository
	Ledger   Ledger   // optional
	Notifier Notifier // optional
	Logger   *log.Logger

	// Seed fixes per-session RNG seeds (Seed, Seed+1, ...). Zero draws a
	// fresh random seed per session.
	Seed int64
	// TTL is the idle time after which Evict drops a session.
	TTL time.Duration
	Now func() time.Time
}

type Service struct {
	repo     Repository
	ledger   Ledger
	notifier Notifier
	logger   *log.Logger
	seed     int64
	created  atomic.Int64
	ttl      time.Duration
	now      func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Repo == nil {
		cfg.Repo = NewMemoryStore(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     cfg.Repo,
		ledger:   cfg.Ledger,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		seed:     cfg.Seed,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

// --- Lifecycle ---

// Created is what the host of a new match hands out.
type Created struct {
	GameID string                   `json:"gameId"`
	Codes  map[types.Faction]string `json:"codes"`
}

func (s *Service) nextSeed() (int64, error) {
	n := s.created.Add(1) - 1
	if s.seed != 0 {
		return s.seed + n, nil
	}
	return core.NewSeed()
}

func (s *Service) Create(ctx context.Context, setup game.Setup) (Created, error) {
	seed, err := s.nextSeed()
	if err != nil {
		return Created{}, err
	}
	codes := make(map[types.Faction]string, 2)
	for _, f := range types.Factions {
		code, err := core.NewJoinCode()
		if err != nil {
			return Created{}, err
		}
		codes[f] = code
	}

	id := uuid.NewString()
	rec := newRecord(id, codes, nil, seed, s.now())
	rec.game = game.NewGame(setup, rec.rng)
	if err := s.repo.Create(rec); err != nil {
		return Created{}, err
	}
	s.logger.Printf("session %s created (%dx%d, %d systems, seed %d)", id, rec.game.Map.W, rec.game.Map.H, len(rec.game.Systems), seed)

	if s.ledger != nil {
		rec.mu.Lock()
		s.record(ctx, rec)
		rec.mu.Unlock()
	}

	out := Created{GameID: id, Codes: make(map[types.Faction]string, 2)}
	for f, c := range codes {
		out.Codes[f] = c
	}
	return out, nil
}

// record appends the current world to the ledger. Must hold rec.mu. Failures
// are logged and never undo the resolution. The write outlives a cancelled
// request so the chain has no gaps.
func (s *Service) record(ctx context.Context, rec *Record) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Record(context.WithoutCancel(ctx), rec.ID, rec.game); err != nil {
		s.logger.Printf("session %s: ledger record failed at turn %d: %v", rec.ID, rec.game.Turn, err)
	}
}

// Evict drops sessions idle longer than the TTL.
func (s *Service) Evict(ctx context.Context) []string {
	if s.ttl <= 0 {
		return nil
	}
	evicted := s.repo.EvictIdle(s.now().Add(-s.ttl))
	for _, id := range evicted {
		s.logger.Printf("session %s evicted after %s idle", id, s.ttl)
		if s.ledger != nil {
			if err := s.ledger.Forget(ctx, id); err != nil {
				s.logger.Printf("session %s: ledger cleanup failed: %v", id, err)
			}
		}
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done. onEvict,
// when set, is called for each dropped session.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration, onEvict func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.Evict(ctx) {
				if onEvict != nil {
					onEvict(id)
				}
			}
		}
	}
}

func (s *Service) Sessions() []string { return s.repo.List() }

// --- Identity Gate ---

// Authenticate maps a (game id, join code) pair to a faction.
func (s *Service) Authenticate(gameID, code string) (types.Faction, error) {
	rec, err := s.repo.Get(gameID)
	if err != nil {
		return "", err
	}
	f, err := rec.faction(code)
	if err != nil {
		return "", err
	}
	rec.touch(s.now())
	return f, nil
}

func (r *Record) faction(code string) (types.Faction, error) {
	for _, f := range types.Factions {
		if core.CodesMatch(code, r.codes[f]) {
			return f, nil
		}
	}
	return "", &game.Error{Kind: game.KindForbidden, Message: "Invalid join code"}
}

// with authenticates and runs fn under the session lock.
func (s *Service) with(gameID, code string, fn func(rec *Record, f types.Faction) error) error {
	rec, err := s.repo.Get(gameID)
	if err != nil {
		return err
	}
	f, err := rec.faction(code)
	if err != nil {
		return err
	}
	rec.touch(s.now())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec, f)
}

// --- Reads ---

func (s *Service) State(gameID, code string) (game.View, error) {
	var v game.View
	err := s.with(gameID, code, func(rec *Record, f types.Faction) error {
		v = game.Project(rec.game, f)
		return nil
	})
	return v, err
}

type Status struct {
	Faction  types.Faction          `json:"yourFaction"`
	Turn     int                    `json:"turn"`
	GameOver bool                   `json:"gameOver"`
	Winner   types.Faction          `json:"winner,omitempty"`
	Ready    map[types.Faction]bool `json:"ready"`
}

func (s *Service) Status(gameID, code string) (Status, error) {
	var st Status
	err := s.with(gameID, code, func(rec *Record, f types.Faction) error {
		g := rec.game
		st = Status{
			Faction:  f,
			Turn:     g.Turn,
			GameOver: g.GameOver,
			Winner:   g.Winner,
			Ready:    map[types.Faction]bool{types.Ithaxi: g.Ready[types.Ithaxi], types.Hive: g.Ready[types.Hive]},
		}
		return nil
	})
	return st, err
}

// History is the session's ledger chain and its verification result.
type History struct {
	Entries    []ledger.Entry `json:"entries"`
	Intact     bool           `json:"intact"`
	BrokenTurn int            `json:"brokenTurn,omitempty"`
}

func (s *Service) History(ctx context.Context, gameID, code string) (History, error) {
	if _, err := s.Authenticate(gameID, code); err != nil {
		return History{}, err
	}
	h := History{Entries: []ledger.Entry{}, Intact: true}
	if s.ledger == nil {
		return h, nil
	}
	entries, err := s.ledger.Entries(ctx, gameID)
	if err != nil {
		return History{}, err
	}
	broken, err := s.ledger.Verify(ctx, gameID)
	if err != nil {
		return History{}, err
	}
	h.Entries = entries
	h.BrokenTurn = broken
	h.Intact = broken == 0
	return h, nil
}

// Replay returns the caller's masked view of the world as recorded at a past
// turn. A session that ended mid-turn by resignation holds its final state at
// that turn.
func (s *Service) Replay(ctx context.Context, gameID, code string, turn int) (game.View, error) {
	f, err := s.Authenticate(gameID, code)
	if err != nil {
		return game.View{}, err
	}
	if s.ledger == nil {
		return game.View{}, &game.Error{Kind: game.KindNotFound, Message: "Turn ledger is disabled"}
	}
	g, err := s.ledger.Load(ctx, gameID, turn)
	if errors.Is(err, ledger.ErrNoEntry) {
		return game.View{}, &game.Error{Kind: game.KindNotFound, Message: fmt.Sprintf("No snapshot for turn %d", turn)}
	}
	if err != nil {
		return game.View{}, err
	}
	return game.Project(g, f), nil
}

// --- Orders ---

func (s *Service) Move(gameID, code string, unitID int, toSystemID string) (int, error) {
	var dist int
	err := s.with(gameID, code, func(rec *Record, f types.Faction) (err error) {
		dist, err = game.Move(rec.game, f, unitID, toSystemID)
		return err
	})
	return dist, err
}

func (s *Service) ConvertToShipyard(gameID, code string, shipID int) error {
	return s.with(gameID, code, func(rec *Record, f types.Faction) error {
		return game.ConvertToShipyard(rec.game, f, shipID)
	})
}

func (s *Service) LoadUnit(gameID, code string, shipID, unitID int) (game.LoadResult, error) {
	var res game.LoadResult
	err := s.with(gameID, code, func(rec *Record, f types.Faction) (err error) {
		res, err = game.LoadUnit(rec.game, f, shipID, unitID)
		return err
	})
	return res, err
}

func (s *Service) LoadResources(gameID, code string, shipID, amount int) (game.LoadResult, error) {
	var res game.LoadResult
	err := s.with(gameID, code, func(rec *Record, f types.Faction) (err error) {
		res, err = game.LoadResources(rec.game, f, shipID, amount)
		return err
	})
	return res, err
}

func (s *Service) Unload(gameID, code string, shipID int, req game.UnloadRequest) error {
	return s.with(gameID, code, func(rec *Record, f types.Faction) error {
		return game.Unload(rec.game, f, shipID, req)
	})
}

func (s *Service) Produce(gameID, code string, shipyardID int, items []game.ProduceItem) (int, error) {
	var queued int
	err := s.with(gameID, code, func(rec *Record, f types.Faction) (err error) {
		queued, err = game.Produce(rec.game, f, shipyardID, items)
		return err
	})
	return queued, err
}

func (s *Service) QueueResearch(gameID, code string, labID int, tech types.UnitKind, targetLevel int) error {
	return s.with(gameID, code, func(rec *Record, f types.Faction) error {
		return game.QueueResearch(rec.game, f, labID, tech, targetLevel)
	})
}

// --- Turn Flags ---

type ReadyResult struct {
	Resolved bool                   `json:"resolved"`
	Turn     int                    `json:"turn"`
	Ready    map[types.Faction]bool `json:"ready"`
	GameOver bool                   `json:"gameOver"`
	Winner   types.Faction          `json:"winner,omitempty"`
}

// Ready marks the caller ready. The call that completes the pair runs the
// resolution pass before returning, while still holding the session lock.
func (s *Service) Ready(ctx context.Context, gameID, code string) (ReadyResult, error) {
	var (
		res   ReadyResult
		views map[types.Faction]game.View
	)
	err := s.with(gameID, code, func(rec *Record, f types.Faction) error {
		both, err := game.SetReady(rec.game, f)
		if err != nil {
			return err
		}
		if both {
			start := time.Now()
			res.Resolved = game.Resolve(rec.game, rec.rng)
			s.logger.Printf("session %s resolved to turn %d in %s (%d log records)", rec.ID, rec.game.Turn, time.Since(start), len(rec.game.TurnLog))
			s.record(ctx, rec)
			views = s.project(rec)
		}
		g := rec.game
		res.Turn = g.Turn
		res.Ready = map[types.Faction]bool{types.Ithaxi: g.Ready[types.Ithaxi], types.Hive: g.Ready[types.Hive]}
		res.GameOver = g.GameOver
		res.Winner = g.Winner
		return nil
	})
	if err != nil {
		return ReadyResult{}, err
	}
	s.notify(gameID, views)
	return res, nil
}

func (s *Service) Unready(gameID, code string) error {
	return s.with(gameID, code, func(rec *Record, f types.Faction) error {
		return game.Unready(rec.game, f)
	})
}

func (s *Service) ResignIntent(gameID, code string, on bool) error {
	return s.with(gameID, code, func(rec *Record, f types.Faction) error {
		return game.SetResignIntent(rec.game, f, on)
	})
}

type ResignResult struct {
	GameOver bool          `json:"gameOver"`
	Winner   types.Faction `json:"winner,omitempty"`
}

func (s *Service) ConfirmResign(ctx context.Context, gameID, code string) (ResignResult, error) {
	var (
		res   ResignResult
		views map[types.Faction]game.View
	)
	err := s.with(gameID, code, func(rec *Record, f types.Faction) error {
		if err := game.ConfirmResign(rec.game, f); err != nil {
			return err
		}
		s.logger.Printf("session %s: %s resigned", rec.ID, f)
		s.record(ctx, rec)
		res = ResignResult{GameOver: rec.game.GameOver, Winner: rec.game.Winner}
		views = s.project(rec)
		return nil
	})
	if err != nil {
		return ResignResult{}, err
	}
	s.notify(gameID, views)
	return res, nil
}

// project builds both masked views. Must hold rec.mu.
func (s *Service) project(rec *Record) map[types.Faction]game.View {
	if s.notifier == nil {
		return nil
	}
	views := make(map[types.Faction]game.View, 2)
	for _, f := range types.Factions {
		views[f] = game.Project(rec.game, f)
	}
	return views
}

func (s *Service) notify(gameID string, views map[types.Faction]game.View) {
	if s.notifier == nil || views == nil {
		return
	}
	s.notifier.Notify(gameID, views)
}
