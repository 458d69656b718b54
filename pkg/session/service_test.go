package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/ledger"
	"github.com/davergrounds/galactic-empires/pkg/types"
	_ "modernc.org/sqlite"
)

var quiet = log.New(io.Discard, "", 0)

type captureNotifier struct {
	mu    sync.Mutex
	calls []map[types.Faction]game.View
}

func (c *captureNotifier) Notify(_ string, views map[types.Faction]game.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, views)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestService(t *testing.T, cfg Config) (*Service, Created) {
	t.Helper()
	cfg.Logger = quiet
	if cfg.Seed == 0 {
		cfg.Seed = 99
	}
	svc := NewService(cfg)
	created, err := svc.Create(context.Background(), game.Setup{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc, created
}

func TestAuthenticate(t *testing.T) {
	svc, c := newTestService(t, Config{})

	for _, f := range types.Factions {
		got, err := svc.Authenticate(c.GameID, c.Codes[f])
		if err != nil || got != f {
			t.Errorf("Authenticate(%s) = %q, %v", f, got, err)
		}
	}
	if _, err := svc.Authenticate("missing", c.Codes[types.Hive]); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("Unknown session: got %v", err)
	}
	if _, err := svc.Authenticate(c.GameID, "nope"); !errors.Is(err, game.ErrForbidden) {
		t.Errorf("Bad code: got %v", err)
	}
	if _, err := svc.State(c.GameID, ""); !errors.Is(err, game.ErrForbidden) {
		t.Errorf("Empty code: got %v", err)
	}
}

func TestStateIsMasked(t *testing.T) {
	svc, c := newTestService(t, Config{})
	v, err := svc.State(c.GameID, c.Codes[types.Hive])
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if v.Faction != types.Hive {
		t.Errorf("Faction = %q", v.Faction)
	}
	for _, u := range v.Units {
		if u.Faction != types.Hive {
			t.Errorf("Ithaxi unit %d visible at start", u.ID)
		}
	}
}

func TestReadyResolvesOnce(t *testing.T) {
	note := &captureNotifier{}
	svc, c := newTestService(t, Config{Notifier: note})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for i := 0; i < 8; i++ {
		for _, f := range types.Factions {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				res, err := svc.Ready(ctx, c.GameID, code)
				if err != nil {
					t.Errorf("Ready: %v", err)
					return
				}
				if res.Resolved {
					mu.Lock()
					resolved++
					mu.Unlock()
				}
			}(c.Codes[f])
		}
	}
	wg.Wait()

	st, err := svc.Status(c.GameID, c.Codes[types.Ithaxi])
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Turn != 1+resolved {
		t.Errorf("Turn %d after %d resolutions", st.Turn, resolved)
	}
	if resolved == 0 {
		t.Errorf("Expected at least one resolution")
	}
	if note.count() != resolved {
		t.Errorf("Notified %d times for %d resolutions", note.count(), resolved)
	}
}

func TestReadyPairResolves(t *testing.T) {
	note := &captureNotifier{}
	svc, c := newTestService(t, Config{Notifier: note})
	ctx := context.Background()

	res, _ := svc.Ready(ctx, c.GameID, c.Codes[types.Ithaxi])
	if res.Resolved || !res.Ready[types.Ithaxi] {
		t.Fatalf("First ready = %+v", res)
	}
	if err := svc.Unready(c.GameID, c.Codes[types.Ithaxi]); err != nil {
		t.Fatalf("Unready: %v", err)
	}
	res, _ = svc.Ready(ctx, c.GameID, c.Codes[types.Hive])
	if res.Resolved {
		t.Fatalf("Unready should prevent resolution")
	}
	res, _ = svc.Ready(ctx, c.GameID, c.Codes[types.Ithaxi])
	if !res.Resolved || res.Turn != 2 || res.Ready[types.Hive] {
		t.Errorf("Second ready = %+v", res)
	}

	views := note.calls[0]
	if views[types.Hive].Faction != types.Hive || views[types.Ithaxi].Faction != types.Ithaxi {
		t.Errorf("Each faction should get its own view")
	}
}

func TestOrdersThroughService(t *testing.T) {
	svc, c := newTestService(t, Config{})
	code := c.Codes[types.Ithaxi]
	v, _ := svc.State(c.GameID, code)

	var shipID, yardID int
	for _, u := range v.Units {
		switch u.Kind {
		case types.JumpShip:
			shipID = u.ID
		case types.Shipyard:
			yardID = u.ID
		}
	}

	if _, err := svc.Move(c.GameID, c.Codes[types.Hive], shipID, "ITH-HOME"); !errors.Is(err, game.ErrForbidden) {
		t.Errorf("Hive moving ithaxi ship: got %v", err)
	}
	n, err := svc.Produce(c.GameID, code, yardID, []game.ProduceItem{{Kind: types.Striker, Count: 2}})
	if err != nil || n != 2 {
		t.Errorf("Produce = %d, %v", n, err)
	}
	if _, err := svc.LoadResources(c.GameID, code, shipID, 4); err != nil {
		t.Errorf("LoadResources: %v", err)
	}
	if err := svc.Unload(c.GameID, code, shipID, game.UnloadRequest{All: true}); err != nil {
		t.Errorf("Unload: %v", err)
	}
}

func TestResign(t *testing.T) {
	note := &captureNotifier{}
	svc, c := newTestService(t, Config{Notifier: note})
	code := c.Codes[types.Hive]

	if _, err := svc.ConfirmResign(context.Background(), c.GameID, code); !errors.Is(err, game.ErrInvalidState) {
		t.Errorf("Resign without intent: got %v", err)
	}
	svc.ResignIntent(c.GameID, code, true)
	res, err := svc.ConfirmResign(context.Background(), c.GameID, code)
	if err != nil || !res.GameOver || res.Winner != types.Ithaxi {
		t.Fatalf("ConfirmResign = %+v, %v", res, err)
	}
	if note.count() != 1 {
		t.Errorf("Resignation should notify")
	}
	if _, err := svc.Ready(context.Background(), c.GameID, code); !errors.Is(err, game.ErrInvalidState) {
		t.Errorf("Ready after game over: got %v", err)
	}
}

func TestCapacityAndEviction(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(Config{Repo: NewMemoryStore(2), Logger: quiet, Seed: 5, TTL: time.Hour, Now: clock})
	ctx := context.Background()

	first, _ := svc.Create(ctx, game.Setup{})
	if _, err := svc.Create(ctx, game.Setup{}); err != nil {
		t.Fatalf("Second create: %v", err)
	}
	if _, err := svc.Create(ctx, game.Setup{}); !errors.Is(err, game.ErrCapacity) {
		t.Fatalf("Expected capacity error, got %v", err)
	}

	now = now.Add(45 * time.Minute)
	svc.Authenticate(first.GameID, first.Codes[types.Hive])
	now = now.Add(30 * time.Minute)

	evicted := svc.Evict(ctx)
	if len(evicted) != 1 || evicted[0] == first.GameID {
		t.Errorf("Evicted %v, want only the idle session", evicted)
	}
	if got := svc.Sessions(); len(got) != 1 || got[0] != first.GameID {
		t.Errorf("Sessions = %v", got)
	}
}

func TestSeededSessionsReproduce(t *testing.T) {
	a, ca := newTestService(t, Config{Seed: 1234})
	b, cb := newTestService(t, Config{Seed: 1234})

	va, _ := a.State(ca.GameID, ca.Codes[types.Ithaxi])
	vb, _ := b.State(cb.GameID, cb.Codes[types.Ithaxi])
	if len(va.Systems) != len(vb.Systems) {
		t.Fatalf("System counts differ")
	}
	for i := range va.Systems {
		if va.Systems[i].X != vb.Systems[i].X || va.Systems[i].Y != vb.Systems[i].Y {
			t.Errorf("System %d differs", i)
		}
	}
}

func TestHistoryFromLedger(t *testing.T) {
	l, err := ledger.Open("sqlite", ":memory:", quiet)
	if err != nil {
		t.Fatalf("Open ledger: %v", err)
	}
	defer l.Close()
	svc, c := newTestService(t, Config{Ledger: l})
	ctx := context.Background()

	svc.Ready(ctx, c.GameID, c.Codes[types.Ithaxi])
	svc.Ready(ctx, c.GameID, c.Codes[types.Hive])

	h, err := svc.History(ctx, c.GameID, c.Codes[types.Hive])
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Entries) != 2 || !h.Intact {
		t.Errorf("History = %+v", h)
	}
	if _, err := svc.History(ctx, c.GameID, "bad"); !errors.Is(err, game.ErrForbidden) {
		t.Errorf("History with bad code: got %v", err)
	}
}

func TestLedgerSurvivesCancelledRequest(t *testing.T) {
	l, err := ledger.Open("sqlite", ":memory:", quiet)
	if err != nil {
		t.Fatalf("Open ledger: %v", err)
	}
	defer l.Close()
	svc, c := newTestService(t, Config{Ledger: l})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Ready(ctx, c.GameID, c.Codes[types.Ithaxi])
	res, err := svc.Ready(ctx, c.GameID, c.Codes[types.Hive])
	if err != nil || !res.Resolved {
		t.Fatalf("Ready = %+v, %v", res, err)
	}

	h, err := svc.History(context.Background(), c.GameID, c.Codes[types.Hive])
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Entries) != 2 || h.Entries[1].Turn != 2 {
		t.Errorf("Turn 2 missing from chain after cancelled request: %+v", h.Entries)
	}
}

func TestReplayAndResignRecorded(t *testing.T) {
	l, err := ledger.Open("sqlite", ":memory:", quiet)
	if err != nil {
		t.Fatalf("Open ledger: %v", err)
	}
	defer l.Close()
	svc, c := newTestService(t, Config{Ledger: l})
	ctx := context.Background()
	code := c.Codes[types.Hive]

	v, err := svc.Replay(ctx, c.GameID, code, 1)
	if err != nil || v.Turn != 1 || v.Faction != types.Hive || v.GameOver {
		t.Fatalf("Replay turn 1 = %+v, %v", v, err)
	}
	for _, u := range v.Units {
		if u.Faction != types.Hive {
			t.Errorf("Replay leaks enemy unit %d", u.ID)
		}
	}
	if _, err := svc.Replay(ctx, c.GameID, code, 7); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("Replay of unrecorded turn: got %v", err)
	}
	if _, err := svc.Replay(ctx, c.GameID, "bad", 1); !errors.Is(err, game.ErrForbidden) {
		t.Errorf("Replay with bad code: got %v", err)
	}

	svc.ResignIntent(c.GameID, code, true)
	if _, err := svc.ConfirmResign(ctx, c.GameID, code); err != nil {
		t.Fatalf("ConfirmResign: %v", err)
	}
	v, err = svc.Replay(ctx, c.GameID, code, 1)
	if err != nil || !v.GameOver || v.Winner != types.Ithaxi {
		t.Errorf("Final state not recorded: %+v, %v", v, err)
	}
	h, _ := svc.History(ctx, c.GameID, code)
	if !h.Intact {
		t.Errorf("Chain broken after resignation: %+v", h)
	}
}
