package game

import (
	"math/rand"
	"testing"

	"github.com/davergrounds/galactic-empires/pkg/types"
)

func intp(v int) *int { return &v }

func TestNewGameDefaults(t *testing.T) {
	g := NewGame(Setup{}, rand.New(rand.NewSource(7)))

	if g.Turn != 1 || g.Map.W != 12 || g.Map.H != 12 {
		t.Errorf("Turn=%d Map=%+v", g.Turn, g.Map)
	}
	if len(g.Systems) != 2+18 {
		t.Errorf("Expected 20 systems, got %d", len(g.Systems))
	}
	ith, hive := g.System(HomeIthaxi), g.System(HomeHive)
	if ith == nil || ith.X != 1 || ith.Y != 1 || ith.Owner != types.Ithaxi || ith.Resources != 10 || ith.Value != 6 {
		t.Errorf("Ithaxi home = %+v", ith)
	}
	if hive == nil || hive.X != 10 || hive.Y != 10 || hive.Owner != types.Hive {
		t.Errorf("Hive home = %+v", hive)
	}

	seen := map[[2]int]bool{}
	for _, sys := range g.Systems {
		k := [2]int{sys.X, sys.Y}
		if seen[k] {
			t.Errorf("Duplicate coordinates %v", k)
		}
		seen[k] = true
		if sys.X < 0 || sys.X >= g.Map.W || sys.Y < 0 || sys.Y >= g.Map.H {
			t.Errorf("%s off the map at (%d,%d)", sys.ID, sys.X, sys.Y)
		}
		if sys.Value < 1 || sys.Value > 12 {
			t.Errorf("%s value %d out of range", sys.ID, sys.Value)
		}
	}

	// JumpShip, Shipyard, Mine, Striker, Escort per side
	if len(g.Units) != 10 {
		t.Errorf("Expected 10 starting units, got %d", len(g.Units))
	}
	for _, u := range g.Units {
		home := HomeIthaxi
		if u.Faction == types.Hive {
			home = HomeHive
		}
		if u.SystemID != home {
			t.Errorf("Unit %d starts at %q", u.ID, u.SystemID)
		}
		if u.Kind == types.Mine && u.MineCooldown != 1 {
			t.Errorf("Starting mine should be primed")
		}
	}
	if g.NextUnitID != 11 {
		t.Errorf("NextUnitID = %d", g.NextUnitID)
	}
	if g.Treasury[types.Hive] != 50 {
		t.Errorf("Treasury = %v", g.Treasury)
	}
}

func TestNewGameClamps(t *testing.T) {
	g := NewGame(Setup{
		MapW:         intp(2),
		MapH:         intp(500),
		NeutralCount: intp(-4),
		PlayerRes:    intp(9000),
		Strikers:     intp(0),
		Escorts:      intp(0),
		JumpShips:    intp(0),
		Shipyards:    intp(0),
		Mines:        intp(0),
		Labs:         intp(3),
	}, rand.New(rand.NewSource(1)))

	if g.Map.W != 6 || g.Map.H != 50 {
		t.Errorf("Map = %+v", g.Map)
	}
	if len(g.Systems) != 2 {
		t.Errorf("Expected only homes, got %d systems", len(g.Systems))
	}
	if g.System(HomeHive).X != 4 || g.System(HomeHive).Y != 48 {
		t.Errorf("Hive home at (%d,%d)", g.System(HomeHive).X, g.System(HomeHive).Y)
	}
	if g.Treasury[types.Ithaxi] != 500 {
		t.Errorf("Treasury = %d", g.Treasury[types.Ithaxi])
	}
	if len(g.Units) != 6 {
		t.Errorf("Expected 3 labs per side, got %d units", len(g.Units))
	}
}

func TestNewGameDeterministic(t *testing.T) {
	a := NewGame(Setup{}, rand.New(rand.NewSource(42)))
	b := NewGame(Setup{}, rand.New(rand.NewSource(42)))
	if snapshot(t, a) != snapshot(t, b) {
		t.Errorf("Same seed produced different worlds")
	}
}

func TestNewGameCrowdedMapGivesUp(t *testing.T) {
	g := NewGame(Setup{MapW: intp(6), MapH: intp(6), NeutralCount: intp(200)}, rand.New(rand.NewSource(3)))
	if len(g.Systems) > 36 {
		t.Errorf("More systems than grid cells: %d", len(g.Systems))
	}
}
