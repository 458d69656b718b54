package game

import (
	"fmt"

	"github.com/davergrounds/galactic-empires/pkg/types"
)

// Roller is the randomness source for setup and resolution. *rand.Rand satisfies it.
type Roller interface {
	Intn(n int) int
}

func rollDie(r Roller, sides int) int {
	if sides < 2 {
		sides = 2
	}
	return r.Intn(sides) + 1
}

func randomInt(r Roller, min, max int) int {
	return r.Intn(max-min+1) + min
}

// --- World Gen ---

const (
	HomeIthaxi = "ITH-HOME"
	HomeHive   = "HIVE-HOME"
	homeValue  = 6
)

// Setup is the match configuration. Nil fields take their defaults; every
// value is clamped to its bounds.
type Setup struct {
	MapW         *int `json:"mapW,omitempty"`
	MapH         *int `json:"mapH,omitempty"`
	NeutralCount *int `json:"neutralCount,omitempty"`
	HomeSysRes   *int `json:"homeSysRes,omitempty"`
	PlayerRes    *int `json:"playerRes,omitempty"`

	JumpShips *int `json:"uJumpShip,omitempty"`
	Shipyards *int `json:"uShipyard,omitempty"`
	Mines     *int `json:"uMine,omitempty"`
	Labs      *int `json:"uLab,omitempty"`
	Strikers  *int `json:"uStriker,omitempty"`
	Escorts   *int `json:"uEscort,omitempty"`
	Blockers  *int `json:"uBlocker,omitempty"`
}

func clampOr(v *int, def, min, max int) int {
	if v == nil {
		return def
	}
	switch {
	case *v < min:
		return min
	case *v > max:
		return max
	}
	return *v
}

// startingUnits returns per-kind counts in creation order.
func (s Setup) startingUnits() []struct {
	Kind  types.UnitKind
	Count int
} {
	return []struct {
		Kind  types.UnitKind
		Count int
	}{
		{types.JumpShip, clampOr(s.JumpShips, 1, 0, 50)},
		{types.Shipyard, clampOr(s.Shipyards, 1, 0, 50)},
		{types.Mine, clampOr(s.Mines, 1, 0, 200)},
		{types.Lab, clampOr(s.Labs, 0, 0, 50)},
		{types.Striker, clampOr(s.Strikers, 1, 0, 200)},
		{types.Escort, clampOr(s.Escorts, 1, 0, 200)},
		{types.Blocker, clampOr(s.Blockers, 0, 0, 200)},
	}
}

// NewGame generates a fresh match: two pre-owned home systems in opposite
// corners, randomly placed neutral systems, and each faction's starting units
// at its home.
func NewGame(setup Setup, rng Roller) *types.Game {
	mapW := clampOr(setup.MapW, 12, 6, 50)
	mapH := clampOr(setup.MapH, 12, 6, 50)
	neutralCount := clampOr(setup.NeutralCount, 18, 0, 200)
	homeRes := clampOr(setup.HomeSysRes, 10, 0, 500)
	playerRes := clampOr(setup.PlayerRes, 50, 0, 500)

	g := &types.Game{
		Turn:           1,
		NextUnitID:     1,
		Map:            types.MapSize{W: mapW, H: mapH},
		Ready:          map[types.Faction]bool{types.Ithaxi: false, types.Hive: false},
		ResignIntent:   map[types.Faction]bool{types.Ithaxi: false, types.Hive: false},
		Treasury:       map[types.Faction]int{types.Ithaxi: playerRes, types.Hive: playerRes},
		TechLevels:     make(map[types.Faction]types.TechLevels),
		ResearchOrders: []types.ResearchOrder{},
		TurnLog:        []types.LogEntry{},
		LastCombat:     []string{},
		Stats:          types.NewStats(),
	}
	for _, f := range types.Factions {
		levels := make(types.TechLevels, len(types.Kinds))
		for _, k := range types.Kinds {
			levels[k] = 0
		}
		g.TechLevels[f] = levels
	}

	used := make(map[[2]int]bool)
	reserve := func(x, y int) bool {
		k := [2]int{x, y}
		if used[k] {
			return false
		}
		used[k] = true
		return true
	}

	ith := &types.System{ID: HomeIthaxi, X: 1, Y: 1, Owner: types.Ithaxi, Value: homeValue, Resources: homeRes}
	hive := &types.System{ID: HomeHive, X: mapW - 2, Y: mapH - 2, Owner: types.Hive, Value: homeValue, Resources: homeRes}
	reserve(ith.X, ith.Y)
	reserve(hive.X, hive.Y)
	g.Systems = []*types.System{ith, hive}

	// 1. Neutral systems, bounded retries on collisions
	placed, attempts := 0, 0
	for placed < neutralCount && attempts < neutralCount*50 {
		attempts++
		x := randomInt(rng, 0, mapW-1)
		y := randomInt(rng, 0, mapH-1)
		if !reserve(x, y) {
			continue
		}
		placed++
		g.Systems = append(g.Systems, &types.System{
			ID:    fmt.Sprintf("SYS-%02d", placed),
			X:     x,
			Y:     y,
			Value: randomInt(rng, 1, 12),
		})
	}

	// 2. Starting forces
	homes := map[types.Faction]string{types.Ithaxi: HomeIthaxi, types.Hive: HomeHive}
	for _, f := range types.Factions {
		for _, start := range setup.startingUnits() {
			for i := 0; i < start.Count; i++ {
				g.Units = append(g.Units, newUnit(g, start.Kind, f, homes[f]))
			}
		}
	}
	return g
}
