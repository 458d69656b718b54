package game

import (
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// --- Fog of War ---

// SystemView is a system as one faction sees it. Owner, Resources and Value
// are nil outside the viewer's visibility set; coordinates are always known.
type SystemView struct {
	ID        string         `json:"id"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Visible   bool           `json:"visible"`
	Owner     *types.Faction `json:"owner"`
	Resources *int           `json:"resources"`
	Value     *int           `json:"value"`
}

// View is the masked snapshot handed to one faction.
type View struct {
	Faction      types.Faction          `json:"yourFaction"`
	Turn         int                    `json:"turn"`
	GameOver     bool                   `json:"gameOver"`
	Winner       types.Faction          `json:"winner,omitempty"`
	Ready        map[types.Faction]bool `json:"ready"`
	ResignIntent map[types.Faction]bool `json:"resignIntent"`
	Map          types.MapSize          `json:"map"`

	Treasury       int                   `json:"treasury"`
	TechLevels     types.TechLevels      `json:"techLevels"`
	ResearchOrders []types.ResearchOrder `json:"researchOrders"`

	Systems    []SystemView     `json:"systems"`
	Units      []types.Unit     `json:"units"`
	TurnLog    []types.LogEntry `json:"turnLog"`
	LastCombat []string         `json:"lastCombat"`
	Stats      types.Stats      `json:"stats"`
}

// VisibleSystems is every system where the faction has a unit physically present.
func VisibleSystems(g *types.Game, f types.Faction) map[string]bool {
	vis := make(map[string]bool)
	for _, u := range g.Units {
		if u.Faction == f && u.SystemID != "" {
			vis[u.SystemID] = true
		}
	}
	return vis
}

// Project derives the faction's masked view. The result shares no mutable
// state with g.
func Project(g *types.Game, f types.Faction) View {
	vis := VisibleSystems(g, f)

	v := View{
		Faction:        f,
		Turn:           g.Turn,
		GameOver:       g.GameOver,
		Winner:         g.Winner,
		Ready:          copyFlags(g.Ready),
		ResignIntent:   copyFlags(g.ResignIntent),
		Map:            g.Map,
		Treasury:       g.Treasury[f],
		TechLevels:     make(types.TechLevels, len(types.Kinds)),
		ResearchOrders: []types.ResearchOrder{},
		Systems:        make([]SystemView, 0, len(g.Systems)),
		Units:          []types.Unit{},
		TurnLog:        []types.LogEntry{},
		LastCombat:     []string{},
	}
	for _, k := range types.Kinds {
		v.TechLevels[k] = g.TechLevel(f, k)
	}
	for _, o := range g.ResearchOrders {
		if o.Faction == f {
			v.ResearchOrders = append(v.ResearchOrders, o)
		}
	}

	for _, sys := range g.Systems {
		sv := SystemView{ID: sys.ID, X: sys.X, Y: sys.Y}
		if vis[sys.ID] {
			sv.Visible = true
			res, val := sys.Resources, sys.Value
			sv.Resources, sv.Value = &res, &val
			if sys.Owner != "" {
				owner := sys.Owner
				sv.Owner = &owner
			}
		}
		v.Systems = append(v.Systems, sv)
	}

	for _, u := range g.Units {
		switch {
		case u.Faction == f:
			v.Units = append(v.Units, copyUnit(u))
		case u.SystemID != "" && vis[u.SystemID]:
			// Enemy holds, queues and destinations stay hidden.
			v.Units = append(v.Units, types.Unit{
				ID:            u.ID,
				Kind:          u.Kind,
				Faction:       u.Faction,
				SystemID:      u.SystemID,
				HitsRemaining: u.HitsRemaining,
				MineCooldown:  u.MineCooldown,
			})
		}
	}

	for _, entry := range g.TurnLog {
		if entry.SystemID == "" || vis[entry.SystemID] {
			v.TurnLog = append(v.TurnLog, entry)
		}
	}
	for _, id := range g.LastCombat {
		if vis[id] {
			v.LastCombat = append(v.LastCombat, id)
		}
	}

	v.Stats = projectStats(g, f)
	return v
}

// projectStats reveals only the viewer's own tallies until the game ends.
func projectStats(g *types.Game, f types.Faction) types.Stats {
	out := types.NewStats()
	for _, side := range types.Factions {
		if side != f && !g.GameOver {
			continue
		}
		out.Mined[side] = g.Stats.Mined[side]
		for k, n := range g.Stats.Built[side] {
			out.Built[side][k] = n
		}
		for k, n := range g.Stats.Destroyed[side] {
			out.Destroyed[side][k] = n
		}
	}
	return out
}

func copyFlags(in map[types.Faction]bool) map[types.Faction]bool {
	out := make(map[types.Faction]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyUnit(u *types.Unit) types.Unit {
	out := *u
	if u.Cargo != nil {
		out.Cargo = append([]types.CargoEntry{}, u.Cargo...)
	}
	if u.BuildQueue != nil {
		out.BuildQueue = append([]types.BuildJob{}, u.BuildQueue...)
	}
	return out
}
