package game

import (
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// Log kinds attached to turn-log records.
const (
	LogTransit    = "transit"
	LogOwnership  = "ownership"
	LogAutoUnload = "autounload"
	LogCombat     = "combat"
	LogGame       = "game"
	LogResearch   = "research"
	LogProduction = "production"
	LogMining     = "mining"
	LogConversion = "conversion"
)

// Resolve runs one full resolution pass. It reports false without touching
// state when the game is already over. Callers must hold the session lock for
// the whole call.
func Resolve(g *types.Game, rng Roller) bool {
	if g.GameOver {
		return false
	}
	g.TurnLog = []types.LogEntry{}
	g.LastCombat = []string{}

	// Production is funded from stockpiles as they stood before anything moved.
	startResources := make(map[string]int, len(g.Systems))
	for _, sys := range g.Systems {
		startResources[sys.ID] = sys.Resources
	}

	// 1. Transit
	resolveTransit(g)
	// 2. Ownership
	recomputeOwnership(g)
	// 3. Hostile auto-unload
	autoUnloadHostile(g)
	// 4. Combat
	resolveAllCombat(g)
	// 5. Ownership again, casualties may have emptied a system
	recomputeOwnership(g)
	// 6. Game over
	checkGameOver(g)
	// 7. Research
	resolveResearch(g, rng)
	// 8. Production
	resolveProduction(g, startResources)
	// 9. Mine cooldown
	tickMineCooldowns(g)
	// 10. Mining & exhaustion
	resolveMining(g, rng)
	// 11. Passive income
	for _, f := range types.Factions {
		g.Treasury[f] += PassiveIncome
	}
	// 12. Advance
	g.Turn++
	for _, f := range types.Factions {
		g.Ready[f] = false
		g.ResignIntent[f] = false
	}
	return true
}

func resolveTransit(g *types.Game) {
	for _, u := range g.Units {
		if !hasRole(u, RoleTransport) || u.InTransit == "" {
			continue
		}
		if g.System(u.InTransit) == nil {
			u.InTransit = ""
			continue
		}
		u.SystemID = u.InTransit
		u.InTransit = ""
		g.AppendLog(LogTransit, u.SystemID, "[Transit %s] %s JumpShip #%d arrived", u.SystemID, u.Faction, u.ID)
	}
}

// presence counts physically present units per system and faction.
func presence(g *types.Game) map[string]map[types.Faction]int {
	out := make(map[string]map[types.Faction]int)
	for _, u := range g.Units {
		if u.SystemID == "" || !u.Faction.Valid() {
			continue
		}
		if out[u.SystemID] == nil {
			out[u.SystemID] = make(map[types.Faction]int, 2)
		}
		out[u.SystemID][u.Faction]++
	}
	return out
}

// recomputeOwnership applies the sticky ownership rule: an owner keeps a
// system while it has any unit there; a neutral system is captured only by
// sole presence.
func recomputeOwnership(g *types.Game) {
	counts := presence(g)
	for _, sys := range g.Systems {
		c := counts[sys.ID]
		next := nextOwner(sys.Owner, c[types.Ithaxi], c[types.Hive])
		if next == sys.Owner {
			continue
		}
		g.AppendLog(LogOwnership, sys.ID, "[Ownership %s] %s -> %s", sys.ID, ownerName(sys.Owner), ownerName(next))
		sys.Owner = next
	}
}

func nextOwner(current types.Faction, ithaxi, hive int) types.Faction {
	count := map[types.Faction]int{types.Ithaxi: ithaxi, types.Hive: hive}
	if current.Valid() {
		if count[current] > 0 {
			return current
		}
		if count[current.Other()] > 0 {
			return current.Other()
		}
		return ""
	}
	switch {
	case ithaxi > 0 && hive == 0:
		return types.Ithaxi
	case hive > 0 && ithaxi == 0:
		return types.Hive
	}
	return ""
}

func ownerName(f types.Faction) string {
	if f == "" {
		return "neutral"
	}
	return string(f)
}

func hasEnemyPresence(g *types.Game, systemID string, f types.Faction) bool {
	for _, u := range g.Units {
		if u.SystemID == systemID && u.Faction.Valid() && u.Faction != f {
			return true
		}
	}
	return false
}

// autoUnloadHostile empties unit cargo of transports sharing a system with
// the enemy. Resource bundles stay aboard.
func autoUnloadHostile(g *types.Game) {
	for _, ship := range g.Units {
		if !hasRole(ship, RoleTransport) || ship.SystemID == "" || ship.InTransit != "" || len(ship.Cargo) == 0 {
			continue
		}
		if !hasEnemyPresence(g, ship.SystemID, ship.Faction) {
			continue
		}

		unloaded := 0
		keep := make([]types.CargoEntry, 0, len(ship.Cargo))
		for _, entry := range ship.Cargo {
			if entry.IsResource() {
				keep = append(keep, entry)
				continue
			}
			if cu := g.Unit(entry.UnitID); cu != nil {
				placeCargo(cu, ship.SystemID)
				unloaded++
			}
		}
		ship.Cargo = keep
		if unloaded > 0 {
			g.AppendLog(LogAutoUnload, ship.SystemID, "[AutoUnload %s] JumpShip #%d in hostile system -> unloaded %d unit(s) (resources kept in cargo)", ship.SystemID, ship.ID, unloaded)
		}
	}
}

// checkGameOver ends the game once at most one faction has units anywhere.
func checkGameOver(g *types.Game) {
	if g.GameOver {
		return
	}
	remaining := make(map[types.Faction]int, 2)
	for _, u := range g.Units {
		if u.Faction.Valid() {
			remaining[u.Faction]++
		}
	}

	var alive []types.Faction
	for _, f := range types.Factions {
		if remaining[f] > 0 {
			alive = append(alive, f)
		}
	}
	switch len(alive) {
	case 1:
		g.GameOver = true
		g.Winner = alive[0]
		g.AppendLog(LogGame, "", "[Game] GAME OVER winner=%s", g.Winner)
	case 0:
		g.GameOver = true
		g.Winner = ""
		g.AppendLog(LogGame, "", "[Game] GAME OVER draw (no units remain)")
	}
}

func tickMineCooldowns(g *types.Game) {
	for _, u := range g.Units {
		if hasRole(u, RoleMining) && u.MineCooldown > 0 {
			u.MineCooldown--
		}
	}
}
