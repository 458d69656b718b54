package game

import (
	"fmt"
	"strings"

	"github.com/davergrounds/galactic-empires/pkg/types"
)

// CombatSide is one faction's ledger for a single system's exchange.
type CombatSide struct {
	Faction             types.Faction
	OutgoingHits        int
	IncomingHits        int
	CancelledByEscorts  int
	CancelledByBlockers int
	BlockersDestroyed   int
	AppliedHits         int
	Destroyed           []int
}

// CombatResult is the outcome of one system's exchange.
type CombatResult struct {
	SystemID string
	Sides    [2]CombatSide
}

func countRole(units []*types.Unit, f types.Faction, role Role) int {
	n := 0
	for _, u := range units {
		if u.Faction == f && hasRole(u, role) {
			n++
		}
	}
	return n
}

// outgoingHits is two per tech-scaled striker.
func outgoingHits(g *types.Game, units []*types.Unit, f types.Faction) int {
	return 2 * techValue(g, f, types.Striker, countRole(units, f, RoleStriker))
}

// absorb runs the two blocking stages and the casualty priority against
// units, which must be the defender's pre-combat roster sorted by ID. It
// never mutates the world.
func absorb(g *types.Game, units []*types.Unit, f types.Faction, incoming int) CombatSide {
	side := CombatSide{Faction: f, IncomingHits: max(incoming, 0)}
	remaining := side.IncomingHits

	escortCap := techValue(g, f, types.Escort, countRole(units, f, RoleEscort))
	side.CancelledByEscorts = min(remaining, escortCap)
	remaining -= side.CancelledByEscorts

	blockers := countRole(units, f, RoleBlocker)
	blockerCap := 2 * techValue(g, f, types.Blocker, blockers)
	side.CancelledByBlockers = min(remaining, blockerCap)
	remaining -= side.CancelledByBlockers
	if side.CancelledByBlockers > 0 {
		side.BlockersDestroyed = min(blockers, (side.CancelledByBlockers+1)/2)
	}
	side.AppliedHits = remaining

	take := func(role Role, n int) int {
		taken := 0
		for _, u := range units {
			if taken >= n {
				break
			}
			if u.Faction == f && hasRole(u, role) {
				side.Destroyed = append(side.Destroyed, u.ID)
				taken++
			}
		}
		return taken
	}

	take(RoleBlocker, side.BlockersDestroyed)
	for _, role := range casualtyOrder {
		if remaining <= 0 {
			break
		}
		remaining -= take(role, remaining)
	}
	return side
}

// ResolveCombat computes the exchange in one system from pre-combat counts on
// both sides. It is deterministic and does not modify g. ok is false when
// fewer than two factions are present.
func ResolveCombat(g *types.Game, systemID string) (CombatResult, bool) {
	units := g.UnitsAt(systemID)
	a, b := types.Ithaxi, types.Hive
	if countFaction(units, a) == 0 || countFaction(units, b) == 0 {
		return CombatResult{}, false
	}

	hitsA := outgoingHits(g, units, a)
	hitsB := outgoingHits(g, units, b)

	sideA := absorb(g, units, a, hitsB)
	sideA.OutgoingHits = hitsA
	sideB := absorb(g, units, b, hitsA)
	sideB.OutgoingHits = hitsB

	return CombatResult{SystemID: systemID, Sides: [2]CombatSide{sideA, sideB}}, true
}

func countFaction(units []*types.Unit, f types.Faction) int {
	n := 0
	for _, u := range units {
		if u.Faction == f {
			n++
		}
	}
	return n
}

func resolveAllCombat(g *types.Game) {
	for _, sys := range g.Systems {
		res, ok := ResolveCombat(g, sys.ID)
		if !ok {
			continue
		}
		g.LastCombat = append(g.LastCombat, sys.ID)

		dead := make(map[int]bool)
		for i, side := range res.Sides {
			attacker := res.Sides[1-i].Faction
			for _, id := range side.Destroyed {
				u := g.Unit(id)
				if u == nil {
					continue
				}
				dead[id] = true
				g.Stats.Destroyed[attacker][u.Kind]++
				// Anything still aboard a destroyed transport goes down with it.
				for _, entry := range u.Cargo {
					if entry.IsResource() {
						continue
					}
					if cu := g.Unit(entry.UnitID); cu != nil && !dead[cu.ID] {
						dead[cu.ID] = true
						g.Stats.Destroyed[attacker][cu.Kind]++
					}
				}
			}
		}
		g.RemoveUnits(dead)

		a, b := res.Sides[0], res.Sides[1]
		var all []int
		all = append(all, a.Destroyed...)
		all = append(all, b.Destroyed...)
		g.AppendLog(LogCombat, sys.ID, "[Combat %s] factions=%s vs %s | hits: %s:%d %s:%d | destroyed: %s",
			sys.ID, a.Faction, b.Faction, a.Faction, a.OutgoingHits, b.Faction, b.OutgoingHits, joinIDs(all))
		for _, side := range res.Sides {
			g.AppendLog(LogCombat, sys.ID, "  - %s took %d hits, blocked by escorts=%d, blockers=%d (blockersDestroyed=%d), applied=%d, destroyed=%s",
				side.Faction, side.IncomingHits, side.CancelledByEscorts, side.CancelledByBlockers, side.BlockersDestroyed, side.AppliedHits, joinIDs(side.Destroyed))
		}
	}
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
