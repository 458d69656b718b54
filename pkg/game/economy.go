package game

import (
	"fmt"
	"strings"

	"github.com/davergrounds/galactic-empires/pkg/types"
)

// --- Research ---

type labGroup struct {
	systemID string
	faction  types.Faction
	labs     int
}

// resolveResearch rolls each (system, faction) lab group against its pending
// order. Stale orders are logged and dropped; failed rolls stay queued.
func resolveResearch(g *types.Game, rng Roller) {
	var groups []*labGroup
	index := make(map[string]*labGroup)
	for _, u := range g.Units {
		if !hasRole(u, RoleResearch) || u.SystemID == "" || !u.Faction.Valid() {
			continue
		}
		key := u.SystemID + "|" + string(u.Faction)
		grp, ok := index[key]
		if !ok {
			grp = &labGroup{systemID: u.SystemID, faction: u.Faction}
			index[key] = grp
			groups = append(groups, grp)
		}
		grp.labs++
	}

	drop := make(map[int]bool)
	for _, grp := range groups {
		idx := g.ResearchOrderIndex(grp.systemID, grp.faction)
		if idx < 0 {
			continue
		}
		order := g.ResearchOrders[idx]
		current := g.TechLevel(grp.faction, order.Tech)
		if !order.Tech.Valid() || order.TargetLevel != current+1 {
			g.AppendLog(LogResearch, grp.systemID, "[Research %s] %s invalid target (have L%d, asked L%d) -> ignored",
				grp.systemID, grp.faction, current, order.TargetLevel)
			drop[idx] = true
			continue
		}

		effective := techValue(g, grp.faction, types.Lab, grp.labs)
		sides := ResearchDieSides(order.TargetLevel)
		rolls := make([]string, 0, effective)
		success := false
		for i := 0; i < effective; i++ {
			r := rollDie(rng, sides)
			rolls = append(rolls, fmt.Sprint(r))
			if r == 1 {
				success = true
			}
		}

		outcome := "failed"
		if success {
			g.TechLevels[grp.faction][order.Tech] = order.TargetLevel
			drop[idx] = true
			outcome = "SUCCESS"
		}
		g.AppendLog(LogResearch, grp.systemID, "[Research %s] %s %s %s -> L%d | labs=%d eff=%d roll=d%d %s",
			grp.systemID, grp.faction, outcome, order.Tech, order.TargetLevel, grp.labs, effective, sides, strings.Join(rolls, ","))
	}

	if len(drop) == 0 {
		return
	}
	kept := g.ResearchOrders[:0]
	for i, o := range g.ResearchOrders {
		if !drop[i] {
			kept = append(kept, o)
		}
	}
	g.ResearchOrders = kept
}

// --- Production ---

// resolveProduction pops each shipyard's queue front-to-back while both the
// system's pre-turn stockpile and the spend cap cover the head. The first
// unaffordable job blocks the rest.
func resolveProduction(g *types.Game, available map[string]int) {
	yards := make([]*types.Unit, 0)
	for _, u := range g.Units {
		if hasRole(u, RoleProduction) && u.SystemID != "" && len(u.BuildQueue) > 0 {
			yards = append(yards, u)
		}
	}

	for _, yard := range yards {
		sys := g.System(yard.SystemID)
		if sys == nil {
			continue
		}
		budget := available[sys.ID]
		spendLeft := ShipyardSpendCap(g, yard.Faction)
		spent, built := 0, 0

		for len(yard.BuildQueue) > 0 {
			job := yard.BuildQueue[0]
			c, ok := CapabilityOf(job.Kind)
			if !ok {
				yard.BuildQueue = yard.BuildQueue[1:]
				continue
			}
			if c.Cost > spendLeft || c.Cost > budget {
				break
			}
			budget -= c.Cost
			spendLeft -= c.Cost
			spent += c.Cost

			g.Units = append(g.Units, newUnit(g, job.Kind, yard.Faction, sys.ID))
			if yard.Faction.Valid() {
				g.Stats.Built[yard.Faction][job.Kind]++
			}
			yard.BuildQueue = yard.BuildQueue[1:]
			built++
		}
		if len(yard.BuildQueue) == 0 {
			yard.BuildQueue = []types.BuildJob{}
		}

		if spent > 0 {
			sys.Resources = max(0, sys.Resources-spent)
		}
		available[sys.ID] = budget

		g.AppendLog(LogProduction, sys.ID, "[Shipyard %d @ %s] built=%d, spent=%d, queueLeft=%d",
			yard.ID, sys.ID, built, spent, len(yard.BuildQueue))
	}
}

// --- Mining ---

// resolveMining credits each system with tech-scaled output from its ready
// mines, capped at the system's value, then rolls for exhaustion.
func resolveMining(g *types.Game, rng Roller) {
	for _, sys := range g.Systems {
		ready := 0
		for _, u := range g.Units {
			if hasRole(u, RoleMining) && u.SystemID == sys.ID && u.MineCooldown <= 0 {
				ready++
			}
		}
		operating := min(ready, max(0, sys.Value))
		if operating == 0 {
			continue
		}

		produced := techValue(g, sys.Owner, types.Mine, operating)
		sys.Resources += produced
		if sys.Owner.Valid() {
			g.Stats.Mined[sys.Owner] += produced
		}

		roll := rollDie(rng, ExhaustionDieSides)
		exhausted := produced > roll
		if exhausted && sys.Value > 0 {
			sys.Value--
		}
		verdict := "ok"
		if exhausted {
			verdict = "EXHAUSTED (value-1)"
		}
		g.AppendLog(LogMining, sys.ID, "[Mining %s] mines=%d, produced=%d, roll=d20(%d) => %s (value=%d)",
			sys.ID, operating, produced, roll, verdict, sys.Value)
	}
}
