package game

import (
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// --- Rules ---

const (
	BaseTransportCapacity = 8
	BaseShipyardSpendCap  = 10
	TransportMoveRange    = 4 // Manhattan
	ConvertToShipyardCost = 16
	PassiveIncome         = 2
	ExhaustionDieSides    = 20
)

// Role is the combat/economy role a kind plays during resolution.
type Role int

const (
	RoleTransport Role = iota + 1
	RoleProduction
	RoleResearch
	RoleStriker
	RoleEscort
	RoleBlocker
	RoleMining
)

// Capability is the per-kind rule row. CargoSize 0 means the kind cannot be loaded.
type Capability struct {
	Role      Role
	Cost      int
	Hits      int
	CargoSize int
}

var capabilities = map[types.UnitKind]Capability{
	types.JumpShip: {Role: RoleTransport, Cost: 10, Hits: 6, CargoSize: 0},
	types.Shipyard: {Role: RoleProduction, Cost: 10, Hits: 6, CargoSize: 8},
	types.Lab:      {Role: RoleResearch, Cost: 3, Hits: 1, CargoSize: 1},
	types.Striker:  {Role: RoleStriker, Cost: 2, Hits: 1, CargoSize: 1},
	types.Escort:   {Role: RoleEscort, Cost: 1, Hits: 1, CargoSize: 1},
	types.Blocker:  {Role: RoleBlocker, Cost: 1, Hits: 2, CargoSize: 1},
	types.Mine:     {Role: RoleMining, Cost: 1, Hits: 1, CargoSize: 1},
}

// CapabilityOf returns the rule row for a kind. ok is false for kinds outside
// the closed set.
func CapabilityOf(kind types.UnitKind) (Capability, bool) {
	c, ok := capabilities[kind]
	return c, ok
}

// RoleOf reports the role a kind plays during resolution, or 0 for kinds
// outside the closed set.
func RoleOf(kind types.UnitKind) Role {
	return capabilities[kind].Role
}

func hasRole(u *types.Unit, role Role) bool {
	return RoleOf(u.Kind) == role
}

// Casualty priority once all blocking is spent. Blockers are only consumed
// through absorption.
var casualtyOrder = []Role{
	RoleStriker,
	RoleEscort,
	RoleTransport,
	RoleMining,
	RoleResearch,
	RoleProduction,
}

// --- Tech ---

// TechScaled returns floor(base * (1 + 0.2*level)) without float rounding.
func TechScaled(base, level int) int {
	if base <= 0 {
		return 0
	}
	if level < 0 {
		level = 0
	}
	return base * (5 + level) / 5
}

func techValue(g *types.Game, f types.Faction, tech types.UnitKind, base int) int {
	if !f.Valid() {
		return TechScaled(base, 0)
	}
	return TechScaled(base, g.TechLevel(f, tech))
}

func ShipyardSpendCap(g *types.Game, f types.Faction) int {
	return techValue(g, f, types.Shipyard, BaseShipyardSpendCap)
}

func TransportCapacity(g *types.Game, f types.Faction) int {
	return techValue(g, f, types.JumpShip, BaseTransportCapacity)
}

// ResearchDieSides is the die size rolled per effective lab for a target level.
func ResearchDieSides(targetLevel int) int {
	if targetLevel < 1 {
		targetLevel = 1
	}
	return 6 + 2*(targetLevel-1)
}

// --- Physics & Logistics ---

// Distance is the Manhattan distance between two systems on the grid.
func Distance(a, b *types.System) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CargoUsed sums the capacity occupied by a transport's cargo.
func CargoUsed(g *types.Game, ship *types.Unit) int {
	used := 0
	for _, entry := range ship.Cargo {
		if entry.IsResource() {
			if entry.Amount > 0 {
				used += entry.Amount
			}
			continue
		}
		cu := g.Unit(entry.UnitID)
		if cu == nil {
			continue
		}
		if c, ok := CapabilityOf(cu.Kind); ok {
			used += c.CargoSize
		}
	}
	return used
}

// --- Unit Factory ---

// newUnit allocates the next ID and initializes kind-specific state.
func newUnit(g *types.Game, kind types.UnitKind, f types.Faction, systemID string) *types.Unit {
	u := &types.Unit{
		ID:       g.NextUnitID,
		Kind:     kind,
		Faction:  f,
		SystemID: systemID,
	}
	g.NextUnitID++
	resetKindState(u)
	return u
}

func resetKindState(u *types.Unit) {
	c, _ := CapabilityOf(u.Kind)
	u.HitsRemaining = c.Hits
	u.Cargo = nil
	u.BuildQueue = nil
	u.MineCooldown = 0
	switch c.Role {
	case RoleTransport:
		u.Cargo = []types.CargoEntry{}
	case RoleProduction:
		u.BuildQueue = []types.BuildJob{}
	case RoleMining:
		u.MineCooldown = 1
	}
}

// placeCargo drops a carried unit into a system. Mines come off a hold primed.
func placeCargo(u *types.Unit, systemID string) {
	u.SystemID = systemID
	u.InTransit = ""
	if hasRole(u, RoleMining) {
		u.MineCooldown = 1
	}
}
