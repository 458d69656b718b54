package game

import (
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// MaxBuildQueue bounds a single shipyard's pending queue.
const MaxBuildQueue = 500

// --- Lookups ---

func requireActive(g *types.Game) error {
	if g.GameOver {
		return errGameOver
	}
	return nil
}

// ownedUnit resolves a unit the faction may command. Missing units are
// not_found, enemy units forbidden, wrong kind invalid.
func ownedUnit(g *types.Game, f types.Faction, id int, kind types.UnitKind) (*types.Unit, error) {
	u := g.Unit(id)
	if u == nil {
		if kind != 0 {
			return nil, failf(KindNotFound, "%s not found", kind)
		}
		return nil, failf(KindNotFound, "Unit not found")
	}
	if u.Faction != f {
		return nil, failf(KindForbidden, "Unit %d is not yours", id)
	}
	if kind != 0 && u.Kind != kind {
		return nil, failf(KindInvalid, "Unit %d is not a %s", id, kind)
	}
	return u, nil
}

// stationaryTransport resolves a transport that is docked in a real system.
func stationaryTransport(g *types.Game, f types.Faction, id int, verb string) (*types.Unit, *types.System, error) {
	ship, err := ownedUnit(g, f, id, types.JumpShip)
	if err != nil {
		return nil, nil, err
	}
	if ship.InTransit != "" {
		return nil, nil, failf(KindInvalidState, "Cannot %s while in transit", verb)
	}
	if ship.SystemID == "" {
		return nil, nil, failf(KindInvalidState, "JumpShip is not in a system")
	}
	sys := g.System(ship.SystemID)
	if sys == nil {
		return nil, nil, failf(KindNotFound, "System not found")
	}
	return ship, sys, nil
}

// --- Movement ---

// Move sets a transport's pending destination and returns the jump distance.
// Relocation happens at resolution.
func Move(g *types.Game, f types.Faction, unitID int, toSystemID string) (int, error) {
	if err := requireActive(g); err != nil {
		return 0, err
	}
	u, err := ownedUnit(g, f, unitID, 0)
	if err != nil {
		return 0, err
	}
	if u.Kind != types.JumpShip {
		return 0, failf(KindInvalid, "Only JumpShips can move")
	}
	dest := g.System(toSystemID)
	if dest == nil {
		return 0, failf(KindNotFound, "Destination system not found")
	}
	from := g.System(u.SystemID)
	if from == nil {
		return 0, failf(KindInvalidState, "JumpShip is not currently in a system")
	}

	dist := Distance(from, dest)
	if dist > TransportMoveRange {
		return 0, failf(KindInvalid, "Out of range: distance %d > %d", dist, TransportMoveRange)
	}
	u.InTransit = dest.ID
	return dist, nil
}

// ConvertToShipyard turns a docked transport into a production structure,
// paid from the local stockpile.
func ConvertToShipyard(g *types.Game, f types.Faction, shipID int) error {
	if err := requireActive(g); err != nil {
		return err
	}
	ship, sys, err := stationaryTransport(g, f, shipID, "convert")
	if err != nil {
		return err
	}
	if sys.Resources < ConvertToShipyardCost {
		return failf(KindCapacity, "Need %d system resources (has %d)", ConvertToShipyardCost, sys.Resources)
	}

	sys.Resources -= ConvertToShipyardCost
	// The hold is emptied into the system so nothing is stranded.
	for _, entry := range ship.Cargo {
		if entry.IsResource() {
			sys.Resources += max(entry.Amount, 0)
		} else if cu := g.Unit(entry.UnitID); cu != nil {
			placeCargo(cu, sys.ID)
		}
	}
	ship.Kind = types.Shipyard
	resetKindState(ship)
	g.AppendLog(LogConversion, sys.ID, "[Shipyard %d @ %s] CONVERSION from JumpShip cost=%d", ship.ID, sys.ID, ConvertToShipyardCost)
	return nil
}

// --- Cargo ---

// LoadResult echoes the hold after a load.
type LoadResult struct {
	Used            int `json:"used"`
	Capacity        int `json:"capacity"`
	SystemResources int `json:"systemResources,omitempty"`
}

// LoadUnit moves a co-located unit into a transport's hold.
func LoadUnit(g *types.Game, f types.Faction, shipID, unitID int) (LoadResult, error) {
	if err := requireActive(g); err != nil {
		return LoadResult{}, err
	}
	unit, err := ownedUnit(g, f, unitID, 0)
	if err != nil {
		return LoadResult{}, err
	}
	ship, _, err := stationaryTransport(g, f, shipID, "load")
	if err != nil {
		return LoadResult{}, err
	}
	if unit.SystemID == "" {
		return LoadResult{}, failf(KindInvalidState, "Unit is not on a system")
	}
	if unit.SystemID != ship.SystemID {
		return LoadResult{}, failf(KindInvalidState, "Not in same system")
	}
	c, _ := CapabilityOf(unit.Kind)
	if c.CargoSize == 0 {
		return LoadResult{}, failf(KindInvalid, "Cannot load %s into JumpShip", unit.Kind)
	}

	used := CargoUsed(g, ship)
	capacity := TransportCapacity(g, f)
	if used+c.CargoSize > capacity {
		return LoadResult{}, failf(KindCapacity, "Not enough cargo space: used %d/%d, unit needs %d", used, capacity, c.CargoSize)
	}

	ship.Cargo = append(ship.Cargo, types.CargoEntry{UnitID: unit.ID})
	unit.SystemID = ""
	unit.InTransit = ""
	return LoadResult{Used: used + c.CargoSize, Capacity: capacity}, nil
}

// LoadResources moves part of the local stockpile into a transport as one bundle.
func LoadResources(g *types.Game, f types.Faction, shipID, amount int) (LoadResult, error) {
	if err := requireActive(g); err != nil {
		return LoadResult{}, err
	}
	ship, sys, err := stationaryTransport(g, f, shipID, "load")
	if err != nil {
		return LoadResult{}, err
	}
	if amount <= 0 {
		return LoadResult{}, failf(KindInvalid, "Amount must be > 0")
	}
	if sys.Resources < amount {
		return LoadResult{}, failf(KindCapacity, "Not enough resources in system (has %d)", sys.Resources)
	}
	used := CargoUsed(g, ship)
	capacity := TransportCapacity(g, f)
	if used+amount > capacity {
		return LoadResult{}, failf(KindCapacity, "Not enough cargo space: used %d/%d, need %d", used, capacity, amount)
	}

	sys.Resources -= amount
	ship.Cargo = append(ship.Cargo, types.CargoEntry{Amount: amount})
	return LoadResult{Used: used + amount, Capacity: capacity, SystemResources: sys.Resources}, nil
}

// UnloadRequest selects what to drop. Exactly one selector is honored, in
// the order All, UnitID, ResourceIndex.
type UnloadRequest struct {
	All           bool `json:"all,omitempty"`
	UnitID        *int `json:"unitId,omitempty"`
	ResourceIndex *int `json:"resourceIndex,omitempty"`
}

// Unload returns cargo to the transport's current system.
func Unload(g *types.Game, f types.Faction, shipID int, req UnloadRequest) error {
	if err := requireActive(g); err != nil {
		return err
	}
	ship, sys, err := stationaryTransport(g, f, shipID, "unload")
	if err != nil {
		return err
	}

	switch {
	case req.All:
		for _, entry := range ship.Cargo {
			if entry.IsResource() {
				sys.Resources += max(entry.Amount, 0)
				continue
			}
			if cu := g.Unit(entry.UnitID); cu != nil {
				placeCargo(cu, sys.ID)
			}
		}
		ship.Cargo = []types.CargoEntry{}
		return nil

	case req.UnitID != nil:
		idx := -1
		for i, entry := range ship.Cargo {
			if !entry.IsResource() && entry.UnitID == *req.UnitID {
				idx = i
				break
			}
		}
		if idx < 0 {
			if g.Unit(*req.UnitID) == nil {
				return failf(KindNotFound, "Unit not found")
			}
			return failf(KindInvalidState, "That unit is not in this cargo")
		}
		ship.Cargo = append(ship.Cargo[:idx], ship.Cargo[idx+1:]...)
		if cu := g.Unit(*req.UnitID); cu != nil {
			placeCargo(cu, sys.ID)
		}
		return nil

	case req.ResourceIndex != nil:
		idx := *req.ResourceIndex
		if idx < 0 || idx >= len(ship.Cargo) {
			return failf(KindInvalid, "Invalid resourceIndex")
		}
		entry := ship.Cargo[idx]
		if !entry.IsResource() {
			return failf(KindInvalid, "Cargo entry is not a resource bundle")
		}
		sys.Resources += max(entry.Amount, 0)
		ship.Cargo = append(ship.Cargo[:idx], ship.Cargo[idx+1:]...)
		return nil
	}
	return failf(KindInvalid, "Provide unitId, resourceIndex, or all:true")
}

// --- Production & Research ---

// ProduceItem requests Count copies of a kind.
type ProduceItem struct {
	Kind  types.UnitKind `json:"type"`
	Count int            `json:"count"`
}

// Produce appends build jobs to a shipyard's queue and returns its new length.
// Jobs are costed at resolution, not here.
func Produce(g *types.Game, f types.Faction, shipyardID int, items []ProduceItem) (int, error) {
	if err := requireActive(g); err != nil {
		return 0, err
	}
	yard, err := ownedUnit(g, f, shipyardID, types.Shipyard)
	if err != nil {
		return 0, err
	}

	// Validate the whole batch before touching the queue. free only shrinks,
	// so the running total can never overflow.
	free := MaxBuildQueue - len(yard.BuildQueue)
	for _, item := range items {
		if !item.Kind.Valid() {
			return 0, failf(KindInvalid, "Unknown unit type")
		}
		if item.Count < 0 {
			return 0, failf(KindInvalid, "Count must be >= 0")
		}
		if item.Count > free {
			return 0, failf(KindCapacity, "Build queue limit is %d", MaxBuildQueue)
		}
		free -= item.Count
	}

	for _, item := range items {
		for i := 0; i < item.Count; i++ {
			yard.BuildQueue = append(yard.BuildQueue, types.BuildJob{Kind: item.Kind})
		}
	}
	return len(yard.BuildQueue), nil
}

// QueueResearch records the single research intent for the lab's
// (system, faction) pair, replacing any earlier one.
func QueueResearch(g *types.Game, f types.Faction, labID int, tech types.UnitKind, targetLevel int) error {
	if err := requireActive(g); err != nil {
		return err
	}
	lab, err := ownedUnit(g, f, labID, types.Lab)
	if err != nil {
		return err
	}
	if lab.SystemID == "" {
		return failf(KindInvalidState, "Lab is not in a system")
	}
	if !tech.Valid() {
		return failf(KindInvalid, "Invalid tech")
	}
	current := g.TechLevel(f, tech)
	if targetLevel != current+1 {
		return failf(KindInvalid, "Target must be current+1 (have L%d, want L%d)", current, targetLevel)
	}

	order := types.ResearchOrder{SystemID: lab.SystemID, Faction: f, Tech: tech, TargetLevel: targetLevel}
	if i := g.ResearchOrderIndex(lab.SystemID, f); i >= 0 {
		g.ResearchOrders[i] = order
		return nil
	}
	g.ResearchOrders = append(g.ResearchOrders, order)
	return nil
}

// --- Turn Flags ---

// SetReady marks the faction ready and reports whether both sides now are.
func SetReady(g *types.Game, f types.Faction) (bool, error) {
	if err := requireActive(g); err != nil {
		return false, err
	}
	g.Ready[f] = true
	return g.Ready[types.Ithaxi] && g.Ready[types.Hive], nil
}

func Unready(g *types.Game, f types.Faction) error {
	if err := requireActive(g); err != nil {
		return err
	}
	g.Ready[f] = false
	return nil
}

func SetResignIntent(g *types.Game, f types.Faction, on bool) error {
	if err := requireActive(g); err != nil {
		return err
	}
	g.ResignIntent[f] = on
	return nil
}

// ConfirmResign ends the game in the opponent's favor. Requires a prior
// resign intent; irreversible.
func ConfirmResign(g *types.Game, f types.Faction) error {
	if err := requireActive(g); err != nil {
		return err
	}
	if !g.ResignIntent[f] {
		return failf(KindInvalidState, "Resign intent not set")
	}
	g.GameOver = true
	g.Winner = f.Other()
	g.AppendLog(LogGame, "", "[Game] RESIGN %s resigned, winner=%s", f, g.Winner)
	return nil
}
