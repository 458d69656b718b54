package types

import (
	"fmt"
	"sort"
)

// --- Factions ---

type Faction string

const (
	Ithaxi Faction = "ithaxi"
	Hive   Faction = "hive"
)

// Factions lists both sides in a stable order.
var Factions = []Faction{Ithaxi, Hive}

func (f Faction) Valid() bool { return f == Ithaxi || f == Hive }

// Other returns the opposing faction.
func (f Faction) Other() Faction {
	if f == Ithaxi {
		return Hive
	}
	return Ithaxi
}

// --- Unit Kinds ---

// UnitKind is the closed set of unit variants. Per-kind behavior lives in the
// capability table in pkg/game.
type UnitKind uint8

const (
	JumpShip UnitKind = iota + 1
	Shipyard
	Lab
	Striker
	Escort
	Blocker
	Mine
)

// Kinds lists every unit kind (and tech track) in display order.
var Kinds = []UnitKind{Striker, Escort, Blocker, Mine, Shipyard, JumpShip, Lab}

var kindNames = map[UnitKind]string{
	JumpShip: "JumpShip",
	Shipyard: "Shipyard",
	Lab:      "Lab",
	Striker:  "Striker",
	Escort:   "Escort",
	Blocker:  "Blocker",
	Mine:     "Mine",
}

func (k UnitKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UnitKind(%d)", uint8(k))
}

func (k UnitKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseUnitKind maps a wire name to a kind.
func ParseUnitKind(name string) (UnitKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

func (k UnitKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown unit kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *UnitKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseUnitKind(string(b))
	if !ok {
		return fmt.Errorf("unknown unit kind %q", string(b))
	}
	*k = parsed
	return nil
}

// --- Geographic & Political ---

type MapSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type System struct {
	ID        string  `json:"id"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Owner     Faction `json:"owner,omitempty"` // empty = neutral
	Value     int     `json:"value"`           // depletable mining potential
	Resources int     `json:"resources"`       // local stockpile
}

// --- Units ---

// CargoEntry is either a carried unit (UnitID > 0) or a resource bundle.
type CargoEntry struct {
	UnitID int `json:"unitId,omitempty"`
	Amount int `json:"amount,omitempty"`
}

func (c CargoEntry) IsResource() bool { return c.UnitID == 0 }

type BuildJob struct {
	Kind UnitKind `json:"type"`
}

type Unit struct {
	ID            int      `json:"id"`
	Kind          UnitKind `json:"type"`
	Faction       Faction  `json:"faction"`
	SystemID      string   `json:"systemId,omitempty"`  // empty while carried as cargo
	InTransit     string   `json:"inTransit,omitempty"` // pending destination, applied at resolution
	HitsRemaining int      `json:"hitsRemaining"`

	// Kind-specific state
	Cargo        []CargoEntry `json:"cargo,omitempty"`
	BuildQueue   []BuildJob   `json:"buildQueue,omitempty"`
	MineCooldown int          `json:"mineCooldown,omitempty"`
}

// --- Research ---

// TechLevels holds one level per tech track.
type TechLevels map[UnitKind]int

type ResearchOrder struct {
	SystemID    string   `json:"systemId"`
	Faction     Faction  `json:"faction"`
	Tech        UnitKind `json:"tech"`
	TargetLevel int      `json:"targetLevel"`
}

// --- Turn Log ---

// LogEntry is one turn-log record. SystemID scopes it for fog filtering; an
// empty SystemID means the record is visible to both factions.
type LogEntry struct {
	Turn     int    `json:"turn"`
	Kind     string `json:"kind"`
	SystemID string `json:"systemId,omitempty"`
	Text     string `json:"text"`
}

// --- Stats ---

type Stats struct {
	Mined     map[Faction]int              `json:"mined"`
	Built     map[Faction]map[UnitKind]int `json:"built"`
	Destroyed map[Faction]map[UnitKind]int `json:"destroyed"` // keyed by attacking faction
}

func NewStats() Stats {
	s := Stats{
		Mined:     make(map[Faction]int),
		Built:     make(map[Faction]map[UnitKind]int),
		Destroyed: make(map[Faction]map[UnitKind]int),
	}
	for _, f := range Factions {
		s.Mined[f] = 0
		s.Built[f] = make(map[UnitKind]int)
		s.Destroyed[f] = make(map[UnitKind]int)
	}
	return s
}

// --- Game Session State ---

type Game struct {
	Turn       int     `json:"turn"`
	NextUnitID int     `json:"nextUnitId"`
	Map        MapSize `json:"map"`

	Ready        map[Faction]bool `json:"ready"`
	ResignIntent map[Faction]bool `json:"resignIntent"`
	GameOver     bool             `json:"gameOver"`
	Winner       Faction          `json:"winner,omitempty"` // empty with GameOver = draw

	Treasury       map[Faction]int        `json:"treasury"`
	TechLevels     map[Faction]TechLevels `json:"techLevels"`
	ResearchOrders []ResearchOrder        `json:"researchOrders"`

	Systems []*System `json:"systems"`
	Units   []*Unit   `json:"units"`

	TurnLog    []LogEntry `json:"turnLog"`
	LastCombat []string   `json:"lastCombat"`
	Stats      Stats      `json:"stats"`
}

func (g *Game) System(id string) *System {
	for _, s := range g.Systems {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (g *Game) Unit(id int) *Unit {
	for _, u := range g.Units {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// UnitsAt returns the units physically present in a system (cargo excluded),
// ordered by ID.
func (g *Game) UnitsAt(systemID string) []*Unit {
	var out []*Unit
	for _, u := range g.Units {
		if u.SystemID == systemID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveUnits drops every unit whose ID is in the set.
func (g *Game) RemoveUnits(ids map[int]bool) {
	if len(ids) == 0 {
		return
	}
	kept := g.Units[:0]
	for _, u := range g.Units {
		if !ids[u.ID] {
			kept = append(kept, u)
		}
	}
	for i := len(kept); i < len(g.Units); i++ {
		g.Units[i] = nil
	}
	g.Units = kept
}

func (g *Game) TechLevel(f Faction, tech UnitKind) int {
	return g.TechLevels[f][tech]
}

// ResearchOrderIndex returns the pending order index for a (system, faction) pair, or -1.
func (g *Game) ResearchOrderIndex(systemID string, f Faction) int {
	for i, o := range g.ResearchOrders {
		if o.SystemID == systemID && o.Faction == f {
			return i
		}
	}
	return -1
}

func (g *Game) AppendLog(kind, systemID, format string, args ...any) {
	g.TurnLog = append(g.TurnLog, LogEntry{
		Turn:     g.Turn,
		Kind:     kind,
		SystemID: systemID,
		Text:     fmt.Sprintf(format, args...),
	})
}
