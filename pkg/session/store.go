package session

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

// Record is one live match. mu serializes every order and resolution pass
// against Game and rng.
type Record struct {
	ID        string
	CreatedAt time.Time

	codes map[types.Faction]string
	seed  int64

	mu       sync.Mutex
	game     *types.Game
	rng      *rand.Rand
	lastSeen atomic.Int64
}

func newRecord(id string, codes map[types.Faction]string, g *types.Game, seed int64, now time.Time) *Record {
	r := &Record{
		ID:        id,
		CreatedAt: now,
		codes:     codes,
		seed:      seed,
		game:      g,
		rng:       rand.New(rand.NewSource(seed)),
	}
	r.touch(now)
	return r
}

func (r *Record) touch(now time.Time) { r.lastSeen.Store(now.UnixNano()) }

// LastSeen is the time of the last authenticated access.
func (r *Record) LastSeen() time.Time { return time.Unix(0, r.lastSeen.Load()) }

// Repository holds live sessions by id.
type Repository interface {
	Create(rec *Record) error
	Get(id string) (*Record, error)
	List() []string
	// EvictIdle removes sessions not seen since cutoff and returns their ids.
	EvictIdle(cutoff time.Time) []string
}

var (
	errSessionNotFound = &game.Error{Kind: game.KindNotFound, Message: "Game not found"}
	errStoreFull       = &game.Error{Kind: game.KindCapacity, Message: "Session limit reached"}
)

// MemoryStore is an in-process Repository. A non-positive max means unbounded.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	max      int
}

func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Record), max: max}
}

func (m *MemoryStore) Create(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && len(m.sessions) >= m.max {
		return errStoreFull
	}
	if _, exists := m.sessions[rec.ID]; exists {
		return &game.Error{Kind: game.KindInvalidState, Message: "Game id already in use"}
	}
	m.sessions[rec.ID] = rec
	return nil
}

func (m *MemoryStore) Get(id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return rec, nil
}

func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryStore) EvictIdle(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []string
	for id, rec := range m.sessions {
		if rec.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}
