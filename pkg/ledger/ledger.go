// Package ledger keeps a per-session hash chain of compressed world
// snapshots, one per turn, in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/davergrounds/galactic-empires/pkg/core"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS turn_snapshots (
	session_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	prev_hash TEXT NOT NULL,
	state_hash TEXT NOT NULL,
	final_hash TEXT NOT NULL,
	state_blob BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, turn)
);`

// ErrNoEntry is returned when a session has no snapshot for a turn.
var ErrNoEntry = errors.New("ledger entry not found")

// Entry is one link of the chain. The blob itself is never exposed here.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Turn      int       `json:"turn"`
	PrevHash  string    `json:"prevHash"`
	StateHash string    `json:"stateHash"`
	FinalHash string    `json:"finalHash"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type Ledger struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects with a registered SQLite driver ("sqlite" or "sqlite3") and
// applies the schema. The caller imports the driver.
func Open(driver, dsn string, logger *log.Logger) (*Ledger, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	// One writer; also keeps a :memory: database alive on a single connection.
	db.SetMaxOpenConns(1)

	l, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an existing handle.
func New(db *sql.DB, logger *log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.Default()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Ledger{db: db, logger: logger}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// GenesisHash is the chain root for a session.
func GenesisHash(sessionID string) string {
	return core.Hash([]byte("GENESIS|" + sessionID))
}

// Record snapshots the world at its current turn and links it to the
// session's previous entry.
func (l *Ledger) Record(ctx context.Context, sessionID string, g *types.Game) (Entry, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal world: %w", err)
	}
	blob, err := core.Compress(raw)
	if err != nil {
		return Entry{}, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prevHash := GenesisHash(sessionID)
	err = tx.QueryRowContext(ctx,
		"SELECT final_hash FROM turn_snapshots WHERE session_id = ? AND turn < ? ORDER BY turn DESC LIMIT 1",
		sessionID, g.Turn).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("read chain head: %w", err)
	}

	e := Entry{
		SessionID: sessionID,
		Turn:      g.Turn,
		PrevHash:  prevHash,
		StateHash: core.Hash(blob),
		Size:      len(blob),
		CreatedAt: time.Now().UTC(),
	}
	e.FinalHash = core.ChainHash(e.Turn, e.PrevHash, e.StateHash)

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO turn_snapshots (session_id, turn, prev_hash, state_hash, final_hash, state_blob, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Turn, e.PrevHash, e.StateHash, e.FinalHash, blob, e.CreatedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}

	l.logger.Printf("ledger: session %s turn %d size=%d hash=%s", sessionID, e.Turn, e.Size, e.FinalHash)
	return e, nil
}

// Entries lists a session's chain in turn order.
func (l *Ledger) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT turn, prev_hash, state_hash, final_hash, length(state_blob), created_at
		 FROM turn_snapshots WHERE session_id = ? ORDER BY turn`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e := Entry{SessionID: sessionID}
		var created int64
		if err := rows.Scan(&e.Turn, &e.PrevHash, &e.StateHash, &e.FinalHash, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Verify re-walks the chain, recomputing every hash from the stored blobs.
// It returns the first broken turn, or 0 when the chain is intact.
func (l *Ledger) Verify(ctx context.Context, sessionID string) (int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT turn, prev_hash, state_hash, final_hash, state_blob
		 FROM turn_snapshots WHERE session_id = ? ORDER BY turn`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("query chain: %w", err)
	}
	defer rows.Close()

	expectedPrev := GenesisHash(sessionID)
	for rows.Next() {
		var (
			turn                       int
			prevHash, stateHash, final string
			blob                       []byte
		)
		if err := rows.Scan(&turn, &prevHash, &stateHash, &final, &blob); err != nil {
			return 0, fmt.Errorf("scan chain: %w", err)
		}
		if prevHash != expectedPrev || stateHash != core.Hash(blob) || final != core.ChainHash(turn, prevHash, stateHash) {
			l.logger.Printf("ledger: chain break in session %s at turn %d", sessionID, turn)
			return turn, nil
		}
		expectedPrev = final
	}
	return 0, rows.Err()
}

// Load rebuilds the world as recorded for a turn.
func (l *Ledger) Load(ctx context.Context, sessionID string, turn int) (*types.Game, error) {
	var blob []byte
	err := l.db.QueryRowContext(ctx,
		"SELECT state_blob FROM turn_snapshots WHERE session_id = ? AND turn = ?", sessionID, turn).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEntry
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	raw, err := core.Decompress(blob)
	if err != nil {
		return nil, err
	}
	var g types.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("unmarshal world: %w", err)
	}
	return &g, nil
}

// Forget drops a session's chain.
func (l *Ledger) Forget(ctx context.Context, sessionID string) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM turn_snapshots WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete chain: %w", err)
	}
	return nil
}
