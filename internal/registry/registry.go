// Package registry is the durable artifact registry. It keys every
// source artifact by content hash so identical artifacts are produced
// at most once, while every unit that references a hash is recorded
// at least once for audit.
package registry

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// State is the lifecycle state of a registry entry.
type State string

const (
	// StateReserved marks a hash claimed for production but not yet
	// committed.
	StateReserved State = "reserved"
	// StateCommitted marks a hash with a recorded output.
	StateCommitted State = "committed"
	// StateSuperseded marks an old hash for a source path whose
	// content changed. Kept for audit, excluded from reuse.
	StateSuperseded State = "superseded"
)

// Action is the outcome of a reservation check.
type Action string

const (
	// ActionProduce means the caller must produce the output and then
	// Commit or Abort.
	ActionProduce Action = "produce"
	// ActionReuse means a committed output already exists; the unit
	// has been recorded against it.
	ActionReuse Action = "reuse"
)

// Decision is the result of CheckAndReserve.
type Decision struct {
	Action Action
	// Prior is the committed entry backing a reuse decision, nil for
	// produce.
	Prior *Entry
}

// Entry is one registered artifact.
type Entry struct {
	ContentHash string     `json:"content_hash"`
	SourcePath  string     `json:"source_path"`
	State       State      `json:"state"`
	OutputID    string     `json:"output_id,omitempty"`
	OutputHash  string     `json:"output_hash,omitempty"`
	Units       []string   `json:"units,omitempty"`
	ReservedAt  time.Time  `json:"reserved_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
}

// Registry is the SQLite-backed artifact registry.
type Registry struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	held  map[string]bool
}

// New creates an unopened registry.
func New() *Registry {
	return &Registry{
		locks: make(map[string]*sync.Mutex),
		held:  make(map[string]bool),
	}
}

// Open opens the registry database. Use ":memory:" for an in-memory
// registry.
func (r *Registry) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open registry database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping registry database: %w", err)
	}
	// Keyed mutexes serialize writers in-process; a single connection
	// keeps SQLite itself out of lock contention.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return fmt.Errorf("failed to configure registry database: %w", err)
	}

	r.db = db
	r.path = path
	return nil
}

// Close closes the registry database.
func (r *Registry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InitSchema creates the registry tables.
func (r *Registry) InitSchema() error {
	if r.db == nil {
		return fmt.Errorf("registry not opened")
	}
	if _, err := r.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize registry schema: %w", err)
	}
	return nil
}

// keyLock returns the mutex guarding one content hash.
func (r *Registry) keyLock(hash string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[hash]
	if !ok {
		m = &sync.Mutex{}
		r.locks[hash] = m
	}
	return m
}

// CheckAndReserve decides whether the artifact with the given content
// hash must be produced or can reuse a committed output. The unit ID
// is recorded against the hash either way.
//
// On a produce decision the per-hash lock stays held until the caller
// calls Commit or Abort, so concurrent reservations of the same hash
// serialize to exactly one producer; the rest observe the committed
// entry and reuse it.
func (r *Registry) CheckAndReserve(hash, sourcePath, unitID string) (Decision, error) {
	if r.db == nil {
		return Decision{}, fmt.Errorf("registry not opened")
	}

	lock := r.keyLock(hash)
	lock.Lock()

	entry, err := r.get(hash)
	if err != nil {
		lock.Unlock()
		return Decision{}, err
	}

	if entry != nil && entry.State == StateCommitted {
		if err := r.addUnit(hash, unitID); err != nil {
			lock.Unlock()
			return Decision{}, err
		}
		entry.Units = appendUnique(entry.Units, unitID)
		lock.Unlock()
		return Decision{Action: ActionReuse, Prior: entry}, nil
	}

	now := time.Now().UTC()
	if entry == nil {
		_, err = r.db.Exec(
			`INSERT INTO artifacts (content_hash, source_path, state, reserved_at) VALUES (?, ?, ?, ?)`,
			hash, sourcePath, StateReserved, now,
		)
	} else {
		// A superseded hash coming back (content reverted) is
		// re-reserved; its old output is not trusted for reuse.
		_, err = r.db.Exec(
			`UPDATE artifacts SET source_path = ?, state = ?, reserved_at = ?,
			        output_id = NULL, output_hash = NULL, committed_at = NULL
			 WHERE content_hash = ?`,
			sourcePath, StateReserved, now, hash,
		)
	}
	if err != nil {
		lock.Unlock()
		return Decision{}, fmt.Errorf("failed to reserve %s: %w", hash, err)
	}

	// A new hash for a known path supersedes the path's old entries.
	_, err = r.db.Exec(
		`UPDATE artifacts SET state = ? WHERE source_path = ? AND content_hash <> ? AND state = ?`,
		StateSuperseded, sourcePath, hash, StateCommitted,
	)
	if err != nil {
		lock.Unlock()
		return Decision{}, fmt.Errorf("failed to supersede prior entries for %s: %w", sourcePath, err)
	}

	if err := r.addUnit(hash, unitID); err != nil {
		lock.Unlock()
		return Decision{}, err
	}

	r.mu.Lock()
	r.held[hash] = true
	r.mu.Unlock()

	return Decision{Action: ActionProduce}, nil
}

// Commit records the produced output for a reserved hash and releases
// its reservation lock. The write is flushed before Commit returns.
func (r *Registry) Commit(hash, outputID, outputHash string) error {
	if r.db == nil {
		return fmt.Errorf("registry not opened")
	}

	res, err := r.db.Exec(
		`UPDATE artifacts SET state = ?, output_id = ?, output_hash = ?, committed_at = ?
		 WHERE content_hash = ? AND state = ?`,
		StateCommitted, outputID, outputHash, time.Now().UTC(), hash, StateReserved,
	)
	if err != nil {
		r.release(hash)
		return fmt.Errorf("failed to commit %s: %w", hash, err)
	}
	n, _ := res.RowsAffected()
	r.release(hash)
	if n == 0 {
		return fmt.Errorf("commit of %s without a reservation", hash)
	}
	return nil
}

// Abort drops a reservation so another caller can produce the
// artifact.
func (r *Registry) Abort(hash string) error {
	if r.db == nil {
		return fmt.Errorf("registry not opened")
	}

	_, err := r.db.Exec(
		`DELETE FROM artifacts WHERE content_hash = ? AND state = ?`,
		hash, StateReserved,
	)
	r.release(hash)
	if err != nil {
		return fmt.Errorf("failed to abort %s: %w", hash, err)
	}
	return nil
}

// release unlocks a hash's reservation lock if this registry holds it.
func (r *Registry) release(hash string) {
	r.mu.Lock()
	holding := r.held[hash]
	if holding {
		delete(r.held, hash)
	}
	lock := r.locks[hash]
	r.mu.Unlock()
	if holding && lock != nil {
		lock.Unlock()
	}
}

// addUnit records a unit against a hash, keeping first-recorded order.
// Recording the same unit twice is a no-op.
func (r *Registry) addUnit(hash, unitID string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO artifact_units (content_hash, unit_id, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM artifact_units WHERE content_hash = ?))`,
		hash, unitID, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to record unit %s for %s: %w", unitID, hash, err)
	}
	return nil
}

// Get returns the entry for a content hash, or nil when unknown.
func (r *Registry) Get(hash string) (*Entry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("registry not opened")
	}
	return r.get(hash)
}

func (r *Registry) get(hash string) (*Entry, error) {
	entry := &Entry{}
	var outputID, outputHash sql.NullString
	var committedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT content_hash, source_path, state, output_id, output_hash, reserved_at, committed_at
		 FROM artifacts WHERE content_hash = ?`,
		hash,
	).Scan(&entry.ContentHash, &entry.SourcePath, &entry.State, &outputID, &outputHash, &entry.ReservedAt, &committedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", hash, err)
	}

	entry.OutputID = outputID.String
	entry.OutputHash = outputHash.String
	if committedAt.Valid {
		t := committedAt.Time
		entry.CommittedAt = &t
	}

	units, err := r.unitsFor(hash)
	if err != nil {
		return nil, err
	}
	entry.Units = units
	return entry, nil
}

// unitsFor returns unit IDs recorded against a hash, in recorded order.
func (r *Registry) unitsFor(hash string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT unit_id FROM artifact_units WHERE content_hash = ? ORDER BY position`,
		hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read units for %s: %w", hash, err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// List returns all entries ordered by source path then reservation
// time, superseded entries included.
func (r *Registry) List() ([]*Entry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("registry not opened")
	}

	rows, err := r.db.Query(
		`SELECT content_hash FROM artifacts ORDER BY source_path, reserved_at, content_hash`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(hashes))
	for _, h := range hashes {
		e, err := r.get(h)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
