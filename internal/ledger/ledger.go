package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Status is a run record's terminal state.
type Status string

const (
	// StatusCompleted marks a unit whose engine process exited zero.
	StatusCompleted Status = "completed"
	// StatusFailed marks a unit whose engine process exited non-zero.
	StatusFailed Status = "failed"
)

// RunRecord is the persisted completion record for one (cell, run) unit.
type RunRecord struct {
	UnitID       string
	Cell         string
	RunIndex     int
	Status       Status
	ExitCode     int
	ManifestHash string
	InvocationID string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// UnitID renders the canonical unit identifier for a (cell, run) pair.
func UnitID(cell string, run int) string {
	return fmt.Sprintf("%s/run%d", cell, run)
}

// Ledger is a SQLite-backed store of run completion records. Safe for
// concurrent use: SQLite runs with a single writer connection and every
// record write is one transaction.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the ledger under stateDir.
func Open(stateDir string) (*Ledger, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(stateDir, "ledger.db")
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record upserts a unit's completion record in one transaction, so a record
// is either fully visible to a later resume or not present at all.
func (l *Ledger) Record(ctx context.Context, rec RunRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_records
			(unit_id, cell, run_index, status, exit_code, manifest_hash, invocation_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			status = excluded.status,
			exit_code = excluded.exit_code,
			manifest_hash = excluded.manifest_hash,
			invocation_id = excluded.invocation_id,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		rec.UnitID, rec.Cell, rec.RunIndex, string(rec.Status), rec.ExitCode,
		rec.ManifestHash, rec.InvocationID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write run record %s: %w", rec.UnitID, err)
	}

	return tx.Commit()
}

// Get returns the record for a unit, or nil if none exists.
func (l *Ledger) Get(ctx context.Context, unitID string) (*RunRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT unit_id, cell, run_index, status, exit_code,
		       COALESCE(manifest_hash, ''), COALESCE(invocation_id, ''),
		       started_at, finished_at
		FROM run_records WHERE unit_id = ?`, unitID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run record %s: %w", unitID, err)
	}
	return rec, nil
}

// Completed returns the set of unit ids with a completed record.
func (l *Ledger) Completed(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT unit_id FROM run_records WHERE status = ?`, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query completed units: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unit id: %w", err)
		}
		done[id] = true
	}
	return done, rows.Err()
}

// Statuses returns the terminal status of every recorded unit. Units with
// no record are absent from the map.
func (l *Ledger) Statuses(ctx context.Context) (map[string]Status, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT unit_id, status FROM run_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unit statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]Status)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan unit status: %w", err)
		}
		statuses[id] = Status(status)
	}
	return statuses, rows.Err()
}

// CellStatus summarizes one cell's run records.
type CellStatus struct {
	Cell      string `json:"cell"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// CellCounts returns per-cell completion counts, ordered by cell name.
func (l *Ledger) CellCounts(ctx context.Context) ([]CellStatus, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT cell,
		       SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
		FROM run_records GROUP BY cell ORDER BY cell`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cell counts: %w", err)
	}
	defer rows.Close()

	var out []CellStatus
	for rows.Next() {
		var cs CellStatus
		if err := rows.Scan(&cs.Cell, &cs.Completed, &cs.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan cell counts: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var status, started, finished string
	if err := row.Scan(&rec.UnitID, &rec.Cell, &rec.RunIndex, &status, &rec.ExitCode,
		&rec.ManifestHash, &rec.InvocationID, &started, &finished); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &rec, nil
}

// OutputManifestHash computes a checksum over a run output directory's file
// listing (relative path and size, sorted). It distinguishes "the engine
// wrote its outputs" from "the directory merely exists" without requiring
// the ledger to understand engine-specific file formats.
func OutputManifestHash(dir string) (string, error) {
	type entry struct {
		path string
		size int64
	}
	var entries []entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{path: filepath.ToSlash(rel), size: info.Size()})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk output directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\x00", e.path, e.size)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
