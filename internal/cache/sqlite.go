package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"

	_ "modernc.org/sqlite"
)

const createArtifactsTable = `
CREATE TABLE IF NOT EXISTS artifacts (
    uuid       TEXT PRIMARY KEY,
    data_id    TEXT NOT NULL,
    type       TEXT NOT NULL,
    payload    BLOB,
    created_at DATETIME NOT NULL
)`

const createInvocationsTable = `
CREATE TABLE IF NOT EXISTS invocations (
    invocation_key TEXT NOT NULL,
    output         TEXT NOT NULL,
    is_collection  INTEGER NOT NULL,
    item_name      TEXT NOT NULL,
    elem_key       TEXT NOT NULL,
    elem_idx       INTEGER NOT NULL,
    elem_total     INTEGER NOT NULL,
    artifact_uuid  TEXT NOT NULL
)`

const createInvocationsIndex = `
CREATE INDEX IF NOT EXISTS idx_invocations_key ON invocations (invocation_key)`

// ErrNotFound is returned when an artifact is not in the named pool.
var ErrNotFound = errors.New("artifact not found")

// ElementInfo describes one recorded output element of a cached
// invocation. For collection outputs it carries the synthesized item
// name, the element key, the element's position, and the collection
// total recorded at registration time.
type ElementInfo struct {
	ItemName string
	Key      string
	Idx      int
	Total    int
	Artifact string
}

// RecordedOutput is one declared output of a cached invocation.
type RecordedOutput struct {
	Name       string
	Collection bool
	Elements   []ElementInfo
}

// NamedPool is the persistent, fingerprint-indexed result store backed by
// SQLite. It survives process exit; results registered through it remain
// discoverable by later runs.
type NamedPool struct {
	db *sql.DB
}

// OpenNamedPool opens the pool database at dbPath and runs migrations.
func OpenNamedPool(dbPath string) (*NamedPool, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open pool database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createArtifactsTable, createInvocationsTable, createInvocationsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate pool database: %w", err)
		}
	}

	return &NamedPool{db: db}, nil
}

// Close closes the underlying database connection.
func (p *NamedPool) Close() error {
	return p.db.Close()
}

// SaveArtifact persists an artifact's identity, type, and payload. The
// payload is encoded as JSON; see LoadArtifact for the view types that
// come back. Aliases of the same data overwrite nothing: each artifact
// row is keyed by its own instance identity.
func (p *NamedPool) SaveArtifact(ctx context.Context, a *result.Artifact) error {
	payload, err := json.Marshal(a.Value())
	if err != nil {
		return fmt.Errorf("encode artifact payload: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (uuid, data_id, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.UUID(), a.DataID(), a.Type().String(), payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// LoadArtifact reconstructs an artifact from its stored row. The payload
// is decoded from JSON, so reloaded values carry JSON view types rather
// than the Go types the computation produced: numbers come back as
// float64, maps as map[string]any, and byte slices as base64 strings.
// Computations that may receive recycled results must accept these views.
func (p *NamedPool) LoadArtifact(ctx context.Context, id string) (*result.Artifact, error) {
	var dataID, typeName string
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT data_id, type, payload FROM artifacts WHERE uuid = ?", id,
	).Scan(&dataID, &typeName, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	t, err := types.Parse(typeName)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", id, err)
	}

	var value any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("decode artifact payload: %w", err)
		}
	}
	return result.Restore(id, dataID, t, value), nil
}

// RecordInvocation persists the output layout of a completed invocation
// under its fingerprint key.
func (p *NamedPool) RecordInvocation(ctx context.Context, key string, outputs []RecordedOutput) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invocation tx: %w", err)
	}
	defer tx.Rollback()

	// Re-registration replaces the previous layout wholesale.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM invocations WHERE invocation_key = ?", key); err != nil {
		return fmt.Errorf("clear invocation: %w", err)
	}

	for _, out := range outputs {
		collection := 0
		if out.Collection {
			collection = 1
		}
		for _, elem := range out.Elements {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO invocations (
					invocation_key, output, is_collection, item_name,
					elem_key, elem_idx, elem_total, artifact_uuid
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				key, out.Name, collection, elem.ItemName,
				elem.Key, elem.Idx, elem.Total, elem.Artifact,
			); err != nil {
				return fmt.Errorf("insert invocation element: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invocation: %w", err)
	}
	return nil
}

// LoadIndex reads every recorded invocation into an in-memory index
// mapping fingerprint key → output name → recorded elements.
func (p *NamedPool) LoadIndex(ctx context.Context) (map[string]map[string]RecordedOutput, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT invocation_key, output, is_collection, item_name,
			elem_key, elem_idx, elem_total, artifact_uuid
		FROM invocations ORDER BY invocation_key, output, elem_idx`)
	if err != nil {
		return nil, fmt.Errorf("load invocation index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]map[string]RecordedOutput)
	for rows.Next() {
		var key, output, itemName, elemKey, artifactUUID string
		var isCollection, elemIdx, elemTotal int
		if err := rows.Scan(&key, &output, &isCollection, &itemName,
			&elemKey, &elemIdx, &elemTotal, &artifactUUID); err != nil {
			return nil, fmt.Errorf("scan invocation row: %w", err)
		}

		byOutput, ok := index[key]
		if !ok {
			byOutput = make(map[string]RecordedOutput)
			index[key] = byOutput
		}
		entry := byOutput[output]
		entry.Name = output
		entry.Collection = isCollection != 0
		entry.Elements = append(entry.Elements, ElementInfo{
			ItemName: itemName,
			Key:      elemKey,
			Idx:      elemIdx,
			Total:    elemTotal,
			Artifact: artifactUUID,
		})
		byOutput[output] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocation rows: %w", err)
	}
	return index, nil
}
