package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/xflkit/internal/apperr"
)

// ItemRow represents a row in the items table: one symbol descriptor.
type ItemRow struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	ItemID     string    `json:"item_id"`
	SymbolType string    `json:"symbol_type"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertItem inserts or replaces an item, its FTS entry, and its outgoing
// references within a transaction. body is the searchable text of the item.
func (db *DB) UpsertItem(it ItemRow, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// A rename shows up as a new path carrying an existing name.
	var stale string
	err = tx.QueryRow(`SELECT path FROM items WHERE name = ? AND path <> ?`, it.Name, it.Path).Scan(&stale)
	switch {
	case err == nil:
		ftsDelete(tx, stale)
		_, _ = tx.Exec(`DELETE FROM items WHERE path = ?`, stale)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("index: clear stale name: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO items (path, name, item_id, symbol_type, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name        = excluded.name,
			item_id     = excluded.item_id,
			symbol_type = excluded.symbol_type,
			checksum    = excluded.checksum,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, it.Path, it.Name, it.ItemID, it.SymbolType, it.Checksum, body, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, it.Path, it.Name, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, it.Name)
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(it.Name, target); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteItem removes the item stored at path, its FTS entry, and its
// outgoing references.
func (db *DB) DeleteItem(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = (SELECT name FROM items WHERE path = ?)`, path)
	_, _ = tx.Exec(`DELETE FROM items WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a descriptor path, or empty
// string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM items WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetItem returns the row for a qualified item name.
func (db *DB) GetItem(name string) (*ItemRow, error) {
	var r ItemRow
	err := db.conn.QueryRow(`
		SELECT path, name, item_id, symbol_type, checksum, updated_at
		FROM items WHERE name = ?
	`, name).Scan(&r.Path, &r.Name, &r.ItemID, &r.SymbolType, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: item %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get item: %w", err)
	}
	return &r, nil
}

// ListItems returns a page of items ordered by name and the total count.
// A non-empty symbolType filters by it.
func (db *DB) ListItems(limit, offset int, symbolType string) ([]ItemRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`
		SELECT count(*) FROM items WHERE ? = '' OR symbol_type = ?
	`, symbolType, symbolType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count items: %w", err)
	}
	rows, err := db.conn.Query(`
		SELECT path, name, item_id, symbol_type, checksum, updated_at
		FROM items
		WHERE ? = '' OR symbol_type = ?
		ORDER BY name
		LIMIT ? OFFSET ?
	`, symbolType, symbolType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list items: %w", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var r ItemRow
		if err := rows.Scan(&r.Path, &r.Name, &r.ItemID, &r.SymbolType, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns descriptor path to checksum for every indexed item.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func (db *DB) names(query, arg string) ([]string, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Dependents returns the symbols that reference name, sorted.
func (db *DB) Dependents(name string) ([]string, error) {
	out, err := db.names(`SELECT source FROM refs WHERE target = ? ORDER BY source`, name)
	if err != nil {
		return nil, fmt.Errorf("index: dependents: %w", err)
	}
	return out, nil
}

// Dependencies returns the names the symbol name references, sorted.
func (db *DB) Dependencies(name string) ([]string, error) {
	out, err := db.names(`SELECT target FROM refs WHERE source = ? ORDER BY target`, name)
	if err != nil {
		return nil, fmt.Errorf("index: dependencies: %w", err)
	}
	return out, nil
}
