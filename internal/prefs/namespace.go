package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, WAL-friendly
)

// MemoryNamespace is an in-process Namespace.
type MemoryNamespace struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryNamespace returns an empty in-memory namespace.
func NewMemoryNamespace() *MemoryNamespace {
	return &MemoryNamespace{values: make(map[string]string)}
}

// Get implements Namespace.
func (m *MemoryNamespace) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Put implements Namespace.
func (m *MemoryNamespace) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements Namespace.
func (m *MemoryNamespace) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryNamespace) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

const (
	sqliteOpTimeout = 3 * time.Second

	preferencesSchema = `
		CREATE TABLE IF NOT EXISTS preferences (
			node  TEXT NOT NULL,
			key   TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (node, key)
		)`
)

// SQLiteNamespace stores preferences in a SQLite file. Rows are partitioned
// by node so independent callers can share one file.
type SQLiteNamespace struct {
	db    *sql.DB
	node  string
	owned bool
}

// OpenSQLite opens (creating if needed) the preference database at dbPath
// and scopes it to node.
func OpenSQLite(ctx context.Context, dbPath, node string) (*SQLiteNamespace, error) {
	trimmed := strings.TrimSpace(dbPath)
	if trimmed == "" {
		return nil, fmt.Errorf("preferences database path is required")
	}
	if strings.TrimSpace(node) == "" {
		return nil, fmt.Errorf("preferences node is required")
	}
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create preferences directory: %w", err)
	}

	db, err := sql.Open("sqlite", buildPrefsDSN(trimmed))
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping preferences db: %w", err)
	}
	if _, err := db.ExecContext(ctx, preferencesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create preferences schema: %w", err)
	}
	return &SQLiteNamespace{db: db, node: node, owned: true}, nil
}

// buildPrefsDSN creates a read-write WAL DSN for the given path.
func buildPrefsDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Node returns the node this namespace reads and writes.
func (n *SQLiteNamespace) Node() string {
	return n.node
}

// WithNode returns a view of the same database scoped to another node.
// Closing the view does not close the underlying database.
func (n *SQLiteNamespace) WithNode(node string) *SQLiteNamespace {
	return &SQLiteNamespace{db: n.db, node: node}
}

// Get implements Namespace.
func (n *SQLiteNamespace) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	var value string
	err := n.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE node = ? AND key = ?`, n.node, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query preference %s: %w", key, err)
	}
	return value, true, nil
}

// Put implements Namespace.
func (n *SQLiteNamespace) Put(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	_, err := n.db.ExecContext(ctx,
		`INSERT INTO preferences (node, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(node, key) DO UPDATE SET value = excluded.value`,
		n.node, key, value,
	)
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

// Remove implements Namespace.
func (n *SQLiteNamespace) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	if _, err := n.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE node = ? AND key = ?`, n.node, key,
	); err != nil {
		return fmt.Errorf("remove preference %s: %w", key, err)
	}
	return nil
}

// Keys lists every key stored under the node.
func (n *SQLiteNamespace) Keys(ctx context.Context) ([]string, error) {
	rows, err := n.db.QueryContext(ctx,
		`SELECT key FROM preferences WHERE node = ? ORDER BY key`, n.node)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan preference key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return keys, nil
}

// Close releases the database when this namespace opened it.
func (n *SQLiteNamespace) Close() error {
	if !n.owned || n.db == nil {
		return nil
	}
	return n.db.Close()
}
