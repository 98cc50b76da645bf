// Package bondstore keeps a record of the peers this host has bonded with.
// The link keys themselves stay with the radio transport; the store only
// remembers who was bonded, when, and under which pairing session.
package bondstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/srg/classicgap/internal/device"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	busyTimeoutMillis = 5000
	pingTimeout       = 5 * time.Second
)

// ErrNotFound is returned when no bond exists for an address.
var ErrNotFound = errors.New("bond not found")

const schema = `
CREATE TABLE IF NOT EXISTS bonds (
	address    TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	class      INTEGER NOT NULL DEFAULT 0,
	session_id TEXT NOT NULL DEFAULT '',
	bonded_at  TEXT NOT NULL
) STRICT;`

// Bond is one bonded peer.
type Bond struct {
	Address       device.Address       `json:"address" yaml:"address"`
	Name          string               `json:"name,omitempty" yaml:"name,omitempty"`
	ClassOfDevice device.ClassOfDevice `json:"classOfDevice" yaml:"class_of_device"`
	SessionID     string               `json:"sessionId,omitempty" yaml:"session_id,omitempty"`
	BondedAt      time.Time            `json:"bondedAt" yaml:"bonded_at"`
}

// Store is a SQLite-backed bond table.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bond store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating bond store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening bond store: %w", err)
	}
	// One writer: the notification path.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verifying bond store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying bond store schema: %w", err)
	}
	_ = os.Chmod(path, filePermissions)

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing bond store: %w", err)
	}
	return nil
}

// Save inserts or refreshes the bond for dev. An empty name never overwrites
// a known one.
func (s *Store) Save(ctx context.Context, dev device.Device, sessionID string) (Bond, error) {
	b := Bond{
		Address:       dev.Address,
		Name:          dev.Name,
		ClassOfDevice: dev.ClassOfDevice,
		SessionID:     sessionID,
		BondedAt:      s.now().UTC().Truncate(time.Second),
	}

	const query = `INSERT INTO bonds (address, name, class, session_id, bonded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN bonds.name ELSE excluded.name END,
			class = CASE WHEN excluded.class = 0 THEN bonds.class ELSE excluded.class END,
			session_id = excluded.session_id,
			bonded_at = excluded.bonded_at`
	_, err := s.db.ExecContext(ctx, query,
		b.Address.String(), b.Name, int64(b.ClassOfDevice), b.SessionID, b.BondedAt.Format(time.RFC3339))
	if err != nil {
		return Bond{}, fmt.Errorf("saving bond %s: %w", b.Address, err)
	}
	return s.Get(ctx, dev.Address)
}

// Get returns the bond for addr, or ErrNotFound.
func (s *Store) Get(ctx context.Context, addr device.Address) (Bond, error) {
	const query = `SELECT address, name, class, session_id, bonded_at FROM bonds WHERE address = ?`
	b, err := scanBond(s.db.QueryRowContext(ctx, query, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return Bond{}, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	if err != nil {
		return Bond{}, fmt.Errorf("reading bond %s: %w", addr, err)
	}
	return b, nil
}

// Exists reports whether addr is bonded.
func (s *Store) Exists(ctx context.Context, addr device.Address) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bonds WHERE address = ?`, addr.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking bond %s: %w", addr, err)
	}
	return n > 0, nil
}

// Delete removes the bond for addr, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, addr device.Address) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bonds WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("deleting bond %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting bond %s: %w", addr, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return nil
}

// List returns every bond, most recent first.
func (s *Store) List(ctx context.Context) ([]Bond, error) {
	const query = `SELECT address, name, class, session_id, bonded_at FROM bonds
		ORDER BY bonded_at DESC, address`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing bonds: %w", err)
	}
	defer rows.Close()

	var bonds []Bond
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bond: %w", err)
		}
		bonds = append(bonds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing bonds: %w", err)
	}
	return bonds, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBond(row scanner) (Bond, error) {
	var (
		b        Bond
		addr     string
		class    int64
		bondedAt string
	)
	if err := row.Scan(&addr, &b.Name, &class, &b.SessionID, &bondedAt); err != nil {
		return Bond{}, err
	}

	var err error
	if b.Address, err = device.ParseAddress(addr); err != nil {
		return Bond{}, fmt.Errorf("stored address: %w", err)
	}
	if b.BondedAt, err = time.Parse(time.RFC3339, bondedAt); err != nil {
		return Bond{}, fmt.Errorf("stored timestamp: %w", err)
	}
	b.ClassOfDevice = device.ClassOfDevice(class)
	return b, nil
}
