package library

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Database stores library snapshots in SQLite. Each State is split into
// buckets, one row per bucket, written in a single transaction together with
// a revision row.
type Database struct {
	db *sql.DB

	upsertBucketStmt *sql.Stmt
	addRevisionStmt  *sql.Stmt
}

// Revision describes one successful Save.
type Revision struct {
	ID      string
	SavedAt time.Time
	Books   int
	Users   int
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.upsertBucketStmt != nil {
		d.upsertBucketStmt.Close()
	}
	if d.addRevisionStmt != nil {
		d.addRevisionStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state (
            bucket TEXT PRIMARY KEY,
            payload BLOB NOT NULL,
            checksum TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS revisions (
            id TEXT PRIMARY KEY,
            saved_at DATETIME NOT NULL,
            books INTEGER NOT NULL,
            users INTEGER NOT NULL
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.upsertBucketStmt, err = d.db.Prepare(`INSERT INTO state(bucket,payload,checksum) VALUES(?,?,?)
        ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload, checksum=excluded.checksum`); err != nil {
		return err
	}
	if d.addRevisionStmt, err = d.db.Prepare(`INSERT INTO revisions(id,saved_at,books,users) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func checksum(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save writes st and returns the new revision id.
func (d *Database) Save(ctx context.Context, st State) (string, error) {
	parts, err := encodeBuckets(st)
	if err != nil {
		return "", err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	upsert := tx.StmtContext(ctx, d.upsertBucketStmt)
	for _, name := range stateBuckets {
		if _, err := upsert.ExecContext(ctx, name, parts[name], checksum(parts[name])); err != nil {
			return "", fmt.Errorf("upsert %s: %w", name, err)
		}
	}

	rev := uuid.NewString()
	if _, err := tx.StmtContext(ctx, d.addRevisionStmt).ExecContext(ctx, rev, time.Now().UTC(), len(st.Books), len(st.Users)); err != nil {
		return "", fmt.Errorf("add revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return rev, nil
}

// Load reads the saved state. The boolean is false when nothing has been
// saved yet. A bucket whose checksum does not match yields ErrCorruptSnapshot.
func (d *Database) Load(ctx context.Context) (State, bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT bucket, payload, checksum FROM state`)
	if err != nil {
		return State{}, false, fmt.Errorf("select state: %w", err)
	}
	defer rows.Close()

	parts := make(map[string][]byte)
	for rows.Next() {
		var (
			name, sum string
			payload   []byte
		)
		if err := rows.Scan(&name, &payload, &sum); err != nil {
			return State{}, false, fmt.Errorf("scan: %w", err)
		}
		if checksum(payload) != sum {
			return State{}, false, fmt.Errorf("bucket %s: %w", name, ErrCorruptSnapshot)
		}
		parts[name] = payload
	}
	if err := rows.Err(); err != nil {
		return State{}, false, err
	}
	if len(parts) == 0 {
		return State{}, false, nil
	}
	st, err := decodeBuckets(parts)
	if err != nil {
		return State{}, false, errors.Join(ErrCorruptSnapshot, err)
	}
	return st, true, nil
}

// Revisions lists saved revisions, newest first.
func (d *Database) Revisions(ctx context.Context) ([]Revision, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, saved_at, books, users FROM revisions ORDER BY rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.SavedAt, &r.Books, &r.Users); err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}
