package catalog

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial per-kind tables
// 2 - videos.frame_rate for catalogs created before it existed
const currentSchemaVersion = 2

// keyCheckPlaintext is sealed into catalog_meta on first open so a later open
// with a different key is detected before any record is read.
const keyCheckPlaintext = "custodian catalog key check"

// IntegrityPolicy decides what a failed self-check does at open.
type IntegrityPolicy string

const (
	// IntegrityWarn logs the mismatch and opens anyway.
	IntegrityWarn IntegrityPolicy = "warn"
	// IntegrityStrict refuses to open with IntegrityCheckFailed.
	IntegrityStrict IntegrityPolicy = "strict"
)

// Catalog is an open catalog session. It is safe for concurrent use.
type Catalog struct {
	path   string
	key    *Key
	policy IntegrityPolicy
	logger *slog.Logger

	db    *sqlx.DB // single writer connection
	ro    *sqlx.DB // read-only pool
	flock *flock.Flock
	locks *idLocks

	selfCheck SelfCheck

	mu     sync.Mutex
	closed bool
}

// Option configures Open.
type Option func(*Catalog)

// WithIntegrityPolicy sets the self-check policy. The default is IntegrityWarn.
func WithIntegrityPolicy(p IntegrityPolicy) Option {
	return func(c *Catalog) { c.policy = p }
}

// WithLogger sets the logger used for advisory warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Open binds key to a catalog session on the database at path, creating it
// if needed. A nil key fails with KeyUnavailable before the file system or
// database is touched.
func Open(ctx context.Context, path string, key *Key, opts ...Option) (*Catalog, error) {
	if key == nil {
		return nil, newError(CodeKeyUnavailable, "open", errors.New("no key supplied"))
	}

	c := &Catalog{
		path:   path,
		key:    key,
		policy: IntegrityWarn,
		logger: slog.Default(),
		locks:  newIDLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// One writer session per catalog file across processes.
	c.flock = flock.New(path + ".lock")
	locked, err := c.flock.TryLock()
	if err != nil {
		return nil, newError(CodeOpenFailed, "open", fmt.Errorf("lock: %w", err))
	}
	if !locked {
		return nil, newError(CodeOpenFailed, "open", fmt.Errorf("catalog %s is in use by another session", path))
	}

	if err := c.open(ctx); err != nil {
		c.release()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) open(ctx context.Context) error {
	check, err := c.checkReference()
	if err != nil {
		return err
	}
	c.selfCheck = check

	db, err := sqlx.Open("sqlite3", dataSource(c.path, ""))
	if err != nil {
		return newError(CodeOpenFailed, "open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return newError(CodeOpenFailed, "open", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return newError(CodeExecuteFailed, "open", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return newError(CodeExecuteFailed, "open", err)
	}
	if err := c.bindKey(ctx, db); err != nil {
		db.Close()
		return err
	}

	ro, err := sqlx.Open("sqlite3", dataSource(c.path, "mode=ro&_busy_timeout=5000"))
	if err != nil {
		db.Close()
		return newError(CodeOpenFailed, "open reader", err)
	}
	if err := ro.PingContext(ctx); err != nil {
		ro.Close()
		db.Close()
		return newError(CodeOpenFailed, "open reader", err)
	}
	ro.SetMaxOpenConns(4)

	c.db = db
	c.ro = ro
	return nil
}

// Close checkpoints the write-ahead log, closes the database, refreshes the
// sealed self-check reference and releases the session lock.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.release()

	var errs []error
	if c.ro != nil {
		errs = append(errs, c.ro.Close())
	}
	if c.db != nil {
		if _, err := c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint: %w", err))
		}
		errs = append(errs, c.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return newError(CodeExecuteFailed, "close", err)
	}

	return c.writeReference()
}

func (c *Catalog) release() {
	if c.flock != nil {
		_ = c.flock.Unlock()
	}
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// Key returns the key bound to this session.
func (c *Catalog) Key() *Key { return c.key }

// SelfCheck returns the outcome of the self-check performed at open.
func (c *Catalog) SelfCheck() SelfCheck { return c.selfCheck }

func (c *Catalog) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
// dataSource builds a file: URI for path. The path is escaped so that '?'
// and '#' in a file name are not read as the start of the query.
func dataSource(path, query string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query}
	if !filepath.IsAbs(path) {
		u.Opaque = u.EscapedPath()
	}
	return u.String()
}

func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sqlx.DB) error {
	var version int
	if err := db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 adds videos.frame_rate to catalogs whose videos table predates
// it. Fresh catalogs already have the column from schema.sql.
func migrateToV2(ctx context.Context, db *sqlx.DB) error {
	var columns []struct {
		CID       int            `db:"cid"`
		Name      string         `db:"name"`
		Type      string         `db:"type"`
		NotNull   int            `db:"notnull"`
		Default   sql.NullString `db:"dflt_value"`
		PrimaryPK int            `db:"pk"`
	}
	if err := db.SelectContext(ctx, &columns, "PRAGMA table_info(videos)"); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	for _, col := range columns {
		if col.Name == "frame_rate" {
			return nil
		}
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE videos ADD COLUMN frame_rate REAL NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// bindKey verifies the session key against the sealed key-check value,
// writing it on first open.
func (c *Catalog) bindKey(ctx context.Context, db *sqlx.DB) error {
	var sealed []byte
	err := db.GetContext(ctx, &sealed, "SELECT value FROM catalog_meta WHERE name = 'key_check'")
	switch {
	case errors.Is(err, sql.ErrNoRows):
		sealed, err = c.key.Seal(PurposeKeyCheck, []byte(keyCheckPlaintext))
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO catalog_meta (name, value) VALUES ('key_check', ?)", sealed); err != nil {
			return newError(CodeExecuteFailed, "bind key", err)
		}
		return nil
	case err != nil:
		return newError(CodeExecuteFailed, "bind key", err)
	}

	plain, err := c.key.Unseal(PurposeKeyCheck, sealed)
	if err != nil {
		return newError(CodeDecryptionFailed, "bind key", errors.New("key does not match catalog"))
	}
	if !bytes.Equal(plain, []byte(keyCheckPlaintext)) {
		return newError(CodeDecryptionFailed, "bind key", errors.New("key check value corrupted"))
	}
	return nil
}

// closeQuietly closes a statement on every exit path of a query.
func closeQuietly(c io.Closer) {
	_ = c.Close()
}
