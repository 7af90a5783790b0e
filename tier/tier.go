// Package tier implements one tier of isto's two-tier store: a SQLite
// relational index paired with a content file tree, guarded by an
// always-open exclusive write transaction that doubles as the
// single-writer lock.
package tier

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/jreunanen/isto/layout"
)

// Kind distinguishes the rotating (eviction-managed) tier from the
// permanent (un-evictable) tier.
type Kind int

const (
	Rotating Kind = iota
	Permanent
)

func (k Kind) String() string {
	if k == Rotating {
		return "rotating"
	}
	return "permanent"
}

func (k Kind) indexFileName() string {
	if k == Rotating {
		return "isto_rotating.sqlite"
	}
	return "isto_permanent.sqlite"
}

// Config configures one tier's store.
type Config struct {
	Root                  string
	Kind                  Kind
	Tags                  []string
	Resolution            layout.Resolution
	MaxRotatingBytes      int64 // ignored unless Kind == Rotating
	MinFreeDiskBytes      int64 // ignored unless Kind == Rotating
	DeletionFlushInterval int   // ignored unless Kind == Rotating; default 1000
}

// Row is one relational index row, joined with the tag values declared
// in Config.Tags.
type Row struct {
	ID        string
	Timestamp string // tstamp.Layout text form
	Path      string
	Size      int64
	Tags      map[string]string
}

// Store is a single tier: its SQLite index and its content file tree.
type Store struct {
	cfg    Config
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt

	// accountant and flush state; currentBytes is meaningful only for
	// Kind == Rotating.
	currentBytes        int64
	deletionsSinceFlush int
	dirty               bool

	onRotatingDeleted func(id string)
}

var whitespaceRE = regexp.MustCompile(`\s`)

// Open opens (creating if necessary) the tier rooted at cfg.Root. Opening
// a second Store on the same root fails, because the exclusive
// transaction below is already held by the first: SQLite refuses a
// second BEGIN EXCLUSIVE on the same database file, which is the
// single-writer guard the store relies on.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	for _, tag := range cfg.Tags {
		if whitespaceRE.MatchString(tag) {
			return nil, errors.Errorf("tag name %q contains whitespace", tag)
		}
	}
	if cfg.DeletionFlushInterval <= 0 {
		cfg.DeletionFlushInterval = 1000
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating tier directory %s", cfg.Root)
	}

	dsn := fmt.Sprintf(
		"file:%s?_txlock=exclusive&_busy_timeout=2000&_journal_mode=WAL",
		filepath.Join(cfg.Root, cfg.Kind.indexFileName()),
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening index")
	}
	// One tier, one writer: a single connection makes the exclusive
	// transaction the store keeps open for its lifetime meaningful.
	db.SetMaxOpenConns(1)

	s := &Store{cfg: cfg, db: db}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "opening exclusive transaction on %s tier (already open elsewhere?)", cfg.Kind)
	}
	s.tx = tx

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, errors.Wrap(err, "preparing insert statement")
	}
	s.insert = stmt

	if cfg.Kind == Rotating {
		sum, err := s.sumSize(ctx)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			db.Close()
			return nil, errors.Wrap(err, "initializing rotating byte counter")
		}
		s.currentBytes = sum
	}

	return s, nil
}

func (s *Store) columns() []string {
	cols := []string{"id", "timestamp", "path", "size"}
	return append(cols, s.cfg.Tags...)
}

func (s *Store) insertSQL() string {
	cols := s.columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT OR REPLACE INTO DataItems (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='DataItems'`,
	).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking for existing schema")
	}
	if exists > 0 {
		// An existing schema is assumed to match the configured tag set;
		// isto does not support tag-set migration.
		_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS DataItems_timestamp ON DataItems (timestamp)`)
		return errors.Wrap(err, "ensuring timestamp index")
	}

	cols := []string{
		"id TEXT PRIMARY KEY",
		"timestamp TEXT",
		"path TEXT",
		"size INTEGER",
	}
	for _, tag := range s.cfg.Tags {
		cols = append(cols, fmt.Sprintf("%s TEXT", tag))
	}
	create := fmt.Sprintf("CREATE TABLE DataItems (%s)", strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return errors.Wrap(err, "creating DataItems table")
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS DataItems_timestamp ON DataItems (timestamp)`)
	return errors.Wrap(err, "creating timestamp index")
}

// Close flushes the open transaction and releases the index handle.
func (s *Store) Close() error {
	var err error
	if s.insert != nil {
		s.insert.Close()
	}
	if s.tx != nil {
		if cerr := s.tx.Commit(); cerr != nil {
			err = errors.Wrap(cerr, "committing on close")
		}
	}
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "closing index")
	}
	return err
}

// Flush commits the open transaction and begins a new exclusive one,
// re-preparing the insert statement against it: a "COMMIT; BEGIN
// EXCLUSIVE" pair.
func (s *Store) Flush(ctx context.Context) error {
	if !s.dirty && s.deletionsSinceFlush == 0 {
		return nil
	}
	if s.insert != nil {
		s.insert.Close()
	}
	if err := s.tx.Commit(); err != nil {
		return errors.Wrap(err, "committing")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "re-beginning exclusive transaction")
	}
	s.tx = tx
	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return errors.Wrap(err, "re-preparing insert statement")
	}
	s.insert = stmt
	s.dirty = false
	s.deletionsSinceFlush = 0
	return nil
}

// MarkDirty records that the open transaction contains uncommitted
// writes that a subsequent Flush must commit.
func (s *Store) MarkDirty() { s.dirty = true }

// Kind reports which tier this Store manages.
func (s *Store) Kind() Kind { return s.cfg.Kind }

// Root returns the tier's content directory.
func (s *Store) Root() string { return s.cfg.Root }

// Resolution returns the tier's directory-bucketing resolution.
func (s *Store) Resolution() layout.Resolution { return s.cfg.Resolution }

// Dir returns the content directory for an item with timestamp t.
func (s *Store) Dir(t time.Time) string { return layout.Dir(s.cfg.Root, t, s.cfg.Resolution) }

// Path returns the full content path for an item with timestamp t and id.
func (s *Store) Path(t time.Time, id string) string {
	return layout.Path(s.cfg.Root, t, s.cfg.Resolution, id)
}

// Insert writes one index row, binding the declared tag columns from
// tags (missing declared tags default to the empty string; undeclared
// keys were already discarded by the caller).
func (s *Store) Insert(ctx context.Context, row Row) error {
	args := []interface{}{row.ID, row.Timestamp, row.Path, row.Size}
	for _, tag := range s.cfg.Tags {
		args = append(args, row.Tags[tag])
	}
	if _, err := s.insert.ExecContext(ctx, args...); err != nil {
		return errors.Wrapf(err, "inserting row %s", row.ID)
	}
	s.MarkDirty()
	return nil
}

// SetRotatingDeletedCallback installs the callback fired once per
// eviction of a rotating item. Meaningless (and never called) on a
// permanent-tier Store.
func (s *Store) SetRotatingDeletedCallback(fn func(id string)) {
	s.onRotatingDeleted = fn
}

func (s *Store) sumSize(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT sum(size) FROM DataItems`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}
