package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"bookshelf/internal/logger"
)

const driverName = "sqlite3_bookshelf"

func init() {
	// fold() lowercases with Go's Unicode tables; SQLite's own lower() and
	// LIKE only fold ASCII.
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Database is the catalog store: books, reviews, comments, users and the
// add/delete history, kept in a single SQLite file.
type Database struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time

	addBookStmt    *sql.Stmt
	addHistoryStmt *sql.Stmt
}

// querier is the read side shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a Database at open time.
type Option func(*Database)

// WithLogger routes migration and maintenance logs to l.
func WithLogger(l logger.Logger) Option {
	return func(d *Database) { d.logger = l }
}

// WithClock overrides the time source used for review, comment and history
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// Open opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func Open(dbPath string, opts ...Option) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Writers take the lock at BEGIN so read-then-write transactions never
	// fail on lock upgrade.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	d := &Database{
		db:     db,
		logger: logger.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addHistoryStmt != nil {
		d.addHistoryStmt.Close()
	}
	return d.db.Close()
}

// Ping checks that the database file is still reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,isbn,genre,status,finished_date,reread,rating,owner_id)
        VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addHistoryStmt, err = d.db.Prepare(`INSERT INTO book_history(action,book_title,book_author,action_date) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// withTx runs fn inside a single transaction. Any error from fn rolls the
// whole unit back.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Database) appendHistory(ctx context.Context, tx *sql.Tx, action Action, title, author string) error {
	if _, err := tx.StmtContext(ctx, d.addHistoryStmt).ExecContext(ctx, action, title, author, d.now()); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
