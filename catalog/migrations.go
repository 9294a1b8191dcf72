package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 5

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations bring any earlier bookshelf file up to schemaVersion. Version 1
// matches the tables written by the first releases, so those files open
// without loss; later steps only add columns and tables.
var migrations = []migration{
	{1, "base tables", execAll(
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT UNIQUE,
            status TEXT DEFAULT 'unread',
            finished_date DATE,
            reread BOOLEAN DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS reviews (
            id INTEGER PRIMARY KEY,
            book_id INTEGER,
            user_name TEXT,
            rating INTEGER CHECK(rating BETWEEN 1 AND 5),
            review_text TEXT,
            review_date DATE DEFAULT CURRENT_DATE,
            FOREIGN KEY (book_id) REFERENCES books(id)
        );`,
		`CREATE TABLE IF NOT EXISTS book_history (
            id INTEGER PRIMARY KEY,
            action TEXT,
            book_title TEXT,
            action_date DATE DEFAULT CURRENT_DATE
        );`,
	)},
	// The lending-library variant created books without the reading columns.
	{2, "book reading state, rating and genre", func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range [][2]string{
			{"status", "TEXT DEFAULT 'unread'"},
			{"finished_date", "DATE"},
			{"reread", "BOOLEAN DEFAULT 0"},
			{"rating", "INTEGER"},
			{"genre", "TEXT"},
		} {
			if err := addColumn(ctx, tx, "books", c[0], c[1]); err != nil {
				return err
			}
		}
		return nil
	}},
	{3, "history author", func(ctx context.Context, tx *sql.Tx) error {
		return addColumn(ctx, tx, "book_history", "book_author", "TEXT")
	}},
	{4, "users and comments", func(ctx context.Context, tx *sql.Tx) error {
		if err := execAll(
			`CREATE TABLE IF NOT EXISTS users (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                username TEXT NOT NULL UNIQUE,
                password_hash TEXT NOT NULL,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
            );`,
			`CREATE TABLE IF NOT EXISTS comments (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                review_id INTEGER NOT NULL REFERENCES reviews(id),
                user_id INTEGER NOT NULL REFERENCES users(id),
                comment_text TEXT NOT NULL,
                comment_date DATETIME NOT NULL
            );`,
		)(ctx, tx); err != nil {
			return err
		}
		if err := addColumn(ctx, tx, "books", "owner_id", "INTEGER REFERENCES users(id)"); err != nil {
			return err
		}
		if err := addColumn(ctx, tx, "reviews", "user_id", "INTEGER REFERENCES users(id)"); err != nil {
			return err
		}
		return execAll(
			`CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews(book_id, user_name);`,
			`CREATE INDEX IF NOT EXISTS idx_comments_review ON comments(review_id);`,
			`CREATE INDEX IF NOT EXISTS idx_books_owner ON books(owner_id);`,
		)(ctx, tx)
	}},
	// Early files stored Japanese UI labels and empty ISBN strings; the empty
	// strings collide under the UNIQUE constraint.
	{5, "normalise legacy values", execAll(
		`UPDATE books SET status='unread' WHERE status IS NULL OR status IN ('未読','');`,
		`UPDATE books SET status='reading' WHERE status='読書中';`,
		`UPDATE books SET status='finished' WHERE status='読了';`,
		`UPDATE books SET isbn=NULL WHERE isbn IS NOT NULL AND TRIM(isbn)='';`,
		`UPDATE books SET reread=0 WHERE reread IS NULL;`,
		`UPDATE book_history SET action='add' WHERE action='追加';`,
		`UPDATE book_history SET action='delete' WHERE action='削除';`,
	)},
}

func (d *Database) migrate(ctx context.Context) error {
	// WAL improves write concurrency.
	if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := d.withTx(ctx, func(tx *sql.Tx) error {
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES('schema_version',?)
                ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		d.logger.Info("schema migrated", "version", m.version, "name", m.name)
	}
	return nil
}

// SchemaVersion returns the version recorded in the meta table, or 0 for a
// file that predates versioning.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	return readSchemaVersion(ctx, d.db)
}

func readSchemaVersion(ctx context.Context, q querier) (int, error) {
	var current int
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return current, nil
}

func execAll(stmts ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// addColumn adds column to table unless a previous release already did.
func addColumn(ctx context.Context, tx *sql.Tx, table, column, decl string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name=?`, table, column).Scan(&n); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}
