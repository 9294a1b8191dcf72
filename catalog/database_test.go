package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T, opts ...Option) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"), opts...)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func mustAddBook(t *testing.T, db *Database, title, author, isbn string) int64 {
	t.Helper()
	id, err := db.AddBook(context.Background(), NewBook{Title: title, Author: author, ISBN: isbn})
	if err != nil {
		t.Fatalf("add book %q: %v", title, err)
	}
	return id
}

func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shelf.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("want schema version %d, got %d", schemaVersion, v)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelf.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustAddBook(t, db, "Kept", "Author", "111")
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	books, err := db.ListBooks(context.Background(), BookFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Kept" {
		t.Fatalf("expected the book to survive reopening, got %+v", books)
	}
}

// TestMigrateLegacyFile opens a file written by the first releases: no meta
// table, no rating/genre/owner columns, Japanese status labels, an empty
// ISBN and history rows without an author.
func TestMigrateLegacyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	legacy := []string{
		`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author TEXT NOT NULL,
            isbn TEXT UNIQUE, status TEXT DEFAULT '未読', finished_date DATE, reread BOOLEAN DEFAULT 0)`,
		`CREATE TABLE reviews (id INTEGER PRIMARY KEY, book_id INTEGER, user_name TEXT,
            rating INTEGER CHECK(rating BETWEEN 1 AND 5), review_text TEXT, review_date DATE DEFAULT CURRENT_DATE,
            FOREIGN KEY (book_id) REFERENCES books(id))`,
		`CREATE TABLE book_history (id INTEGER PRIMARY KEY, action TEXT, book_title TEXT, action_date DATE DEFAULT CURRENT_DATE)`,
		`INSERT INTO books (title, author, isbn) VALUES ('Norwegian Wood', 'Haruki Murakami', '')`,
		`INSERT INTO books (title, author, isbn, status, finished_date) VALUES ('Kafka on the Shore', 'Haruki Murakami', '978', '読了', '2024-03-01')`,
		`INSERT INTO reviews (book_id, user_name, rating, review_text) VALUES (1, 'Alice', 4, 'good')`,
		`INSERT INTO book_history (action, book_title, action_date) VALUES ('追加', 'Norwegian Wood', '2024-01-01')`,
	}
	for _, stmt := range legacy {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("legacy setup %q: %v", stmt, err)
		}
	}
	raw.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	defer db.Close()

	books, err := db.ListBooks(ctx, BookFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("want 2 books, got %d", len(books))
	}
	kafka, norwegian := books[0], books[1]
	if norwegian.Status != StatusUnread || norwegian.ISBN != "" || norwegian.Rating != nil {
		t.Fatalf("unexpected migrated book: %+v", norwegian)
	}
	if kafka.Status != StatusFinished || kafka.FinishedDate == nil || kafka.FinishedDate.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("unexpected migrated finished book: %+v", kafka)
	}

	history, err := db.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Action != ActionAdd || history[0].BookAuthor != "" {
		t.Fatalf("unexpected migrated history: %+v", history)
	}

	// The old empty ISBN no longer blocks books without one.
	if _, err := db.AddBook(ctx, NewBook{Title: "No ISBN", Author: "Anon"}); err != nil {
		t.Fatalf("add after migration: %v", err)
	}

	rating := 3
	if err := db.UpdateBook(ctx, norwegian.ID, BookUpdate{Rating: &rating}); err != nil {
		t.Fatalf("rating column should exist after migration: %v", err)
	}

	reviews, err := db.ListReviews(ctx, norwegian.ID)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].UserName != "Alice" || reviews[0].UserID != 0 {
		t.Fatalf("unexpected migrated reviews: %+v", reviews)
	}
}

// TestMigrateLendingLibraryFile opens a file from the lending-library variant,
// whose books table has an availability flag instead of reading state and
// whose history already requires an author.
func TestMigrateLendingLibraryFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	legacy := []string{
		`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author TEXT NOT NULL,
            isbn TEXT UNIQUE, available BOOLEAN DEFAULT 1)`,
		`CREATE TABLE reviews (id INTEGER PRIMARY KEY, book_id INTEGER, user_name TEXT,
            rating INTEGER CHECK(rating >= 1 AND rating <= 5), review_text TEXT, review_date DATE DEFAULT CURRENT_DATE,
            FOREIGN KEY (book_id) REFERENCES books (id))`,
		`CREATE TABLE book_history (id INTEGER PRIMARY KEY, action TEXT NOT NULL, book_title TEXT NOT NULL,
            book_author TEXT NOT NULL, action_date DATE DEFAULT CURRENT_DATE)`,
		`INSERT INTO books (title, author, isbn, available) VALUES ('The Little Prince', 'Antoine de Saint-Exupéry', '9782070612758', 0)`,
		`INSERT INTO reviews (book_id, user_name, rating, review_text) VALUES (1, 'Bob', 5, 'timeless')`,
		`INSERT INTO book_history (action, book_title, book_author, action_date) VALUES ('add', 'The Little Prince', 'Antoine de Saint-Exupéry', '2024-01-01')`,
	}
	for _, stmt := range legacy {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("legacy setup %q: %v", stmt, err)
		}
	}
	raw.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	defer db.Close()

	b, err := db.GetBook(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != StatusUnread || b.FinishedDate != nil || b.Reread || b.ISBN != "9782070612758" {
		t.Fatalf("unexpected migrated book: %+v", b)
	}

	if err := db.UpdateBook(ctx, b.ID, BookUpdate{Status: statusPtr(StatusFinished)}); err != nil {
		t.Fatalf("status column should exist after migration: %v", err)
	}
	b, err = db.GetBook(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != StatusFinished || b.FinishedDate == nil {
		t.Fatalf("want finished book with a date, got %+v", b)
	}

	id := mustAddBook(t, db, "Night Flight", "Antoine de Saint-Exupéry", "")
	if err := db.DeleteBook(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	history, err := db.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 || history[0].Action != ActionDelete || history[0].BookAuthor != "Antoine de Saint-Exupéry" {
		t.Fatalf("unexpected history: %+v", history)
	}

	reviews, err := db.ListReviews(ctx, 1)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].UserName != "Bob" {
		t.Fatalf("unexpected migrated reviews: %+v", reviews)
	}
}

func statusPtr(s Status) *Status { return &s }

func TestFailedWriteLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	mustAddBook(t, db, "First", "A", "isbn-1")

	_, err := db.AddBook(ctx, NewBook{Title: "Second", Author: "B", ISBN: "isbn-1"})
	if !errors.Is(err, ErrDuplicateISBN) {
		t.Fatalf("want ErrDuplicateISBN, got %v", err)
	}

	history, err := db.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("want 1 history entry, got %d", len(history))
	}
}
