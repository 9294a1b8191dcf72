package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const bookColumns = `b.id, b.title, b.author, COALESCE(b.isbn,''), COALESCE(b.genre,''),
    COALESCE(b.status,'unread'), b.finished_date, b.reread, b.rating, COALESCE(b.owner_id,0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner, extra ...any) (*Book, error) {
	var (
		b        Book
		status   string
		finished sql.NullTime
		reread   sql.NullBool
		rating   sql.NullInt64
	)
	dest := append([]any{&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Genre, &status, &finished, &reread, &rating, &b.OwnerID}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.Reread = reread.Bool
	if finished.Valid {
		t := finished.Time
		b.FinishedDate = &t
	}
	if rating.Valid {
		r := int(rating.Int64)
		b.Rating = &r
	}
	return &b, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateBookRating(r *int) error {
	if r != nil && (*r < MinBookRating || *r > MaxBookRating) {
		return invalid("rating", fmt.Sprintf("must be between %d and %d", MinBookRating, MaxBookRating))
	}
	return nil
}

// AddBook stores a new book and records the addition in the history, both in
// one transaction.
func (d *Database) AddBook(ctx context.Context, nb NewBook) (int64, error) {
	if err := validateBook(&nb); err != nil {
		return 0, err
	}
	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = d.insertBook(ctx, tx, nb)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func validateBook(nb *NewBook) error {
	nb.Title = strings.TrimSpace(nb.Title)
	nb.Author = strings.TrimSpace(nb.Author)
	nb.ISBN = strings.TrimSpace(nb.ISBN)
	nb.Genre = strings.TrimSpace(nb.Genre)
	if nb.Title == "" {
		return invalid("title", "is required")
	}
	if nb.Author == "" {
		return invalid("author", "is required")
	}
	if nb.Status == "" {
		nb.Status = StatusUnread
	}
	if !nb.Status.Valid() {
		return invalid("status", fmt.Sprintf("%q is not a known status", nb.Status))
	}
	return validateBookRating(nb.Rating)
}

// insertBook writes a validated book and its history entry inside tx.
func (d *Database) insertBook(ctx context.Context, tx *sql.Tx, nb NewBook) (int64, error) {
	var finished *time.Time
	if nb.Status == StatusFinished {
		t := today(d.now())
		finished = &t
	}

	res, err := tx.StmtContext(ctx, d.addBookStmt).ExecContext(ctx,
		nb.Title, nb.Author, nullString(nb.ISBN), nullString(nb.Genre), string(nb.Status),
		nullTimePtr(finished), nb.Reread, nullIntPtr(nb.Rating), nullInt64(nb.OwnerID))
	if err != nil {
		if uniqueViolation(err, "books.isbn") {
			return 0, fmt.Errorf("isbn %s: %w", nb.ISBN, ErrDuplicateISBN)
		}
		return 0, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := d.appendHistory(ctx, tx, ActionAdd, nb.Title, nb.Author); err != nil {
		return 0, err
	}
	return id, nil
}

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := scanBook(d.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("book", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// UpdateBook applies the non-nil fields of u. Setting the status to finished
// stamps today's date unless u carries one; any other status clears it.
func (d *Database) UpdateBook(ctx context.Context, id int64, u BookUpdate) error {
	if u.empty() {
		return invalid("update", "has no fields")
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}

	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return invalid("title", "is required")
		}
		set("title", t)
	}
	if u.Author != nil {
		a := strings.TrimSpace(*u.Author)
		if a == "" {
			return invalid("author", "is required")
		}
		set("author", a)
	}
	if u.ISBN != nil {
		set("isbn", nullString(strings.TrimSpace(*u.ISBN)))
	}
	if u.Genre != nil {
		set("genre", nullString(strings.TrimSpace(*u.Genre)))
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return invalid("status", fmt.Sprintf("%q is not a known status", *u.Status))
		}
		set("status", string(*u.Status))
		switch {
		case *u.Status != StatusFinished:
			set("finished_date", sql.NullTime{})
		case u.FinishedDate != nil:
			set("finished_date", today(*u.FinishedDate))
		default:
			set("finished_date", today(d.now()))
		}
	} else if u.FinishedDate != nil {
		set("finished_date", today(*u.FinishedDate))
	}
	if u.Reread != nil {
		set("reread", *u.Reread)
	}
	switch {
	case u.ClearRating:
		set("rating", sql.NullInt64{})
	case u.Rating != nil:
		if err := validateBookRating(u.Rating); err != nil {
			return err
		}
		set("rating", *u.Rating)
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE books SET `+strings.Join(sets, ", ")+` WHERE id=?`, append(args, id)...)
		if err != nil {
			if uniqueViolation(err, "books.isbn") {
				return fmt.Errorf("isbn %s: %w", *u.ISBN, ErrDuplicateISBN)
			}
			return fmt.Errorf("update book: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("book", id)
		}
		return nil
	})
}

// DeleteBook removes a book together with its reviews and their comments and
// appends a delete entry carrying the former title and author.
func (d *Database) DeleteBook(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var title, author string
		err := tx.QueryRowContext(ctx, `SELECT title, author FROM books WHERE id=?`, id).Scan(&title, &author)
		if err == sql.ErrNoRows {
			return notFound("book", id)
		}
		if err != nil {
			return err
		}

		if err := d.appendHistory(ctx, tx, ActionDelete, title, author); err != nil {
			return err
		}

		stmts := []string{
			`DELETE FROM comments WHERE review_id IN (SELECT id FROM reviews WHERE book_id=?)`,
			`DELETE FROM reviews WHERE book_id=?`,
			`DELETE FROM books WHERE id=?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete book: %w", err)
			}
		}
		return nil
	})
}

// ListBooks returns the books matching f ordered by title. Title and author
// filters are case-insensitive substring matches.
func (d *Database) ListBooks(ctx context.Context, f BookFilter) ([]*Book, error) {
	return listBooks(ctx, d.db, f)
}

func listBooks(ctx context.Context, q querier, f BookFilter) ([]*Book, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.AuthorContains); s != "" {
		conds = append(conds, `instr(fold(b.author), fold(?)) > 0`)
		args = append(args, s)
	}
	if s := strings.TrimSpace(f.TitleContains); s != "" {
		conds = append(conds, `instr(fold(b.title), fold(?)) > 0`)
		args = append(args, s)
	}
	if f.Status != "" {
		conds = append(conds, `COALESCE(b.status,'unread') = ?`)
		args = append(args, string(f.Status))
	}
	if f.OwnerID != 0 {
		conds = append(conds, `b.owner_id = ?`)
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + bookColumns + ` FROM books b`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY fold(b.title), b.title, b.id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the number of books on the shelf.
func (d *Database) CountBooks(ctx context.Context) (int, error) {
	return countBooks(ctx, d.db)
}

func countBooks(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func bookExists(ctx context.Context, tx *sql.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return notFound("book", id)
	}
	return nil
}
