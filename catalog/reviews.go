package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const reviewColumns = `r.id, COALESCE(r.book_id,0), COALESCE(b.title,''), COALESCE(r.user_id,0),
    COALESCE(r.user_name,''), COALESCE(r.rating,0), COALESCE(r.review_text,''), r.review_date`

const reviewFrom = ` FROM reviews r LEFT JOIN books b ON b.id = r.book_id`

func scanReview(row rowScanner) (*Review, error) {
	var (
		r    Review
		date sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.BookID, &r.BookTitle, &r.UserID, &r.UserName, &r.Rating, &r.Text, &date); err != nil {
		return nil, err
	}
	r.ReviewDate = date.Time
	return &r, nil
}

func validateReview(nr *NewReview) error {
	nr.UserName = strings.TrimSpace(nr.UserName)
	nr.Text = strings.TrimSpace(nr.Text)
	if nr.UserName == "" {
		return invalid("user_name", "is required")
	}
	if nr.Rating < MinReviewRating || nr.Rating > MaxReviewRating {
		return invalid("rating", fmt.Sprintf("must be between %d and %d", MinReviewRating, MaxReviewRating))
	}
	return nil
}

func (d *Database) insertReview(ctx context.Context, tx *sql.Tx, nr NewReview) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO reviews(book_id,user_id,user_name,rating,review_text,review_date)
        VALUES(?,?,?,?,?,?)`, nr.BookID, nullInt64(nr.UserID), nr.UserName, nr.Rating, nr.Text, d.now())
	if err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}
	return res.LastInsertId()
}

// AddReview always inserts a new review, even if the user already reviewed
// the book. Use UpsertReview to keep one review per user and book.
func (d *Database) AddReview(ctx context.Context, nr NewReview) (int64, error) {
	if err := validateReview(&nr); err != nil {
		return 0, err
	}
	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := bookExists(ctx, tx, nr.BookID); err != nil {
			return err
		}
		var err error
		id, err = d.insertReview(ctx, tx, nr)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// authoredBy matches the reviews a writer owns: rows carrying their user id,
// and guest rows under their name. Rows of registered users never match a
// guest by name alone. The writer's own rows sort first.
const authoredBy = `(r.user_id=? OR (r.user_id IS NULL AND r.user_name=?))`

const authoredOrder = ` ORDER BY r.user_id IS NULL, r.review_date DESC, r.id DESC LIMIT 1`

// UpsertReview updates the writer's newest review of the book in place
// (rating, text and date) or inserts one when none exists. created reports
// which happened. A logged-in writer takes over a guest review under the same
// name.
func (d *Database) UpsertReview(ctx context.Context, nr NewReview) (id int64, created bool, err error) {
	if err := validateReview(&nr); err != nil {
		return 0, false, err
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if err := bookExists(ctx, tx, nr.BookID); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `SELECT r.id FROM reviews r WHERE r.book_id=? AND `+authoredBy+authoredOrder,
			nr.BookID, nullInt64(nr.UserID), nr.UserName).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			created = true
			id, err = d.insertReview(ctx, tx, nr)
			return err
		case err != nil:
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE reviews SET rating=?, review_text=?, review_date=?,
            user_id=COALESCE(?, user_id) WHERE id=?`, nr.Rating, nr.Text, d.now(), nullInt64(nr.UserID), id)
		if err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// FindReview returns the newest review of the book written by the given user,
// or by a guest under userName when userID is zero.
func (d *Database) FindReview(ctx context.Context, bookID, userID int64, userName string) (*Review, error) {
	userName = strings.TrimSpace(userName)
	r, err := scanReview(d.db.QueryRowContext(ctx, `SELECT `+reviewColumns+reviewFrom+`
        WHERE r.book_id=? AND `+authoredBy+authoredOrder, bookID, nullInt64(userID), userName))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review of book %d by %s: %w", bookID, userName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find review: %w", err)
	}
	return r, nil
}

// GetReview fetches a single review.
func (d *Database) GetReview(ctx context.Context, id int64) (*Review, error) {
	r, err := scanReview(d.db.QueryRowContext(ctx, `SELECT `+reviewColumns+reviewFrom+` WHERE r.id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("review", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return r, nil
}

// ListReviews returns the reviews of one book, newest first.
func (d *Database) ListReviews(ctx context.Context, bookID int64) ([]*Review, error) {
	return queryReviews(ctx, d.db, `SELECT `+reviewColumns+reviewFrom+`
        WHERE r.book_id=? ORDER BY r.review_date DESC, r.id DESC`, bookID)
}

// ListAllReviews returns every review, newest first.
func (d *Database) ListAllReviews(ctx context.Context) ([]*Review, error) {
	return listAllReviews(ctx, d.db)
}

func listAllReviews(ctx context.Context, q querier) ([]*Review, error) {
	return queryReviews(ctx, q, `SELECT `+reviewColumns+reviewFrom+` ORDER BY r.review_date DESC, r.id DESC`)
}

func queryReviews(ctx context.Context, q querier, query string, args ...any) ([]*Review, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// DeleteReview removes a review and all comments on it.
func (d *Database) DeleteReview(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE review_id=?`, id); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("review", id)
		}
		return nil
	})
}

// BookRating summarises the reviews of one book.
func (d *Database) BookRating(ctx context.Context, bookID int64) (RatingSummary, error) {
	sum := RatingSummary{BookID: bookID}
	if _, err := d.GetBook(ctx, bookID); err != nil {
		return sum, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT rating, COUNT(*) FROM reviews
        WHERE book_id=? AND rating BETWEEN ? AND ? GROUP BY rating`, bookID, MinReviewRating, MaxReviewRating)
	if err != nil {
		return sum, fmt.Errorf("book rating: %w", err)
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var stars, n int
		if err := rows.Scan(&stars, &n); err != nil {
			return sum, err
		}
		sum.Stars[stars] = n
		sum.Count += n
		total += stars * n
	}
	if err := rows.Err(); err != nil {
		return sum, err
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}
