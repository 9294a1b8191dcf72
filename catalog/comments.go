package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const commentSelect = `SELECT c.id, c.review_id, c.user_id, COALESCE(u.username,''), c.comment_text, c.comment_date
    FROM comments c LEFT JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.ReviewID, &c.UserID, &c.UserName, &c.Text, &c.CommentDate); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddComment attaches a comment by a registered user to an existing review.
func (d *Database) AddComment(ctx context.Context, nc NewComment) (int64, error) {
	nc.Text = strings.TrimSpace(nc.Text)
	if nc.Text == "" {
		return 0, invalid("comment_text", "is required")
	}
	if nc.UserID == 0 {
		return 0, invalid("user", "must be logged in to comment")
	}

	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reviews WHERE id=?)`, nc.ReviewID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return notFound("review", nc.ReviewID)
		}
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=?)`, nc.UserID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return notFound("user", nc.UserID)
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO comments(review_id,user_id,comment_text,comment_date) VALUES(?,?,?,?)`,
			nc.ReviewID, nc.UserID, nc.Text, d.now())
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetComment fetches a single comment.
func (d *Database) GetComment(ctx context.Context, id int64) (*Comment, error) {
	c, err := scanComment(d.db.QueryRowContext(ctx, commentSelect+` WHERE c.id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("comment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns the comments on a review in the order they were made.
func (d *Database) ListComments(ctx context.Context, reviewID int64) ([]*Comment, error) {
	return queryComments(ctx, d.db, commentSelect+` WHERE c.review_id=? ORDER BY c.comment_date, c.id`, reviewID)
}

func listAllComments(ctx context.Context, q querier) ([]*Comment, error) {
	return queryComments(ctx, q, commentSelect+` ORDER BY c.id`)
}

func queryComments(ctx context.Context, q querier, query string, args ...any) ([]*Comment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a single comment.
func (d *Database) DeleteComment(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("comment", id)
		}
		return nil
	})
}
