package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// RankByAverageRating lists every book with its review average. Books without
// reviews are included after the rated ones; ties are ordered by title.
func (d *Database) RankByAverageRating(ctx context.Context) ([]*RankedBook, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT `+bookColumns+`, AVG(r.rating), COUNT(r.id)
        FROM books b
        LEFT JOIN reviews r ON r.book_id = b.id
        GROUP BY b.id
        ORDER BY AVG(r.rating) IS NULL, AVG(r.rating) DESC, fold(b.title), b.title, b.id`)
	if err != nil {
		return nil, fmt.Errorf("rank books: %w", err)
	}
	defer rows.Close()

	ranked := []*RankedBook{}
	for rows.Next() {
		var (
			avg   sql.NullFloat64
			count int
		)
		b, err := scanBook(rows, &avg, &count)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, &RankedBook{
			Book:        b,
			Average:     avg.Float64,
			Rated:       avg.Valid,
			ReviewCount: count,
		})
	}
	return ranked, rows.Err()
}

// History returns the add/delete log, newest first.
func (d *Database) History(ctx context.Context) ([]*HistoryEntry, error) {
	return history(ctx, d.db)
}

func history(ctx context.Context, q querier) ([]*HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, COALESCE(action,''), COALESCE(book_title,''),
        COALESCE(book_author,''), action_date FROM book_history ORDER BY action_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		var (
			e      HistoryEntry
			action string
			date   sql.NullTime
		)
		if err := rows.Scan(&e.ID, &action, &e.BookTitle, &e.BookAuthor, &date); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.ActionDate = date.Time
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
