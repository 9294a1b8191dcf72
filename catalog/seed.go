package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

var sampleBooks = []NewBook{
	{Title: "Harry Potter and the Philosopher's Stone", Author: "J.K. Rowling", ISBN: "9780439708180"},
	{Title: "Norwegian Wood", Author: "Haruki Murakami", ISBN: "9784103534226"},
	{Title: "The Little Prince", Author: "Antoine de Saint-Exupéry", ISBN: "9782070612758"},
}

type sampleReview struct {
	book   int // index into the seeded books
	user   string
	rating int
	text   string
}

var sampleReviews = []sampleReview{
	{0, "Alice", 5, "Completely absorbed by the wizarding world."},
	{0, "Bob", 4, "Fun, if a little long."},
	{1, "Alice", 4, "A story that stays with you."},
}

// Seed fills an empty catalog with a few sample books and reviews. It does
// nothing and returns false when any book already exists. Either everything
// is written or nothing is.
func (d *Database) Seed(ctx context.Context) (bool, error) {
	return d.seed(ctx, sampleBooks, sampleReviews)
}

func (d *Database) seed(ctx context.Context, books []NewBook, reviews []sampleReview) (bool, error) {
	seeded := false
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		n, err := countBooks(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		ids := make([]int64, len(books))
		for i, nb := range books {
			if err := validateBook(&nb); err != nil {
				return fmt.Errorf("seed %q: %w", nb.Title, err)
			}
			if ids[i], err = d.insertBook(ctx, tx, nb); err != nil {
				return fmt.Errorf("seed %q: %w", nb.Title, err)
			}
		}
		for _, r := range reviews {
			nr := NewReview{BookID: ids[r.book], UserName: r.user, Rating: r.rating, Text: r.text}
			if err := validateReview(&nr); err != nil {
				return fmt.Errorf("seed review: %w", err)
			}
			if _, err := d.insertReview(ctx, tx, nr); err != nil {
				return fmt.Errorf("seed review: %w", err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		d.logger.Info("catalog seeded", "books", len(books), "reviews", len(reviews))
	}
	return seeded, nil
}
