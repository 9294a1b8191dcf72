package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Session identifies who is acting. UserID is zero for a guest who only gave
// a display name.
type Session struct {
	UserID   int64
	UserName string
}

// SessionFor returns the session of a logged-in user.
func SessionFor(u *User) Session {
	return Session{UserID: u.ID, UserName: u.Username}
}

// LoggedIn reports whether the session belongs to a registered user.
func (s Session) LoggedIn() bool { return s.UserID != 0 }

// Shelf is a thin façade over the Database that carries the acting user into
// every call and enforces ownership of owned rows.
type Shelf struct {
	db   *Database
	sess Session
}

// Shelf binds the catalog to sess.
func (d *Database) Shelf(sess Session) *Shelf {
	sess.UserName = strings.TrimSpace(sess.UserName)
	return &Shelf{db: d, sess: sess}
}

// Session returns the bound session.
func (s *Shelf) Session() Session { return s.sess }

// ------------------ Book helpers ------------------

// AddBook adds a book owned by the session user (unowned for guests).
func (s *Shelf) AddBook(ctx context.Context, nb NewBook) (int64, error) {
	nb.OwnerID = s.sess.UserID
	return s.db.AddBook(ctx, nb)
}

func (s *Shelf) UpdateBook(ctx context.Context, id int64, u BookUpdate) error {
	if err := s.checkBookOwner(ctx, id); err != nil {
		return err
	}
	return s.db.UpdateBook(ctx, id, u)
}

func (s *Shelf) DeleteBook(ctx context.Context, id int64) error {
	if err := s.checkBookOwner(ctx, id); err != nil {
		return err
	}
	return s.db.DeleteBook(ctx, id)
}

// MyBooks lists the books owned by the session user.
func (s *Shelf) MyBooks(ctx context.Context, f BookFilter) ([]*Book, error) {
	if !s.sess.LoggedIn() {
		return nil, invalid("user", "must be logged in")
	}
	f.OwnerID = s.sess.UserID
	return s.db.ListBooks(ctx, f)
}

// Books without an owner belong to everyone.
func (s *Shelf) checkBookOwner(ctx context.Context, id int64) error {
	b, err := s.db.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if b.OwnerID != 0 && b.OwnerID != s.sess.UserID {
		return fmt.Errorf("book %d: %w", id, ErrForbidden)
	}
	return nil
}

// ------------------ Review helpers ------------------

func (s *Shelf) newReview(bookID int64, rating int, text string) NewReview {
	return NewReview{BookID: bookID, UserID: s.sess.UserID, UserName: s.sess.UserName, Rating: rating, Text: text}
}

func (s *Shelf) AddReview(ctx context.Context, bookID int64, rating int, text string) (int64, error) {
	return s.db.AddReview(ctx, s.newReview(bookID, rating, text))
}

// SaveReview keeps a single review per user and book: the existing one is
// updated in place, otherwise a new one is written. Ownership follows the
// same rule as DeleteReview.
func (s *Shelf) SaveReview(ctx context.Context, bookID int64, rating int, text string) (int64, bool, error) {
	return s.db.UpsertReview(ctx, s.newReview(bookID, rating, text))
}

// MyReview returns the session user's review of the book.
func (s *Shelf) MyReview(ctx context.Context, bookID int64) (*Review, error) {
	return s.db.FindReview(ctx, bookID, s.sess.UserID, s.sess.UserName)
}

// DeleteReview deletes one of the session user's reviews. Reviews written by
// a registered user are matched by id, guest reviews by name.
func (s *Shelf) DeleteReview(ctx context.Context, id int64) error {
	r, err := s.db.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !s.owns(r.UserID, r.UserName) {
		return fmt.Errorf("review %d: %w", id, ErrForbidden)
	}
	return s.db.DeleteReview(ctx, id)
}

func (s *Shelf) owns(userID int64, userName string) bool {
	if userID != 0 {
		return userID == s.sess.UserID
	}
	return userName != "" && userName == s.sess.UserName
}

// ------------------ Comment helpers ------------------

func (s *Shelf) AddComment(ctx context.Context, reviewID int64, text string) (int64, error) {
	if !s.sess.LoggedIn() {
		return 0, invalid("user", "must be logged in to comment")
	}
	return s.db.AddComment(ctx, NewComment{ReviewID: reviewID, UserID: s.sess.UserID, Text: text})
}

func (s *Shelf) DeleteComment(ctx context.Context, id int64) error {
	c, err := s.db.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != s.sess.UserID {
		return fmt.Errorf("comment %d: %w", id, ErrForbidden)
	}
	return s.db.DeleteComment(ctx, id)
}

// ------------------ Utilities ------------------

// Stars renders an average rating as five filled or empty stars.
func Stars(avg float64) string {
	n := int(math.Round(avg))
	if n < 0 {
		n = 0
	}
	if n > MaxReviewRating {
		n = MaxReviewRating
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", MaxReviewRating-n)
}

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	reread := ""
	if b.Reread {
		reread = "✔"
	}
	finished := ""
	if b.FinishedDate != nil {
		finished = b.FinishedDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%-5d %-30s %-25s %-9s %-10s %s", b.ID, truncate(b.Title, 30), truncate(b.Author, 25), b.Status, finished, reread)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
