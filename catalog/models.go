package catalog

import "time"

// Status is the reading state of a book.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusReading  Status = "reading"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusReading, StatusFinished:
		return true
	}
	return false
}

// Action is the kind of change recorded in the book history.
type Action string

const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
)

// Rating bounds. Reviews are 1..5, the manual rating on a book is 0..5.
const (
	MinReviewRating = 1
	MaxReviewRating = 5
	MinBookRating   = 0
	MaxBookRating   = 5
)

// Book is a single entry on the shelf.
// FinishedDate is set when the status becomes finished; Rating is the owner's
// manual rating and is independent of review averages.
type Book struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	ISBN         string     `json:"isbn,omitempty"`
	Genre        string     `json:"genre,omitempty"`
	Status       Status     `json:"status"`
	FinishedDate *time.Time `json:"finished_date,omitempty"`
	Reread       bool       `json:"reread"`
	Rating       *int       `json:"rating,omitempty"`
	OwnerID      int64      `json:"owner_id,omitempty"`
}

// NewBook holds the fields accepted when adding a book.
type NewBook struct {
	Title   string
	Author  string
	ISBN    string
	Genre   string
	Status  Status
	Reread  bool
	Rating  *int
	OwnerID int64
}

// BookUpdate is a partial update; nil fields are left unchanged.
type BookUpdate struct {
	Title        *string
	Author       *string
	ISBN         *string
	Genre        *string
	Status       *Status
	FinishedDate *time.Time
	Reread       *bool
	Rating       *int
	ClearRating  bool
}

func (u BookUpdate) empty() bool {
	return u.Title == nil && u.Author == nil && u.ISBN == nil && u.Genre == nil &&
		u.Status == nil && u.FinishedDate == nil && u.Reread == nil && u.Rating == nil && !u.ClearRating
}

// BookFilter narrows ListBooks. Zero values mean "no restriction".
type BookFilter struct {
	AuthorContains string
	TitleContains  string
	Status         Status
	OwnerID        int64
}

// Review is one user's rating and notes for a book.
type Review struct {
	ID         int64     `json:"id"`
	BookID     int64     `json:"book_id"`
	BookTitle  string    `json:"book_title,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	UserName   string    `json:"user_name"`
	Rating     int       `json:"rating"`
	Text       string    `json:"review_text"`
	ReviewDate time.Time `json:"review_date"`
}

// NewReview holds the fields accepted when adding or upserting a review.
type NewReview struct {
	BookID   int64
	UserID   int64
	UserName string
	Rating   int
	Text     string
}

// Comment is a reply attached to a review.
type Comment struct {
	ID          int64     `json:"id"`
	ReviewID    int64     `json:"review_id"`
	UserID      int64     `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Text        string    `json:"comment_text"`
	CommentDate time.Time `json:"comment_date"`
}

// NewComment holds the fields accepted when adding a comment.
type NewComment struct {
	ReviewID int64
	UserID   int64
	Text     string
}

// User represents a registered account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Don't serialize password hash
}

// HistoryEntry is an append-only audit row for book additions and deletions.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	Action     Action    `json:"action"`
	BookTitle  string    `json:"book_title"`
	BookAuthor string    `json:"book_author,omitempty"`
	ActionDate time.Time `json:"action_date"`
}

// RankedBook pairs a book with its review average. Rated is false when the
// book has no reviews, in which case Average is zero.
type RankedBook struct {
	Book        *Book   `json:"book"`
	Average     float64 `json:"average"`
	Rated       bool    `json:"rated"`
	ReviewCount int     `json:"review_count"`
}

// RatingSummary aggregates the reviews of a single book.
type RatingSummary struct {
	BookID  int64                   `json:"book_id"`
	Average float64                 `json:"average"`
	Count   int                     `json:"count"`
	Stars   [MaxReviewRating + 1]int `json:"stars"` // index = star value, [0] unused
}

// Snapshot represents the complete catalog state for export.
type Snapshot struct {
	ExportedAt    time.Time       `json:"exported_at"`
	SchemaVersion int             `json:"schema_version"`
	Books         []*Book         `json:"books"`
	Reviews       []*Review       `json:"reviews"`
	Comments      []*Comment      `json:"comments"`
	History       []*HistoryEntry `json:"history"`
}
