package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankByAverageRating(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	low := mustAddBook(t, db, "Low", "A", "")
	unrated := mustAddBook(t, db, "Aardvark Unrated", "B", "")
	highB := mustAddBook(t, db, "High B", "C", "")
	highA := mustAddBook(t, db, "High A", "D", "")

	add := func(book int64, user string, rating int) {
		t.Helper()
		_, err := db.AddReview(ctx, NewReview{BookID: book, UserName: user, Rating: rating})
		require.NoError(t, err)
	}
	add(low, "u1", 1)
	add(low, "u2", 2)
	add(highB, "u1", 5)
	add(highB, "u2", 4)
	add(highA, "u1", 4)
	add(highA, "u2", 5)

	ranked, err := db.RankByAverageRating(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	order := make([]int64, len(ranked))
	for i, r := range ranked {
		order[i] = r.Book.ID
	}
	assert.Equal(t, []int64{highA, highB, low, unrated}, order)

	assert.InDelta(t, 4.5, ranked[0].Average, 1e-9)
	assert.True(t, ranked[0].Rated)
	assert.Equal(t, 2, ranked[0].ReviewCount)
	assert.InDelta(t, 1.5, ranked[2].Average, 1e-9)

	last := ranked[3]
	assert.False(t, last.Rated)
	assert.Zero(t, last.ReviewCount)
	assert.Zero(t, last.Average)
}

func TestRankByAverageRatingTiesIgnoreCase(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	zebra := mustAddBook(t, db, "Zebra", "A", "")
	apple := mustAddBook(t, db, "apple", "B", "")
	mango := mustAddBook(t, db, "mango", "C", "")
	for _, id := range []int64{zebra, apple} {
		_, err := db.AddReview(ctx, NewReview{BookID: id, UserName: "u1", Rating: 4})
		require.NoError(t, err)
	}

	ranked, err := db.RankByAverageRating(ctx)
	require.NoError(t, err)
	order := make([]int64, len(ranked))
	for i, r := range ranked {
		order[i] = r.Book.ID
	}
	assert.Equal(t, []int64{apple, zebra, mango}, order)
}

func TestRankByAverageRatingEmpty(t *testing.T) {
	db := tempDB(t)
	ranked, err := db.RankByAverageRating(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	db := tempDB(t, WithClock(stepClock(start)))

	first := mustAddBook(t, db, "First", "A", "")
	mustAddBook(t, db, "Second", "B", "")
	require.NoError(t, db.DeleteBook(ctx, first))

	history, err := db.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, ActionDelete, history[0].Action)
	assert.Equal(t, "First", history[0].BookTitle)
	assert.Equal(t, ActionAdd, history[1].Action)
	assert.Equal(t, "Second", history[1].BookTitle)
	assert.Equal(t, ActionAdd, history[2].Action)
	assert.Equal(t, "First", history[2].BookTitle)
	assert.True(t, history[0].ActionDate.After(history[2].ActionDate))
}
