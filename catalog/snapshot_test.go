package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOnlyFillsEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	seeded, err := db.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	n, err := db.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleBooks), n)

	seeded, err = db.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	n, err = db.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleBooks), n)

	reviews, err := db.ListAllReviews(ctx)
	require.NoError(t, err)
	assert.Len(t, reviews, len(sampleReviews))
}

func TestSeedFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	reviews := append([]sampleReview{}, sampleReviews...)
	reviews = append(reviews, sampleReview{book: 2, user: "Mallory", rating: 9})
	seeded, err := db.seed(ctx, sampleBooks, reviews)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, seeded)

	books := append([]NewBook{}, sampleBooks...)
	books = append(books, NewBook{Title: "Copy", Author: "Someone", ISBN: sampleBooks[0].ISBN})
	_, err = db.seed(ctx, books, nil)
	assert.ErrorIs(t, err, ErrDuplicateISBN)

	n, err := db.CountBooks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	all, err := db.ListAllReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	history, err := db.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	seeded, err = db.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestWriteSnapshot(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t, WithClock(stepClock(time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC))))
	_, err := db.Seed(ctx)
	require.NoError(t, err)

	u := login(t, db, "ivan")
	reviews, err := db.ListAllReviews(ctx)
	require.NoError(t, err)
	_, err = u.AddComment(ctx, reviews[0].ID, "nice")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "shelf.json")
	written, err := db.WriteSnapshot(ctx, path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(raw, &got))

	if diff := cmp.Diff(written, &got); diff != "" {
		t.Fatalf("snapshot on disk differs (-written +read):\n%s", diff)
	}
	assert.Equal(t, schemaVersion, got.SchemaVersion)
	assert.Len(t, got.Books, len(sampleBooks))
	assert.Len(t, got.Reviews, len(sampleReviews))
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "ivan", got.Comments[0].UserName)
	assert.Len(t, got.History, len(sampleBooks))
	assert.NotContains(t, string(raw), "password")
}
