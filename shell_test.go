package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/catalog"
	"bookshelf/internal/logger"
)

// script answers prompts from a fixed list and records what was asked.
type script struct {
	answers []string
	asked   []string
}

func (s *script) Prompt(prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *script) PasswordPrompt(prompt string) (string, error) {
	return s.Prompt(prompt)
}

func newTestShell(t *testing.T) (*shell, *script, *bytes.Buffer) {
	t.Helper()
	db, err := catalog.Open(filepath.Join(t.TempDir(), "shell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	in := &script{}
	out := &bytes.Buffer{}
	return newShell(db, in, out), in, out
}

// feed supplies answers for one command and returns what it printed.
func feed(t *testing.T, sh *shell, in *script, out *bytes.Buffer, cmd string, answers ...string) string {
	t.Helper()
	out.Reset()
	in.answers = answers
	require.True(t, sh.exec(context.Background(), cmd))
	assert.Empty(t, in.answers, "unused answers for %q", cmd)
	return out.String()
}

func TestShellBookFlow(t *testing.T) {
	sh, in, out := newTestShell(t)

	got := feed(t, sh, in, out, "add book", "Dune", "Frank Herbert", "9780441013593", "SF", "")
	assert.Contains(t, got, "Added book ID 1.")

	got = feed(t, sh, in, out, "add book", "Dune II", "Frank Herbert", "9780441013593", "", "")
	assert.Contains(t, got, "ISBN 9780441013593 is already on the shelf")

	got = feed(t, sh, in, out, "add book", "", "Nobody", "", "", "")
	assert.Contains(t, got, "Error: title is required")

	got = feed(t, sh, in, out, "list books")
	assert.Contains(t, got, "Dune")
	assert.Contains(t, got, "unread")

	got = feed(t, sh, in, out, "search", "herbert", "")
	assert.Contains(t, got, "Found 1 book(s)")

	got = feed(t, sh, in, out, "edit book", "1", "", "", "", "", "finished", "y", "4")
	assert.Contains(t, got, "Book 1 updated.")
	b, err := sh.db.GetBook(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusFinished, b.Status)
	assert.True(t, b.Reread)
	require.NotNil(t, b.Rating)
	assert.Equal(t, 4, *b.Rating)

	got = feed(t, sh, in, out, "delete book", "1", "no")
	assert.Contains(t, got, "Cancelled.")

	got = feed(t, sh, in, out, "delete book", "1", "yes")
	assert.Contains(t, got, `Deleted "Dune".`)

	got = feed(t, sh, in, out, "history")
	assert.Contains(t, got, "delete")
	assert.Contains(t, got, "Dune / Frank Herbert")
}

func TestShellAccountsAndReviews(t *testing.T) {
	sh, in, out := newTestShell(t)
	feed(t, sh, in, out, "add book", "Book", "Author", "", "", "")

	got := feed(t, sh, in, out, "whoami")
	assert.Contains(t, got, "Not logged in.")

	got = feed(t, sh, in, out, "register", "alice", "secret", "other")
	assert.Contains(t, got, "passwords do not match")

	got = feed(t, sh, in, out, "register", "alice", "secret", "secret")
	assert.Contains(t, got, "Registered 'alice'")

	got = feed(t, sh, in, out, "login", "alice", "wrong")
	assert.Contains(t, got, "invalid username or password")

	got = feed(t, sh, in, out, "login", "alice", "secret")
	assert.Contains(t, got, "Welcome back, alice!")

	got = feed(t, sh, in, out, "review", "1", "3", "fine")
	assert.Contains(t, got, "Review 1 saved.")
	got = feed(t, sh, in, out, "review", "1", "5", "better")
	assert.Contains(t, got, "Review 1 updated.")

	got = feed(t, sh, in, out, "review", "1", "9", "")
	assert.Contains(t, got, "rating must be between 1 and 5")

	got = feed(t, sh, in, out, "comment", "1", "replying to myself")
	assert.Contains(t, got, "Comment 1 added.")

	got = feed(t, sh, in, out, "comments", "1")
	assert.Contains(t, got, "alice")
	assert.Contains(t, got, "replying to myself")

	got = feed(t, sh, in, out, "reviews", "1")
	assert.Contains(t, got, "★★★★★ 5.00 (1 reviews)")
	assert.Contains(t, got, "better")

	feed(t, sh, in, out, "logout")

	// Guests review under a name and cannot comment.
	got = feed(t, sh, in, out, "add review", "Bob", "1", "2", "")
	assert.Contains(t, got, "Review 2 added.")
	got = feed(t, sh, in, out, "comment")
	assert.Contains(t, got, "Please login to comment.")
	got = feed(t, sh, in, out, "delete review", "Bob", "1")
	assert.Contains(t, got, "belongs to another user")

	got = feed(t, sh, in, out, "rank")
	assert.Contains(t, got, "3.50 (2)")
}

func TestShellPasswordsAreTrimmed(t *testing.T) {
	sh, in, out := newTestShell(t)

	got := feed(t, sh, in, out, "register", "dave", "  hunter2 ", "hunter2")
	assert.Contains(t, got, "Registered 'dave'")

	got = feed(t, sh, in, out, "login", "dave", "hunter2")
	assert.Contains(t, got, "Welcome back, dave!")

	got = feed(t, sh, in, out, "login", "dave", "hunter2\t")
	assert.Contains(t, got, "Welcome back, dave!")
}

func TestShellUserAdmin(t *testing.T) {
	sh, in, out := newTestShell(t)

	got := feed(t, sh, in, out, "list users")
	assert.Contains(t, got, "No users registered.")

	feed(t, sh, in, out, "register", "alice", "secret", "secret")
	feed(t, sh, in, out, "register", "bob", "secret", "secret")

	got = feed(t, sh, in, out, "list users")
	assert.Contains(t, got, "Password Set")
	assert.Regexp(t, `1\s+alice\s+Yes`, got)
	assert.Regexp(t, `2\s+bob\s+Yes`, got)

	got = feed(t, sh, in, out, "reset password", "99")
	assert.Contains(t, got, "Error: user with ID 99 not found")

	got = feed(t, sh, in, out, "reset password", "1", "   ")
	assert.Contains(t, got, "Error: password is required")

	got = feed(t, sh, in, out, "reset password", "1", "fresh-start")
	assert.Contains(t, got, "Password successfully reset for alice (ID: 1)")

	got = feed(t, sh, in, out, "login", "alice", "secret")
	assert.Contains(t, got, "invalid username or password")
	got = feed(t, sh, in, out, "login", "alice", "fresh-start")
	assert.Contains(t, got, "Welcome back, alice!")
}

type fakeHistory string

func (h fakeHistory) WriteHistory(w io.Writer) (int, error) {
	n, err := io.WriteString(w, string(h))
	return n, err
}

func TestSaveHistory(t *testing.T) {
	var logs bytes.Buffer
	log, err := logger.New("dev", &logs, "test")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "history")
	saveHistory(path, fakeHistory("list books\n"), log)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "list books\n", string(raw))
	assert.Empty(t, logs.String())

	saveHistory(filepath.Join(t.TempDir(), "missing", "history"), fakeHistory("rank\n"), log)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "could not save shell history")

	logs.Reset()
	saveHistory("", fakeHistory("rank\n"), log)
	assert.Empty(t, logs.String())
}

func TestShellInputEndsMidCommand(t *testing.T) {
	sh, in, out := newTestShell(t)

	feed(t, sh, in, out, "add book", "Only a title")
	n, err := sh.db.CountBooks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestShellExitAndUnknown(t *testing.T) {
	sh, in, out := newTestShell(t)

	got := feed(t, sh, in, out, "dance")
	assert.Contains(t, got, "Unknown command")

	assert.False(t, sh.exec(context.Background(), "exit"))
	assert.False(t, sh.exec(context.Background(), "  QUIT "))
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestCompleter(t *testing.T) {
	assert.Equal(t, []string{"add book", "add review"}, completer("add"))
	assert.Equal(t, []string{"delete book", "delete review", "delete comment"}, completer("DEL"))
	assert.Empty(t, completer("zzz"))
}
