package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"bookshelf/catalog"
	"bookshelf/internal/logger"
)

// prompter reads one answer per prompt. *liner.State satisfies it; tests use
// a scripted one.
type prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// terminalPrompter reads passwords with x/term when stdin is a terminal and
// falls back to a plain prompt otherwise (piped input). Both return the raw
// line; the shell trims it.
type terminalPrompter struct {
	*liner.State
}

func (p terminalPrompter) PasswordPrompt(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return p.State.Prompt(prompt)
	}
	return readPassword(prompt)
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return string(bytePassword), nil
}

var shellCommands = []string{
	"add book", "list books", "search", "edit book", "delete book",
	"reviews", "review", "add review", "delete review",
	"comments", "comment", "delete comment",
	"rank", "history",
	"register", "login", "logout", "whoami", "list users", "reset password",
	"help", "exit", "quit",
}

type shell struct {
	db    *catalog.Database
	shelf *catalog.Shelf
	in    prompter
	out   io.Writer
}

func newShell(db *catalog.Database, in prompter, out io.Writer) *shell {
	return &shell{db: db, shelf: db.Shelf(catalog.Session{}), in: in, out: out}
}

func (a *app) historyFile() string {
	if a.cfg.HistoryFile != "" {
		return a.cfg.HistoryFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bookshelf_history")
}

func (a *app) runShell(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completer)

	histPath := a.historyFile()
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(histPath, line, a.logger)

	sh := newShell(db, terminalPrompter{line}, os.Stdout)
	fmt.Fprintln(sh.out, "Welcome to your bookshelf!")
	fmt.Fprintln(sh.out, "Type 'help' for available commands.")

	for {
		input, err := line.Prompt("\n> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !sh.exec(ctx, input) {
			return nil
		}
	}
}

type historyWriter interface {
	WriteHistory(w io.Writer) (int, error)
}

// saveHistory writes the command history to path. Failures only cost the
// history, so they are logged and the shell still exits cleanly.
func saveHistory(path string, h historyWriter, log logger.Logger) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Warn("could not save shell history", "path", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := h.WriteHistory(f); err != nil {
		log.Warn("could not save shell history", "path", path, "error", err)
	}
}

func completer(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			out = append(out, cmd)
		}
	}
	return out
}

// exec runs a single command and reports whether the shell should keep going.
func (s *shell) exec(ctx context.Context, cmd string) bool {
	switch strings.ToLower(strings.Join(strings.Fields(cmd), " ")) {
	case "add book":
		s.handleAddBook(ctx)
	case "list books":
		s.handleListBooks(ctx)
	case "search":
		s.handleSearch(ctx)
	case "edit book":
		s.handleEditBook(ctx)
	case "delete book":
		s.handleDeleteBook(ctx)
	case "reviews":
		s.handleReviews(ctx)
	case "review":
		s.handleSaveReview(ctx)
	case "add review":
		s.handleAddReview(ctx)
	case "delete review":
		s.handleDeleteReview(ctx)
	case "comments":
		s.handleComments(ctx)
	case "comment":
		s.handleComment(ctx)
	case "delete comment":
		s.handleDeleteComment(ctx)
	case "rank":
		s.handleRank(ctx)
	case "history":
		s.handleHistory(ctx)
	case "register":
		s.handleRegister(ctx)
	case "login":
		s.handleLogin(ctx)
	case "logout":
		s.shelf = s.db.Shelf(catalog.Session{})
		fmt.Fprintln(s.out, "Logged out.")
	case "whoami":
		s.handleWhoami()
	case "list users":
		s.handleListUsers(ctx)
	case "reset password":
		s.handleResetPassword(ctx)
	case "help", "?":
		s.printHelp()
	case "exit", "quit":
		fmt.Fprintln(s.out, "Goodbye!")
		return false
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for available commands.")
	}
	return true
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  Books:    add book, list books, search, edit book, delete book")
	fmt.Fprintln(s.out, "  Reviews:  reviews, review, add review, delete review, rank")
	fmt.Fprintln(s.out, "  Comments: comments, comment, delete comment")
	fmt.Fprintln(s.out, "  Account:  register, login, logout, whoami, list users, reset password")
	fmt.Fprintln(s.out, "  System:   history, help, exit")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Tips:")
	fmt.Fprintln(s.out, "  • 'review' keeps one review per user and book; 'add review' always adds a new one")
	fmt.Fprintln(s.out, "  • Press Enter to keep the current value while editing a book")
}

// ask returns the trimmed answer; ok is false when input ended.
func (s *shell) ask(prompt string) (string, bool) {
	answer, err := s.in.Prompt(prompt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(answer), true
}

// askPassword reads a password without echo. Surrounding whitespace is
// dropped whichever way the password was typed.
func (s *shell) askPassword(prompt string) (string, bool) {
	password, err := s.in.PasswordPrompt(prompt)
	if err != nil {
		fmt.Fprintf(s.out, "Error reading password: %v\n", err)
		return "", false
	}
	return strings.TrimSpace(password), true
}

func (s *shell) askID(prompt string) (int64, bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(s.out, "Invalid ID: %s\n", raw)
		return 0, false
	}
	return id, true
}

func (s *shell) askRating(prompt string) (int, bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid rating: %s\n", raw)
		return 0, false
	}
	return n, true
}

func (s *shell) report(err error) {
	if errors.Is(err, catalog.ErrForbidden) {
		fmt.Fprintln(s.out, "Error: that entry belongs to another user")
		return
	}
	fmt.Fprintf(s.out, "Error: %v\n", err)
}

// actor returns the logged-in shelf, or a guest shelf under a name asked for
// on the spot.
func (s *shell) actor() (*catalog.Shelf, bool) {
	if s.shelf.Session().LoggedIn() {
		return s.shelf, true
	}
	name, ok := s.ask("Your name: ")
	if !ok {
		return nil, false
	}
	return s.db.Shelf(catalog.Session{UserName: name}), true
}

// ------------------ Books ------------------

func (s *shell) handleAddBook(ctx context.Context) {
	var nb catalog.NewBook
	var ok bool
	if nb.Title, ok = s.ask("Title: "); !ok {
		return
	}
	if nb.Author, ok = s.ask("Author: "); !ok {
		return
	}
	if nb.ISBN, ok = s.ask("ISBN (optional): "); !ok {
		return
	}
	if nb.Genre, ok = s.ask("Genre (optional): "); !ok {
		return
	}
	status, ok := s.ask("Status [unread/reading/finished] (default unread): ")
	if !ok {
		return
	}
	nb.Status = catalog.Status(strings.ToLower(status))

	id, err := s.shelf.AddBook(ctx, nb)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateISBN) {
			fmt.Fprintf(s.out, "Error: ISBN %s is already on the shelf\n", nb.ISBN)
			return
		}
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Added book ID %d.\n", id)
}

func (s *shell) printBooks(books []*catalog.Book) {
	fmt.Fprintf(s.out, "%-5s %-30s %-25s %-9s %-10s %s\n", "ID", "Title", "Author", "Status", "Finished", "Reread")
	fmt.Fprintln(s.out, strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Fprintln(s.out, catalog.PrettyBook(b))
	}
}

func (s *shell) handleListBooks(ctx context.Context) {
	books, err := s.db.ListBooks(ctx, catalog.BookFilter{})
	if err != nil {
		s.report(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books on the shelf.")
		return
	}
	s.printBooks(books)
}

func (s *shell) handleSearch(ctx context.Context) {
	author, ok := s.ask("Author contains (optional): ")
	if !ok {
		return
	}
	title, ok := s.ask("Title contains (optional): ")
	if !ok {
		return
	}

	books, err := s.db.ListBooks(ctx, catalog.BookFilter{AuthorContains: author, TitleContains: title})
	if err != nil {
		s.report(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books found.")
		return
	}
	fmt.Fprintf(s.out, "Found %d book(s):\n", len(books))
	s.printBooks(books)
}

// editField asks for a new value, showing the current one; blank keeps it.
func (s *shell) editField(label, current string) (*string, bool) {
	raw, ok := s.ask(fmt.Sprintf("%s [%s]: ", label, current))
	if !ok {
		return nil, false
	}
	if raw == "" {
		return nil, true
	}
	return &raw, true
}

func (s *shell) handleEditBook(ctx context.Context) {
	id, ok := s.askID("Book ID: ")
	if !ok {
		return
	}
	b, err := s.db.GetBook(ctx, id)
	if err != nil {
		s.report(err)
		return
	}

	var u catalog.BookUpdate
	if u.Title, ok = s.editField("Title", b.Title); !ok {
		return
	}
	if u.Author, ok = s.editField("Author", b.Author); !ok {
		return
	}
	if u.ISBN, ok = s.editField("ISBN", b.ISBN); !ok {
		return
	}
	if u.Genre, ok = s.editField("Genre", b.Genre); !ok {
		return
	}
	status, ok := s.editField("Status", string(b.Status))
	if !ok {
		return
	}
	if status != nil {
		st := catalog.Status(strings.ToLower(*status))
		u.Status = &st
	}

	reread, ok := s.editField("Reread (y/n)", yesNo(b.Reread))
	if !ok {
		return
	}
	if reread != nil {
		v := strings.HasPrefix(strings.ToLower(*reread), "y")
		u.Reread = &v
	}

	current := "-"
	if b.Rating != nil {
		current = strconv.Itoa(*b.Rating)
	}
	rating, ok := s.editField("Rating 0-5 ('-' clears)", current)
	if !ok {
		return
	}
	if rating != nil {
		if *rating == "-" {
			u.ClearRating = true
		} else {
			n, err := strconv.Atoi(*rating)
			if err != nil {
				fmt.Fprintf(s.out, "Invalid rating: %s\n", *rating)
				return
			}
			u.Rating = &n
		}
	}

	if err := s.shelf.UpdateBook(ctx, id, u); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Book %d updated.\n", id)
}

func yesNo(v bool) string {
	if v {
		return "y"
	}
	return "n"
}

func (s *shell) handleDeleteBook(ctx context.Context) {
	id, ok := s.askID("Book ID: ")
	if !ok {
		return
	}
	b, err := s.db.GetBook(ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	answer, ok := s.ask(fmt.Sprintf("Delete %q with its reviews? (yes/no): ", b.Title))
	if !ok || strings.ToLower(answer) != "yes" {
		fmt.Fprintln(s.out, "Cancelled.")
		return
	}
	if err := s.shelf.DeleteBook(ctx, id); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Deleted %q.\n", b.Title)
}

// ------------------ Reviews ------------------

func (s *shell) handleReviews(ctx context.Context) {
	id, ok := s.askID("Book ID: ")
	if !ok {
		return
	}
	sum, err := s.db.BookRating(ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	reviews, err := s.db.ListReviews(ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	if len(reviews) == 0 {
		fmt.Fprintln(s.out, "No reviews yet.")
		return
	}

	fmt.Fprintf(s.out, "Average %s %.2f (%d reviews)\n", catalog.Stars(sum.Average), sum.Average, sum.Count)
	for stars := catalog.MaxReviewRating; stars >= catalog.MinReviewRating; stars-- {
		fmt.Fprintf(s.out, "  %d★ %s\n", stars, strings.Repeat("█", sum.Stars[stars]))
	}
	fmt.Fprintln(s.out)
	for _, r := range reviews {
		fmt.Fprintf(s.out, "#%d %s %s %s\n", r.ID, catalog.Stars(float64(r.Rating)), r.UserName, r.ReviewDate.Format("2006-01-02"))
		if r.Text != "" {
			fmt.Fprintf(s.out, "    %s\n", r.Text)
		}
	}
}

func (s *shell) askReview() (bookID int64, rating int, text string, ok bool) {
	if bookID, ok = s.askID("Book ID: "); !ok {
		return
	}
	if rating, ok = s.askRating("Rating (1-5): "); !ok {
		return
	}
	text, ok = s.ask("Review (optional): ")
	return
}

func (s *shell) handleSaveReview(ctx context.Context) {
	shelf, ok := s.actor()
	if !ok {
		return
	}
	bookID, rating, text, ok := s.askReview()
	if !ok {
		return
	}
	id, created, err := shelf.SaveReview(ctx, bookID, rating, text)
	if err != nil {
		s.report(err)
		return
	}
	if created {
		fmt.Fprintf(s.out, "Review %d saved.\n", id)
		return
	}
	fmt.Fprintf(s.out, "Review %d updated.\n", id)
}

func (s *shell) handleAddReview(ctx context.Context) {
	shelf, ok := s.actor()
	if !ok {
		return
	}
	bookID, rating, text, ok := s.askReview()
	if !ok {
		return
	}
	id, err := shelf.AddReview(ctx, bookID, rating, text)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Review %d added.\n", id)
}

func (s *shell) handleDeleteReview(ctx context.Context) {
	shelf, ok := s.actor()
	if !ok {
		return
	}
	id, ok := s.askID("Review ID: ")
	if !ok {
		return
	}
	if err := shelf.DeleteReview(ctx, id); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Review %d deleted.\n", id)
}

func (s *shell) handleRank(ctx context.Context) {
	ranked, err := s.db.RankByAverageRating(ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(ranked) == 0 {
		fmt.Fprintln(s.out, "No books on the shelf.")
		return
	}
	for i, r := range ranked {
		score := "no reviews"
		if r.Rated {
			score = fmt.Sprintf("%s %.2f (%d)", catalog.Stars(r.Average), r.Average, r.ReviewCount)
		}
		fmt.Fprintf(s.out, "%2d. %-40.40s %s\n", i+1, r.Book.Title+" / "+r.Book.Author, score)
	}
}

func (s *shell) handleHistory(ctx context.Context) {
	entries, err := s.db.History(ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No history yet.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "%s  %-6s %s", e.ActionDate.Format("2006-01-02"), e.Action, e.BookTitle)
		if e.BookAuthor != "" {
			fmt.Fprintf(s.out, " / %s", e.BookAuthor)
		}
		fmt.Fprintln(s.out)
	}
}

// ------------------ Comments ------------------

func (s *shell) handleComments(ctx context.Context) {
	id, ok := s.askID("Review ID: ")
	if !ok {
		return
	}
	if _, err := s.db.GetReview(ctx, id); err != nil {
		s.report(err)
		return
	}
	comments, err := s.db.ListComments(ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	if len(comments) == 0 {
		fmt.Fprintln(s.out, "No comments.")
		return
	}
	for _, c := range comments {
		fmt.Fprintf(s.out, "#%d %s (%s): %s\n", c.ID, c.UserName, c.CommentDate.Format("2006-01-02"), c.Text)
	}
}

func (s *shell) handleComment(ctx context.Context) {
	if !s.shelf.Session().LoggedIn() {
		fmt.Fprintln(s.out, "Please login to comment.")
		return
	}
	id, ok := s.askID("Review ID: ")
	if !ok {
		return
	}
	text, ok := s.ask("Comment: ")
	if !ok {
		return
	}
	cid, err := s.shelf.AddComment(ctx, id, text)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Comment %d added.\n", cid)
}

func (s *shell) handleDeleteComment(ctx context.Context) {
	id, ok := s.askID("Comment ID: ")
	if !ok {
		return
	}
	if err := s.shelf.DeleteComment(ctx, id); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Comment %d deleted.\n", id)
}

// ------------------ Account ------------------

func (s *shell) handleRegister(ctx context.Context) {
	name, ok := s.ask("Username: ")
	if !ok {
		return
	}
	password, ok := s.askPassword(fmt.Sprintf("Enter password for %s: ", name))
	if !ok {
		return
	}
	confirm, ok := s.askPassword("Confirm password: ")
	if !ok {
		return
	}
	if password != confirm {
		fmt.Fprintln(s.out, "Error: passwords do not match")
		return
	}

	id, err := s.db.Register(ctx, name, password)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Registered '%s' with ID %d. Use 'login' to sign in.\n", strings.TrimSpace(name), id)
}

func (s *shell) handleLogin(ctx context.Context) {
	name, ok := s.ask("Username: ")
	if !ok {
		return
	}
	password, ok := s.askPassword("Password: ")
	if !ok {
		return
	}

	u, err := s.db.Authenticate(ctx, name, password)
	if err != nil {
		s.report(err)
		return
	}
	s.shelf = s.db.Shelf(catalog.SessionFor(u))
	fmt.Fprintf(s.out, "Welcome back, %s!\n", u.Username)
}

func (s *shell) handleWhoami() {
	sess := s.shelf.Session()
	if !sess.LoggedIn() {
		fmt.Fprintln(s.out, "Not logged in.")
		return
	}
	fmt.Fprintf(s.out, "%s (ID: %d)\n", sess.UserName, sess.UserID)
}

func (s *shell) handleListUsers(ctx context.Context) {
	users, err := s.db.ListUsers(ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(users) == 0 {
		fmt.Fprintln(s.out, "No users registered.")
		return
	}

	fmt.Fprintf(s.out, "%-5s %-30s %-15s\n", "ID", "Username", "Password Set")
	fmt.Fprintln(s.out, strings.Repeat("-", 55))
	for _, u := range users {
		passwordStatus := "No"
		if u.PasswordHash != "" {
			passwordStatus = "Yes"
		}
		fmt.Fprintf(s.out, "%-5d %-30s %-15s\n", u.ID, u.Username, passwordStatus)
	}
}

func (s *shell) handleResetPassword(ctx context.Context) {
	id, ok := s.askID("User ID: ")
	if !ok {
		return
	}
	u, err := s.db.GetUser(ctx, id)
	if err != nil {
		fmt.Fprintf(s.out, "Error: user with ID %d not found\n", id)
		return
	}

	password, ok := s.askPassword(fmt.Sprintf("Enter new password for %s (ID: %d): ", u.Username, id))
	if !ok {
		return
	}
	if err := s.db.ResetPassword(ctx, id, password); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Password successfully reset for %s (ID: %d)\n", u.Username, id)
}
