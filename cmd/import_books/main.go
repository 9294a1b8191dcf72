package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"bookshelf/catalog"
)

// importer reads rows of title,author[,isbn[,status]] and adds them to the
// catalog, counting successes and failures per row.
type importer struct {
	db  *catalog.Database
	out io.Writer

	successCount int
	errorCount   int
}

func (im *importer) importCSV(ctx context.Context, r io.Reader, header bool) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading csv: %w", err)
		}
		line++
		if header && line == 1 {
			continue
		}

		if len(rec) < 2 {
			fmt.Fprintf(im.out, "Line %d: ERROR - expected at least title and author\n", line)
			im.errorCount++
			continue
		}
		nb := catalog.NewBook{Title: rec[0], Author: rec[1]}
		if len(rec) > 2 {
			nb.ISBN = rec[2]
		}
		if len(rec) > 3 {
			nb.Status = catalog.Status(strings.ToLower(strings.TrimSpace(rec[3])))
		}

		fmt.Fprintf(im.out, "Importing: %s by %s... ", nb.Title, nb.Author)
		id, err := im.db.AddBook(ctx, nb)
		switch {
		case errors.Is(err, catalog.ErrDuplicateISBN):
			fmt.Fprintf(im.out, "ERROR - ISBN %s already imported\n", nb.ISBN)
			im.errorCount++
		case err != nil:
			fmt.Fprintf(im.out, "ERROR - %v\n", err)
			im.errorCount++
		default:
			fmt.Fprintf(im.out, "SUCCESS (ID: %d)\n", id)
			im.successCount++
		}
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("import_books", pflag.ContinueOnError)
	dbPath := fs.String("db", "bookshelf.db", "database file")
	header := fs.Bool("header", true, "skip the first row")
	fs.SetOutput(stdout)
	fs.Usage = func() {
		fmt.Fprintln(stdout, "usage: import_books [--db file] [--header=false] <books.csv | ->")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one csv file")
	}

	var in io.Reader = os.Stdin
	if name := fs.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("error opening %s: %w", name, err)
		}
		defer f.Close()
		in = f
	}

	db, err := catalog.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	im := &importer{db: db, out: stdout}
	if err := im.importCSV(ctx, in, *header); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nImport complete!\n")
	fmt.Fprintf(stdout, "Successfully imported: %d books\n", im.successCount)
	fmt.Fprintf(stdout, "Errors: %d\n", im.errorCount)

	if im.successCount > 0 {
		books, err := db.ListBooks(ctx, catalog.BookFilter{})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "\nBooks on the shelf:")
		fmt.Fprintf(stdout, "%-5s %-30s %-25s %-9s %-10s %s\n", "ID", "Title", "Author", "Status", "Finished", "Reread")
		fmt.Fprintln(stdout, strings.Repeat("-", 90))
		for _, b := range books {
			fmt.Fprintln(stdout, catalog.PrettyBook(b))
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
