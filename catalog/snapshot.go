package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"
)

// Snapshot collects the whole catalog for export. All tables are read in one
// transaction, so concurrent writers cannot leave the export inconsistent.
func (d *Database) Snapshot(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{ExportedAt: d.now()}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if s.SchemaVersion, err = readSchemaVersion(ctx, tx); err != nil {
			return err
		}
		if s.Books, err = listBooks(ctx, tx, BookFilter{}); err != nil {
			return err
		}
		if s.Reviews, err = listAllReviews(ctx, tx); err != nil {
			return err
		}
		if s.Comments, err = listAllComments(ctx, tx); err != nil {
			return err
		}
		s.History, err = history(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WriteSnapshot exports the catalog as indented JSON to path. The file is
// replaced atomically, so a reader never sees a partial export.
func (d *Database) WriteSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	s, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(buf, '\n'))); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	d.logger.Info("snapshot written", "path", path, "books", len(s.Books))
	return s, nil
}
