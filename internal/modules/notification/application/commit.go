package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

// Committer is satisfied by *sql.Tx and *sqlx.Tx.
type Committer interface {
	Commit() error
}

// CommitThenSubmit commits the producer's transaction and only then hands
// its events to the sink, so a rolled back change never notifies anyone.
// Submission errors are returned after the commit has succeeded; the caller
// should log them rather than report the domain operation as failed.
func CommitThenSubmit(ctx context.Context, tx Committer, sink EventSink, events ...domain.Event) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	var errs []error
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if err := sink.Submit(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("submit %s: %w", ev.Kind(), err))
		}
	}
	return errors.Join(errs...)
}
