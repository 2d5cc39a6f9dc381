package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
)

// MultiDeadLetterSink writes every batch to each sink in turn. A failing sink
// does not stop the remaining ones.
type MultiDeadLetterSink []repository.DeadLetterSink

// InsertMany implements repository.DeadLetterSink.
func (m MultiDeadLetterSink) InsertMany(ctx context.Context, entries []entity.DeadLetterEntry) error {
	var errs []error
	for i, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.InsertMany(ctx, entries); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
