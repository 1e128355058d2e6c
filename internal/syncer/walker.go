package syncer

import (
	"context"
	"fmt"

	"storebridge/internal/domain"
	"storebridge/internal/models"
)

// Walker drives pagination over the upstream customer collection. It
// holds no retry logic: a transport failure on one page propagates to
// the caller as ErrFetchFailed and the walker does not auto-resume.
type Walker struct {
	source   domain.PageSource
	pageSize int
}

func NewWalker(source domain.PageSource, pageSize int) *Walker {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &Walker{source: source, pageSize: pageSize}
}

// NextBatch fetches the next page. A nil cursor means "from the start".
// The batch order is exactly the source's order; the returned count may
// be smaller than the page size when the source caps it.
func (w *Walker) NextBatch(ctx context.Context, cursor *models.PageCursor) ([]models.CustomerRecord, models.PageCursor, error) {
	records, next, err := w.source.NextPage(ctx, cursor, w.pageSize)
	if err != nil {
		return nil, models.PageCursor{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return records, next, nil
}

// Exhausted reports whether iteration must stop after this batch.
// An empty batch ends the walk even when the cursor still claims more
// pages; that guards against sources that signal more-pages but return
// zero rows, which would otherwise loop forever.
func Exhausted(batch []models.CustomerRecord, cursor models.PageCursor) bool {
	return len(batch) == 0 || !cursor.HasMore
}
