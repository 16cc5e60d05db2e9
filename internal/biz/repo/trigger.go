package repo

import (
	"context"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// TriggerIndex is the searchable store behind the trigger knowledge base.
// Writers are exclusive; searchers may run concurrently with each other and with a writer.
type TriggerIndex interface {
	// OpenWriter starts an exclusive write session.
	// Callers must finish it with Commit or Rollback.
	OpenWriter(ctx context.Context) (IndexWriter, error)

	// OpenSearcher starts a read session over a consistent snapshot
	OpenSearcher(ctx context.Context) (IndexSearcher, error)

	// BackfillProvenance sets author and creation time on records that lack them
	BackfillProvenance(ctx context.Context, author string, at time.Time) (int64, error)

	Close() error
}

// IndexWriter mutates the index inside one atomic session
type IndexWriter interface {
	// Add inserts a record and returns its assigned id
	Add(ctx context.Context, rec *domain.TriggerRecord) (int64, error)

	// DeleteByID removes one record; domain.ErrNotFound when absent
	DeleteByID(ctx context.Context, id int64) error

	// DeleteByTrigger removes every record whose normalized trigger equals trigger
	DeleteByTrigger(ctx context.Context, trigger string) (int64, error)

	Commit() error
	Rollback() error
}

// IndexSearcher runs ranked queries against a snapshot
type IndexSearcher interface {
	// Search returns hits ordered by relevance, ties broken by id
	Search(ctx context.Context, q domain.Query, scope domain.SearchScope) ([]*domain.TriggerRecord, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)

	Close() error
}
