package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/logging"
)

// StoreUsecase owns the trigger records.
// Every mutation is committed before the call returns.
type StoreUsecase struct {
	index repo.TriggerIndex
	now   func() time.Time
	log   zerolog.Logger
}

// NewStoreUsecase creates a new store usecase
func NewStoreUsecase(index repo.TriggerIndex) *StoreUsecase {
	return &StoreUsecase{
		index: index,
		now:   time.Now,
		log:   logging.Get("store"),
	}
}

// Add stores a new trigger and returns its id
func (uc *StoreUsecase) Add(ctx context.Context, trigger string, matchType domain.MatchType, response string, useAction bool, author string) (int64, error) {
	trigger = domain.NormalizeTrigger(trigger)
	if trigger == "" {
		return 0, fmt.Errorf("%w: trigger is empty", domain.ErrValidation)
	}
	if strings.TrimSpace(response) == "" {
		return 0, fmt.Errorf("%w: response is empty", domain.ErrValidation)
	}
	if !matchType.Valid() {
		return 0, fmt.Errorf("%w: unknown match type %q", domain.ErrValidation, matchType)
	}
	// event records live under the canonical event word
	if matchType.IsEvent() {
		trigger = strings.ToLower(string(matchType))
	}
	if len(domain.IndexTerms(trigger)) == 0 {
		return 0, fmt.Errorf("%w: trigger %q has no searchable words", domain.ErrValidation, trigger)
	}

	rec := &domain.TriggerRecord{
		Trigger:   trigger,
		MatchType: matchType,
		Response:  response,
		UseAction: useAction,
		Author:    domain.NormalizeIdentity(author),
		CreatedAt: uc.now(),
	}

	var id int64
	err := uc.withWriter(ctx, "add", func(w repo.IndexWriter) error {
		var err error
		id, err = w.Add(ctx, rec)
		return err
	})
	if err != nil {
		return 0, err
	}

	uc.log.Info().Int64("id", id).Str("trigger", trigger).Str("type", string(matchType)).Str("author", rec.Author).Msg("Trigger added")
	return id, nil
}

// DeleteByID removes exactly one record
func (uc *StoreUsecase) DeleteByID(ctx context.Context, id int64) error {
	err := uc.withWriter(ctx, "delete", func(w repo.IndexWriter) error {
		return w.DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Int64("id", id).Msg("Trigger deleted")
	return nil
}

// DeleteByTrigger removes every record whose normalized trigger equals text.
// Zero matches is not an error.
func (uc *StoreUsecase) DeleteByTrigger(ctx context.Context, text string) (int64, error) {
	trigger := domain.NormalizeTrigger(text)
	if trigger == "" {
		return 0, fmt.Errorf("%w: trigger is empty", domain.ErrValidation)
	}

	var count int64
	err := uc.withWriter(ctx, "purge", func(w repo.IndexWriter) error {
		var err error
		count, err = w.DeleteByTrigger(ctx, trigger)
		return err
	})
	if err != nil {
		return 0, err
	}
	uc.log.Info().Str("trigger", trigger).Int64("count", count).Msg("Trigger purged")
	return count, nil
}

// Search returns ranked records for q within scope
func (uc *StoreUsecase) Search(ctx context.Context, q domain.Query, scope domain.SearchScope) ([]*domain.TriggerRecord, error) {
	s, err := uc.index.OpenSearcher(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "open searcher", Err: err}
	}
	defer s.Close()

	hits, err := s.Search(ctx, q, scope)
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}
	return hits, nil
}

// Count returns the number of stored records
func (uc *StoreUsecase) Count(ctx context.Context) (int64, error) {
	s, err := uc.index.OpenSearcher(ctx)
	if err != nil {
		return 0, &domain.StoreError{Op: "open searcher", Err: err}
	}
	defer s.Close()

	n, err := s.Count(ctx)
	if err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Backfill assigns provenance to legacy records that have none
func (uc *StoreUsecase) Backfill(ctx context.Context, author string) (int64, error) {
	author = domain.NormalizeIdentity(author)
	if author == "" {
		return 0, fmt.Errorf("%w: author is empty", domain.ErrValidation)
	}
	n, err := uc.index.BackfillProvenance(ctx, author, uc.now())
	if err != nil {
		return 0, &domain.StoreError{Op: "backfill", Err: err}
	}
	uc.log.Info().Str("author", author).Int64("count", n).Msg("Provenance backfilled")
	return n, nil
}

// withWriter runs fn inside one writer session and commits it.
// NotFound passes through unwrapped; any other failure becomes a StoreError.
func (uc *StoreUsecase) withWriter(ctx context.Context, op string, fn func(w repo.IndexWriter) error) error {
	w, err := uc.index.OpenWriter(ctx)
	if err != nil {
		return &domain.StoreError{Op: "open writer", Err: err}
	}

	if err := fn(w); err != nil {
		if rbErr := w.Rollback(); rbErr != nil {
			uc.log.Warn().Err(rbErr).Str("op", op).Msg("Rollback failed")
		}
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.StoreError{Op: op, Err: err}
	}

	if err := w.Commit(); err != nil {
		return &domain.StoreError{Op: "commit", Err: err}
	}
	return nil
}
