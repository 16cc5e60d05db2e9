package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/logging"
)

// DefaultSearchLimit caps ranked text searches
const DefaultSearchLimit = 10

// maxEditDistance is how far a query term may be from an indexed term
const maxEditDistance = 1

// triggerIndex implements repo.TriggerIndex on sqlite fts5
type triggerIndex struct {
	db    *sql.DB
	limit int
	wmu   sync.Mutex // one writer at a time
	log   zerolog.Logger
}

// NewTriggerIndex creates the trigger index over an opened database
func NewTriggerIndex(db *sql.DB, searchLimit int) repo.TriggerIndex {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &triggerIndex{
		db:    db,
		limit: searchLimit,
		log:   logging.Get("index"),
	}
}

func (x *triggerIndex) OpenWriter(ctx context.Context) (repo.IndexWriter, error) {
	x.wmu.Lock()
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		x.wmu.Unlock()
		return nil, fmt.Errorf("failed to begin write: %w", err)
	}
	return &indexWriter{tx: tx, unlock: x.wmu.Unlock}, nil
}

func (x *triggerIndex) OpenSearcher(ctx context.Context) (repo.IndexSearcher, error) {
	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	return &indexSearcher{tx: tx, limit: x.limit, log: x.log}, nil
}

func (x *triggerIndex) BackfillProvenance(ctx context.Context, author string, at time.Time) (int64, error) {
	x.wmu.Lock()
	defer x.wmu.Unlock()

	res, err := x.db.ExecContext(ctx, `
		UPDATE triggers
		SET author = COALESCE(NULLIF(author, ''), ?), created_at = COALESCE(created_at, ?)
		WHERE author IS NULL OR author = '' OR created_at IS NULL
	`, author, at.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to backfill provenance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	x.log.Info().Int64("count", n).Msg("Backfilled legacy records")
	return n, nil
}

func (x *triggerIndex) Close() error {
	return x.db.Close()
}

// indexWriter is one exclusive write transaction
type indexWriter struct {
	tx     *sql.Tx
	once   sync.Once
	unlock func()
}

func (w *indexWriter) Add(ctx context.Context, rec *domain.TriggerRecord) (int64, error) {
	var author, createdAt interface{}
	if rec.Author != "" {
		author = rec.Author
	}
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.Unix()
	}

	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO triggers (pattern, match_type, response, use_action, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Trigger, string(rec.MatchType), rec.Response, rec.UseAction, author, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trigger: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trigger id: %w", err)
	}
	return id, nil
}

func (w *indexWriter) DeleteByID(ctx context.Context, id int64) error {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trigger %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (w *indexWriter) DeleteByTrigger(ctx context.Context, trigger string) (int64, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM triggers WHERE pattern = ?`, trigger)
	if err != nil {
		return 0, fmt.Errorf("failed to delete triggers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (w *indexWriter) Commit() error {
	defer w.release()
	return w.tx.Commit()
}

func (w *indexWriter) Rollback() error {
	defer w.release()
	err := w.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (w *indexWriter) release() {
	w.once.Do(w.unlock)
}

// indexSearcher reads from one snapshot
type indexSearcher struct {
	tx    *sql.Tx
	limit int
	log   zerolog.Logger
}

const selectTriggerCols = `t.id, t.pattern, t.match_type, t.response, t.use_action, t.author, t.created_at`

func (s *indexSearcher) Search(ctx context.Context, q domain.Query, scope domain.SearchScope) ([]*domain.TriggerRecord, error) {
	// listings return the whole scope; ranked text search is capped
	limit := s.limit
	if scope.Filtered() {
		limit = -1
	}

	if q.Empty() {
		if !scope.Filtered() {
			return nil, nil
		}
		rows, err := s.tx.QueryContext(ctx, `
			SELECT `+selectTriggerCols+`
			FROM triggers t
			WHERE t.match_type = ?
			ORDER BY t.id
			LIMIT ?
		`, string(scope.MatchType), limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list triggers: %w", err)
		}
		defer rows.Close()
		return scanTriggerRecords(rows)
	}

	match, err := s.expandQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	if match == "" {
		return nil, nil
	}
	s.log.Debug().Strs("terms", q.Terms).Str("match", match).Msg("Searching")

	query := `
		SELECT ` + selectTriggerCols + `
		FROM triggers_fts f
		JOIN triggers t ON t.id = f.rowid
		WHERE triggers_fts MATCH ?`
	args := []interface{}{match}
	if scope.Filtered() {
		query += ` AND t.match_type = ?`
		args = append(args, string(scope.MatchType))
	}
	query += `
		ORDER BY f.rank, t.id
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search triggers: %w", err)
	}
	defer rows.Close()
	return scanTriggerRecords(rows)
}

// expandQuery builds an fts5 OR expression from every indexed term within
// edit distance of a query term. Expanded terms share the first character
// of the query term.
func (s *indexSearcher) expandQuery(ctx context.Context, q domain.Query) (string, error) {
	seen := make(map[string]bool)
	var terms []string

	for _, raw := range q.Terms {
		for _, term := range domain.IndexTerms(raw) {
			candidates, err := s.vocabWithPrefix(ctx, firstRune(term))
			if err != nil {
				return "", err
			}
			for _, c := range candidates {
				if seen[c] || !withinDistance(term, c) {
					continue
				}
				seen[c] = true
				terms = append(terms, quoteFTS(c))
			}
		}
	}
	return strings.Join(terms, " OR "), nil
}

func (s *indexSearcher) vocabWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT term FROM triggers_vocab WHERE term GLOB ?`, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (s *indexSearcher) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM triggers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count triggers: %w", err)
	}
	return n, nil
}

func (s *indexSearcher) Close() error {
	err := s.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func withinDistance(term, candidate string) bool {
	d := utf8.RuneCountInString(term) - utf8.RuneCountInString(candidate)
	if d > maxEditDistance || d < -maxEditDistance {
		return false
	}
	return fuzzy.LevenshteinDistance(term, candidate) <= maxEditDistance
}

func firstRune(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

// quoteFTS makes a term safe inside an fts5 MATCH expression
func quoteFTS(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

func scanTriggerRecords(rows *sql.Rows) ([]*domain.TriggerRecord, error) {
	var records []*domain.TriggerRecord
	for rows.Next() {
		var rec domain.TriggerRecord
		var matchType string
		var author sql.NullString
		var createdAt sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Trigger, &matchType, &rec.Response, &rec.UseAction, &author, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		rec.MatchType = domain.MatchType(matchType)
		if author.Valid {
			rec.Author = author.String
		}
		if createdAt.Valid {
			rec.CreatedAt = time.Unix(createdAt.Int64, 0)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate triggers: %w", err)
	}
	return records, nil
}
