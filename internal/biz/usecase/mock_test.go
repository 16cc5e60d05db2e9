package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
)

// Mock implementations

type mockIndex struct {
	records  map[int64]*domain.TriggerRecord
	nextID   int64
	writeErr error
	commits  int
}

func newMockIndex() *mockIndex {
	return &mockIndex{records: make(map[int64]*domain.TriggerRecord), nextID: 1}
}

func (m *mockIndex) OpenWriter(ctx context.Context) (repo.IndexWriter, error) {
	staged := make(map[int64]*domain.TriggerRecord, len(m.records))
	for id, r := range m.records {
		staged[id] = r
	}
	return &mockWriter{idx: m, staged: staged, nextID: m.nextID}, nil
}

func (m *mockIndex) OpenSearcher(ctx context.Context) (repo.IndexSearcher, error) {
	return &mockSearcher{idx: m}, nil
}

func (m *mockIndex) BackfillProvenance(ctx context.Context, author string, at time.Time) (int64, error) {
	var n int64
	for _, r := range m.records {
		if r.Author == "" || r.CreatedAt.IsZero() {
			r.Author = author
			r.CreatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *mockIndex) Close() error { return nil }

type mockWriter struct {
	idx    *mockIndex
	staged map[int64]*domain.TriggerRecord
	nextID int64
}

func (w *mockWriter) Add(ctx context.Context, rec *domain.TriggerRecord) (int64, error) {
	if w.idx.writeErr != nil {
		return 0, w.idx.writeErr
	}
	cp := *rec
	cp.ID = w.nextID
	w.nextID++
	w.staged[cp.ID] = &cp
	return cp.ID, nil
}

func (w *mockWriter) DeleteByID(ctx context.Context, id int64) error {
	if _, ok := w.staged[id]; !ok {
		return domain.ErrNotFound
	}
	delete(w.staged, id)
	return nil
}

func (w *mockWriter) DeleteByTrigger(ctx context.Context, trigger string) (int64, error) {
	var n int64
	for id, r := range w.staged {
		if r.Trigger == trigger {
			delete(w.staged, id)
			n++
		}
	}
	return n, nil
}

func (w *mockWriter) Commit() error {
	w.idx.records = w.staged
	w.idx.nextID = w.nextID
	w.idx.commits++
	return nil
}

func (w *mockWriter) Rollback() error { return nil }

type mockSearcher struct {
	idx *mockIndex
}

func (s *mockSearcher) Search(ctx context.Context, q domain.Query, scope domain.SearchScope) ([]*domain.TriggerRecord, error) {
	var out []*domain.TriggerRecord
	for _, r := range s.idx.records {
		if scope.Filtered() && r.MatchType != scope.MatchType {
			continue
		}
		if q.Empty() {
			if scope.Filtered() {
				out = append(out, r)
			}
			continue
		}
		for _, t := range q.Terms {
			if strings.Contains(r.Trigger, t) {
				out = append(out, r)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockSearcher) Count(ctx context.Context) (int64, error) {
	return int64(len(s.idx.records)), nil
}

func (s *mockSearcher) Close() error { return nil }

type mockSettings struct {
	values map[string]string
	setErr error
}

func newMockSettings() *mockSettings {
	return &mockSettings{values: make(map[string]string)}
}

func (m *mockSettings) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettings) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

var errDiskFull = errors.New("disk full")
