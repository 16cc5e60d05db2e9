package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

func newTestStore() (*StoreUsecase, *mockIndex) {
	idx := newMockIndex()
	uc := NewStoreUsecase(idx)
	uc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return uc, idx
}

func TestStoreAddAndSearchRoundTrip(t *testing.T) {
	uc, idx := newTestStore()
	ctx := context.Background()

	id, err := uc.Add(ctx, "Good  Morning", domain.MatchAll, "morning {who}!", false, "alice")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected id 1, got %d", id)
	}
	if idx.commits != 1 {
		t.Errorf("Expected 1 commit, got %d", idx.commits)
	}

	hits, err := uc.Search(ctx, BuildQuery("morning everyone"), domain.AllTriggers())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].Trigger != "good morning" {
		t.Errorf("Expected normalized trigger 'good morning', got %q", hits[0].Trigger)
	}
	if hits[0].Response != "morning {who}!" {
		t.Errorf("Expected response to round-trip, got %q", hits[0].Response)
	}
	if hits[0].Author != "alice" {
		t.Errorf("Expected author alice, got %q", hits[0].Author)
	}
	if !hits[0].HasProvenance() {
		t.Error("Expected new record to carry provenance")
	}
}

func TestStoreAddValidation(t *testing.T) {
	uc, idx := newTestStore()
	ctx := context.Background()

	tests := []struct {
		name      string
		trigger   string
		matchType domain.MatchType
		response  string
	}{
		{"empty trigger", "   ", domain.MatchAll, "hi"},
		{"empty response", "hello", domain.Literal, "  "},
		{"bad type", "hello", domain.MatchType("BOGUS"), "hi"},
		{"punctuation only", "...", domain.MatchAll, "hi"},
		{"symbols only", "!!! ?", domain.Literal, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Add(ctx, tt.trigger, tt.matchType, tt.response, false, "alice")
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
	if len(idx.records) != 0 {
		t.Errorf("Expected no records, got %d", len(idx.records))
	}
}

func TestStoreAddCanonicalizesEventTriggers(t *testing.T) {
	uc, idx := newTestStore()

	if _, err := uc.Add(context.Background(), "someone arrives", domain.Join, "welcome {who}", false, "alice"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := idx.records[1].Trigger; got != "join" {
		t.Errorf("Expected join record stored under %q, got %q", "join", got)
	}
}

func TestStoreAddWrapsIndexFailure(t *testing.T) {
	uc, idx := newTestStore()
	idx.writeErr = errDiskFull

	_, err := uc.Add(context.Background(), "hello", domain.MatchAll, "hi", false, "alice")
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected StoreError, got %v", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("Expected cause to be preserved, got %v", err)
	}
	if idx.commits != 0 {
		t.Errorf("Expected no commit, got %d", idx.commits)
	}
}

func TestStoreDeleteByIDNotFound(t *testing.T) {
	uc, idx := newTestStore()
	ctx := context.Background()
	if _, err := uc.Add(ctx, "hello", domain.MatchAll, "hi", false, "alice"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := uc.DeleteByID(ctx, 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if len(idx.records) != 1 {
		t.Errorf("Expected store size unchanged at 1, got %d", len(idx.records))
	}

	if err := uc.DeleteByID(ctx, 1); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if len(idx.records) != 0 {
		t.Errorf("Expected empty store, got %d", len(idx.records))
	}
}

func TestStoreDeleteByTrigger(t *testing.T) {
	uc, idx := newTestStore()
	ctx := context.Background()
	for _, trig := range []string{"foo", "foo", "foo bar", "bar"} {
		if _, err := uc.Add(ctx, trig, domain.MatchAll, "r", false, "alice"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	n, err := uc.DeleteByTrigger(ctx, "FOO")
	if err != nil {
		t.Fatalf("DeleteByTrigger failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted, got %d", n)
	}
	if len(idx.records) != 2 {
		t.Errorf("Expected 2 remaining, got %d", len(idx.records))
	}
	for _, r := range idx.records {
		if r.Trigger == "foo" {
			t.Errorf("Expected all 'foo' records gone, found id %d", r.ID)
		}
	}

	n, err = uc.DeleteByTrigger(ctx, "nothing here")
	if err != nil {
		t.Fatalf("Expected no error on zero matches, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 deleted, got %d", n)
	}
}

func TestStoreBackfill(t *testing.T) {
	uc, idx := newTestStore()
	idx.records[1] = &domain.TriggerRecord{ID: 1, Trigger: "old", MatchType: domain.MatchAll, Response: "r"}
	idx.records[2] = &domain.TriggerRecord{ID: 2, Trigger: "new", MatchType: domain.MatchAll, Response: "r", Author: "bob", CreatedAt: time.Now()}

	n, err := uc.Backfill(context.Background(), "Elizacat")
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 record backfilled, got %d", n)
	}
	if idx.records[1].Author != "elizacat" {
		t.Errorf("Expected author elizacat, got %q", idx.records[1].Author)
	}
	if idx.records[2].Author != "bob" {
		t.Errorf("Expected existing author kept, got %q", idx.records[2].Author)
	}
}
