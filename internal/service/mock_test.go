package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/repo"
	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/conf"
)

// Mock implementations

type mockIndex struct {
	mu      sync.Mutex
	records map[int64]*domain.TriggerRecord
	nextID  int64
	writes  int
}

func newMockIndex() *mockIndex {
	return &mockIndex{records: make(map[int64]*domain.TriggerRecord), nextID: 1}
}

func (m *mockIndex) OpenWriter(ctx context.Context) (repo.IndexWriter, error) {
	m.mu.Lock()
	return &mockWriter{idx: m}, nil
}

func (m *mockIndex) OpenSearcher(ctx context.Context) (repo.IndexSearcher, error) {
	return &mockSearcher{idx: m}, nil
}

func (m *mockIndex) BackfillProvenance(ctx context.Context, author string, at time.Time) (int64, error) {
	return 0, nil
}

func (m *mockIndex) Close() error { return nil }

func (m *mockIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockWriter mutates in place while holding the index lock
type mockWriter struct {
	idx  *mockIndex
	once sync.Once
}

func (w *mockWriter) Add(ctx context.Context, rec *domain.TriggerRecord) (int64, error) {
	cp := *rec
	cp.ID = w.idx.nextID
	w.idx.nextID++
	w.idx.records[cp.ID] = &cp
	w.idx.writes++
	return cp.ID, nil
}

func (w *mockWriter) DeleteByID(ctx context.Context, id int64) error {
	if _, ok := w.idx.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(w.idx.records, id)
	w.idx.writes++
	return nil
}

func (w *mockWriter) DeleteByTrigger(ctx context.Context, trigger string) (int64, error) {
	var n int64
	for id, r := range w.idx.records {
		if r.Trigger == trigger {
			delete(w.idx.records, id)
			n++
		}
	}
	w.idx.writes++
	return n, nil
}

func (w *mockWriter) Commit() error {
	w.once.Do(w.idx.mu.Unlock)
	return nil
}

func (w *mockWriter) Rollback() error {
	w.once.Do(w.idx.mu.Unlock)
	return nil
}

type mockSearcher struct {
	idx *mockIndex
}

func (s *mockSearcher) Search(ctx context.Context, q domain.Query, scope domain.SearchScope) ([]*domain.TriggerRecord, error) {
	s.idx.mu.Lock()
	defer s.idx.mu.Unlock()

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
	return int64(s.idx.size()), nil
}

func (s *mockSearcher) Close() error { return nil }

type mockSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockSettings() *mockSettings {
	return &mockSettings{values: make(map[string]string)}
}

func (m *mockSettings) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettings) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type sentLine struct {
	target string
	text   string
	action bool
}

type mockChat struct {
	mu       sync.Mutex
	nick     string
	accounts map[string]string
	sent     []sentLine
	quitMsg  *string
}

func newMockChat() *mockChat {
	return &mockChat{nick: "Socky", accounts: make(map[string]string)}
}

func (m *mockChat) Send(ctx context.Context, target, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentLine{target: target, text: text})
	return nil
}

func (m *mockChat) SendAction(ctx context.Context, target, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentLine{target: target, text: text, action: true})
	return nil
}

func (m *mockChat) Quit(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitMsg = &message
	return nil
}

func (m *mockChat) Nick() string { return m.nick }

func (m *mockChat) LookupAccount(ctx context.Context, nick string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[strings.ToLower(nick)], nil
}

func (m *mockChat) lines() []sentLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentLine(nil), m.sent...)
}

// fixture wires a bot over in-memory mocks

type fixture struct {
	index    *mockIndex
	settings *mockSettings
	chat     *mockChat
	runtime  *domain.RuntimeConfig
	store    *usecase.StoreUsecase
	config   *usecase.ConfigUsecase
	limiter  *usecase.RateLimiter
	deferred *DeferredTasks
	disp     *Dispatcher
	bot      *BotService
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		index:    newMockIndex(),
		settings: newMockSettings(),
		chat:     newMockChat(),
		runtime:  domain.NewRuntimeConfig([]string{"Elizacat"}),
		deferred: NewDeferredTasks(),
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	t.Cleanup(f.deferred.Stop)

	f.store = usecase.NewStoreUsecase(f.index)
	f.config = usecase.NewConfigUsecase(f.settings, f.runtime)
	f.limiter = usecase.NewRateLimiter(f.runtime)
	f.disp = NewDispatcher(f.store, f.config, f.limiter, f.deferred, f.chat, conf.DefaultReplies(), nil, 425)
	f.disp.now = f.now
	f.bot = NewBotService(
		f.disp,
		f.store,
		usecase.NewMatcherWithPicker(func(n int) int { return 0 }),
		f.limiter,
		usecase.NewReplyDelay(0, 0),
		f.deferred,
		f.chat,
		nil,
	)
	f.bot.now = f.now
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) add(t *testing.T, trigger string, mt domain.MatchType, response string) int64 {
	t.Helper()
	id, err := f.store.Add(context.Background(), trigger, mt, response, false, "elizacat")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return id
}

func adminMsg(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		Kind:    domain.EventMessage,
		Sender:  "Elizacat",
		Account: "Elizacat",
		Target:  "#sporks",
		Text:    text,
	}
}

// waitForLines polls until chat has n lines or the deadline passes
func waitForLines(t *testing.T, chat *mockChat, n int) []sentLine {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		lines := chat.lines()
		if len(lines) >= n || time.Now().After(deadline) {
			return lines
		}
		time.Sleep(5 * time.Millisecond)
	}
}
