package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/data"
)

func newTestSession(t *testing.T) (*mcp.ClientSession, *usecase.StoreUsecase) {
	t.Helper()

	db, err := data.OpenDB(filepath.Join(t.TempDir(), "socky.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	idx := data.NewTriggerIndex(db, data.DefaultSearchLimit)
	t.Cleanup(func() { idx.Close() })

	store := usecase.NewStoreUsecase(idx)
	s := NewStoreServer(store, "operator", "test")

	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := s.server.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs, store
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) failed: %v", name, err)
	}
	if res.IsError || out == nil {
		return res
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), out); err != nil {
		t.Fatalf("Failed to decode %s result: %v", name, err)
	}
	return res
}

func TestListTools(t *testing.T) {
	cs, _ := newTestSession(t)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_triggers", "add_trigger", "delete_trigger"} {
		if !names[want] {
			t.Errorf("Expected tool %s to be registered", want)
		}
	}
}

func TestAddSearchDelete(t *testing.T) {
	cs, _ := newTestSession(t)

	var added AddTriggerOutput
	callTool(t, cs, "add_trigger", map[string]any{
		"trigger":  "Hello",
		"response": "hi {who}",
	}, &added)
	if added.ID <= 0 {
		t.Fatalf("Expected a positive id, got %d", added.ID)
	}

	var found SearchTriggersOutput
	callTool(t, cs, "search_triggers", map[string]any{"query": "hello"}, &found)
	if len(found.Triggers) != 1 {
		t.Fatalf("Expected 1 trigger, got %d", len(found.Triggers))
	}
	got := found.Triggers[0]
	if got.Trigger != "hello" || got.MatchType != "MATCHALL" || got.Author != "operator" || got.CreatedAt == "" {
		t.Errorf("Unexpected trigger: %+v", got)
	}

	var deleted DeleteTriggerOutput
	callTool(t, cs, "delete_trigger", map[string]any{"id": added.ID}, &deleted)
	if deleted.Deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted.Deleted)
	}

	found = SearchTriggersOutput{}
	callTool(t, cs, "search_triggers", map[string]any{"query": "hello"}, &found)
	if len(found.Triggers) != 0 {
		t.Errorf("Expected no triggers after delete, got %d", len(found.Triggers))
	}
}

func TestAddEventTriggerAndList(t *testing.T) {
	cs, _ := newTestSession(t)

	var added AddTriggerOutput
	callTool(t, cs, "add_trigger", map[string]any{
		"trigger":    "whatever",
		"response":   "welcome {who}",
		"match_type": "join",
	}, &added)

	var found SearchTriggersOutput
	callTool(t, cs, "search_triggers", map[string]any{"match_type": "JOIN"}, &found)
	if len(found.Triggers) != 1 {
		t.Fatalf("Expected 1 join response, got %d", len(found.Triggers))
	}
	if found.Triggers[0].Trigger != "join" {
		t.Errorf("Expected canonical trigger join, got %q", found.Triggers[0].Trigger)
	}
}

func TestDeleteByTrigger(t *testing.T) {
	cs, store := newTestSession(t)
	ctx := context.Background()
	for _, resp := range []string{"one", "two"} {
		if _, err := store.Add(ctx, "spam", "MATCHALL", resp, false, "elizacat"); err != nil {
			t.Fatal(err)
		}
	}

	var deleted DeleteTriggerOutput
	callTool(t, cs, "delete_trigger", map[string]any{"trigger": "SPAM"}, &deleted)
	if deleted.Deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted.Deleted)
	}
}

func TestToolErrors(t *testing.T) {
	cs, _ := newTestSession(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"search without query", "search_triggers", map[string]any{}},
		{"search bad type", "search_triggers", map[string]any{"match_type": "nope"}},
		{"add empty response", "add_trigger", map[string]any{"trigger": "x", "response": " "}},
		{"add bad type", "add_trigger", map[string]any{"trigger": "x", "response": "y", "match_type": "nope"}},
		{"delete nothing", "delete_trigger", map[string]any{}},
		{"delete missing id", "delete_trigger", map[string]any{"id": 999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, cs, tt.tool, tt.args, nil)
			if !res.IsError {
				t.Errorf("Expected tool error")
			}
		})
	}
}
