package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/usecase"
	"github.com/socky-bot/socky/internal/logging"
)

// StoreServer exposes the trigger store as MCP tools
type StoreServer struct {
	server *mcp.Server
	store  *usecase.StoreUsecase
	author string
	log    zerolog.Logger
}

// NewStoreServer creates a new MCP server. Records added through it are
// attributed to author.
func NewStoreServer(store *usecase.StoreUsecase, author string, version string) *StoreServer {
	s := &StoreServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "socky-store",
			Version: version,
		}, nil),
		store:  store,
		author: author,
		log:    logging.Get("mcp"),
	}
	s.registerTools()
	return s
}

func (s *StoreServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_triggers",
		Description: "Search stored triggers by text, or list every response of one match type.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_trigger",
		Description: "Store a new trigger and the response the bot gives when it fires.",
	}, s.handleAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_trigger",
		Description: "Delete one trigger by id, or every trigger with the given text.",
	}, s.handleDelete)
}

// Run serves the tools over stdio until ctx ends or the client disconnects
func (s *StoreServer) Run(ctx context.Context) error {
	s.log.Info().Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *StoreServer) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchTriggersInput) (*mcp.CallToolResult, SearchTriggersOutput, error) {
	out := SearchTriggersOutput{Triggers: []TriggerInfo{}}

	query := usecase.BuildQuery(input.Query)
	scope := domain.AllTriggers()
	if input.MatchType != "" {
		mt, err := parseMatchType(input.MatchType)
		if err != nil {
			return nil, out, err
		}
		scope = domain.ResponsesOf(mt)
	} else if query.Empty() {
		return nil, out, fmt.Errorf("query or match_type is required")
	}

	recs, err := s.store.Search(ctx, query, scope)
	if err != nil {
		return nil, out, err
	}
	for _, rec := range recs {
		out.Triggers = append(out.Triggers, toTriggerInfo(rec))
	}
	return nil, out, nil
}

func (s *StoreServer) handleAdd(ctx context.Context, req *mcp.CallToolRequest, input AddTriggerInput) (*mcp.CallToolResult, AddTriggerOutput, error) {
	mt := domain.MatchAll
	if input.MatchType != "" {
		var err error
		if mt, err = parseMatchType(input.MatchType); err != nil {
			return nil, AddTriggerOutput{}, err
		}
	}

	id, err := s.store.Add(ctx, input.Trigger, mt, input.Response, input.Action, s.author)
	if err != nil {
		return nil, AddTriggerOutput{}, err
	}
	return nil, AddTriggerOutput{ID: id}, nil
}

func (s *StoreServer) handleDelete(ctx context.Context, req *mcp.CallToolRequest, input DeleteTriggerInput) (*mcp.CallToolResult, DeleteTriggerOutput, error) {
	switch {
	case input.ID > 0:
		if err := s.store.DeleteByID(ctx, input.ID); err != nil {
			return nil, DeleteTriggerOutput{}, err
		}
		return nil, DeleteTriggerOutput{Deleted: 1}, nil
	case strings.TrimSpace(input.Trigger) != "":
		n, err := s.store.DeleteByTrigger(ctx, input.Trigger)
		if err != nil {
			return nil, DeleteTriggerOutput{}, err
		}
		return nil, DeleteTriggerOutput{Deleted: n}, nil
	}
	return nil, DeleteTriggerOutput{}, fmt.Errorf("id or trigger is required")
}

func parseMatchType(s string) (domain.MatchType, error) {
	mt := domain.MatchType(strings.ToUpper(strings.TrimSpace(s)))
	if !mt.Valid() {
		return "", fmt.Errorf("%w: unknown match type %q", domain.ErrValidation, s)
	}
	return mt, nil
}
