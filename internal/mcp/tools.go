package mcp

import (
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
	"github.com/socky-bot/socky/internal/biz/usecase"
)

// TriggerInfo is one stored trigger as seen by tool callers
type TriggerInfo struct {
	ID        int64  `json:"id"`
	Trigger   string `json:"trigger"`
	MatchType string `json:"match_type"`
	Response  string `json:"response"`
	Action    bool   `json:"action"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Entry     string `json:"entry"`
}

// SearchTriggersInput is the input for search_triggers
type SearchTriggersInput struct {
	Query     string `json:"query,omitempty" jsonschema:"words to look for in trigger text"`
	MatchType string `json:"match_type,omitempty" jsonschema:"list every response of one type instead: MATCHALL, LITERAL, FUZZY, JOIN or EXIT"`
}

// SearchTriggersOutput contains the matching triggers
type SearchTriggersOutput struct {
	Triggers []TriggerInfo `json:"triggers"`
}

// AddTriggerInput is the input for add_trigger
type AddTriggerInput struct {
	Trigger   string `json:"trigger" jsonschema:"text that fires the response; join or exit for channel events"`
	Response  string `json:"response" jsonschema:"reply template; {who}, {where} and {mynick} are substituted"`
	MatchType string `json:"match_type,omitempty" jsonschema:"MATCHALL (default), LITERAL, FUZZY, JOIN or EXIT"`
	Action    bool   `json:"action,omitempty" jsonschema:"send the response as an action"`
}

// AddTriggerOutput is the output for add_trigger
type AddTriggerOutput struct {
	ID int64 `json:"id"`
}

// DeleteTriggerInput is the input for delete_trigger
type DeleteTriggerInput struct {
	ID      int64  `json:"id,omitempty" jsonschema:"delete exactly this record"`
	Trigger string `json:"trigger,omitempty" jsonschema:"delete every record with this trigger text"`
}

// DeleteTriggerOutput is the output for delete_trigger
type DeleteTriggerOutput struct {
	Deleted int64 `json:"deleted"`
}

func toTriggerInfo(rec *domain.TriggerRecord) TriggerInfo {
	info := TriggerInfo{
		ID:        rec.ID,
		Trigger:   rec.Trigger,
		MatchType: string(rec.MatchType),
		Response:  rec.Response,
		Action:    rec.UseAction,
		Entry:     usecase.FormatEntry(rec),
	}
	if rec.HasProvenance() {
		info.Author = rec.Author
		info.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return info
}
