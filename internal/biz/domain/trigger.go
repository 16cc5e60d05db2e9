package domain

import (
	"regexp"
	"strings"
	"time"
)

// MatchType selects how a stored trigger is compared against a message
type MatchType string

const (
	MatchAll MatchType = "MATCHALL" // trigger appears anywhere in the message
	Literal  MatchType = "LITERAL"  // trigger equals the whole message
	Fuzzy    MatchType = "FUZZY"    // any index hit is accepted
	Join     MatchType = "JOIN"     // response to a channel join
	Exit     MatchType = "EXIT"     // response to a part, quit or kick
)

// Valid reports whether m is one of the known match types
func (m MatchType) Valid() bool {
	switch m {
	case MatchAll, Literal, Fuzzy, Join, Exit:
		return true
	}
	return false
}

// IsEvent reports whether m binds to a channel event instead of message text
func (m MatchType) IsEvent() bool {
	return m == Join || m == Exit
}

// Symbol returns the command operator that created records of this type
func (m MatchType) Symbol() string {
	switch m {
	case MatchAll:
		return "="
	case Literal:
		return "!"
	case Fuzzy:
		return "~"
	case Join, Exit:
		return "#"
	}
	return "?"
}

// TriggerRecord is a stored (trigger, response) pair
type TriggerRecord struct {
	ID        int64
	Trigger   string
	MatchType MatchType
	Response  string
	UseAction bool
	Author    string    // empty when unknown
	CreatedAt time.Time // zero for legacy records
}

// HasProvenance reports whether author and creation time are known
func (r *TriggerRecord) HasProvenance() bool {
	return r.Author != "" && !r.CreatedAt.IsZero()
}

// NormalizeTrigger lowercases text and collapses whitespace runs.
// Stored triggers and delete-by-trigger arguments both pass through it.
func NormalizeTrigger(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// indexTerm is one token of the trigger index; it mirrors the fts5
// tokenizer, which keeps _ : ; = inside words
var indexTerm = regexp.MustCompile(`[\p{L}\p{N}_:;=]+`)

// IndexTerms returns the lowercased index tokens of text
func IndexTerms(text string) []string {
	return indexTerm.FindAllString(strings.ToLower(text), -1)
}

// ScopeKind restricts which records a search may return
type ScopeKind int

const (
	ScopeAll       ScopeKind = iota // every record, matched on trigger text
	ScopeResponses                  // admin listing of one match type
	ScopeMatchType                  // event lookup of one match type
)

// SearchScope is the scope argument to a store search
type SearchScope struct {
	Kind      ScopeKind
	MatchType MatchType
}

// AllTriggers is the scope for ordinary message matching and free search
func AllTriggers() SearchScope {
	return SearchScope{Kind: ScopeAll}
}

// ResponsesOf lists the responses bound to one match type
func ResponsesOf(m MatchType) SearchScope {
	return SearchScope{Kind: ScopeResponses, MatchType: m}
}

// OnlyMatchType restricts a lookup to one match type
func OnlyMatchType(m MatchType) SearchScope {
	return SearchScope{Kind: ScopeMatchType, MatchType: m}
}

// Filtered reports whether the scope filters by match type
func (s SearchScope) Filtered() bool {
	return s.Kind != ScopeAll
}

// Query is a disjunction of fuzzy terms against the trigger field
type Query struct {
	Terms []string
}

// Empty reports whether the query has no terms
func (q Query) Empty() bool {
	return len(q.Terms) == 0
}
