package domain

// EventKind is the kind of inbound chat event
type EventKind string

const (
	EventMessage EventKind = "message"
	EventJoin    EventKind = "join"
	EventPart    EventKind = "part"
	EventQuit    EventKind = "quit"
	EventKick    EventKind = "kick"
)

// InboundEvent is a parsed event delivered by a transport
type InboundEvent struct {
	Kind     EventKind
	Sender   string // nick or user id of the originator (the kicked user for kicks)
	Account  string // services account bound to the sender, empty when unknown
	Target   string // where replies go: the channel, or the sender for private messages
	Text     string
	IsAction bool // text arrived as an emote
}

// MatchTypeForEvent maps a channel event to the match type of its responses
func MatchTypeForEvent(kind EventKind) (MatchType, bool) {
	switch kind {
	case EventJoin:
		return Join, true
	case EventPart, EventQuit, EventKick:
		return Exit, true
	}
	return "", false
}

// HasAccount reports whether the sender carries a usable identity binding
func (e *InboundEvent) HasAccount() bool {
	return e.Account != "" && e.Account != "*"
}
