package domain

import "time"

// Operator is the symbol between the two bracketed halves of a command
type Operator int

const (
	OpAddMatchAll Operator = iota + 1 // =
	OpAddLiteral                      // !
	OpAddFuzzy                        // ~
	OpAddEvent                        // #
	OpSearch                          // @
	OpDelete                          // -
	OpAdmin                           // $
)

var operatorTable = map[byte]Operator{
	'=': OpAddMatchAll,
	'!': OpAddLiteral,
	'~': OpAddFuzzy,
	'#': OpAddEvent,
	'@': OpSearch,
	'-': OpDelete,
	'$': OpAdmin,
}

// OperatorFromSymbol looks up the operator for a one-character symbol
func OperatorFromSymbol(sym string) (Operator, bool) {
	if len(sym) != 1 {
		return 0, false
	}
	op, ok := operatorTable[sym[0]]
	return op, ok
}

// Symbol returns the operator's command character
func (o Operator) Symbol() string {
	for sym, op := range operatorTable {
		if op == o {
			return string(sym)
		}
	}
	return "?"
}

// Action is the fully resolved command variant
type Action int

const (
	ActAdd Action = iota + 1
	ActSearchText
	ActSearchEvent
	ActDeleteByTrigger
	ActDeleteByID
	ActQuit
	ActReload
	ActAddAdmin
	ActDelAdmin
	ActSetInterval
	ActSetShutup
	ActNickInfo
	ActAdminList
	ActQuiet
	ActSpeak
)

var actionNames = map[Action]string{
	ActAdd:             "add",
	ActSearchText:      "search",
	ActSearchEvent:     "search_event",
	ActDeleteByTrigger: "delete_all",
	ActDeleteByID:      "delete_num",
	ActQuit:            "quit",
	ActReload:          "reload",
	ActAddAdmin:        "addadmin",
	ActDelAdmin:        "deladmin",
	ActSetInterval:     "setinterval",
	ActSetShutup:       "setshutup",
	ActNickInfo:        "nickinfo",
	ActAdminList:       "adminlist",
	ActQuiet:           "quiet",
	ActSpeak:           "speak",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Command is a parsed and validated admin command
type Command struct {
	Action    Action
	Trigger   string        // add, delete_all
	MatchType MatchType     // add, search_event
	Argument  string        // response text, search text, nick, or farewell message
	ID        int64         // delete_num
	Duration  time.Duration // setinterval, setshutup
	UseAction bool          // add sent as an emote
}
