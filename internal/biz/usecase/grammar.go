package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// MyNickPlaceholder stands in for the bot's name inside stored responses
const MyNickPlaceholder = "{mynick}"

// [subject] op [object], whitespace around op is elastic.
// The object is optional here; operators that need one check for it.
var commandPattern = regexp.MustCompile(`^\[(.+?)\]\s*([=!~@#$-])\s*(?:\[(.*)\])?`)

// RawCommand is the undecoded (subject, operator, object) triple
type RawCommand struct {
	Subject   string
	Operator  domain.Operator
	Object    string
	HasObject bool
}

// SplitCommand matches the bracket grammar at the start of text
func SplitCommand(text string) (*RawCommand, error) {
	text = strings.TrimSpace(text)
	m := commandPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return nil, domain.ErrMalformed
	}

	op, ok := domain.OperatorFromSymbol(text[m[4]:m[5]])
	if !ok {
		return nil, domain.ErrMalformed
	}

	raw := &RawCommand{
		Subject:  strings.ToLower(strings.TrimSpace(text[m[2]:m[3]])),
		Operator: op,
	}
	if m[6] >= 0 {
		raw.Object = strings.TrimSpace(text[m[6]:m[7]])
		raw.HasObject = raw.Object != ""
	}
	if raw.Subject == "" {
		return nil, domain.ErrMalformed
	}
	return raw, nil
}

// ReplaceNick swaps case-insensitive occurrences of nick for the placeholder
func ReplaceNick(text, nick string) string {
	if nick == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(nick))
	return re.ReplaceAllLiteralString(text, MyNickPlaceholder)
}

// ParseCommand decodes command text into a Command.
// Unknown shapes return domain.ErrMalformed; bad arguments return domain.ErrValidation.
func ParseCommand(text, nick string, isAction bool) (*domain.Command, error) {
	raw, err := SplitCommand(text)
	if err != nil {
		return nil, err
	}

	switch raw.Operator {
	case domain.OpAddMatchAll, domain.OpAddLiteral, domain.OpAddFuzzy:
		if !raw.HasObject {
			return nil, domain.ErrMalformed
		}
		return &domain.Command{
			Action:    domain.ActAdd,
			Trigger:   raw.Subject,
			MatchType: addMatchType(raw.Operator),
			Argument:  ReplaceNick(raw.Object, nick),
			UseAction: isAction,
		}, nil

	case domain.OpAddEvent:
		mt, ok := eventMatchType(raw.Subject, true)
		if !ok || !raw.HasObject {
			return nil, domain.ErrMalformed
		}
		return &domain.Command{
			Action:    domain.ActAdd,
			Trigger:   strings.ToLower(string(mt)),
			MatchType: mt,
			Argument:  ReplaceNick(raw.Object, nick),
			UseAction: isAction,
		}, nil

	case domain.OpSearch:
		if raw.Subject == "text" {
			if !raw.HasObject {
				return nil, domain.ErrMalformed
			}
			return &domain.Command{Action: domain.ActSearchText, Argument: raw.Object}, nil
		}
		mt, ok := eventMatchType(raw.Subject, false)
		if !ok {
			return nil, domain.ErrMalformed
		}
		return &domain.Command{Action: domain.ActSearchEvent, MatchType: mt}, nil

	case domain.OpDelete:
		if !raw.HasObject {
			return nil, domain.ErrMalformed
		}
		switch {
		case raw.Subject == "all":
			return &domain.Command{Action: domain.ActDeleteByTrigger, Trigger: raw.Object}, nil
		case strings.HasPrefix(raw.Subject, "num"):
			id, err := strconv.ParseInt(raw.Object, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a record number", domain.ErrValidation, raw.Object)
			}
			return &domain.Command{Action: domain.ActDeleteByID, ID: id}, nil
		}
		return nil, domain.ErrMalformed

	case domain.OpAdmin:
		return parseAdmin(raw)
	}
	return nil, domain.ErrMalformed
}

func parseAdmin(raw *RawCommand) (*domain.Command, error) {
	switch raw.Subject {
	case "quit":
		return &domain.Command{Action: domain.ActQuit, Argument: raw.Object}, nil
	case "adminlist":
		return &domain.Command{Action: domain.ActAdminList}, nil
	case "quiet", "shutup":
		return &domain.Command{Action: domain.ActQuiet}, nil
	case "speak", "talk":
		return &domain.Command{Action: domain.ActSpeak}, nil
	case "addadmin", "deladmin", "nickinfo", "userinfo":
		if !raw.HasObject {
			return nil, domain.ErrMalformed
		}
		act := domain.ActNickInfo
		switch raw.Subject {
		case "addadmin":
			act = domain.ActAddAdmin
		case "deladmin":
			act = domain.ActDelAdmin
		}
		return &domain.Command{Action: act, Argument: raw.Object}, nil
	case "setinterval", "setshutup":
		if !raw.HasObject {
			return nil, domain.ErrMalformed
		}
		secs, err := strconv.Atoi(raw.Object)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("%w: %q is not a number of seconds", domain.ErrValidation, raw.Object)
		}
		if int64(secs) > math.MaxInt64/int64(time.Second) {
			return nil, fmt.Errorf("%w: %d seconds is too long", domain.ErrValidation, secs)
		}
		act := domain.ActSetInterval
		if raw.Subject == "setshutup" {
			act = domain.ActSetShutup
		}
		return &domain.Command{Action: act, Duration: time.Duration(secs) * time.Second}, nil
	}
	if strings.HasPrefix(raw.Subject, "reload") {
		return &domain.Command{Action: domain.ActReload}, nil
	}
	return nil, domain.ErrMalformed
}

func addMatchType(op domain.Operator) domain.MatchType {
	switch op {
	case domain.OpAddLiteral:
		return domain.Literal
	case domain.OpAddFuzzy:
		return domain.Fuzzy
	}
	return domain.MatchAll
}

// eventMatchType maps an event word to its match type.
// Prefix matching is used when adding, exact words when searching.
func eventMatchType(subject string, prefix bool) (domain.MatchType, bool) {
	has := func(word string) bool {
		if prefix {
			return strings.HasPrefix(subject, word)
		}
		return subject == word
	}
	switch {
	case has("join"):
		return domain.Join, true
	case has("part"), has("quit"), has("exit"):
		return domain.Exit, true
	}
	return "", false
}
