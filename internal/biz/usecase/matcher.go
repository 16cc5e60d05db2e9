package usecase

import (
	"math/rand/v2"
	"strings"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// MatchOutcome tells why a message did or did not produce a response
type MatchOutcome int

const (
	OutcomeNoHits       MatchOutcome = iota // index returned nothing
	OutcomeNoneAccepted                     // hits existed but none passed acceptance
	OutcomeMatched
)

func (o MatchOutcome) String() string {
	switch o {
	case OutcomeNoHits:
		return "no_hits"
	case OutcomeNoneAccepted:
		return "none_accepted"
	case OutcomeMatched:
		return "matched"
	}
	return "unknown"
}

// punctuation that belongs to the command syntax, not to trigger text
var matchNormalizer = strings.NewReplacer(
	"-", " ",
	"$", " ",
	"+", " ",
	"~", " ",
	"?", " ",
)

// NormalizeForMatch prepares text for trigger comparison
func NormalizeForMatch(text string) string {
	text = matchNormalizer.Replace(strings.ToLower(text))
	return strings.Join(strings.Fields(text), " ")
}

// BuildQuery turns free text into a disjunction of per-token fuzzy terms
func BuildQuery(text string) domain.Query {
	return domain.Query{Terms: strings.Fields(strings.ToLower(text))}
}

// Matcher applies match-type acceptance to raw index hits
type Matcher struct {
	pick func(n int) int
}

// NewMatcher creates a matcher that picks uniformly at random
func NewMatcher() *Matcher {
	return &Matcher{pick: rand.IntN}
}

// NewMatcherWithPicker creates a matcher with a custom index picker, used by tests
func NewMatcherWithPicker(pick func(n int) int) *Matcher {
	return &Matcher{pick: pick}
}

// Accepts reports whether rec qualifies for an already normalized message
func Accepts(rec *domain.TriggerRecord, normalizedMessage string) bool {
	trigger := NormalizeForMatch(rec.Trigger)
	switch rec.MatchType {
	case domain.MatchAll:
		return trigger != "" && strings.Contains(normalizedMessage, trigger)
	case domain.Literal:
		return trigger == normalizedMessage
	case domain.Fuzzy:
		return true
	case domain.Join, domain.Exit:
		return false
	}
	return false
}

// SelectMatch picks one accepted hit for message
func (m *Matcher) SelectMatch(message string, hits []*domain.TriggerRecord) (*domain.TriggerRecord, MatchOutcome) {
	if len(hits) == 0 {
		return nil, OutcomeNoHits
	}

	normalized := NormalizeForMatch(message)
	accepted := make([]*domain.TriggerRecord, 0, len(hits))
	for _, h := range hits {
		if Accepts(h, normalized) {
			accepted = append(accepted, h)
		}
	}
	if len(accepted) == 0 {
		return nil, OutcomeNoneAccepted
	}
	return m.Pick(accepted), OutcomeMatched
}

// Pick returns a random element of recs, or nil when empty
func (m *Matcher) Pick(recs []*domain.TriggerRecord) *domain.TriggerRecord {
	if len(recs) == 0 {
		return nil
	}
	return recs[m.pick(len(recs))]
}
