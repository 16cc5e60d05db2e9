package usecase

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// DefaultChunkLimit is the byte budget of one listing message
const DefaultChunkLimit = 425

// Format fills {who}, {where} and {mynick} in template.
// Any unknown or malformed placeholder leaves the template untouched.
func Format(template, who, where, myNick string) string {
	return FormatVars(template, map[string]string{
		"who":    who,
		"where":  where,
		"mynick": myNick,
	})
}

// FormatVars substitutes {name} fields from vars.
// {{ and }} are literal braces.
func FormatVars(template string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return template
			}
			name := template[i+1 : i+1+end]
			val, ok := vars[name]
			if !ok {
				return template
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return template
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatEntry renders one record as it appears inside a listing chunk
func FormatEntry(rec *domain.TriggerRecord) string {
	act := ""
	if rec.UseAction {
		act = "* "
	}
	return strconv.FormatInt(rec.ID, 10) + ": " + rec.MatchType.Symbol() + " " + act + rec.Response + " & "
}

const (
	entrySep   = " & "
	chunkClose = "]"
)

// Chunk renders records as listing messages of at most limit bytes.
// Records are grouped by trigger in first-seen order; each group opens
// with "[trigger # " and its entries are joined by " & ".
func Chunk(records []*domain.TriggerRecord, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var order []string
	groups := make(map[string][]*domain.TriggerRecord)
	for _, rec := range records {
		if _, ok := groups[rec.Trigger]; !ok {
			order = append(order, rec.Trigger)
		}
		groups[rec.Trigger] = append(groups[rec.Trigger], rec)
	}

	var chunks []string
	for _, trigger := range order {
		start := "[" + truncateBytes(trigger, limit/2) + " # "
		// an entry alone must still close within limit
		maxEntry := limit - len(start) + len(entrySep) - len(chunkClose)

		cur := start
		started := false
		flush := func() {
			if !started {
				return
			}
			chunks = append(chunks, strings.TrimSuffix(cur, entrySep)+chunkClose)
			cur = start
			started = false
		}

		for _, rec := range groups[trigger] {
			entry := FormatEntry(rec)
			if len(entry) > maxEntry {
				entry = truncateBytes(strings.TrimSuffix(entry, entrySep), maxEntry-len(entrySep)) + entrySep
			}
			if len(cur)+len(entry) > limit {
				flush()
			}
			cur += entry
			started = true
		}
		flush()
	}
	return chunks
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
