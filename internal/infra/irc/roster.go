package irc

import (
	"sort"
	"strings"
	"sync"
)

// roster tracks which of our channels each nick is in, so that a QUIT,
// which names no channel, can be attributed to the channels it left
type roster struct {
	mu    sync.Mutex
	nicks map[string]map[string]struct{} // lowercased nick -> channels
}

func newRoster() *roster {
	return &roster{nicks: make(map[string]map[string]struct{})}
}

func (r *roster) add(nick, channel string) {
	nick = strings.ToLower(nick)
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.nicks[nick]
	if !ok {
		chans = make(map[string]struct{})
		r.nicks[nick] = chans
	}
	chans[channel] = struct{}{}
}

func (r *roster) remove(nick, channel string) {
	nick = strings.ToLower(nick)
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.nicks[nick]
	if !ok {
		return
	}
	delete(chans, channel)
	if len(chans) == 0 {
		delete(r.nicks, nick)
	}
}

// forgetChannel drops channel for everyone, used when we leave it
func (r *roster) forgetChannel(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for nick, chans := range r.nicks {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(r.nicks, nick)
		}
	}
}

func (r *roster) rename(from, to string) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.nicks[from]
	if !ok {
		return
	}
	delete(r.nicks, from)
	if cur, ok := r.nicks[to]; ok {
		for ch := range chans {
			cur[ch] = struct{}{}
		}
		return
	}
	r.nicks[to] = chans
}

// quit removes nick and returns the sorted channels it was seen in
func (r *roster) quit(nick string) []string {
	nick = strings.ToLower(nick)
	r.mu.Lock()
	chans := r.nicks[nick]
	delete(r.nicks, nick)
	r.mu.Unlock()

	out := make([]string, 0, len(chans))
	for ch := range chans {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (r *roster) reset() {
	r.mu.Lock()
	r.nicks = make(map[string]map[string]struct{})
	r.mu.Unlock()
}

// namesEntry strips the status prefixes and any userhost from a NAMES entry
func namesEntry(s string) string {
	s = strings.TrimLeft(s, "~&@%+")
	if i := strings.IndexByte(s, '!'); i >= 0 {
		s = s[:i]
	}
	return s
}
