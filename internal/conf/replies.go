package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/socky-bot/socky/internal/logging"
)

// Replies holds the canned texts the bot answers commands with.
// Fields may use {name} placeholders listed next to each field.
type Replies struct {
	Added        string `yaml:"added"`
	Blank        string `yaml:"blank"`
	Removed      string `yaml:"removed"`
	Purged       string `yaml:"purged"`
	ErrorPrefix  string `yaml:"error_prefix"`
	BadArgument  string `yaml:"bad_argument"`
	Farewell     string `yaml:"farewell"`
	Reloaded     string `yaml:"reloaded"`
	AdminAdded   string `yaml:"admin_added"`   // {account}
	AdminRemoved string `yaml:"admin_removed"` // {account}
	AdminList    string `yaml:"admin_list"`    // {admins}
	IntervalSet  string `yaml:"interval_set"`  // {seconds}
	ShutupSet    string `yaml:"shutup_set"`    // {seconds}
	Quiet        string `yaml:"quiet"`
	Speak        string `yaml:"speak"`
	NickInfo     string `yaml:"nick_info"`    // {nick} {account}
	NickUnknown  string `yaml:"nick_unknown"` // {nick}
}

// LoadReplies loads reply texts from a YAML file.
// An empty path searches the usual locations; no file yields the defaults.
func LoadReplies(configPath string) (*Replies, error) {
	log := logging.Get("config")

	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/replies.yaml",
			"/etc/socky/replies.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "replies.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s", configPath)
		}
		log.Debug().Msg("No replies.yaml found, using defaults")
		return DefaultReplies(), nil
	}

	log.Info().Str("path", loadedPath).Msg("Loading replies")

	var replies Replies
	if err := yaml.Unmarshal(data, &replies); err != nil {
		return nil, fmt.Errorf("failed to parse replies.yaml: %w", err)
	}
	replies.fillDefaults()
	return &replies, nil
}

// fillDefaults fills in default values for empty fields
func (r *Replies) fillDefaults() {
	d := DefaultReplies()
	fill := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	fill(&r.Added, d.Added)
	fill(&r.Blank, d.Blank)
	fill(&r.Removed, d.Removed)
	fill(&r.Purged, d.Purged)
	fill(&r.ErrorPrefix, d.ErrorPrefix)
	fill(&r.BadArgument, d.BadArgument)
	fill(&r.Farewell, d.Farewell)
	fill(&r.Reloaded, d.Reloaded)
	fill(&r.AdminAdded, d.AdminAdded)
	fill(&r.AdminRemoved, d.AdminRemoved)
	fill(&r.AdminList, d.AdminList)
	fill(&r.IntervalSet, d.IntervalSet)
	fill(&r.ShutupSet, d.ShutupSet)
	fill(&r.Quiet, d.Quiet)
	fill(&r.Speak, d.Speak)
	fill(&r.NickInfo, d.NickInfo)
	fill(&r.NickUnknown, d.NickUnknown)
}

// DefaultReplies returns the built-in reply texts
func DefaultReplies() *Replies {
	return &Replies{
		Added:        "Your humour has been added to the hive",
		Blank:        "Drawing a blank here :/",
		Removed:      "Humour has been removed from the hive",
		Purged:       "Humour has been purged from the hive",
		ErrorPrefix:  "Error: ",
		BadArgument:  "Dumbass.",
		Farewell:     "The hive falls silent",
		Reloaded:     "Admin list reloaded",
		AdminAdded:   "{account} has joined the hive mind",
		AdminRemoved: "{account} has left the hive mind",
		AdminList:    "Admins: {admins}",
		IntervalSet:  "Response interval set to {seconds}s",
		ShutupSet:    "Quiet window set to {seconds}s",
		Quiet:        "Fine, I'll be quiet",
		Speak:        "The hive speaks again",
		NickInfo:     "{nick} is logged in as {account}",
		NickUnknown:  "{nick} is not logged in",
	}
}
