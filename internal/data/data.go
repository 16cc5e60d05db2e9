package data

import (
	"github.com/socky-bot/socky/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Index    repo.TriggerIndex
	Settings repo.SettingsRepo
	Chat     repo.ChatRepo
}

// NewRepositories opens the database and creates the store repositories.
// chat may be nil for tools that never talk to a network.
func NewRepositories(dbPath string, searchLimit int, chat repo.ChatRepo) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Index:    NewTriggerIndex(db, searchLimit),
		Settings: NewSettingsRepo(db),
		Chat:     chat,
	}, nil
}

// Close releases the database
func (r *Repositories) Close() error {
	return r.Index.Close()
}
