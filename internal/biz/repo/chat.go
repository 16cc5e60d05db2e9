package repo

import "context"

// ChatRepo is the outbound side of a chat transport
type ChatRepo interface {
	// Send delivers a plain message to a channel or user
	Send(ctx context.Context, target, text string) error

	// SendAction delivers an emote-framed message
	SendAction(ctx context.Context, target, text string) error

	// Quit disconnects from the network with a parting message
	Quit(ctx context.Context, message string) error

	// Nick returns the bot's current name on the network
	Nick() string

	// LookupAccount returns the services account bound to a nick, empty when none
	LookupAccount(ctx context.Context, nick string) (string, error)
}
