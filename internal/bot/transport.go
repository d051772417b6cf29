// Package bot wires chat updates to the game: it parses commands and button
// presses, enforces the per-user flow contracts, drives the battle engine and
// persists outcomes. Telegram is the production transport.
package bot

import "context"

// User is the sender of an update.
type User struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// Name returns the handle shown in chat.
func (u User) Name() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Trainer"
}

// MessageRef addresses a message that was sent.
type MessageRef struct {
	ChatID    int64
	MessageID int
	// Photo is set when the message is a photo whose text is a caption.
	Photo bool
}

// Button is one inline keyboard button. Data is an encoded flow.Payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons, row by row.
type Keyboard [][]Button

// Outgoing is a message to send or the new content of an edited one.
type Outgoing struct {
	ChatID int64
	Text   string
	// Photo is a sprite URL; empty for a text message.
	Photo    string
	Keyboard Keyboard
	// ReplyTo is the message id to reply to, or 0.
	ReplyTo int
}

// Message is an incoming chat message.
type Message struct {
	ChatID    int64
	MessageID int
	From      User
	Text      string
	ReplyTo   *Message
}

// Callback is an incoming button press.
type Callback struct {
	ID      string
	From    User
	Message MessageRef
	Data    string
}

// Update is one incoming event; exactly one field is set.
type Update struct {
	Message  *Message
	Callback *Callback
}

// Transport sends and edits chat messages.
type Transport interface {
	// Send posts a new message.
	Send(ctx context.Context, out Outgoing) (MessageRef, error)
	// Edit replaces the text and keyboard of ref. An error wrapping
	// flow.ErrTransient means nothing changed and can be ignored.
	Edit(ctx context.Context, ref MessageRef, out Outgoing) error
	// Delete removes ref.
	Delete(ctx context.Context, ref MessageRef) error
	// Answer acknowledges a button press, optionally as an alert.
	Answer(ctx context.Context, callbackID, text string, alert bool) error
	// Pin pins ref in its chat; Unpin reverses it.
	Pin(ctx context.Context, ref MessageRef) error
	Unpin(ctx context.Context, ref MessageRef) error
}

// Row builds a keyboard row.
func Row(buttons ...Button) []Button { return buttons }
