// Package thread provides conversation persistence for tutorvox.
//
// A thread is one saved conversation: the ordered user/assistant messages
// plus a short display title derived from the assistant's first reply. Threads are
// saved best-effort after each completed response stream; persistence
// failures are logged and never surfaced to the client.
package thread

import (
	"context"
	"strings"
)

// Message is a single persisted conversation entry.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// DefaultTitle is used when the assistant reply is blank, so no title can be derived.
const DefaultTitle = "New Chat"

// maxTitleLen caps derived titles for display.
const maxTitleLen = 50

// DeriveTitle returns a display title for a new thread: the assistant's first
// reply truncated to 50 characters, or [DefaultTitle] when the reply is blank.
func DeriveTitle(assistantResponse string) string {
	title := assistantResponse
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	if strings.TrimSpace(title) == "" {
		return DefaultTitle
	}
	return title
}

// Thread is one stored conversation.
type Thread struct {
	ID       string
	UserID   string
	Title    string
	Messages []Message
}

// Store is the persistence abstraction for conversation threads.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists the full conversation under threadID for userID. The
	// stored message list is messages followed by the assistant's response.
	// A new thread gets a title derived from the assistant's reply; saving
	// an existing thread updates its messages and leaves the title alone.
	Save(ctx context.Context, userID, threadID string, messages []Message, assistantResponse string) error

	// Get returns the thread with the given ID. The second return is false
	// when no such thread exists.
	Get(ctx context.Context, threadID string) (Thread, bool, error)

	// ListByUser returns all threads owned by userID, most recently updated
	// first. A user with no threads yields an empty slice, not an error.
	ListByUser(ctx context.Context, userID string) ([]Thread, error)

	// Delete removes the thread with the given ID. The first return reports
	// whether a thread was actually deleted.
	Delete(ctx context.Context, threadID string) (bool, error)
}
