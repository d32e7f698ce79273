package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/pintegram/toolbot/internal/domain"
	"github.com/pintegram/toolbot/internal/markup"
)

// Messenger is the controller's port to the chat transport. Message IDs
// are opaque to the wizard beyond equality; edits and deletes address
// previously sent prompts.
type Messenger interface {
	// Send delivers a prompt and returns the new message ID. An empty
	// keyboard sends plain text.
	Send(ctx context.Context, chatID int64, text string, kb markup.Rows) (int, error)

	// Edit replaces a prompt's text and keyboard in place.
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb markup.Rows) error

	// EditKeyboard replaces only the keyboard of a prompt.
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb markup.Rows) error

	// Delete removes a previously sent prompt.
	Delete(ctx context.Context, chatID int64, messageID int) error

	// AnswerEphemeral shows a notice to the acting user only, without
	// touching the shared conversation.
	AnswerEphemeral(ctx context.Context, callbackID, text string, alert bool) error
}

// RecordStore is the external tabular datastore contract. Create returns
// an opaque record identifier usable with Delete. Failures propagate
// unretried.
type RecordStore interface {
	Create(ctx context.Context, rec domain.CompleteRecord) (string, error)
	Delete(ctx context.Context, recordID string) error
}

// Mirror is the optional local copy of persisted records. Mirror failures
// never abort the wizard flow.
type Mirror interface {
	SaveRecord(ctx context.Context, rec domain.SavedRecord) error
	DeleteRecord(ctx context.Context, recordID string) error
	FindByURL(ctx context.Context, url string) (*domain.SavedRecord, error)
}

// RateLimitedError is returned by a Messenger when the transport rejects
// an action due to rate limiting. Unlike other transport failures it is
// surfaced to the user with a wait hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
