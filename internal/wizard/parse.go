// Package wizard implements the conversational tool-saving wizard: command
// parsing, selection-event decoding, per-chat session state and the
// controller that sequences the steps.
package wizard

import (
	"net/url"
	"strings"

	"github.com/pintegram/toolbot/internal/domain"
)

// SaveCommand is the text trigger that starts the wizard.
const SaveCommand = "/savetool"

// ParseError is a user-facing command parse failure. Message is surfaced
// to the user verbatim.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

// ParseErrorKind distinguishes the parser failure modes.
type ParseErrorKind int

const (
	// ParseInvalidCommand means the first token was not the trigger.
	ParseInvalidCommand ParseErrorKind = iota
	// ParseUsage means too few tokens followed the trigger.
	ParseUsage
	// ParseInvalidURL means the URL token did not parse as an absolute URL.
	ParseInvalidURL
)

func (e *ParseError) Error() string {
	return e.Message
}

// ParseSaveCommand parses "/savetool <name> <url> <description...>" into an
// InitialRecord. Pure: no side effects, no state.
func ParseSaveCommand(text string) (domain.InitialRecord, error) {
	parts := strings.Fields(strings.TrimSpace(text))

	if len(parts) == 0 || parts[0] != SaveCommand {
		return domain.InitialRecord{}, &ParseError{
			Kind:    ParseInvalidCommand,
			Message: "Invalid command. Use " + SaveCommand,
		}
	}

	if len(parts) < 4 {
		return domain.InitialRecord{}, &ParseError{
			Kind:    ParseUsage,
			Message: "Usage: " + SaveCommand + " [name] [url] [description]",
		}
	}

	name, rawURL := parts[1], parts[2]

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return domain.InitialRecord{}, &ParseError{
			Kind:    ParseInvalidURL,
			Message: "Invalid URL format",
		}
	}

	return domain.InitialRecord{
		Name:        name,
		URL:         rawURL,
		Description: strings.Join(parts[3:], " "),
	}, nil
}
