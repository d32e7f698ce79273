// Package domain contains core domain types for the toolbot application.
package domain

// InitialRecord holds the fields parsed from the /savetool command.
// It is immutable once created; the wizard only reads from it.
type InitialRecord struct {
	Name        string
	URL         string
	Description string
}

// CompleteRecord is a fully assembled tool record ready for persistence.
type CompleteRecord struct {
	Name        string
	URL         string
	Description string
	Types       []string
	State       string
	APITier     string
	Payment     []string
}

// SavedRecord is a tool record as read back from the record store.
type SavedRecord struct {
	ID          string
	Name        string
	URL         string
	Description string
	Types       []string
	State       string
	APITier     string
	Payment     []string
}

// Undefined marks an optional field the user chose not to fill in.
const Undefined = "Undefined"

// Record states as stored in the external datastore.
const (
	StatePublic    = "Public"
	StateUndefined = Undefined
)

// ToolTypes is the fixed vocabulary of tool categories, in display order.
var ToolTypes = []string{
	"Undefined",
	"Text to Image",
	"Text to Video",
	"Image to Image",
	"Image to Video",
	"Character to Image",
	"Character to Video",
	"Text to Sound",
	"Text to Speech",
	"Text to Music",
	"Image Helper",
	"Video Helper",
	"AI Aggregator",
	"Automation",
}

// APITiers is the fixed vocabulary of API availability tiers.
var APITiers = []string{
	"Fully",
	"Partially",
	"Unofficial",
	"Not Provided",
}

// PaymentModels is the fixed vocabulary of payment options.
var PaymentModels = []string{
	"Pay as you Go",
	"Monthly",
	"Freemium",
	"Open Source",
}

// MinimalRecord assembles a record from the initial fields alone, with every
// optional field set to Undefined. Used by the "save as is" path.
func MinimalRecord(initial InitialRecord) CompleteRecord {
	return CompleteRecord{
		Name:        initial.Name,
		URL:         initial.URL,
		Description: initial.Description,
		Types:       []string{Undefined},
		State:       StateUndefined,
		APITier:     Undefined,
		Payment:     []string{Undefined},
	}
}
