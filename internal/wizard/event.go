package wizard

import (
	"strings"

	"github.com/pintegram/toolbot/internal/markup"
)

// EventKind is the decoded family of a selection token.
type EventKind int

const (
	// EventUnknown marks an unrecognized token; the controller ignores it.
	EventUnknown EventKind = iota
	// EventDetailYes continues into the detail-selection steps.
	EventDetailYes
	// EventDetailNo saves the record with minimal info.
	EventDetailNo
	// EventNavTypes re-renders the type-selection step.
	EventNavTypes
	// EventNavAPI re-renders the API-tier step.
	EventNavAPI
	// EventNavStart re-renders the entry prompt after a declined cancel.
	EventNavStart
	// EventTypeToggle toggles a tool type; Label carries the display name.
	EventTypeToggle
	// EventTypesDone advances past type selection.
	EventTypesDone
	// EventTierSelect picks the API tier; Label carries the display name.
	EventTierSelect
	// EventTierDone advances past tier selection.
	EventTierDone
	// EventPaymentToggle toggles a payment model; Label carries the name.
	EventPaymentToggle
	// EventPaymentDone assembles and persists the full record.
	EventPaymentDone
	// EventSummaryApprove finalizes the persisted record.
	EventSummaryApprove
	// EventSummaryEdit discards the persisted record and restarts selection.
	EventSummaryEdit
	// EventSummaryCancel abandons the persisted record summary.
	EventSummaryCancel
	// EventDeleteSummary removes an already-finalized summary message.
	EventDeleteSummary
	// EventAbort asks for cancellation confirmation.
	EventAbort
	// EventAbortConfirm cancels the wizard unconditionally.
	EventAbortConfirm
)

// Event is a selection event decoded once at the boundary. Label is only
// set for the toggle/select kinds.
type Event struct {
	Kind  EventKind
	Label string
}

// DecodeEvent maps an opaque callback token to its tagged event. Tokens
// outside the known families decode to EventUnknown rather than an error;
// the wire contract is to swallow them silently.
func DecodeEvent(data string) Event {
	switch data {
	case markup.TokenDetailYes:
		return Event{Kind: EventDetailYes}
	case markup.TokenDetailNo:
		return Event{Kind: EventDetailNo}
	case markup.TokenNavTypes:
		return Event{Kind: EventNavTypes}
	case markup.TokenNavAPI:
		return Event{Kind: EventNavAPI}
	case markup.TokenNavStart:
		return Event{Kind: EventNavStart}
	case markup.TokenTypesDone:
		return Event{Kind: EventTypesDone}
	case markup.TokenTierDone:
		return Event{Kind: EventTierDone}
	case markup.TokenPaymentDone:
		return Event{Kind: EventPaymentDone}
	case markup.TokenSummaryApprove:
		return Event{Kind: EventSummaryApprove}
	case markup.TokenSummaryEdit:
		return Event{Kind: EventSummaryEdit}
	case markup.TokenSummaryCancel:
		return Event{Kind: EventSummaryCancel}
	case markup.TokenDeleteSummary:
		return Event{Kind: EventDeleteSummary}
	case markup.TokenAbort:
		return Event{Kind: EventAbort}
	case markup.TokenAbortConfirm:
		return Event{Kind: EventAbortConfirm}
	}

	switch {
	case strings.HasPrefix(data, "type_"):
		if label := markup.TypeLabel(data); label != "" {
			return Event{Kind: EventTypeToggle, Label: label}
		}
	case strings.HasPrefix(data, "api_"):
		if label := markup.TierLabel(data); label != "" {
			return Event{Kind: EventTierSelect, Label: label}
		}
	case strings.HasPrefix(data, "paid_"):
		if label := markup.PaymentLabel(data); label != "" {
			return Event{Kind: EventPaymentToggle, Label: label}
		}
	}

	return Event{Kind: EventUnknown}
}
