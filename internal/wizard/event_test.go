package wizard

import (
	"testing"

	"github.com/pintegram/toolbot/internal/markup"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data  string
		kind  EventKind
		label string
	}{
		{markup.TokenDetailYes, EventDetailYes, ""},
		{markup.TokenDetailNo, EventDetailNo, ""},
		{markup.TokenNavTypes, EventNavTypes, ""},
		{markup.TokenNavAPI, EventNavAPI, ""},
		{markup.TokenNavStart, EventNavStart, ""},
		{markup.TokenTypesDone, EventTypesDone, ""},
		{markup.TokenTierDone, EventTierDone, ""},
		{markup.TokenPaymentDone, EventPaymentDone, ""},
		{markup.TokenSummaryApprove, EventSummaryApprove, ""},
		{markup.TokenSummaryEdit, EventSummaryEdit, ""},
		{markup.TokenSummaryCancel, EventSummaryCancel, ""},
		{markup.TokenDeleteSummary, EventDeleteSummary, ""},
		{markup.TokenAbort, EventAbort, ""},
		{markup.TokenAbortConfirm, EventAbortConfirm, ""},
		{"type_text_to_image", EventTypeToggle, "Text to Image"},
		{"type_undefined", EventTypeToggle, "Undefined"},
		{"api_fully", EventTierSelect, "Fully"},
		{"api_not_provided", EventTierSelect, "Not Provided"},
		{"paid_pay_go", EventPaymentToggle, "Pay as you Go"},
		{"paid_opensource", EventPaymentToggle, "Open Source"},
	}

	for _, tt := range tests {
		ev := DecodeEvent(tt.data)
		if ev.Kind != tt.kind {
			t.Errorf("DecodeEvent(%q): expected kind %d, got %d", tt.data, tt.kind, ev.Kind)
		}
		if ev.Label != tt.label {
			t.Errorf("DecodeEvent(%q): expected label %q, got %q", tt.data, tt.label, ev.Label)
		}
	}
}

func TestDecodeEvent_UnknownTokens(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"",
		"bogus",
		"type_nonexistent",
		"api_bogus",
		"paid_",
		"summary_bogus",
	} {
		if ev := DecodeEvent(data); ev.Kind != EventUnknown {
			t.Errorf("DecodeEvent(%q): expected EventUnknown, got %d", data, ev.Kind)
		}
	}
}

// Every button the presentation layer can emit must decode to a known
// event; a drifting token scheme would silently dead-end buttons.
func TestDecodeEvent_CoversAllKeyboards(t *testing.T) {
	t.Parallel()

	keyboards := []markup.Rows{
		markup.DetailChoice(),
		markup.Types([]string{"Automation"}),
		markup.Tiers("Fully"),
		markup.Payments(nil),
		markup.Summary(),
		markup.ApprovedSummary(),
		markup.AbortConfirm(markup.TokenNavTypes),
		markup.AbortConfirm(markup.TokenNavStart),
	}

	for _, kb := range keyboards {
		for _, row := range kb {
			for _, b := range row {
				if ev := DecodeEvent(b.Data); ev.Kind == EventUnknown {
					t.Errorf("Button %q (%q) decodes to EventUnknown", b.Label, b.Data)
				}
			}
		}
	}
}
