// Package markup maps wizard steps and current selections to inline
// keyboards. Everything here is pure and deterministic: the controller
// supplies state, markup returns ordered (label, token) button rows.
package markup

import "github.com/pintegram/toolbot/internal/domain"

// Button is a single selectable option: a display label and the opaque
// callback token sent back when the user presses it.
type Button struct {
	Label string
	Data  string
}

// Rows is an ordered inline keyboard layout.
type Rows [][]Button

// Fixed callback tokens. The prefix families (type_, api_, paid_, nav_)
// are generated from the vocabularies below.
const (
	TokenDetailYes      = "confirm_yes"
	TokenDetailNo       = "confirm_no"
	TokenNavTypes       = "nav_types"
	TokenNavAPI         = "nav_api"
	TokenNavStart       = "nav_start"
	TokenTypesDone      = "types_done"
	TokenTierDone       = "api_done"
	TokenPaymentDone    = "paid_done"
	TokenSummaryCancel  = "summary_cancel"
	TokenSummaryEdit    = "summary_edit"
	TokenSummaryApprove = "summary_approve"
	TokenDeleteSummary  = "delete_summary"
	TokenAbort          = "abort"
	TokenAbortConfirm   = "abort_confirm"
)

var typeTokens = map[string]string{
	"Undefined":          "type_undefined",
	"Text to Image":      "type_text_to_image",
	"Text to Video":      "type_text_to_video",
	"Image to Image":     "type_image_to_image",
	"Image to Video":     "type_image_to_video",
	"Character to Image": "type_character_to_image",
	"Character to Video": "type_character_to_video",
	"Text to Sound":      "type_text_to_sound",
	"Text to Speech":     "type_text_to_speech",
	"Text to Music":      "type_text_to_music",
	"Image Helper":       "type_image_helper",
	"Video Helper":       "type_video_helper",
	"AI Aggregator":      "type_ai_aggregator",
	"Automation":         "type_automation",
}

var tierTokens = map[string]string{
	"Fully":        "api_fully",
	"Partially":    "api_partially",
	"Unofficial":   "api_unofficial",
	"Not Provided": "api_not_provided",
}

var paymentTokens = map[string]string{
	"Pay as you Go": "paid_pay_go",
	"Monthly":       "paid_monthly",
	"Freemium":      "paid_freemium",
	"Open Source":   "paid_opensource",
}

var (
	typeLabels    = invert(typeTokens)
	tierLabels    = invert(tierTokens)
	paymentLabels = invert(paymentTokens)
)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for label, token := range m {
		out[token] = label
	}
	return out
}

// TypeLabel resolves a type-toggle token back to its display label.
// Returns "" for unrecognized tokens.
func TypeLabel(token string) string { return typeLabels[token] }

// TierLabel resolves a tier-select token back to its display label.
func TierLabel(token string) string { return tierLabels[token] }

// PaymentLabel resolves a payment-toggle token back to its display label.
func PaymentLabel(token string) string { return paymentLabels[token] }

func check(label string, selected []string) string {
	for _, s := range selected {
		if s == label {
			return label + " ✅"
		}
	}
	return label
}

// DetailChoice offers "add more details" vs "save as is" after parsing.
func DetailChoice() Rows {
	return Rows{
		{
			{Label: "Yes, add more details ➡️", Data: TokenDetailYes},
			{Label: "No, save as is ✅", Data: TokenDetailNo},
		},
	}
}

// Types renders the tool-type multi-select grid with checkmarks on the
// current selections. Row layout mirrors the vocabulary grouping:
// Undefined alone, then transformation pairs, then helpers.
func Types(selected []string) Rows {
	pairRows := [][]string{
		{"Text to Image", "Text to Video"},
		{"Image to Image", "Image to Video"},
		{"Character to Image", "Character to Video"},
		{"Text to Sound", "Text to Speech"},
		{"Text to Music"},
		{"Image Helper", "Video Helper"},
		{"AI Aggregator", "Automation"},
	}

	rows := Rows{
		{{Label: check("Undefined", selected), Data: typeTokens["Undefined"]}},
	}
	for _, pair := range pairRows {
		var row []Button
		for _, label := range pair {
			row = append(row, Button{Label: check(label, selected), Data: typeTokens[label]})
		}
		rows = append(rows, row)
	}

	rows = append(rows, []Button{
		{Label: "❌ Cancel", Data: TokenAbort},
		{Label: "Next ➡️", Data: TokenTypesDone},
	})
	return rows
}

// Tiers renders the single-select API tier column; at most one entry
// carries a checkmark.
func Tiers(selected string) Rows {
	var rows Rows
	for _, label := range domain.APITiers {
		var sel []string
		if selected != "" {
			sel = []string{selected}
		}
		rows = append(rows, []Button{{Label: check(label, sel), Data: tierTokens[label]}})
	}
	rows = append(rows, []Button{
		{Label: "❌ Cancel", Data: TokenAbort},
		{Label: "⬅️ Back", Data: TokenNavTypes},
		{Label: "Next ➡️", Data: TokenTierDone},
	})
	return rows
}

// Payments renders the payment multi-select column with checkmarks.
func Payments(selected []string) Rows {
	var rows Rows
	for _, label := range domain.PaymentModels {
		rows = append(rows, []Button{{Label: check(label, selected), Data: paymentTokens[label]}})
	}
	rows = append(rows, []Button{
		{Label: "❌ Cancel", Data: TokenAbort},
		{Label: "⬅️ Back", Data: TokenNavAPI},
		{Label: "Save ✅", Data: TokenPaymentDone},
	})
	return rows
}

// Summary offers the terminal confirmation actions.
func Summary() Rows {
	return Rows{
		{
			{Label: "❌ Cancel", Data: TokenSummaryCancel},
			{Label: "✏️ Edit", Data: TokenSummaryEdit},
			{Label: "✅ Approve", Data: TokenSummaryApprove},
		},
	}
}

// ApprovedSummary is the single delete affordance on a finalized summary.
func ApprovedSummary() Rows {
	return Rows{
		{{Label: "🗑️ Delete", Data: TokenDeleteSummary}},
	}
}

// AbortConfirm asks for cancellation confirmation. returnToken is the
// navigation token to re-render the last completed step on "no".
func AbortConfirm(returnToken string) Rows {
	return Rows{
		{
			{Label: "Yes, cancel everything", Data: TokenAbortConfirm},
			{Label: "No, go back", Data: returnToken},
		},
	}
}
