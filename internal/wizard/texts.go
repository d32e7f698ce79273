package wizard

import (
	"fmt"
	"strings"

	"github.com/pintegram/toolbot/internal/domain"
)

// User-facing notices. Prompts are HTML-capable; the transport adapter
// sets the parse mode.
const (
	textSelectTypes   = "Select types (multiple possible):"
	textSelectTier    = "Select API Service type:"
	textSelectPayment = "Select payment options (multiple possible):"
	textExpired       = "⏰ Session expired due to inactivity. Please start over with " + SaveCommand
	textNotOwner      = "⚠️ Only the person who started can interact with these buttons"
	textNeedType      = "⚠️ Please select at least one type"
	textNeedTier      = "⚠️ Please select an API service type"
	textNeedPayment   = "⚠️ Please select at least one payment option"
	textSaveFailed    = "Sorry, there was an error saving your tool 😔"
	textSummaryCancel = "❌ Tool save cancelled."
	textAborted       = "❌ Operation cancelled. Use " + SaveCommand + " to start over."
	textAbortConfirm  = "❓ Are you sure you want to cancel? All progress will be lost."
)

func detailChoiceText(initial domain.InitialRecord, duplicate bool) string {
	var b strings.Builder
	b.WriteString("Tool info received! 📝\n\n")
	fmt.Fprintf(&b, "<b>Name:</b> %s\n", initial.Name)
	fmt.Fprintf(&b, "<b>URL:</b> %s\n", initial.URL)
	fmt.Fprintf(&b, "<b>Description:</b> %s\n", initial.Description)
	if duplicate {
		b.WriteString("\n⚠️ This URL is already in the database; saving will add a second entry.\n")
	}
	b.WriteString("\nWould you like to add more details (types, API info, payment options)?")
	return b.String()
}

func summaryText(header string, rec domain.CompleteRecord) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n<b>Summary:</b>\n")
	fmt.Fprintf(&b, "<b>Name:</b> %s\n", rec.Name)
	fmt.Fprintf(&b, "<b>URL:</b> %s\n", rec.URL)
	fmt.Fprintf(&b, "<b>Description:</b> %s\n", rec.Description)
	fmt.Fprintf(&b, "<b>Types:</b> %s\n", strings.Join(rec.Types, ", "))
	fmt.Fprintf(&b, "<b>API Services:</b> %s\n", rec.APITier)
	fmt.Fprintf(&b, "<b>Payment:</b> %s", strings.Join(rec.Payment, ", "))
	return b.String()
}

func rateLimitText(seconds int) string {
	return fmt.Sprintf("⚠️ Please wait %d seconds before clicking buttons again.", seconds)
}
