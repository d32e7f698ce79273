package domain

import (
	"sync/atomic"
	"time"
)

// Step identifies where in the wizard a session currently is.
type Step int

const (
	// StepIdle means no wizard is in progress for the chat.
	StepIdle Step = iota
	// StepDetailChoice awaits the "add details" vs "save as is" decision.
	StepDetailChoice
	// StepTypes is the multi-select tool-type step.
	StepTypes
	// StepAPITier is the single-select API availability step.
	StepAPITier
	// StepPayment is the multi-select payment-model step.
	StepPayment
	// StepSummary awaits approve/edit/cancel on a persisted record.
	StepSummary
)

// String returns the step name for logging.
func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepDetailChoice:
		return "detail_choice"
	case StepTypes:
		return "types"
	case StepAPITier:
		return "api_tier"
	case StepPayment:
		return "payment"
	case StepSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// TimerHandle is a cancellable scheduled callback owned by a session.
// Stop reports whether the callback was prevented from running.
type TimerHandle interface {
	Stop() bool
}

// WizardSession holds per-chat wizard state. A session belongs to exactly
// one owner; all mutation happens on the controller's event path, except
// the auto-approve timer which synchronizes through SummaryHandled.
type WizardSession struct {
	OwnerID   int64
	StartedAt time.Time

	Initial *InitialRecord
	Types   []string
	APITier string
	Payment []string

	Step Step

	// LastPromptID is the message ID of the most recent wizard prompt,
	// kept so the next transition can delete or replace it.
	LastPromptID int

	// SummaryMsgID, SummaryTimer and SummaryHandled track an in-flight
	// "awaiting confirmation" summary. SummaryHandled is shared with the
	// auto-approve callback: whichever side wins the compare-and-swap
	// performs the final edit, the loser skips its follow-up.
	SummaryMsgID   int
	SummaryTimer   TimerHandle
	SummaryHandled *atomic.Bool

	// Pending is the snapshot of the record persisted ahead of
	// confirmation, used to render the approved/auto-approved summary.
	Pending *CompleteRecord

	// LastRecordID is the identifier returned by the record store for the
	// most recent create, enabling delete-then-recreate on edit.
	LastRecordID string
}

// Active reports whether a wizard is in progress.
func (s *WizardSession) Active() bool {
	return s.Step != StepIdle
}

// Expired reports whether the session has outlived ttl at the given time.
func (s *WizardSession) Expired(now time.Time, ttl time.Duration) bool {
	if s.StartedAt.IsZero() {
		return false
	}
	return now.Sub(s.StartedAt) > ttl
}

// ToggleType adds the type if absent and removes it if present, preserving
// insertion order of the remaining entries. Reports whether the label was
// recognized and the set changed.
func (s *WizardSession) ToggleType(label string) bool {
	if !contains(ToolTypes, label) {
		return false
	}
	s.Types = toggle(s.Types, label)
	return true
}

// SetTier replaces the single-valued API tier. Reports whether the value
// actually changed; re-selecting the current tier is a no-op.
func (s *WizardSession) SetTier(tier string) bool {
	if !contains(APITiers, tier) || s.APITier == tier {
		return false
	}
	s.APITier = tier
	return true
}

// TogglePayment adds or removes a payment model, same semantics as ToggleType.
func (s *WizardSession) TogglePayment(label string) bool {
	if !contains(PaymentModels, label) {
		return false
	}
	s.Payment = toggle(s.Payment, label)
	return true
}

// Assemble builds the full record from collected selections. The session
// must hold an InitialRecord; callers enforce that before the persistence
// step.
func (s *WizardSession) Assemble() CompleteRecord {
	rec := CompleteRecord{
		Name:        s.Initial.Name,
		URL:         s.Initial.URL,
		Description: s.Initial.Description,
		Types:       append([]string(nil), s.Types...),
		State:       StatePublic,
		APITier:     s.APITier,
		Payment:     append([]string(nil), s.Payment...),
	}
	if len(rec.Types) == 0 {
		rec.Types = []string{Undefined}
	}
	if rec.APITier == "" {
		rec.APITier = "Not Provided"
	}
	if len(rec.Payment) == 0 {
		rec.Payment = []string{"Freemium"}
	}
	return rec
}

// DisarmSummaryTimer stops the pending auto-approve timer, if any.
func (s *WizardSession) DisarmSummaryTimer() {
	if s.SummaryTimer != nil {
		s.SummaryTimer.Stop()
		s.SummaryTimer = nil
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func toggle(set []string, v string) []string {
	for i, s := range set {
		if s == v {
			return append(set[:i], set[i+1:]...)
		}
	}
	return append(set, v)
}
