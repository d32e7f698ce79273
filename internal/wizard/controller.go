package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pintegram/toolbot/internal/domain"
	"github.com/pintegram/toolbot/internal/markup"
)

// Options holds the wizard timing knobs. Tests shorten these; production
// uses DefaultOptions, which matches the bot's published behavior.
type Options struct {
	// SessionTTL is the freshness window checked lazily on every
	// selection event.
	SessionTTL time.Duration

	// AutoApproveDelay is how long an unconfirmed summary waits before
	// the record is finalized automatically.
	AutoApproveDelay time.Duration

	// CleanupDelay is the lifetime of transient notices and finalized
	// summaries before self-deletion.
	CleanupDelay time.Duration

	// NoticeDelay is the lifetime of the cancellation notice and of an
	// auto-approved summary before self-deletion.
	NoticeDelay time.Duration
}

// DefaultOptions returns the production timing configuration.
func DefaultOptions() Options {
	return Options{
		SessionTTL:       2 * time.Minute,
		AutoApproveDelay: 15 * time.Second,
		CleanupDelay:     15 * time.Second,
		NoticeDelay:      5 * time.Second,
	}
}

// Command is an inbound free-text command event.
type Command struct {
	ChatID int64
	UserID int64
	Text   string
}

// Selection is an inbound button-press event carrying an opaque token.
type Selection struct {
	ChatID     int64
	UserID     int64
	MessageID  int
	CallbackID string
	Data       string
}

// Controller sequences the wizard. It interprets commands and selections
// against per-chat session state and issues outbound actions through its
// ports. Events for one chat are processed one at a time; the only
// concurrent actor is the auto-approve timer, arbitrated by the session's
// handled flag.
type Controller struct {
	sessions *SessionStore
	records  RecordStore
	mirror   Mirror
	msgr     Messenger
	sched    Scheduler
	now      func() time.Time
	opts     Options
	logger   *slog.Logger
}

// NewController creates a wizard controller. mirror may be nil when no
// local record mirror is configured.
func NewController(records RecordStore, mirror Mirror, msgr Messenger, sched Scheduler, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions: NewSessionStore(),
		records:  records,
		mirror:   mirror,
		msgr:     msgr,
		sched:    sched,
		now:      time.Now,
		opts:     opts,
		logger:   logger,
	}
}

// SetClock overrides the controller's time source. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// HandleCommand processes a /savetool command: parse, seed a fresh
// session and ask whether to add details. A command always supersedes
// whatever session the chat had before.
func (c *Controller) HandleCommand(ctx context.Context, cmd Command) {
	initial, err := ParseSaveCommand(cmd.Text)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			c.logger.Info("Command rejected", "chat_id", cmd.ChatID, "reason", perr.Message)
			c.notify(ctx, cmd.ChatID, perr.Message)
			return
		}
		c.logger.Error("Command parse failed", "chat_id", cmd.ChatID, "error", err)
		c.notify(ctx, cmd.ChatID, textSaveFailed)
		return
	}

	// Abandoned sessions are reset on the next command.
	c.sessions.Reset(cmd.ChatID)

	sess := c.sessions.Get(cmd.ChatID)
	sess.OwnerID = cmd.UserID
	sess.StartedAt = c.now()
	sess.Initial = &initial
	sess.Step = domain.StepDetailChoice

	duplicate := c.knownURL(ctx, initial.URL)

	msgID, err := c.msgr.Send(ctx, cmd.ChatID, detailChoiceText(initial, duplicate), markup.DetailChoice())
	if err != nil {
		c.logger.Error("Failed to send detail-choice prompt", "chat_id", cmd.ChatID, "error", err)
		return
	}
	sess.LastPromptID = msgID
	c.logger.Info("Wizard started", "chat_id", cmd.ChatID, "user_id", cmd.UserID, "name", initial.Name)
}

// HandleSelection processes a button press. Decoding, the freshness gate
// and the ownership gate run before any per-step dispatch.
func (c *Controller) HandleSelection(ctx context.Context, sel Selection) {
	ev := DecodeEvent(sel.Data)
	if ev.Kind == EventUnknown {
		c.logger.Debug("Ignoring unknown selection token", "chat_id", sel.ChatID, "data", sel.Data)
		return
	}

	// Deleting a finalized summary touches no session state: the session
	// was already reset when the summary was approved.
	if ev.Kind == EventDeleteSummary {
		c.bestEffort("delete finalized summary", sel.ChatID,
			c.msgr.Delete(ctx, sel.ChatID, sel.MessageID))
		return
	}

	sess := c.sessions.Get(sel.ChatID)

	if sess.Active() && sess.Expired(c.now(), c.opts.SessionTTL) {
		c.expireSession(ctx, sel.ChatID)
		return
	}

	if sess.OwnerID == 0 || sess.OwnerID != sel.UserID {
		if err := c.msgr.AnswerEphemeral(ctx, sel.CallbackID, textNotOwner, true); err != nil {
			c.logger.Error("Failed to answer unauthorized callback", "chat_id", sel.ChatID, "error", err)
		}
		return
	}

	c.logger.Info("Selection received", "chat_id", sel.ChatID, "step", sess.Step.String(), "data", sel.Data)

	switch ev.Kind {
	case EventDetailYes:
		c.handleDetailYes(ctx, sel, sess)
	case EventDetailNo:
		c.handleDetailNo(ctx, sel, sess)
	case EventTypeToggle:
		c.handleTypeToggle(ctx, sel, sess, ev.Label)
	case EventTypesDone:
		c.handleTypesDone(ctx, sel, sess)
	case EventTierSelect:
		c.handleTierSelect(ctx, sel, sess, ev.Label)
	case EventTierDone:
		c.handleTierDone(ctx, sel, sess)
	case EventPaymentToggle:
		c.handlePaymentToggle(ctx, sel, sess, ev.Label)
	case EventPaymentDone:
		c.handlePaymentDone(ctx, sel, sess)
	case EventSummaryApprove:
		c.handleSummaryApprove(ctx, sel, sess)
	case EventSummaryEdit:
		c.handleSummaryEdit(ctx, sel, sess)
	case EventSummaryCancel:
		c.handleSummaryCancel(ctx, sel, sess)
	case EventNavTypes:
		c.renderStep(ctx, sel, sess, domain.StepTypes)
	case EventNavAPI:
		c.renderStep(ctx, sel, sess, domain.StepAPITier)
	case EventNavStart:
		c.renderStep(ctx, sel, sess, domain.StepDetailChoice)
	case EventAbort:
		c.handleAbort(ctx, sel, sess)
	case EventAbortConfirm:
		c.handleAbortConfirm(ctx, sel)
	}
}

func (c *Controller) handleDetailYes(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepDetailChoice {
		c.ignore(sel, sess, "detail_yes")
		return
	}
	c.bestEffort("delete detail-choice prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sess.LastPromptID))

	msgID, err := c.msgr.Send(ctx, sel.ChatID, textSelectTypes, markup.Types(sess.Types))
	if err != nil {
		c.logger.Error("Failed to send type prompt", "chat_id", sel.ChatID, "error", err)
		return
	}
	sess.LastPromptID = msgID
	sess.Step = domain.StepTypes
}

func (c *Controller) handleDetailNo(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepDetailChoice || sess.Initial == nil {
		c.ignore(sel, sess, "detail_no")
		return
	}
	c.bestEffort("delete detail-choice prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sess.LastPromptID))

	rec := domain.MinimalRecord(*sess.Initial)
	c.persistAndSummarize(ctx, sel.ChatID, sess, rec, "Tool saved successfully with minimal info! ✅")
}

func (c *Controller) handleTypeToggle(ctx context.Context, sel Selection, sess *domain.WizardSession, label string) {
	if sess.Step != domain.StepTypes {
		c.ignore(sel, sess, "type_toggle")
		return
	}
	if !sess.ToggleType(label) {
		return
	}
	c.bestEffort("redraw type prompt", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, textSelectTypes, markup.Types(sess.Types)))
}

func (c *Controller) handleTypesDone(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepTypes {
		c.ignore(sel, sess, "types_done")
		return
	}
	if len(sess.Types) == 0 {
		c.warn(ctx, sel.CallbackID, textNeedType)
		return
	}
	c.bestEffort("show tier prompt", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, textSelectTier, markup.Tiers(sess.APITier)))
	sess.LastPromptID = sel.MessageID
	sess.Step = domain.StepAPITier
}

func (c *Controller) handleTierSelect(ctx context.Context, sel Selection, sess *domain.WizardSession, label string) {
	if sess.Step != domain.StepAPITier {
		c.ignore(sel, sess, "tier_select")
		return
	}
	// Re-selecting the current tier is a deliberate no-op: no redraw.
	if !sess.SetTier(label) {
		return
	}
	c.bestEffort("redraw tier prompt", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, textSelectTier, markup.Tiers(sess.APITier)))
}

func (c *Controller) handleTierDone(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepAPITier {
		c.ignore(sel, sess, "tier_done")
		return
	}
	if sess.APITier == "" {
		c.warn(ctx, sel.CallbackID, textNeedTier)
		return
	}
	c.bestEffort("show payment prompt", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, textSelectPayment, markup.Payments(sess.Payment)))
	sess.LastPromptID = sel.MessageID
	sess.Step = domain.StepPayment
}

func (c *Controller) handlePaymentToggle(ctx context.Context, sel Selection, sess *domain.WizardSession, label string) {
	if sess.Step != domain.StepPayment {
		c.ignore(sel, sess, "payment_toggle")
		return
	}
	if !sess.TogglePayment(label) {
		return
	}
	c.bestEffort("redraw payment prompt", sel.ChatID,
		c.msgr.EditKeyboard(ctx, sel.ChatID, sel.MessageID, markup.Payments(sess.Payment)))
}

func (c *Controller) handlePaymentDone(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepPayment {
		c.ignore(sel, sess, "payment_done")
		return
	}
	if sess.Initial == nil {
		c.logger.Error("Payment done without initial record", "chat_id", sel.ChatID)
		return
	}
	if len(sess.Payment) == 0 {
		c.warn(ctx, sel.CallbackID, textNeedPayment)
		return
	}

	rec := sess.Assemble()
	c.bestEffort("delete payment prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sess.LastPromptID))
	c.persistAndSummarize(ctx, sel.ChatID, sess, rec, "Tool saved successfully! ✅")
}

// persistAndSummarize creates the record, shows the confirmation summary
// and arms the auto-approve timer. On a persistence failure the collected
// session state is preserved so the user can retry instead of restarting.
func (c *Controller) persistAndSummarize(ctx context.Context, chatID int64, sess *domain.WizardSession, rec domain.CompleteRecord, header string) {
	recordID, err := c.records.Create(ctx, rec)
	if err != nil {
		c.logger.Error("Failed to persist record", "chat_id", chatID, "name", rec.Name, "error", err)
		c.notify(ctx, chatID, textSaveFailed)
		return
	}
	c.mirrorSave(ctx, recordID, rec)

	sess.LastRecordID = recordID
	sess.Pending = &rec

	msgID, err := c.msgr.Send(ctx, chatID, summaryText(header, rec), markup.Summary())
	if err != nil {
		c.logger.Error("Failed to send summary", "chat_id", chatID, "error", err)
		return
	}

	handled := new(atomic.Bool)
	sess.SummaryMsgID = msgID
	sess.SummaryHandled = handled
	sess.SummaryTimer = c.sched.AfterFunc(c.opts.AutoApproveDelay, func() {
		c.autoApprove(chatID, msgID, rec, handled)
	})
	sess.Step = domain.StepSummary

	c.logger.Info("Record persisted, awaiting confirmation",
		"chat_id", chatID, "record_id", recordID, "name", rec.Name)
}

// autoApprove runs on the timer goroutine. The compare-and-swap decides
// the race against a user action already in flight; the loser skips its
// follow-up edit entirely.
func (c *Controller) autoApprove(chatID int64, msgID int, rec domain.CompleteRecord, handled *atomic.Bool) {
	if !handled.CompareAndSwap(false, true) {
		return
	}
	ctx := context.Background()

	c.bestEffort("edit auto-approved summary", chatID,
		c.msgr.Edit(ctx, chatID, msgID, summaryText("Tool auto-approved and saved! ✅", rec), nil))
	c.scheduleDelete(chatID, msgID, c.opts.NoticeDelay)
	c.sessions.Reset(chatID)

	c.logger.Info("Record auto-approved", "chat_id", chatID, "name", rec.Name)
}

func (c *Controller) handleSummaryApprove(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepSummary || sess.Pending == nil {
		c.ignore(sel, sess, "summary_approve")
		return
	}
	if !sess.SummaryHandled.CompareAndSwap(false, true) {
		return // auto-approve won the race
	}
	sess.DisarmSummaryTimer()

	c.bestEffort("edit approved summary", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sess.SummaryMsgID,
			summaryText("✅ Tool approved and saved!", *sess.Pending), markup.ApprovedSummary()))
	c.scheduleDelete(sel.ChatID, sess.SummaryMsgID, c.opts.CleanupDelay)
	c.sessions.Reset(sel.ChatID)

	c.logger.Info("Record approved", "chat_id", sel.ChatID, "record_id", sess.LastRecordID)
}

func (c *Controller) handleSummaryEdit(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepSummary || sess.Initial == nil {
		c.ignore(sel, sess, "summary_edit")
		return
	}
	if !sess.SummaryHandled.CompareAndSwap(false, true) {
		return
	}
	sess.DisarmSummaryTimer()

	c.bestEffort("delete summary prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sess.SummaryMsgID))

	// Compensate for the premature persistence before re-collecting.
	if sess.LastRecordID != "" {
		if err := c.records.Delete(ctx, sess.LastRecordID); err != nil {
			c.logger.Error("Failed to delete record for edit", "chat_id", sel.ChatID,
				"record_id", sess.LastRecordID, "error", err)
		} else {
			c.mirrorDelete(ctx, sess.LastRecordID)
		}
	}

	sess.Types = nil
	sess.APITier = ""
	sess.Payment = nil
	sess.Pending = nil
	sess.LastRecordID = ""
	sess.SummaryMsgID = 0
	sess.SummaryHandled = nil
	sess.StartedAt = c.now()

	msgID, err := c.msgr.Send(ctx, sel.ChatID, textSelectTypes, markup.Types(nil))
	if err != nil {
		c.logger.Error("Failed to send type prompt", "chat_id", sel.ChatID, "error", err)
		return
	}
	sess.LastPromptID = msgID
	sess.Step = domain.StepTypes
}

func (c *Controller) handleSummaryCancel(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if sess.Step != domain.StepSummary {
		c.ignore(sel, sess, "summary_cancel")
		return
	}
	if !sess.SummaryHandled.CompareAndSwap(false, true) {
		return
	}
	sess.DisarmSummaryTimer()

	c.bestEffort("delete summary prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sess.SummaryMsgID))
	c.notify(ctx, sel.ChatID, textSummaryCancel)
	c.sessions.Reset(sel.ChatID)
}

// renderStep re-renders a previous step in place, preserving selections.
// Used by the back buttons and by "no, go back" on the cancel prompt.
func (c *Controller) renderStep(ctx context.Context, sel Selection, sess *domain.WizardSession, step domain.Step) {
	if !sess.Active() {
		c.ignore(sel, sess, "nav")
		return
	}

	var (
		text string
		kb   markup.Rows
	)
	switch step {
	case domain.StepDetailChoice:
		if sess.Initial == nil {
			return
		}
		text = detailChoiceText(*sess.Initial, false)
		kb = markup.DetailChoice()
	case domain.StepTypes:
		text = textSelectTypes
		kb = markup.Types(sess.Types)
	case domain.StepAPITier:
		text = textSelectTier
		kb = markup.Tiers(sess.APITier)
	default:
		return
	}

	c.bestEffort("render step", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, text, kb))
	sess.LastPromptID = sel.MessageID
	sess.Step = step
}

// handleAbort replaces the current prompt with a cancel confirmation.
// The "go back" destination is the last completed step: tier chosen means
// the API step, types chosen means the type step, otherwise the entry
// prompt.
func (c *Controller) handleAbort(ctx context.Context, sel Selection, sess *domain.WizardSession) {
	if !sess.Active() {
		c.ignore(sel, sess, "abort")
		return
	}

	returnToken := markup.TokenNavStart
	switch {
	case sess.APITier != "":
		returnToken = markup.TokenNavAPI
	case len(sess.Types) > 0:
		returnToken = markup.TokenNavTypes
	}

	c.bestEffort("show abort confirmation", sel.ChatID,
		c.msgr.Edit(ctx, sel.ChatID, sel.MessageID, textAbortConfirm, markup.AbortConfirm(returnToken)))
}

func (c *Controller) handleAbortConfirm(ctx context.Context, sel Selection) {
	c.bestEffort("delete abort prompt", sel.ChatID,
		c.msgr.Delete(ctx, sel.ChatID, sel.MessageID))
	c.sessions.Reset(sel.ChatID)

	msgID, err := c.msgr.Send(ctx, sel.ChatID, textAborted, nil)
	if err != nil {
		c.logger.Error("Failed to send cancellation notice", "chat_id", sel.ChatID, "error", err)
		return
	}
	c.scheduleDelete(sel.ChatID, msgID, c.opts.NoticeDelay)
	c.logger.Info("Wizard cancelled", "chat_id", sel.ChatID)
}

func (c *Controller) expireSession(ctx context.Context, chatID int64) {
	c.sessions.Reset(chatID)

	msgID, err := c.msgr.Send(ctx, chatID, textExpired, nil)
	if err != nil {
		c.logger.Error("Failed to send expiry notice", "chat_id", chatID, "error", err)
		return
	}
	c.scheduleDelete(chatID, msgID, c.opts.CleanupDelay)
	c.logger.Info("Wizard session expired", "chat_id", chatID)
}

// scheduleDelete removes a message after the delay, best-effort.
func (c *Controller) scheduleDelete(chatID int64, msgID int, delay time.Duration) {
	c.sched.AfterFunc(delay, func() {
		if err := c.msgr.Delete(context.Background(), chatID, msgID); err != nil {
			c.logger.Error("Failed to delete scheduled message",
				"chat_id", chatID, "message_id", msgID, "error", err)
		}
	})
}

// bestEffort logs and discards a transport failure, except rate limiting,
// which is surfaced to the chat with the wait hint.
func (c *Controller) bestEffort(op string, chatID int64, err error) {
	if err == nil {
		return
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		seconds := int(rl.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		c.notify(context.Background(), chatID, rateLimitText(seconds))
		return
	}
	c.logger.Error("Transport action failed", "op", op, "chat_id", chatID, "error", err)
}

// notify sends a plain text message, discarding errors.
func (c *Controller) notify(ctx context.Context, chatID int64, text string) {
	if _, err := c.msgr.Send(ctx, chatID, text, nil); err != nil {
		c.logger.Error("Failed to send notice", "chat_id", chatID, "error", err)
	}
}

func (c *Controller) warn(ctx context.Context, callbackID, text string) {
	if err := c.msgr.AnswerEphemeral(ctx, callbackID, text, true); err != nil {
		c.logger.Error("Failed to answer callback with warning", "error", err)
	}
}

func (c *Controller) ignore(sel Selection, sess *domain.WizardSession, what string) {
	c.logger.Debug("Ignoring out-of-step selection",
		"chat_id", sel.ChatID, "step", sess.Step.String(), "event", what)
}

func (c *Controller) knownURL(ctx context.Context, url string) bool {
	if c.mirror == nil {
		return false
	}
	rec, err := c.mirror.FindByURL(ctx, url)
	if err != nil {
		c.logger.Warn("Mirror lookup failed", "url", url, "error", err)
		return false
	}
	return rec != nil
}

func (c *Controller) mirrorSave(ctx context.Context, recordID string, rec domain.CompleteRecord) {
	if c.mirror == nil {
		return
	}
	saved := domain.SavedRecord{
		ID:          recordID,
		Name:        rec.Name,
		URL:         rec.URL,
		Description: rec.Description,
		Types:       rec.Types,
		State:       rec.State,
		APITier:     rec.APITier,
		Payment:     rec.Payment,
	}
	if err := c.mirror.SaveRecord(ctx, saved); err != nil {
		c.logger.Warn("Mirror save failed", "record_id", recordID, "error", err)
	}
}

func (c *Controller) mirrorDelete(ctx context.Context, recordID string) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.DeleteRecord(ctx, recordID); err != nil {
		c.logger.Warn("Mirror delete failed", "record_id", recordID, "error", err)
	}
}
