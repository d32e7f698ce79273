package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pintegram/toolbot/internal/domain"
	"github.com/pintegram/toolbot/internal/markup"
)

const (
	testChatID  = int64(100)
	testOwnerID = int64(7)
	testOtherID = int64(8)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMsg struct {
	ChatID int64
	Text   string
	KB     markup.Rows
	ID     int
}

type editMsg struct {
	ChatID int64
	MsgID  int
	Text   string
	KB     markup.Rows
}

type deletedMsg struct {
	ChatID int64
	MsgID  int
}

type fakeMessenger struct {
	mu         sync.Mutex
	nextID     int
	sends      []sentMsg
	edits      []editMsg
	kbEdits    []editMsg
	deletes    []deletedMsg
	ephemerals []string
	sendErr    error
	editErr    error
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, kb markup.Rows) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, sentMsg{ChatID: chatID, Text: text, KB: kb, ID: f.nextID})
	return f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, chatID int64, msgID int, text string, kb markup.Rows) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editMsg{ChatID: chatID, MsgID: msgID, Text: text, KB: kb})
	return nil
}

func (f *fakeMessenger) EditKeyboard(_ context.Context, chatID int64, msgID int, kb markup.Rows) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.kbEdits = append(f.kbEdits, editMsg{ChatID: chatID, MsgID: msgID, KB: kb})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, chatID int64, msgID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deletedMsg{ChatID: chatID, MsgID: msgID})
	return nil
}

func (f *fakeMessenger) AnswerEphemeral(_ context.Context, _ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, text)
	return nil
}

func (f *fakeMessenger) lastSend() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		return sentMsg{}
	}
	return f.sends[len(f.sends)-1]
}

func (f *fakeMessenger) editsOf(msgID int) []editMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []editMsg
	for _, e := range f.edits {
		if e.MsgID == msgID {
			out = append(out, e)
		}
	}
	return out
}

type fakeRecords struct {
	mu        sync.Mutex
	nextID    int
	created   []domain.CompleteRecord
	deleted   []string
	createErr error
}

func (f *fakeRecords) Create(_ context.Context, rec domain.CompleteRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.created = append(f.created, rec)
	return fmt.Sprintf("rec%d", f.nextID), nil
}

func (f *fakeRecords) Delete(_ context.Context, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, recordID)
	return nil
}

func (f *fakeRecords) lastCreated() domain.CompleteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return domain.CompleteRecord{}
	}
	return f.created[len(f.created)-1]
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) domain.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs the i-th scheduled callback unless it was stopped, matching
// time.AfterFunc semantics.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	if i >= len(s.timers) {
		s.mu.Unlock()
		return
	}
	t := s.timers[i]
	s.mu.Unlock()

	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type harness struct {
	c       *Controller
	msgr    *fakeMessenger
	records *fakeRecords
	sched   *fakeScheduler
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		msgr:    &fakeMessenger{},
		records: &fakeRecords{},
		sched:   &fakeScheduler{},
		clock:   newFakeClock(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.c = NewController(h.records, nil, h.msgr, h.sched, DefaultOptions(), logger)
	h.c.SetClock(h.clock.Now)
	return h
}

func (h *harness) start(t *testing.T) int {
	t.Helper()
	h.c.HandleCommand(context.Background(), Command{
		ChatID: testChatID,
		UserID: testOwnerID,
		Text:   "/savetool MyTool https://example.com A great tool",
	})
	last := h.msgr.lastSend()
	if last.ID == 0 {
		t.Fatal("Expected a detail-choice prompt to be sent")
	}
	return last.ID
}

func (h *harness) press(msgID int, data string) {
	h.c.HandleSelection(context.Background(), Selection{
		ChatID:     testChatID,
		UserID:     testOwnerID,
		MessageID:  msgID,
		CallbackID: "cb",
		Data:       data,
	})
}

// toPayment walks the wizard up to the payment step with one type and a
// tier selected, returning the live prompt message ID.
func (h *harness) toPayment(t *testing.T) int {
	t.Helper()
	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID
	h.press(promptID, "type_text_to_image")
	h.press(promptID, markup.TokenTypesDone)
	h.press(promptID, "api_fully")
	h.press(promptID, markup.TokenTierDone)
	h.press(promptID, "paid_freemium")
	return promptID
}

func (h *harness) session() *domain.WizardSession {
	return h.c.sessions.Get(testChatID)
}

func TestHandleCommand_StartsWizard(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)

	sess := h.session()
	if sess.Step != domain.StepDetailChoice {
		t.Errorf("Expected step detail_choice, got %s", sess.Step)
	}
	if sess.OwnerID != testOwnerID {
		t.Errorf("Expected owner %d, got %d", testOwnerID, sess.OwnerID)
	}
	if sess.Initial == nil || sess.Initial.Name != "MyTool" {
		t.Errorf("Expected initial record for MyTool, got %+v", sess.Initial)
	}
	if !strings.Contains(h.msgr.lastSend().Text, "MyTool") {
		t.Errorf("Expected prompt to echo the tool name, got %q", h.msgr.lastSend().Text)
	}
}

func TestHandleCommand_ParseErrorSurfacedVerbatim(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.c.HandleCommand(context.Background(), Command{
		ChatID: testChatID,
		UserID: testOwnerID,
		Text:   "/savetool MyTool not-a-url desc",
	})

	if got := h.msgr.lastSend().Text; got != "Invalid URL format" {
		t.Errorf("Expected verbatim parse error, got %q", got)
	}
	if h.session().Active() {
		t.Error("Expected no session to start on parse failure")
	}
}

func TestFreshnessGate_ExpiresSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.clock.Advance(2*time.Minute + time.Second)
	h.press(promptID, markup.TokenDetailYes)

	if h.session().Active() {
		t.Error("Expected session reset on expiry")
	}
	if got := h.msgr.lastSend().Text; !strings.Contains(got, "expired") {
		t.Errorf("Expected expiry notice, got %q", got)
	}
	// The notice cleans itself up later.
	if h.sched.count() != 1 {
		t.Errorf("Expected 1 scheduled cleanup, got %d", h.sched.count())
	}
}

func TestOwnershipGate_RejectsOtherUsers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.c.HandleSelection(context.Background(), Selection{
		ChatID:     testChatID,
		UserID:     testOtherID,
		MessageID:  promptID,
		CallbackID: "cb",
		Data:       markup.TokenDetailYes,
	})

	sess := h.session()
	if sess.Step != domain.StepDetailChoice {
		t.Errorf("Expected state unchanged, got %s", sess.Step)
	}
	if len(h.msgr.ephemerals) != 1 {
		t.Fatalf("Expected 1 ephemeral rejection, got %d", len(h.msgr.ephemerals))
	}
	if !strings.Contains(h.msgr.ephemerals[0], "person who started") {
		t.Errorf("Unexpected rejection text %q", h.msgr.ephemerals[0])
	}
}

func TestTypeToggle_DoubleToggleRestoresSet(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID

	h.press(promptID, "type_automation")
	if got := h.session().Types; len(got) != 1 || got[0] != "Automation" {
		t.Fatalf("Expected [Automation], got %v", got)
	}

	h.press(promptID, "type_automation")
	if got := h.session().Types; len(got) != 0 {
		t.Errorf("Expected empty set after double toggle, got %v", got)
	}
	if len(h.msgr.editsOf(promptID)) != 2 {
		t.Errorf("Expected 2 redraws, got %d", len(h.msgr.editsOf(promptID)))
	}
}

func TestTierSelect_SingleValued(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID
	h.press(promptID, "type_automation")
	h.press(promptID, markup.TokenTypesDone)

	h.press(promptID, "api_fully")
	h.press(promptID, "api_partially")
	if got := h.session().APITier; got != "Partially" {
		t.Errorf("Expected tier Partially, got %q", got)
	}

	// Re-selecting the same tier is an explicit no-op: no redraw.
	before := len(h.msgr.editsOf(promptID))
	h.press(promptID, "api_partially")
	if after := len(h.msgr.editsOf(promptID)); after != before {
		t.Errorf("Expected no redraw on same-tier reselect, got %d -> %d", before, after)
	}
}

func TestDoneGates_WarnWithoutSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID

	h.press(promptID, markup.TokenTypesDone)
	if h.session().Step != domain.StepTypes {
		t.Errorf("Expected no transition, got %s", h.session().Step)
	}

	h.press(promptID, "type_automation")
	h.press(promptID, markup.TokenTypesDone)
	h.press(promptID, markup.TokenTierDone)
	if h.session().Step != domain.StepAPITier {
		t.Errorf("Expected no transition past tier, got %s", h.session().Step)
	}

	h.press(promptID, "api_fully")
	h.press(promptID, markup.TokenTierDone)
	h.press(promptID, markup.TokenPaymentDone)
	if h.session().Step != domain.StepPayment {
		t.Errorf("Expected no transition past payment, got %s", h.session().Step)
	}

	if len(h.msgr.ephemerals) != 3 {
		t.Errorf("Expected 3 warnings, got %d: %v", len(h.msgr.ephemerals), h.msgr.ephemerals)
	}
}

func TestFullFlow_PersistsAssembledRecord(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.toPayment(t)
	h.press(promptID, markup.TokenPaymentDone)

	rec := h.records.lastCreated()
	if len(rec.Types) != 1 || rec.Types[0] != "Text to Image" {
		t.Errorf("Expected Types [Text to Image], got %v", rec.Types)
	}
	if rec.State != domain.StatePublic {
		t.Errorf("Expected State Public, got %q", rec.State)
	}
	if rec.APITier != "Fully" {
		t.Errorf("Expected API tier Fully, got %q", rec.APITier)
	}
	if len(rec.Payment) != 1 || rec.Payment[0] != "Freemium" {
		t.Errorf("Expected Payment [Freemium], got %v", rec.Payment)
	}

	sess := h.session()
	if sess.Step != domain.StepSummary {
		t.Errorf("Expected summary step, got %s", sess.Step)
	}
	if sess.LastRecordID != "rec1" {
		t.Errorf("Expected stored record ID rec1, got %q", sess.LastRecordID)
	}
	if sess.SummaryTimer == nil {
		t.Error("Expected auto-approve timer armed")
	}
}

func TestMinimalSave_UsesUndefinedFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.press(promptID, markup.TokenDetailNo)

	rec := h.records.lastCreated()
	if len(rec.Types) != 1 || rec.Types[0] != domain.Undefined {
		t.Errorf("Expected Types [Undefined], got %v", rec.Types)
	}
	if rec.State != domain.StateUndefined || rec.APITier != domain.Undefined {
		t.Errorf("Expected Undefined state and tier, got %q/%q", rec.State, rec.APITier)
	}
	if h.session().Step != domain.StepSummary {
		t.Errorf("Expected summary step, got %s", h.session().Step)
	}
}

func TestAutoApprove_FiresOnceAndCleansUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.press(promptID, markup.TokenDetailNo)
	summaryID := h.msgr.lastSend().ID

	h.sched.fire(0) // auto-approve timer

	edits := h.msgr.editsOf(summaryID)
	if len(edits) != 1 {
		t.Fatalf("Expected exactly 1 summary edit, got %d", len(edits))
	}
	if !strings.Contains(edits[0].Text, "auto-approved") {
		t.Errorf("Expected auto-approved rendering, got %q", edits[0].Text)
	}
	if h.session().Active() {
		t.Error("Expected session reset after auto-approve")
	}

	// The edited summary deletes itself shortly after.
	h.sched.fire(1)
	found := false
	for _, d := range h.msgr.deletes {
		if d.MsgID == summaryID {
			found = true
		}
	}
	if !found {
		t.Error("Expected auto-approved summary to be deleted")
	}
}

func TestApprove_DisarmsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.toPayment(t)
	h.press(promptID, markup.TokenPaymentDone)
	summaryID := h.msgr.lastSend().ID

	h.press(summaryID, markup.TokenSummaryApprove)
	h.sched.fire(0) // stopped timer must not run

	edits := h.msgr.editsOf(summaryID)
	if len(edits) != 1 {
		t.Fatalf("Expected exactly 1 summary edit, got %d", len(edits))
	}
	if !strings.Contains(edits[0].Text, "approved and saved") {
		t.Errorf("Expected approved rendering, got %q", edits[0].Text)
	}
	if strings.Contains(edits[0].Text, "auto-approved") {
		t.Error("Auto-approve edit must not happen after explicit approve")
	}
	if h.session().Active() {
		t.Error("Expected session reset after approve")
	}
}

func TestEdit_DeletesRecordAndRestartsSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.toPayment(t)
	h.press(promptID, markup.TokenPaymentDone)
	summaryID := h.msgr.lastSend().ID

	h.press(summaryID, markup.TokenSummaryEdit)

	if len(h.records.deleted) != 1 || h.records.deleted[0] != "rec1" {
		t.Errorf("Expected compensating delete of rec1, got %v", h.records.deleted)
	}

	sess := h.session()
	if sess.Step != domain.StepTypes {
		t.Errorf("Expected types step after edit, got %s", sess.Step)
	}
	if sess.Initial == nil || sess.Initial.Name != "MyTool" {
		t.Error("Expected initial record preserved across edit")
	}
	if len(sess.Types) != 0 || sess.APITier != "" || len(sess.Payment) != 0 {
		t.Errorf("Expected selections cleared, got %v/%q/%v", sess.Types, sess.APITier, sess.Payment)
	}
}

func TestSummaryCancel_ResetsWithoutRecordDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.press(promptID, markup.TokenDetailNo)
	summaryID := h.msgr.lastSend().ID

	h.press(summaryID, markup.TokenSummaryCancel)

	if h.session().Active() {
		t.Error("Expected session reset on cancel")
	}
	if len(h.records.deleted) != 0 {
		t.Errorf("Cancel must not delete the persisted record, got %v", h.records.deleted)
	}
	if !strings.Contains(h.msgr.lastSend().Text, "cancelled") {
		t.Errorf("Expected cancellation notice, got %q", h.msgr.lastSend().Text)
	}
}

func TestAbort_ConfirmationAndReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID
	h.press(promptID, "type_automation")

	h.press(promptID, markup.TokenAbort)
	edits := h.msgr.editsOf(promptID)
	confirm := edits[len(edits)-1]
	if !strings.Contains(confirm.Text, "Are you sure") {
		t.Errorf("Expected confirmation prompt, got %q", confirm.Text)
	}
	// Types chosen, no tier: "go back" returns to the types step.
	back := confirm.KB[0][1]
	if back.Data != markup.TokenNavTypes {
		t.Errorf("Expected return destination nav_types, got %q", back.Data)
	}

	h.press(promptID, markup.TokenAbortConfirm)
	if h.session().Active() {
		t.Error("Expected session reset after abort confirm")
	}
	if !strings.Contains(h.msgr.lastSend().Text, "cancelled") {
		t.Errorf("Expected cancellation notice, got %q", h.msgr.lastSend().Text)
	}
	if h.sched.count() != 1 {
		t.Errorf("Expected scheduled notice cleanup, got %d timers", h.sched.count())
	}
}

func TestAbort_DeclineReturnsToStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID
	h.press(promptID, "type_automation")
	h.press(promptID, markup.TokenAbort)

	h.press(promptID, markup.TokenNavTypes)

	sess := h.session()
	if sess.Step != domain.StepTypes {
		t.Errorf("Expected return to types step, got %s", sess.Step)
	}
	if len(sess.Types) != 1 || sess.Types[0] != "Automation" {
		t.Errorf("Expected selections preserved, got %v", sess.Types)
	}
}

func TestPersistFailure_PreservesStateForRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.toPayment(t)
	h.records.createErr = fmt.Errorf("airtable 503")

	h.press(promptID, markup.TokenPaymentDone)

	sess := h.session()
	if sess.Step != domain.StepPayment {
		t.Errorf("Expected state preserved on persistence failure, got %s", sess.Step)
	}
	if len(sess.Payment) != 1 {
		t.Errorf("Expected selections preserved, got %v", sess.Payment)
	}
	if !strings.Contains(h.msgr.lastSend().Text, "error saving") {
		t.Errorf("Expected generic failure notice, got %q", h.msgr.lastSend().Text)
	}

	// Retry succeeds once the store recovers.
	h.records.createErr = nil
	h.press(promptID, markup.TokenPaymentDone)
	if h.session().Step != domain.StepSummary {
		t.Errorf("Expected summary step after retry, got %s", h.session().Step)
	}
}

func TestUnknownToken_SilentlyIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	sendsBefore := len(h.msgr.sends)

	h.press(promptID, "totally_bogus")

	if h.session().Step != domain.StepDetailChoice {
		t.Errorf("Expected state unchanged, got %s", h.session().Step)
	}
	if len(h.msgr.sends) != sendsBefore || len(h.msgr.ephemerals) != 0 {
		t.Error("Unknown tokens must produce no user-visible output")
	}
}

func TestDeleteSummary_WorksAfterReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	promptID := h.start(t)
	h.press(promptID, markup.TokenDetailNo)
	summaryID := h.msgr.lastSend().ID
	h.press(summaryID, markup.TokenSummaryApprove)

	// Session is reset; the delete affordance must still work.
	h.press(summaryID, markup.TokenDeleteSummary)

	found := false
	for _, d := range h.msgr.deletes {
		if d.MsgID == summaryID {
			found = true
		}
	}
	if !found {
		t.Error("Expected finalized summary to be deleted on request")
	}
}

func TestNewCommand_SupersedesAbandonedSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	h.press(h.msgr.lastSend().ID, "type_automation")

	h.start(t)

	sess := h.session()
	if sess.Step != domain.StepDetailChoice {
		t.Errorf("Expected fresh session, got %s", sess.Step)
	}
	if len(sess.Types) != 0 {
		t.Errorf("Expected no carried-over selections, got %v", sess.Types)
	}
}

func TestRateLimit_SurfacedWithWaitHint(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.start(t)
	h.press(h.msgr.lastSend().ID, markup.TokenDetailYes)
	promptID := h.msgr.lastSend().ID

	h.msgr.editErr = &RateLimitedError{RetryAfter: 3 * time.Second}
	h.press(promptID, "type_automation")

	if got := h.msgr.lastSend().Text; !strings.Contains(got, "wait 3 seconds") {
		t.Errorf("Expected rate-limit hint, got %q", got)
	}
}
