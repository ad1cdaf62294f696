// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/notify"
	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/projector"
)

const (
	operatorUser = "@op:example.org"
	aliceUser    = "@alice:example.org"
	bobUser      = "@bob:example.org"
	panicUser    = "@panic:example.org"
)

// fakeChannel keeps projected messages in memory.
type fakeChannel struct {
	nextID    int64
	messages  map[int64]*operation.Body
	reactions map[int64][]string
}

func (c *fakeChannel) FetchMessage(_ context.Context, messageID int64) error {
	if _, ok := c.messages[messageID]; !ok {
		return projector.ErrMessageNotFound
	}
	return nil
}

func (c *fakeChannel) SendMessage(_ context.Context, body *operation.Body) (int64, error) {
	c.nextID++
	c.messages[c.nextID] = body
	return c.nextID, nil
}

func (c *fakeChannel) EditMessage(_ context.Context, messageID int64, body *operation.Body) error {
	c.messages[messageID] = body
	return nil
}

func (c *fakeChannel) DeleteMessage(_ context.Context, messageID int64) error {
	delete(c.messages, messageID)
	delete(c.reactions, messageID)
	return nil
}

func (c *fakeChannel) Reactions(_ context.Context, messageID int64) ([]string, error) {
	return slices.Clone(c.reactions[messageID]), nil
}

func (c *fakeChannel) AddReaction(_ context.Context, messageID int64, key string) error {
	c.reactions[messageID] = append(c.reactions[messageID], key)
	return nil
}

func (c *fakeChannel) RemoveReaction(_ context.Context, messageID int64, key string) error {
	c.reactions[messageID] = slices.DeleteFunc(c.reactions[messageID], func(candidate string) bool {
		return candidate == key
	})
	return nil
}

func (c *fakeChannel) ClearReactions(_ context.Context, messageID int64) error {
	c.reactions[messageID] = nil
	return nil
}

// fakeChat records replies and retractions. Replies are also sent on
// a channel so tests driving Run can wait for them.
type fakeChat struct {
	mu        sync.Mutex
	replies   []string
	retracted []string
	replied   chan string
	members   map[string]operation.Member
}

func (c *fakeChat) Reply(_ context.Context, text string) error {
	c.mu.Lock()
	c.replies = append(c.replies, text)
	c.mu.Unlock()
	select {
	case c.replied <- text:
	default:
	}
	return nil
}

func (c *fakeChat) ResolveMember(_ context.Context, user string) (operation.Member, error) {
	if user == panicUser {
		panic("member directory exploded")
	}
	member, ok := c.members[user]
	if !ok {
		return operation.Member{}, fmt.Errorf("unknown user")
	}
	return member, nil
}

func (c *fakeChat) RetractReaction(_ context.Context, reactionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retracted = append(c.retracted, reactionID)
	return nil
}

func (c *fakeChat) last(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		t.Fatal("no reply")
	}
	return c.replies[len(c.replies)-1]
}

func (c *fakeChat) next(t *testing.T) string {
	t.Helper()
	select {
	case text := <-c.replied:
		return text
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return ""
	}
}

type recordingObserver struct {
	active, archived []eventdb.Summary
}

func (o *recordingObserver) Observe(active, archived []eventdb.Summary) {
	o.active, o.archived = active, archived
}

type recordingPublisher struct{ changes []notify.Change }

func (p *recordingPublisher) Publish(_ context.Context, change notify.Change) error {
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type harness struct {
	operator  *Operator
	database  *eventdb.Database
	channel   *fakeChannel
	chat      *fakeChat
	clock     *clock.FakeClock
	observer  *recordingObserver
	publisher *recordingPublisher
}

func newHarness(t *testing.T, operators ...string) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	settings, err := operation.DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}
	directory := t.TempDir()
	database, err := eventdb.Open(eventdb.Config{
		EventsPath:  filepath.Join(directory, "events.json"),
		ArchivePath: filepath.Join(directory, "archive.json"),
		Settings:    settings,
		Clock:       fake,
		Logger:      logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	channel := &fakeChannel{
		nextID:    100,
		messages:  make(map[int64]*operation.Body),
		reactions: make(map[int64][]string),
	}
	projection, err := projector.New(projector.Config{Channel: channel, Persister: database, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	chat := &fakeChat{
		replied: make(chan string, 16),
		members: map[string]operation.Member{
			operatorUser: {ID: 1, Name: "Op"},
			aliceUser:    {ID: 2, Name: "Alice"},
			bobUser:      {ID: 3, Name: "Bob"},
		},
	}
	h := &harness{
		database:  database,
		channel:   channel,
		chat:      chat,
		clock:     fake,
		observer:  &recordingObserver{},
		publisher: &recordingPublisher{},
	}
	h.operator, err = New(Config{
		Database:     database,
		Projector:    projection,
		Chat:         chat,
		Operators:    operators,
		ArchiveGrace: 6 * time.Hour,
		Observer:     h.observer,
		Publisher:    h.publisher,
		Clock:        fake,
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// run handles one command synchronously and returns the reply.
func (h *harness) run(t *testing.T, body string) string {
	t.Helper()
	before := len(h.chat.replies)
	h.operator.Handle(context.Background(), Command{Sender: operatorUser, Body: body})
	if len(h.chat.replies) == before {
		return ""
	}
	return h.chat.last(t)
}

func (h *harness) react(t *testing.T, sender string, event *operation.Event, key string) {
	t.Helper()
	h.operator.Handle(context.Background(), Reaction{
		Sender:     sender,
		Message:    event.MessageID,
		Key:        key,
		ReactionID: "$reaction-" + key,
	})
}

func (h *harness) event(t *testing.T, id int) *operation.Event {
	t.Helper()
	event, err := h.database.ByID(id, false)
	if err != nil {
		t.Fatal(err)
	}
	return event
}

func TestCreateProjectsAndReports(t *testing.T) {
	h := newHarness(t)

	reply := h.run(t, "!create 2025-06-07 19:30")
	if !strings.Contains(reply, "Created event 0") {
		t.Fatalf("reply = %q", reply)
	}
	event := h.event(t, 0)
	if event.MessageID == 0 {
		t.Fatal("event has no message")
	}
	if got := h.channel.reactions[event.MessageID]; !slices.Equal(got, keysOf(event)) {
		t.Errorf("reactions = %v, want %v", got, keysOf(event))
	}
	if len(h.observer.active) != 1 {
		t.Errorf("observer saw %d active events", len(h.observer.active))
	}
	if len(h.publisher.changes) != 1 || h.publisher.changes[0].Action != notify.Created {
		t.Errorf("published = %+v, want one creation", h.publisher.changes)
	}
}

func keysOf(event *operation.Event) []string {
	var keys []string
	for _, reaction := range event.Reactions() {
		keys = append(keys, reaction.Key)
	}
	return keys
}

func TestConversionErrorsDoNotMutate(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{
		"!create 2025-13-01 18:00",
		"!create 2025-06-01 25:00",
		"!create 2025-06-01 18:00 --size 3PLT",
	} {
		reply := h.run(t, body)
		if !strings.HasPrefix(reply, "Error: invalid") {
			t.Errorf("%s: reply = %q", body, reply)
		}
	}
	if len(h.database.Active()) != 0 {
		t.Errorf("invalid commands created %d events", len(h.database.Active()))
	}

	h.run(t, "!create 2025-06-07 19:30")
	if reply := h.run(t, "!setport 0 http"); !strings.Contains(reply, `invalid port "http"`) {
		t.Errorf("setport reply = %q", reply)
	}
	if reply := h.run(t, "!signup 0 @nobody:example.org A1"); !strings.Contains(reply, "invalid user") {
		t.Errorf("signup reply = %q", reply)
	}
	if reply := h.run(t, "!settitle 9 X"); !strings.Contains(reply, "not found") {
		t.Errorf("unknown event reply = %q", reply)
	}
}

func TestSignupCommandReplaceFlow(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")

	if reply := h.run(t, "!signup 0 "+aliceUser+" A1"); !strings.Contains(reply, "Signed Alice up as A1") {
		t.Fatalf("reply = %q", reply)
	}
	reply := h.run(t, "!signup 0 "+bobUser+" A1")
	if !strings.Contains(reply, "taken") {
		t.Errorf("second signup reply = %q", reply)
	}
	reply = h.run(t, "!signup 0 "+bobUser+" a1 --replace")
	if !strings.Contains(reply, "Alice was removed") {
		t.Errorf("replace reply = %q", reply)
	}
	role, _ := h.event(t, 0).FindRole("A1")
	if member, _ := role.User(); member.Name != "Bob" {
		t.Errorf("A1 held by %q, want Bob", member.Name)
	}

	if reply := h.run(t, "!removesignup 0 "+bobUser); !strings.Contains(reply, "Removed Bob from A1") {
		t.Errorf("removesignup reply = %q", reply)
	}
	if h.event(t, 0).SignupCount() != 0 {
		t.Error("signup not removed")
	}
}

func TestReactionTogglesSignup(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")
	event := h.event(t, 0)

	h.react(t, aliceUser, event, "A1")
	role, _ := event.FindRole("A1")
	if member, ok := role.User(); !ok || member.Name != "Alice" {
		t.Fatalf("A1 = %+v, %v after reaction", member, ok)
	}
	if !strings.Contains(h.channel.messages[event.MessageID].Fields[3].Value, "Alice") {
		t.Error("message body not updated")
	}

	h.react(t, bobUser, event, "A1")
	if member, _ := role.User(); member.Name != "Alice" {
		t.Error("reaction on a taken role replaced the holder")
	}

	h.react(t, aliceUser, event, "ASL")
	if role.Assigned() {
		t.Error("moving to ASL left A1 assigned")
	}

	asl, _ := event.FindRole("ASL")
	h.react(t, aliceUser, event, "ASL")
	if asl.Assigned() {
		t.Error("second ASL reaction did not remove the signup")
	}

	if len(h.chat.retracted) != 4 {
		t.Errorf("retracted %d reactions, want 4", len(h.chat.retracted))
	}
}

func TestReactionIgnoresForeignMessagesAndKeys(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")
	event := h.event(t, 0)

	h.operator.Handle(context.Background(), Reaction{Sender: aliceUser, Message: 999, Key: "A1", ReactionID: "$x"})
	if len(h.chat.retracted) != 0 {
		t.Error("reaction on an unrelated message was retracted")
	}

	h.react(t, aliceUser, event, "🎉")
	h.react(t, aliceUser, event, "⚡")
	if event.SignupCount() != 0 {
		t.Error("unknown or Zeus reaction signed up")
	}
	if len(h.chat.retracted) != 2 {
		t.Errorf("retracted %d, want 2", len(h.chat.retracted))
	}
}

func TestAttendanceReaction(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!createside 2025-06-07 19:30")
	event := h.event(t, 0)

	h.react(t, aliceUser, event, "✅")
	if !event.HasAttendee(2) {
		t.Fatal("attendance not recorded")
	}
	if !strings.Contains(h.channel.messages[event.MessageID].Footer, "Attendees: 1") {
		t.Errorf("footer = %q", h.channel.messages[event.MessageID].Footer)
	}
	h.react(t, aliceUser, event, "✅")
	if event.HasAttendee(2) {
		t.Error("second reaction did not remove attendance")
	}
}

func TestSetDateResortsMessages(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")
	h.run(t, "!create 2025-06-14 19:30")
	first, second := h.event(t, 0), h.event(t, 1)
	firstSlot, secondSlot := first.MessageID, second.MessageID

	if reply := h.run(t, "!setdate 0 2025-06-21"); !strings.Contains(reply, "2025-06-21 19:30") {
		t.Fatalf("reply = %q", reply)
	}
	if first.MessageID == firstSlot || second.MessageID == secondSlot {
		t.Errorf("slots not swapped: %d, %d (were %d, %d)", first.MessageID, second.MessageID, firstSlot, secondSlot)
	}
	if !strings.Contains(h.channel.messages[first.MessageID].Footer, "Event ID: 0") {
		t.Error("moved slot does not show event 0")
	}
}

func TestEventByDateReference(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")
	h.run(t, "!create 2025-06-07 21:00")
	h.run(t, "!create 2025-06-14 19:30")

	if reply := h.run(t, "!setterrain 2025-06-14 Altis"); !strings.Contains(reply, "Updated event 2") {
		t.Errorf("reply = %q", reply)
	}
	if h.event(t, 2).Terrain != "Altis" {
		t.Error("terrain not set")
	}
	if reply := h.run(t, "!setterrain 2025-06-07 Altis"); !strings.Contains(reply, "ambiguous") {
		t.Errorf("ambiguous reply = %q", reply)
	}
}

func TestArchivePastDeletesMessages(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-05-31 19:30")
	h.run(t, "!create 2025-06-07 19:30")
	old := h.event(t, 0)

	reply := h.run(t, "!archivepast")
	if !strings.Contains(reply, "Archived events 0") {
		t.Fatalf("reply = %q", reply)
	}
	if old.MessageID != 0 {
		t.Error("archived event keeps its message")
	}
	if len(h.channel.messages) != 1 {
		t.Errorf("%d messages remain, want 1", len(h.channel.messages))
	}
	if _, err := h.database.ByID(0, true); err != nil {
		t.Errorf("event 0 not archived: %v", err)
	}
	if reply := h.run(t, "!archivepast"); !strings.Contains(reply, "No past events") {
		t.Errorf("second archivepast reply = %q", reply)
	}
}

func TestDumpAndLoad(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")

	dump := h.run(t, "!dump 0")
	if !strings.HasPrefix(dump, "```yaml\n") || !strings.Contains(dump, `date: "2025-06-07"`) {
		t.Fatalf("dump = %q", dump)
	}

	edited := strings.Replace(dump, "title: null", "title: Operation Red Dawn", 1)
	if edited == dump {
		t.Fatalf("dump has no null title:\n%s", dump)
	}
	if reply := h.run(t, "!load 0 "+edited); !strings.Contains(reply, "Loaded event 0") {
		t.Fatalf("load reply = %q", reply)
	}
	event := h.event(t, 0)
	if event.Title() != "Operation Red Dawn" {
		t.Errorf("title = %q", event.Title())
	}
	if h.channel.messages[event.MessageID].Title != "Operation Red Dawn" {
		t.Error("message not updated after load")
	}

	if reply := h.run(t, "!load 0 ```yaml\n- not an event\n```"); !strings.Contains(reply, "Error:") {
		t.Errorf("bad load reply = %q", reply)
	}
	if event.Title() != "Operation Red Dawn" {
		t.Error("failed load changed the event")
	}
}

func TestChangeSizeReportsDroppedUsers(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30 --size 2PLT")
	h.run(t, "!signup 0 "+aliceUser+" CO")

	reply := h.run(t, "!changesize 0 1PLT")
	if !strings.Contains(reply, "now 1PLT") || !strings.Contains(reply, "CO (Alice)") {
		t.Errorf("reply = %q", reply)
	}
	if reply := h.run(t, "!changesize 0 2PLT"); !strings.Contains(reply, operation.ErrUnsupportedResize.Error()) {
		t.Errorf("upsize reply = %q", reply)
	}
}

func TestCancelClearsReactions(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")
	event := h.event(t, 0)

	h.run(t, "!cancel 0")
	if !event.Cancelled || len(h.channel.reactions[event.MessageID]) != 0 {
		t.Errorf("cancelled = %v, reactions = %v", event.Cancelled, h.channel.reactions[event.MessageID])
	}
	h.run(t, "!cancel 0 --undo")
	if event.Cancelled || len(h.channel.reactions[event.MessageID]) == 0 {
		t.Error("undo did not restore the event")
	}
}

func TestPanicIsRecoveredAndReported(t *testing.T) {
	h := newHarness(t)
	h.run(t, "!create 2025-06-07 19:30")

	reply := h.run(t, "!signup 0 "+panicUser+" A1")
	if !strings.Contains(reply, "internal error while handling !signup") {
		t.Errorf("reply = %q", reply)
	}
	if reply := h.run(t, "!list"); !strings.Contains(reply, "0: 2025-06-07 19:30") {
		t.Errorf("operator unusable after panic: %q", reply)
	}
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	if reply := h.run(t, "!help"); !strings.Contains(reply, "archivepast") || !strings.Contains(reply, "multicreate") {
		t.Errorf("help = %q", reply)
	}
	if reply := h.run(t, "!help signup"); !strings.Contains(reply, "--replace") {
		t.Errorf("signup help = %q", reply)
	}
	if reply := h.run(t, "!sigup"); !strings.Contains(reply, `did you mean "signup"`) {
		t.Errorf("typo reply = %q", reply)
	}
}

func TestDeliverRefusesWhileProcessing(t *testing.T) {
	h := newHarness(t)
	h.operator.processing = true

	err := h.operator.Deliver(context.Background(), Command{Sender: operatorUser, Body: "!list"})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Deliver = %v, want ErrBusy", err)
	}
	if !strings.Contains(h.chat.last(t), "in progress") {
		t.Errorf("refusal = %q", h.chat.last(t))
	}

	if err := h.operator.Deliver(context.Background(), Reaction{Sender: aliceUser, Message: 1, Key: "A1"}); err != nil {
		t.Errorf("reaction refused: %v", err)
	}
}

func TestDeliverIgnoresNonOperators(t *testing.T) {
	h := newHarness(t, operatorUser)
	if err := h.operator.Deliver(context.Background(), Command{Sender: aliceUser, Body: "!list"}); err != nil {
		t.Fatal(err)
	}
	if err := h.operator.Deliver(context.Background(), Command{Sender: operatorUser, Body: "just chatting"}); err != nil {
		t.Fatal(err)
	}
	if len(h.operator.inbox) != 0 {
		t.Errorf("%d inputs queued, want 0", len(h.operator.inbox))
	}
	if err := h.operator.Deliver(context.Background(), Command{Sender: operatorUser, Body: "!list"}); err != nil {
		t.Fatal(err)
	}
	if len(h.operator.inbox) != 1 {
		t.Errorf("operator command not queued")
	}
}

func TestMulticreateConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.operator.Run(ctx)
	}()

	if err := h.operator.Deliver(ctx, Command{Sender: operatorUser, Body: "!multicreate 2025-06-07 19:30 3"}); err != nil {
		t.Fatal(err)
	}
	prompt := h.chat.next(t)
	if !strings.Contains(prompt, "Create 3 events?") || !strings.Contains(prompt, "2025-06-21 19:30") {
		t.Fatalf("prompt = %q", prompt)
	}

	if err := h.operator.Deliver(ctx, Command{Sender: aliceUser, Body: "!list"}); !errors.Is(err, ErrBusy) {
		t.Errorf("command during confirmation = %v, want ErrBusy", err)
	}
	h.chat.next(t)

	if err := h.operator.Deliver(ctx, Command{Sender: operatorUser, Body: "yes"}); err != nil {
		t.Fatal(err)
	}
	if result := h.chat.next(t); !strings.Contains(result, "Created events 0, 1, 2") {
		t.Errorf("result = %q", result)
	}
	cancel()
	<-done
	if len(h.database.Active()) != 3 {
		t.Errorf("%d active events, want 3", len(h.database.Active()))
	}
}

func TestMulticreateTimesOut(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.operator.Run(ctx)
	}()

	if err := h.operator.Deliver(ctx, Command{Sender: operatorUser, Body: "!multicreate 2025-06-07 19:30 2"}); err != nil {
		t.Fatal(err)
	}
	h.chat.next(t)
	h.clock.WaitForWaiters(1)
	h.clock.Advance(DefaultReplyTimeout)

	if result := h.chat.next(t); !strings.Contains(result, "multicreate cancelled: no answer") {
		t.Errorf("result = %q", result)
	}
	cancel()
	<-done
	if len(h.database.Active()) != 0 {
		t.Error("events created without confirmation")
	}
}

func TestElide(t *testing.T) {
	short := strings.Repeat("a", MaxReplyLength)
	if elide(short) != short {
		t.Error("reply at the limit was elided")
	}
	long := strings.Repeat("é", MaxReplyLength+10)
	elided := elide(long)
	if got := len([]rune(elided)); got != MaxReplyLength {
		t.Errorf("elided length = %d runes", got)
	}
	if !strings.HasSuffix(elided, TruncationMarker) {
		t.Error("missing truncation marker")
	}
}
