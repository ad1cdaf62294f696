// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/muster/lib/operation"
)

// fakeChannel records every call in order and keeps message state in
// memory.
type fakeChannel struct {
	nextID    int64
	messages  map[int64]*operation.Body
	reactions map[int64][]string
	calls     []string

	editErr     error
	fetchErr    error
	reactionCap int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		nextID:      100,
		messages:    make(map[int64]*operation.Body),
		reactions:   make(map[int64][]string),
		reactionCap: operation.MaxReactions,
	}
}

func (c *fakeChannel) record(call string) {
	c.calls = append(c.calls, call)
}

func (c *fakeChannel) FetchMessage(_ context.Context, messageID int64) error {
	if c.fetchErr != nil {
		return c.fetchErr
	}
	if _, ok := c.messages[messageID]; !ok {
		return ErrMessageNotFound
	}
	return nil
}

func (c *fakeChannel) SendMessage(_ context.Context, body *operation.Body) (int64, error) {
	c.nextID++
	c.messages[c.nextID] = body
	c.record("send")
	return c.nextID, nil
}

func (c *fakeChannel) EditMessage(_ context.Context, messageID int64, body *operation.Body) error {
	if c.editErr != nil {
		return c.editErr
	}
	c.messages[messageID] = body
	c.record("edit")
	return nil
}

func (c *fakeChannel) DeleteMessage(_ context.Context, messageID int64) error {
	delete(c.messages, messageID)
	delete(c.reactions, messageID)
	c.record("delete")
	return nil
}

func (c *fakeChannel) Reactions(_ context.Context, messageID int64) ([]string, error) {
	return slices.Clone(c.reactions[messageID]), nil
}

func (c *fakeChannel) AddReaction(_ context.Context, messageID int64, key string) error {
	if len(c.reactions[messageID]) >= c.reactionCap {
		return ErrTooManyReactions
	}
	c.reactions[messageID] = append(c.reactions[messageID], key)
	c.record("add " + key)
	return nil
}

func (c *fakeChannel) RemoveReaction(_ context.Context, messageID int64, key string) error {
	c.reactions[messageID] = slices.DeleteFunc(c.reactions[messageID], func(candidate string) bool {
		return candidate == key
	})
	c.record("remove " + key)
	return nil
}

func (c *fakeChannel) ClearReactions(_ context.Context, messageID int64) error {
	c.reactions[messageID] = nil
	c.record("clear")
	return nil
}

func (c *fakeChannel) count(prefix string) int {
	count := 0
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			count++
		}
	}
	return count
}

type countingPersister struct{ saves int }

func (p *countingPersister) Save(bool) error {
	p.saves++
	return nil
}

func newTestProjector(t *testing.T) (*Projector, *fakeChannel, *countingPersister) {
	t.Helper()
	channel := newFakeChannel()
	persister := &countingPersister{}
	projector, err := New(Config{
		Channel:   channel,
		Persister: persister,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return projector, channel, persister
}

func newTestEvent(t *testing.T, id int) *operation.Event {
	t.Helper()
	settings, err := operation.DefaultSettings()
	if err != nil {
		t.Fatal(err)
	}
	event, err := operation.New(id, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), false, operation.Size1PLT, false, settings)
	if err != nil {
		t.Fatal(err)
	}
	return event
}

func reactionKeys(event *operation.Event) []string {
	var out []string
	for _, reaction := range event.Reactions() {
		out = append(out, reaction.Key)
	}
	return out
}

func TestProjectCreatesMessage(t *testing.T) {
	projector, channel, persister := newTestProjector(t)
	event := newTestEvent(t, 0)

	if err := projector.Project(context.Background(), event, false); err != nil {
		t.Fatalf("Project: %v", err)
	}
	if event.MessageID == 0 {
		t.Fatal("event was not bound to a message")
	}
	if persister.saves != 1 {
		t.Errorf("saves = %d, want 1", persister.saves)
	}
	if channel.messages[event.MessageID].Title != event.Title() {
		t.Errorf("message title = %q", channel.messages[event.MessageID].Title)
	}
	if !slices.Equal(channel.reactions[event.MessageID], reactionKeys(event)) {
		t.Errorf("reactions = %v, want %v", channel.reactions[event.MessageID], reactionKeys(event))
	}
	if channel.calls[0] != "send" || channel.calls[1] != "edit" {
		t.Errorf("calls start %v, want send then edit", channel.calls[:2])
	}
}

func TestProjectUnchangedEventIsNoOp(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	channel.calls = nil

	if err := projector.Project(ctx, event, true); err != nil {
		t.Fatal(err)
	}
	if len(channel.calls) != 0 {
		t.Errorf("second projection made calls %v", channel.calls)
	}
}

func TestProjectRecreatesMissingMessage(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	event.MessageID = 55
	event.BuildBody(true)

	if err := projector.Project(context.Background(), event, false); err != nil {
		t.Fatal(err)
	}
	if event.MessageID == 55 {
		t.Errorf("event still bound to the missing message")
	}
	if channel.count("edit") != 1 {
		t.Errorf("new message was not filled in: calls %v", channel.calls)
	}
}

func TestEnsureMessageSurfacesFetchErrors(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	event.MessageID = 55
	channel.fetchErr = errors.New("connection reset")

	if _, err := projector.EnsureMessage(context.Background(), event); err == nil {
		t.Fatal("EnsureMessage succeeded despite a transport error")
	}
	if event.MessageID != 55 {
		t.Errorf("MessageID changed to %d", event.MessageID)
	}
}

func TestUpdateFailureInvalidatesFingerprint(t *testing.T) {
	projector, channel, persister := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	savesBefore := persister.saves

	event.Description = "changed"
	channel.editErr = errors.New("gateway timeout")
	err := projector.Project(ctx, event, false)
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Project error = %v, want ErrUpdateFailed", err)
	}
	if event.EmbedHash != "" {
		t.Errorf("fingerprint kept after a failed edit")
	}
	if persister.saves != savesBefore+1 {
		t.Errorf("invalidated fingerprint was not persisted")
	}

	channel.editErr = nil
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if channel.messages[event.MessageID].Description != event.BuildBody(false).Description {
		t.Errorf("retry did not push the current body")
	}
}

func TestReconcileReactionsDiff(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	channel.calls = nil

	if _, err := event.AddAdditional("Pilot"); err != nil {
		t.Fatal(err)
	}
	if _, err := event.Group("Alpha").Remove("A1"); err != nil {
		t.Fatal(err)
	}
	if err := projector.ReconcileReactions(ctx, event, event.MessageID, false); err != nil {
		t.Fatal(err)
	}
	if channel.count("clear") != 0 {
		t.Errorf("diff reconcile cleared reactions: %v", channel.calls)
	}
	if channel.count("remove") != 1 || channel.count("add") != 1 {
		t.Errorf("calls = %v, want one remove and one add", channel.calls)
	}
	got := slices.Clone(channel.reactions[event.MessageID])
	want := reactionKeys(event)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("reactions = %v, want %v", got, want)
	}
}

func TestReconcileReactionsReorder(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	reactions := channel.reactions[event.MessageID]
	reactions[0], reactions[1] = reactions[1], reactions[0]
	channel.calls = nil

	if err := projector.ReconcileReactions(ctx, event, event.MessageID, false); err != nil {
		t.Fatal(err)
	}
	if len(channel.calls) != 0 {
		t.Errorf("same content without reorder made calls %v", channel.calls)
	}

	if err := projector.ReconcileReactions(ctx, event, event.MessageID, true); err != nil {
		t.Fatal(err)
	}
	if channel.calls[0] != "clear" {
		t.Errorf("reorder did not clear first: %v", channel.calls)
	}
	if !slices.Equal(channel.reactions[event.MessageID], reactionKeys(event)) {
		t.Errorf("reactions = %v, want %v", channel.reactions[event.MessageID], reactionKeys(event))
	}
}

func TestCancelledEventLosesReactions(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	event.Cancelled = true
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	if len(channel.reactions[event.MessageID]) != 0 {
		t.Errorf("cancelled event kept reactions %v", channel.reactions[event.MessageID])
	}
}

func TestTooManyReactionsIsRoleError(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	channel.reactionCap = 3
	event := newTestEvent(t, 0)

	err := projector.Project(context.Background(), event, false)
	if !errors.Is(err, operation.ErrRole) {
		t.Fatalf("Project error = %v, want ErrRole", err)
	}
}

func TestBatchEditsBeforeReactions(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	events := []*operation.Event{newTestEvent(t, 0), newTestEvent(t, 1), newTestEvent(t, 2)}

	if err := projector.Batch(context.Background(), events, false); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	lastEdit, firstAdd := -1, len(channel.calls)
	for index, call := range channel.calls {
		if call == "edit" {
			lastEdit = index
		}
		if strings.HasPrefix(call, "add") && index < firstAdd {
			firstAdd = index
		}
	}
	if channel.count("edit") != 3 {
		t.Errorf("edits = %d, want 3", channel.count("edit"))
	}
	if lastEdit > firstAdd {
		t.Errorf("a reaction was added before the last edit: %v", channel.calls)
	}
}

func TestBatchContinuesPastFailures(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	events := []*operation.Event{newTestEvent(t, 0), newTestEvent(t, 1)}
	channel.editErr = errors.New("rate limited")

	err := projector.Batch(context.Background(), events, false)
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Batch error = %v, want ErrUpdateFailed", err)
	}
	if channel.count("send") != 2 {
		t.Errorf("sends = %d, want 2", channel.count("send"))
	}
	if channel.count("add") != 0 {
		t.Errorf("failed events got reactions: %v", channel.calls)
	}
}

func TestDeleteUnbinds(t *testing.T) {
	projector, channel, _ := newTestProjector(t)
	event := newTestEvent(t, 0)
	ctx := context.Background()
	if err := projector.Project(ctx, event, false); err != nil {
		t.Fatal(err)
	}
	messageID := event.MessageID
	if err := projector.Delete(ctx, event); err != nil {
		t.Fatal(err)
	}
	if event.MessageID != 0 || event.EmbedHash != "" {
		t.Errorf("event still bound after delete")
	}
	if _, ok := channel.messages[messageID]; ok {
		t.Errorf("message still present")
	}
}
