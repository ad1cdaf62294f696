// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/metrics"
	"github.com/bureau-foundation/muster/lib/notify"
	"github.com/bureau-foundation/muster/lib/operation"
	"github.com/bureau-foundation/muster/lib/projector"
)

// Prefix starts every command message.
const Prefix = "!"

// MaxReplyLength is the longest reply the transport accepts; longer
// replies are cut and marked.
const MaxReplyLength = 2000

// TruncationMarker ends an elided reply.
const TruncationMarker = "… (truncated)"

// DefaultReplyTimeout bounds how long a command waits for its
// operator's confirmation.
const DefaultReplyTimeout = 2 * time.Minute

// ErrBusy is returned by Deliver when a command is refused because
// another one is in flight.
var ErrBusy = errors.New("operator: another command is in progress")

// Chat is the command room as the operator sees it.
type Chat interface {
	// Reply posts text (Markdown) to the command room.
	Reply(ctx context.Context, text string) error

	// ResolveMember turns a transport user reference into a member
	// with a stable ID and a display name.
	ResolveMember(ctx context.Context, user string) (operation.Member, error)

	// RetractReaction removes a user's reaction after it was handled.
	RetractReaction(ctx context.Context, reactionID string) error
}

// Observer receives a digest of both collections after every handled
// input.
type Observer interface {
	Observe(active, archived []eventdb.Summary)
}

// Input is a Command or a Reaction.
type Input interface {
	input()
}

// Command is a message posted to the command room.
type Command struct {
	Sender string
	Body   string
}

// Reaction is a user's reaction on an event message.
type Reaction struct {
	Sender     string
	Message    int64
	Key        string
	ReactionID string
}

func (Command) input()  {}
func (Reaction) input() {}

// Config holds the parameters for New.
type Config struct {
	Database  *eventdb.Database
	Projector *projector.Projector
	Chat      Chat

	// Operators may run commands. Empty allows every sender.
	Operators []string

	// ArchiveGrace is subtracted from the current time to find the
	// archivepast cutoff.
	ArchiveGrace time.Duration

	// ReplyTimeout defaults to DefaultReplyTimeout.
	ReplyTimeout time.Duration

	// Observer, Publisher, and Metrics are optional.
	Observer  Observer
	Publisher notify.Publisher
	Metrics   *metrics.Metrics

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// pendingReply is a command waiting for its operator's next message.
type pendingReply struct {
	sender  string
	replies chan string
}

// Operator handles chat input. Deliver may be called from any
// goroutine; everything else runs on the Run goroutine.
type Operator struct {
	database     *eventdb.Database
	projector    *projector.Projector
	chat         Chat
	operators    map[string]struct{}
	archiveGrace time.Duration
	replyTimeout time.Duration
	observer     Observer
	publisher    notify.Publisher
	metrics      *metrics.Metrics
	clock        clock.Clock
	logger       *slog.Logger

	root  *cli.Command
	inbox chan Input

	mu         sync.Mutex
	processing bool
	awaiting   *pendingReply

	changes []notify.Change
}

// New validates the configuration and creates an Operator.
func New(config Config) (*Operator, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("operator: Database is required")
	}
	if config.Projector == nil {
		return nil, fmt.Errorf("operator: Projector is required")
	}
	if config.Chat == nil {
		return nil, fmt.Errorf("operator: Chat is required")
	}
	o := &Operator{
		database:     config.Database,
		projector:    config.Projector,
		chat:         config.Chat,
		archiveGrace: config.ArchiveGrace,
		replyTimeout: config.ReplyTimeout,
		observer:     config.Observer,
		publisher:    config.Publisher,
		metrics:      config.Metrics,
		clock:        config.Clock,
		logger:       config.Logger,
		inbox:        make(chan Input, 256),
	}
	if len(config.Operators) > 0 {
		o.operators = make(map[string]struct{}, len(config.Operators))
		for _, user := range config.Operators {
			o.operators[user] = struct{}{}
		}
	}
	if o.replyTimeout <= 0 {
		o.replyTimeout = DefaultReplyTimeout
	}
	if o.publisher == nil {
		o.publisher = notify.Nop()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.root = o.commands()
	return o, nil
}

func (o *Operator) authorized(sender string) bool {
	if o.operators == nil {
		return true
	}
	_, ok := o.operators[sender]
	return ok
}

// Deliver queues input for the worker. A command message from the
// operator a command is waiting on is handed to that command instead.
// Commands are refused with ErrBusy while another one is in flight;
// the refusal is replied to the room.
func (o *Operator) Deliver(ctx context.Context, input Input) error {
	if command, ok := input.(Command); ok {
		accepted, err := o.admit(ctx, command)
		if !accepted {
			return err
		}
	}
	select {
	case o.inbox <- input:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admit applies the gates to a command and reports whether it should
// be queued.
func (o *Operator) admit(ctx context.Context, command Command) (bool, error) {
	o.mu.Lock()
	if pending := o.awaiting; pending != nil && pending.sender == command.Sender {
		select {
		case pending.replies <- command.Body:
		default:
		}
		o.mu.Unlock()
		return false, nil
	}
	if !strings.HasPrefix(command.Body, Prefix) {
		o.mu.Unlock()
		return false, nil
	}
	if !o.authorized(command.Sender) {
		o.mu.Unlock()
		o.logger.Info("ignoring command from non-operator", "sender", command.Sender)
		o.metrics.Command(commandName(command.Body), "unauthorized")
		return false, nil
	}
	if o.processing || o.awaiting != nil {
		o.mu.Unlock()
		o.metrics.Command(commandName(command.Body), "refused")
		if err := o.reply(ctx, "Another command is still in progress; try again when it has finished."); err != nil {
			return false, errors.Join(ErrBusy, err)
		}
		return false, ErrBusy
	}
	o.processing = true
	o.mu.Unlock()
	return true, nil
}

func commandName(body string) string {
	fields := strings.Fields(strings.TrimPrefix(body, Prefix))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Run handles queued input until ctx is cancelled.
func (o *Operator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case input := <-o.inbox:
			o.Handle(ctx, input)
		}
	}
}

// Handle processes one input synchronously. Run calls it for queued
// input; it is exported for tools that drive the operator directly.
func (o *Operator) Handle(ctx context.Context, input Input) {
	switch input := input.(type) {
	case Command:
		o.handleCommand(ctx, input)
	case Reaction:
		o.handleReaction(ctx, input)
	}
	o.flush(ctx)
}

// recoverPanic is deferred by handlers. It turns a panic into a
// panicError after logging it with its stack.
func (o *Operator) recoverPanic(what string, err *error) {
	value := recover()
	if value == nil {
		return
	}
	o.logger.Error("panic while handling input",
		"input", what,
		"panic", value,
		"stack", string(debug.Stack()),
	)
	*err = &panicError{fmt.Errorf("internal error while handling %s: %v", what, value)}
}

type senderKey struct{}

func senderOf(ctx context.Context) string {
	sender, _ := ctx.Value(senderKey{}).(string)
	return sender
}

func (o *Operator) handleCommand(ctx context.Context, command Command) {
	defer func() {
		o.mu.Lock()
		o.processing = false
		o.mu.Unlock()
	}()

	name := commandName(command.Body)
	var output bytes.Buffer
	err := o.execute(cli.WithOutput(context.WithValue(ctx, senderKey{}, command.Sender), &output, &output), command)

	outcome := "ok"
	text := strings.TrimRight(output.String(), "\n")
	if err != nil {
		outcome = "error"
		var panicked *panicError
		if errors.As(err, &panicked) {
			outcome = "panic"
		}
		o.logger.Info("command failed", "command", name, "sender", command.Sender, "error", err)
		if text != "" {
			text += "\n\n"
		}
		text += "Error: " + err.Error()
	}
	o.metrics.Command(name, outcome)
	if text == "" {
		return
	}
	if err := o.reply(ctx, text); err != nil {
		o.logger.Warn("replying to command", "command", name, "error", err)
	}
}

// panicError marks an error recovered from a panic.
type panicError struct{ err error }

func (e *panicError) Error() string { return e.err.Error() }
func (e *panicError) Unwrap() error { return e.err }

func (o *Operator) execute(ctx context.Context, command Command) (err error) {
	defer o.recoverPanic(Prefix+commandName(command.Body), &err)

	args, err := tokenize(strings.TrimPrefix(command.Body, Prefix))
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"help"}
	}
	if args[0] == "help" && len(args) > 1 {
		args = []string{args[1], "--help"}
	}
	return o.root.Execute(ctx, args)
}

// reply posts text, eliding it to MaxReplyLength characters.
func (o *Operator) reply(ctx context.Context, text string) error {
	return o.chat.Reply(ctx, elide(text))
}

func elide(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxReplyLength {
		return text
	}
	keep := MaxReplyLength - len([]rune(TruncationMarker))
	return string(runes[:keep]) + TruncationMarker
}

// changed records an event change for publication after the input.
func (o *Operator) changed(action notify.Action, event *operation.Event) {
	change := notify.Change{Action: action, Event: eventdb.Summarize(event), Time: o.clock.Now()}
	for index, existing := range o.changes {
		if existing.Event.ID == event.ID {
			if action == notify.Updated {
				change.Action = existing.Action
			}
			o.changes[index] = change
			return
		}
	}
	o.changes = append(o.changes, change)
}

// flush publishes the state reached after one input.
func (o *Operator) flush(ctx context.Context) {
	active := o.database.Summaries(false)
	archived := o.database.Summaries(true)
	signups := 0
	for _, summary := range active {
		signups += summary.Signups
	}
	o.metrics.SetEvents(len(active), len(archived), signups)
	if o.observer != nil {
		o.observer.Observe(active, archived)
	}
	for _, change := range o.changes {
		if err := o.publisher.Publish(ctx, change); err != nil {
			o.logger.Warn("publishing event change", "event_id", change.Event.ID, "action", change.Action, "error", err)
		}
	}
	o.changes = o.changes[:0]
}

// awaitReply asks the current command's operator a question and waits
// for their next message.
func (o *Operator) awaitReply(ctx context.Context, prompt string) (string, error) {
	pending := &pendingReply{sender: senderOf(ctx), replies: make(chan string, 1)}
	o.mu.Lock()
	o.awaiting = pending
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.awaiting = nil
		o.mu.Unlock()
	}()

	if err := o.reply(ctx, prompt); err != nil {
		return "", err
	}
	select {
	case answer := <-pending.replies:
		return strings.TrimSpace(answer), nil
	case <-o.clock.After(o.replyTimeout):
		return "", fmt.Errorf("no answer within %s", o.replyTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
