// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"slices"

	"github.com/bureau-foundation/muster/lib/eventdb"
)

// Reaction outcomes, as counted in metrics.
const (
	reactionSignup   = "signup"
	reactionUnsignup = "unsignup"
	reactionAttend   = "attend"
	reactionUnattend = "unattend"
	reactionTaken    = "taken"
	reactionIgnored  = "ignored"
	reactionFailed   = "failed"
)

func (o *Operator) handleReaction(ctx context.Context, reaction Reaction) {
	outcome, err := o.react(ctx, reaction)
	if err != nil {
		outcome = reactionFailed
		o.logger.Warn("handling reaction",
			"sender", reaction.Sender,
			"message_id", reaction.Message,
			"key", reaction.Key,
			"error", err,
		)
	}
	o.metrics.UserReaction(outcome)
}

// react toggles the reacting user's signup or attendance. Reactions on
// messages that are not active events are left alone; every other
// reaction is retracted once handled.
func (o *Operator) react(ctx context.Context, reaction Reaction) (outcome string, err error) {
	defer o.recoverPanic("reaction "+reaction.Key, &err)

	event, err := o.database.ByMessage(reaction.Message, false)
	if errors.Is(err, eventdb.ErrNotFound) {
		return reactionIgnored, nil
	}
	if err != nil {
		return "", err
	}
	defer func() {
		if retractErr := o.chat.RetractReaction(ctx, reaction.ReactionID); retractErr != nil {
			err = errors.Join(err, retractErr)
		}
	}()

	catalog := o.database.Settings().Icons
	reactionIcon, ok := catalog.ByKey(reaction.Key)
	if !ok || !slices.ContainsFunc(event.Reactions(), reactionIcon.Equal) {
		return reactionIgnored, nil
	}
	member, err := o.parseMember(ctx, reaction.Sender)
	if err != nil {
		return "", err
	}

	if attendance, ok := catalog.Attendance(); ok && attendance.Equal(reactionIcon) {
		outcome = reactionAttend
		if event.HasAttendee(member.ID) {
			event.AttendeeRemove(member.ID)
			outcome = reactionUnattend
		} else {
			event.AttendeeAdd(member)
		}
		o.logger.Info("attendance toggled", "event_id", event.ID, "member", member.Name, "outcome", outcome)
		return outcome, o.commit(ctx, event, false)
	}

	role := event.RoleByIcon(reactionIcon)
	if role == nil {
		return reactionIgnored, nil
	}
	if holder, assigned := role.User(); assigned {
		if holder.ID != member.ID {
			return reactionTaken, nil
		}
		event.UndoSignup(member.ID)
		o.logger.Info("signup removed by reaction", "event_id", event.ID, "role", role.Name, "member", member.Name)
		return reactionUnsignup, o.commit(ctx, event, false)
	}
	if _, _, err := event.Signup(role, member, false); err != nil {
		return "", err
	}
	o.logger.Info("signup by reaction", "event_id", event.ID, "role", role.Name, "member", member.Name)
	return reactionSignup, o.commit(ctx, event, false)
}
