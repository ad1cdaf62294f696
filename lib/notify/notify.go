// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify publishes event changes to NATS so other services
// (schedulers, web pages, game server tooling) can follow the roster
// without polling the bot.
//
// Each change is one JSON message on "<prefix>.<action>", for example
// "muster.events.updated". Publication is fire-and-forget: a failed
// publish is logged by the caller and never blocks the bot.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bureau-foundation/muster/lib/eventdb"
)

// Action classifies a change.
type Action string

const (
	Created  Action = "created"
	Updated  Action = "updated"
	Archived Action = "archived"
	Deleted  Action = "deleted"
)

// Change is the published message body.
type Change struct {
	Action Action          `json:"action"`
	Event  eventdb.Summary `json:"event"`
	Time   time.Time       `json:"time"`
}

// Publisher delivers changes.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
	Close() error
}

// Nop returns a Publisher that drops everything.
func Nop() Publisher { return nop{} }

type nop struct{}

func (nop) Publish(context.Context, Change) error { return nil }
func (nop) Close() error                          { return nil }

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Config holds the parameters for Connect.
type Config struct {
	URL string

	// SubjectPrefix is prepended to the action with a dot.
	SubjectPrefix string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NATS publishes changes on a NATS connection.
type NATS struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server. The connection reconnects forever;
// publishes while disconnected are buffered by the client library.
func Connect(config Config) (*NATS, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("notify: URL is required")
	}
	if config.SubjectPrefix == "" {
		return nil, fmt.Errorf("notify: SubjectPrefix is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	connection, err := nats.Connect(config.URL,
		nats.Name("muster"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(connection *nats.Conn) {
			logger.Info("nats reconnected", "url", connection.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to %s: %w", config.URL, err)
	}
	logger.Info("connected to nats", "url", connection.ConnectedUrl())
	return newNATS(connection, config.SubjectPrefix, logger), nil
}

func newNATS(connection conn, prefix string, logger *slog.Logger) *NATS {
	return &NATS{conn: connection, prefix: prefix, logger: logger}
}

// Subject returns the subject a change with action is published on.
func (n *NATS) Subject(action Action) string {
	return n.prefix + "." + string(action)
}

// Publish sends one change.
func (n *NATS) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("notify: encoding change: %w", err)
	}
	subject := n.Subject(change.Action)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("notify: publishing to %s: %w", subject, err)
	}
	n.logger.Debug("change published", "subject", subject, "event_id", change.Event.ID)
	return nil
}

// Close flushes pending publications and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
