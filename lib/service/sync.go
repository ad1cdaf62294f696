// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/messaging"
)

// Syncer is the part of *messaging.Session the loop uses.
type Syncer interface {
	Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error)
}

// SyncConfig configures RunSyncLoop.
type SyncConfig struct {
	// Filter is an inline JSON filter, see BuildFilter.
	Filter string

	// Timeout is the long-poll timeout. Default: 30s.
	Timeout time.Duration

	// MaxBackoff caps the delay between retries after a failed
	// request. The first retry waits one second. Default: 30s.
	MaxBackoff time.Duration

	// OnError is called for every failed request, for metrics.
	OnError func(error)
}

// SyncHandler processes one response. The next poll starts after it
// returns.
type SyncHandler func(ctx context.Context, response *messaging.SyncResponse)

// BuildFilter returns a filter limited to messages, reactions, and
// redactions in rooms.
func BuildFilter(rooms ...ref.RoomID) string {
	emptyTypes := []string{}
	filter := map[string]any{
		"room": map[string]any{
			"rooms": rooms,
			"timeline": map[string]any{
				"types": []ref.EventType{ref.EventTypeMessage, ref.EventTypeReaction},
				"limit": 100,
			},
			"state":        map[string]any{"types": emptyTypes},
			"ephemeral":    map[string]any{"types": emptyTypes},
			"account_data": map[string]any{"types": emptyTypes},
		},
		"presence":     map[string]any{"types": emptyTypes},
		"account_data": map[string]any{"types": emptyTypes},
	}
	data, err := json.Marshal(filter)
	if err != nil {
		panic("building sync filter: " + err.Error())
	}
	return string(data)
}

// InitialSync performs the first /sync without a since token and
// returns the token for the incremental loop.
func InitialSync(ctx context.Context, session Syncer, filter string) (string, *messaging.SyncResponse, error) {
	response, err := session.Sync(ctx, messaging.SyncOptions{Filter: filter})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// RunSyncLoop long-polls from sinceToken until ctx is cancelled.
func RunSyncLoop(ctx context.Context, session Syncer, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}
	backoff := time.Second

	for ctx.Err() == nil {
		response, err := session.Sync(ctx, messaging.SyncOptions{
			Since:     sinceToken,
			TimeoutMS: int(timeout / time.Millisecond),
			Filter:    config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if config.OnError != nil {
				config.OnError(err)
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-clk.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch
		handler(ctx, response)
	}
}
