// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bureau-foundation/muster/lib/cli"
	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/config"
	"github.com/bureau-foundation/muster/lib/matrixchannel"
	"github.com/bureau-foundation/muster/lib/metrics"
	"github.com/bureau-foundation/muster/lib/notify"
	"github.com/bureau-foundation/muster/lib/operator"
	"github.com/bureau-foundation/muster/lib/projector"
	"github.com/bureau-foundation/muster/lib/ref"
	"github.com/bureau-foundation/muster/lib/secret"
	"github.com/bureau-foundation/muster/lib/service"
	"github.com/bureau-foundation/muster/lib/statusapi"
	"github.com/bureau-foundation/muster/lib/version"
	"github.com/bureau-foundation/muster/messaging"
)

func serveCommand() *cli.Command {
	var options configOptions
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the bot",
		Description: `Connect to the homeserver and run the bot until interrupted.

On start every active event message is brought up to date. Commands
posted while the bot was offline are not replayed.`,
		Flags: flagSet("serve", options.addFlags),
		Run: func(ctx context.Context, _ []string) error {
			cfg, err := options.load()
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if options.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting muster", "version", version.Info(), "environment", cfg.Environment)
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	userID, err := ref.ParseUserID(cfg.Matrix.UserID)
	if err != nil {
		return fmt.Errorf("matrix.user_id: %w", err)
	}
	eventsRoom, err := ref.ParseRoomID(cfg.Matrix.EventsRoom)
	if err != nil {
		return fmt.Errorf("matrix.events_room: %w", err)
	}
	commandRoom, err := cfg.CommandRoomID()
	if err != nil {
		return fmt.Errorf("matrix.command_room: %w", err)
	}
	operatorIDs, err := cfg.OperatorIDs()
	if err != nil {
		return fmt.Errorf("matrix.operators: %w", err)
	}
	operators := make([]string, len(operatorIDs))
	for index, operatorID := range operatorIDs {
		operators[index] = operatorID.String()
	}

	token, err := secret.ReadFile(cfg.Matrix.TokenFile)
	if err != nil {
		return fmt.Errorf("reading access token: %w", err)
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		token.Close()
		return err
	}
	session := client.Session(userID, token)
	defer session.Close()

	whoami, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("checking access token: %w", err)
	}
	if whoami != userID {
		return fmt.Errorf("access token belongs to %s, not %s", whoami, userID)
	}
	for _, room := range []ref.RoomID{eventsRoom, commandRoom} {
		if _, err := session.JoinRoom(ctx, room); err != nil {
			return fmt.Errorf("joining %s: %w", room, err)
		}
	}

	handles, err := matrixchannel.OpenHandleTable(handleTablePath(cfg))
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("saving events on shutdown failed", "error", err)
		}
	}()
	settings := database.Settings()

	instruments := metrics.New()
	channel, err := matrixchannel.New(matrixchannel.Config{
		API:      session,
		RoomID:   eventsRoom,
		Handles:  handles,
		Location: settings.Location,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	eventProjector, err := projector.New(projector.Config{
		Channel:   channel,
		Persister: database,
		Metrics:   instruments,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	room, err := matrixchannel.NewRoom(matrixchannel.RoomConfig{
		API:         session,
		CommandRoom: commandRoom,
		EventsRoom:  eventsRoom,
		Handles:     handles,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	status := statusapi.New(statusapi.Config{Metrics: instruments, Logger: logger})
	status.Observe(database.Summaries(false), database.Summaries(true))

	publisher := notify.Nop()
	if cfg.Notify.URL != "" {
		connection, err := notify.Connect(notify.Config{
			URL:           cfg.Notify.URL,
			SubjectPrefix: cfg.Notify.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		publisher = connection
	}
	defer publisher.Close()

	bot, err := operator.New(operator.Config{
		Database:     database,
		Projector:    eventProjector,
		Chat:         room,
		Operators:    operators,
		ArchiveGrace: cfg.Events.ArchiveGrace,
		ReplyTimeout: cfg.Events.ReplyTimeout,
		Observer:     status,
		Publisher:    publisher,
		Metrics:      instruments,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	if err := eventProjector.Batch(ctx, database.Active(), false); err != nil {
		logger.Error("refreshing event messages failed", "error", err)
	}

	filter := service.BuildFilter(eventsRoom, commandRoom)
	since, _, err := service.InitialSync(ctx, session, filter)
	if err != nil {
		return err
	}

	var workers sync.WaitGroup
	workers.Go(func() {
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("operator stopped", "error", err)
		}
	})
	if cfg.Status.Listen != "" {
		workers.Go(func() {
			if err := status.ListenAndServe(ctx, cfg.Status.Listen); err != nil {
				logger.Error("status api stopped", "error", err)
			}
		})
	}

	inputs := &service.Inputs{
		Self:        userID,
		EventsRoom:  eventsRoom,
		CommandRoom: commandRoom,
		Handles:     handles,
		Logger:      logger,
	}
	logger.Info("muster running",
		"events_room", eventsRoom,
		"command_room", commandRoom,
		"active_events", len(database.Active()),
	)
	service.RunSyncLoop(ctx, session, service.SyncConfig{
		Filter:  filter,
		Timeout: cfg.Matrix.SyncTimeout,
		OnError: func(error) { instruments.SyncFailed() },
	}, since, func(ctx context.Context, response *messaging.SyncResponse) {
		for _, input := range inputs.Extract(response) {
			if err := bot.Deliver(ctx, input); err != nil && !errors.Is(err, operator.ErrBusy) && ctx.Err() == nil {
				logger.Error("delivering input failed", "error", err)
			}
		}
	}, clock.Real(), logger)

	workers.Wait()
	logger.Info("muster stopped")
	return nil
}
