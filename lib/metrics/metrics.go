// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instruments for the event bot.
//
// Instruments live on a private registry so that tests and multiple
// instances never collide on the global one. Every method is safe on a
// nil *Metrics, which records nothing; components take an optional
// *Metrics and call it unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "muster"

// Metrics holds the registry and its instruments.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.GaugeVec
	signups       prometheus.Gauge
	messageEdits  *prometheus.CounterVec
	messagesSent  prometheus.Counter
	reactionOps   *prometheus.CounterVec
	commands      *prometheus.CounterVec
	reactionsSeen *prometheus.CounterVec
	syncErrors    prometheus.Counter
}

// New creates the instruments and registers them, along with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Number of events by collection",
		}, []string{"collection"}),
		signups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_signups",
			Help:      "Assigned roles across all active events",
		}),
		messageEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_edits_total",
			Help:      "Event message body edits by outcome",
		}, []string{"outcome"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Event messages created",
		}),
		reactionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_operations_total",
			Help:      "Reaction changes made on event messages",
		}, []string{"operation"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by name and outcome",
		}, []string{"command", "outcome"}),
		reactionsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_reactions_total",
			Help:      "User reactions handled by outcome",
		}, []string{"outcome"}),
		syncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_errors_total",
			Help:      "Failed sync requests to the homeserver",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.signups,
		m.messageEdits,
		m.messagesSent,
		m.reactionOps,
		m.commands,
		m.reactionsSeen,
		m.syncErrors,
	)
	return m
}

// Registry returns the registry the instruments are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetEvents records the collection sizes and the active signup count.
func (m *Metrics) SetEvents(active, archived, signups int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues("active").Set(float64(active))
	m.events.WithLabelValues("archived").Set(float64(archived))
	m.signups.Set(float64(signups))
}

func (m *Metrics) edit(outcome string) {
	if m == nil {
		return
	}
	m.messageEdits.WithLabelValues(outcome).Inc()
}

// Edited counts a successful body edit.
func (m *Metrics) Edited() { m.edit("edited") }

// EditSkipped counts a projection whose fingerprint was unchanged.
func (m *Metrics) EditSkipped() { m.edit("unchanged") }

// EditFailed counts a body edit the transport rejected.
func (m *Metrics) EditFailed() { m.edit("failed") }

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) reaction(operation string) {
	if m == nil {
		return
	}
	m.reactionOps.WithLabelValues(operation).Inc()
}

func (m *Metrics) ReactionAdded()    { m.reaction("add") }
func (m *Metrics) ReactionRemoved()  { m.reaction("remove") }
func (m *Metrics) ReactionsCleared() { m.reaction("clear") }

// Command counts one operator command. Outcome is "ok", "rejected"
// for validation failures, or "error".
func (m *Metrics) Command(name, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, outcome).Inc()
}

// UserReaction counts one handled user reaction.
func (m *Metrics) UserReaction(outcome string) {
	if m == nil {
		return
	}
	m.reactionsSeen.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.syncErrors.Inc()
}
