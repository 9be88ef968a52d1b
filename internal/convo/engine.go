// Package convo implements the per-participant dialog state machine that
// drives catalog browsing, appointment booking and PIX code delivery.
package convo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Vtrbr2/message-ia-bot/internal/metrics"
	"github.com/Vtrbr2/message-ia-bot/internal/pix"
	"github.com/Vtrbr2/message-ia-bot/internal/repo"
	"github.com/Vtrbr2/message-ia-bot/internal/session"
)

const genericDisplayName = "Cliente"

// Transport is the narrow contract the engine needs from the messaging
// backend.
type Transport interface {
	SendText(ctx context.Context, participant, text string) error
	DisplayName(participant string) string
}

// Responder is the external last-resort text generator. It never fails:
// implementations substitute a fixed reply on error.
type Responder interface {
	Reply(ctx context.Context, text, displayName string) string
}

// Store is the slice of the persistence layer the engine writes to.
type Store interface {
	SaveMessage(ctx context.Context, msg repo.Message, displayName string) error
	SaveSchedule(ctx context.Context, s repo.Schedule) (*repo.Schedule, error)
}

// EngineConfig carries engine settings.
type EngineConfig struct {
	Merchant pix.Merchant
	// Location anchors booking dates; defaults to time.Local.
	Location *time.Location
}

// Engine consumes inbound messages and produces ordered replies plus
// persistence side effects.
type Engine struct {
	store     Store
	sessions  *session.Store
	transport Transport
	responder Responder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	merchant  pix.Merchant
	loc       *time.Location
	rules     map[session.State][]rule

	now func() time.Time
}

// New wires the dialog engine.
func New(store Store, sessions *session.Store, transport Transport, responder Responder, metricRegistry *metrics.Metrics, logger *slog.Logger, cfg EngineConfig) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		store:     store,
		sessions:  sessions,
		transport: transport,
		responder: responder,
		metrics:   metricRegistry,
		logger:    logger.With("component", "convo"),
		merchant:  cfg.Merchant,
		loc:       loc,
		now:       time.Now,
	}
	e.rules = buildRules()
	return e
}

// request is the normalized view of one inbound message, shared by every
// rule predicate and action.
type request struct {
	ctx         context.Context
	participant string
	text        string // trimmed original
	norm        string // trimmed, case-folded
	displayName string
	sess        session.Session
}

// outcome is what a rule produces: ordered replies, an optional state
// transition and a context patch.
type outcome struct {
	replies []string
	state   *session.State
	patch   session.Patch
}

// ProcessInbound handles one inbound message under the participant's
// exclusive lock: no two messages from the same participant interleave.
func (e *Engine) ProcessInbound(ctx context.Context, participant, body, pushName string) {
	e.metrics.WAIncomingMessages.WithLabelValues("text").Inc()
	e.sessions.Do(participant, func() {
		e.process(ctx, participant, body, pushName)
	})
	e.metrics.SessionsLive.Set(float64(e.sessions.Len()))
}

func (e *Engine) process(ctx context.Context, participant, body, pushName string) {
	text := strings.TrimSpace(body)
	if text == "" {
		return
	}

	displayName := e.resolveDisplayName(participant, pushName)
	e.record(ctx, participant, text, repo.SenderUser, displayName)
	e.sessions.Update(participant, nil, session.Patch{DisplayName: &displayName})

	req := &request{
		ctx:         ctx,
		participant: participant,
		text:        text,
		norm:        strings.ToLower(text),
		displayName: displayName,
		sess:        e.sessions.Get(participant),
	}

	out := e.evaluate(req)

	for _, reply := range out.replies {
		if err := e.transport.SendText(ctx, participant, reply); err != nil {
			e.logger.Error("failed sending reply", "participant", participant, "error", err)
			e.metrics.Errors.WithLabelValues("transport").Inc()
			// Keep the state machine where it was so the participant can
			// repeat the input.
			return
		}
		e.record(ctx, participant, reply, repo.SenderBot, displayName)
	}

	if out.state != nil && *out.state != req.sess.State {
		e.metrics.StateTransitions.WithLabelValues(string(req.sess.State), string(*out.state)).Inc()
	}
	e.sessions.Update(participant, out.state, out.patch)
}

// evaluate walks the state's ordered rule list; the first matching rule
// wins. Every state list ends with a catch-all, so a rule always fires.
func (e *Engine) evaluate(req *request) outcome {
	for _, r := range e.rules[req.sess.State] {
		if r.match(req) {
			return r.run(e, req)
		}
	}
	// Unknown states fall back to the menu catch-all.
	rules := e.rules[session.StateMenu]
	return rules[len(rules)-1].run(e, req)
}

// resolveDisplayName prefers the push name delivered with the event, then
// the transport contact lookup, then the generic label.
func (e *Engine) resolveDisplayName(participant, pushName string) string {
	if name := strings.TrimSpace(pushName); name != "" {
		return name
	}
	if name := strings.TrimSpace(e.transport.DisplayName(participant)); name != "" {
		return name
	}
	return genericDisplayName
}

// record appends to the conversation log. Persistence failures never block
// the reply path; they are logged and counted.
func (e *Engine) record(ctx context.Context, participant, body string, sender repo.Sender, displayName string) {
	msg := repo.Message{Phone: participant, Body: body, Sender: sender}
	if err := e.store.SaveMessage(ctx, msg, displayName); err != nil {
		e.logger.Warn("failed persisting message", "participant", participant, "error", err)
		e.metrics.Errors.WithLabelValues("persistence").Inc()
	}
}
