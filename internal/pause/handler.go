package pause

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pausesync/internal/check"
	"pausesync/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pausesync/internal/pause"

// TransitionSource says what caused a pause transition.
type TransitionSource string

const (
	SourceLocal    TransitionSource = "local"
	SourceCommand  TransitionSource = "command"
	SourceFailsafe TransitionSource = "failsafe"
	SourceReset    TransitionSource = "reset"
)

// Transition describes one change of the paused flag.
type Transition struct {
	At          time.Time
	Paused      bool
	PausingPeer *session.Peer
	ClockOffset float64
	Source      TransitionSource
}

// Config wires a Handler to its collaborators.
type Config struct {
	Store      *Store
	Fabric     Fabric
	Phases     PhaseControl
	Permission Permission

	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
	// Now defaults to time.Now.
	Now func() time.Time
	// OnTransition is called after every change of the paused flag.
	OnTransition func(Transition)
}

// Handler runs the pause protocol for the local peer.
type Handler struct {
	store        *Store
	fabric       Fabric
	phases       PhaseControl
	permission   Permission
	tracer       trace.Tracer
	now          func() time.Time
	onTransition func(Transition)

	authority    session.PeerID
	hasAuthority bool
}

func NewHandler(cfg Config) *Handler {
	check.Assert(cfg.Store != nil, "pause.NewHandler: store must not be nil")
	check.Assert(cfg.Fabric != nil, "pause.NewHandler: fabric must not be nil")
	check.Assert(cfg.Phases != nil, "pause.NewHandler: phase control must not be nil")
	check.Assert(cfg.Permission != nil, "pause.NewHandler: permission must not be nil")

	h := &Handler{
		store:        cfg.Store,
		fabric:       cfg.Fabric,
		phases:       cfg.Phases,
		permission:   cfg.Permission,
		tracer:       cfg.Tracer,
		now:          cfg.Now,
		onTransition: cfg.OnTransition,
	}
	if h.tracer == nil {
		h.tracer = otel.Tracer(tracerName)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if auth, ok := h.fabric.Authority(); ok {
		h.authority, h.hasAuthority = auth.ID, true
	}
	return h
}

func (h *Handler) IsPaused() bool { return h.store.Paused() }

func (h *Handler) CanPause() bool { return h.store.CanPause() }

func (h *Handler) PausingPeer() (session.Peer, bool) { return h.store.PausingPeer() }

// TryTogglePause is the local-intent entry point. On a follower it only sends
// a request to the authority. On the authority it validates the host phase,
// flips the state and broadcasts the result. requestedBy is nil for local
// intent.
func (h *Handler) TryTogglePause(ctx context.Context, requestedBy *session.PeerID) {
	ctx, span := h.tracer.Start(ctx, "pause.toggle")
	defer span.End()

	if !h.fabric.IsLocalAuthority() {
		want := !h.store.Paused()
		h.request(ctx, want)
		span.SetAttributes(attribute.String("pause.outcome", "requested"), attribute.Bool("pause.value", want))
		return
	}

	phase := h.phases.CurrentPausablePhase()
	if phase == PhaseNone {
		h.store.takeUnstable()
		if h.store.SetPaused(false) {
			slog.Info("not in a pausable phase, forced unpause")
			h.emit(SourceFailsafe)
		}
		span.SetAttributes(attribute.String("pause.outcome", "failsafe"))
		return
	}

	if h.store.Paused() {
		h.store.SetPaused(false)
		if h.store.takeUnstable() {
			h.phases.ForcePhase(PhaseUnstable)
		}
	} else {
		h.store.SetPaused(true)
		if phase == PhaseUnstable {
			h.store.rememberUnstable()
			h.phases.ForcePhase(PhaseStable)
		}
	}

	pauser := h.fabric.LocalPeer()
	if requestedBy != nil {
		pauser = *requestedBy
	}
	offset := h.store.ClockDifferential()
	if h.store.Paused() {
		h.store.setPausingPeer(h.resolve(pauser))
		h.store.recordClockOffset(offset, false)
	}
	h.emit(SourceLocal)

	paused := h.store.Paused()
	slog.Info("toggled pause", "paused", paused, "pauser", pauser, "phase", phase)
	h.send(ctx, NewCommand(paused, pauser, offset))
	span.SetAttributes(
		attribute.String("pause.outcome", "toggled"),
		attribute.Bool("pause.value", paused),
		attribute.Int("pause.pauser", int(pauser)),
	)
}

// Handle applies one inbound pause message. Anything invalid, unauthorised,
// stale or from another protocol version is logged and dropped.
func (h *Handler) Handle(ctx context.Context, payload []byte, sender session.PeerID) {
	ctx, span := h.tracer.Start(ctx, "pause.handle", trace.WithAttributes(attribute.Int("pause.sender", int(sender))))
	defer span.End()

	outcome := "dropped"
	defer func() { span.SetAttributes(attribute.String("pause.outcome", outcome)) }()

	msg, err := Decode(payload)
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			outcome = "version_mismatch"
			slog.Info("ignoring pause message from incompatible peer", "sender", sender, "version", msg.Version, "want", ProtocolVersion)
			return
		}
		outcome = "malformed"
		span.RecordError(err)
		slog.Warn("dropping malformed pause message", "sender", sender, "err", err)
		return
	}
	span.SetAttributes(attribute.String("pause.kind", msg.Kind.String()), attribute.Bool("pause.value", msg.Value))

	if h.fabric.IsLocalAuthority() {
		outcome = h.handleRequest(ctx, msg, sender)
		return
	}
	outcome = h.handleFromAuthority(msg, sender)
}

func (h *Handler) handleRequest(ctx context.Context, msg Message, sender session.PeerID) string {
	if msg.Kind != KindRequest {
		slog.Debug("authority ignoring non-request pause message", "sender", sender, "kind", msg.Kind)
		return "not_request"
	}
	slog.Info("received pause request", "sender", sender, "value", msg.Value)
	if !h.permission.PlayersCanPause() {
		slog.Info("pause request denied, players may not pause", "sender", sender)
		return "denied"
	}
	if msg.Value == h.store.Paused() {
		slog.Debug("pause request already satisfied", "sender", sender, "value", msg.Value)
		return "stale"
	}
	h.TryTogglePause(ctx, &sender)
	return "honoured"
}

func (h *Handler) handleFromAuthority(msg Message, sender session.PeerID) string {
	auth, ok := h.fabric.Authority()
	if !ok || auth.ID != sender {
		slog.Warn("dropping pause message from non-authority", "sender", sender, "kind", msg.Kind)
		return "unauthorised"
	}

	switch msg.Kind {
	case KindPause:
		slog.Info("received pause command", "sender", sender, "value", msg.Value)
		changed := h.store.SetPaused(msg.Value)
		if msg.Value && msg.PausingPeer != nil {
			h.store.setPausingPeer(h.resolve(*msg.PausingPeer))
		}
		if msg.ClockOffset != nil {
			h.store.recordClockOffset(*msg.ClockOffset, true)
		}
		if changed {
			h.emit(SourceCommand)
		}
		return "applied"
	case KindCanPause:
		slog.Info("received can-pause announce", "sender", sender, "value", msg.Value)
		h.store.SetCanPause(msg.Value)
		return "applied"
	default:
		slog.Debug("follower ignoring pause request", "sender", sender)
		return "not_authority"
	}
}

// SendCanPause announces the configured permission to targets, or to every
// other peer when none are given. Authority only.
func (h *Handler) SendCanPause(ctx context.Context, targets ...session.PeerID) {
	if !h.fabric.IsLocalAuthority() {
		return
	}
	allowed := h.permission.PlayersCanPause()
	h.store.SetCanPause(allowed)
	h.send(ctx, NewCanPause(allowed), targets...)
}

// SendState re-sends the current pause command to targets, or to every other
// peer when none are given. Authority only.
func (h *Handler) SendState(ctx context.Context, targets ...session.PeerID) {
	if !h.fabric.IsLocalAuthority() {
		return
	}
	paused := h.store.Paused()
	offset := h.store.ClockDifferential()
	if paused {
		offset = h.store.ClockOffset()
	}
	msg := NewCommand(paused, h.fabric.LocalPeer(), offset)
	if p, ok := h.store.PausingPeer(); ok {
		msg.PausingPeer = &p.ID
	} else if paused {
		// The pauser has left the session.
		msg.PausingPeer = nil
	}
	h.send(ctx, msg, targets...)
}

// Resync re-announces permission and pause state to every other peer so a
// follower that lost a message converges again.
func (h *Handler) Resync(ctx context.Context) {
	if !h.fabric.IsLocalAuthority() {
		return
	}
	ctx, span := h.tracer.Start(ctx, "pause.resync")
	defer span.End()
	h.SendCanPause(ctx)
	h.SendState(ctx)
}

// PeerJoined brings a newly joined peer up to date. Authority only.
func (h *Handler) PeerJoined(ctx context.Context, p session.Peer) {
	if !h.fabric.IsLocalAuthority() {
		return
	}
	h.SendCanPause(ctx, p.ID)
	if h.store.Paused() {
		h.SendState(ctx, p.ID)
	}
}

// AuthorityChanged resets the session state whenever the authority differs
// from the one last seen. A peer that has just become authority announces its
// permission to everyone.
func (h *Handler) AuthorityChanged(ctx context.Context) {
	auth, ok := h.fabric.Authority()
	if ok == h.hasAuthority && auth.ID == h.authority {
		return
	}
	prev, hadPrev := h.authority, h.hasAuthority
	h.authority, h.hasAuthority = auth.ID, ok

	slog.Info("pause authority changed", "from", prev, "had_from", hadPrev, "to", auth.ID, "has_to", ok)
	h.Reset()
	if h.fabric.IsLocalAuthority() {
		h.SendCanPause(ctx)
	}
}

// Reset clears the session's pause state.
func (h *Handler) Reset() {
	wasPaused := h.store.Paused()
	h.store.Reset()
	if wasPaused {
		h.emit(SourceReset)
	}
}

func (h *Handler) request(ctx context.Context, paused bool) {
	auth, ok := h.fabric.Authority()
	if !ok {
		slog.Warn("no pause authority to send request to")
		return
	}
	slog.Info("requesting pause change", "value", paused, "authority", auth.ID)
	h.send(ctx, NewRequest(paused), auth.ID)
}

func (h *Handler) send(ctx context.Context, msg Message, targets ...session.PeerID) {
	payload, err := Encode(msg)
	if err != nil {
		slog.Error("encode pause message", "kind", msg.Kind, "err", err)
		return
	}
	if err := h.fabric.Send(targets, payload); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send "+msg.Kind.String())
		slog.Warn("send pause message", "kind", msg.Kind, "targets", targets, "err", err)
		return
	}
	slog.Debug("sent pause message", "kind", msg.Kind, "value", msg.Value, "targets", targets)
}

func (h *Handler) resolve(id session.PeerID) *session.Peer {
	p, ok := h.fabric.ResolvePeer(id)
	if !ok {
		slog.Debug("pausing peer not in session", "peer", id)
		return nil
	}
	return &p
}

func (h *Handler) emit(source TransitionSource) {
	if h.onTransition == nil {
		return
	}
	t := Transition{
		At:          h.now(),
		Paused:      h.store.Paused(),
		ClockOffset: h.store.ClockOffset(),
		Source:      source,
	}
	if p, ok := h.store.PausingPeer(); ok {
		t.PausingPeer = &p
	}
	h.onTransition(t)
}
