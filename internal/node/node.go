// Package node runs one peer of a pause session. A single goroutine owns the
// pause state: inbound messages, roster changes, local intents and periodic
// resyncs are all handled in Run's loop.
package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pausesync/internal/check"
	"pausesync/internal/pause"
	"pausesync/internal/session"

	"go.opentelemetry.io/otel/trace"
)

var ErrStopped = errors.New("node stopped")

type Config struct {
	Transport Transport
	Host      Host
	Clock     pause.ClockSync

	// Journal is optional.
	Journal Journal
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
	// PlayersCanPause is the permission this node announces while it is
	// authority.
	PlayersCanPause bool
	// ResyncInterval enables periodic re-announcement by the authority.
	ResyncInterval time.Duration
	Now            func() time.Time
	OnTransition   func(pause.Transition)
}

type Node struct {
	cfg     Config
	intents chan Intent
	done    chan struct{}

	// owned by the Run goroutine
	playersCanPause bool
	store           *pause.Store
	handler         *pause.Handler
}

func New(cfg Config) *Node {
	check.Assert(cfg.Transport != nil, "node.New: transport must not be nil")
	check.Assert(cfg.Host != nil, "node.New: host must not be nil")
	check.Assert(cfg.Clock != nil, "node.New: clock must not be nil")
	return &Node{
		cfg:             cfg,
		intents:         make(chan Intent),
		done:            make(chan struct{}),
		playersCanPause: cfg.PlayersCanPause,
	}
}

// Run processes events until ctx is done or the transport closes its inbound
// stream.
func (n *Node) Run(ctx context.Context) error {
	defer close(n.done)

	roster := n.cfg.Transport.Roster()
	changes := roster.Subscribe(ctx)
	inbound := n.cfg.Transport.Inbound()

	n.store = pause.NewStore(n.cfg.Host, n.cfg.Clock)
	n.handler = pause.NewHandler(pause.Config{
		Store:        n.store,
		Fabric:       n.cfg.Transport.Channel(pause.Channel),
		Phases:       n.cfg.Host,
		Permission:   pause.PermissionFunc(func() bool { return n.playersCanPause }),
		Tracer:       n.cfg.Tracer,
		Now:          n.cfg.Now,
		OnTransition: n.transitioned,
	})

	local := roster.Local()
	slog.Info("pause node started", "peer", local.String(), "authority", roster.IsAuthority(local.ID))
	n.handler.SendCanPause(ctx)

	var resync <-chan time.Time
	if n.cfg.ResyncInterval > 0 {
		ticker := time.NewTicker(n.cfg.ResyncInterval)
		defer ticker.Stop()
		resync = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-inbound:
			if !ok {
				slog.Info("transport closed, stopping pause node")
				return nil
			}
			if env.Channel != pause.Channel {
				slog.Debug("ignoring message on unknown channel", "channel", env.Channel, "sender", env.Sender)
				continue
			}
			n.handler.Handle(ctx, env.Payload, env.Sender)
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			n.rosterChanged(ctx, c)
		case in := <-n.intents:
			n.apply(ctx, in)
		case <-resync:
			n.handler.Resync(ctx)
		}
	}
}

func (n *Node) rosterChanged(ctx context.Context, c session.Change) {
	switch c.Kind {
	case session.ChangeJoined:
		n.handler.PeerJoined(ctx, c.Peer)
	case session.ChangeLeft:
		slog.Debug("peer left session", "peer", c.Peer.String())
	case session.ChangeAuthority:
		n.handler.AuthorityChanged(ctx)
	}
}

func (n *Node) apply(ctx context.Context, in Intent) {
	switch in.Type {
	case IntentToggle:
		n.handler.TryTogglePause(ctx, nil)
	case IntentSetPermission:
		if n.playersCanPause != in.Allowed {
			n.playersCanPause = in.Allowed
			slog.Info("pause permission changed", "players_can_pause", in.Allowed)
			n.handler.SendCanPause(ctx)
		}
	case IntentSetPhase:
		n.cfg.Host.SetPhase(in.Phase)
	case IntentResync:
		n.handler.Resync(ctx)
	case IntentStatus:
	}
	if in.Reply != nil {
		select {
		case in.Reply <- n.status():
		default:
		}
	}
}

func (n *Node) status() Status {
	roster := n.cfg.Transport.Roster()
	local := roster.Local()
	auth, hasAuth := roster.Authority()
	st := Status{
		Local:           local,
		Authority:       auth,
		HasAuthority:    hasAuth,
		IsAuthority:     roster.IsAuthority(local.ID),
		Present:         roster.Present(),
		Paused:          n.store.Paused(),
		CanPause:        n.store.CanPause(),
		ClockOffset:     n.store.ClockOffset(),
		PlayersCanPause: n.playersCanPause,
		Phase:           n.cfg.Host.CurrentPausablePhase(),
	}
	if p, ok := n.store.PausingPeer(); ok {
		st.PausingPeer = &p
	}
	if ac, ok := n.cfg.Clock.(AuthorityClock); ok {
		st.HostDifference, st.HasHostDifference = ac.HostDifference()
		now := time.Now()
		if n.cfg.Now != nil {
			now = n.cfg.Now()
		}
		st.AuthorityTime = ac.AuthorityTime(now)
	}
	return st
}

func (n *Node) transitioned(t pause.Transition) {
	if n.cfg.Journal != nil {
		if err := n.cfg.Journal.Record(n.cfg.Transport.Roster().Local().ID, t); err != nil {
			slog.Warn("record pause transition", "err", err)
		}
	}
	if n.cfg.OnTransition != nil {
		n.cfg.OnTransition(t)
	}
}

// Do posts an intent to the loop and waits for the resulting status.
func (n *Node) Do(ctx context.Context, in Intent) (Status, error) {
	in.Reply = make(chan Status, 1)
	select {
	case n.intents <- in:
	case <-n.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-in.Reply:
		return st, nil
	case <-n.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (n *Node) Toggle(ctx context.Context) (Status, error) {
	return n.Do(ctx, Intent{Type: IntentToggle})
}

func (n *Node) SetPermission(ctx context.Context, allowed bool) (Status, error) {
	return n.Do(ctx, Intent{Type: IntentSetPermission, Allowed: allowed})
}

func (n *Node) SetPhase(ctx context.Context, phase pause.PausablePhase) (Status, error) {
	return n.Do(ctx, Intent{Type: IntentSetPhase, Phase: phase})
}

func (n *Node) Status(ctx context.Context) (Status, error) {
	return n.Do(ctx, Intent{Type: IntentStatus})
}

func (n *Node) Resync(ctx context.Context) (Status, error) {
	return n.Do(ctx, Intent{Type: IntentResync})
}
