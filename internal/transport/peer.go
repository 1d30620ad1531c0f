package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"pausesync/internal/check"
	"pausesync/internal/session"
)

const (
	HeaderSender = "X-Sender-Ordinal"

	defaultTimeout       = 2 * time.Second
	defaultInboundBuffer = 256
	maxPayloadBytes      = 64 << 10
)

// Peer is the HTTP endpoint of the local peer.
type Peer struct {
	roster     *session.Roster
	server     *http.Server
	client     *http.Client
	timeout    time.Duration
	inboundCap int
	inbound    chan session.Envelope

	mu     sync.Mutex
	closed bool
	// departed holds peers that said bye and have not said hello since.
	departed map[session.PeerID]bool
	wg       sync.WaitGroup
}

func NewPeer(roster *session.Roster, opts ...peerOption) *Peer {
	check.Assert(roster != nil, "transport.NewPeer: roster must not be nil")
	p := &Peer{
		roster:     roster,
		timeout:    defaultTimeout,
		inboundCap: defaultInboundBuffer,
		departed:   make(map[session.PeerID]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	p.inbound = make(chan session.Envelope, p.inboundCap)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/channels/{channel}", p.handleMessage)
	mux.HandleFunc("POST /v1/hello", p.handleHello)
	mux.HandleFunc("POST /v1/bye", p.handleBye)
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: p.timeout}
	return p
}

// Handler exposes the peer's HTTP routes.
func (p *Peer) Handler() http.Handler { return p.server.Handler }

// Start serves on l until Close.
func (p *Peer) Start(l net.Listener) {
	go func() {
		err := p.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("transport server stopped", "addr", l.Addr().String(), "err", err)
		}
	}()
}

func (p *Peer) Roster() *session.Roster { return p.roster }

// Inbound is the stream of received messages.
func (p *Peer) Inbound() <-chan session.Envelope { return p.inbound }

// Channel returns the named message stream bound to this peer.
func (p *Peer) Channel(name string) *Channel { return NewChannel(name, p.roster, p) }

// Hello announces the local peer to every configured peer. Each peer that
// answers is marked present.
func (p *Peer) Hello(ctx context.Context) {
	var wg sync.WaitGroup
	for _, peer := range p.roster.Known() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.post(ctx, peer, "/v1/hello", nil); err != nil {
				slog.Debug("hello not answered", "peer", peer.String(), "err", err)
				return
			}
			p.greet(peer)
		}()
	}
	wg.Wait()
}

// Deliver posts payload to one peer in the background.
func (p *Peer) Deliver(channel string, to session.Peer, payload []byte) error {
	if to.Addr == "" {
		return fmt.Errorf("peer %s has no address", to)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	body := bytes.Clone(payload)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.post(ctx, to, "/v1/channels/"+url.PathEscape(channel), body); err != nil {
			slog.Warn("deliver message", "peer", to.String(), "channel", channel, "err", err)
		}
	}()
	return nil
}

// Close waits for outbound messages, says goodbye to present peers and stops
// the server. Nothing is sent after the bye.
func (p *Peer) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()

	var wg sync.WaitGroup
	for _, peer := range p.roster.Present() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.post(ctx, peer, "/v1/bye", nil); err != nil {
				slog.Debug("bye not delivered", "peer", peer.String(), "err", err)
			}
		}()
	}
	wg.Wait()
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown transport server: %w", err)
	}
	return nil
}

func (p *Peer) post(ctx context.Context, to session.Peer, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+to.Addr+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(HeaderSender, p.roster.Local().ID.String())
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// sender authenticates the request against the configured peers.
func (p *Peer) sender(w http.ResponseWriter, r *http.Request) (session.Peer, bool) {
	raw := r.Header.Get(HeaderSender)
	n, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "missing or invalid "+HeaderSender, http.StatusBadRequest)
		return session.Peer{}, false
	}
	id := session.PeerID(n)
	peer, ok := p.roster.Member(id)
	if !ok || id == p.roster.Local().ID {
		http.Error(w, "unknown peer", http.StatusForbidden)
		return session.Peer{}, false
	}
	return peer, true
}

func (p *Peer) handleMessage(w http.ResponseWriter, r *http.Request) {
	peer, ok := p.sender(w, r)
	if !ok {
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(payload) > maxPayloadBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	// A message proves the sender is up even if its hello was missed, unless
	// it arrived after the sender's bye.
	if !p.admit(peer) {
		slog.Debug("dropping message from departed peer", "sender", peer.String(), "channel", r.PathValue("channel"))
		http.Error(w, "sender has left", http.StatusGone)
		return
	}

	env := session.Envelope{Sender: peer.ID, Channel: r.PathValue("channel"), Payload: payload}
	select {
	case p.inbound <- env:
		w.WriteHeader(http.StatusAccepted)
	default:
		slog.Warn("inbound queue full, dropping message", "sender", peer.String(), "channel", env.Channel)
		http.Error(w, "inbound queue full", http.StatusServiceUnavailable)
	}
}

func (p *Peer) handleHello(w http.ResponseWriter, r *http.Request) {
	peer, ok := p.sender(w, r)
	if !ok {
		return
	}
	p.greet(peer)
	w.WriteHeader(http.StatusNoContent)
}

func (p *Peer) handleBye(w http.ResponseWriter, r *http.Request) {
	peer, ok := p.sender(w, r)
	if !ok {
		return
	}
	p.depart(peer.ID)
	w.WriteHeader(http.StatusNoContent)
}

// greet marks peer present and forgets an earlier bye.
func (p *Peer) greet(peer session.Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.departed, peer.ID)
	p.roster.Join(peer)
}

// admit marks peer present unless it said bye since its last hello.
func (p *Peer) admit(peer session.Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.departed[peer.ID] {
		return false
	}
	p.roster.Join(peer)
	return true
}

func (p *Peer) depart(id session.PeerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.departed[id] = true
	p.roster.Leave(id)
}
