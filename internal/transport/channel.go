package transport

import (
	"errors"
	"fmt"

	"pausesync/internal/session"
)

var (
	ErrClosed     = errors.New("transport closed")
	ErrNotPresent = errors.New("peer not present")
)

// Link delivers one payload to one peer.
type Link interface {
	Deliver(channel string, to session.Peer, payload []byte) error
}

// Channel is a named message stream scoped to a roster. It satisfies the
// fabric contract of the pause protocol.
type Channel struct {
	name   string
	roster *session.Roster
	link   Link
}

func NewChannel(name string, roster *session.Roster, link Link) *Channel {
	return &Channel{name: name, roster: roster, link: link}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) LocalPeer() session.PeerID { return c.roster.Local().ID }

func (c *Channel) Authority() (session.Peer, bool) { return c.roster.Authority() }

func (c *Channel) IsLocalAuthority() bool { return c.roster.IsAuthority(c.LocalPeer()) }

func (c *Channel) ResolvePeer(id session.PeerID) (session.Peer, bool) { return c.roster.Lookup(id) }

// Send delivers payload to each target, or to every present peer other than
// the local one when targets is empty. It returns the joined errors of the
// targets that could not be handed to the link.
func (c *Channel) Send(targets []session.PeerID, payload []byte) error {
	var peers []session.Peer
	var errs []error
	if len(targets) == 0 {
		peers = c.roster.Present()
	} else {
		local := c.LocalPeer()
		for _, id := range targets {
			if id == local {
				continue
			}
			p, ok := c.roster.Lookup(id)
			if !ok {
				errs = append(errs, fmt.Errorf("send to peer %d: %w", id, ErrNotPresent))
				continue
			}
			peers = append(peers, p)
		}
	}
	for _, p := range peers {
		if err := c.link.Deliver(c.name, p, payload); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
