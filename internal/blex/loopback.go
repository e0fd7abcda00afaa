package blex

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrLinkClosed is returned by loopback operations after either side
// closed.
var ErrLinkClosed = errors.New("blex: link closed")

// eventBuf sizes the loopback event channels. Writes never block: a
// stuck consumer drops the link instead of deadlocking the peer.
const eventBuf = 256

// Loopback is an in-memory GATT link connecting one Peripheral to one
// Central inside the same process. It preserves the protocol's causal
// ordering per characteristic stream.
type Loopback struct {
	mu sync.Mutex

	perDev Device
	cenDev Device

	advertised bool
	mode       byte
	pairing    []byte

	perEvents chan Event
	cenEvents chan Event

	scanCh chan Device

	closed bool
}

// NewLoopback builds a connected pair of roles with the given device
// identities.
func NewLoopback(peripheral, central Device) *Loopback {
	return &Loopback{
		perDev:    peripheral,
		cenDev:    central,
		perEvents: make(chan Event, eventBuf),
		cenEvents: make(chan Event, eventBuf),
	}
}

// Peripheral returns the peripheral-role handle.
func (l *Loopback) Peripheral() Peripheral { return (*loopPeripheral)(l) }

// Central returns the central-role handle.
func (l *Loopback) Central() Central { return (*loopCentral)(l) }

func (l *Loopback) send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		// receiver stalled; drop the link rather than block
		l.closeLocked()
	}
}

func (l *Loopback) closeLocked() {
	if l.closed {
		return
	}
	l.closed = true
	// non-blocking disconnect markers for both sides
	select {
	case l.perEvents <- Event{Kind: EventDisconnected, Peer: l.cenDev}:
	default:
	}
	select {
	case l.cenEvents <- Event{Kind: EventDisconnected, Peer: l.perDev}:
	default:
	}
}

// Close drops the link from either side.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}

type loopPeripheral Loopback

func (p *loopPeripheral) Advertise(ctx context.Context, name string, mode byte, pairing []byte) error {
	l := (*Loopback)(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.advertised = true
	l.perDev.Name = name
	l.mode = mode
	l.pairing = append([]byte(nil), pairing...)
	if l.scanCh != nil {
		select {
		case l.scanCh <- l.perDev:
		default:
		}
	}
	return nil
}

func (p *loopPeripheral) Notify(char uuid.UUID, data []byte) error {
	l := (*Loopback)(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.send(l.cenEvents, Event{
		Kind: EventNotified,
		Peer: l.perDev,
		Char: char,
		Data: append([]byte(nil), data...),
	})
	return nil
}

func (p *loopPeripheral) Events() <-chan Event { return (*Loopback)(p).perEvents }

func (p *loopPeripheral) Close() error { return (*Loopback)(p).Close() }

type loopCentral Loopback

func (c *loopCentral) Scan(ctx context.Context) (<-chan Device, error) {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLinkClosed
	}
	if l.scanCh == nil {
		l.scanCh = make(chan Device, 1)
	}
	if l.advertised {
		select {
		case l.scanCh <- l.perDev:
		default:
		}
	}
	return l.scanCh, nil
}

func (c *loopCentral) Connect(ctx context.Context, d Device) error {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	if !l.advertised || d.ID != l.perDev.ID {
		return errors.New("blex: unknown device")
	}
	l.send(l.perEvents, Event{Kind: EventConnected, Peer: l.cenDev})
	return nil
}

func (c *loopCentral) Read(ctx context.Context, char uuid.UUID) ([]byte, error) {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLinkClosed
	}
	switch char {
	case ModeCharUUID:
		return []byte{l.mode}, nil
	case PairingCharUUID:
		return append([]byte(nil), l.pairing...), nil
	default:
		return nil, errors.New("blex: characteristic not readable")
	}
}

func (c *loopCentral) Write(ctx context.Context, char uuid.UUID, data []byte) error {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.send(l.perEvents, Event{
		Kind: EventWritten,
		Peer: l.cenDev,
		Char: char,
		Data: append([]byte(nil), data...),
	})
	return nil
}

func (c *loopCentral) Events() <-chan Event { return (*Loopback)(c).cenEvents }

func (c *loopCentral) Close() error { return (*Loopback)(c).Close() }
