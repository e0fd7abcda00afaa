// Package blex defines the transport seam between the sync state
// machine and a BLE GATT binding: the fixed identifiers of the sync
// service, the role interfaces, and the event stream both roles emit.
//
// Side effects live behind Peripheral/Central; the state machine only
// consumes events and calls methods. The in-memory loopback in this
// package is the reference transport; OS GATT bindings plug in the same
// way from the platform shell.
package blex

import (
	"context"

	"github.com/google/uuid"
)

// Fixed 128-bit identifiers of the sync GATT service. Both
// implementations of the protocol hard-code these.
var (
	ServiceUUID      = uuid.MustParse("A1B2C3D4-E5F6-7890-ABCD-EF0123456789")
	ModeCharUUID     = uuid.MustParse("A1B2C3D4-E5F6-7890-ABCD-EF012345678A")
	PairingCharUUID  = uuid.MustParse("A1B2C3D4-E5F6-7890-ABCD-EF012345678B")
	ControlCharUUID  = uuid.MustParse("A1B2C3D4-E5F6-7890-ABCD-EF012345678C")
	TransferCharUUID = uuid.MustParse("A1B2C3D4-E5F6-7890-ABCD-EF012345678D")
)

// Mode characteristic values.
const (
	// ModePush: the peripheral sends its bundle.
	ModePush byte = 0x01
	// ModePull: the peripheral receives.
	ModePull byte = 0x02
)

// Device identifies a peer as seen over the air.
type Device struct {
	ID   string
	Name string
}

// EventKind classifies transport events.
type EventKind int

const (
	// EventConnected: a central connected to the peripheral.
	EventConnected EventKind = iota
	// EventDisconnected: the link dropped or the peer closed.
	EventDisconnected
	// EventWritten: the peer wrote a characteristic value.
	EventWritten
	// EventNotified: the peripheral pushed a notification.
	EventNotified
)

// Event is one item of the transport event stream. Char and Data are
// set for EventWritten and EventNotified.
type Event struct {
	Kind EventKind
	Peer Device
	Char uuid.UUID
	Data []byte
}

// Peripheral is the GATT server role (the advertiser). Central writes
// arrive as EventWritten on Events.
type Peripheral interface {
	// Advertise exposes the sync service with the given mode byte and
	// initial Pairing characteristic value, and starts advertising
	// under name.
	Advertise(ctx context.Context, name string, mode byte, pairing []byte) error

	// Notify pushes a value to subscribed centrals on the given
	// characteristic.
	Notify(char uuid.UUID, data []byte) error

	// Events returns the peripheral's event stream.
	Events() <-chan Event

	// Close stops advertising and releases the adapter.
	Close() error
}

// Central is the GATT client role (the scanner). Peripheral
// notifications arrive as EventNotified on Events.
type Central interface {
	// Scan streams devices advertising the sync service until ctx is
	// done.
	Scan(ctx context.Context) (<-chan Device, error)

	// Connect establishes a connection and discovers the service's
	// characteristics.
	Connect(ctx context.Context, d Device) error

	// Read reads a characteristic value.
	Read(ctx context.Context, char uuid.UUID) ([]byte, error)

	// Write writes a characteristic value with response.
	Write(ctx context.Context, char uuid.UUID, data []byte) error

	// Events returns the central's event stream.
	Events() <-chan Event

	// Close disconnects and releases the adapter.
	Close() error
}
