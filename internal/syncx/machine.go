package syncx

import (
	"github.com/vibevault/vibevault/internal/blex"
)

// State is the sync state machine position. Both roles walk the same
// ladder; Scanning/Advertising distinguish who is searching for whom.
type State int

const (
	StateIdle State = iota
	StateAdvertising
	StateScanning
	StateConnected
	StateModeRead
	StateConfirmCode
	StatePaired
	StateTransferring
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateScanning:
		return "scanning"
	case StateConnected:
		return "connected"
	case StateModeRead:
		return "mode_read"
	case StateConfirmCode:
		return "confirm_code"
	case StatePaired:
		return "paired"
	case StateTransferring:
		return "transferring"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the tagged state value the UI polls. Variant payloads:
// DisplayCode is set while the peripheral shows the SAS, AwaitingCode
// while the central waits for user input, progress counters while
// transferring, Err in StateError.
type Snapshot struct {
	State State

	// Mode is the direction byte as advertised/read (blex.ModePush or
	// blex.ModePull); zero before mode read.
	Mode byte

	// DisplayCode is the 6-digit SAS the peripheral shows.
	DisplayCode string

	// AwaitingCode is true while the central waits for the user to
	// type the peer's code.
	AwaitingCode bool

	// Peer is the connected device, once known.
	Peer blex.Device

	// ChunksDone/ChunksTotal report transfer progress.
	ChunksDone  int
	ChunksTotal int

	// Err is the terminal error message in StateError.
	Err string
}
