package syncx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibevault/vibevault/internal/auth"
	"github.com/vibevault/vibevault/internal/blex"
	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/config"
	"github.com/vibevault/vibevault/internal/cryptox"
	"github.com/vibevault/vibevault/internal/dbx"
	"github.com/vibevault/vibevault/internal/logging"
	"github.com/vibevault/vibevault/internal/models"
	"github.com/vibevault/vibevault/internal/repositories/devices"
	"github.com/vibevault/vibevault/internal/repositories/entries"
	"github.com/vibevault/vibevault/internal/repositories/synclog"
)

// PeripheralFactory yields a fresh peripheral-role transport per sync.
type PeripheralFactory func() (blex.Peripheral, error)

// CentralFactory yields a fresh central-role transport per sync.
type CentralFactory func() (blex.Central, error)

// Service drives the sync state machine for both roles. It owns its
// transport exclusively while non-idle; starting a second sync while
// one runs fails with Sync(Busy).
type Service struct {
	cfg      *config.Config
	db       *sql.DB
	entries  entries.Repository
	devices  devices.Repository
	syncLog  synclog.Repository
	sessions *auth.SessionManager
	logger   logging.Logger

	newPeripheral PeripheralFactory
	newCentral    CentralFactory
	now           func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	snap    Snapshot
	codeCh  chan string
}

// NewService wires the sync service. The factories supply the BLE
// binding; tests use the blex loopback.
func NewService(cfg *config.Config, db *sql.DB, entryRepo entries.Repository,
	deviceRepo devices.Repository, logRepo synclog.Repository,
	sessions *auth.SessionManager, logger logging.Logger,
	newPeripheral PeripheralFactory, newCentral CentralFactory) *Service {
	return &Service{
		cfg:           cfg,
		db:            db,
		entries:       entryRepo,
		devices:       deviceRepo,
		syncLog:       logRepo,
		sessions:      sessions,
		logger:        logger,
		newPeripheral: newPeripheral,
		newCentral:    newCentral,
		now:           time.Now,
		snap:          Snapshot{State: StateIdle},
	}
}

func (s *Service) nowISO() string {
	return s.now().UTC().Format(common.TimeLayout)
}

// State returns the current snapshot.
func (s *Service) State(token string) (Snapshot, error) {
	if _, err := s.sessions.ActiveProfile(token); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *Service) setSnap(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
}

// StartPush begins a sync with this device as peripheral sender.
func (s *Service) StartPush(token string) error {
	return s.startPeripheral(token, blex.ModePush)
}

// StartPull begins a sync with this device as peripheral receiver.
func (s *Service) StartPull(token string) error {
	return s.startPeripheral(token, blex.ModePull)
}

func (s *Service) startPeripheral(token string, mode byte) error {
	if s.newPeripheral == nil {
		return common.NewSyncError(common.SyncBusy, errors.New("no peripheral transport available"))
	}
	runCtx, err := s.begin(token, StateAdvertising, mode)
	if err != nil {
		return err
	}
	go s.runPeripheral(runCtx, token, mode)
	return nil
}

// StartScan begins a sync with this device as central; the direction
// comes from the peripheral's Mode characteristic.
func (s *Service) StartScan(token string) error {
	if s.newCentral == nil {
		return common.NewSyncError(common.SyncBusy, errors.New("no central transport available"))
	}
	runCtx, err := s.begin(token, StateScanning, 0)
	if err != nil {
		return err
	}
	go s.runCentral(runCtx, token)
	return nil
}

// begin claims the state machine. Only one sync may run at a time.
func (s *Service) begin(token string, initial State, mode byte) (context.Context, error) {
	if _, err := s.sessions.ActiveProfile(token); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, common.NewSyncError(common.SyncBusy, errors.New("sync already in progress"))
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.SessionTimeout)
	s.running = true
	s.cancel = cancel
	s.codeCh = make(chan string, 1)
	s.snap = Snapshot{State: initial, Mode: mode}
	return runCtx, nil
}

// Cancel aborts the running sync, if any.
func (s *Service) Cancel(token string) error {
	if _, err := s.sessions.ActiveProfile(token); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// SubmitPairingCode hands the user-entered SAS to the waiting central
// flow.
func (s *Service) SubmitPairingCode(token, code string) error {
	if _, err := s.sessions.ActiveProfile(token); err != nil {
		return err
	}
	if len(code) != 6 {
		return common.NewValidationError("pairing_code", "must be 6 digits")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.snap.State != StateConfirmCode {
		return common.NewSyncError(common.SyncPeerAbort, errors.New("no pairing in progress"))
	}
	select {
	case s.codeCh <- code:
		return nil
	default:
		return common.NewSyncError(common.SyncBusy, errors.New("code already submitted"))
	}
}

// finish releases the machine and publishes the terminal state.
func (s *Service) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		s.snap.State = StateError
		s.snap.Err = err.Error()
	} else {
		s.snap.State = StateComplete
	}
}

// asSyncError maps context and transport failures into the sync error
// taxonomy.
func asSyncError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var se *common.SyncError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return common.NewSyncError(common.SyncCancelled, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return common.NewSyncError(common.SyncTimeout, nil)
	}
	return common.NewSyncError(common.SyncPeerAbort, err)
}

// nextEvent waits for one transport event under the per-step timeout.
func nextEvent(ctx context.Context, events <-chan blex.Event, timeout time.Duration) (blex.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			return blex.Event{}, common.NewSyncError(common.SyncPeerAbort, errors.New("transport closed"))
		}
		return ev, nil
	case <-ctx.Done():
		return blex.Event{}, asSyncError(ctx, ctx.Err())
	case <-timer.C:
		return blex.Event{}, common.NewSyncError(common.SyncTimeout, errors.New("no event within deadline"))
	}
}

// ----- peripheral role -----

func (s *Service) runPeripheral(ctx context.Context, token string, mode byte) {
	started := s.now().UTC()
	var peer blex.Device
	var peerPub, sessionKey []byte
	var sent, received int
	var partial bool

	err := func() error {
		pairing, err := NewPeripheralPairing()
		if err != nil {
			return asSyncError(ctx, err)
		}

		per, err := s.newPeripheral()
		if err != nil {
			return asSyncError(ctx, err)
		}
		defer per.Close()

		s.setSnap(func(sn *Snapshot) { sn.DisplayCode = pairing.Code })

		if err := per.Advertise(ctx, s.cfg.DeviceName, mode, pairing.PublicKeyBytes()); err != nil {
			return asSyncError(ctx, err)
		}
		events := per.Events()

		// wait for a central to connect
		for {
			ev, err := nextEvent(ctx, events, s.cfg.ScanTimeout)
			if err != nil {
				return err
			}
			if ev.Kind == blex.EventDisconnected {
				return common.NewSyncError(common.SyncPeerAbort, errors.New("peer disconnected"))
			}
			if ev.Kind == blex.EventConnected {
				peer = ev.Peer
				break
			}
		}
		s.setSnap(func(sn *Snapshot) {
			sn.State = StateConnected
			sn.Peer = peer
		})

		// wait for the central's pairing write
		var payload []byte
		for payload == nil {
			ev, err := nextEvent(ctx, events, s.cfg.PairingTimeout)
			if err != nil {
				return err
			}
			switch {
			case ev.Kind == blex.EventDisconnected:
				return common.NewSyncError(common.SyncPeerAbort, errors.New("peer disconnected"))
			case ev.Kind == blex.EventWritten && ev.Char == blex.PairingCharUUID:
				payload = ev.Data
			case ev.Kind == blex.EventWritten && ev.Char == blex.ControlCharUUID && firstByte(ev.Data) == OpAbort:
				return common.NewSyncError(common.SyncPeerAbort, errors.New("peer aborted during pairing"))
			}
		}

		sessionKey, peerPub, err = pairing.CompletePeripheral(payload)
		if err != nil {
			_ = per.Notify(blex.ControlCharUUID, []byte{OpAbort})
			return err
		}
		s.setSnap(func(sn *Snapshot) { sn.State = StatePaired })

		notifyControl := func(op byte) error { return per.Notify(blex.ControlCharUUID, []byte{op}) }
		notifyData := func(b []byte) error { return per.Notify(blex.TransferCharUUID, b) }

		if mode == blex.ModePush {
			bundle, count, err := s.buildBundle(ctx, token, sessionKey)
			if err != nil {
				_ = notifyControl(OpAbort)
				return asSyncError(ctx, err)
			}
			sent = count
			s.setSnap(func(sn *Snapshot) { sn.State = StateTransferring })
			if err := s.sendBundle(ctx, bundle, notifyData, events, notifyControl); err != nil {
				return err
			}
		} else {
			s.setSnap(func(sn *Snapshot) { sn.State = StateTransferring })
			payload, err := s.receiveBundle(ctx, events, notifyControl)
			if err != nil {
				return err
			}
			res, err := s.ingestBundle(ctx, token, sessionKey, payload)
			received = res.Applied()
			if err != nil {
				partial = res.Applied() > 0
				_ = notifyControl(OpAbort)
				return err
			}
		}
		return nil
	}()

	s.complete(peer, peerPub, sessionKey, directionFor(mode), sent, received, started, partial, err)
}

// ----- central role -----

func (s *Service) runCentral(ctx context.Context, token string) {
	started := s.now().UTC()
	var peer blex.Device
	var peerPub, sessionKey []byte
	var mode byte
	var sent, received int
	var partial bool

	err := func() error {
		cen, err := s.newCentral()
		if err != nil {
			return asSyncError(ctx, err)
		}
		defer cen.Close()

		devCh, err := cen.Scan(ctx)
		if err != nil {
			return asSyncError(ctx, err)
		}

		scanTimer := time.NewTimer(s.cfg.ScanTimeout)
		defer scanTimer.Stop()
		select {
		case peer = <-devCh:
		case <-ctx.Done():
			return asSyncError(ctx, ctx.Err())
		case <-scanTimer.C:
			return common.NewSyncError(common.SyncTimeout, errors.New("no peer found"))
		}

		if err := cen.Connect(ctx, peer); err != nil {
			return asSyncError(ctx, err)
		}
		s.setSnap(func(sn *Snapshot) {
			sn.State = StateConnected
			sn.Peer = peer
		})

		modeVal, err := cen.Read(ctx, blex.ModeCharUUID)
		if err != nil {
			return asSyncError(ctx, err)
		}
		if len(modeVal) != 1 || (modeVal[0] != blex.ModePush && modeVal[0] != blex.ModePull) {
			return common.NewSyncError(common.SyncFramingError, fmt.Errorf("invalid mode value % x", modeVal))
		}
		mode = modeVal[0]
		s.setSnap(func(sn *Snapshot) {
			sn.State = StateModeRead
			sn.Mode = mode
		})

		peripheralPub, err := cen.Read(ctx, blex.PairingCharUUID)
		if err != nil {
			return asSyncError(ctx, err)
		}

		// ask the user for the code shown on the peripheral
		s.setSnap(func(sn *Snapshot) {
			sn.State = StateConfirmCode
			sn.AwaitingCode = true
		})
		var code string
		codeTimer := time.NewTimer(s.cfg.PairingTimeout)
		defer codeTimer.Stop()
		select {
		case code = <-s.codeCh:
		case <-ctx.Done():
			return asSyncError(ctx, ctx.Err())
		case <-codeTimer.C:
			return common.NewSyncError(common.SyncTimeout, errors.New("pairing code not entered"))
		}
		s.setSnap(func(sn *Snapshot) { sn.AwaitingCode = false })

		pairing, err := NewCentralPairing(code)
		if err != nil {
			return asSyncError(ctx, err)
		}
		if err := cen.Write(ctx, blex.PairingCharUUID, pairing.CentralPayload()); err != nil {
			return asSyncError(ctx, err)
		}
		sessionKey, err = pairing.CompleteCentral(peripheralPub)
		if err != nil {
			return err
		}
		peerPub = append([]byte(nil), peripheralPub...)
		s.setSnap(func(sn *Snapshot) { sn.State = StatePaired })

		events := cen.Events()
		writeControl := func(op byte) error { return cen.Write(ctx, blex.ControlCharUUID, []byte{op}) }
		writeData := func(b []byte) error { return cen.Write(ctx, blex.TransferCharUUID, b) }

		if mode == blex.ModePush {
			// the peripheral sends; we receive via notifications
			s.setSnap(func(sn *Snapshot) { sn.State = StateTransferring })
			payload, err := s.receiveBundle(ctx, events, writeControl)
			if err != nil {
				return err
			}
			res, err := s.ingestBundle(ctx, token, sessionKey, payload)
			received = res.Applied()
			if err != nil {
				partial = res.Applied() > 0
				_ = writeControl(OpAbort)
				return err
			}
		} else {
			bundle, count, err := s.buildBundle(ctx, token, sessionKey)
			if err != nil {
				_ = writeControl(OpAbort)
				return asSyncError(ctx, err)
			}
			sent = count
			s.setSnap(func(sn *Snapshot) { sn.State = StateTransferring })
			if err := s.sendBundle(ctx, bundle, writeData, events, writeControl); err != nil {
				return err
			}
		}
		return nil
	}()

	// the central's local direction is the inverse of the peripheral's
	// mode: a pushing peripheral means we pulled
	direction := models.DirectionPull
	if mode == blex.ModePull {
		direction = models.DirectionPush
	}
	s.complete(peer, peerPub, sessionKey, direction, sent, received, started, partial, err)
}

func directionFor(mode byte) string {
	if mode == blex.ModePush {
		return models.DirectionPush
	}
	return models.DirectionPull
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// ----- transfer -----

// sendBundle streams the chunks, pausing for the receiver's ACK after
// every window and at end of message. An abort before the first ACK is
// treated as a pairing rejection.
func (s *Service) sendBundle(ctx context.Context, bundle []byte, sendFrame func([]byte) error,
	events <-chan blex.Event, sendControl func(byte) error) error {

	chunks := Split(bundle)
	s.setSnap(func(sn *Snapshot) {
		sn.ChunksDone = 0
		sn.ChunksTotal = len(chunks)
	})

	if err := sendControl(OpStart); err != nil {
		return asSyncError(ctx, err)
	}

	acked := false
	for i := range chunks {
		if err := sendFrame(chunks[i].Encode()); err != nil {
			return asSyncError(ctx, err)
		}
		done := i + 1
		s.setSnap(func(sn *Snapshot) { sn.ChunksDone = done })

		if done%s.cfg.AckWindow != 0 && done != len(chunks) {
			continue
		}

	ackWait:
		for {
			ev, err := nextEvent(ctx, events, s.cfg.AckTimeout)
			if err != nil {
				return err
			}
			if ev.Kind == blex.EventDisconnected {
				return common.NewSyncError(common.SyncPeerAbort, errors.New("peer disconnected"))
			}
			if ev.Char != blex.ControlCharUUID {
				continue
			}
			switch firstByte(ev.Data) {
			case OpAck:
				acked = true
				break ackWait
			case OpAbort:
				if !acked {
					return common.NewSyncError(common.SyncCryptoMismatch, errors.New("peer rejected pairing"))
				}
				return common.NewSyncError(common.SyncPeerAbort, errors.New("peer aborted transfer"))
			default:
				// unknown opcodes are ignored
			}
		}
	}

	if err := sendControl(OpComplete); err != nil {
		return asSyncError(ctx, err)
	}
	return nil
}

// receiveBundle reassembles one message from the transfer stream,
// acknowledging every window and at end of message. Framing failures
// abort the sync.
func (s *Service) receiveBundle(ctx context.Context, events <-chan blex.Event,
	sendControl func(byte) error) ([]byte, error) {

	started := false
	var ras *Reassembler
	seen := 0

	for {
		// before START the peer may still be preparing its bundle
		timeout := s.cfg.AckTimeout
		if !started {
			timeout = s.cfg.PairingTimeout
		}

		ev, err := nextEvent(ctx, events, timeout)
		if err != nil {
			_ = sendControl(OpAbort)
			return nil, err
		}

		if ev.Kind == blex.EventDisconnected {
			return nil, common.NewSyncError(common.SyncPeerAbort, errors.New("peer disconnected"))
		}

		switch ev.Char {
		case blex.ControlCharUUID:
			switch firstByte(ev.Data) {
			case OpStart:
				started = true
			case OpAbort:
				if !started {
					return nil, common.NewSyncError(common.SyncCryptoMismatch, errors.New("peer rejected pairing"))
				}
				return nil, common.NewSyncError(common.SyncPeerAbort, errors.New("peer aborted transfer"))
			case OpComplete:
				// sender completed; assembly below decides readiness
				if ras != nil && ras.Complete() {
					return ras.Assemble()
				}
				_ = sendControl(OpAbort)
				return nil, common.NewSyncError(common.SyncFramingError, errors.New("complete before all chunks arrived"))
			default:
				// unknown opcodes are ignored
			}

		case blex.TransferCharUUID:
			if !started {
				continue
			}
			c, err := DecodeChunk(ev.Data)
			if err != nil {
				_ = sendControl(OpAbort)
				return nil, err
			}
			if ras == nil {
				if ras, err = NewReassembler(c.Total); err != nil {
					_ = sendControl(OpAbort)
					return nil, err
				}
				s.setSnap(func(sn *Snapshot) { sn.ChunksTotal = int(c.Total) })
			}
			complete, err := ras.Add(c)
			if err != nil {
				_ = sendControl(OpAbort)
				return nil, err
			}
			seen++
			got, _ := ras.Progress()
			s.setSnap(func(sn *Snapshot) { sn.ChunksDone = got })

			if complete || seen%s.cfg.AckWindow == 0 {
				if err := sendControl(OpAck); err != nil {
					return nil, asSyncError(ctx, err)
				}
			}
			// a complete message is returned once the sender's COMPLETE
			// arrives, so the sender still finds the link open for it
		}
	}
}

// ----- bundle build / ingest -----

// buildBundle collects every entry of the active profile, tombstones
// included, and re-encrypts each payload under the session key with a
// fresh nonce.
func (s *Service) buildBundle(ctx context.Context, token string, sessionKey []byte) ([]byte, int, error) {
	key, err := s.sessions.Key(token)
	if err != nil {
		return nil, 0, err
	}
	defer common.WipeByteArray(key)

	pid, err := s.sessions.ActiveProfile(token)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.entries.GetAllSince(ctx, pid, 0)
	if err != nil {
		return nil, 0, err
	}

	envelopes := make([]Envelope, 0, len(rows))
	for i := range rows {
		row := &rows[i]

		id, err := uuid.Parse(row.EntryUUID)
		if err != nil {
			s.logger.Warn(ctx, "skipping entry with invalid uuid", "id", row.ID)
			continue
		}

		var plaintext []byte
		label := row.Label
		if row.IsTombstone() {
			// tombstones travel with zeroed payload fields
			label = ""
		} else {
			plaintext, err = cryptox.Decrypt(key, row.DataBlob, row.Nonce)
			if err != nil {
				s.logger.Warn(ctx, "skipping undecryptable entry", "id", row.ID, "error", err)
				continue
			}
		}

		ciphertext, nonce, err := cryptox.Encrypt(sessionKey, plaintext)
		common.WipeByteArray(plaintext)
		if err != nil {
			return nil, 0, err
		}

		envelopes = append(envelopes, Envelope{
			EntryUUID:   id,
			ProfileID:   uint64(row.ProfileID),
			SyncVersion: uint64(row.SyncVersion),
			UpdatedAt:   row.UpdatedAt,
			Label:       label,
			Tombstone:   row.IsTombstone(),
			Nonce:       nonce,
			Ciphertext:  ciphertext,
		})
	}

	bundle, err := EncodeBundle(envelopes)
	if err != nil {
		return nil, 0, err
	}
	return bundle, len(envelopes), nil
}

// ingestBundle decrypts each envelope under the session key, re-encrypts
// under the vault key and merges. Each envelope commits in its own
// transaction, so an interrupted ingest leaves no half-applied envelope.
func (s *Service) ingestBundle(ctx context.Context, token string, sessionKey []byte, payload []byte) (MergeResult, error) {
	var res MergeResult

	envelopes, err := DecodeBundle(payload)
	if err != nil {
		return res, err
	}

	key, err := s.sessions.Key(token)
	if err != nil {
		return res, err
	}
	defer common.WipeByteArray(key)

	pid, err := s.sessions.ActiveProfile(token)
	if err != nil {
		return res, err
	}

	for i := range envelopes {
		env := &envelopes[i]

		plaintext, err := cryptox.Decrypt(sessionKey, env.Ciphertext, env.Nonce)
		if err != nil {
			return res, common.NewSyncError(common.SyncCryptoMismatch,
				fmt.Errorf("envelope %s failed to decrypt", env.EntryUUID))
		}

		dataBlob, nonce, err := cryptox.Encrypt(key, plaintext)
		common.WipeByteArray(plaintext)
		if err != nil {
			return res, err
		}

		inbound := &models.Entry{
			EntryUUID:   env.EntryUUID.String(),
			Label:       env.Label,
			DataBlob:    dataBlob,
			Nonce:       nonce,
			ProfileID:   pid,
			CreatedAt:   env.UpdatedAt,
			UpdatedAt:   env.UpdatedAt,
			SyncVersion: int64(env.SyncVersion),
		}
		if env.Tombstone {
			deletedAt := env.UpdatedAt
			inbound.DeletedAt = &deletedAt
		}

		var outcome string
		err = dbx.WithTxRetry(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := entries.NewSQLiteRepository(tx)

			local, err := repo.GetByUUID(ctx, inbound.EntryUUID)
			if errors.Is(err, common.ErrNotFound) {
				outcome = "inserted"
				return repo.UpsertByUUID(ctx, inbound)
			}
			if err != nil {
				return err
			}

			if !inboundWins(inbound, local) {
				outcome = "skipped"
				return nil
			}
			// keep the local surrogate's created_at; everything else is
			// the inbound row, written verbatim
			inbound.CreatedAt = local.CreatedAt
			outcome = "updated"
			return repo.UpsertByUUID(ctx, inbound)
		})
		if err != nil {
			return res, asSyncError(ctx, err)
		}

		switch outcome {
		case "inserted":
			res.Inserted++
		case "updated":
			res.Updated++
		default:
			res.Skipped++
		}
	}

	return res, nil
}

// ----- completion bookkeeping -----

// complete records the outcome, zeroizes the session key and publishes
// the terminal state. Bookkeeping runs on a fresh context; the run
// context may already be dead.
func (s *Service) complete(peer blex.Device, peerPub, sessionKey []byte,
	direction string, sent, received int, started time.Time, partial bool, runErr error) {

	defer common.WipeByteArray(sessionKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := models.StatusSuccess
	var errMsg *string
	if runErr != nil {
		status = models.StatusFailed
		if partial {
			status = models.StatusPartial
		}
		msg := runErr.Error()
		errMsg = &msg
		s.logger.Error(ctx, "sync failed", "peer", peer.ID, "direction", direction, "error", runErr)
	} else {
		s.logger.Info(ctx, "sync complete", "peer", peer.ID, "direction", direction,
			"sent", sent, "received", received)
	}

	now := s.nowISO()

	// a completed (or partially completed) pairing is worth remembering
	if len(peerPub) > 0 && status != models.StatusFailed {
		root := append([]byte(nil), sessionKey...)
		if err := s.devices.Upsert(ctx, &models.PairedDevice{
			DeviceID:     peer.ID,
			DeviceName:   peer.Name,
			PublicKey:    peerPub,
			SharedSecret: root,
			PairedAt:     now,
		}); err != nil {
			s.logger.Warn(ctx, "recording paired device failed", "error", err)
		}
		if err := s.devices.UpdateLastSync(ctx, peer.ID, now); err != nil {
			s.logger.Warn(ctx, "stamping last sync failed", "error", err)
		}
	}

	entry := &models.SyncLogEntry{
		DeviceID:        peer.ID,
		Direction:       direction,
		EntriesSent:     int64(sent),
		EntriesReceived: int64(received),
		Status:          status,
		StartedAt:       started.Format(common.TimeLayout),
		ErrorMessage:    errMsg,
	}
	if status != models.StatusFailed {
		completedAt := now
		entry.CompletedAt = &completedAt
	}
	if err := s.syncLog.Append(ctx, entry); err != nil {
		s.logger.Warn(ctx, "appending sync log failed", "error", err)
	}

	s.finish(runErr)
}
