// Package app is the composition root and core API surface consumed by
// UI shells. Every operation except CheckRegistration, RegisterUser and
// UnlockVault requires a live session token.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vibevault/vibevault/internal/auth"
	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/config"
	"github.com/vibevault/vibevault/internal/logging"
	"github.com/vibevault/vibevault/internal/models"
	"github.com/vibevault/vibevault/internal/storage"
	"github.com/vibevault/vibevault/internal/syncx"
	"github.com/vibevault/vibevault/internal/totp"
	"github.com/vibevault/vibevault/internal/vault"
)

// sweepInterval is how often the inactivity sweeper runs.
const sweepInterval = time.Minute

// syncHistoryLimit caps the history listing.
const syncHistoryLimit = 50

// App owns the services and the repositories they share.
type App struct {
	cfg    *config.Config
	repos  *storage.Repositories
	logger logging.Logger

	authService  *auth.Service
	vaultService *vault.Service
	syncService  *syncx.Service

	stopSweeper context.CancelFunc
}

// New opens the store, runs migrations and wires every service. The
// transport factories may be nil on platforms without a BLE binding;
// sync operations then fail cleanly.
func New(ctx context.Context, cfg *config.Config,
	newPeripheral syncx.PeripheralFactory, newCentral syncx.CentralFactory) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	repos, err := storage.InitDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	sessions := auth.NewSessionManager(cfg.IdleTimeout)
	authService := auth.NewService(repos.Users, repos.Entries, sessions, logger)
	vaultService := vault.NewService(repos.Entries, sessions, logger)
	syncService := syncx.NewService(cfg, repos.DB, repos.Entries, repos.Devices,
		repos.SyncLog, sessions, logger, newPeripheral, newCentral)

	sweepCtx, stop := context.WithCancel(context.Background())
	sessions.StartSweeper(sweepCtx, sweepInterval)

	return &App{
		cfg:          cfg,
		repos:        repos,
		logger:       logger,
		authService:  authService,
		vaultService: vaultService,
		syncService:  syncService,
		stopSweeper:  stop,
	}, nil
}

// Close stops background work and closes the store.
func (a *App) Close() error {
	a.stopSweeper()
	return a.repos.DB.Close()
}

// IdleTimeout reports the configured auto-lock timeout.
func (a *App) IdleTimeout() time.Duration {
	return a.cfg.IdleTimeout
}

// ----- registration / session -----

func (a *App) CheckRegistration(ctx context.Context) (bool, error) {
	return a.authService.IsRegistered(ctx)
}

func (a *App) RegisterUser(ctx context.Context, username string, password []byte) error {
	return a.authService.Register(ctx, username, password)
}

func (a *App) UnlockVault(ctx context.Context, username string, password []byte) (string, error) {
	return a.authService.Unlock(ctx, username, password)
}

func (a *App) LockVault(token string) {
	a.authService.Lock(token)
}

func (a *App) TouchActivity(token string) error {
	return a.authService.TouchActivity(token)
}

// ----- entries -----

func (a *App) SaveEntry(ctx context.Context, token, label string, payload models.Payload, profileID *int64) (string, error) {
	return a.vaultService.Save(ctx, token, label, payload, profileID)
}

func (a *App) UpdateEntry(ctx context.Context, token string, id int64, label string, payload models.Payload) error {
	return a.vaultService.Update(ctx, token, id, label, payload)
}

func (a *App) DeleteEntry(ctx context.Context, token string, id int64) error {
	return a.vaultService.SoftDelete(ctx, token, id)
}

func (a *App) GetAllEntries(ctx context.Context, token string) ([]models.EntryView, error) {
	return a.vaultService.List(ctx, token)
}

// ----- totp -----

// GetTotpToken generates the current code for a secret the UI obtained
// from a decrypted entry.
func (a *App) GetTotpToken(token, secret string) (*totp.Token, error) {
	if err := a.authService.TouchActivity(token); err != nil {
		return nil, err
	}
	return totp.Generate(secret, time.Now())
}

// ----- profiles -----

func (a *App) CreateProfile(ctx context.Context, token, name string) (int64, error) {
	if err := a.authService.TouchActivity(token); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, common.NewValidationError("name", "must not be empty")
	}
	createdAt := time.Now().UTC().Format(common.TimeLayout)
	return a.repos.Profiles.Create(ctx, name, createdAt)
}

func (a *App) GetAllProfiles(ctx context.Context, token string) ([]models.Profile, error) {
	if err := a.authService.TouchActivity(token); err != nil {
		return nil, err
	}
	return a.repos.Profiles.GetAll(ctx)
}

func (a *App) RenameProfile(ctx context.Context, token string, id int64, name string) error {
	if err := a.authService.TouchActivity(token); err != nil {
		return err
	}
	if name == "" {
		return common.NewValidationError("name", "must not be empty")
	}
	return a.repos.Profiles.Rename(ctx, id, name)
}

func (a *App) DeleteProfile(ctx context.Context, token string, id int64) error {
	if err := a.authService.TouchActivity(token); err != nil {
		return err
	}
	return a.repos.Profiles.Delete(ctx, id)
}

func (a *App) GetActiveProfile(token string) (int64, error) {
	return a.authService.Sessions().ActiveProfile(token)
}

func (a *App) SetActiveProfile(ctx context.Context, token string, id int64) error {
	if _, err := a.repos.Profiles.GetByID(ctx, id); err != nil {
		return err
	}
	return a.authService.Sessions().SetActiveProfile(token, id)
}

// ----- sync -----

func (a *App) StartPushSync(token string) error {
	return a.syncService.StartPush(token)
}

func (a *App) StartPullSync(token string) error {
	return a.syncService.StartPull(token)
}

func (a *App) StartScanSync(token string) error {
	return a.syncService.StartScan(token)
}

func (a *App) CancelSync(token string) error {
	return a.syncService.Cancel(token)
}

func (a *App) SyncState(token string) (syncx.Snapshot, error) {
	return a.syncService.State(token)
}

func (a *App) SubmitPairingCode(token, code string) error {
	return a.syncService.SubmitPairingCode(token, code)
}

// ----- devices / history -----

func (a *App) GetPairedDevices(ctx context.Context, token string) ([]models.PairedDevice, error) {
	if err := a.authService.TouchActivity(token); err != nil {
		return nil, err
	}
	return a.repos.Devices.GetAll(ctx)
}

func (a *App) ForgetDevice(ctx context.Context, token, deviceID string) error {
	if err := a.authService.TouchActivity(token); err != nil {
		return err
	}
	return a.repos.Devices.Delete(ctx, deviceID)
}

func (a *App) GetSyncHistory(ctx context.Context, token string) ([]models.SyncLogEntry, error) {
	if err := a.authService.TouchActivity(token); err != nil {
		return nil, err
	}
	return a.repos.SyncLog.GetRecent(ctx, syncHistoryLimit)
}
