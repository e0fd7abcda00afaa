package models

// Sync directions as persisted in the sync log.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// Sync outcome statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SyncLogEntry is one row of sync history.
type SyncLogEntry struct {
	ID              int64
	DeviceID        string
	Direction       string
	EntriesSent     int64
	EntriesReceived int64
	Status          string
	StartedAt       string
	CompletedAt     *string
	ErrorMessage    *string
}
