package models

// Entry is a vault row. DataBlob holds AES-256-GCM ciphertext with the
// authentication tag appended; Nonce is stored separately and is fresh
// for every encryption.
type Entry struct {
	// ID is the local surrogate key.
	ID int64

	// EntryUUID is the globally unique sync identity, immutable after
	// creation.
	EntryUUID string

	// Label is the site name shown in listings (not encrypted).
	Label string

	DataBlob []byte
	Nonce    []byte

	ProfileID int64

	// CreatedAt/UpdatedAt are ISO-8601 UTC.
	CreatedAt string
	UpdatedAt string

	// DeletedAt non-nil marks the row as a tombstone. Tombstones keep
	// their uuid, profile and version but the payload may be zeroed.
	DeletedAt *string

	// SyncVersion strictly increases on every mutation, including
	// soft-delete. It is the linear order for last-writer-wins merge.
	SyncVersion int64
}

// IsTombstone reports whether the row is a soft-deleted placeholder.
func (e *Entry) IsTombstone() bool { return e.DeletedAt != nil }

// Payload is the plaintext inside DataBlob: canonical JSON with every
// field nullable.
type Payload struct {
	Username   *string `json:"username"`
	Password   *string `json:"password"`
	TotpSecret *string `json:"totpSecret"`
	Notes      *string `json:"notes"`
}

// EntryView is a decrypted entry as returned to the API consumer.
type EntryView struct {
	ID        int64
	EntryUUID string
	Label     string
	Payload   Payload
}
