// Package models defines the persisted data models of the vault core.
package models

// User is the singleton account on this device. The master password is
// never stored; PasswordHash is an Argon2id PHC string over AuthSalt,
// and EncryptionSalt independently feeds the data-key derivation.
type User struct {
	Username       string
	PasswordHash   string
	AuthSalt       []byte
	EncryptionSalt []byte
}
