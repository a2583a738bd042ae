// Package storage owns the credential and audit records the offline
// validator reads and writes: users, cards, and access log entries, kept
// in an in-memory Store behind a narrow interface so the validator never
// depends on the concrete backing implementation.
package storage

import (
	"time"

	"github.com/henrycontrol/turnkey/internal/protocol"
)

// User is a credential holder. PinHash, when non-empty, is the bcrypt
// hash of the user's keypad PIN — a field the distilled credential model
// does not carry but a complete Henry deployment needs for keypad-capable
// readers.
type User struct {
	ID          int64
	Matricula   string
	Active      bool
	ValidFrom   time.Time
	ValidUntil  time.Time
	AllowCard   bool
	AllowBio    bool
	AllowKeypad bool
	PinHash     string
}

// InValidityWindow reports whether t falls within the user's configured
// validity window.
func (u User) InValidityWindow(t time.Time) bool {
	return !t.Before(u.ValidFrom) && !t.After(u.ValidUntil)
}

// Card is a credential badge bound to a user via Matricula.
type Card struct {
	Number     string
	Matricula  string
	UserID     int64
	Active     bool
	ValidFrom  time.Time
	ValidUntil time.Time
}

// InValidityWindow reports whether t falls within the card's configured
// validity window.
func (c Card) InValidityWindow(t time.Time) bool {
	return !t.Before(c.ValidFrom) && !t.After(c.ValidUntil)
}

// AccessLog is one append-only audit record produced by a validator
// decision.
type AccessLog struct {
	ID             int64
	UserID         *int64
	Matricula      *string
	CardNumber     string
	Direction      protocol.AccessDirection
	ReaderType     protocol.ReaderType
	Granted        bool
	DisplayMessage string
	EventTime      time.Time
	CreatedAt      time.Time
}
