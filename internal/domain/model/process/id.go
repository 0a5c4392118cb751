package process

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StateID is a value object identifying a persisted process run
type StateID struct {
	value string
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewStateID generates a new time-ordered StateID
// Format: ULID (e.g., 01JB6X8Y2K9FQR4T3VWHGP5M2C)
func NewStateID() StateID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return StateID{value: id.String()}
}

// ParseStateID validates an existing identifier
func ParseStateID(value string) (StateID, error) {
	if value == "" {
		return StateID{}, errors.New("state ID cannot be empty")
	}
	if _, err := ulid.ParseStrict(value); err != nil {
		return StateID{}, errors.New("state ID must be a ULID: " + value)
	}
	return StateID{value: value}, nil
}

// String returns the string representation
func (id StateID) String() string {
	return id.value
}

// IsZero reports whether the ID is unset
func (id StateID) IsZero() bool {
	return id.value == ""
}

// Equals checks if two StateIDs are equal
func (id StateID) Equals(other StateID) bool {
	return id.value == other.value
}
