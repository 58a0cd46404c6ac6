package keydb

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// ConnectionFailure means a session to the remote store could not be opened or re-opened.
	ConnectionFailure
	// StoreFailure is a transport failure during a point read, write or delete.
	StoreFailure
	// WriteFailure means the atomic command group of a batch did not apply.
	WriteFailure
	// MalformedHeightData means the reserved height key holds a value that is not exactly 4 bytes.
	MalformedHeightData
	// ReservedKeyViolation is returned when an engine mutation targets the reserved height key.
	ReservedKeyViolation
	// BatchConsumed is returned when a batch is submitted for apply more than once.
	BatchConsumed
)

var codeNames = map[ErrorCode]string{
	Unknown:              "unknown",
	ConnectionFailure:    "connection failure",
	StoreFailure:         "store failure",
	WriteFailure:         "write failure",
	MalformedHeightData:  "malformed height data",
	ReservedKeyViolation: "reserved key violation",
	BatchConsumed:        "batch consumed",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", int(c))
}

// keydb custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.UserData == nil {
		return fmt.Errorf("%s: %w", e.Code, e.Err).Error()
	}
	return fmt.Errorf("%s, user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// IsErrorCode reports whether err, or any error it wraps, is a keydb Error carrying code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
