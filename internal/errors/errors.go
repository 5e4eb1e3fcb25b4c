// Package errors defines the error kinds shared by every layer of groupseal.
//
// Each kind has a sentinel usable with errors.Is. Operations that need to
// carry context wrap their cause in *Error, which still matches the sentinel
// of its kind. Callers branch on KindOf instead of inspecting concrete types.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Other is any failure outside the taxonomy below.
	Other Kind = iota
	// InvalidPrivateKey means imported key material is malformed.
	InvalidPrivateKey
	// Validation means a signature or key-unwrap integrity check failed.
	Validation
	// UnknownRecipient means the local key is not a recipient of an envelope.
	UnknownRecipient
	// KeyMismatch means a local key disagrees with the server record.
	KeyMismatch
	// KeyNotFound means no key is stored under the requested name.
	KeyNotFound
	// StorageUnavailable means durable storage could not be opened or written.
	StorageUnavailable
	// DirectoryUnavailable means the public key directory could not be reached.
	DirectoryUnavailable
)

// Key material errors.
var (
	// ErrInvalidPrivateKey indicates a private key failed metadata validation.
	ErrInvalidPrivateKey = errors.New("invalid private key metadata")

	// ErrKeyMismatch indicates the local private key differs from the registered public key.
	ErrKeyMismatch = errors.New("private key differs from the registered public key")
)

// Envelope errors.
var (
	// ErrValidation indicates an envelope failed its integrity check.
	ErrValidation = errors.New("integrity check failed")

	// ErrUnknownRecipient indicates the envelope holds no wrapped key for us.
	ErrUnknownRecipient = errors.New("unknown recipient")
)

// Storage and transport errors.
var (
	// ErrKeyNotFound indicates the key store has no entry under the given name.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageUnavailable indicates the key store could not be used.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDirectoryUnavailable indicates the directory request failed.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)

var sentinels = map[Kind]error{
	InvalidPrivateKey:    ErrInvalidPrivateKey,
	Validation:           ErrValidation,
	UnknownRecipient:     ErrUnknownRecipient,
	KeyMismatch:          ErrKeyMismatch,
	KeyNotFound:          ErrKeyNotFound,
	StorageUnavailable:   ErrStorageUnavailable,
	DirectoryUnavailable: ErrDirectoryUnavailable,
}

// String returns a short lower-case name for the kind.
func (k Kind) String() string {
	switch k {
	case InvalidPrivateKey:
		return "invalid private key"
	case Validation:
		return "validation"
	case UnknownRecipient:
		return "unknown recipient"
	case KeyMismatch:
		return "key mismatch"
	case KeyNotFound:
		return "key not found"
	case StorageUnavailable:
		return "storage unavailable"
	case DirectoryUnavailable:
		return "directory unavailable"
	default:
		return "other"
	}
}

// Error is a failure of Kind raised by operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil err is replaced by the kind's sentinel.
func E(kind Kind, op string, err error) error {
	if err == nil {
		err = sentinels[kind]
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if s, ok := sentinels[e.Kind]; ok && e.Err == s {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return Other
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return Other
}
