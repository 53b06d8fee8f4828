package ratchet

import "errors"

var (
	// ErrHandshakeRequired is returned when no established session state can
	// handle a message. The caller must run a fresh handshake with the peer.
	ErrHandshakeRequired = errors.New("ratchet: session not established")

	// ErrDuplicateMessage is returned when a message key for the given chain
	// index was already consumed.
	ErrDuplicateMessage = errors.New("ratchet: message key already consumed")

	// ErrMessageTooOld is returned when a skipped message key was evicted
	// from the cache before the message arrived.
	ErrMessageTooOld = errors.New("ratchet: message older than retained skip window")

	// ErrTooManySkipped is returned when a message would require deriving
	// more skipped keys than MaxSkip allows.
	ErrTooManySkipped = errors.New("ratchet: too many skipped message keys")

	// ErrMacVerification is returned when ciphertext authentication fails.
	// Session state is left untouched.
	ErrMacVerification = errors.New("ratchet: message authentication failed")

	// ErrUnknownRecordVersion is returned when a serialized record carries a
	// version this build does not understand.
	ErrUnknownRecordVersion = errors.New("ratchet: unknown session record version")
)
