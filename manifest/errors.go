package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("manifest: incompatible version")

	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest: not found")

	// ErrKindMismatch is returned when a manifest describes another artifact kind.
	ErrKindMismatch = errors.New("manifest: kind mismatch")

	// ErrChecksumMismatch is returned when an artifact does not match its recorded CRC.
	ErrChecksumMismatch = errors.New("manifest: checksum mismatch")
)
