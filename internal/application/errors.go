// Package application contains use-case orchestration services: credential
// issuance, the check-in state machine, bulk import, the admin registry
// operations and admin sessions.
package application

import "errors"

// Check-in and issuance sentinels. Check-in services return them wrapped
// alongside a populated outcome so callers can branch with errors.Is while
// still showing the operator the outcome message.
var (
	// ErrMalformedCredential indicates no token could be decoded from a scan payload.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrUnknownCredential indicates a well-formed token that no attendee holds.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrAlreadyUsed indicates the credential was admitted before.
	ErrAlreadyUsed = errors.New("credential already used")

	// ErrAmbiguousOrNotFound indicates a manual search matched zero or several attendees.
	ErrAmbiguousOrNotFound = errors.New("no single attendee matches")

	// ErrGeneration indicates the secure random source failed. The issuer
	// refuses every later issuance in the process once this happens.
	ErrGeneration = errors.New("credential generation failed")

	// ErrInvalidAttendee indicates admin input failed validation.
	ErrInvalidAttendee = errors.New("invalid attendee")

	// ErrInvalidPhoto indicates an uploaded photo is empty, too large or not
	// a supported image format.
	ErrInvalidPhoto = errors.New("invalid photo")

	// ErrPhotoNotFound indicates the attendee has no stored photo.
	ErrPhotoNotFound = errors.New("photo not found")

	// ErrInvalidPassword indicates a failed admin login.
	ErrInvalidPassword = errors.New("invalid admin password")

	// ErrUnauthorized indicates a missing, unknown or expired admin session.
	ErrUnauthorized = errors.New("unauthorized")
)
