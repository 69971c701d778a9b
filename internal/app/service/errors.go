package service

import "errors"

var (
	// ErrInvalidURL is returned when the submitted URL cannot be shortened.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidCode is returned when a custom code breaks the code format.
	ErrInvalidCode = errors.New("invalid short code")
	// ErrCodeReserved is returned for reserved or degenerate custom codes.
	ErrCodeReserved = errors.New("short code is reserved")
	// ErrCodeTaken is returned when a custom code is already in use.
	ErrCodeTaken = errors.New("short code already taken")
	// ErrNotFound is returned for unknown or inactive codes.
	ErrNotFound = errors.New("short link not found")
	// ErrExpired is returned for links past their expiry.
	ErrExpired = errors.New("short link expired")
	// ErrForbidden is returned when the caller does not own the link.
	ErrForbidden = errors.New("not the owner of this link")
)
