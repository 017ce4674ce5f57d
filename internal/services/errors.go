package services

import "errors"

var (
	// ErrTooManyRows indicates a bulk submission exceeded the configured row
	// cap. The whole batch is rejected before any upstream call.
	ErrTooManyRows = errors.New("bulk: row limit exceeded")
	// ErrMissingColumns indicates a template file lacks a required header.
	ErrMissingColumns = errors.New("bulk: required template columns missing")
	// ErrInvalidEmail indicates an address failed the shape check.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidRedirectURL indicates a redirect URL failed the scheme/host check.
	ErrInvalidRedirectURL = errors.New("invalid redirect URL")
)
