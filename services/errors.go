package services

import (
	"errors"

	"hrms-service/store"
)

var (
	ErrNotFound           = store.ErrNotFound
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrNameRequired       = errors.New("name is required")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrAlreadyCheckedOut  = errors.New("already checked out today")
	ErrMustCheckInFirst   = errors.New("must check in before checking out")
)
