package accounts

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the identifier.
	ErrUserNotFound = errors.New("accounts: user not found")
	// ErrUsernameTaken is returned when the username already exists.
	ErrUsernameTaken = errors.New("accounts: username already exists")
	// ErrInvalidCredentials is returned on a bad username/password pair.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrNotApproved is returned when an unapproved account signs in.
	ErrNotApproved = errors.New("accounts: account not approved")
	// ErrValidation is returned when a required field is missing or mismatched.
	ErrValidation = errors.New("accounts: invalid input")
)
