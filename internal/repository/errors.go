// Package repository owns the catalog's in-memory collections and the rules
// that guard them.  The sentinel errors below let handlers map each failure
// to a response without inspecting messages.
package repository

import "errors"

var (
	// ErrBookNotFound is returned when no book carries the requested id.
	ErrBookNotFound = errors.New("book not found")

	// ErrAlreadyLoaned rejects a loan of a book that is already out.
	ErrAlreadyLoaned = errors.New("book is already loaned out")

	// ErrNotLoaned rejects the return of a book that is not out.
	ErrNotLoaned = errors.New("the book is not currently loaned out")

	// ErrInvalidBook is returned for a payload that cannot be applied to a
	// book, e.g. an update without an id or with a mistyped loan field.
	ErrInvalidBook = errors.New("invalid book payload")

	// ErrDuplicateUser is returned when a username or email is taken.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrInvalidUser is returned when a registration lacks a field.
	ErrInvalidUser = errors.New("username, email and password are required")

	// ErrPasswordTooLong rejects a password bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password.
	ErrInvalidCredentials = errors.New("username or password incorrect")

	// ErrPersistence wraps a failed snapshot write.  The operation that hit
	// it had no effect on the in-memory collection.
	ErrPersistence = errors.New("could not save to database")
)
