package models

import "errors"

// Pairing errors
var (
	ErrNotFound    = errors.New("no couple found for this code") // 404 Not Found
	ErrCoupleFull  = errors.New("couple is already full")        // 409 Conflict
	ErrNotInCouple = errors.New("user is not in a couple")       // 409 Conflict
	ErrNotMember   = errors.New("user is not a member of this couple")
)

// Auth errors
var (
	ErrUnauthenticated = errors.New("no authenticated user") // 401 Unauthorized
	ErrInvalidToken    = errors.New("invalid token")         // 401 Unauthorized
)

// Quiz errors
var (
	ErrQuizNotFound   = errors.New("quiz not found")  // 404 Not Found
	ErrAttemptInvalid = errors.New("invalid attempt") // 400 Bad Request
)

// Messaging errors
var (
	ErrEmptyMessage = errors.New("message text is empty") // 400 Bad Request
)

// Infrastructure errors. These never reach the client verbatim; handlers log
// them in full and respond with a generic retry message.
var (
	ErrDecode = errors.New("malformed remote document")
)
