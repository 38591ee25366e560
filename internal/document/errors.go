package document

import "fmt"

// DecodeError means the document cannot be opened or its page count cannot
// be determined. Fatal for the processing session.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode document: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// PasswordError means a password is required or the supplied one is wrong.
// Recoverable: the handle survives and Authenticate may be retried.
type PasswordError struct {
	Err error
}

func (e *PasswordError) Error() string { return fmt.Sprintf("document password: %v", e.Err) }
func (e *PasswordError) Unwrap() error { return e.Err }
