// Package fault holds the error kinds shared by the selector, the config loader
// and the publishers. Kinds are sentinels; callers test them with errors.Is.
package fault

import (
	"fmt"

	"emperror.dev/errors"
)

const (
	ErrFilesystem     = errors.Sentinel("filesystem error")
	ErrNotFound       = errors.Sentinel("nothing found")
	ErrEmptyExtract   = errors.Sentinel("extract has no files")
	ErrConfig         = errors.Sentinel("invalid configuration")
	ErrAuthentication = errors.Sentinel("authentication failed")
	ErrUpload         = errors.Sentinel("media upload failed")
	ErrPostCreation   = errors.Sentinel("post creation failed")
)

// Error attaches a kind to the operation that failed and its cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a stack trace taken at the caller.
func New(kind error, op string, cause error) error {
	return errors.WithStackDepth(&Error{Kind: kind, Op: op, Err: cause}, 1)
}

// Newf is New with a formatted cause and no wrapped error.
func Newf(kind error, op string, format string, args ...interface{}) error {
	return errors.WithStackDepth(&Error{Kind: kind, Op: op, Err: errors.NewPlain(fmt.Sprintf(format, args...))}, 1)
}

// KindOf returns the first known kind found in err, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrFilesystem, ErrNotFound, ErrEmptyExtract, ErrConfig,
		ErrAuthentication, ErrUpload, ErrPostCreation,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
