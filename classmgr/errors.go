package classmgr

import (
	"errors"
	"fmt"
)

// ErrLinkage is matched by every error raised while resolving a symbolic
// reference. A linkage error never invalidates the type that holds the
// reference.
var ErrLinkage = errors.New("linkage error")

var (
	ErrNoClassDefFound         = errors.New("no class definition found")
	ErrIncompatibleClassChange = errors.New("incompatible class change")
	ErrNoSuchMethod            = errors.New("no such method")
	ErrNoSuchField             = errors.New("no such field")
	ErrClassCircularity        = errors.New("class circularity")
	ErrDuplicateClass          = errors.New("duplicate class definition")
)

// LinkageError describes a failed resolution. Ref names the reference that
// was being resolved; Err, when set, is the underlying cause.
type LinkageError struct {
	Kind error
	Ref  string
	Err  error
}

func (e *LinkageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Ref)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LinkageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func (e *LinkageError) Is(target error) bool {
	return target == ErrLinkage
}

func linkageError(kind error, ref string, cause error) *LinkageError {
	return &LinkageError{Kind: kind, Ref: ref, Err: cause}
}
