package classfile

import (
	"errors"
	"fmt"
)

// ErrClassFormat is matched by every error describing a malformed class image.
var ErrClassFormat = errors.New("class format error")

var (
	ErrBadMagic             = errors.New("invalid magic number")
	ErrTruncated            = errors.New("truncated class image")
	ErrMalformedUTF8        = errors.New("malformed modified utf-8")
	ErrInvalidTag           = errors.New("invalid constant pool tag")
	ErrInvalidIndex         = errors.New("invalid constant pool index")
	ErrUnsupportedNative    = errors.New("native method not supported")
	ErrInvalidDescriptor    = errors.New("invalid descriptor")
	ErrInvalidConstantValue = errors.New("invalid constant value")
	ErrAttributeLength      = errors.New("attribute length mismatch")
	ErrIllegalModifiers     = errors.New("illegal modifiers")
	ErrExtraBytes           = errors.New("extra bytes after class")
)

// FormatError reports where and why a class image could not be decoded.
// Offset is the byte position relative to the start of the image, or -1
// when the failure is not tied to a position.
type FormatError struct {
	Kind   error
	Offset int
	Detail string
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Kind }

func (e *FormatError) Is(target error) bool {
	return target == ErrClassFormat
}

func Errorf(kind error, format string, args ...any) *FormatError {
	return &FormatError{Kind: kind, Offset: -1, Detail: fmt.Sprintf(format, args...)}
}

func InvalidTagError(tag uint8, index int) *FormatError {
	return Errorf(ErrInvalidTag, "tag %d at index %d", tag, index)
}

func InvalidIndexError(index int, want string) *FormatError {
	return Errorf(ErrInvalidIndex, "index %d is not a %s entry", index, want)
}
