// Package tkerr defines the sentinel error kinds shared across tilekiln's
// packages, per the error taxonomy: callers distinguish failure modes with
// errors.Is rather than string matching.
package tkerr

import "errors"

var (
	ErrIO                    = errors.New("io error")
	ErrMalformedHeader       = errors.New("malformed header")
	ErrMalformedVarint       = errors.New("malformed varint")
	ErrCorruptDirectory      = errors.New("corrupt directory")
	ErrInvalidCoord          = errors.New("invalid coord")
	ErrCodecError            = errors.New("codec error")
	ErrCodecUnavailable      = errors.New("codec unavailable")
	ErrConfigError           = errors.New("config error")
	ErrTraversalIncompatible = errors.New("traversal incompatible")
	ErrRootOverflow          = errors.New("root overflow")
)
