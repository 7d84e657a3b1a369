/*
Copyright © 2026 the zdataset authors.
This file is part of zdataset.

zdataset is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

zdataset is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with zdataset.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package zerr defines the typed error kinds raised across zdataset, so
// callers can discriminate failures with errors.As instead of matching
// strings.
package zerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the categorized error conditions in the zdataset
// error design (see spec §7).
type Kind int

const (
	_ Kind = iota
	InvalidSchema
	InconsistentDimensions
	UnknownDimension
	UnknownCoordinate
	UnsupportedDtype
	UnsupportedCompressor
	InvalidSlice
	InvalidRange
	RepeatedSelLabel
	RepeatedSelValue
	RepeatedCoordinate
	MissingCoordinate
	DtypeMismatch
	NotStructured
	UnknownField
	LegacyVersion
	NoChanges
	InconsistentDomain
	TypeMismatch
	ReadFailed
	BackendError
	DriverMissing
)

var names = map[Kind]string{
	InvalidSchema:          "InvalidSchema",
	InconsistentDimensions: "InconsistentDimensions",
	UnknownDimension:       "UnknownDimension",
	UnknownCoordinate:      "UnknownCoordinate",
	UnsupportedDtype:       "UnsupportedDtype",
	UnsupportedCompressor:  "UnsupportedCompressor",
	InvalidSlice:           "InvalidSlice",
	InvalidRange:           "InvalidRange",
	RepeatedSelLabel:       "RepeatedSelLabel",
	RepeatedSelValue:       "RepeatedSelValue",
	RepeatedCoordinate:     "RepeatedCoordinate",
	MissingCoordinate:      "MissingCoordinate",
	DtypeMismatch:          "DtypeMismatch",
	NotStructured:          "NotStructured",
	UnknownField:           "UnknownField",
	LegacyVersion:          "LegacyVersion",
	NoChanges:              "NoChanges",
	InconsistentDomain:     "InconsistentDomain",
	TypeMismatch:           "TypeMismatch",
	ReadFailed:             "ReadFailed",
	BackendError:           "BackendError",
	DriverMissing:          "DriverMissing",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is a categorized zdataset error. It wraps an optional underlying
// cause so errors.Unwrap keeps working through the backend boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zdataset: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("zdataset: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, zerr.E(SomeKind, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// missingDriverPatterns are substrings that indicate a backend driver
// simply wasn't compiled/registered in, rather than a genuine I/O failure.
var missingDriverPatterns = []string{
	"unknown url scheme",
	"no such host",
	"driver not registered",
	"blob (code=NotFound)",
	"unrecognized scheme",
}

// WrapBackend wraps a raw backend/kvstore error as a BackendError, adding
// a DriverMissing hint when the message looks like an unregistered GCS or
// S3 driver rather than a real I/O failure.
func WrapBackend(cause error, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	msg := strings.ToLower(cause.Error())
	for _, p := range missingDriverPatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			e := Wrap(DriverMissing, cause, format, args...)
			e.Message += " (hint: is the gcs/s3 driver registered and credentials configured?)"
			return e
		}
	}
	return Wrap(BackendError, cause, format, args...)
}

// Kindof reports the Kind of err if it is (or wraps) a *Error.
func Kindof(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
