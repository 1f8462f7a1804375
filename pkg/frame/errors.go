// SPDX-License-Identifier: MPL-2.0

package frame

import (
	"errors"
	"fmt"
)

const (
	// KindTooShort means the trimmed text cannot hold the pre-decode header.
	KindTooShort Kind = iota + 1
	// KindBadPreHeader means the text is not protocol traffic.
	KindBadPreHeader
	// KindPayloadTooLarge means the frame exceeds the decode capacity.
	KindPayloadTooLarge
	// KindMalformed means the text carried the pre-decode header but is not valid base64.
	KindMalformed
	// KindTooShortPostDecode means the decoded bytes cannot hold the inner header.
	KindTooShortPostDecode
	// KindBadPostHeader means the decoded bytes do not start with PostMagic.
	KindBadPostHeader
)

var (
	// ErrTooShort is returned when the message is too small to carry a header.
	ErrTooShort = errors.New("frame too short")
	// ErrBadPreHeader is returned when the pre-decode magic does not match.
	ErrBadPreHeader = errors.New("incorrect header before decode")
	// ErrPayloadTooLarge is returned when a frame would exceed MaxDecoded bytes.
	ErrPayloadTooLarge = errors.New("frame exceeds decode capacity")
	// ErrMalformed is returned when the frame body is not valid base64.
	ErrMalformed = errors.New("malformed frame encoding")
	// ErrTooShortPostDecode is returned when the decoded frame is shorter than HeaderSize.
	ErrTooShortPostDecode = errors.New("decoded frame too short")
	// ErrBadPostHeader is returned when the post-decode magic does not match.
	ErrBadPostHeader = errors.New("incorrect header after decode")
)

type (
	// Kind classifies frame errors.
	Kind int

	// Error describes a decode or encode failure. It wraps the sentinel for
	// its Kind so callers can use errors.Is.
	Error struct {
		Kind Kind
		// Length is the relevant byte count (raw, decoded or required).
		Length int
		// Got and Want carry magic values for header mismatches.
		Got  uint32
		Want uint32
		// Cause is the underlying base64 error for KindMalformed.
		Cause error
	}
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindTooShort:
		return "too_short"
	case KindBadPreHeader:
		return "bad_pre_header"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindMalformed:
		return "malformed"
	case KindTooShortPostDecode:
		return "too_short_post_decode"
	case KindBadPostHeader:
		return "bad_post_header"
	default:
		return "unknown"
	}
}

// Sentinel returns the sentinel error for k, or nil for unknown kinds.
func (k Kind) Sentinel() error {
	switch k {
	case KindTooShort:
		return ErrTooShort
	case KindBadPreHeader:
		return ErrBadPreHeader
	case KindPayloadTooLarge:
		return ErrPayloadTooLarge
	case KindMalformed:
		return ErrMalformed
	case KindTooShortPostDecode:
		return ErrTooShortPostDecode
	case KindBadPostHeader:
		return ErrBadPostHeader
	default:
		return nil
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindBadPreHeader, KindBadPostHeader:
		return fmt.Sprintf("%v: %#x (expected %#x)", e.Kind.Sentinel(), e.Got, e.Want)
	case KindPayloadTooLarge:
		return fmt.Sprintf("%v: %d bytes (max %d)", ErrPayloadTooLarge, e.Length, MaxDecoded)
	case KindMalformed:
		return fmt.Sprintf("%v: %v", ErrMalformed, e.Cause)
	case KindTooShort, KindTooShortPostDecode:
		return fmt.Sprintf("%v: %d bytes", e.Kind.Sentinel(), e.Length)
	default:
		return "frame error"
	}
}

// Unwrap returns the sentinel for errors.Is compatibility.
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return errors.Join(e.Kind.Sentinel(), e.Cause)
	}
	return e.Kind.Sentinel()
}

// IsForeign reports whether err means the text was never protocol traffic.
// Foreign traffic is ignored silently by the dispatcher.
func IsForeign(err error) bool {
	return errors.Is(err, ErrBadPreHeader)
}

// KindOf extracts the Kind of a frame error, or zero when err is not one.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
