// SPDX-License-Identifier: MPL-2.0

// Package frame implements the binary sub-protocol carried over the host's
// self-addressed addon text channel.
//
// A wire message is optional leading whitespace followed by the standard
// base64 encoding of an inner frame:
//
//	inner := [4-byte LE PostMagic][2-byte LE opcode][payload]
//
// Because PostMagic begins with the bytes 0x48 0x60 0x0F, every encoded frame
// starts with the four characters "SGAP", which read as a little-endian uint32
// are PreMagic. Decode checks PreMagic on the raw text before paying for base64
// decoding, then checks PostMagic on the decoded bytes before reading the
// opcode. Foreign chat traffic is rejected by the first check almost always.
package frame

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

const (
	// PreMagic is the little-endian uint32 formed by the first four characters
	// of the text transport ("SGAP").
	PreMagic uint32 = 0x50414753
	// PostMagic is the little-endian uint32 at the start of the decoded frame.
	PostMagic uint32 = 1007688

	// MaxDecoded is the decode capacity in bytes for one inner frame.
	MaxDecoded = 250
	// HeaderSize is the inner frame header: PostMagic plus the opcode.
	HeaderSize = 6
	// MaxPayload is the largest payload a frame can carry.
	MaxPayload = MaxDecoded - HeaderSize

	preHeaderSize = 4
)

// Frame is one decoded protocol message.
type Frame struct {
	Opcode  uint16
	Payload []byte
}

// Decode parses one addon message into a Frame. It is Unframe followed by
// Parse.
func Decode(raw string) (Frame, error) {
	decoded, err := Unframe(raw)
	if err != nil {
		return Frame{}, err
	}
	return Parse(decoded)
}

// Unframe validates the text-level pre-header and returns the base64-decoded
// bytes, inner header included. Leading spaces and tabs are skipped.
func Unframe(raw string) ([]byte, error) {
	text := strings.TrimLeft(raw, " \t")
	if len(text) <= preHeaderSize {
		return nil, &Error{Kind: KindTooShort, Length: len(text)}
	}

	if pre := binary.LittleEndian.Uint32([]byte(text[:preHeaderSize])); pre != PreMagic {
		return nil, &Error{Kind: KindBadPreHeader, Got: pre, Want: PreMagic}
	}

	return decodeBounded(text)
}

// Parse splits decoded bytes into opcode and payload after checking the
// inner header. The payload aliases decoded.
//
// A header-only frame (exactly HeaderSize bytes) is accepted with an empty
// payload, so zero-size messages round-trip through Encode. Older peers
// require at least one payload byte and drop such frames.
func Parse(decoded []byte) (Frame, error) {
	if len(decoded) < HeaderSize {
		return Frame{}, &Error{Kind: KindTooShortPostDecode, Length: len(decoded)}
	}

	if post := binary.LittleEndian.Uint32(decoded[0:4]); post != PostMagic {
		return Frame{}, &Error{Kind: KindBadPostHeader, Got: post, Want: PostMagic}
	}

	return Frame{
		Opcode:  binary.LittleEndian.Uint16(decoded[4:6]),
		Payload: decoded[HeaderSize:],
	}, nil
}

// Encode renders opcode and payload as addon text accepted by Decode.
func Encode(opcode uint16, payload []byte) (string, error) {
	if len(payload) > MaxPayload {
		return "", &Error{Kind: KindPayloadTooLarge, Length: len(payload) + HeaderSize}
	}
	inner := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(inner[0:4], PostMagic)
	binary.LittleEndian.PutUint16(inner[4:6], opcode)
	copy(inner[HeaderSize:], payload)
	return base64.StdEncoding.EncodeToString(inner), nil
}

// MustEncode is Encode for fixtures and tooling; it panics on oversize payloads.
func MustEncode(opcode uint16, payload []byte) string {
	s, err := Encode(opcode, payload)
	if err != nil {
		panic(err)
	}
	return s
}

// decodeBounded base64-decodes text into a buffer of at most MaxDecoded
// bytes. The exact decoded length is computed from the unpadded input before
// any allocation, so oversize input fails closed instead of overflowing.
func decodeBounded(text string) ([]byte, error) {
	unpadded := strings.TrimRight(text, "=")
	n := base64.RawStdEncoding.DecodedLen(len(unpadded))
	if n > MaxDecoded {
		return nil, &Error{Kind: KindPayloadTooLarge, Length: n}
	}

	var buf [MaxDecoded]byte
	written, err := base64.RawStdEncoding.Decode(buf[:n], []byte(unpadded))
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Cause: err}
	}

	out := make([]byte, written)
	copy(out, buf[:written])
	return out, nil
}
