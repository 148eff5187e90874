// Package decode locates the encoded body payload of a bank notification
// message and turns it back into the HTML bytes the bank sent.
//
// Two input shapes are supported. A structured Part tree is preferred whenever
// the mail source hands one over; the text pattern is the fallback for
// messages that only exist as a pre-stringified rendering of the provider's
// message object, and is tied to that provider's rendering format.
package decode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedPayload is returned when a payload was found but is not valid
// URL-safe base64. It is fatal for the message it came from.
var ErrMalformedPayload = errors.New("malformed payload")

// payloadRe matches a key named data followed by a single-quoted value. The
// match is non-greedy and stops at the first closing quote.
var payloadRe = regexp.MustCompile(`'data': '(.*?)'`)

// ExtractPayload returns the quoted value of the first data key in raw.
// The first occurrence is assumed to be the body; an envelope carrying more
// than one data key silently selects the first one.
func ExtractPayload(raw string) (string, bool) {
	m := payloadRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Decode extracts and decodes the body payload of a textual message
// rendering. The boolean is false when raw carries no payload, which is not an
// error. An empty quoted value counts as no payload.
func Decode(raw string) ([]byte, bool, error) {
	payload, ok := ExtractPayload(raw)
	if !ok || payload == "" {
		return nil, false, nil
	}
	b, err := DecodePayload(payload)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// DecodePayload decodes URL-safe base64 text. Trailing padding is optional,
// and characters of the standard alphabet are read as their URL-safe
// counterparts.
func DecodePayload(payload string) ([]byte, error) {
	s := strings.TrimRight(payload, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return b, nil
}
