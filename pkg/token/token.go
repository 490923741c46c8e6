// Package token implements the scannable pairing token shown on an elderly
// user's screen and scanned by a caregiver's device.
//
// The payload is a versioned string ("carelink:v1:<userID>") so a scanner can
// tell a carelink code apart from arbitrary QR content. Possession of a token
// grants nothing by itself: pairing always requires the elderly user's
// explicit approval after the scan.
package token

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const payloadPrefix = "carelink:v1:"

// MaxUserIDLength mirrors the directory's identifier limit.
const MaxUserIDLength = 255

// ErrMalformedToken is returned when a scanned payload is not a carelink token.
// The scanning user retries the scan; no request is created.
var ErrMalformedToken = errors.New("malformed pairing token")

// Encode wraps a user identifier into a scannable token payload.
func Encode(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrMalformedToken)
	}
	if len(userID) > MaxUserIDLength {
		return "", fmt.Errorf("%w: user id too long (%d chars)", ErrMalformedToken, len(userID))
	}
	return payloadPrefix + userID, nil
}

// Decode extracts the user identifier from a scanned payload.
func Decode(payload string) (string, error) {
	id, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformedToken, payloadPrefix)
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty user id", ErrMalformedToken)
	}
	if len(id) > MaxUserIDLength {
		return "", fmt.Errorf("%w: user id too long (%d chars)", ErrMalformedToken, len(id))
	}
	return id, nil
}

// PNG renders a token payload as a QR code image. size is the edge length in
// pixels; values <= 0 fall back to 256.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}
