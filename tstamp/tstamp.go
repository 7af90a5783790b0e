// Package tstamp converts between absolute instants and the fixed-width,
// lexicographically sortable text form isto persists timestamps in.
package tstamp

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Layout is the fixed-width textual timestamp form: ten date characters,
// a separator, HH:MM:SS, a fractional-second separator, and a six-digit
// microsecond fraction. Lexicographic order on strings in this layout
// matches temporal order, which is the property path layout and the
// tier index's ORDER BY clauses rely on.
const Layout = "2006-01-02 15:04:05.000000"

// Width is the length in bytes of any string produced by Encode.
const Width = len(Layout)

// Encode renders t, rounded to the nearest microsecond and normalized to
// UTC, in Layout.
func Encode(t time.Time) string {
	return t.UTC().Round(time.Microsecond).Format(Layout)
}

// Decode parses a string produced by Encode (or EncodeFilename) back into
// an instant. It accepts both the colon form and the filename-safe form
// produced by EncodeFilename.
func Decode(s string) (time.Time, error) {
	restored := restoreColons(s)
	t, err := time.Parse(Layout, restored)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing timestamp %q", s)
	}
	return t, nil
}

// Round rounds t to the precision Encode/Decode preserve, so that a
// DataItem's in-memory timestamp equals the one that will eventually be
// read back from storage.
func Round(t time.Time) (time.Time, error) {
	return Decode(Encode(t))
}

// EncodeFilename is Encode with ':' replaced by '_', producing a string
// that is legal as a filename component on every common filesystem.
// message-recorder in the original sources derives ids from timestamps
// this way; message-player reverses it with restoreColons before parsing.
func EncodeFilename(t time.Time) string {
	return strings.ReplaceAll(Encode(t), ":", "_")
}

func restoreColons(s string) string {
	// Colons only ever appear at the two fixed positions between HH:MM
	// and MM:SS; substituting blindly for every '_' would corrupt an id
	// containing underscores for unrelated reasons, so only the known
	// timestamp-shaped positions are touched.
	if len(s) != Width {
		return s
	}
	b := []byte(s)
	for _, i := range [...]int{13, 16} {
		if b[i] == '_' {
			b[i] = ':'
		}
	}
	return string(b)
}
