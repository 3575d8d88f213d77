package pgcopy

import (
	"errors"

	"github.com/JonMunkholm/pgcopy/encodings"
)

// ProtocolError reports malformed COPY text data: a row ending in a bare
// backslash, a null marker inside a nonempty field, or similar. The line it
// occurred on yields no row, and the stream is closed.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "malformed copy data: " + e.Reason
}

// IsDataError reports whether err was caused by bad data on the wire (a
// protocol violation or an encoding boundary error) as opposed to a failure
// of the connection itself. Drain uses this split: data errors are deferred,
// connection errors always propagate.
func IsDataError(err error) bool {
	var pe *ProtocolError
	var de *encodings.DecodingError
	return errors.As(err, &pe) || errors.As(err, &de)
}
