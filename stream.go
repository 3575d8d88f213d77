// Package pgcopy decodes the text format of a PostgreSQL COPY ... TO STDOUT
// stream, one row at a time.
//
// The caller supplies a LineSource that yields raw protocol lines (one line
// per row, newline already stripped) from a session that is in copy-out
// mode. Stream walks each line with an encoding-aware glyph scanner, so a
// tab or backslash byte buried inside a multi-byte character of a legacy
// encoding is never mistaken for a field separator or escape. Fields come
// back as borrowed views into a buffer that is reused for every row: the
// previous row's fields are invalidated by each ReadRow call.
//
// Issuing the COPY command, the connection itself, and transaction scope are
// all outside this package; pgxsource provides a LineSource over a live
// pgx connection.
package pgcopy

import (
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/pgcopy/encodings"
	"github.com/google/uuid"
)

// LineSource yields raw copy-out lines. ReadLine returns one line with its
// terminator stripped, or (nil, io.EOF) once the server has sent the end of
// the data. Any other error is a connection-level failure and is passed
// through to the caller uninterpreted.
type LineSource interface {
	ReadLine() ([]byte, error)
}

// Registry tracks the streams open on a session. A Stream registers itself
// on construction and unregisters exactly once when closed, mirroring how a
// session allows only one copy operation in flight at a time.
type Registry interface {
	RegisterStream(*Stream)
	UnregisterStream(*Stream)
}

// span records one decoded field inside the row buffer.
type span struct {
	start, end int
	null       bool
}

// Stream decodes rows from a single copy-out operation.
//
// A Stream is not safe for concurrent use. At most one row is ever in
// flight: ReadRow overwrites the row buffer, so the fields returned by the
// previous call must be consumed (or copied) first.
type Stream struct {
	id   uuid.UUID
	src  LineSource
	reg  Registry
	scan encodings.ScannerFunc
	enc  encodings.Group

	finished bool
	err      error // deferred data error recorded by Drain

	// row is reused across rows and only ever grows; fields and spans are
	// rebuilt on every parse.
	row    []byte
	spans  []span
	fields []Field
}

// NewStream builds a decoder for a copy operation that the caller has
// already started (the session must be in copy-out mode before the first
// ReadRow). encodingName is the server's negotiated encoding, resolved once
// and fixed for the stream's lifetime; an unrecognized name fails here, not
// during parsing. reg may be nil when no session tracking is wanted.
func NewStream(src LineSource, reg Registry, encodingName string) (*Stream, error) {
	group, err := encodings.GroupFor(encodingName)
	if err != nil {
		return nil, fmt.Errorf("pgcopy: open stream: %w", err)
	}
	scan, err := encodings.GlyphScanner(group)
	if err != nil {
		return nil, fmt.Errorf("pgcopy: open stream: %w", err)
	}
	s := &Stream{
		id:   uuid.New(),
		src:  src,
		reg:  reg,
		scan: scan,
		enc:  group,
	}
	if reg != nil {
		reg.RegisterStream(s)
	}
	return s, nil
}

// ID identifies the stream, for registries and log correlation.
func (s *Stream) ID() uuid.UUID {
	return s.id
}

// Encoding returns the encoding group the stream scans with.
func (s *Stream) Encoding() encodings.Group {
	return s.enc
}

// ReadRow returns the next row's fields, or io.EOF once the server has sent
// all data. After end-of-data (or any error) the stream stays finished and
// ReadRow keeps returning io.EOF without touching the line source.
//
// The returned slice and the Fields in it are only valid until the next
// ReadRow or Close. On a malformed line no partial row is returned: the
// error surfaces and the stream closes.
func (s *Stream) ReadRow() ([]Field, error) {
	if s.finished {
		return nil, io.EOF
	}

	line, err := s.src.ReadLine()
	if err != nil {
		s.Close()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	fields, err := s.parseLine(line)
	if err != nil {
		s.Close()
		return nil, err
	}
	return fields, nil
}

// parseLine unescapes one raw line into the row buffer and splits it into
// fields. Unescaping never grows the data (every escape decodes to one
// byte), so the buffer is sized once up front and is never reallocated while
// spans into it are being recorded.
func (s *Stream) parseLine(line []byte) ([]Field, error) {
	if cap(s.row) < len(line)+1 {
		s.row = make([]byte, 0, len(line)+1)
	} else {
		s.row = s.row[:0]
	}
	s.spans = s.spans[:0]

	fieldStart := 0
	null := false

	closeField := func() error {
		if null {
			if len(s.row) != fieldStart {
				return &ProtocolError{Reason: "data follows null marker in field"}
			}
			s.spans = append(s.spans, span{null: true})
			return nil
		}
		s.spans = append(s.spans, span{start: fieldStart, end: len(s.row)})
		return nil
	}

	for read := 0; read < len(line); {
		end, err := s.scan(line, read)
		if err != nil {
			return nil, err
		}
		if end != read+1 {
			// Multi-byte glyph. Never protocol-significant; copy verbatim.
			s.row = append(s.row, line[read:end]...)
			read = end
			continue
		}

		c := line[read]
		read++
		switch c {
		case '\t':
			if err := closeField(); err != nil {
				return nil, err
			}
			null = false
			fieldStart = len(s.row)

		case '\\':
			if read >= len(line) {
				return nil, &ProtocolError{Reason: "row ends in backslash"}
			}
			c = line[read]
			read++
			switch c {
			case 'N':
				if len(s.row) != fieldStart {
					return nil, &ProtocolError{Reason: "null marker in nonempty field"}
				}
				null = true
			case 'b':
				s.row = append(s.row, '\b')
			case 'f':
				s.row = append(s.row, '\f')
			case 'n':
				s.row = append(s.row, '\n')
			case 'r':
				s.row = append(s.row, '\r')
			case 't':
				s.row = append(s.row, '\t')
			case 'v':
				s.row = append(s.row, '\v')
			default:
				// Self-escaped character.
				s.row = append(s.row, c)
			}

		default:
			s.row = append(s.row, c)
		}
	}

	// The last field has no trailing delimiter.
	if err := closeField(); err != nil {
		return nil, err
	}

	s.fields = s.fields[:0]
	for _, sp := range s.spans {
		if sp.null {
			s.fields = append(s.fields, Field{null: true})
		} else {
			s.fields = append(s.fields, Field{data: s.row[sp.start:sp.end]})
		}
	}
	return s.fields, nil
}

// Close marks the stream finished and unregisters it from its registry.
// It is idempotent: only the first call deregisters, and later ReadRow
// calls return io.EOF.
func (s *Stream) Close() {
	if s.finished {
		return
	}
	s.finished = true
	if s.reg != nil {
		s.reg.UnregisterStream(s)
	}
}

// Drain consumes and discards the stream's remaining rows, for abandoning a
// copy early while leaving the session usable. Malformed data encountered
// while flushing is recorded (see Err) rather than returned, since the
// caller no longer wants the rows; a connection-level failure is returned
// as-is. The stream is closed in every case.
func (s *Stream) Drain() error {
	defer s.Close()
	for {
		_, err := s.ReadRow()
		switch {
		case err == nil:
			// Discard and keep flushing.
		case errors.Is(err, io.EOF):
			return nil
		case IsDataError(err):
			if s.err == nil {
				s.err = err
			}
			return nil
		default:
			return err
		}
	}
}

// Err returns the data error Drain deferred, if any.
func (s *Stream) Err() error {
	return s.err
}
