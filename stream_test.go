package pgcopy

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/JonMunkholm/pgcopy/encodings"
)

// fakeSource yields a fixed set of lines, then io.EOF (or a configured
// connection error). It counts calls so tests can verify the decoder stops
// pulling after end-of-data.
type fakeSource struct {
	lines    [][]byte
	finalErr error // returned after the lines; nil means io.EOF
	calls    int
}

func (f *fakeSource) ReadLine() ([]byte, error) {
	f.calls++
	if len(f.lines) == 0 {
		if f.finalErr != nil {
			return nil, f.finalErr
		}
		return nil, io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

// fakeRegistry counts registrations and deregistrations.
type fakeRegistry struct {
	registered   int
	unregistered int
}

func (f *fakeRegistry) RegisterStream(*Stream)   { f.registered++ }
func (f *fakeRegistry) UnregisterStream(*Stream) { f.unregistered++ }

func lines(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func newTestStream(t *testing.T, src LineSource, enc string) *Stream {
	t.Helper()
	s, err := NewStream(src, nil, enc)
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}
	return s
}

func TestReadRow_SplitsOnTab(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines("a\tb\tc")}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i, w := range want {
		if fields[i].IsNull() {
			t.Errorf("field %d is null, want %q", i, w)
		}
		if got := fields[i].String(); got != w {
			t.Errorf("field %d = %q, want %q", i, got, w)
		}
	}

	if _, err := s.ReadRow(); err != io.EOF {
		t.Fatalf("ReadRow after last row error = %v, want io.EOF", err)
	}
}

func TestReadRow_NullField(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines(`\N` + "\t" + "a")}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if !fields[0].IsNull() {
		t.Error("field 0 not null, want null")
	}
	if fields[0].Bytes() != nil {
		t.Errorf("null field Bytes() = %v, want nil", fields[0].Bytes())
	}
	if fields[1].IsNull() || fields[1].String() != "a" {
		t.Errorf("field 1 = (%q, null=%v), want (\"a\", false)", fields[1].String(), fields[1].IsNull())
	}
}

func TestReadRow_EscapedTabIsNotADelimiter(t *testing.T) {
	// Backslash-t on the wire is a literal tab inside one field.
	s := newTestStream(t, &fakeSource{lines: lines(`a\tb`)}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	if got := fields[0].String(); got != "a\tb" {
		t.Errorf("field = %q, want %q", got, "a\tb")
	}
}

func TestReadRow_ControlEscapes(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines(`\b\f\n\r\t\v\\\x`)}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	want := "\b\f\n\r\t\v\\x"
	if got := fields[0].String(); got != want {
		t.Errorf("field = %q, want %q", got, want)
	}
}

func TestReadRow_EmptyLineIsOneEmptyField(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines("")}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	if fields[0].IsNull() || len(fields[0].Bytes()) != 0 {
		t.Errorf("field = (%q, null=%v), want empty non-null", fields[0].String(), fields[0].IsNull())
	}
}

func TestReadRow_TrailingTabYieldsEmptyLastField(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines("a\t")}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields[1].IsNull() || fields[1].String() != "" {
		t.Errorf("last field = (%q, null=%v), want empty non-null", fields[1].String(), fields[1].IsNull())
	}
}

func TestReadRow_MultibyteCopiedVerbatim(t *testing.T) {
	// Shift JIS: 0x81 0x5c is one glyph whose trailing byte equals the
	// backslash literal, and must not start an escape.
	line := []byte{'a', 0x81, 0x5c, '\t', 'b'}
	s := newTestStream(t, &fakeSource{lines: [][]byte{line}}, "SJIS")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if got, want := fields[0].String(), "a\x81\x5c"; got != want {
		t.Errorf("field 0 = %q, want %q", got, want)
	}
	if got := fields[1].String(); got != "b" {
		t.Errorf("field 1 = %q, want %q", got, "b")
	}
}

func TestReadRow_UTF8Verbatim(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines("中\t値")}, "UTF8")

	fields, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if got := fields[0].String(); got != "中" {
		t.Errorf("field 0 = %q, want %q", got, "中")
	}
	if got := fields[1].String(); got != "値" {
		t.Errorf("field 1 = %q, want %q", got, "値")
	}
}

func TestReadRow_LoneTrailingBackslash(t *testing.T) {
	reg := &fakeRegistry{}
	s, err := NewStream(&fakeSource{lines: lines(`abc\`)}, reg, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	fields, err := s.ReadRow()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("ReadRow error = %v, want ProtocolError", err)
	}
	if fields != nil {
		t.Errorf("got partial row %v, want none", fields)
	}
	if reg.unregistered != 1 {
		t.Errorf("unregistered = %d, want 1 (error closes the stream)", reg.unregistered)
	}
	if _, err := s.ReadRow(); err != io.EOF {
		t.Errorf("ReadRow after error = %v, want io.EOF", err)
	}
}

func TestReadRow_NullMarkerInNonemptyField(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines(`ab\Nc`)}, "UTF8")

	_, err := s.ReadRow()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("ReadRow error = %v, want ProtocolError", err)
	}
}

func TestReadRow_DataAfterNullMarker(t *testing.T) {
	s := newTestStream(t, &fakeSource{lines: lines(`\Nc`)}, "UTF8")

	_, err := s.ReadRow()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("ReadRow error = %v, want ProtocolError", err)
	}
}

func TestReadRow_DecodingErrorFailsRow(t *testing.T) {
	line := []byte{'a', 0xe4, 0xb8} // truncated three-byte sequence
	s := newTestStream(t, &fakeSource{lines: [][]byte{line}}, "UTF8")

	_, err := s.ReadRow()
	var de *encodings.DecodingError
	if !errors.As(err, &de) {
		t.Fatalf("ReadRow error = %v, want DecodingError", err)
	}
	if de.Encoding != "UTF8" {
		t.Errorf("error encoding = %q, want UTF8", de.Encoding)
	}
	if !IsDataError(err) {
		t.Error("IsDataError = false for decoding error, want true")
	}
}

func TestReadRow_EndOfDataIsIdempotent(t *testing.T) {
	src := &fakeSource{lines: lines("a")}
	s := newTestStream(t, src, "UTF8")

	if _, err := s.ReadRow(); err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if _, err := s.ReadRow(); err != io.EOF {
		t.Fatalf("ReadRow at end error = %v, want io.EOF", err)
	}
	callsAtEOF := src.calls
	for i := 0; i < 3; i++ {
		if _, err := s.ReadRow(); err != io.EOF {
			t.Fatalf("ReadRow after end error = %v, want io.EOF", err)
		}
	}
	if src.calls != callsAtEOF {
		t.Errorf("source queried %d times after end-of-data, want 0", src.calls-callsAtEOF)
	}
}

func TestReadRow_ConnectionErrorPropagates(t *testing.T) {
	connErr := fmt.Errorf("connection reset")
	reg := &fakeRegistry{}
	s, err := NewStream(&fakeSource{finalErr: connErr}, reg, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	_, err = s.ReadRow()
	if !errors.Is(err, connErr) {
		t.Fatalf("ReadRow error = %v, want %v untouched", err, connErr)
	}
	if IsDataError(err) {
		t.Error("IsDataError = true for connection error, want false")
	}
	if reg.unregistered != 1 {
		t.Errorf("unregistered = %d, want 1", reg.unregistered)
	}
}

func TestNewStream_UnrecognizedEncoding(t *testing.T) {
	reg := &fakeRegistry{}
	_, err := NewStream(&fakeSource{}, reg, "KLINGON")
	if err == nil {
		t.Fatal("NewStream error = nil, want configuration error")
	}
	if reg.registered != 0 {
		t.Errorf("registered = %d, want 0 on failed construction", reg.registered)
	}
}

func TestNewStream_Registers(t *testing.T) {
	reg := &fakeRegistry{}
	s, err := NewStream(&fakeSource{}, reg, "LATIN1")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}
	if reg.registered != 1 {
		t.Errorf("registered = %d, want 1", reg.registered)
	}
	if s.Encoding() != encodings.Monobyte {
		t.Errorf("Encoding() = %v, want Monobyte", s.Encoding())
	}
}

func TestClose_ExactlyOnce(t *testing.T) {
	reg := &fakeRegistry{}
	s, err := NewStream(&fakeSource{}, reg, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	s.Close()
	s.Close()
	s.Close()
	if reg.unregistered != 1 {
		t.Errorf("unregistered = %d, want exactly 1", reg.unregistered)
	}
	if _, err := s.ReadRow(); err != io.EOF {
		t.Errorf("ReadRow after Close error = %v, want io.EOF", err)
	}
}

func TestDrain_ConsumesRemainingRows(t *testing.T) {
	src := &fakeSource{lines: lines("a\tb", "c\td", "e")}
	reg := &fakeRegistry{}
	s, err := NewStream(src, reg, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	if err := s.Drain(); err != nil {
		t.Fatalf("Drain error = %v", err)
	}
	if len(src.lines) != 0 {
		t.Errorf("%d lines left unconsumed", len(src.lines))
	}
	if reg.unregistered != 1 {
		t.Errorf("unregistered = %d, want 1", reg.unregistered)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}
}

func TestDrain_DefersDataErrors(t *testing.T) {
	src := &fakeSource{lines: lines("ok", `bad\`)}
	s := newTestStream(t, src, "UTF8")

	if err := s.Drain(); err != nil {
		t.Fatalf("Drain error = %v, want nil (data errors are deferred)", err)
	}
	var pe *ProtocolError
	if !errors.As(s.Err(), &pe) {
		t.Errorf("Err() = %v, want deferred ProtocolError", s.Err())
	}
}

func TestDrain_PropagatesConnectionErrors(t *testing.T) {
	connErr := fmt.Errorf("broken pipe")
	src := &fakeSource{lines: lines("ok"), finalErr: connErr}
	reg := &fakeRegistry{}
	s, err := NewStream(src, reg, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	if err := s.Drain(); !errors.Is(err, connErr) {
		t.Fatalf("Drain error = %v, want %v", err, connErr)
	}
	if reg.unregistered != 1 {
		t.Errorf("unregistered = %d, want 1", reg.unregistered)
	}
}

func TestRowBufferReuse(t *testing.T) {
	// The second row overwrites the first row's buffer: field views from
	// row one must have been consumed before the next ReadRow call.
	s := newTestStream(t, &fakeSource{lines: lines("first", "xy")}, "UTF8")

	f1, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	got1 := f1[0].String() // copy while valid

	f2, err := s.ReadRow()
	if err != nil {
		t.Fatalf("ReadRow error = %v", err)
	}
	if got1 != "first" {
		t.Errorf("first row copy = %q, want %q", got1, "first")
	}
	if got := f2[0].String(); got != "xy" {
		t.Errorf("second row = %q, want %q", got, "xy")
	}
}
