// Package pgxsource connects pgcopy to a live PostgreSQL connection.
//
// It issues the COPY ... TO STDOUT command over a *pgconn.PgConn, frames the
// raw protocol bytes into lines, and reports the server's negotiated
// encoding, so that opening a decoding stream is a single call:
//
//	stream, err := pgxsource.FromTable(ctx, conn, registry, "events")
//	for {
//	    fields, err := stream.ReadRow()
//	    ...
//	}
package pgxsource

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/pgcopy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CopyTableSQL composes a COPY command exporting a whole table, with an
// optional column list. The table and column names are quoted as
// identifiers, so arbitrary names (mixed case, spaces) are safe.
func CopyTableSQL(table string, columns ...string) string {
	sql := "COPY " + pgx.Identifier{table}.Sanitize()
	if len(columns) > 0 {
		sql += "("
		for i, c := range columns {
			if i > 0 {
				sql += ", "
			}
			sql += pgx.Identifier{c}.Sanitize()
		}
		sql += ")"
	}
	return sql + " TO STDOUT"
}

// CopyQuerySQL composes a COPY command exporting the result of an arbitrary
// query. The query is wrapped in parentheses as the COPY syntax requires.
func CopyQuerySQL(query string) string {
	return "COPY (" + query + ") TO STDOUT"
}

// ServerEncoding returns the connection's negotiated server encoding name
// (the server_encoding parameter, e.g. "UTF8").
func ServerEncoding(conn *pgconn.PgConn) string {
	return conn.ParameterStatus("server_encoding")
}

// Source adapts pgconn's copy-out support to pgcopy.LineSource. pgconn
// delivers the raw COPY payload through an io.Writer, so the command runs in
// a goroutine feeding a pipe while ReadLine pulls framed lines off the other
// end. The goroutine's result (success or connection error) resolves the
// pipe and surfaces from ReadLine.
type Source struct {
	lr *lineReader
	pr *io.PipeReader
}

// Open starts sql (which must be a COPY ... TO STDOUT command) on conn and
// returns a Source yielding its lines. Command errors, including an invalid
// query, surface from the first ReadLine rather than from Open itself.
func Open(ctx context.Context, conn *pgconn.PgConn, sql string) *Source {
	pr, pw := io.Pipe()
	go func() {
		_, err := conn.CopyTo(ctx, pw, sql)
		// A nil error closes the pipe cleanly, giving the reader io.EOF.
		pw.CloseWithError(err)
	}()
	return &Source{lr: newLineReader(pr), pr: pr}
}

// ReadLine implements pgcopy.LineSource.
func (s *Source) ReadLine() ([]byte, error) {
	return s.lr.ReadLine()
}

// Close abandons the copy operation by closing the read side of the pipe.
// Prefer draining the stream (Stream.Drain) where the session should remain
// usable; Close mid-copy leaves the connection to clean up via its context.
func (s *Source) Close() error {
	return s.pr.Close()
}

// FromTable opens a decoding stream over a whole-table export, bound to the
// connection's negotiated encoding. reg may be nil.
func FromTable(ctx context.Context, conn *pgconn.PgConn, reg pgcopy.Registry, table string, columns ...string) (*pgcopy.Stream, error) {
	return open(ctx, conn, reg, CopyTableSQL(table, columns...))
}

// FromQuery opens a decoding stream over an arbitrary query's result, bound
// to the connection's negotiated encoding. reg may be nil.
func FromQuery(ctx context.Context, conn *pgconn.PgConn, reg pgcopy.Registry, query string) (*pgcopy.Stream, error) {
	return open(ctx, conn, reg, CopyQuerySQL(query))
}

func open(ctx context.Context, conn *pgconn.PgConn, reg pgcopy.Registry, sql string) (*pgcopy.Stream, error) {
	enc := ServerEncoding(conn)
	if enc == "" {
		return nil, fmt.Errorf("pgxsource: connection reports no server_encoding")
	}
	src := Open(ctx, conn, sql)
	stream, err := pgcopy.NewStream(src, reg, enc)
	if err != nil {
		src.Close()
		return nil, err
	}
	return stream, nil
}

// lineReader frames a raw copy-out byte stream into lines. COPY text mode
// terminates every row, including the last, with a single newline; a final
// unterminated line is still surfaced in case the payload was truncated, so
// the decoder sees the bytes and can fail loudly on them.
type lineReader struct {
	br *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReader(r)}
}

// ReadLine returns the next line with its newline stripped, (nil, io.EOF) at
// the end of the stream, or the underlying connection error.
func (l *lineReader) ReadLine() ([]byte, error) {
	line, err := l.br.ReadBytes('\n')
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return line[:len(line)-1], nil
	}
	if err == io.EOF && len(line) > 0 {
		return line, nil
	}
	return nil, err
}
