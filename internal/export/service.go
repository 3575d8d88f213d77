// Package export is the application service behind the export API. It owns
// the connection pool, opens copy-out streams through pgxsource, acts as the
// session registry for open streams, and hands rows to a caller-supplied
// callback one at a time so no result set is ever materialized.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/pgcopy"
	"github.com/JonMunkholm/pgcopy/internal/config"
	"github.com/JonMunkholm/pgcopy/pgxsource"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowFunc receives one decoded row per call. A nil element is SQL NULL.
// Values are transcoded to UTF-8 when the server encoding is a supported
// legacy encoding. The slice and its contents are reused between calls;
// copy anything that must outlive the call. Returning an error aborts the
// export.
type RowFunc func(row [][]byte) error

// ErrRowLimit is returned by exports that stop early because the configured
// row limit was reached. The remaining rows are drained so the connection
// stays usable.
var ErrRowLimit = errors.New("export: row limit reached")

// TableInfo describes one exportable table.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Service coordinates exports over a shared connection pool.
type Service struct {
	pool    *pgxpool.Pool
	maxRows int64

	mu     sync.Mutex
	active map[uuid.UUID]*pgcopy.Stream
}

// NewService creates a Service. cfg.Export.MaxRows of zero means unlimited.
func NewService(pool *pgxpool.Pool, cfg *config.Config) *Service {
	return &Service{
		pool:    pool,
		maxRows: cfg.Export.MaxRows,
		active:  make(map[uuid.UUID]*pgcopy.Stream),
	}
}

// RegisterStream implements pgcopy.Registry.
func (s *Service) RegisterStream(st *pgcopy.Stream) {
	s.mu.Lock()
	s.active[st.ID()] = st
	s.mu.Unlock()
	slog.Debug("copy stream opened", "stream_id", st.ID(), "encoding", st.Encoding().String())
}

// UnregisterStream implements pgcopy.Registry.
func (s *Service) UnregisterStream(st *pgcopy.Stream) {
	s.mu.Lock()
	delete(s.active, st.ID())
	s.mu.Unlock()
	slog.Debug("copy stream closed", "stream_id", st.ID())
}

// ActiveStreams reports how many copy streams are currently open.
func (s *Service) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ListTables returns the user tables visible in the database, for the
// export API's table listing.
func (s *Service) ListTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT schemaname, tablename
		   FROM pg_catalog.pg_tables
		  WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		  ORDER BY schemaname, tablename`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ExportTable streams every row of table through fn and returns the number
// of rows delivered.
func (s *Service) ExportTable(ctx context.Context, table string, fn RowFunc) (int64, error) {
	return s.export(ctx, table, func(ctx context.Context, conn *pgxpool.Conn) (*pgcopy.Stream, error) {
		return pgxsource.FromTable(ctx, conn.Conn().PgConn(), s, table)
	}, fn)
}

// ExportQuery streams the result of an arbitrary read-only query through fn
// and returns the number of rows delivered.
func (s *Service) ExportQuery(ctx context.Context, query string, fn RowFunc) (int64, error) {
	return s.export(ctx, "query", func(ctx context.Context, conn *pgxpool.Conn) (*pgcopy.Stream, error) {
		return pgxsource.FromQuery(ctx, conn.Conn().PgConn(), s, query)
	}, fn)
}

type openFunc func(context.Context, *pgxpool.Conn) (*pgcopy.Stream, error)

func (s *Service) export(ctx context.Context, what string, open openFunc, fn RowFunc) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("export %s: acquire connection: %w", what, err)
	}
	defer conn.Release()

	dec := decoderFor(pgxsource.ServerEncoding(conn.Conn().PgConn()))

	stream, err := open(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", what, err)
	}
	defer stream.Close()

	var count int64
	row := make([][]byte, 0, 16)
	for {
		fields, err := stream.ReadRow()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("export %s: %w", what, err)
		}

		row = row[:0]
		for _, f := range fields {
			if f.IsNull() {
				row = append(row, nil)
				continue
			}
			b := f.Bytes()
			if dec != nil {
				if out, derr := dec.Bytes(b); derr == nil {
					b = out
				}
			}
			row = append(row, b)
		}

		if err := fn(row); err != nil {
			s.abandon(stream, what)
			return count, err
		}
		count++

		if s.maxRows > 0 && count >= s.maxRows {
			s.abandon(stream, what)
			return count, ErrRowLimit
		}
	}
}

// abandon flushes a stream the caller no longer wants, so the connection
// leaves copy-out mode before going back to the pool. Data errors found
// while flushing are logged, not returned: the rows were unwanted.
func (s *Service) abandon(stream *pgcopy.Stream, what string) {
	if err := stream.Drain(); err != nil {
		slog.Warn("draining abandoned export failed", "export", what, "error", err)
		return
	}
	if err := stream.Err(); err != nil {
		slog.Warn("abandoned export had malformed trailing rows", "export", what, "error", err)
	}
}
