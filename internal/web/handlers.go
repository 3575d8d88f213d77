package web

// handlers.go implements the export endpoints. Exports stream: rows are
// written to the response as they come off the copy stream, so memory use is
// flat no matter how large the table is. A consequence is that an error
// after the first row can only truncate the response; real failures before
// any output become proper error responses.

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/pgcopy/internal/export"
	"github.com/JonMunkholm/pgcopy/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleHealth reports liveness plus how many copy streams are open.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_streams": s.service.ActiveStreams(),
	})
}

// handleListTables returns the exportable tables.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.service.ListTables(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if tables == nil {
		tables = []export.TableInfo{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// handleExportTable streams a whole table as CSV (default) or JSON.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if table == "" {
		s.respondError(w, r, errors.New("missing table name"), http.StatusBadRequest)
		return
	}

	s.streamExport(w, r, table, func(ctx context.Context, fn export.RowFunc) (int64, error) {
		return s.service.ExportTable(ctx, table, fn)
	})
}

// exportQueryRequest is the body of POST /api/export/query.
type exportQueryRequest struct {
	Query  string `json:"query"`
	Format string `json:"format,omitempty"`
}

// handleExportQuery streams the result of an arbitrary query.
func (s *Server) handleExportQuery(w http.ResponseWriter, r *http.Request) {
	var req exportQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		s.respondError(w, r, errors.New("missing query"), http.StatusBadRequest)
		return
	}
	if req.Format != "" {
		q := r.URL.Query()
		q.Set("format", req.Format)
		r.URL.RawQuery = q.Encode()
	}

	s.streamExport(w, r, "query", func(ctx context.Context, fn export.RowFunc) (int64, error) {
		return s.service.ExportQuery(ctx, req.Query, fn)
	})
}

type runExport func(ctx context.Context, fn export.RowFunc) (int64, error)

// streamExport drives one export through the chosen format writer.
func (s *Server) streamExport(w http.ResponseWriter, r *http.Request, name string, run runExport) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var rw rowWriter
	switch format {
	case "csv":
		rw = newCSVRowWriter(w, name)
	case "json":
		rw = newJSONRowWriter(w)
	default:
		s.respondError(w, r, fmt.Errorf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Export.Timeout)
	defer cancel()

	logger := logging.FromContext(r.Context())
	start := time.Now()

	count, err := run(ctx, rw.writeRow)
	truncated := errors.Is(err, export.ErrRowLimit)
	if err != nil && !truncated {
		if rw.started() {
			// Headers and data are already out; all we can do is cut the
			// response short and log why.
			logger.Error("export aborted mid-stream", "export", name, "rows", count, "error", err)
			return
		}
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := rw.finish(); err != nil {
		logger.Error("export response write failed", "export", name, "error", err)
		return
	}
	logger.Info("export complete",
		"export", name,
		"format", format,
		"rows", count,
		"truncated", truncated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// rowWriter writes rows in one output format. writeRow is an export.RowFunc;
// started reports whether any bytes have been committed to the response.
type rowWriter interface {
	writeRow(row [][]byte) error
	started() bool
	finish() error
}

type csvRowWriter struct {
	w     http.ResponseWriter
	cw    *csv.Writer
	name  string
	begun bool
	rec   []string
}

func newCSVRowWriter(w http.ResponseWriter, name string) *csvRowWriter {
	return &csvRowWriter{w: w, cw: csv.NewWriter(w), name: name}
}

func (c *csvRowWriter) writeRow(row [][]byte) error {
	if !c.begun {
		c.begun = true
		c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s_%s.csv", c.name, time.Now().Format("20060102_150405")))
	}
	c.rec = c.rec[:0]
	for _, v := range row {
		// CSV has no null; nulls become empty cells.
		c.rec = append(c.rec, string(v))
	}
	return c.cw.Write(c.rec)
}

func (c *csvRowWriter) started() bool { return c.begun }

func (c *csvRowWriter) finish() error {
	c.cw.Flush()
	return c.cw.Error()
}

type jsonRowWriter struct {
	w     http.ResponseWriter
	begun bool
}

func newJSONRowWriter(w http.ResponseWriter) *jsonRowWriter {
	return &jsonRowWriter{w: w}
}

func (j *jsonRowWriter) writeRow(row [][]byte) error {
	if !j.begun {
		j.begun = true
		j.w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if _, err := j.w.Write([]byte("[")); err != nil {
			return err
		}
	} else {
		if _, err := j.w.Write([]byte(",")); err != nil {
			return err
		}
	}

	vals := make([]any, len(row))
	for i, v := range row {
		if v == nil {
			continue // stays JSON null
		}
		vals[i] = string(v)
	}
	out, err := json.Marshal(vals)
	if err != nil {
		return err
	}
	_, err = j.w.Write(out)
	return err
}

func (j *jsonRowWriter) started() bool { return j.begun }

func (j *jsonRowWriter) finish() error {
	if !j.begun {
		j.w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, err := j.w.Write([]byte("[]"))
		return err
	}
	_, err := j.w.Write([]byte("]"))
	return err
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
