// Package artifact implements the line-delimited on-disk table files (C1):
// one header line followed by zero or more row lines, keyed by UUID.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/cell"
)

// Details describes a finished artifact. An invalid Details (Valid=false)
// is the sentinel a Generator sink returns: it produced no file.
type Details struct {
	UUID        uuid.UUID
	RowsWritten int
	Valid       bool
}

// InvalidDetails is returned by sinks that consume an artifact without
// producing one.
func InvalidDetails() Details {
	return Details{Valid: false}
}

// Store roots every artifact under a single directory, named "{uuid}.jsonl".
type Store struct {
	root string
}

// NewStore opens (creating if necessary) the artifact root directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.root, id.String()+".jsonl")
}

// CreateOutput assigns a fresh UUID and opens a buffered writer for it.
func (s *Store) CreateOutput() (*Writer, error) {
	id := uuid.New()
	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", id, err)
	}
	return &Writer{id: id, f: f, bw: bufio.NewWriter(f)}, nil
}

// OpenInput opens a one-shot, non-seekable reader over an existing artifact.
func (s *Store) OpenInput(id uuid.UUID) (*Reader, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", id, err)
	}
	return &Reader{id: id, f: f, sc: bufio.NewScanner(f)}, nil
}

// Size returns the on-disk size of an artifact, used by operators to order
// inputs smallest-first.
func (s *Store) Size(id uuid.UUID) (int64, error) {
	info, err := os.Stat(s.path(id))
	if err != nil {
		return 0, fmt.Errorf("artifact: stat %s: %w", id, err)
	}
	return info.Size(), nil
}

// Remove deletes the on-disk file for an artifact. A missing file is an
// error (the caller is expected to only remove artifacts it knows exist).
func (s *Store) Remove(id uuid.UUID) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("artifact: remove %s: %w", id, err)
	}
	return nil
}

// Writer streams a header followed by rows to a fresh artifact. A single
// writer owns a UUID; writers are append-only.
type Writer struct {
	id   uuid.UUID
	f    *os.File
	bw   *bufio.Writer
	rows int
}

func (w *Writer) UUID() uuid.UUID { return w.id }

// WriteHeader encodes the column header as the artifact's first line.
func (w *Writer) WriteHeader(h cell.DataHeader) error {
	return w.writeLine(h)
}

// WriteRow encodes one row. Rows that are entirely Blank are suppressed:
// not written, not counted, per spec.
func (w *Writer) WriteRow(row []cell.Cell) error {
	if cell.IsEmpty(row) {
		return nil
	}
	if err := w.writeLine(row); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: encode line: %w", err)
	}
	if _, err := w.bw.Write(data); err != nil {
		return fmt.Errorf("artifact: write line: %w", err)
	}
	return w.bw.WriteByte('\n')
}

// Details returns the finished artifact's metadata. Call after the last
// WriteRow and before Close if the row count is needed early; Close must
// still be called to flush and release the file handle.
func (w *Writer) Details() Details {
	return Details{UUID: w.id, RowsWritten: w.rows, Valid: true}
}

// Close flushes buffered output and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("artifact: flush %s: %w", w.id, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", w.id, err)
	}
	return nil
}

// Reader is a one-shot, forward-only reader over an artifact: Header must
// be called before any ReadRow call.
type Reader struct {
	id         uuid.UUID
	f          *os.File
	sc         *bufio.Scanner
	header     cell.DataHeader
	headerRead bool
}

// Header reads and decodes the artifact's first line.
func (r *Reader) Header() (cell.DataHeader, error) {
	if r.headerRead {
		return r.header, nil
	}
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return nil, fmt.Errorf("artifact: read header %s: %w", r.id, err)
		}
		return nil, fmt.Errorf("artifact: %s has no header line", r.id)
	}
	var h cell.DataHeader
	if err := json.Unmarshal(r.sc.Bytes(), &h); err != nil {
		return nil, fmt.Errorf("artifact: decode header %s: %w", r.id, err)
	}
	r.header = h
	r.headerRead = true
	return h, nil
}

// ReadRow returns the next non-empty physical line, decoded into a row.
// It returns io.EOF once the artifact is exhausted.
func (r *Reader) ReadRow() ([]cell.Cell, error) {
	for {
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return nil, fmt.Errorf("artifact: read row %s: %w", r.id, err)
			}
			return nil, io.EOF
		}
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var row []cell.Cell
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("artifact: decode row %s: %w", r.id, err)
		}
		return row, nil
	}
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadAll drains the reader into memory, returning header and all rows.
// Used by operators that must fully materialise an input (the join base,
// FilterSort).
func ReadAll(r *Reader) (cell.DataHeader, [][]cell.Cell, error) {
	header, err := r.Header()
	if err != nil {
		return nil, nil, err
	}
	var rows [][]cell.Cell
	for {
		row, err := r.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
