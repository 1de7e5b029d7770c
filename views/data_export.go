package views

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"drive-logger/models"
)

// ErrHeaderMismatch is returned when an existing dataset file was written
// with a different column layout.
var ErrHeaderMismatch = errors.New("dataset header mismatch")

// CSVWriter is a buffered, append-only CSV writer for one dataset file.
//
// The file may be appended to across process runs: a truncated tail left by
// an interrupted run is repaired on open, and the header is written lazily
// with the first row only if the file is empty.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	csv    *csv.Writer
	header []string

	needHeader bool
	rows       uint64
	err        error
}

// OpenCSVWriter opens (or creates) path for appending.
func OpenCSVWriter(path string, bufSizeBytes int, header []string) (*CSVWriter, error) {
	if _, err := RepairTrailingRow(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && strings.Join(existing, ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("%w: %s has %d columns, want %d", ErrHeaderMismatch, path, len(existing), len(header))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv open %s: %w", path, err)
	}

	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}
	bw := bufio.NewWriterSize(f, bufSizeBytes)

	return &CSVWriter{
		path:       path,
		file:       f,
		buf:        bw,
		csv:        csv.NewWriter(bw),
		header:     header,
		needHeader: existing == nil,
	}, nil
}

// readHeader returns the first line of path split on commas, or nil when the
// file is missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv read header %s: %w", path, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv read header %s: %w", path, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, nil
	}
	return strings.Split(line, ","), nil
}

// WriteRow appends a single CSV row, preceded by the header on the first
// row of an empty file. Errors are sticky and surface on Flush/Close.
func (w *CSVWriter) WriteRow(row []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.needHeader {
		w.setErr(w.csv.Write(w.header))
		w.needHeader = false
	}
	w.setErr(w.csv.Write(row))
	w.rows++
}

// WriteRecord appends one model row.
func (w *CSVWriter) WriteRecord(r models.CSVRowWriter) {
	w.WriteRow(r.CSVRow())
}

// Flush pushes the buffered data to the OS.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	w.setErr(w.csv.Error())
	w.setErr(w.buf.Flush())
	return w.err
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	err := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path returns the dataset file path.
func (w *CSVWriter) Path() string { return w.path }

func (w *CSVWriter) setErr(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}
