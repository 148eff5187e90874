// Package output appends extracted rows to the CSV dataset.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/hyperifyio/bankmail/internal/extract"
)

// ErrHeaderMismatch is returned when an existing dataset was written with a
// different set of columns than the configured labels.
var ErrHeaderMismatch = errors.New("existing csv header does not match configured fields")

// CSVWriter appends one row per message. It writes the header only when it
// creates the file (or finds it empty).
type CSVWriter struct {
	f       *os.File
	w       *csv.Writer
	labels  extract.LabelSet
	align   bool
	created bool
	rows    int
}

// OpenCSV opens path for appending. With align set, each value goes to the
// column of its label; otherwise values keep document order and short rows
// are padded with empty cells.
func OpenCSV(path string, labels extract.LabelSet, align bool) (*CSVWriter, error) {
	if labels.Len() == 0 {
		return nil, errors.New("no fields configured")
	}
	header := labels.Labels()
	created := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		created = false
		existing, err := readHeader(path)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(existing, header) {
			return nil, fmt.Errorf("%w: file has %q, configured %q", ErrHeaderMismatch, existing, header)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	cw := &CSVWriter{f: f, w: csv.NewWriter(f), labels: labels, align: align, created: created}
	if created {
		if err := cw.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		cw.w.Flush()
		if err := cw.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return cw, nil
}

// Created reports whether this writer started a new dataset.
func (w *CSVWriter) Created() bool { return w.created }

// Rows returns the number of rows written through this writer.
func (w *CSVWriter) Rows() int { return w.rows }

// WriteFields appends one row and flushes it to disk.
func (w *CSVWriter) WriteFields(fields []extract.Field) error {
	if err := w.w.Write(w.row(fields)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.rows++
	return nil
}

func (w *CSVWriter) row(fields []extract.Field) []string {
	row := make([]string, w.labels.Len())
	if w.align {
		for _, f := range fields {
			if i, ok := w.labels.Index(f.Label); ok {
				row[i] = f.Value
			}
		}
		return row
	}
	copy(row, extract.Values(fields))
	return row
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error {
	if w == nil || w.f == nil {
		return nil
	}
	w.w.Flush()
	werr := w.w.Error()
	cerr := w.f.Close()
	w.f = nil
	if werr != nil {
		return werr
	}
	return cerr
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return header, nil
}

// ReadCSV loads a dataset written by CSVWriter.
func ReadCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		if header == nil {
			header = rec
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}
