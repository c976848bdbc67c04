// Package fetcher streams tabular source files.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// utf8BOM is stripped from the first header cell.
const utf8BOM = "\ufeff"

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	HasHeader bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh  chan<- []string // optional: receives the header row
}

// StreamCSV reads a CSV stream and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(bufio.NewReader(r))
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if first {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// Record is a data row addressed by header name.
type Record struct {
	// Line is the 1-based data row number, not counting the header.
	Line   int
	index  map[string]int
	fields []string
}

// NewRecord builds a record from a header row and its fields.
func NewRecord(line int, index map[string]int, fields []string) Record {
	return Record{Line: line, index: index, fields: fields}
}

// Get returns the value in column col, or "" when the column is absent from the
// header or the row is short.
func (r Record) Get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Has reports whether col appears in the header.
func (r Record) Has(col string) bool {
	_, ok := r.index[col]
	return ok
}

// HeaderIndex maps column names to positions. Later duplicates do not override
// the first occurrence.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// StreamRecords streams header-keyed records from r. The first row is the header.
// Both channels are closed when processing completes.
func StreamRecords(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	headerCh := make(chan []string, 1)
	opts.HasHeader = true
	opts.HeaderCh = headerCh
	rowCh, rowErrCh := StreamCSV(ctx, r, opts)

	go func() {
		defer close(recCh)
		defer close(errCh)

		var index map[string]int
		line := 0
		for row := range rowCh {
			if index == nil {
				index = HeaderIndex(<-headerCh)
			}
			line++
			select {
			case recCh <- NewRecord(line, index, row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				// Unblock the reader goroutine.
				for range rowCh {
				}
				return
			}
		}
		if err := <-rowErrCh; err != nil {
			errCh <- err
		}
	}()

	return recCh, errCh
}

// ErrSourceMissing marks a source file that does not exist.
var ErrSourceMissing = errors.New("source file not found")

// OpenFile opens a local source file. A missing file is reported as
// ErrSourceMissing so callers can treat it as non-fatal.
func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(ErrSourceMissing, "fetcher: %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
