// Package dataset loads the numeric tabular data the clusterer works on and
// writes it back out with a cluster column appended.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/banshee-data/clusterview/internal/fsutil"
	"github.com/banshee-data/clusterview/internal/kmeans"
	"gonum.org/v1/gonum/mat"
)

// ClusterColumn is the header of the column appended by WriteCSV.
const ClusterColumn = "cluster"

var (
	// ErrNoRows is returned when a file has a header but no data.
	ErrNoRows = errors.New("dataset: no data rows")

	// ErrUnknownColumn is returned when a selected column is not in the header.
	ErrUnknownColumn = errors.New("dataset: unknown column")

	// ErrLabelCount is returned when an export gets a label slice whose
	// length differs from the row count.
	ErrLabelCount = errors.New("dataset: label count does not match rows")
)

// Table is an immutable numeric table with named columns.
type Table struct {
	header []string
	index  map[string]int
	data   *mat.Dense
	// raw keeps the cell text so exports reproduce the input formatting.
	raw [][]string
}

// Load reads a CSV file with a header row from fsys.
func Load(fsys fsutil.FileSystem, path string) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads CSV text with a header row. Every data cell must be numeric.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrNoRows)
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("dataset: empty column name at position %d", j)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", name)
		}
		index[name] = j
		header[j] = name
	}

	rows := records[1:]
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	values := make([]float64, 0, len(rows)*len(header))
	for i, row := range rows {
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				// row numbers are 1-based data rows, matching a spreadsheet view minus the header
				return nil, fmt.Errorf("dataset: row %d column %q: %w", i+1, header[j], err)
			}
			values = append(values, v)
		}
	}

	return &Table{
		header: header,
		index:  index,
		data:   mat.NewDense(len(rows), len(header), values),
		raw:    rows,
	}, nil
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	return slices.Clone(t.header)
}

// Rows returns the number of data rows.
func (t *Table) Rows() int {
	r, _ := t.data.Dims()
	return r
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// RequireColumns returns ErrUnknownColumn naming the first of names that
// is not a column of t.
func (t *Table) RequireColumns(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return fmt.Errorf("%w: %q (have %s)", ErrUnknownColumn, name, strings.Join(t.header, ", "))
		}
	}
	return nil
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return mat.Col(nil, j, t.data), nil
}

// Points pairs two columns row by row.
func (t *Table) Points(xCol, yCol string) ([]kmeans.Point, error) {
	xs, err := t.Column(xCol)
	if err != nil {
		return nil, err
	}
	ys, err := t.Column(yCol)
	if err != nil {
		return nil, err
	}

	pts := make([]kmeans.Point, len(xs))
	for i := range pts {
		pts[i] = kmeans.Point{X: xs[i], Y: ys[i]}
	}
	return pts, nil
}

// WriteCSV writes the table followed by a cluster column holding labels.
func (t *Table) WriteCSV(w io.Writer, labels []int) error {
	if len(labels) != len(t.raw) {
		return fmt.Errorf("%w: %d labels for %d rows", ErrLabelCount, len(labels), len(t.raw))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append(t.Columns(), ClusterColumn)); err != nil {
		return err
	}

	record := make([]string, len(t.header)+1)
	for i, row := range t.raw {
		copy(record, row)
		record[len(t.header)] = strconv.Itoa(labels[i])
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Export writes the augmented table to path, creating parent directories.
func Export(fsys fsutil.FileSystem, path string, t *Table, labels []int) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}

	if err := t.WriteCSV(f, labels); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	return f.Close()
}
