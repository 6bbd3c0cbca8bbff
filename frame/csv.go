package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// missing cell spellings, compared after trimming
var naStrings = map[string]bool{"": true, "NA": true, "NaN": true, "nan": true, "null": true}

// table is the raw text of one or more CSV files sharing a header.
type table struct {
	header []string
	rows   [][]string
}

// ReadCSV parses a CSV stream with a header row into a frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	t, err := readTable(r, "<reader>")
	if err != nil {
		return nil, err
	}
	return t.frame()
}

// ImportFiles reads every path and concatenates the rows. All files must
// share the same header.
func ImportFiles(paths ...string) (*Frame, error) {
	if len(paths) == 0 {
		return nil, errors.NewValueError("frame.ImportFiles", "no files given")
	}

	var all *table
	for _, path := range paths {
		t, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = t
			continue
		}
		if !slices.Equal(all.header, t.header) {
			return nil, errors.NewValueError("frame.ImportFiles",
				fmt.Sprintf("%s: header %v does not match %v", path, t.header, all.header))
		}
		all.rows = append(all.rows, t.rows...)
	}
	return all.frame()
}

func readFile(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return readTable(f, path)
}

func readTable(r io.Reader, name string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValueError("frame.ReadCSV", name+": empty file")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read header", name)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read rows", name)
	}
	return &table{header: header, rows: rows}, nil
}

// frame infers each column's type: numeric when every non-missing cell
// parses as a float, enum otherwise.
func (t *table) frame() (*Frame, error) {
	columns := make([]*Column, len(t.header))
	for j, name := range t.header {
		cells := make([]string, len(t.rows))
		numeric := true
		for i, row := range t.rows {
			cell := strings.TrimSpace(row[j])
			if naStrings[cell] {
				cell = ""
			}
			cells[i] = cell
			if cell != "" && numeric {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					numeric = false
				}
			}
		}

		if !numeric {
			columns[j] = EnumColumn(name, cells)
			continue
		}
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == "" {
				values[i] = math.NaN()
				continue
			}
			values[i], _ = strconv.ParseFloat(cell, 64)
		}
		columns[j] = &Column{Name: name, Type: Numeric, Values: values, raw: cells}
	}
	return New(columns...)
}
