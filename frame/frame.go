// Package frame is the in-memory columnar table the engine imports CSV files
// into. Columns are numeric (float64, NaN for missing) or enum (a level
// domain plus per-row codes, -1 for missing).
package frame

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// ColumnType distinguishes numeric and enum columns.
type ColumnType int

const (
	Numeric ColumnType = iota
	Enum
)

func (t ColumnType) String() string {
	if t == Enum {
		return "enum"
	}
	return "numeric"
}

// Column holds one named column.
type Column struct {
	Name   string
	Type   ColumnType
	Values []float64 // numeric columns
	Codes  []int     // enum columns, indexes into Domain
	Domain []string  // enum columns

	// raw keeps the parsed cell text so a numeric column can be turned into
	// an enum with its original spelling.
	raw []string
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.Type == Enum {
		return len(c.Codes)
	}
	return len(c.Values)
}

// At returns the numeric value of row i; enum columns return the level code
// and NaN when missing.
func (c *Column) At(i int) float64 {
	if c.Type == Enum {
		if c.Codes[i] < 0 {
			return math.NaN()
		}
		return float64(c.Codes[i])
	}
	return c.Values[i]
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	Key     string
	columns []*Column
	index   map[string]int
}

// New builds a frame from columns, assigning a fresh key.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{Key: "frame_" + uuid.NewString(), index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValueError("frame.New", fmt.Sprintf("duplicate column %q", c.Name))
		}
		if len(f.columns) > 0 && c.Len() != f.NRows() {
			return nil, errors.NewDimensionError("frame.New", f.NRows(), c.Len(), 0)
		}
		f.index[c.Name] = len(f.columns)
		f.columns = append(f.columns, c)
	}
	return f, nil
}

// NumericColumn creates a numeric column.
func NumericColumn(name string, values []float64) *Column {
	raw := make([]string, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			raw[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return &Column{Name: name, Type: Numeric, Values: values, raw: raw}
}

// EnumColumn creates an enum column from cell strings; "" is missing. The
// domain is the sorted set of distinct values.
func EnumColumn(name string, cells []string) *Column {
	c := &Column{Name: name, raw: cells}
	c.setDomain(sortedLevels(cells))
	return c
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// NRows returns the number of rows.
func (f *Frame) NRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Has reports whether the frame contains a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueError("frame.Column", fmt.Sprintf("column %q not found", name))
	}
	return f.columns[i], nil
}

// IsEnum reports whether the named column is an enum.
func (f *Frame) IsEnum(name string) bool {
	c, err := f.Column(name)
	return err == nil && c.Type == Enum
}

// Levels returns the domain of an enum column, nil otherwise.
func (f *Frame) Levels(name string) []string {
	c, err := f.Column(name)
	if err != nil || c.Type != Enum {
		return nil
	}
	return append([]string(nil), c.Domain...)
}

// AsFactor converts the named column to an enum in place. Numeric columns
// take their distinct values as levels, ordered numerically; enum columns
// are left unchanged.
func (f *Frame) AsFactor(name string) error {
	c, err := f.Column(name)
	if err != nil {
		return err
	}
	if c.Type == Enum {
		return nil
	}

	seen := make(map[float64]bool)
	var values []float64
	for _, v := range c.Values {
		if !math.IsNaN(v) && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	domain := make([]string, len(values))
	for i, v := range values {
		domain[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	cells := make([]string, len(c.Values))
	for i, v := range c.Values {
		if !math.IsNaN(v) {
			cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	c.raw = cells
	c.setDomain(domain)
	return nil
}

// AsFactorWithDomain converts the named column to an enum whose codes index
// into domain. Values missing from domain are appended to it in order of
// first appearance; the resulting domain is returned.
func (f *Frame) AsFactorWithDomain(name string, domain []string) ([]string, error) {
	if err := f.AsFactor(name); err != nil {
		return nil, err
	}
	c, _ := f.Column(name)

	merged := append([]string(nil), domain...)
	known := make(map[string]bool, len(merged))
	for _, d := range merged {
		known[d] = true
	}
	for _, level := range c.Domain {
		if !known[level] {
			known[level] = true
			merged = append(merged, level)
		}
	}

	cells := c.cells()
	c.raw = cells
	c.setDomain(merged)
	return append([]string(nil), merged...), nil
}

// Matrix returns the named columns as an n×len(cols) matrix. Enum columns
// contribute level codes; missing cells are NaN.
func (f *Frame) Matrix(cols []string) (*mat.Dense, error) {
	if len(cols) == 0 {
		return nil, errors.NewValueError("frame.Matrix", "no columns selected")
	}
	n := f.NRows()
	if n == 0 {
		return nil, errors.NewModelError("frame.Matrix", "empty frame", errors.ErrEmptyData)
	}
	selected := make([]*Column, len(cols))
	for j, name := range cols {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		selected[j] = c
	}

	m := mat.NewDense(n, len(cols), nil)
	for j, c := range selected {
		for i := 0; i < n; i++ {
			m.Set(i, j, c.At(i))
		}
	}
	return m, nil
}

// Response returns the named column as a vector (level codes for enums).
func (f *Frame) Response(name string) (*mat.VecDense, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, errors.NewModelError("frame.Response", "empty frame", errors.ErrEmptyData)
	}
	v := mat.NewVecDense(c.Len(), nil)
	for i := 0; i < c.Len(); i++ {
		v.SetVec(i, c.At(i))
	}
	return v, nil
}

// SizeBytes estimates the in-memory size of the frame.
func (f *Frame) SizeBytes() uint64 {
	var size uint64
	for _, c := range f.columns {
		size += uint64(len(c.Values))*8 + uint64(len(c.Codes))*8
		for _, d := range c.Domain {
			size += uint64(len(d))
		}
		for _, r := range c.raw {
			size += uint64(len(r))
		}
	}
	return size
}

// cells reconstructs the textual cell values of a column.
func (c *Column) cells() []string {
	if c.Type == Enum {
		out := make([]string, len(c.Codes))
		for i, code := range c.Codes {
			if code >= 0 {
				out[i] = c.Domain[code]
			}
		}
		return out
	}
	return c.raw
}

// setDomain recodes the column's cells against domain and marks it enum.
func (c *Column) setDomain(domain []string) {
	lookup := make(map[string]int, len(domain))
	for i, d := range domain {
		lookup[d] = i
	}
	codes := make([]int, len(c.raw))
	for i, cell := range c.raw {
		code, ok := lookup[cell]
		if cell == "" || !ok {
			code = -1
		}
		codes[i] = code
	}
	c.Type = Enum
	c.Domain = domain
	c.Codes = codes
	c.Values = nil
}

func sortedLevels(cells []string) []string {
	seen := make(map[string]bool)
	var levels []string
	for _, cell := range cells {
		if cell != "" && !seen[cell] {
			seen[cell] = true
			levels = append(levels, cell)
		}
	}
	sort.Strings(levels)
	return levels
}

// AlignDomains makes the named column an enum with one shared domain across
// frames. Levels keep the order of the first frame, followed by levels first
// seen in later frames. The shared domain is returned.
func AlignDomains(name string, frames ...*Frame) ([]string, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	if err := frames[0].AsFactor(name); err != nil {
		return nil, err
	}
	domain := frames[0].Levels(name)
	for _, f := range frames[1:] {
		merged, err := f.AsFactorWithDomain(name, domain)
		if err != nil {
			return nil, err
		}
		domain = merged
	}
	// earlier frames may lack levels added by later ones
	for _, f := range frames {
		if len(f.Levels(name)) != len(domain) {
			if _, err := f.AsFactorWithDomain(name, domain); err != nil {
				return nil, err
			}
		}
	}
	return domain, nil
}
