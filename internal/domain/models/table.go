package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRaggedColumn    = errors.New("column length does not match date axis")
	ErrDuplicateColumn = errors.New("column already exists")
	ErrUnknownColumn   = errors.New("unknown column")
)

// ColumnKind distinguishes numeric columns from categorical ones.
type ColumnKind int

const (
	NumericColumn ColumnKind = iota
	LabelColumn
)

// Column is one named column of a Table. Exactly one of Values or Labels
// is populated, depending on Kind.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []float64
	Labels []string
}

// Table is a set of named columns sharing one ordered date axis.
// Every column holds exactly one value per date.
type Table struct {
	Dates   []time.Time
	columns []*Column
	index   map[string]int
}

// NewTable creates an empty table over the given date axis.
func NewTable(dates []time.Time) *Table {
	return &Table{
		Dates: dates,
		index: make(map[string]int),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Dates) }

// AddNumeric appends a numeric column.
func (t *Table) AddNumeric(name string, values []float64) error {
	if len(values) != len(t.Dates) {
		return fmt.Errorf("%s: %w (%d != %d)", name, ErrRaggedColumn, len(values), len(t.Dates))
	}
	return t.add(&Column{Name: name, Kind: NumericColumn, Values: values})
}

// AddLabels appends a categorical column.
func (t *Table) AddLabels(name string, labels []string) error {
	if len(labels) != len(t.Dates) {
		return fmt.Errorf("%s: %w (%d != %d)", name, ErrRaggedColumn, len(labels), len(t.Dates))
	}
	return t.add(&Column{Name: name, Kind: LabelColumn, Labels: labels})
}

func (t *Table) add(c *Column) error {
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("%s: %w", c.Name, ErrDuplicateColumn)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Numeric returns the values of a numeric column.
func (t *Table) Numeric(name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok || c.Kind != NumericColumn {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownColumn)
	}
	return c.Values, nil
}

// Labels returns the values of a categorical column.
func (t *Table) Labels(name string) ([]string, error) {
	c, ok := t.Column(name)
	if !ok || c.Kind != LabelColumn {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownColumn)
	}
	return c.Labels, nil
}

// Names returns column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in insertion order.
func (t *Table) Columns() []*Column { return t.columns }

// Select returns a new table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := NewTable(t.Dates)
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%s: %w", n, ErrUnknownColumn)
		}
		if err := out.add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// After returns the rows dated strictly after ts.
func (t *Table) After(ts time.Time) *Table {
	start := len(t.Dates)
	for i, d := range t.Dates {
		if d.After(ts) {
			start = i
			break
		}
	}
	return t.slice(start)
}

// Since returns the rows dated at or after ts.
func (t *Table) Since(ts time.Time) *Table {
	start := len(t.Dates)
	for i, d := range t.Dates {
		if !d.Before(ts) {
			start = i
			break
		}
	}
	return t.slice(start)
}

func (t *Table) slice(start int) *Table {
	out := NewTable(t.Dates[start:])
	for _, c := range t.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == NumericColumn {
			nc.Values = c.Values[start:]
		} else {
			nc.Labels = c.Labels[start:]
		}
		out.index[nc.Name] = len(out.columns)
		out.columns = append(out.columns, nc)
	}
	return out
}
