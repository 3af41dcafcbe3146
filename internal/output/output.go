// Package output is the relational model the binder produces: named tables
// of rows matching fixed column schemas, plus the binary streams embedded in
// the package database.
package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/schema"
)

// Type is the kind of package an output represents.
type Type string

const (
	TypeProduct Type = "product"
	TypeModule  Type = "module"
	TypePatch   Type = "patch"
)

// Row is one tuple of a table. Values are string, int or nil.
type Row struct {
	Source string
	Values []any
}

// String returns the value of a column as a string; nil becomes "".
func (r *Row) String(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	switch v := r.Values[i].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value of a numeric column.
func (r *Row) Int(i int) (int, bool) {
	if i < 0 || i >= len(r.Values) {
		return 0, false
	}
	switch v := r.Values[i].(type) {
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Equal reports whether two rows hold the same values.
func (r *Row) Equal(o *Row) bool {
	if len(r.Values) != len(o.Values) {
		return false
	}
	for i := range r.Values {
		if r.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// Table is an ordered collection of rows.
type Table struct {
	Definition *schema.TableDefinition
	Rows       []*Row
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.Definition.Name
}

// NewRow appends an empty row and returns it.
func (t *Table) NewRow(source string) *Row {
	row := &Row{Source: source, Values: make([]any, len(t.Definition.Columns))}
	t.Rows = append(t.Rows, row)
	return row
}

// Set assigns the value of a named column.
func (t *Table) Set(row *Row, column string, value any) {
	i := t.Definition.ColumnIndex(column)
	if i < 0 {
		panic(fmt.Sprintf("output: table %s has no column %s", t.Name(), column))
	}
	row.Values[i] = value
}

// Get returns the string value of a named column.
func (t *Table) Get(row *Row, column string) string {
	i := t.Definition.ColumnIndex(column)
	if i < 0 {
		return ""
	}
	return row.String(i)
}

// Key returns the primary key of a row, primary key columns joined by '/'.
func (t *Table) Key(row *Row) string {
	var parts []string
	for i, c := range t.Definition.Columns {
		if c.PrimaryKey {
			parts = append(parts, row.String(i))
		}
	}
	return strings.Join(parts, "/")
}

// Find returns the first row with the given primary key.
func (t *Table) Find(key string) *Row {
	for _, r := range t.Rows {
		if t.Key(r) == key {
			return r
		}
	}
	return nil
}

// Output is the materialized target representation of a package.
type Output struct {
	Type     Type
	Codepage int
	tables   map[string]*Table
	order    []string
	// Streams holds binary data embedded into the database, such as cabinets.
	Streams map[string][]byte
}

// New creates an empty output.
func New(t Type, codepage int) *Output {
	return &Output{Type: t, Codepage: codepage, tables: map[string]*Table{}, Streams: map[string][]byte{}}
}

// Table returns the named table or nil.
func (o *Output) Table(name string) *Table {
	return o.tables[name]
}

// EnsureTable returns the table for def, creating it when missing.
func (o *Output) EnsureTable(def *schema.TableDefinition) *Table {
	if t, ok := o.tables[def.Name]; ok {
		return t
	}
	t := &Table{Definition: def}
	o.tables[def.Name] = t
	o.order = append(o.order, def.Name)
	return t
}

// DropTable removes a table.
func (o *Output) DropTable(name string) {
	if _, ok := o.tables[name]; !ok {
		return
	}
	delete(o.tables, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Tables returns the tables in creation order.
func (o *Output) Tables() []*Table {
	out := make([]*Table, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.tables[name])
	}
	return out
}

// StreamNames returns the embedded stream names sorted.
func (o *Output) StreamNames() []string {
	names := make([]string, 0, len(o.Streams))
	for n := range o.Streams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
