// Package database serializes the output relational model into a package
// database and reads such databases back, for instance when merging modules.
package database

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// ErrNotDatabase is returned when a file is not a package database.
var ErrNotDatabase = errors.New("file is not a package database")

const magic = "PKGDB"

// ValidationTable holds one row per written column describing its type.
const ValidationTable = "_Validation"

// Options tune how the writer serializes an output.
type Options struct {
	// KeepAddedColumns keeps columns a standard table gained beyond its
	// standard definition.
	KeepAddedColumns bool
	// SuppressValidationRows skips the _Validation table.
	SuppressValidationRows bool
}

// Writer writes an output to path.
type Writer interface {
	Write(fs billy.Filesystem, out *output.Output, path string, opts Options) error
}

// Reader opens a database written by a Writer.
type Reader interface {
	Read(fs billy.Filesystem, path string) (*output.Output, error)
}

type container struct {
	Magic         string            `msgpack:"magic"`
	SchemaVersion int               `msgpack:"schema_version"`
	Type          output.Type       `msgpack:"type"`
	Codepage      int               `msgpack:"codepage"`
	Tables        []tableData       `msgpack:"tables"`
	Streams       map[string][]byte `msgpack:"streams"`
}

type tableData struct {
	Name    string                    `msgpack:"name"`
	Columns []schema.ColumnDefinition `msgpack:"columns"`
	Rows    [][]any                   `msgpack:"rows"`
}

// MsgpackWriter stores databases as a single msgpack document.
type MsgpackWriter struct {
	// Definitions are the standard tables; nil means schema.Standard().
	Definitions *schema.Definitions
}

var (
	_ Writer = MsgpackWriter{}
	_ Reader = MsgpackWriter{}
)

func (w MsgpackWriter) definitions() *schema.Definitions {
	if w.Definitions != nil {
		return w.Definitions
	}
	return schema.Standard()
}

// Write implements Writer. Unreal tables are never written.
func (w MsgpackWriter) Write(fs billy.Filesystem, out *output.Output, path string, opts Options) error {
	defs := w.definitions()
	c := container{
		Magic:         magic,
		SchemaVersion: defs.Version,
		Type:          out.Type,
		Codepage:      out.Codepage,
		Streams:       out.Streams,
	}

	var written []schema.TableDefinition
	for _, t := range out.Tables() {
		if t.Definition.Unreal {
			continue
		}
		td := projectTable(t, defs, opts.KeepAddedColumns)
		c.Tables = append(c.Tables, td)
		written = append(written, schema.TableDefinition{Name: td.Name, Columns: td.Columns})
	}
	if !opts.SuppressValidationRows {
		c.Tables = append(c.Tables, validationRows(written))
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("failed to encode database: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := util.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write database %s: %w", path, err)
	}
	return nil
}

func projectTable(t *output.Table, defs *schema.Definitions, keepAdded bool) tableData {
	cols := t.Definition.Columns
	std, isStandard := defs.Get(t.Name())
	if !keepAdded && isStandard && len(std.Columns) < len(cols) {
		cols = std.Columns
	}
	td := tableData{Name: t.Name(), Columns: cols, Rows: make([][]any, 0, len(t.Rows))}
	for _, r := range t.Rows {
		td.Rows = append(td.Rows, append([]any(nil), r.Values[:len(cols)]...))
	}
	return td
}

func validationRows(tables []schema.TableDefinition) tableData {
	td := tableData{
		Name: ValidationTable,
		Columns: []schema.ColumnDefinition{
			{Name: "Table", Type: schema.ColumnString, PrimaryKey: true},
			{Name: "Column", Type: schema.ColumnString, PrimaryKey: true},
			{Name: "Nullable", Type: schema.ColumnString},
			{Name: "Category", Type: schema.ColumnString},
		},
	}
	for _, t := range tables {
		for _, col := range t.Columns {
			nullable := "N"
			if col.Nullable {
				nullable = "Y"
			}
			td.Rows = append(td.Rows, []any{t.Name, col.Name, nullable, string(col.Type)})
		}
	}
	return td
}

// Read implements Reader.
func (w MsgpackWriter) Read(fs billy.Filesystem, path string) (*output.Output, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database %s: %w", path, err)
	}

	var c container
	if err := msgpack.Unmarshal(data, &c); err != nil || c.Magic != magic {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDatabase)
	}

	out := output.New(c.Type, c.Codepage)
	for _, td := range c.Tables {
		def := &schema.TableDefinition{Name: td.Name, Columns: td.Columns}
		t := out.EnsureTable(def)
		for _, values := range td.Rows {
			row := t.NewRow(path)
			for i := 0; i < len(values) && i < len(row.Values); i++ {
				row.Values[i] = normalize(values[i])
			}
		}
	}
	for name, data := range c.Streams {
		out.Streams[name] = data
	}
	return out, nil
}

// normalize folds the integer widths msgpack decodes into plain int.
func normalize(v any) any {
	switch n := v.(type) {
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	default:
		return v
	}
}
