// Package schema holds the table definitions of the installable format: the
// fixed mapping from record type to table, column types, keys and the
// modularization behavior of every column.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var standardTables []byte

// ColumnType is the storage type of a column.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
)

// ModularizeType tells the modularizer how to rewrite a column value.
type ModularizeType string

const (
	ModularizeNone          ModularizeType = ""
	ModularizeColumn        ModularizeType = "column"
	ModularizeProperty      ModularizeType = "property"
	ModularizeCondition     ModularizeType = "condition"
	ModularizeIcon          ModularizeType = "icon"
	ModularizeCompanionFile ModularizeType = "companion_file"
	ModularizeSemicolon     ModularizeType = "semicolon"
)

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name       string         `yaml:"name"`
	Type       ColumnType     `yaml:"type"`
	Nullable   bool           `yaml:"nullable"`
	PrimaryKey bool           `yaml:"primary_key"`
	Modularize ModularizeType `yaml:"modularize"`
}

// TableDefinition describes a table and its ordered columns.
type TableDefinition struct {
	Name     string             `yaml:"name"`
	Unreal   bool               `yaml:"unreal"`
	Sequence bool               `yaml:"sequence"`
	Columns  []ColumnDefinition `yaml:"columns"`
}

// ColumnIndex returns the position of the named column or -1.
func (t *TableDefinition) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Definitions is an ordered, versioned collection of table definitions.
type Definitions struct {
	Version int
	tables  []*TableDefinition
	byName  map[string]*TableDefinition
}

type definitionsFile struct {
	Version int                `yaml:"version"`
	Tables  []*TableDefinition `yaml:"tables"`
}

// Parse decodes YAML table definitions.
func Parse(data []byte) (*Definitions, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse table definitions: %w", err)
	}

	defs := &Definitions{Version: file.Version, byName: make(map[string]*TableDefinition, len(file.Tables))}
	for _, t := range file.Tables {
		if err := defs.Add(t); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// Add registers a table definition. Extensions use it for custom tables.
func (d *Definitions) Add(t *TableDefinition) error {
	if t.Name == "" {
		return fmt.Errorf("table definition without a name")
	}
	if _, exists := d.byName[t.Name]; exists {
		return fmt.Errorf("table %q is defined twice", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}
	for i := range t.Columns {
		switch t.Columns[i].Type {
		case ColumnString, ColumnNumber:
		case "":
			t.Columns[i].Type = ColumnString
		default:
			return fmt.Errorf("table %q column %q: unknown type %q", t.Name, t.Columns[i].Name, t.Columns[i].Type)
		}
	}
	d.tables = append(d.tables, t)
	d.byName[t.Name] = t
	return nil
}

// Get returns the definition for a table name.
func (d *Definitions) Get(name string) (*TableDefinition, bool) {
	t, ok := d.byName[name]
	return t, ok
}

// All returns the definitions in declaration order.
func (d *Definitions) All() []*TableDefinition {
	return append([]*TableDefinition(nil), d.tables...)
}

// SequenceTables returns the names of the action sequence tables.
func (d *Definitions) SequenceTables() []string {
	var names []string
	for _, t := range d.tables {
		if t.Sequence {
			names = append(names, t.Name)
		}
	}
	return names
}

// Clone returns a copy that can be extended without affecting d.
func (d *Definitions) Clone() *Definitions {
	c := &Definitions{Version: d.Version, byName: make(map[string]*TableDefinition, len(d.tables))}
	for _, t := range d.tables {
		c.tables = append(c.tables, t)
		c.byName[t.Name] = t
	}
	return c
}

var (
	standardOnce sync.Once
	standard     *Definitions
	standardErr  error
)

// Standard returns a fresh copy of the embedded table definitions.
func Standard() *Definitions {
	standardOnce.Do(func() {
		standard, standardErr = Parse(standardTables)
	})
	if standardErr != nil {
		panic(fmt.Sprintf("schema: embedded table definitions are invalid: %v", standardErr))
	}
	return standard.Clone()
}

// IsPublicProperty reports whether a property name is public (all upper case).
// Public properties keep their names across modularization.
func IsPublicProperty(name string) bool {
	return name != "" && strings.ToUpper(name) == name
}
