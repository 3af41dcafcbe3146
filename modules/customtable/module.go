// Package customtable projects author-defined tables. A CustomTable record
// declares the columns of a table; CustomRow records add rows to it.
//
//	record "CustomTable" "Settings" {
//	  Columns = "Name:string:pk:column;Value:number:nullable"
//	}
//	record "CustomRow" "Settings/1" {
//	  Table = "Settings"
//	  Name  = "Timeout"
//	  Value = "30"
//	}
package customtable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

const (
	TableRecord = "CustomTable"
	RowRecord   = "CustomRow"
)

// Module implements the extension.Module interface for this package.
type Module struct{}

// Register registers the translator with the binder.
func (m *Module) Register(r *extension.Registry) {
	r.Register("customtable", &Translator{})
}

// Translator turns CustomTable and CustomRow records into output tables.
type Translator struct{}

func (t *Translator) CanTranslate(recordType string) bool {
	return recordType == TableRecord || recordType == RowRecord
}

func (t *Translator) TranslateRecord(rec *ir.Record, out *output.Output) error {
	if rec.Type == TableRecord {
		def, err := ParseColumns(rec.ID, rec.Get("Columns"))
		if err != nil {
			return err
		}
		if existing := out.Table(def.Name); existing != nil {
			return fmt.Errorf("table %s already exists", def.Name)
		}
		out.EnsureTable(def)
		return nil
	}

	name := rec.Get("Table")
	table := out.Table(name)
	if table == nil {
		return fmt.Errorf("row references undefined custom table %q", name)
	}
	row := table.NewRow(rec.Source)
	for i, col := range table.Definition.Columns {
		v, ok := rec.Fields[col.Name]
		if !ok || v == "" {
			if !col.Nullable {
				return fmt.Errorf("column %s is required", col.Name)
			}
			continue
		}
		if col.Type == schema.ColumnNumber {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("column %s expects a number, got %q", col.Name, v)
			}
			row.Values[i] = n
			continue
		}
		row.Values[i] = v
	}
	return nil
}

// ParseColumns reads a column list of the form
// "Name:type[:pk][:nullable][:<modularize kind>];...".
func ParseColumns(table, spec string) (*schema.TableDefinition, error) {
	def := &schema.TableDefinition{Name: table}
	for _, item := range strings.Split(spec, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		col := schema.ColumnDefinition{Name: parts[0], Type: schema.ColumnString}
		if len(parts) > 1 && parts[1] != "" {
			col.Type = schema.ColumnType(parts[1])
		}
		if col.Type != schema.ColumnString && col.Type != schema.ColumnNumber {
			return nil, fmt.Errorf("table %s column %s: unknown type %q", table, col.Name, col.Type)
		}
		for _, flag := range parts[min(2, len(parts)):] {
			switch flag {
			case "pk":
				col.PrimaryKey = true
			case "nullable":
				col.Nullable = true
			default:
				col.Modularize = schema.ModularizeType(flag)
			}
		}
		def.Columns = append(def.Columns, col)
	}
	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	return def, nil
}
