package ir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// BindRoot is the root variable name that marks an attribute as a delayed field.
const BindRoot = "bind"

// Loader reads intermediate files written in HCL.
//
//	id = "setup"
//	section "product" {
//	  codepage = 1252
//	  record "File" "F1" {
//	    Source  = "payload/readme.txt"
//	    Version = bind.fileVersion.F2
//	  }
//	}
//	embedded_file {
//	  container   = "lib/ui.wixlib"
//	  index       = 1
//	  output_path = "obj/ui/1"
//	}
type Loader struct {
	fs billy.Filesystem
}

// NewLoader creates a loader reading from the given filesystem.
func NewLoader(fs billy.Filesystem) *Loader {
	return &Loader{fs: fs}
}

type fileRoot struct {
	ID            string               `hcl:"id,optional"`
	Sections      []*sectionBlock      `hcl:"section,block"`
	EmbeddedFiles []*embeddedFileBlock `hcl:"embedded_file,block"`
	Remain        hcl.Body             `hcl:",remain"`
}

type sectionBlock struct {
	Type     string         `hcl:"type,label"`
	ID       string         `hcl:"id,optional"`
	Codepage int            `hcl:"codepage,optional"`
	Records  []*recordBlock `hcl:"record,block"`
}

type recordBlock struct {
	Type string   `hcl:"type,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

type embeddedFileBlock struct {
	Container  string `hcl:"container"`
	Index      int    `hcl:"index"`
	OutputPath string `hcl:"output_path"`
}

// Load parses every .hcl file found under the given paths into one
// intermediate. Sections from different files are appended in path order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Intermediate, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Intermediate loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no intermediate files found in %v", paths)
	}

	in := &Intermediate{}
	parser := hclparse.NewParser()
	for _, file := range files {
		src, err := util.ReadFile(l.fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read intermediate file %s: %w", file, err)
		}
		if err := l.loadFile(parser, file, src, in); err != nil {
			return nil, err
		}
	}

	logger.Debug("Intermediate loaded.", "files", len(files), "sections", len(in.Sections), "delayed_fields", len(in.DelayedFields))
	return in, nil
}

func (l *Loader) loadFile(parser *hclparse.Parser, file string, src []byte, in *Intermediate) error {
	hclFile, diags := parser.ParseHCL(src, file)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse intermediate file %s: %w", file, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode intermediate file %s: %w", file, diags)
	}
	if root.ID != "" {
		in.ID = root.ID
	}

	for _, sb := range root.Sections {
		section := &Section{ID: sb.ID, Type: SectionType(sb.Type), Codepage: sb.Codepage}
		switch section.Type {
		case SectionProduct, SectionModule, SectionPatch:
		default:
			return fmt.Errorf("%s: unknown section type %q", file, sb.Type)
		}
		for _, rb := range sb.Records {
			rec, delayed, err := translateRecord(rb, src)
			if err != nil {
				return err
			}
			section.Add(rec)
			in.DelayedFields = append(in.DelayedFields, delayed...)
		}
		in.Sections = append(in.Sections, section)
	}

	for _, eb := range root.EmbeddedFiles {
		in.EmbeddedFiles = append(in.EmbeddedFiles, ExpectedEmbeddedFile{
			Container:  eb.Container,
			Index:      eb.Index,
			OutputPath: eb.OutputPath,
		})
	}
	return nil
}

// translateRecord evaluates the attributes of a record block. Attributes that
// reference bind.* variables are kept as expression text and returned as
// delayed fields.
func translateRecord(rb *recordBlock, src []byte) (*Record, []DelayedField, error) {
	rec := &Record{Type: rb.Type, ID: rb.ID, Source: rb.Body.MissingItemRange().String(), Fields: map[string]string{}}

	attrs, diags := rb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("record %s.%s: %w", rb.Type, rb.ID, diags)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var delayed []DelayedField
	for _, name := range names {
		attr := attrs[name]
		if isDelayed(attr.Expr) {
			text := string(attr.Expr.Range().SliceBytes(src))
			rec.Fields[name] = text
			delayed = append(delayed, DelayedField{
				RecordType: rb.Type,
				RecordID:   rb.ID,
				Field:      name,
				Expression: text,
				Source:     attr.Range.String(),
			})
			continue
		}

		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("record %s.%s field %s: %w", rb.Type, rb.ID, name, diags)
		}
		if val.IsNull() {
			continue
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, nil, fmt.Errorf("record %s.%s field %s: value must be a string, number or bool: %w", rb.Type, rb.ID, name, err)
		}
		rec.Fields[name] = str.AsString()
	}
	return rec, delayed, nil
}

func isDelayed(expr hcl.Expression) bool {
	for _, traversal := range expr.Variables() {
		if traversal.RootName() == BindRoot {
			return true
		}
	}
	return false
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		allFiles = append(allFiles, p)
	}

	for _, path := range paths {
		info, err := l.fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}

		err = util.Walk(l.fs, path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
