package config

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// DefaultFile is the configuration file name looked up next to the
// intermediate when none is given.
const DefaultFile = "bind.hcl"

// Binder holds the settings of the binder block.
//
//	binder {
//	  output              = "out/setup.msi"
//	  intermediate_folder = "obj"
//	  threads             = 4
//	  cabinet_cache       = ".cabcache"
//	  compression         = "high"
//	  extensions          = ["customtable"]
//	}
//
// Pointer fields distinguish "not set" from the zero value.
type Binder struct {
	Output                 string   `hcl:"output,optional"`
	IntermediateFolder     string   `hcl:"intermediate_folder,optional"`
	LayoutDir              string   `hcl:"layout_dir,optional"`
	Threads                int      `hcl:"threads,optional"`
	CabinetCache           string   `hcl:"cabinet_cache,optional"`
	Compression            string   `hcl:"compression,optional"`
	SuppressLayout         *bool    `hcl:"suppress_layout,optional"`
	SuppressValidationRows *bool    `hcl:"suppress_validation_rows,optional"`
	KeepAddedColumns       *bool    `hcl:"keep_added_columns,optional"`
	DeltaPatch             *bool    `hcl:"delta_patch,optional"`
	Extensions             []string `hcl:"extensions,optional"`
}

type file struct {
	Binder *Binder  `hcl:"binder,block"`
	Remain hcl.Body `hcl:",remain"`
}

// Load reads the binder block of the file at path. A file without a binder
// block yields empty settings.
func Load(fs billy.Filesystem, path string) (*Binder, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes configuration source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Binder, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}

	var root file
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, diags)
	}
	if root.Binder == nil {
		return &Binder{}, nil
	}
	if root.Binder.Threads < 0 {
		return nil, fmt.Errorf("%s: threads must not be negative", filename)
	}
	return root.Binder, nil
}

// Bool returns the value of an optional flag, or def when it is not set.
func Bool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
