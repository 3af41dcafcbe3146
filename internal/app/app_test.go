package app

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/config"
	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/testutil"
)

func TestNewConfig(t *testing.T) {
	valid := Config{IntermediatePaths: []string{"setup.hcl"}, OutputPath: "out/setup.msi"}

	_, err := NewConfig(valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "no intermediate", modify: func(c *Config) { c.IntermediatePaths = nil }},
		{name: "no output", modify: func(c *Config) { c.OutputPath = "" }},
		{name: "negative threads", modify: func(c *Config) { c.Threads = -2 }},
		{name: "bad compression", modify: func(c *Config) { c.Compression = "extreme" }},
		{name: "unknown extension", modify: func(c *Config) { c.Extensions = []string{"nope"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			_, err := NewConfig(cfg)
			require.Error(t, err)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	yes := true
	cfg := Config{OutputPath: "flag.msi", Threads: 2}.WithDefaults(&config.Binder{
		Output:             "file.msi",
		IntermediateFolder: "tmp",
		Threads:            8,
		Compression:        "low",
		DeltaPatch:         &yes,
		Extensions:         []string{"envlayout"},
	})

	assert.Equal(t, "flag.msi", cfg.OutputPath, "flags win")
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, "tmp", cfg.IntermediateFolder)
	assert.Equal(t, "low", cfg.Compression)
	assert.True(t, cfg.DeltaPatch)
	assert.False(t, cfg.SuppressLayout)
	assert.Equal(t, []string{"envlayout"}, cfg.Extensions)
}

func TestSelectModules(t *testing.T) {
	assert.Len(t, selectModules(nil), len(coreModules))
	assert.Len(t, selectModules([]string{"customtable"}), 1)
}

const productHCL = `
	id = "setup"
	section "product" {
	  codepage = 1252
	  record "_SummaryInformation" "15" {
	    Value = 2
	  }
	  record "Media" "1" {
	    Cabinet = "product.cab"
	  }
	  record "Directory" "TARGETDIR" {
	    DefaultDir = "SourceDir"
	  }
	  record "Component" "Main" {
	    ComponentId = "*"
	    Directory_  = "TARGETDIR"
	    KeyPath     = "readme"
	  }
	  record "File" "readme" {
	    Component_ = "Main"
	    Source     = "payload/readme.txt"
	    FileName   = "readme.txt"
	  }
	  record "Property" "ReadmeSize" {
	    Value = bind.fileSize.readme
	  }
	  record "CustomTable" "Settings" {
	    Columns = "Name:string:pk;Value:string"
	  }
	  record "CustomRow" "Settings/Timeout" {
	    Table = "Settings"
	    Name  = "Timeout"
	    Value = "30"
	  }
	}
`

func TestApp_Run(t *testing.T) {
	fs := memfs.New()
	testutil.WriteFiles(t, fs, map[string]string{
		"src/setup.hcl":      productHCL,
		"payload/readme.txt": "read me",
	})
	cfg, err := NewConfig(Config{IntermediatePaths: []string{"src"}, OutputPath: "out/setup.msi", LogLevel: "debug"})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	res, err := NewApp(logs, fs, cfg).Run(context.Background())
	require.NoError(t, err, logs.String())
	require.True(t, res.Succeeded)

	db, err := database.MsgpackWriter{}.Read(fs, "out/setup.msi")
	require.NoError(t, err)
	props := db.Table("Property")
	assert.Equal(t, "8", props.Get(props.Find("ReadmeSize"), "Value"))
	settings := db.Table("Settings")
	require.NotNil(t, settings)
	assert.Equal(t, "30", settings.Get(settings.Find("Timeout"), "Value"))

	_, err = fs.Stat("out/product.cab")
	assert.NoError(t, err)
	_, err = fs.Stat("out/setup.bir")
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "Bind finished.")
}

func TestApp_RunReportsFailedBind(t *testing.T) {
	fs := memfs.New()
	testutil.WriteFiles(t, fs, map[string]string{
		"setup.hcl": `
			section "product" {
			  record "File" "missing" {
			    Source = "payload/missing.txt"
			  }
			}
		`,
	})
	cfg, err := NewConfig(Config{IntermediatePaths: []string{"setup.hcl"}, OutputPath: "out/setup.msi"})
	require.NoError(t, err)

	res, err := NewApp(&testutil.SafeBuffer{}, fs, cfg).Run(context.Background())
	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, "file-metadata-updater", bindErr.Stage)
	assert.Equal(t, 1, bindErr.Errors)
	assert.False(t, res.Succeeded)

	_, statErr := fs.Stat("out/setup.msi")
	assert.Error(t, statErr, "nothing is transferred after a failed bind")
}

func TestApp_RunMissingIntermediate(t *testing.T) {
	cfg, err := NewConfig(Config{IntermediatePaths: []string{"nowhere"}, OutputPath: "out.msi"})
	require.NoError(t, err)
	_, err = NewApp(&testutil.SafeBuffer{}, memfs.New(), cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load intermediate")
}
