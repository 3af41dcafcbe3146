package envlayout

import (
	"testing"

	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMedia(t *testing.T) {
	env := map[string]string{"PKGBIND_MEDIA_2": "/mnt/disk2"}
	r := extension.NewRegistry()
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	(&Module{Lookup: lookup}).Register(r)

	dir, ok := r.ResolveMedia(ir.NewRecord("Media", "2"), "", "/out")
	require.True(t, ok)
	assert.Equal(t, "/mnt/disk2", dir)

	_, ok = r.ResolveMedia(ir.NewRecord("Media", "1"), "", "/out")
	assert.False(t, ok)

	_, ok = r.ResolveMedia(nil, "", "/out")
	assert.False(t, ok)
}

func TestModule_DefaultsToProcessEnvironment(t *testing.T) {
	t.Setenv("PKGBIND_MEDIA_7", "/from/env")
	r := extension.NewRegistry()
	(&Module{}).Register(r)

	dir, ok := r.ResolveMedia(ir.NewRecord("Media", "7"), "ignored", "/out")
	require.True(t, ok)
	assert.Equal(t, "/from/env", dir)
}
