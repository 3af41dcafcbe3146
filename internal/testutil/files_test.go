package testutil

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
)

func TestUnindent(t *testing.T) {
	in := `
		record "File" "F1" {
		  Source = "a.txt"
		}
	`
	assert.Equal(t, "record \"File\" \"F1\" {\n  Source = \"a.txt\"\n}\n", Unindent(in))
	assert.Equal(t, "", Unindent(""))
}

func TestWriteFiles(t *testing.T) {
	fs := memfs.New()
	WriteFiles(t, fs, map[string]string{"a/b.txt": "hello"})
	assert.Equal(t, "hello\n", string(ReadFile(t, fs, "a/b.txt")))
}

func TestSafeBuffer(t *testing.T) {
	var b SafeBuffer
	ctxBuf := Context(&b)
	assert.NotNil(t, ctxBuf)
	_, _ = b.Write([]byte("x"))
	assert.Equal(t, "x", b.String())
}
