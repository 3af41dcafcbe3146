package ir

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotExtension is the file extension of a bound intermediate snapshot.
const SnapshotExtension = ".bir"

// SnapshotPath returns the snapshot location next to an output file.
func SnapshotPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return outputPath[:len(outputPath)-len(ext)] + SnapshotExtension
}

// Marshal encodes the intermediate with sorted map keys so equal
// intermediates always produce equal bytes.
func Marshal(in *Intermediate) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(in); err != nil {
		return nil, fmt.Errorf("failed to encode intermediate: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an intermediate produced by Marshal.
func Unmarshal(data []byte) (*Intermediate, error) {
	var in Intermediate
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode intermediate: %w", err)
	}
	return &in, nil
}

// Save writes a snapshot of the intermediate to path.
func Save(fs billy.Filesystem, path string, in *Intermediate) error {
	data, err := Marshal(in)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return util.WriteFile(fs, path, data, 0o644)
}

// Open reads a snapshot written by Save.
func Open(fs billy.Filesystem, path string) (*Intermediate, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return Unmarshal(data)
}
