package bind

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// Transfer types.
const (
	TransferFile     = "file"
	TransferCabinet  = "cabinet"
	TransferDatabase = "database"
)

// FileTransfer is a copy or move to perform once the bind succeeded.
type FileTransfer struct {
	Source      string
	Destination string
	// Move removes the source after copying. Only set for temporary files.
	Move bool
	// Built marks files produced by the binder as opposed to user inputs.
	Built bool
	Type  string
}

// Redundant reports whether source and destination are the same file.
func (t FileTransfer) Redundant() bool {
	return filepath.Clean(t.Source) == filepath.Clean(t.Destination)
}

// ApplyTransfers performs transfers in order.
func ApplyTransfers(fs billy.Filesystem, transfers []FileTransfer) error {
	for _, t := range transfers {
		if t.Redundant() {
			continue
		}
		if err := copyFile(fs, t.Source, t.Destination); err != nil {
			return fmt.Errorf("failed to transfer %s to %s: %w", t.Source, t.Destination, err)
		}
		if t.Move {
			if err := fs.Remove(t.Source); err != nil {
				return fmt.Errorf("failed to remove %s: %w", t.Source, err)
			}
		}
	}
	return nil
}

func copyFile(fs billy.Filesystem, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
