package cabinet

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Level is the compression level of a cabinet.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
	LevelMSZip  Level = "mszip"
)

// DefaultLevel is used when neither the caller nor the media choose one.
const DefaultLevel = LevelMedium

// ParseLevel validates a level name. The empty string yields DefaultLevel.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return DefaultLevel, nil
	case LevelNone, LevelLow, LevelMedium, LevelHigh, LevelMSZip:
		return l, nil
	default:
		return "", fmt.Errorf("unknown compression level %q", s)
	}
}

func (l Level) flateLevel() int {
	switch l {
	case LevelLow:
		return flate.BestSpeed
	case LevelHigh:
		return flate.BestCompression
	case LevelMSZip:
		return 6
	default:
		return 5
	}
}

// Entry is one file to pack: where to read it and the name it gets inside
// the cabinet.
type Entry struct {
	Source string
	Name   string
}

// Codec packs files into cabinets and unpacks them again.
type Codec interface {
	// Compress writes a cabinet holding entries, in order, to w.
	Compress(fs billy.Filesystem, entries []Entry, level Level, w io.Writer) error
	// Extract unpacks every file of the cabinet into dir and returns the
	// written files in cabinet order.
	Extract(fs billy.Filesystem, cabinet []byte, dir string) ([]Extracted, error)
}

// Extracted is one file unpacked from a cabinet.
type Extracted struct {
	Name string
	Path string
}

// Find returns the path of the entry called name.
func Find(files []Extracted, name string) (string, bool) {
	for _, f := range files {
		if f.Name == name {
			return f.Path, true
		}
	}
	return "", false
}

// fixedTime keeps archives byte-for-byte reproducible (1980-01-01 UTC).
var fixedTime = time.Unix(315532800, 0).UTC()

// ZipCodec stores cabinets as zip archives compressed with flate.
type ZipCodec struct{}

var _ Codec = ZipCodec{}

// Compress implements Codec.
func (ZipCodec) Compress(fs billy.Filesystem, entries []Entry, level Level, w io.Writer) error {
	zw := zip.NewWriter(w)
	flateLevel := level.flateLevel()
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flateLevel)
	})

	method := zip.Deflate
	if level == LevelNone {
		method = zip.Store
	}

	for _, e := range entries {
		if err := addEntry(zw, fs, e, method); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish cabinet: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, fs billy.Filesystem, e Entry, method uint16) error {
	src, err := fs.Open(e.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Source, err)
	}
	defer src.Close()

	h := &zip.FileHeader{Name: e.Name, Method: method, Modified: fixedTime}
	h.SetMode(0o644)
	dst, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.Source, err)
	}
	return nil
}

// Extract implements Codec.
func (ZipCodec) Extract(fs billy.Filesystem, cabinet []byte, dir string) ([]Extracted, error) {
	zr, err := zip.NewReader(bytes.NewReader(cabinet), int64(len(cabinet)))
	if err != nil {
		return nil, fmt.Errorf("not a cabinet: %w", err)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	out := make([]Extracted, 0, len(zr.File))
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if strings.HasPrefix(name, "../") || name == ".." || path.IsAbs(name) {
			return nil, fmt.Errorf("cabinet entry %q escapes the extraction directory", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open cabinet entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read cabinet entry %s: %w", f.Name, err)
		}
		target := fs.Join(dir, name)
		if err := util.WriteFile(fs, target, data, 0o644); err != nil {
			return nil, err
		}
		out = append(out, Extracted{Name: f.Name, Path: target})
	}
	return out, nil
}
