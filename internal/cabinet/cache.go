package cabinet

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/opencontainers/go-digest"
)

// KeyEntry is one member of a cabinet as far as the cache is concerned.
// Content is the digest of the member's bytes, see FileDigest.
type KeyEntry struct {
	ID      string
	Name    string
	Size    int64
	Content string
}

// Key digests the compression level and the ordered members of a cabinet.
func Key(level Level, entries []KeyEntry) digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	io.WriteString(h, "level="+string(level)+"\n")
	for _, e := range entries {
		io.WriteString(h, e.ID+"\x00"+e.Name+"\x00"+strconv.FormatInt(e.Size, 10)+"\x00"+e.Content+"\n")
	}
	return d.Digest()
}

// FileDigest digests the bytes of the file at path.
func FileDigest(fs billy.Filesystem, path string) (digest.Digest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d, nil
}

// Cache is a content-addressed store of built cabinets under
// <dir>/aa/bb/<hex>.cab. Writes go through a temp file and a rename so a
// reader never sees a partial cabinet; concurrent writers of the same key
// produce the same bytes, so the last rename wins.
type Cache struct {
	fs  billy.Filesystem
	dir string
}

// NewCache returns a cache rooted at dir, or nil when dir is empty.
func NewCache(fs billy.Filesystem, dir string) *Cache {
	if dir == "" {
		return nil
	}
	return &Cache{fs: fs, dir: dir}
}

// Path returns where the cabinet for key is stored.
func (c *Cache) Path(key digest.Digest) string {
	hex := key.Encoded()
	return c.fs.Join(c.dir, hex[:2], hex[2:4], hex+".cab")
}

// Get returns the cached cabinet bytes for key.
func (c *Cache) Get(key digest.Digest) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	f, err := c.fs.Open(c.Path(key))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores data under key.
func (c *Cache) Put(key digest.Digest, data []byte) error {
	if c == nil {
		return nil
	}
	final := c.Path(key)
	dir := c.fs.Join(c.dir, key.Encoded()[:2], key.Encoded()[2:4])
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := c.fs.TempFile(dir, ".tmp-"+key.Encoded()[:12]+"-")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(name)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = c.fs.Remove(name)
		return err
	}
	if err := c.fs.Rename(name, final); err != nil {
		_ = c.fs.Remove(name)
		if _, statErr := c.fs.Stat(final); statErr == nil {
			return nil
		} else if !os.IsNotExist(statErr) {
			return statErr
		}
		return fmt.Errorf("failed to publish cache entry: %w", err)
	}
	return nil
}
