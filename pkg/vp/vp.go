// Package vp reads VP package archives, the container models are shipped in.
package vp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Faultbox/pofconv/pkg/chunk"
	"github.com/Faultbox/pofconv/pkg/encoding"
)

const (
	vpMagic    = "VPVP"
	vpVersion  = 2
	headerSize = 16
	entrySize  = 44
	nameSize   = 32
)

// ErrInvalidArchive is returned when the header or directory is unusable.
var ErrInvalidArchive = errors.New("invalid VP archive")

// Archive represents an opened VP archive.
type Archive struct {
	file     *os.File
	size     int64
	header   Header
	fileList map[string]*Entry
}

// Header contains VP file header information.
type Header struct {
	Magic      [4]byte
	Version    int32
	DirOffset  int32
	DirEntries int32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name     string // slash-separated, lower case
	Offset   int32
	Size     int32
	Modified time.Time
}

// Open opens a VP archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening file: %w", err)
	}

	archive := &Archive{
		file:     file,
		size:     info.Size(),
		fileList: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readDirectory(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := binary.Read(a.file, binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	if string(a.header.Magic[:]) != vpMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidArchive, a.header.Magic[:])
	}

	if a.header.Version != vpVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, a.header.Version)
	}

	return nil
}

func (a *Archive) readDirectory() error {
	h := a.header
	end := int64(h.DirOffset) + int64(h.DirEntries)*entrySize
	if h.DirOffset < headerSize || h.DirEntries < 0 || end > a.size {
		return fmt.Errorf("%w: directory of %d entries at %d outside %d bytes",
			ErrInvalidArchive, h.DirEntries, h.DirOffset, a.size)
	}

	table := make([]byte, end-int64(h.DirOffset))
	if _, err := a.file.ReadAt(table, int64(h.DirOffset)); err != nil {
		return err
	}

	// Entries with zero size and timestamp open a directory; ".." closes it.
	var dirs []string
	r := chunk.NewReader(table)
	for i := int32(0); i < h.DirEntries; i++ {
		offset := r.Int32()
		size := r.Int32()
		name := entryName(r.Bytes(nameSize))
		stamp := r.Int32()
		if err := r.Err(); err != nil {
			return err
		}

		if size == 0 && stamp == 0 {
			if name == ".." {
				if len(dirs) > 0 {
					dirs = dirs[:len(dirs)-1]
				}
			} else {
				dirs = append(dirs, name)
			}
			continue
		}

		if offset < 0 || size < 0 || int64(offset)+int64(size) > a.size {
			return fmt.Errorf("%w: entry %q at %d with %d bytes outside archive", ErrInvalidArchive, name, offset, size)
		}
		entry := &Entry{
			Name:     normalizePath(path.Join(path.Join(dirs...), name)),
			Offset:   offset,
			Size:     size,
			Modified: time.Unix(int64(stamp), 0).UTC(),
		}
		a.fileList[entry.Name] = entry
	}

	return nil
}

func entryName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return encoding.DecodeLegacy(raw)
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for p := range a.fileList {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// ListExt returns the sorted paths whose extension matches ext, e.g. ".pof".
func (a *Archive) ListExt(ext string) []string {
	ext = strings.ToLower(ext)
	var result []string
	for _, p := range a.List() {
		if path.Ext(p) == ext {
			result = append(result, p)
		}
	}
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[normalizePath(path)]
	return ok
}

// Stat returns the directory entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.fileList[normalizePath(path)]
	return e, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.fileList[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	data := make([]byte, entry.Size)
	if _, err := a.file.ReadAt(data, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.ToLower(p)
}
