// Package wad contains a read-only parser for DOOM WAD archive files
package wad

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	// NameLen is the fixed width of a lump name inside the archive
	NameLen = 8

	headerSize    = 12
	dirEntrySize  = 16
	compressedBit = 0x80
)

type (
	// Lump represents one named binary record inside the WAD archive
	Lump struct {
		Name string

		// Compressed is set when the lump name carried the PSX
		// compression marker (high bit of the first name byte). The
		// reader hands out the raw bytes either way; decoding the
		// compressed payload is up to the consumer.
		Compressed bool
		Size       uint32

		archiveReader io.ReaderAt
		offset        uint32
	}

	// Reader contains a parser for the archive and after creation will
	// hold the lump directory ready to be read from the archive
	Reader struct {
		Lumps []*Lump

		header        fileHeader
		lumpsByName   map[string]int
		archiveReader io.ReaderAt
	}

	fileHeader struct {
		Magic        [4]byte
		NumLumps     int32
		InfoTableOfs int32
	}

	dirEntry struct {
		Filepos int32
		Size    int32
		Name    [NameLen]byte
	}
)

var (
	iwadMagic = []byte("IWAD")
	pwadMagic = []byte("PWAD")
)

// NewReader opens the archive from the given io.ReaderAt and parses
// the header and lump directory
func NewReader(r io.ReaderAt) (out *Reader, err error) {
	// Read the header
	var header fileHeader
	if err = binary.Read(
		io.NewSectionReader(r, 0, headerSize),
		binary.LittleEndian,
		&header,
	); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	// Sanity checks
	if !bytes.Equal(header.Magic[:], iwadMagic) && !bytes.Equal(header.Magic[:], pwadMagic) {
		return nil, fmt.Errorf("unexpected magic header")
	}

	if header.NumLumps < 0 || header.InfoTableOfs < 0 {
		return nil, fmt.Errorf("negative lump count or directory offset")
	}

	out = &Reader{
		archiveReader: r,
		header:        header,
		lumpsByName:   make(map[string]int),
	}

	if err = out.parseDirectory(); err != nil {
		return nil, fmt.Errorf("parsing lump directory: %w", err)
	}

	return out, nil
}

func (r *Reader) parseDirectory() error {
	dirReader := io.NewSectionReader(
		r.archiveReader,
		int64(r.header.InfoTableOfs),
		int64(r.header.NumLumps)*dirEntrySize,
	)

	for i := int32(0); i < r.header.NumLumps; i++ {
		var e dirEntry
		if err := binary.Read(dirReader, binary.LittleEndian, &e); err != nil {
			return fmt.Errorf("reading directory entry: %w", err)
		}

		if e.Filepos < 0 || e.Size < 0 {
			return fmt.Errorf("negative offset or size in directory entry %d", i)
		}

		compressed := e.Name[0]&compressedBit != 0
		e.Name[0] &^= compressedBit

		l := Lump{
			Name:          NameToString(e.Name),
			Compressed:    compressed,
			Size:          uint32(e.Size),
			archiveReader: r.archiveReader,
			offset:        uint32(e.Filepos),
		}

		// Last directory entry with a given name wins for lookup,
		// matching how the original engines walk the directory
		r.lumpsByName[l.Name] = len(r.Lumps)
		r.Lumps = append(r.Lumps, &l)
	}

	return nil
}

// NumLumps returns the number of entries in the lump directory
func (r *Reader) NumLumps() int { return len(r.Lumps) }

// LumpName returns the uppercased name of the lump at the given index
// (compression marker already stripped)
func (r *Reader) LumpName(idx int) string {
	if idx < 0 || idx >= len(r.Lumps) {
		return ""
	}
	return r.Lumps[idx].Name
}

// FindLump looks up a lump by name (case-insensitive). The second
// return value reports whether the lump exists.
func (r *Reader) FindLump(name string) (int, bool) {
	idx, ok := r.lumpsByName[strings.ToUpper(name)]
	return idx, ok
}

// RawSize returns the stored byte size of the lump at the given index
func (r *Reader) RawSize(idx int) int {
	if idx < 0 || idx >= len(r.Lumps) {
		return 0
	}
	return int(r.Lumps[idx].Size)
}

// Compressed reports whether the lump at the given index carried the
// compression marker in its directory name
func (r *Reader) Compressed(idx int) bool {
	if idx < 0 || idx >= len(r.Lumps) {
		return false
	}
	return r.Lumps[idx].Compressed
}

// ReadLump reads the full raw contents of the lump at the given index
func (r *Reader) ReadLump(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(r.Lumps) {
		return nil, fmt.Errorf("lump index %d out of range", idx)
	}

	l := r.Lumps[idx]
	buf := make([]byte, l.Size)
	if _, err := io.ReadFull(io.NewSectionReader(l.archiveReader, int64(l.offset), int64(l.Size)), buf); err != nil {
		return nil, fmt.Errorf("reading lump %q: %w", l.Name, err)
	}

	return buf, nil
}

// Open opens the lump for reading
func (l *Lump) Open() io.Reader {
	return io.NewSectionReader(l.archiveReader, int64(l.offset), int64(l.Size))
}

// NameToString converts a fixed-width NUL-padded lump name into an
// uppercased Go string
func NameToString(name [NameLen]byte) string {
	i := bytes.IndexByte(name[:], 0)
	if i == -1 {
		i = len(name)
	}
	return strings.ToUpper(string(name[:i]))
}
