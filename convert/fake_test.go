package convert

import (
	"encoding/binary"
	"strings"
)

// fakeLump / fakeArchive implement the Archive interface over
// in-memory lumps for the tests in this package
type fakeLump struct {
	name       string
	data       []byte
	compressed bool
}

type fakeArchive []fakeLump

func (a fakeArchive) NumLumps() int { return len(a) }

func (a fakeArchive) LumpName(idx int) string {
	if idx < 0 || idx >= len(a) {
		return ""
	}
	return a[idx].name
}

func (a fakeArchive) FindLump(name string) (int, bool) {
	name = strings.ToUpper(name)
	for i := len(a) - 1; i >= 0; i-- {
		if a[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func (a fakeArchive) RawSize(idx int) int {
	if idx < 0 || idx >= len(a) {
		return 0
	}
	return len(a[idx].data)
}

func (a fakeArchive) ReadLump(idx int) ([]byte, error) {
	return a[idx].data, nil
}

func (a fakeArchive) Compressed(idx int) bool {
	if idx < 0 || idx >= len(a) {
		return false
	}
	return a[idx].compressed
}

// mapResolver is a canned TextureResolver for geometry tests
type mapResolver map[string]int

func (m mapResolver) ResolveTextureIndex(name string) int { return m[name] }

func putName8(dst []byte, name string) {
	for i := 0; i < texNameLen; i++ {
		if i < len(name) {
			dst[i] = name[i]
		} else {
			dst[i] = 0
		}
	}
}

// buildPNames builds a patch name table lump
func buildPNames(names ...string) []byte {
	buf := make([]byte, 4+len(names)*texNameLen)
	binary.LittleEndian.PutUint32(buf, uint32(len(names)))
	for i, n := range names {
		putName8(buf[4+i*texNameLen:], n)
	}
	return buf
}

type texDefSpec struct {
	name          string
	width, height int16
	patches       []PatchRef
}

// buildTextureLump builds a TEXTUREx lump from the given definitions
func buildTextureLump(defs ...texDefSpec) []byte {
	dirSize := 4 + len(defs)*4
	size := dirSize
	for _, d := range defs {
		size += texDefHeaderSize + len(d.patches)*patchRefSize
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf, uint32(len(defs)))

	off := dirSize
	for i, d := range defs {
		binary.LittleEndian.PutUint32(buf[4+i*4:], uint32(off))
		putName8(buf[off:], d.name)
		binary.LittleEndian.PutUint16(buf[off+12:], uint16(d.width))
		binary.LittleEndian.PutUint16(buf[off+14:], uint16(d.height))
		binary.LittleEndian.PutUint16(buf[off+20:], uint16(len(d.patches)))
		for p, ref := range d.patches {
			rb := buf[off+texDefHeaderSize+p*patchRefSize:]
			binary.LittleEndian.PutUint16(rb[0:], uint16(ref.OriginX))
			binary.LittleEndian.PutUint16(rb[2:], uint16(ref.OriginY))
			binary.LittleEndian.PutUint16(rb[4:], uint16(ref.Patch))
		}
		off += texDefHeaderSize + len(d.patches)*patchRefSize
	}

	return buf
}

// buildSolidPatch builds a patch lump fully covered by one opaque post
// of the given palette index per column
func buildSolidPatch(width, height int, pixel byte) []byte {
	postSize := height + 5 // topDelta + length + pad + pixels + pad + terminator
	buf := make([]byte, patchHeaderSize+width*4+width*postSize)

	binary.LittleEndian.PutUint16(buf[0:], uint16(width))
	binary.LittleEndian.PutUint16(buf[2:], uint16(height))

	for col := 0; col < width; col++ {
		post := patchHeaderSize + width*4 + col*postSize
		binary.LittleEndian.PutUint32(buf[patchHeaderSize+col*4:], uint32(post))

		buf[post] = 0 // topDelta
		buf[post+1] = byte(height)
		for i := 0; i < height; i++ {
			buf[post+3+i] = pixel
		}
		buf[post+4+height] = endOfColumn
	}

	return buf
}
