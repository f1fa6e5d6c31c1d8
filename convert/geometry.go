package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// FracBits is the number of fractional bits in the destination
// format's fixed-point coordinates
const FracBits = 16

// Geometry record sizes in bytes. Source lumps carry no counts of
// their own; the record count is always lump length / record size.
const (
	pcVertexSize  = 4
	psxVertexSize = 8

	pcSectorSize     = 26
	psxSectorSize    = 18
	psxSectorSizeExt = 20

	// Sidedef and linedef records are size-identical in both formats
	sidedefSize = 30
	linedefSize = 14

	texNameLen = 8
)

// toFixed converts a raw integer map unit into the destination
// fixed-point representation. The shift is exact, no rounding happens.
func toFixed[T constraints.Signed](n T) int32 {
	return int32(n) << FracBits
}

// recordCount validates that the source length is an exact multiple of
// the record size and returns the record count. A remainder signals a
// malformed lump and yields zero records.
func recordCount(srcLen, recSize int) (int, error) {
	if srcLen%recSize != 0 {
		return 0, fmt.Errorf("%w: length %d is no multiple of record size %d", ErrMalformedLump, srcLen, recSize)
	}
	return srcLen / recSize, nil
}

// texNameAt extracts the fixed-width texture name starting at the
// given offset, NUL-trimmed and uppercased
func texNameAt(src []byte, off int) string {
	name := src[off : off+texNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(string(name))
}

// resolveTexName maps a texture name onto the destination index space.
// The "no texture" placeholder and unresolved names become index 0 so
// conversion never fails on a missing texture.
func resolveTexName(name string, resolve TextureResolver) int16 {
	if name == "" || name == "-" || resolve == nil {
		return 0
	}
	return int16(resolve.ResolveTextureIndex(name))
}

// convertVertexes transcodes PC vertex records (two int16 raw map
// units) into PSX records (two int32 fixed-point values per axis)
func convertVertexes(src, dst []byte) (int, error) {
	count, err := recordCount(len(src), pcVertexSize)
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		s := src[i*pcVertexSize:]
		d := dst[i*psxVertexSize:]

		binary.LittleEndian.PutUint32(d[0:], uint32(toFixed(int16(binary.LittleEndian.Uint16(s[0:])))))
		binary.LittleEndian.PutUint32(d[4:], uint32(toFixed(int16(binary.LittleEndian.Uint16(s[2:])))))
	}

	return count * psxVertexSize, nil
}

// convertSectors transcodes PC sector records into PSX records:
// heights copy through as plain integers, the two 8-byte texture names
// become destination indices, the 16-bit light level splits into an
// 8-bit light level plus an 8-bit color id (the high byte is zero in
// well-formed PC data, so the color id starts at 0) and the fields the
// PC layout lacks (flags, ceiling color id) stay zero.
func convertSectors(src, dst []byte, resolve TextureResolver) (int, error) {
	count, err := recordCount(len(src), pcSectorSize)
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		s := src[i*pcSectorSize:]
		d := dst[i*psxSectorSize : (i+1)*psxSectorSize]

		floorPic := resolveTexName(texNameAt(s, 4), resolve)
		ceilPic := resolveTexName(texNameAt(s, 12), resolve)
		light := binary.LittleEndian.Uint16(s[20:])

		binary.LittleEndian.PutUint16(d[0:], binary.LittleEndian.Uint16(s[0:])) // floor height
		binary.LittleEndian.PutUint16(d[2:], binary.LittleEndian.Uint16(s[2:])) // ceiling height
		binary.LittleEndian.PutUint16(d[4:], uint16(floorPic))
		binary.LittleEndian.PutUint16(d[6:], uint16(ceilPic))
		d[8] = byte(light) // light level, low byte
		d[9] = 0           // color id
		binary.LittleEndian.PutUint16(d[10:], binary.LittleEndian.Uint16(s[22:])) // special
		binary.LittleEndian.PutUint16(d[12:], binary.LittleEndian.Uint16(s[24:])) // tag
		binary.LittleEndian.PutUint16(d[14:], 0)                                  // flags
		d[16] = 0                                                                 // ceiling color id
		d[17] = 0
	}

	return count * psxSectorSize, nil
}

// convertSidedefs transcodes PC sidedef records. The record size is
// identical in both formats; the offsets copy through as plain
// integers and each 8-byte texture name field carries its resolved
// destination index in the low int16 with the rest zeroed.
func convertSidedefs(src, dst []byte, resolve TextureResolver) (int, error) {
	count, err := recordCount(len(src), sidedefSize)
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		s := src[i*sidedefSize:]
		d := dst[i*sidedefSize : (i+1)*sidedefSize]

		binary.LittleEndian.PutUint16(d[0:], binary.LittleEndian.Uint16(s[0:])) // x offset
		binary.LittleEndian.PutUint16(d[2:], binary.LittleEndian.Uint16(s[2:])) // y offset

		for _, field := range []int{4, 12, 20} {
			idx := resolveTexName(texNameAt(s, field), resolve)
			for j := field; j < field+texNameLen; j++ {
				d[j] = 0
			}
			binary.LittleEndian.PutUint16(d[field:], uint16(idx))
		}

		binary.LittleEndian.PutUint16(d[28:], binary.LittleEndian.Uint16(s[28:])) // sector
	}

	return count * sidedefSize, nil
}

// convertLinedefs transcodes PC linedef records. Both layouts are
// byte-for-byte identical; the flag bits the destination format adds
// on top of the source set default to unset, so this is a validated
// copy.
func convertLinedefs(src, dst []byte) (int, error) {
	count, err := recordCount(len(src), linedefSize)
	if err != nil {
		return 0, err
	}

	copy(dst[:count*linedefSize], src)
	return count * linedefSize, nil
}
