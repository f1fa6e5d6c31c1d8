// Package convert transforms PC DOOM WAD level geometry and wall
// textures into the byte layout expected by the PSX engine. Format
// detection, the struct transcoders, the texture compositor and the
// per-archive conversion session all live here.
package convert

import "errors"

// Archive is the narrow read-only surface this package needs from the
// lump container. *wad.Reader satisfies it.
type Archive interface {
	NumLumps() int
	LumpName(idx int) string
	FindLump(name string) (int, bool)
	RawSize(idx int) int
	ReadLump(idx int) ([]byte, error)
	Compressed(idx int) bool
}

// TextureResolver turns a wall-texture name into an index within the
// destination format's texture table. Implementations return 0 for
// names they cannot resolve ("no texture").
type TextureResolver interface {
	ResolveTextureIndex(name string) int
}

// ErrMalformedLump marks structurally invalid input: bad counts,
// truncated records, out-of-range offsets. Always recoverable; the
// operation yields zero output records or a partially composited
// texture, never an out-of-bounds read.
var ErrMalformedLump = errors.New("malformed lump")
